package route

import "net"

// InterleaveHappyEyeballs partitions addrs by family and interleaves
// [ipv6[0], ipv4[0], ipv6[1], ipv4[1], ...], preserving original order within
// each family, and preserving overall order if one family is absent.
func InterleaveHappyEyeballs(addrs []net.IP) []net.IP {
	var v6, v4 []net.IP
	for _, ip := range addrs {
		if ip.To4() == nil {
			v6 = append(v6, ip)
		} else {
			v4 = append(v4, ip)
		}
	}
	if len(v6) == 0 || len(v4) == 0 {
		return addrs
	}
	out := make([]net.IP, 0, len(addrs))
	for i := 0; i < len(v6) || i < len(v4); i++ {
		if i < len(v6) {
			out = append(out, v6[i])
		}
		if i < len(v4) {
			out = append(out, v4[i])
		}
	}
	return out
}
