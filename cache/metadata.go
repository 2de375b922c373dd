package cache

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Metadata is everything about a cached exchange besides the response
// body: the request identity (for Vary matching) and the response status
// line, headers, and timing.
type Metadata struct {
	URL            string
	Method         string
	VariedHeaders  map[string]string // header name -> request value, for Vary re-validation
	StatusCode     int
	StatusMessage  string
	Headers        []HeaderField
	SentMillis     int64
	ReceivedMillis int64
}

// HeaderField preserves header order and repeats, unlike a map.
type HeaderField struct {
	Name  string
	Value string
}

// WriteMetadata serializes m to w in the cache's on-disk metadata format.
func WriteMetadata(w io.Writer, m *Metadata) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, m.URL)
	fmt.Fprintln(bw, m.Method)
	fmt.Fprintln(bw, len(m.VariedHeaders))
	for name, value := range m.VariedHeaders {
		fmt.Fprintf(bw, "%s: %s\n", name, value)
	}
	fmt.Fprintf(bw, "%d %s\n", m.StatusCode, m.StatusMessage)
	fmt.Fprintln(bw, len(m.Headers))
	for _, h := range m.Headers {
		fmt.Fprintf(bw, "%s: %s\n", h.Name, h.Value)
	}
	fmt.Fprintln(bw, m.SentMillis)
	fmt.Fprintln(bw, m.ReceivedMillis)
	return bw.Flush()
}

// ReadMetadata parses the format WriteMetadata produces.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	m := &Metadata{VariedHeaders: map[string]string{}}

	readLine := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	var ok bool
	if m.URL, ok = readLine(); !ok {
		return nil, fmt.Errorf("truncated cache metadata: url")
	}
	if m.Method, ok = readLine(); !ok {
		return nil, fmt.Errorf("truncated cache metadata: method")
	}
	variedCount, err := readInt(readLine)
	if err != nil {
		return nil, err
	}
	for i := 0; i < variedCount; i++ {
		line, ok := readLine()
		if !ok {
			return nil, fmt.Errorf("truncated cache metadata: varied header")
		}
		name, value := splitHeaderLine(line)
		m.VariedHeaders[name] = value
	}
	statusLine, ok := readLine()
	if !ok {
		return nil, fmt.Errorf("truncated cache metadata: status")
	}
	sp := strings.SplitN(statusLine, " ", 2)
	code, err := strconv.Atoi(sp[0])
	if err != nil {
		return nil, fmt.Errorf("malformed cache status code")
	}
	m.StatusCode = code
	if len(sp) == 2 {
		m.StatusMessage = sp[1]
	}
	headerCount, err := readInt(readLine)
	if err != nil {
		return nil, err
	}
	for i := 0; i < headerCount; i++ {
		line, ok := readLine()
		if !ok {
			return nil, fmt.Errorf("truncated cache metadata: header")
		}
		name, value := splitHeaderLine(line)
		m.Headers = append(m.Headers, HeaderField{Name: name, Value: value})
	}
	sentStr, _ := readLine()
	recvStr, _ := readLine()
	m.SentMillis, _ = strconv.ParseInt(sentStr, 10, 64)
	m.ReceivedMillis, _ = strconv.ParseInt(recvStr, 10, 64)
	return m, sc.Err()
}

func readInt(readLine func() (string, bool)) (int, error) {
	line, ok := readLine()
	if !ok {
		return 0, fmt.Errorf("truncated cache metadata: count")
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("malformed cache metadata count %q", line)
	}
	return n, nil
}

func splitHeaderLine(line string) (name, value string) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], line[idx+2:]
}
