package h2

import (
	"bytes"
	"strings"

	"golang.org/x/net/http2/hpack"
)

// hpackField is a decoded header field, kept name-cased as received so
// pseudo-headers (":status" etc.) stay distinguishable from regular ones.
type hpackField struct {
	Name  string
	Value string
}

// hpackCodec pairs one encoder and one decoder sharing a connection's
// dynamic table, the way a single HTTP/2 connection must (RFC 7541 §2.2):
// the table is connection-wide, not per-stream.
type hpackCodec struct {
	encBuf  bytes.Buffer
	encoder *hpack.Encoder
	decoder *hpack.Decoder
}

func newHPACKCodec(tableSize uint32) *hpackCodec {
	c := &hpackCodec{}
	c.encoder = hpack.NewEncoder(&c.encBuf)
	c.encoder.SetMaxDynamicTableSize(tableSize)
	c.decoder = hpack.NewDecoder(tableSize, nil)
	return c
}

// encodeHeaders renders a HEADERS frame's block fragment: pseudo-headers
// (":method", ":path", ":scheme", ":authority") first, per RFC 7540 §8.1.2.1,
// then regular headers lowercased per RFC 7540 §8.1.2.
func (c *hpackCodec) encodeHeaders(pseudo []hpackField, regular []hpackField) ([]byte, error) {
	c.encBuf.Reset()
	for _, f := range pseudo {
		if err := c.encoder.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value}); err != nil {
			return nil, err
		}
	}
	for _, f := range regular {
		if err := c.encoder.WriteField(hpack.HeaderField{Name: strings.ToLower(f.Name), Value: f.Value}); err != nil {
			return nil, err
		}
	}
	out := make([]byte, c.encBuf.Len())
	copy(out, c.encBuf.Bytes())
	return out, nil
}

func (c *hpackCodec) decodeHeaders(block []byte) ([]hpackField, error) {
	fields, err := c.decoder.DecodeFull(block)
	if err != nil {
		return nil, err
	}
	out := make([]hpackField, len(fields))
	for i, f := range fields {
		out[i] = hpackField{Name: f.Name, Value: f.Value}
	}
	return out, nil
}
