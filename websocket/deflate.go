package websocket

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// deflateTrailer is the four-byte trailer permessage-deflate strips from
// every compressed message before sending and re-appends before inflating
// (RFC 7692 §7.2.1): the tail of the empty BFINAL=0 stored block that a
// sync flush emits.
var deflateTrailer = []byte{0x00, 0x00, 0xFF, 0xFF}

// deflateFinalBlock is an empty stored block with BFINAL=1, appended after
// the trailer on the receive side so the decompressor sees a terminated
// stream instead of an unexpected EOF. It carries no payload bytes, so a
// message that already self-terminated just treats it as discarded trailing
// data.
var deflateFinalBlock = []byte{0x01, 0x00, 0x00, 0xFF, 0xFF}

// maxWindowSize bounds the sliding window carried across messages under
// context takeover, matching DEFLATE's 32 KiB history limit.
const maxWindowSize = 32 * 1024

// deflateExtension holds the negotiated permessage-deflate parameters and
// the compressor/decompressor state needed for context takeover.
type deflateExtension struct {
	serverNoContextTakeover bool
	clientNoContextTakeover bool

	wbuf   bytes.Buffer
	writer *flate.Writer

	reader io.ReadCloser
	rbuf   bytes.Buffer
	window []byte // decompressed history fed back as the inflate dictionary
}

func newDeflateExtension(clientNoContextTakeover, serverNoContextTakeover bool) (*deflateExtension, error) {
	d := &deflateExtension{
		serverNoContextTakeover: serverNoContextTakeover,
		clientNoContextTakeover: clientNoContextTakeover,
	}
	w, err := flate.NewWriter(&d.wbuf, flate.DefaultCompression)
	if err != nil {
		return nil, errors.NewProtocolError("permessage-deflate init", err)
	}
	d.writer = w
	return d, nil
}

// compress deflates payload for an outgoing message, stripping the
// synchronization trailer. Under context takeover the writer's history
// persists across messages; otherwise it is reset after each one.
func (d *deflateExtension) compress(payload []byte) ([]byte, error) {
	d.wbuf.Reset()
	if _, err := d.writer.Write(payload); err != nil {
		return nil, errors.NewProtocolError("permessage-deflate compress", err)
	}
	if err := d.writer.Flush(); err != nil {
		return nil, errors.NewProtocolError("permessage-deflate compress", err)
	}
	compressed := bytes.TrimSuffix(d.wbuf.Bytes(), deflateTrailer)
	result := make([]byte, len(compressed))
	copy(result, compressed)
	if d.clientNoContextTakeover {
		d.writer.Reset(&d.wbuf)
	}
	return result, nil
}

// decompress inflates a received message's payload, re-appending the
// trailer permessage-deflate expects and a terminating empty block so the
// inflater sees end-of-stream.
func (d *deflateExtension) decompress(payload []byte) ([]byte, error) {
	d.rbuf.Reset()
	d.rbuf.Write(payload)
	d.rbuf.Write(deflateTrailer)
	d.rbuf.Write(deflateFinalBlock)

	if d.reader == nil {
		d.reader = flate.NewReaderDict(&d.rbuf, d.window)
	} else if err := d.reader.(flate.Resetter).Reset(&d.rbuf, d.window); err != nil {
		return nil, errors.NewProtocolError("permessage-deflate decompress", err)
	}

	out, err := io.ReadAll(d.reader)
	if err != nil {
		return nil, errors.NewProtocolError("permessage-deflate decompress", err)
	}
	if d.serverNoContextTakeover {
		d.window = nil
	} else {
		d.window = append(d.window, out...)
		if len(d.window) > maxWindowSize {
			d.window = d.window[len(d.window)-maxWindowSize:]
		}
	}
	return out, nil
}
