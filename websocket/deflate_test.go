package websocket

import (
	"bytes"
	"testing"
)

func TestDeflateRoundTripContextTakeover(t *testing.T) {
	sender, err := newDeflateExtension(false, false)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	receiver, err := newDeflateExtension(false, false)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	messages := [][]byte{
		[]byte("first message with some repetition repetition repetition"),
		[]byte("second message with some repetition repetition repetition"),
		[]byte("third"),
	}
	for i, msg := range messages {
		compressed, err := sender.compress(msg)
		if err != nil {
			t.Fatalf("compress %d failed: %v", i, err)
		}
		if bytes.HasSuffix(compressed, deflateTrailer) {
			t.Fatalf("sync trailer must be stripped on send")
		}
		out, err := receiver.decompress(compressed)
		if err != nil {
			t.Fatalf("decompress %d failed: %v", i, err)
		}
		if !bytes.Equal(out, msg) {
			t.Fatalf("round trip %d changed the payload: %q != %q", i, out, msg)
		}
	}
}

func TestDeflateRoundTripNoContextTakeover(t *testing.T) {
	sender, err := newDeflateExtension(true, true)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	receiver, err := newDeflateExtension(true, true)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		msg := []byte("independent message, no shared compression context")
		compressed, err := sender.compress(msg)
		if err != nil {
			t.Fatalf("compress %d failed: %v", i, err)
		}
		out, err := receiver.decompress(compressed)
		if err != nil {
			t.Fatalf("decompress %d failed: %v", i, err)
		}
		if !bytes.Equal(out, msg) {
			t.Fatalf("round trip %d changed the payload", i)
		}
	}
}

func TestDeflateEmptyPayload(t *testing.T) {
	sender, _ := newDeflateExtension(false, false)
	receiver, _ := newDeflateExtension(false, false)
	compressed, err := sender.compress(nil)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	out, err := receiver.decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(out))
	}
}
