package h2

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHPACKEncodeDecodeRoundTrip(t *testing.T) {
	enc := newHPACKCodec(4096)
	dec := newHPACKCodec(4096)

	pseudo := []hpackField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: ":path", Value: "/index.html"},
	}
	regular := []hpackField{
		{Name: "accept", Value: "*/*"},
		{Name: "cookie", Value: "a=1"},
		{Name: "cookie", Value: "b=2"},
	}

	block, err := enc.encodeHeaders(pseudo, regular)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	fields, err := dec.decodeHeaders(block)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	want := append(append([]hpackField(nil), pseudo...), regular...)
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("round trip changed the header list:\n%s", diff)
	}
}

func TestHPACKSameNameOrderPreserved(t *testing.T) {
	enc := newHPACKCodec(4096)
	dec := newHPACKCodec(4096)

	regular := []hpackField{
		{Name: "set-cookie", Value: "first"},
		{Name: "set-cookie", Value: "second"},
		{Name: "set-cookie", Value: "third"},
	}
	block, err := enc.encodeHeaders(nil, regular)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	fields, err := dec.decodeHeaders(block)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	for i, want := range []string{"first", "second", "third"} {
		if fields[i].Value != want {
			t.Fatalf("same-name order not preserved: %+v", fields)
		}
	}
}

func TestHPACKSharedDynamicTableAcrossBlocks(t *testing.T) {
	enc := newHPACKCodec(4096)
	dec := newHPACKCodec(4096)

	first := []hpackField{{Name: "x-custom", Value: "repeated-value"}}
	block1, err := enc.encodeHeaders(nil, first)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := dec.decodeHeaders(block1); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// The second block should reference the shared dynamic table and still
	// decode to the same field.
	block2, err := enc.encodeHeaders(nil, first)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	fields, err := dec.decodeHeaders(block2)
	if err != nil {
		t.Fatalf("decode of table-referencing block failed: %v", err)
	}
	if len(fields) != 1 || fields[0].Value != "repeated-value" {
		t.Fatalf("unexpected decode: %+v", fields)
	}
	if len(block2) >= len(block1) {
		t.Fatalf("second block should be smaller via dynamic-table reference: %d vs %d", len(block2), len(block1))
	}
}

func TestStreamStateTransitions(t *testing.T) {
	s := newStream(1, 65535)
	if s.State() != StateIdle {
		t.Fatalf("new stream should be idle")
	}
	s.setState(StateOpen)
	if s.State() != StateOpen {
		t.Fatalf("expected open")
	}
	s.setState(StateHalfClosedRemote)
	if s.State() != StateHalfClosedRemote {
		t.Fatalf("expected half-closed remote")
	}
}

func TestStreamSendWindow(t *testing.T) {
	s := newStream(1, 10)
	if !s.consumeSendWindow(10) {
		t.Fatalf("full window should be consumable")
	}
	if s.consumeSendWindow(1) {
		t.Fatalf("exhausted window must block further sends")
	}
	s.addSendWindow(5)
	if !s.consumeSendWindow(5) {
		t.Fatalf("WINDOW_UPDATE should replenish the send window")
	}
}
