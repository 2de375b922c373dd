package websocket

import (
	"crypto/rand"
	"encoding/binary"

	gorilla "github.com/gorilla/websocket"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// Close codes re-exported from RFC 6455 §7.4.1 via gorilla's constant table.
const (
	CloseNormal          = gorilla.CloseNormalClosure
	CloseGoingAway       = gorilla.CloseGoingAway
	CloseProtocolError   = gorilla.CloseProtocolError
	CloseUnsupportedData = gorilla.CloseUnsupportedData
	CloseMessageTooBig   = gorilla.CloseMessageTooBig
)

func encodeCloseFrame(code int, reason string) []byte {
	if code == 0 {
		return nil
	}
	return gorilla.FormatCloseMessage(code, reason)
}

func closeCodeFromPayload(payload []byte) int {
	if len(payload) < 2 {
		return CloseNormal
	}
	return int(binary.BigEndian.Uint16(payload))
}

func randomMaskKey(k *[4]byte) error {
	if _, err := rand.Read(k[:]); err != nil {
		return errors.NewIOError("generate websocket mask key", err)
	}
	return nil
}
