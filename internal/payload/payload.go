// Package payload renders datagram payloads for the traffic log. Text is
// shown as is; anything else is shown in a degraded form instead of being
// dropped.
package payload

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/pion/rtp"
)

const hexPreview = 16

// DecodeError reports a payload that is not valid UTF-8
type DecodeError struct {
	Size   int
	Offset int // first invalid byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("payload of %d bytes is not valid UTF-8 at offset %d", e.Size, e.Offset)
}

// Describe returns the text of b. When b is not UTF-8 it returns a
// placeholder rendering together with a *DecodeError.
func Describe(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}

	decodeErr := &DecodeError{Size: len(b), Offset: invalidOffset(b)}

	if s, ok := describeRTP(b); ok {
		return s, decodeErr
	}
	return describeRaw(b), decodeErr
}

// Text is Describe without the error
func Text(b []byte) string {
	s, _ := Describe(b)
	return s
}

func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}

// describeRTP recognises media packets that end up on the relay port
func describeRTP(b []byte) (string, bool) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(b); err != nil {
		return "", false
	}
	if pkt.Version != 2 {
		return "", false
	}
	return fmt.Sprintf("<rtp pt=%d seq=%d ts=%d ssrc=%d payload=%dB>",
		pkt.PayloadType, pkt.SequenceNumber, pkt.Timestamp, pkt.SSRC, len(pkt.Payload)), true
}

func describeRaw(b []byte) string {
	preview := b
	suffix := ""
	if len(preview) > hexPreview {
		preview = preview[:hexPreview]
		suffix = "..."
	}
	return fmt.Sprintf("<%d bytes: %s%s>", len(b), hex.EncodeToString(preview), suffix)
}
