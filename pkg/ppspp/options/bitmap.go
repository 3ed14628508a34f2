package options

import (
	"fmt"

	"github.com/r2northstar/ppspp/pkg/ppspp/msgtype"
	"github.com/r2northstar/ppspp/pkg/ppspp/wire"
)

// MessageSet is a set of message types, as carried by the Supported
// Messages option (code 8). The zero value is the empty set.
type MessageSet map[msgtype.Type]struct{}

// NewMessageSet returns a MessageSet containing types.
func NewMessageSet(types ...msgtype.Type) MessageSet {
	s := make(MessageSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is a member of s.
func (s MessageSet) Has(t msgtype.Type) bool {
	_, ok := s[t]
	return ok
}

// decodeMessageSet reads the Supported Messages option value (length byte
// followed by the bitmap) from data.
//
// The set of messages supported is derived from the compressed bitmap by
// padding it with zero bytes until it covers every declared message type.
// A 1 bit at position N (numbered from the most significant bit of byte 0)
// means the N-th declared message type (msgtype.All[N]) is supported. Bits
// beyond len(msgtype.All) are ignored.
//
//   - https://rfc-editor.org/rfc/rfc7574#section-7.10
func decodeMessageSet(data []byte) (MessageSet, []byte, error) {
	n, data, err := wire.ReadUint8(data)
	if err != nil {
		return nil, nil, err
	}
	raw, data, err := wire.ReadFixed(data, int(n))
	if err != nil {
		return nil, nil, err
	}
	set := MessageSet{}
	for byteIdx, b := range raw {
		for bit := 0; bit < 8; bit++ {
			idx := byteIdx*8 + bit
			if idx >= len(msgtype.All) {
				break
			}
			if b&(0x80>>uint(bit)) != 0 {
				set[msgtype.All[idx]] = struct{}{}
			}
		}
	}
	return set, data, nil
}

// encodeMessageSet packs s into the Supported Messages wire value: a
// length byte followed by the trimmed, MSB-first bitmap.
func encodeMessageSet(s MessageSet) ([]byte, error) {
	nbits := len(msgtype.All)
	nbytes := (nbits + 7) / 8
	raw := make([]byte, nbytes)
	for idx, t := range msgtype.All {
		if s.Has(t) {
			raw[idx/8] |= 0x80 >> uint(idx%8)
		}
	}
	trimmed := len(raw)
	for trimmed > 0 && raw[trimmed-1] == 0 {
		trimmed--
	}
	raw = raw[:trimmed]
	if trimmed > 0xFF {
		return nil, fmt.Errorf("ppspp: supported messages bitmap too long (%d bytes)", trimmed)
	}
	out := wire.PutUint8(nil, uint8(trimmed))
	out = append(out, raw...)
	return out, nil
}
