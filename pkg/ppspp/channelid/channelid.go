// Package channelid implements PPSPP channel identifiers.
//
// A channel ID is a 4-byte value a peer assigns to a logical channel;
// source/destination channel IDs prefix every datagram.
//
//   - https://rfc-editor.org/rfc/rfc7574#section-8.3 (Channel IDs)
package channelid

import (
	"crypto/rand"
	"fmt"

	"github.com/r2northstar/ppspp/pkg/ppspp/wire"
)

// Size is the fixed wire width of a ChannelID, in bytes.
const Size = 4

// ID is a channel identifier, local to each peer.
type ID [Size]byte

// Zero is the distinguished all-zero channel ID. Datagrams sent by the
// initiating peer during handshake use Zero as the destination channel ID;
// a peer closing a channel explicitly sends a handshake with Zero as the
// source channel ID.
//
//   - https://rfc-editor.org/rfc/rfc7574#section-8.4
var Zero ID

// New returns a new, random channel ID.
func New() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("ppspp: generate channel id: %w", err)
	}
	return id, nil
}

// Decode reads a ChannelID from the front of data and returns it along with
// the remaining bytes.
func Decode(data []byte) (id ID, rest []byte, err error) {
	b, rest, err := wire.ReadFixed(data, Size)
	if err != nil {
		return ID{}, nil, fmt.Errorf("ppspp: decode channel id: %w", err)
	}
	copy(id[:], b)
	return id, rest, nil
}

// Encode appends the wire encoding of id to dst.
func Encode(dst []byte, id ID) []byte {
	return append(dst, id[:]...)
}

// String returns the hex representation of id.
func (id ID) String() string {
	const hex = "0123456789abcdef"
	var b [Size * 2]byte
	for i, c := range id {
		b[i*2] = hex[c>>4]
		b[i*2+1] = hex[c&0xF]
	}
	return string(b[:])
}
