// Package datagram implements the PPSPP datagram codec: a channel ID
// prefix followed by a sequence of messages. One Datagram is one transport
// payload.
//
//   - https://rfc-editor.org/rfc/rfc7574#section-1.3
package datagram

import (
	"github.com/r2northstar/ppspp/pkg/ppspp/channelid"
	"github.com/r2northstar/ppspp/pkg/ppspp/message"
)

// Datagram is PPSPP's protocol data unit: a channel ID and an ordered
// sequence of messages. An empty message sequence is a keepalive.
type Datagram struct {
	ChannelID channelid.ID
	Messages  []message.Message
}

// New constructs a Datagram.
func New(id channelid.ID, messages []message.Message) Datagram {
	return Datagram{ChannelID: id, Messages: messages}
}

// Decode decodes data into a Datagram using the default message handler
// table (HANDSHAKE only). Use DecodeWith for a custom table.
func Decode(data []byte) (Datagram, error) {
	return DecodeWith(data, nil)
}

// DecodeWith decodes data into a Datagram, dispatching message bodies
// through handlers. A nil handlers uses message.Decode's default table.
func DecodeWith(data []byte, handlers *message.Handlers) (Datagram, error) {
	id, rest, err := channelid.Decode(data)
	if err != nil {
		return Datagram{}, err
	}
	var messages []message.Message
	if handlers != nil {
		messages, err = handlers.Decode(rest)
	} else {
		messages, err = message.Decode(rest)
	}
	if err != nil {
		return Datagram{}, err
	}
	return Datagram{ChannelID: id, Messages: messages}, nil
}

// Encode encodes d using the default message handler table.
func Encode(d Datagram) ([]byte, error) {
	return EncodeWith(d, nil)
}

// EncodeWith encodes d, dispatching message bodies through handlers. A nil
// handlers uses message.Encode's default table.
func EncodeWith(d Datagram, handlers *message.Handlers) ([]byte, error) {
	dst := channelid.Encode(nil, d.ChannelID)
	var err error
	if handlers != nil {
		dst, err = handlers.Encode(dst, d.Messages)
	} else {
		dst, err = message.Encode(dst, d.Messages)
	}
	if err != nil {
		return nil, err
	}
	return dst, nil
}
