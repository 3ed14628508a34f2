package message

import (
	"github.com/r2northstar/ppspp/pkg/ppspp/channelid"
	"github.com/r2northstar/ppspp/pkg/ppspp/msgtype"
	"github.com/r2northstar/ppspp/pkg/ppspp/options"
)

// Handshake is the first message exchanged by peers: it negotiates channel
// identifiers and protocol options.
//
// The initiating peer sends a datagram with channel_id=ZERO and a single
// Handshake message carrying its own SourceChannelID and ProtocolOptions.
// Explicit teardown uses the same shape with SourceChannelID=ZERO.
//
//   - https://rfc-editor.org/rfc/rfc7574#section-8.4
type Handshake struct {
	SourceChannelID channelid.ID
	ProtocolOptions options.Options
}

// Type implements Message.
func (Handshake) Type() msgtype.Type { return msgtype.HANDSHAKE }

// NewHandshake constructs a Handshake message.
func NewHandshake(sourceChannelID channelid.ID, opts options.Options) Handshake {
	return Handshake{SourceChannelID: sourceChannelID, ProtocolOptions: opts}
}

func decodeHandshake(data []byte) (Message, []byte, error) {
	// 8.4.  HANDSHAKE
	//
	// 0                   1                   2                   3
	// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |0 0 0 0 0 0 0 0|            Source Channel ID (32)             |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |               |                                               ~
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |                                                               |
	// ~                     Protocol Options                          ~
	// |                                                               |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//
	id, rest, err := channelid.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	opts, rest, err := options.Decode(rest)
	if err != nil {
		return nil, nil, err
	}
	return Handshake{SourceChannelID: id, ProtocolOptions: opts}, rest, nil
}

func encodeHandshake(dst []byte, m Message) ([]byte, error) {
	h := m.(Handshake)
	dst = channelid.Encode(dst, h.SourceChannelID)
	return options.Encode(dst, h.ProtocolOptions)
}
