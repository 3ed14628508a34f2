// Package message implements the PPSPP message codec: a pluggable
// dispatch table mapping each message type tag to a decode/encode pair,
// with the HANDSHAKE message built in (every other message kind is
// out of scope for this library; see spec.md §1).
package message

import (
	"errors"
	"fmt"

	"github.com/r2northstar/ppspp/pkg/ppspp/msgtype"
	"github.com/r2northstar/ppspp/pkg/ppspp/wire"
)

// ErrUnknownMessageType is returned when a tag byte has no registered
// handler.
var ErrUnknownMessageType = errors.New("ppspp: unknown message type")

// Message is the interface every decodable/encodable PPSPP message
// implements.
type Message interface {
	// Type returns the message's wire tag.
	Type() msgtype.Type
}

// DecodeFunc decodes a single message body (the bytes after the tag byte)
// and returns the message along with any unconsumed bytes.
type DecodeFunc func(data []byte) (Message, []byte, error)

// EncodeFunc appends a message's body (not including the tag byte) to dst.
type EncodeFunc func(dst []byte, m Message) ([]byte, error)

type handler struct {
	decode DecodeFunc
	encode EncodeFunc
}

// Handlers is a pluggable table of per-message-type decode/encode
// functions. NewHandlers returns a table holding the built-in HANDSHAKE
// handler; callers add further message kinds with Register. The zero value
// holds no handlers at all, not even HANDSHAKE.
type Handlers struct {
	byType map[msgtype.Type]handler
}

// NewHandlers returns a Handlers table seeded with the built-in HANDSHAKE
// handler.
func NewHandlers() *Handlers {
	h := &Handlers{byType: make(map[msgtype.Type]handler)}
	h.Register(msgtype.HANDSHAKE, decodeHandshake, encodeHandshake)
	return h
}

// Register adds or replaces the decode/encode pair for typ.
func (h *Handlers) Register(typ msgtype.Type, decode DecodeFunc, encode EncodeFunc) {
	if h.byType == nil {
		h.byType = make(map[msgtype.Type]handler)
	}
	h.byType[typ] = handler{decode: decode, encode: encode}
}

// Decode reads a sequence of messages from data, consuming it entirely.
// Wire order is preserved in the returned slice.
func (h *Handlers) Decode(data []byte) ([]Message, error) {
	var messages []Message
	for len(data) > 0 {
		m, rest, err := h.decodeOne(data)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
		data = rest
	}
	return messages, nil
}

func (h *Handlers) decodeOne(data []byte) (Message, []byte, error) {
	raw, rest, err := wire.ReadUint8(data)
	if err != nil {
		return nil, nil, err
	}
	typ := msgtype.Type(raw)
	hdl, ok := h.byType[typ]
	if !ok {
		return nil, nil, fmt.Errorf("%w: tag %d", ErrUnknownMessageType, raw)
	}
	return hdl.decode(rest)
}

// Encode appends the wire encoding of messages, in order, to dst.
func (h *Handlers) Encode(dst []byte, messages []Message) ([]byte, error) {
	for _, m := range messages {
		var err error
		dst, err = h.encodeOne(dst, m)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (h *Handlers) encodeOne(dst []byte, m Message) ([]byte, error) {
	hdl, ok := h.byType[m.Type()]
	if !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownMessageType, uint8(m.Type()))
	}
	dst = wire.PutUint8(dst, uint8(m.Type()))
	return hdl.encode(dst, m)
}

// defaultHandlers is used by the package-level Decode/Encode convenience
// functions, which only ever see HANDSHAKE messages (the only message kind
// this library implements).
var defaultHandlers = NewHandlers()

// Decode is a convenience wrapper around (*Handlers).Decode using only the
// built-in HANDSHAKE handler.
func Decode(data []byte) ([]Message, error) {
	return defaultHandlers.Decode(data)
}

// Encode is a convenience wrapper around (*Handlers).Encode using only the
// built-in HANDSHAKE handler.
func Encode(dst []byte, messages []Message) ([]byte, error) {
	return defaultHandlers.Encode(dst, messages)
}
