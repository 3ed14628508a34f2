package message

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/r2northstar/ppspp/pkg/ppspp/channelid"
	"github.com/r2northstar/ppspp/pkg/ppspp/msgtype"
	"github.com/r2northstar/ppspp/pkg/ppspp/options"
)

func TestHandshakeRoundTrip(t *testing.T) {
	v := options.RFC7574
	id := channelid.ID{1, 2, 3, 4}
	want := []Message{NewHandshake(id, options.Options{Version: &v})}

	enc, err := Encode(nil, want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestMultipleMessages(t *testing.T) {
	id1 := channelid.ID{1, 1, 1, 1}
	id2 := channelid.ID{2, 2, 2, 2}
	want := []Message{
		NewHandshake(id1, options.Options{}),
		NewHandshake(id2, options.Options{}),
	}
	enc, err := Encode(nil, want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUnknownMessageType(t *testing.T) {
	_, err := Decode([]byte{0x0A, 0xFF})
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("got %v, want ErrUnknownMessageType", err)
	}
}

func TestEmptyInputDecodesToNoMessages(t *testing.T) {
	got, err := Decode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages, want 0", len(got))
	}
}

func TestCustomHandlerRegistration(t *testing.T) {
	h := NewHandlers()
	h.Register(msgtype.ACK, func(data []byte) (Message, []byte, error) {
		return ackMessage{}, data, nil
	}, func(dst []byte, m Message) ([]byte, error) {
		return dst, nil
	})
	msgs, err := h.Decode([]byte{byte(msgtype.ACK)})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Type() != msgtype.ACK {
		t.Errorf("expected a single ACK message, got %+v", msgs)
	}
}

type ackMessage struct{}

func (ackMessage) Type() msgtype.Type { return msgtype.ACK }

func TestEncodeUnregisteredType(t *testing.T) {
	_, err := Encode(nil, []Message{ackMessage{}})
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("got %v, want ErrUnknownMessageType", err)
	}
}

func TestHandshakeWireShape(t *testing.T) {
	id := channelid.ID{0xAA, 0xBB, 0xCC, 0xDD}
	enc, err := Encode(nil, []Message{NewHandshake(id, options.Options{})})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{byte(msgtype.HANDSHAKE), 0xAA, 0xBB, 0xCC, 0xDD, 0xFF}
	if !bytes.Equal(enc, want) {
		t.Errorf("got %v, want %v", enc, want)
	}
}
