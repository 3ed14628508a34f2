package conn

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/r2northstar/ppspp/pkg/ppspp/channelid"
	"github.com/r2northstar/ppspp/pkg/ppspp/datagram"
	"github.com/r2northstar/ppspp/pkg/ppspp/message"
	"github.com/r2northstar/ppspp/pkg/ppspp/options"
)

func TestSessionHandshakeOverUDP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	connector := NewUDPConnector()
	defer connector.Close()

	server, err := connector.Listen(ctx, loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	serverAddr, _ := server.LocalAddress()
	serverSession := WrapSession(server, nil)

	client, err := connector.Connect(ctx, serverAddr)
	if err != nil {
		t.Fatal(err)
	}
	clientSession := WrapSession(client, nil)

	v := options.RFC7574
	sourceID := channelid.ID{1, 2, 3, 4}
	want := datagram.New(channelid.Zero, []message.Message{
		message.NewHandshake(sourceID, options.Options{Version: &v}),
	})
	if err := clientSession.SendDatagram(ctx, want, nil); err != nil {
		t.Fatal(err)
	}

	got, _, err := serverSession.RecvDatagram(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSessionKeepaliveDatagram(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	connector := NewUDPConnector()
	defer connector.Close()

	a, err := connector.Listen(ctx, loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	aAddr, _ := a.LocalAddress()
	b, err := connector.Connect(ctx, aAddr)
	if err != nil {
		t.Fatal(err)
	}

	sa, sb := WrapSession(a, nil), WrapSession(b, nil)
	id := channelid.ID{0, 0, 0, 1}
	if err := sb.SendDatagram(ctx, datagram.New(id, nil), nil); err != nil {
		t.Fatal(err)
	}
	got, _, err := sa.RecvDatagram(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ChannelID != id || len(got.Messages) != 0 {
		t.Errorf("got %+v, want a bare keepalive for channel %v", got, id)
	}
}
