package conn

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
	"github.com/r2northstar/ppspp/pkg/ppspp/metricsx"
)

func loopback(t *testing.T) address.Address {
	t.Helper()
	a, err := address.New("127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// TestEndpointKeepaliveLoopback is scenario 6 from spec.md §8: one loopback
// endpoint sends a keepalive-shaped payload to another, which receives it
// from the sender's port.
func TestEndpointKeepaliveLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := ListenUDP(ctx, loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := ListenUDP(ctx, loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	aAddr, ok := a.LocalAddress()
	if !ok {
		t.Fatal("a has no local address")
	}
	bAddr, ok := b.LocalAddress()
	if !ok {
		t.Fatal("b has no local address")
	}

	payload := []byte{0, 0, 0, 1} // a bare ChannelID: the keepalive shape
	if err := a.Send(ctx, payload, &bAddr); err != nil {
		t.Fatal(err)
	}

	got, from, err := b.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %v, want %v", got, payload)
	}
	if from.Port() != aAddr.Port() {
		t.Errorf("got from port %d, want %d", from.Port(), aAddr.Port())
	}
}

func TestEndpointDetachedAfterClose(t *testing.T) {
	ctx := context.Background()
	e, err := ListenUDP(ctx, loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	if e.Closed() {
		t.Fatal("freshly listening endpoint reports Closed")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !e.Closed() {
		t.Error("endpoint should be Closed after Close")
	}

	peer := loopback(t)
	if _, _, err := e.Recv(ctx); err != ErrNotConnected {
		t.Errorf("Recv on detached endpoint = %v, want ErrNotConnected", err)
	}
	if err := e.Send(ctx, []byte{1}, &peer); err != ErrNotConnected {
		t.Errorf("Send on detached endpoint = %v, want ErrNotConnected", err)
	}

	// idempotent
	if err := e.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestEndpointRecvRespectsContextCancellation(t *testing.T) {
	e, err := ListenUDP(context.Background(), loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = e.Recv(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Recv = %v, want context.DeadlineExceeded", err)
	}
}

func TestEndpointDialHasFixedPeer(t *testing.T) {
	ctx := context.Background()
	listener, err := ListenUDP(ctx, loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	listenerAddr, _ := listener.LocalAddress()

	dialer, err := DialUDP(ctx, nil, &listenerAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer dialer.Close()

	if _, ok := dialer.RemoteAddress(); !ok {
		t.Error("dialed endpoint should report a fixed remote address")
	}
	if _, ok := listener.RemoteAddress(); ok {
		t.Error("listening endpoint should not report a fixed remote address")
	}

	// a peer-bound endpoint doesn't need an explicit remote on Send.
	if err := dialer.Send(ctx, []byte{9}, nil); err != nil {
		t.Fatal(err)
	}
	got, _, err := listener.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{9}) {
		t.Errorf("got %v, want [9]", got)
	}
}

func TestEndpointSendWithoutPeerRequiresRemote(t *testing.T) {
	e, err := ListenUDP(context.Background(), loopback(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Send(context.Background(), []byte{1}, nil); err == nil {
		t.Error("Send with no peer and no remote override should fail")
	}
}

func TestEndpointRecvQueueLimitDropsExcess(t *testing.T) {
	e := &Endpoint{
		log:        zerolog.Nop(),
		queueLimit: 1,
		wake:       make(chan struct{}, 1),
		readDone:   make(chan struct{}),
		met:        metricsx.NewEndpoint(nil),
	}
	addr := loopback(t)
	e.enqueue(recvItem{payload: []byte{1}, addr: addr})
	e.enqueue(recvItem{payload: []byte{2}, addr: addr})
	e.enqueue(recvItem{payload: []byte{3}, addr: addr})

	if got := e.met.Dropped.Get(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}

	payload, _, err := e.Recv(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, []byte{1}) {
		t.Errorf("got %v, want [1], the queue should keep the oldest item", payload)
	}
}
