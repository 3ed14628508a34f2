// Package conn implements the connection-management runtime: the Endpoint
// protocol (C7) and the Connector (C8). Both are grounded on the
// mutex-guarded socket state and channel-based wait/notify idioms used
// throughout the rest of this module, adapted from a single-threaded
// asyncio model to goroutines and context.Context.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/rs/zerolog"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
	"github.com/r2northstar/ppspp/pkg/ppspp/metricsx"
)

// ErrNotConnected is returned by Recv/Send when the endpoint is detached.
var ErrNotConnected = errors.New("ppspp: not connected")

const maxDatagramSize = 65507

type recvItem struct {
	payload []byte
	addr    address.Address
}

// Endpoint owns a live UDP socket and an in-memory FIFO of received
// (payload, Address) pairs. It starts Attached (bound to a real socket);
// Close (or a read error reported by the OS) moves it to Detached, which
// is permanent. See spec.md §4.6.
//
// By default the receive FIFO is unbounded, matching the reference
// behavior; pass WithRecvQueueLimit on construction to bound it and drop
// the newest datagram once full (counted in the Dropped metric).
type Endpoint struct {
	log zerolog.Logger
	met *metricsx.Endpoint

	queueLimit int

	mu       sync.Mutex
	conn     *net.UDPConn
	remote   address.Address
	hasPeer  bool // conn was created via Dial: there is a fixed peer
	queue    []recvItem
	detached bool

	wake     chan struct{} // non-blocking signal, buffered size 1
	readDone chan struct{} // closed once the read pump exits
}

// EndpointOption configures a newly constructed Endpoint.
type EndpointOption func(*Endpoint)

// WithRecvQueueLimit bounds the receive FIFO. A limit of 0 (the default)
// leaves it unbounded.
func WithRecvQueueLimit(n int) EndpointOption {
	return func(e *Endpoint) { e.queueLimit = n }
}

// WithLogger attaches a logger to the endpoint.
func WithLogger(log zerolog.Logger) EndpointOption {
	return func(e *Endpoint) { e.log = log }
}

func newEndpoint(conn *net.UDPConn, peer *address.Address, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		log:      zerolog.Nop(),
		conn:     conn,
		wake:     make(chan struct{}, 1),
		readDone: make(chan struct{}),
	}
	if peer != nil {
		e.remote = *peer
		e.hasPeer = true
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.met == nil {
		e.met = metricsx.NewEndpoint(nil)
	}
	go e.pump(conn)
	return e
}

// DialUDP creates an Endpoint bound to a single remote peer (connection_made
// fires immediately; the kernel performs no handshake for UDP). local may be
// nil to let the OS choose an ephemeral source address.
func DialUDP(ctx context.Context, local, remote *address.Address, opts ...EndpointOption) (*Endpoint, error) {
	var laddr *net.UDPAddr
	if local != nil {
		a := net.UDPAddrFromAddrPort(local.AddrPort())
		laddr = &a
	}
	var raddr *net.UDPAddr
	if remote != nil {
		a := net.UDPAddrFromAddrPort(remote.AddrPort())
		raddr = &a
	}
	c, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, err
	}
	return newEndpoint(c, remote, opts...), nil
}

// ListenUDP creates an Endpoint bound to local and not pinned to any single
// peer; RemoteAddress is always absent.
func ListenUDP(ctx context.Context, local address.Address, opts ...EndpointOption) (*Endpoint, error) {
	laddr := local.AddrPort()
	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(ctx, "udp", laddr.String())
	if err != nil {
		return nil, err
	}
	c := pc.(*net.UDPConn)
	return newEndpoint(c, nil, opts...), nil
}

// pump reads datagrams off conn until it errors (either because Close was
// called or the OS reported connection_lost), then detaches the endpoint.
func (e *Endpoint) pump(conn *net.UDPConn) {
	defer close(e.readDone)
	buf := make([]byte, maxDatagramSize)
	for {
		n, ap, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			e.log.Debug().Err(err).Msg("ppspp: endpoint read loop exiting")
			e.detach()
			return
		}
		payload := append([]byte(nil), buf[:n]...)
		e.enqueue(recvItem{payload: payload, addr: address.FromAddrPort(ap)})
	}
}

func (e *Endpoint) enqueue(item recvItem) {
	e.mu.Lock()
	if e.queueLimit > 0 && len(e.queue) >= e.queueLimit {
		e.mu.Unlock()
		e.met.Dropped.Inc()
		return
	}
	e.queue = append(e.queue, item)
	e.mu.Unlock()
	e.met.RxDatagrams.Inc()
	e.met.RxBytes.Add(len(item.payload))
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// detach moves the endpoint to Detached, idempotently.
func (e *Endpoint) detach() {
	e.mu.Lock()
	if e.detached {
		e.mu.Unlock()
		return
	}
	e.detached = true
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Closed reports whether the endpoint is Detached.
func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached
}

// Close drops the transport. Idempotent.
func (e *Endpoint) Close() error {
	e.detach()
	<-e.readDone
	return nil
}

// Conn returns the underlying *net.UDPConn, or nil if Detached. Exposed
// for callers that need to tune socket options (e.g. via golang.org/x/sys)
// beyond what this package sets itself.
func (e *Endpoint) Conn() *net.UDPConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}

// Recv suspends until a datagram is delivered, ctx is canceled, or the
// endpoint detaches.
func (e *Endpoint) Recv(ctx context.Context) ([]byte, address.Address, error) {
	for {
		e.mu.Lock()
		if len(e.queue) > 0 {
			item := e.queue[0]
			e.queue[0] = recvItem{}
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return item.payload, item.addr, nil
		}
		detached := e.detached
		e.mu.Unlock()
		if detached {
			return nil, address.Address{}, ErrNotConnected
		}
		select {
		case <-e.wake:
		case <-ctx.Done():
			return nil, address.Address{}, ctx.Err()
		}
	}
}

// Send returns once the transport has accepted payload. remote overrides
// the endpoint's fixed peer (if any); it is required when the endpoint has
// none.
func (e *Endpoint) Send(ctx context.Context, payload []byte, remote *address.Address) error {
	e.mu.Lock()
	conn := e.conn
	hasPeer := e.hasPeer
	detached := e.detached
	e.mu.Unlock()
	if detached || conn == nil {
		return ErrNotConnected
	}

	var (
		n   int
		err error
	)
	switch {
	case remote != nil:
		n, err = conn.WriteToUDPAddrPort(payload, remote.AddrPort())
	case hasPeer:
		n, err = conn.Write(payload)
	default:
		return fmt.Errorf("ppspp: send requires a remote address on an unconnected endpoint")
	}
	if err != nil {
		return fmt.Errorf("ppspp: send: %w", err)
	}
	e.met.TxDatagrams.Inc()
	e.met.TxBytes.Add(n)
	return nil
}

// LocalAddress returns the endpoint's bound local address, or false if
// Detached.
func (e *Endpoint) LocalAddress() (address.Address, bool) {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return address.Address{}, false
	}
	ap, ok := addrPortOf(conn.LocalAddr())
	if !ok {
		return address.Address{}, false
	}
	return address.FromAddrPort(ap), true
}

// RemoteAddress returns the endpoint's fixed peer, or false if the
// endpoint was created with ListenUDP (not peer-bound) or is Detached.
func (e *Endpoint) RemoteAddress() (address.Address, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached || !e.hasPeer {
		return address.Address{}, false
	}
	return e.remote, true
}

func addrPortOf(a net.Addr) (netip.AddrPort, bool) {
	ua, ok := a.(*net.UDPAddr)
	if !ok || ua == nil {
		return netip.AddrPort{}, false
	}
	return ua.AddrPort(), true
}
