package conn

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
)

// Connection is a user-visible handle over an Endpoint owned by a
// Connector. It is acquired via Connector.Connect or Connector.Listen, and
// must be released back to the pool with Release or destroyed with Close;
// an abandoned Connection is a leak, caught best-effort by a finalizer
// (see WithLeakTraceback) and never something correctness should depend on.
//
// The Connector never holds a *Connection itself (see its acquired field)
// precisely so this finalizer can fire: a cyclic structure where any
// member has a finalizer is not guaranteed by the runtime to ever be
// collected, and here Connection already points back at its Connector, so
// the reverse edge has to be avoided rather than relied on.
type Connection struct {
	connector *Connector
	key       Key

	// acquiredAt is the "file:line" of the Connect/Listen call site, set
	// only when the Connector was built WithLeakTraceback.
	acquiredAt string

	mu       sync.Mutex
	endpoint *Endpoint // nil once Closed or Released
}

func newConnection(c *Connector, key Key, ep *Endpoint, acquiredAt string) *Connection {
	conn := &Connection{connector: c, key: key, endpoint: ep, acquiredAt: acquiredAt}
	runtime.SetFinalizer(conn, finalizeConnection)
	return conn
}

// finalizeConnection backstops leaked Connections: if the garbage
// collector reclaims one that was never Closed or Released, close its
// endpoint and report the leak rather than letting the socket dangle.
// This can never substitute for calling Close/Release: it runs at an
// unpredictable time, if at all.
func finalizeConnection(conn *Connection) {
	conn.mu.Lock()
	ep := conn.endpoint
	conn.endpoint = nil
	conn.mu.Unlock()
	if ep == nil {
		return
	}
	conn.connector.closeConnectionEndpoint(conn.key, ep)
	conn.connector.met.Leaks.Inc()
	ev := conn.connector.log.Warn().Str("key", conn.key.String())
	if conn.acquiredAt != "" {
		ev = ev.Str("acquired_at", conn.acquiredAt)
	}
	ev.Msg("ppspp: connection garbage-collected without Close or Release")
}

// endpointSnapshot returns the current endpoint pointer, or nil once the
// connection has been Closed or Released.
func (conn *Connection) endpointSnapshot() *Endpoint {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.endpoint
}

// Closed reports whether the connection has been Closed/Released, or its
// endpoint has detached on its own (transport connection_lost).
func (conn *Connection) Closed() bool {
	conn.mu.Lock()
	ep := conn.endpoint
	conn.mu.Unlock()
	return ep == nil || ep.Closed()
}

// Close destroys the underlying endpoint and removes the connection from
// the connector's acquired set. Idempotent.
func (conn *Connection) Close() {
	conn.mu.Lock()
	ep := conn.endpoint
	if ep == nil {
		conn.mu.Unlock()
		return
	}
	conn.endpoint = nil
	conn.mu.Unlock()
	conn.connector.closeConnection(conn, ep)
	runtime.SetFinalizer(conn, nil)
}

// Release returns the underlying endpoint to the connector's pool under
// this connection's key, for reuse by a future Connect/Listen. Idempotent
// with Close: whichever runs first wins, the other is a no-op.
func (conn *Connection) Release() {
	conn.mu.Lock()
	ep := conn.endpoint
	if ep == nil {
		conn.mu.Unlock()
		return
	}
	conn.endpoint = nil
	conn.mu.Unlock()
	conn.connector.releaseConnection(conn, ep)
	runtime.SetFinalizer(conn, nil)
}

// Key returns the pool key this connection was acquired under.
func (conn *Connection) Key() Key { return conn.key }

// String renders a debug representation: the pool key, local/remote
// address when attached, and a closed-state tag.
func (conn *Connection) String() string {
	if conn.Closed() {
		return fmt.Sprintf("Connection{key=%s, closed}", conn.key)
	}
	local, _ := conn.LocalAddress()
	remote, hasRemote := conn.RemoteAddress()
	if hasRemote {
		return fmt.Sprintf("Connection{key=%s, local=%s, remote=%s}", conn.key, local, remote)
	}
	return fmt.Sprintf("Connection{key=%s, local=%s}", conn.key, local)
}

// Recv suspends until a datagram is delivered, ctx is canceled, or the
// connection is no longer attached.
func (conn *Connection) Recv(ctx context.Context) ([]byte, address.Address, error) {
	conn.mu.Lock()
	ep := conn.endpoint
	conn.mu.Unlock()
	if ep == nil {
		return nil, address.Address{}, ErrNotConnected
	}
	return ep.Recv(ctx)
}

// Send returns once the transport has accepted payload.
func (conn *Connection) Send(ctx context.Context, payload []byte, remote *address.Address) error {
	conn.mu.Lock()
	ep := conn.endpoint
	conn.mu.Unlock()
	if ep == nil {
		return ErrNotConnected
	}
	return ep.Send(ctx, payload, remote)
}

// LocalAddress returns the bound local address, or false if detached.
func (conn *Connection) LocalAddress() (address.Address, bool) {
	conn.mu.Lock()
	ep := conn.endpoint
	conn.mu.Unlock()
	if ep == nil {
		return address.Address{}, false
	}
	return ep.LocalAddress()
}

// RemoteAddress returns the fixed peer address, or false if the endpoint
// is not peer-bound (acquired via Listen) or is detached.
func (conn *Connection) RemoteAddress() (address.Address, bool) {
	conn.mu.Lock()
	ep := conn.endpoint
	conn.mu.Unlock()
	if ep == nil {
		return address.Address{}, false
	}
	return ep.RemoteAddress()
}

// closeConnectionEndpoint is the finalizer's entry point: conn's own
// state was already cleared by finalizeConnection, so this only needs to
// remove ep from acquired[key] (tolerating absence, e.g. if Close/Release
// already ran concurrently) and close it.
func (c *Connector) closeConnectionEndpoint(key Key, ep *Endpoint) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.forget(key, ep)
	c.mu.Unlock()
	ep.Close()
}
