package conn

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
	"github.com/r2northstar/ppspp/pkg/ppspp/metricsx"
)

// ErrConnectTimeout is wrapped around the underlying cause when endpoint
// creation exceeds the Connector's configured budget.
var ErrConnectTimeout = errors.New("ppspp: connect timeout")

// ErrTransportError is wrapped around the underlying cause when the OS
// refuses to create an endpoint.
var ErrTransportError = errors.New("ppspp: transport error")

// ErrConnectorClosed is returned by Connect/Listen once the connector has
// been closed.
var ErrConnectorClosed = errors.New("ppspp: connector closed")

// Key identifies a pool/acquired-set bucket: the remote address for
// Connect, the local address for Listen. See spec.md §4.7.
type Key = address.Address

// CreateEndpointFunc materializes a fresh Endpoint. local is set for
// Listen, remote for Connect; exactly one of them is non-nil.
type CreateEndpointFunc func(ctx context.Context, local, remote *address.Address) (*Endpoint, error)

// Connector owns a pool of idle endpoints keyed by Address, and tracks
// which endpoints are currently wrapped in a live Connection. Grounded on
// the mutex-guarded socket bookkeeping used elsewhere in this module,
// generalized from "one socket" to "a pool of sockets keyed by peer".
type Connector struct {
	createEndpoint   CreateEndpointFunc
	connectTimeout   time.Duration
	captureTraceback bool
	log              zerolog.Logger
	met              *metricsx.Connector

	mu     sync.Mutex
	closed bool
	pool   map[Key][]*Endpoint

	// acquired tracks which endpoints are currently checked out of the
	// pool, keyed by the same Key as pool. It holds *Endpoint, not
	// *Connection: a Connection already owns its endpoint uniquely (two
	// Connections never share one, see spec.md §5), and an endpoint
	// pointer is enough for Close/Release/the finalizer to identify which
	// entry to remove. Storing *Connection here instead would hold a
	// strong reference from Connector back to every Connection it has
	// ever handed out — since Connection.connector already points the
	// other way, that would keep every acquired Connection permanently
	// reachable through the Connector and the leak finalizer below would
	// never run for it.
	acquired map[Key]map[*Endpoint]struct{}
}

// Option configures a Connector.
type Option func(*Connector)

// WithConnectTimeout bounds how long endpoint creation may take. Zero (the
// default) means no timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Connector) { c.connectTimeout = d }
}

// WithConnectorLogger attaches a logger to the connector.
func WithConnectorLogger(log zerolog.Logger) Option {
	return func(c *Connector) { c.log = log }
}

// WithLeakTraceback records the call site of every Connect/Listen so the
// leak diagnostic (see Connection's doc comment) can report where an
// abandoned connection was acquired. Best-effort only: it costs a
// runtime.Caller lookup per acquisition, so it's opt-in.
func WithLeakTraceback() Option {
	return func(c *Connector) { c.captureTraceback = true }
}

// WithMetrics registers the connector's counters into set instead of an
// unregistered, process-invisible one. Endpoint counters are not affected:
// each endpoint keeps its own unregistered set.
func WithMetrics(set *metrics.Set) Option {
	return func(c *Connector) { c.met = metricsx.NewConnector(set) }
}

// NewConnector builds a Connector that materializes endpoints through
// createEndpoint.
func NewConnector(createEndpoint CreateEndpointFunc, opts ...Option) *Connector {
	c := &Connector{
		createEndpoint: createEndpoint,
		log:            zerolog.Nop(),
		pool:           make(map[Key][]*Endpoint),
		acquired:       make(map[Key]map[*Endpoint]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.met == nil {
		c.met = metricsx.NewConnector(nil)
	}
	return c
}

// NewUDPConnector builds a Connector whose endpoints are real UDP
// sockets: Connect dials remote, Listen binds local.
func NewUDPConnector(opts ...Option) *Connector {
	return NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		if remote != nil {
			return DialUDP(ctx, local, remote)
		}
		return ListenUDP(ctx, *local)
	}, opts...)
}

// Connect acquires a Connection keyed by remote, reusing a pooled
// endpoint if one is idle, otherwise dialing a fresh one.
func (c *Connector) Connect(ctx context.Context, remote address.Address) (*Connection, error) {
	return c.acquire(ctx, remote, nil, &remote)
}

// Listen acquires a Connection keyed by local, reusing a pooled endpoint
// if one is idle, otherwise binding a fresh one.
func (c *Connector) Listen(ctx context.Context, local address.Address) (*Connection, error) {
	return c.acquire(ctx, local, &local, nil)
}

func (c *Connector) acquire(ctx context.Context, key Key, local, remote *address.Address) (*Connection, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectorClosed
	}
	if stack := c.pool[key]; len(stack) > 0 {
		ep := stack[len(stack)-1]
		stack[len(stack)-1] = nil
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			delete(c.pool, key)
		} else {
			c.pool[key] = stack
		}
		conn := c.wrap(key, ep)
		c.mu.Unlock()
		c.met.PoolHits.Inc()
		return conn, nil
	}
	c.mu.Unlock()

	createCtx := ctx
	var cancel context.CancelFunc
	if c.connectTimeout > 0 {
		createCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}

	start := time.Now()
	ep, err := c.createEndpoint(createCtx, local, remote)
	c.met.ConnectTime.Update(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(createCtx.Err(), context.DeadlineExceeded) {
			c.met.Timeouts.Inc()
			return nil, fmt.Errorf("%w: %w", ErrConnectTimeout, err)
		}
		c.met.TransportFail.Inc()
		return nil, fmt.Errorf("%w: %w", ErrTransportError, err)
	}
	if createCtx.Err() != nil {
		// The timeout fired concurrently with a successful create: the
		// endpoint must not leak into pool or acquired (spec.md §5).
		ep.Close()
		c.met.Timeouts.Inc()
		return nil, fmt.Errorf("%w: %w", ErrConnectTimeout, createCtx.Err())
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ep.Close()
		return nil, ErrConnectorClosed
	}
	conn := c.wrap(key, ep)
	c.mu.Unlock()
	c.met.PoolMisses.Inc()
	return conn, nil
}

// wrap must be called with c.mu held.
func (c *Connector) wrap(key Key, ep *Endpoint) *Connection {
	var acquiredAt string
	if c.captureTraceback {
		if _, file, line, ok := runtime.Caller(3); ok {
			acquiredAt = fmt.Sprintf("%s:%d", file, line)
		}
	}
	set := c.acquired[key]
	if set == nil {
		set = make(map[*Endpoint]struct{})
		c.acquired[key] = set
	}
	set[ep] = struct{}{}
	return newConnection(c, key, ep, acquiredAt)
}

// closeConnection removes ep from acquired[key] (tolerating absence) and
// closes it. Invoked by Connection.Close, which has already detached ep
// from conn itself.
func (c *Connector) closeConnection(conn *Connection, ep *Endpoint) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ep.Close()
		return
	}
	c.forget(conn.key, ep)
	c.mu.Unlock()
	ep.Close()
}

// releaseConnection removes ep from acquired[key] (tolerating absence)
// and pushes it back onto pool[key]. Invoked by Connection.Release, which
// has already detached ep from conn itself.
func (c *Connector) releaseConnection(conn *Connection, ep *Endpoint) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ep.Close()
		return
	}
	c.forget(conn.key, ep)
	c.pool[conn.key] = append(c.pool[conn.key], ep)
	c.mu.Unlock()
}

// forget must be called with c.mu held.
func (c *Connector) forget(key Key, ep *Endpoint) {
	if set := c.acquired[key]; set != nil {
		delete(set, ep)
		if len(set) == 0 {
			delete(c.acquired, key)
		}
	}
}

// Close closes every pooled endpoint and every still-acquired endpoint.
// Idempotent: a second call is a no-op.
func (c *Connector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	pool := c.pool
	acquired := c.acquired
	c.mu.Unlock()

	for _, stack := range pool {
		for _, ep := range stack {
			ep.Close()
		}
	}
	for _, set := range acquired {
		for ep := range set {
			ep.Close()
		}
	}

	c.mu.Lock()
	c.pool = make(map[Key][]*Endpoint)
	c.acquired = make(map[Key]map[*Endpoint]struct{})
	c.closed = true
	c.mu.Unlock()
}
