package conn

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
	"github.com/r2northstar/ppspp/pkg/ppspp/metricsx"
)

// newFakeEndpoint builds an Endpoint with no backing socket, for
// connector-level tests that only care about pool/acquired bookkeeping.
func newFakeEndpoint() *Endpoint {
	e := &Endpoint{
		wake:     make(chan struct{}, 1),
		readDone: make(chan struct{}),
		met:      metricsx.NewEndpoint(nil),
	}
	close(e.readDone)
	return e
}

func addr(t *testing.T, port int) address.Address {
	t.Helper()
	a, err := address.New("127.0.0.1", port)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// TestConnectorLIFOReuse covers invariant 9 of spec.md §8: a released
// connection is the next candidate returned for the same key, and only
// after the pool is drained does the connector create afresh.
func TestConnectorLIFOReuse(t *testing.T) {
	var created int
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		created++
		return newFakeEndpoint(), nil
	})

	key := addr(t, 9000)
	conn1, err := c.Connect(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	ep1 := conn1.endpointSnapshot()
	conn1.Release()

	conn2, err := c.Connect(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if conn2.endpointSnapshot() != ep1 {
		t.Error("expected the released endpoint to be reused")
	}
	if created != 1 {
		t.Errorf("createEndpoint called %d times, want 1", created)
	}

	conn2.Release()
	conn3, err := c.Connect(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	conn3.Release()

	conn4, err := c.Connect(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	conn4.Close()

	// Pool now drained: the next acquisition must create afresh.
	if _, err := c.Connect(context.Background(), key); err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Errorf("createEndpoint called %d times, want 2", created)
	}
}

// TestConnectorCloseIdempotent covers invariant 10.
func TestConnectorCloseIdempotent(t *testing.T) {
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		return newFakeEndpoint(), nil
	})

	k1, k2 := addr(t, 9001), addr(t, 9002)
	acquired, err := c.Connect(context.Background(), k1)
	if err != nil {
		t.Fatal(err)
	}
	released, err := c.Connect(context.Background(), k2)
	if err != nil {
		t.Fatal(err)
	}
	released.Release()

	c.Close()
	if !acquired.Closed() {
		t.Error("connection acquired before Close should report Closed after Close")
	}

	c.Close() // must not panic, must not reopen anything
}

func TestConnectorCloseClosesPooledEndpoints(t *testing.T) {
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		return newFakeEndpoint(), nil
	})
	k := addr(t, 9003)
	conn, err := c.Connect(context.Background(), k)
	if err != nil {
		t.Fatal(err)
	}
	ep := conn.endpointSnapshot()
	conn.Release()

	c.Close()
	if !ep.Closed() {
		t.Error("pooled endpoint should be closed by Connector.Close")
	}
}

func TestConnectTimeoutWrapsCause(t *testing.T) {
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithConnectTimeout(10*time.Millisecond))

	_, err := c.Connect(context.Background(), addr(t, 9004))
	if !errors.Is(err, ErrConnectTimeout) {
		t.Errorf("got %v, want ErrConnectTimeout", err)
	}
}

func TestTransportErrorWrapsCause(t *testing.T) {
	wantCause := errors.New("permission denied")
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		return nil, wantCause
	})

	_, err := c.Connect(context.Background(), addr(t, 9005))
	if !errors.Is(err, ErrTransportError) {
		t.Errorf("got %v, want ErrTransportError", err)
	}
	if !errors.Is(err, wantCause) {
		t.Errorf("got %v, want it to wrap %v", err, wantCause)
	}
}

func TestCloseConnectionRemovesFromAcquired(t *testing.T) {
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		return newFakeEndpoint(), nil
	})
	k := addr(t, 9006)
	conn, err := c.Connect(context.Background(), k)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	if len(c.acquired[k]) != 0 {
		t.Errorf("acquired[%v] should be empty after Close, got %d entries", k, len(c.acquired[k]))
	}
	if !conn.Closed() {
		t.Error("conn should report Closed")
	}

	// double-close is a no-op
	conn.Close()
}

// TestLeakDiagnosticFiresOnGC exercises the finalizer backstop described
// on Connection's doc comment: a Connection acquired and then dropped
// without Close or Release must eventually be collected (acquired no
// longer holds a strong *Connection, only its *Endpoint, so there is no
// Connector->Connection->Connector cycle keeping it alive) and the
// Connector's leak counter must observe it.
func TestLeakDiagnosticFiresOnGC(t *testing.T) {
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		return newFakeEndpoint(), nil
	})
	defer c.Close()

	func() {
		if _, err := c.Connect(context.Background(), addr(t, 9008)); err != nil {
			t.Fatal(err)
		}
		// conn is intentionally dropped here without Close/Release.
	}()

	deadline := time.Now().Add(5 * time.Second)
	for c.met.Leaks.Get() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("leak diagnostic did not fire before deadline")
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConnectorClosedRejectsNewAcquisitions(t *testing.T) {
	c := NewConnector(func(ctx context.Context, local, remote *address.Address) (*Endpoint, error) {
		return newFakeEndpoint(), nil
	})
	c.Close()
	if _, err := c.Connect(context.Background(), addr(t, 9007)); !errors.Is(err, ErrConnectorClosed) {
		t.Errorf("got %v, want ErrConnectorClosed", err)
	}
}
