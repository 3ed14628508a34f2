package conn

import (
	"context"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
	"github.com/r2northstar/ppspp/pkg/ppspp/datagram"
	"github.com/r2northstar/ppspp/pkg/ppspp/message"
)

// Session is a thin convenience wrapper composing a Connection with the
// datagram codec, for callers who'd rather speak Datagram values than
// raw bytes. It adds no protocol semantics beyond decode-on-Recv,
// encode-on-Send; grounded on the original's ppspp.py, which subclasses
// its UDP Protocol/Connector purely to call datagrams.decode/encode
// around the same recv/send calls.
type Session struct {
	*Connection
	handlers *message.Handlers
}

// WrapSession adapts conn to speak Datagram values. A nil handlers uses
// the package-level default table (HANDSHAKE only).
func WrapSession(conn *Connection, handlers *message.Handlers) *Session {
	return &Session{Connection: conn, handlers: handlers}
}

// RecvDatagram suspends until a datagram is delivered and decodes it.
func (s *Session) RecvDatagram(ctx context.Context) (datagram.Datagram, address.Address, error) {
	payload, from, err := s.Connection.Recv(ctx)
	if err != nil {
		return datagram.Datagram{}, address.Address{}, err
	}
	d, err := datagram.DecodeWith(payload, s.handlers)
	if err != nil {
		return datagram.Datagram{}, address.Address{}, err
	}
	return d, from, nil
}

// SendDatagram encodes d and sends the result.
func (s *Session) SendDatagram(ctx context.Context, d datagram.Datagram, remote *address.Address) error {
	payload, err := datagram.EncodeWith(d, s.handlers)
	if err != nil {
		return err
	}
	return s.Connection.Send(ctx, payload, remote)
}

// DialSession acquires a Connection via connector.Connect and wraps it as
// a Session.
func DialSession(ctx context.Context, connector *Connector, remote address.Address, handlers *message.Handlers) (*Session, error) {
	conn, err := connector.Connect(ctx, remote)
	if err != nil {
		return nil, err
	}
	return WrapSession(conn, handlers), nil
}

// ListenSession acquires a Connection via connector.Listen and wraps it
// as a Session.
func ListenSession(ctx context.Context, connector *Connector, local address.Address, handlers *message.Handlers) (*Session, error) {
	conn, err := connector.Listen(ctx, local)
	if err != nil {
		return nil, err
	}
	return WrapSession(conn, handlers), nil
}
