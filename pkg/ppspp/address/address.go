// Package address implements PPSPP peer addresses: a validated (IP, port)
// pair used both as wire-adjacent metadata and as the connector's pool key.
package address

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrInvalidAddress is returned when an IP literal cannot be parsed or a
// port is outside [0, 65535].
var ErrInvalidAddress = errors.New("ppspp: invalid address")

// Address is a validated (IP, port) pair. The zero value is not valid; use
// New or FromAddrPort to construct one.
type Address struct {
	ip   netip.Addr
	port int
}

// New validates host and port and returns an Address. host must be a
// textual IPv4 or IPv6 literal; it is normalized to its canonical form.
func New(host string, port int) (Address, error) {
	if port < 0 || port > 0xFFFF {
		return Address{}, fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, port)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{ip: ip, port: port}, nil
}

// FromAddrPort converts a netip.AddrPort, as returned by the UDP transport,
// into an Address.
func FromAddrPort(ap netip.AddrPort) Address {
	return Address{ip: ap.Addr(), port: int(ap.Port())}
}

// AddrPort returns the netip.AddrPort form of a, for use with net.UDPConn.
func (a Address) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.ip, uint16(a.port))
}

// IP returns the canonical textual form of the address's IP.
func (a Address) IP() string { return a.ip.String() }

// Port returns the address's port.
func (a Address) Port() int { return a.port }

// IsValid reports whether a was constructed through New or FromAddrPort
// (as opposed to being a zero value).
func (a Address) IsValid() bool { return a.ip.IsValid() }

// String renders the address as "host:port".
func (a Address) String() string {
	if !a.ip.IsValid() {
		return "<invalid>"
	}
	return netip.AddrPortFrom(a.ip, uint16(a.port)).String()
}
