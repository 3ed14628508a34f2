// Package msgtype enumerates the PPSPP message types.
//
//   - https://rfc-editor.org/rfc/rfc7574#section-8.2
package msgtype

import "fmt"

// Type is a PPSPP message type tag.
type Type uint8

const (
	HANDSHAKE        Type = 0
	DATA             Type = 1
	ACK              Type = 2
	HAVE             Type = 3
	INTEGRITY        Type = 4
	PEX_RESv4        Type = 5
	PEX_REQ          Type = 6
	SIGNED_INTEGRITY Type = 7
	REQUEST          Type = 8
	CANCEL           Type = 9
	CHOKE            Type = 10
	UNCHOKE          Type = 11
	PEX_RESv6        Type = 12
	PEX_REScert      Type = 13
)

// All lists every declared message type, in ascending tag order. This is
// the declaration order the Supported-Messages bitmap (protocol option 8)
// enumerates bits against.
var All = []Type{
	HANDSHAKE,
	DATA,
	ACK,
	HAVE,
	INTEGRITY,
	PEX_RESv4,
	PEX_REQ,
	SIGNED_INTEGRITY,
	REQUEST,
	CANCEL,
	CHOKE,
	UNCHOKE,
	PEX_RESv6,
	PEX_REScert,
}

var names = map[Type]string{
	HANDSHAKE:        "HANDSHAKE",
	DATA:             "DATA",
	ACK:              "ACK",
	HAVE:             "HAVE",
	INTEGRITY:        "INTEGRITY",
	PEX_RESv4:        "PEX_RESv4",
	PEX_REQ:          "PEX_REQ",
	SIGNED_INTEGRITY: "SIGNED_INTEGRITY",
	REQUEST:          "REQUEST",
	CANCEL:           "CANCEL",
	CHOKE:            "CHOKE",
	UNCHOKE:          "UNCHOKE",
	PEX_RESv6:        "PEX_RESv6",
	PEX_REScert:      "PEX_REScert",
}

// Valid reports whether t is one of the 14 assigned message types.
func (t Type) Valid() bool {
	_, ok := names[t]
	return ok
}

// String returns the message type's symbolic name, or a numeric fallback
// for unassigned tags.
func (t Type) String() string {
	if name, ok := names[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}
