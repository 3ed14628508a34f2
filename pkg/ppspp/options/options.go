// Package options implements the PPSPP HANDSHAKE protocol-options record:
// an ordered, self-terminating sequence of optional fields, one of which
// (Live Discard Window) depends on the value of an earlier field (Chunk
// Addressing Method).
//
//   - https://rfc-editor.org/rfc/rfc7574#section-7
package options

import (
	"errors"
	"fmt"

	"github.com/r2northstar/ppspp/pkg/ppspp/wire"
)

// Code identifies a single protocol option on the wire.
type Code uint8

const (
	CodeVersion                          Code = 0
	CodeMinimumVersion                   Code = 1
	CodeSwarmIdentifier                  Code = 2
	CodeContentIntegrityProtectionMethod Code = 3
	CodeMerkleHashTreeFunction           Code = 4
	CodeLiveSignatureAlgorithm           Code = 5
	CodeChunkAddressingMethod            Code = 6
	CodeLiveDiscardWindow                Code = 7
	CodeSupportedMessages                Code = 8
	CodeChunkSize                        Code = 9
	CodeEndOption                        Code = 255
)

func (c Code) known() bool {
	switch c {
	case CodeVersion, CodeMinimumVersion, CodeSwarmIdentifier,
		CodeContentIntegrityProtectionMethod, CodeMerkleHashTreeFunction,
		CodeLiveSignatureAlgorithm, CodeChunkAddressingMethod,
		CodeLiveDiscardWindow, CodeSupportedMessages, CodeChunkSize:
		return true
	default:
		return false
	}
}

// Error kinds, per spec.md §7.
var (
	ErrUnknownOption   = errors.New("ppspp: unknown protocol option")
	ErrDuplicateOption = errors.New("ppspp: duplicate protocol option")
	ErrOrderViolation  = errors.New("ppspp: live discard window before chunk addressing method")
	ErrInvalidEnum     = errors.New("ppspp: invalid enum value")
)

// Options is the protocol-options record. Every field is optional (nil or
// zero-value-absent); see the per-field comments for the nil convention.
//
// The list of protocol options MUST be sorted by ascending code value on
// the wire; Encode does this regardless of field assignment order.
type Options struct {
	Version                          *Version
	MinimumVersion                   *Version
	SwarmIdentifier                  []byte // nil means absent
	ContentIntegrityProtectionMethod *ContentIntegrityProtectionMethod
	MerkleHashTreeFunction           *MerkleHashTreeFunction
	LiveSignatureAlgorithm           *LiveSignatureAlgorithm
	ChunkAddressingMethod            *ChunkAddressingMethod
	LiveDiscardWindow                *uint64
	SupportedMessages                MessageSet // nil means absent
	ChunkSize                        *uint32
}

// Decode reads a protocol-options record from the front of data, up to and
// including the terminating end-option byte, and returns it along with the
// remaining bytes.
//
// Decoding proceeds as an explicit state machine: each option's sub-decoder
// may consult the partially built record, which only the Live Discard
// Window sub-decoder needs (it must find Chunk Addressing Method already
// set).
func Decode(data []byte) (Options, []byte, error) {
	var opts Options
	seen := make(map[Code]bool, 10)

	for {
		raw, rest, err := wire.ReadUint8(data)
		if err != nil {
			return Options{}, nil, err
		}
		data = rest
		code := Code(raw)

		if code == CodeEndOption {
			return opts, data, nil
		}
		if !code.known() {
			return Options{}, nil, fmt.Errorf("%w: code %d", ErrUnknownOption, code)
		}
		if seen[code] {
			return Options{}, nil, fmt.Errorf("%w: code %d", ErrDuplicateOption, code)
		}
		seen[code] = true

		switch code {
		case CodeVersion:
			v, rest, err := decodeVersion(data)
			if err != nil {
				return Options{}, nil, err
			}
			opts.Version, data = &v, rest

		case CodeMinimumVersion:
			v, rest, err := decodeVersion(data)
			if err != nil {
				return Options{}, nil, err
			}
			opts.MinimumVersion, data = &v, rest

		case CodeSwarmIdentifier:
			length, rest, err := wire.ReadUint16(data)
			if err != nil {
				return Options{}, nil, err
			}
			id, rest, err := wire.ReadFixed(rest, int(length))
			if err != nil {
				return Options{}, nil, err
			}
			opts.SwarmIdentifier = append([]byte(nil), id...)
			data = rest

		case CodeContentIntegrityProtectionMethod:
			raw, rest, err := wire.ReadUint8(data)
			if err != nil {
				return Options{}, nil, err
			}
			v := ContentIntegrityProtectionMethod(raw)
			if !v.Valid() {
				return Options{}, nil, fmt.Errorf("%w: content integrity protection method %d", ErrInvalidEnum, raw)
			}
			opts.ContentIntegrityProtectionMethod, data = &v, rest

		case CodeMerkleHashTreeFunction:
			raw, rest, err := wire.ReadUint8(data)
			if err != nil {
				return Options{}, nil, err
			}
			v := MerkleHashTreeFunction(raw)
			if !v.Valid() {
				return Options{}, nil, fmt.Errorf("%w: merkle hash tree function %d", ErrInvalidEnum, raw)
			}
			opts.MerkleHashTreeFunction, data = &v, rest

		case CodeLiveSignatureAlgorithm:
			raw, rest, err := wire.ReadUint8(data)
			if err != nil {
				return Options{}, nil, err
			}
			v := LiveSignatureAlgorithm(raw)
			if !v.Valid() {
				return Options{}, nil, fmt.Errorf("%w: live signature algorithm %d", ErrInvalidEnum, raw)
			}
			opts.LiveSignatureAlgorithm, data = &v, rest

		case CodeChunkAddressingMethod:
			raw, rest, err := wire.ReadUint8(data)
			if err != nil {
				return Options{}, nil, err
			}
			v := ChunkAddressingMethod(raw)
			if !v.Valid() {
				return Options{}, nil, fmt.Errorf("%w: chunk addressing method %d", ErrInvalidEnum, raw)
			}
			opts.ChunkAddressingMethod, data = &v, rest

		case CodeLiveDiscardWindow:
			if opts.ChunkAddressingMethod == nil {
				return Options{}, nil, ErrOrderViolation
			}
			width := opts.ChunkAddressingMethod.LiveDiscardWindowWidth()
			v, rest, err := wire.ReadUintN(data, width)
			if err != nil {
				return Options{}, nil, err
			}
			opts.LiveDiscardWindow, data = &v, rest

		case CodeSupportedMessages:
			v, rest, err := decodeMessageSet(data)
			if err != nil {
				return Options{}, nil, err
			}
			opts.SupportedMessages, data = v, rest

		case CodeChunkSize:
			v, rest, err := wire.ReadUint32(data)
			if err != nil {
				return Options{}, nil, err
			}
			opts.ChunkSize, data = &v, rest
		}
	}
}

func decodeVersion(data []byte) (Version, []byte, error) {
	raw, rest, err := wire.ReadUint8(data)
	if err != nil {
		return 0, nil, err
	}
	v := Version(raw)
	if !v.Valid() {
		return 0, nil, fmt.Errorf("%w: version %d", ErrInvalidEnum, raw)
	}
	return v, rest, nil
}

// Encode appends the wire encoding of opts to dst, in ascending code order,
// terminated by the end-option byte.
//
// Live Discard Window is only emitted when Chunk Addressing Method is also
// present; encoding a record with LiveDiscardWindow set but
// ChunkAddressingMethod unset silently omits the option (matching the
// source implementation's observable behavior).
//
// Encoding fails with ErrInvalidEnum if any enum-valued field holds a value
// outside its assigned range — including MinimumVersion, unlike the source
// implementation, which accepted an unchecked integer there (see
// SPEC_FULL.md's redesign notes).
func Encode(dst []byte, opts Options) ([]byte, error) {
	if opts.Version != nil {
		if !opts.Version.Valid() {
			return nil, fmt.Errorf("%w: version %d", ErrInvalidEnum, *opts.Version)
		}
		dst = append(dst, byte(CodeVersion))
		dst = wire.PutUint8(dst, uint8(*opts.Version))
	}
	if opts.MinimumVersion != nil {
		if !opts.MinimumVersion.Valid() {
			return nil, fmt.Errorf("%w: minimum version %d", ErrInvalidEnum, *opts.MinimumVersion)
		}
		dst = append(dst, byte(CodeMinimumVersion))
		dst = wire.PutUint8(dst, uint8(*opts.MinimumVersion))
	}
	if opts.SwarmIdentifier != nil {
		if len(opts.SwarmIdentifier) > 0xFFFF {
			return nil, fmt.Errorf("ppspp: swarm identifier too long (%d bytes)", len(opts.SwarmIdentifier))
		}
		dst = append(dst, byte(CodeSwarmIdentifier))
		dst = wire.PutUint16(dst, uint16(len(opts.SwarmIdentifier)))
		dst = append(dst, opts.SwarmIdentifier...)
	}
	if opts.ContentIntegrityProtectionMethod != nil {
		if !opts.ContentIntegrityProtectionMethod.Valid() {
			return nil, fmt.Errorf("%w: content integrity protection method %d", ErrInvalidEnum, *opts.ContentIntegrityProtectionMethod)
		}
		dst = append(dst, byte(CodeContentIntegrityProtectionMethod))
		dst = wire.PutUint8(dst, uint8(*opts.ContentIntegrityProtectionMethod))
	}
	if opts.MerkleHashTreeFunction != nil {
		if !opts.MerkleHashTreeFunction.Valid() {
			return nil, fmt.Errorf("%w: merkle hash tree function %d", ErrInvalidEnum, *opts.MerkleHashTreeFunction)
		}
		dst = append(dst, byte(CodeMerkleHashTreeFunction))
		dst = wire.PutUint8(dst, uint8(*opts.MerkleHashTreeFunction))
	}
	if opts.LiveSignatureAlgorithm != nil {
		if !opts.LiveSignatureAlgorithm.Valid() {
			return nil, fmt.Errorf("%w: live signature algorithm %d", ErrInvalidEnum, *opts.LiveSignatureAlgorithm)
		}
		dst = append(dst, byte(CodeLiveSignatureAlgorithm))
		dst = wire.PutUint8(dst, uint8(*opts.LiveSignatureAlgorithm))
	}
	if opts.ChunkAddressingMethod != nil {
		if !opts.ChunkAddressingMethod.Valid() {
			return nil, fmt.Errorf("%w: chunk addressing method %d", ErrInvalidEnum, *opts.ChunkAddressingMethod)
		}
		dst = append(dst, byte(CodeChunkAddressingMethod))
		dst = wire.PutUint8(dst, uint8(*opts.ChunkAddressingMethod))
	}
	if opts.LiveDiscardWindow != nil && opts.ChunkAddressingMethod != nil {
		width := opts.ChunkAddressingMethod.LiveDiscardWindowWidth()
		dst = append(dst, byte(CodeLiveDiscardWindow))
		dst = wire.PutUintN(dst, *opts.LiveDiscardWindow, width)
	}
	if opts.SupportedMessages != nil {
		enc, err := encodeMessageSet(opts.SupportedMessages)
		if err != nil {
			return nil, err
		}
		dst = append(dst, byte(CodeSupportedMessages))
		dst = append(dst, enc...)
	}
	if opts.ChunkSize != nil {
		dst = append(dst, byte(CodeChunkSize))
		dst = wire.PutUint32(dst, *opts.ChunkSize)
	}
	dst = append(dst, byte(CodeEndOption))
	return dst, nil
}
