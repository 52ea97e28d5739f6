// Package mesabus implements the MesaBus framing layer: hexadecimal-text
// frames that carry a payload to one device on a serial chained bus.
//
// More info at https://blackmesalabs.wordpress.com/2016/03/04/mesa-bus/
package mesabus

import (
	"errors"
	"fmt"
)

// Command selects what the addressed device does with a frame's payload.
type Command uint8

const (
	Write         Command = 0x0 // <ADDR><DATA>...
	Read          Command = 0x1 // <ADDR><LENGTH>
	WriteRepeat   Command = 0x2 // <ADDR><DATA>... all data to one address
	ReadRepeat    Command = 0x3 // <ADDR><LENGTH> all data from one address
	WriteMultiple Command = 0x4 // <ADDR><DATA><ADDR><DATA>...
)

func (c Command) String() string {
	switch c {
	case Write:
		return "write"
	case Read:
		return "read"
	case WriteRepeat:
		return "write-repeat"
	case ReadRepeat:
		return "read-repeat"
	case WriteMultiple:
		return "write-multiple"
	default:
		return fmt.Sprintf("command(0x%x)", uint8(c))
	}
}

func (c Command) valid() bool {
	return c <= WriteMultiple
}

const (
	// Preamble starts every request. The leading FF is an idle byte, F0 marks
	// the start of the frame.
	Preamble = "FFF0"

	// ResponseStart is the first byte of every response header.
	ResponseStart = "F0"

	// HeaderLen is the size in characters of a response header:
	// start, slot, subslot, command and length.
	HeaderLen = 8

	// WordChars is the number of hex characters carrying one 32-bit word.
	WordChars = 8

	// MaxPayload is the largest payload, in bytes, the length field can describe.
	MaxPayload = 0xFF

	// MaxSubslot is the largest subslot number; subslots are one hex digit.
	MaxSubslot = 0xF

	// Sentinel replaces every response word that could not be decoded.
	Sentinel uint32 = 0xDEADBEEF

	// ResetSequence releases the hardware from reset after eight F's.
	ResetSequence = "FFFFFFFF"
)

var (
	ErrPayloadTooLarge = errors.New("mesabus: payload too large")
	ErrInvalidSubslot  = errors.New("mesabus: subslot out of range")
	ErrInvalidCommand  = errors.New("mesabus: invalid command")
	ErrTruncated       = errors.New("mesabus: truncated frame")
	ErrInvalidFrame    = errors.New("mesabus: invalid frame")
)

// Device addresses one target on the chained bus.
type Device struct {
	Slot    uint8
	Subslot uint8
}

func (d Device) String() string {
	return fmt.Sprintf("%02x.%x", d.Slot, d.Subslot)
}

// Validate reports whether the device can be encoded in a frame header.
func (d Device) Validate() error {
	if d.Subslot > MaxSubslot {
		return fmt.Errorf("%w: %d", ErrInvalidSubslot, d.Subslot)
	}
	return nil
}

// Frame is the decoded form of one request.
type Frame struct {
	Device  Device
	Command Command
	Payload []byte
}

// Transport is a byte-oriented duplex channel to the bus.
//
// Read blocks until n bytes arrive or the transport's own timeout expires and
// may return fewer than n bytes.
type Transport interface {
	Write(p []byte) error
	Read(n int) ([]byte, error)
}

// TransportError wraps a failure reported by a Transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "mesabus: transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// WordError describes one response word that was replaced by Sentinel.
type WordError struct {
	Index int
	Text  string
}

func (e WordError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("mesabus: word %d missing", e.Index)
	}
	return fmt.Sprintf("mesabus: word %d: invalid hex %q", e.Index, e.Text)
}
