package mesabus

import (
	"io"
	"log/slog"
	"sync"
)

// Bus owns one Transport and serializes every frame exchanged over it. A
// request frame and its response are exchanged under a single lock hold, so
// several callers may share a Bus.
type Bus struct {
	mu        sync.Mutex
	transport Transport
	log       *slog.Logger
}

type Option func(*Bus)

// WithLogger sets the logger used for frame tracing.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

func NewBus(t Transport, opts ...Option) *Bus {
	b := &Bus{
		transport: t,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Reset sends an empty line followed by ResetSequence, which releases the
// hardware from reset.
func (b *Bus) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.write(nil); err != nil {
		return err
	}
	return b.write([]byte(ResetSequence))
}

// Send encodes and transmits one frame. No response is read.
func (b *Bus) Send(dev Device, cmd Command, payload []byte) error {
	frame, err := Encode(dev, cmd, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write(frame)
}

// Request transmits one frame and reads back a response carrying words
// 32-bit words. It returns the payload text with the response header
// stripped; a response shorter than the header yields ErrTruncated.
func (b *Bus) Request(dev Device, cmd Command, payload []byte, words int) ([]byte, error) {
	frame, err := Encode(dev, cmd, payload)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.write(frame); err != nil {
		return nil, err
	}

	// one header word precedes the data words
	raw, err := b.transport.Read((words + 1) * WordChars)
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	b.log.Debug("mesabus rd", slog.String("device", dev.String()), slog.String("frame", string(raw)))

	return Decode(raw, words)
}

// Close closes the transport if it can be closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (b *Bus) write(frame []byte) error {
	b.log.Debug("mesabus wr", slog.String("frame", string(frame)))
	if err := b.transport.Write(frame); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
