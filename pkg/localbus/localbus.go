// Package localbus exposes 32-bit address/data reads and writes to a device on
// a MesaBus chain. Long transfers are split into frames that respect the
// protocol and transport limits.
package localbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

const (
	// MaxWriteWords is the largest data burst per write frame. The protocol
	// allows 62, but the FT600 corrupts payloads above 29 words
	// (0x11111111 arrives as 0x1111111F).
	MaxWriteWords = 29

	// MaxReadWords is the largest number of words requested per read frame.
	MaxReadWords = 31

	// MaxPacketPairs is the largest number of address/data pairs per
	// write-multiple frame.
	MaxPacketPairs = 30

	wordBytes = 4
)

var ErrWordCount = errors.New("localbus: word count out of range")

// AddrData is one address/data pair of a write-multiple transfer.
type AddrData struct {
	Addr uint32
	Data uint32
}

// Link reads and writes the local bus of one device. All traffic goes through
// the shared Bus, which serializes it with other Links on the same transport.
type Link struct {
	bus *mesabus.Bus
	dev mesabus.Device
	log *slog.Logger

	frames      atomic.Uint64
	substituted atomic.Uint64
}

type Option func(*Link)

func WithLogger(l *slog.Logger) Option {
	return func(link *Link) {
		link.log = l
	}
}

func New(bus *mesabus.Bus, dev mesabus.Device, opts ...Option) (*Link, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}

	l := &Link{
		bus: bus,
		dev: dev,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Link) Device() mesabus.Device {
	return l.dev
}

// Frames returns the number of frames this link has transmitted.
func (l *Link) Frames() uint64 {
	return l.frames.Load()
}

// Substituted returns the number of read words replaced by mesabus.Sentinel.
func (l *Link) Substituted() uint64 {
	return l.substituted.Load()
}

func (l *Link) send(cmd mesabus.Command, payload []byte) error {
	err := l.bus.Send(l.dev, cmd, payload)
	mustFit(err)
	if err != nil {
		return err
	}
	l.frames.Add(1)
	return nil
}

// mustFit panics on an oversized payload: chunking guarantees every frame
// fits, so reaching it is a bug in this package.
func mustFit(err error) {
	if errors.Is(err, mesabus.ErrPayloadTooLarge) {
		panic(fmt.Sprintf("localbus: chunk exceeds frame limit: %v", err))
	}
}

func hexAddr(addr uint32) slog.Attr {
	return slog.String("addr", fmt.Sprintf("%08x", addr))
}
