// Package ft600 drives an FTDI FT600 USB 3.0 FIFO bridge over its bulk pipes.
//
// The FPGA side only uses 8 of the FT600's 16 data bits, so every character
// sent is followed by a pad byte and every other byte received is dropped.
package ft600

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"
)

const (
	VendorID  = 0x0403
	ProductID = 0x601E

	// The FIFO pipes live on the second interface; the first carries the
	// chip's notification endpoint.
	fifoInterface = 1
	// fifoEndpoint is the endpoint number of both pipes: OUT 0x02, IN 0x82.
	fifoEndpoint = 2

	// pad fills the unused upper byte of each 16-bit FIFO word.
	pad = '~'

	// ReenumerateDelay is how long the chip needs after a reset or a
	// configuration change before it can be opened again.
	ReenumerateDelay = 500 * time.Millisecond

	DefaultTimeout = time.Second
)

var ErrNotFound = errors.New("ft600: device not found")

type Config struct {
	// VendorID and ProductID default to the FTDI IDs when zero.
	VendorID  uint16
	ProductID uint16
	// Timeout bounds every bulk transfer. Zero selects DefaultTimeout.
	Timeout time.Duration
}

func (c Config) ids() (gousb.ID, gousb.ID) {
	vid, pid := c.VendorID, c.ProductID
	if vid == 0 {
		vid = VendorID
	}
	if pid == 0 {
		pid = ProductID
	}
	return gousb.ID(vid), gousb.ID(pid)
}

type device interface {
	Write([]byte) (int, error)
	Read([]byte) (int, error)
	Close() error
}

// Transport is a mesabus.Transport over an FT600.
type Transport struct {
	dev  device
	cfg  Config
	dial func(Config) (device, error)
	log  *slog.Logger
}

// Open opens the bulk FIFO pipes of the first FT600 matching cfg.
func Open(cfg Config) (*Transport, error) {
	return open(cfg, openPipes)
}

func open(cfg Config, dial func(Config) (device, error)) (*Transport, error) {
	dev, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Transport{
		dev:  dev,
		cfg:  cfg,
		dial: dial,
		log:  slog.Default(),
	}, nil
}

// Reopen closes t, waits for the chip to re-enumerate and opens it again with
// the same configuration. A change to the chip configuration, made with
// FTDI's configuration utility, resets the FT600 and invalidates the old
// handle.
func Reopen(t *Transport) (*Transport, error) {
	if err := t.Close(); err != nil {
		slog.Warn("closing FT600 before reopen failed", slog.Any("error", err))
	}
	time.Sleep(ReenumerateDelay)
	return open(t.cfg, t.dial)
}

// Write sends p with a pad byte between characters, looping until the pipe
// has taken every byte.
func (t *Transport) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	wide := widen(p)
	for sent := 0; sent < len(wide); {
		n, err := t.dev.Write(wide[sent:])
		sent += n
		if err != nil {
			return fmt.Errorf("usb write: %w (wrote %d of %d bytes)", err, sent, len(wide))
		}
	}
	return nil
}

// Read collects up to n characters. Each character arrives as two bytes on
// the pipe. A read that fails or times out after some data arrived returns
// the partial data; callers treat it as a short response.
func (t *Transport) Read(n int) ([]byte, error) {
	buf := make([]byte, 2*n)

	var got int
	for got < len(buf) {
		m, err := t.dev.Read(buf[got:])
		got += m
		if err != nil {
			if got == 0 {
				return nil, fmt.Errorf("usb read: %w", err)
			}
			t.log.Debug("FT600 short read", slog.Int("got", got), slog.Int("want", len(buf)), slog.Any("error", err))
			break
		}
		if m == 0 {
			break
		}
	}

	return narrow(buf[:got]), nil
}

func (t *Transport) Close() error {
	return t.dev.Close()
}

func widen(p []byte) []byte {
	out := make([]byte, 0, 2*len(p)-1)
	for i, b := range p {
		if i > 0 {
			out = append(out, pad)
		}
		out = append(out, b)
	}
	return out
}

func narrow(p []byte) []byte {
	out := make([]byte, 0, (len(p)+1)/2)
	for i := 0; i < len(p); i += 2 {
		out = append(out, p[i])
	}
	return out
}
