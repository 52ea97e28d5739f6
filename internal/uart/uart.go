// Package uart carries MesaBus text over a serial port, for example an FT232
// USB-UART bridge.
package uart

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/seagrayinc/mesabus/internal/linefeed"
)

const DefaultBaudRate = 921600

type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	// LineFeed terminates each write with '\n' and makes Read return at the
	// first '\n', which is stripped.
	LineFeed bool
}

// Transport is a mesabus.Transport over a serial port.
type Transport struct {
	port    io.ReadWriteCloser
	cfg     Config
	buf     linefeed.Buffer
	scratch []byte
}

// Open opens cfg.Port as 8N1 without flow control and discards anything
// already buffered in either direction.
func Open(cfg Config) (*Transport, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("unable to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("flush input: %w", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("flush output: %w", err)
	}

	return New(port, cfg), nil
}

// New wraps an already opened port.
func New(port io.ReadWriteCloser, cfg Config) *Transport {
	return &Transport{
		port:    port,
		cfg:     cfg,
		buf:     linefeed.Buffer{Enabled: cfg.LineFeed},
		scratch: make([]byte, 256),
	}
}

func (t *Transport) Write(p []byte) error {
	p = t.buf.Terminate(p)
	for len(p) > 0 {
		n, err := t.port.Write(p)
		if err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// Read returns up to n bytes. In line-feed mode it reads one line. A read
// that times out returns whatever arrived.
func (t *Transport) Read(n int) ([]byte, error) {
	for !t.buf.Ready(n) {
		m, err := t.port.Read(t.scratch)
		if err != nil {
			return nil, fmt.Errorf("serial read: %w", err)
		}
		if m == 0 {
			break
		}
		t.buf.Append(t.scratch[:m])
	}
	return t.buf.Take(n), nil
}

func (t *Transport) Close() error {
	return t.port.Close()
}
