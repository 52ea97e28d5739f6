// Package cp2110 drives a Silicon Labs CP2110 HID-to-UART bridge. UART data
// travels in interrupt reports whose ID is the number of data bytes they carry.
package cp2110

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/seagrayinc/mesabus/internal/hid"
	"github.com/seagrayinc/mesabus/internal/linefeed"
)

const (
	VendorID  = 0x10C4
	ProductID = 0xEA80

	// maxDataReport is the largest interrupt report; IDs 0x01-0x3F carry
	// that many UART bytes.
	maxDataReport = 0x3F

	reportUARTEnable = 0x41
	reportUARTConfig = 0x50

	parityNone  = 0x00
	flowNone    = 0x00
	dataBits8   = 0x03
	stopBitsOne = 0x00
)

var ErrClosed = errors.New("cp2110: report stream closed")

type Config struct {
	// VendorID and ProductID default to the Silicon Labs IDs when zero.
	VendorID    uint16
	ProductID   uint16
	BaudRate    int
	ReadTimeout time.Duration
	// LineFeed terminates each write with '\n' and makes Read return at the
	// first '\n', which is stripped.
	LineFeed bool
}

// Transport is a mesabus.Transport over a CP2110.
type Transport struct {
	dev     hid.Device
	cfg     Config
	reports <-chan hid.Report
	cancel  context.CancelFunc
	buf     linefeed.Buffer
}

func (c Config) ids() (uint16, uint16) {
	vid, pid := c.VendorID, c.ProductID
	if vid == 0 {
		vid = VendorID
	}
	if pid == 0 {
		pid = ProductID
	}
	return vid, pid
}

// List returns the HID devices known to mgr that match the IDs in cfg.
func List(mgr hid.Manager, cfg Config) ([]hid.Info, error) {
	all, err := mgr.List()
	if err != nil {
		return nil, fmt.Errorf("hid enumerate: %w", err)
	}
	vid, pid := cfg.ids()
	var out []hid.Info
	for _, info := range all {
		if info.VendorID == vid && info.ProductID == pid {
			out = append(out, info)
		}
	}
	return out, nil
}

// Open opens the first CP2110 known to mgr.
func Open(mgr hid.Manager, cfg Config) (*Transport, error) {
	vid, pid := cfg.ids()
	dev, err := mgr.OpenVIDPID(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("open CP2110: %w", err)
	}
	t, err := New(dev, cfg)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return t, nil
}

// New enables and configures the UART of dev (8N1, no flow control) and
// starts polling its input reports.
func New(dev hid.Device, cfg Config) (*Transport, error) {
	if err := dev.SetFeature(reportUARTEnable, []byte{0x01}); err != nil {
		return nil, fmt.Errorf("enable UART: %w", err)
	}

	uart := make([]byte, 8)
	binary.BigEndian.PutUint32(uart[0:4], uint32(cfg.BaudRate))
	uart[4] = parityNone
	uart[5] = flowNone
	uart[6] = dataBits8
	uart[7] = stopBitsOne
	if err := dev.SetFeature(reportUARTConfig, uart); err != nil {
		return nil, fmt.Errorf("configure UART: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		dev:     dev,
		cfg:     cfg,
		reports: dev.PollReports(ctx),
		cancel:  cancel,
		buf:     linefeed.Buffer{Enabled: cfg.LineFeed},
	}, nil
}

func (t *Transport) Write(p []byte) error {
	p = t.buf.Terminate(p)
	for len(p) > 0 {
		n := min(len(p), maxDataReport)
		r := hid.Report{ID: byte(n), Data: p[:n]}
		if err := t.dev.WriteReport(context.Background(), r); err != nil {
			return fmt.Errorf("hid write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// Read returns up to n bytes, waiting at most the configured read timeout. In
// line-feed mode it waits for a complete line instead of n bytes.
func (t *Transport) Read(n int) ([]byte, error) {
	timer := time.NewTimer(t.cfg.ReadTimeout)
	defer timer.Stop()

	for !t.buf.Ready(n) {
		select {
		case r, ok := <-t.reports:
			if !ok {
				if t.buf.Len() == 0 {
					return nil, ErrClosed
				}
				return t.buf.Take(n), nil
			}
			count := min(int(r.ID), len(r.Data))
			t.buf.Append(r.Data[:count])
		case <-timer.C:
			return t.buf.Take(n), nil
		}
	}
	return t.buf.Take(n), nil
}

func (t *Transport) Close() error {
	t.cancel()
	return t.dev.Close()
}
