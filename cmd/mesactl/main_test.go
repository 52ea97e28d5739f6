package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/seagrayinc/mesabus/internal/config"
	"github.com/seagrayinc/mesabus/internal/cp2110"
	"github.com/seagrayinc/mesabus/internal/ft600"
	"github.com/seagrayinc/mesabus/internal/hid"
	"github.com/seagrayinc/mesabus/internal/sim"
	"github.com/seagrayinc/mesabus/internal/uart"
	"github.com/seagrayinc/mesabus/pkg/localbus"
	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

func simDeps(target *sim.Target) deps {
	return deps{
		open: func(config.Config) (mesabus.Transport, error) {
			return target, nil
		},
	}
}

func runSim(t *testing.T, target *sim.Target, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvLogLevel, "error")

	var out bytes.Buffer
	args = append([]string{"--transport", "sim"}, args...)
	err := run(context.Background(), args, &out, io.Discard, simDeps(target))
	return out.String(), err
}

func TestWriteThenRead(t *testing.T) {
	target := sim.New(mesabus.Device{})

	if _, err := runSim(t, target, "wr", "10", "deadbeef", "0x1"); err != nil {
		t.Fatalf("wr: %v", err)
	}
	if target.Peek(0x10) != 0xdeadbeef || target.Peek(0x14) != 1 {
		t.Fatalf("memory: %08x %08x", target.Peek(0x10), target.Peek(0x14))
	}

	out, err := runSim(t, target, "rd", "0x10", "2")
	if err != nil {
		t.Fatalf("rd: %v", err)
	}
	want := "00000010: deadbeef\n00000014: 00000001\n"
	if out != want {
		t.Fatalf("rd printed %q, want %q", out, want)
	}
}

func TestRepeatFlags(t *testing.T) {
	target := sim.New(mesabus.Device{Slot: 1, Subslot: 2})

	if _, err := runSim(t, target, "--slot", "1", "--subslot", "2", "wr", "--repeat", "20", "a", "b", "c"); err != nil {
		t.Fatalf("wr: %v", err)
	}
	fifo := target.FIFO(0x20)
	if len(fifo) != 3 || fifo[2] != 0xc {
		t.Fatalf("fifo: %x", fifo)
	}

	out, err := runSim(t, target, "--slot", "1", "--subslot", "2", "rd", "--repeat", "20", "2")
	if err != nil {
		t.Fatalf("rd: %v", err)
	}
	if out != "00000020: 0000000c\n00000020: 0000000c\n" {
		t.Fatalf("rd printed %q", out)
	}
}

func TestSelftest(t *testing.T) {
	target := sim.New(mesabus.Device{})

	out, err := runSim(t, target, "selftest", "--words", "40", "--iterations", "3")
	if err != nil {
		t.Fatalf("selftest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3 of 3 passes clean") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSelftestReportsCorruptWord(t *testing.T) {
	target := sim.New(mesabus.Device{})
	target.CorruptAt(0x100 + 4*3)

	out, err := runSim(t, target, "selftest", "--addr", "0x100", "--words", "8", "--iterations", "1")
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if !strings.Contains(out, "3 Failure deadbeef != ") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "0 of 1 passes clean") {
		t.Fatalf("unexpected summary %q", out)
	}
}

func TestBench(t *testing.T) {
	target := sim.New(mesabus.Device{})

	out, err := runSim(t, target, "bench", "--words", "64", "--iterations", "2")
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	if !strings.Contains(out, "Writes at ") || !strings.Contains(out, "Reads at ") {
		t.Fatalf("unexpected output %q", out)
	}
	if len(target.Frames()) != 2*3+2*3 {
		t.Fatalf("frames: %d", len(target.Frames()))
	}
}

func TestRejectsBadArguments(t *testing.T) {
	target := sim.New(mesabus.Device{})

	tests := [][]string{
		{"rd", "xyz"},
		{"rd", "10", "0"},
		{"wr", "10"},
		{"wr", "10", "100000000"},
		{"--subslot", "16", "rd", "0"},
		{"--log-level", "loud", "rd", "0"},
		{"selftest", "--words", "0"},
		{"--reopen", "rd", "0"},
	}
	for _, args := range tests {
		if _, err := runSim(t, target, args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestOpenFailure(t *testing.T) {
	boom := errors.New("no device")
	open := func(config.Config) (mesabus.Transport, error) { return nil, boom }

	err := run(context.Background(), []string{"--transport", "sim", "rd", "0"}, io.Discard, io.Discard, deps{open: open})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestParseHex(t *testing.T) {
	tests := map[string]uint32{
		"0":          0,
		"10":         0x10,
		"0x00010000": 0x10000,
		"DEADBEEF":   0xdeadbeef,
	}
	for in, want := range tests {
		got, err := parseHex(in)
		if err != nil || got != want {
			t.Fatalf("parseHex(%q) = %x, %v", in, got, err)
		}
	}
}

// closingTarget is a simulator that records being closed.
type closingTarget struct {
	*sim.Target
	closed bool
}

func (c *closingTarget) Close() error {
	c.closed = true
	return nil
}

func TestReopenRejectsOtherTransports(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "error")
	target := &closingTarget{Target: sim.New(mesabus.Device{})}
	d := deps{open: func(config.Config) (mesabus.Transport, error) { return target, nil }}

	err := run(context.Background(), []string{"--transport", "sim", "--reopen", "rd", "0"}, io.Discard, io.Discard, d)
	if err == nil || !strings.Contains(err.Error(), "--reopen") {
		t.Fatalf("got %v", err)
	}
	if !target.closed {
		t.Fatalf("transport left open")
	}
}

func TestList(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "error")
	d := deps{
		hid: &hid.MockManager{Devices: []hid.Info{
			{Path: "/dev/hidraw3", VendorID: cp2110.VendorID, ProductID: cp2110.ProductID, Manufacturer: "Silicon Labs", Product: "CP2110"},
			{Path: "/dev/hidraw4", VendorID: 0x046D, ProductID: 0xC52B},
		}},
		listFT600: func(cfg ft600.Config) ([]ft600.Info, error) {
			return []ft600.Info{{Bus: 2, Address: 7, VendorID: ft600.VendorID, ProductID: ft600.ProductID, Product: "FT600", Serial: "000000000001"}}, nil
		},
	}

	var out bytes.Buffer
	if err := run(context.Background(), []string{"list"}, &out, io.Discard, d); err != nil {
		t.Fatalf("list: %v", err)
	}
	got := out.String()
	for _, want := range []string{"ft600   0403:601e  bus 002 addr 007", "serial 000000000001", "cp2110  10c4:ea80  /dev/hidraw3"} {
		if !strings.Contains(got, want) {
			t.Fatalf("list printed %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "hidraw4") {
		t.Fatalf("list printed a foreign device: %q", got)
	}
}

func TestListEmpty(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "error")
	d := deps{
		hid:       &hid.MockManager{},
		listFT600: func(ft600.Config) ([]ft600.Info, error) { return nil, nil },
	}

	var out bytes.Buffer
	if err := run(context.Background(), []string{"list"}, &out, io.Discard, d); err != nil {
		t.Fatalf("list: %v", err)
	}
	if out.String() != "no bridges found\n" {
		t.Fatalf("list printed %q", out.String())
	}
}

// linePort plays back device output one line per read, like a UART that
// ends every response with a line feed.
type linePort struct {
	lines []string
}

func (p *linePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *linePort) Close() error                { return nil }

func (p *linePort) Read(b []byte) (int, error) {
	if len(p.lines) == 0 {
		return 0, nil
	}
	n := copy(b, p.lines[0])
	p.lines[0] = p.lines[0][n:]
	if p.lines[0] == "" {
		p.lines = p.lines[1:]
	}
	return n, nil
}

func TestUARTDefaultsKeepResponsesAligned(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.TransportUART
	cfg.Port = "/dev/ttyUSB0"

	port := &linePort{lines: []string{"F000010412345678\n", "F00001049abcdef0\n"}}
	tr := uart.New(port, uartConfig(cfg))
	link, err := localbus.New(mesabus.NewBus(tr), cfg.Device())
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	for _, want := range []uint32{0x12345678, 0x9abcdef0} {
		got, err := link.ReadRaw(context.Background(), 0, 1, false)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got[0] != want {
			t.Fatalf("read %08x, want %08x", got[0], want)
		}
	}
}

func TestTransportConfigs(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.TransportCP2110
	cfg.VendorID, cfg.ProductID = 0x1234, 0x5678

	if c := cp2110Config(cfg); c.VendorID != 0x1234 || c.ProductID != 0x5678 || !c.LineFeed {
		t.Fatalf("cp2110 config %+v", c)
	}
	if c := ft600Config(cfg); c.VendorID != 0 || c.ProductID != 0 || c.Timeout != cfg.ReadTimeout {
		t.Fatalf("ft600 config %+v", c)
	}

	cfg.Transport = config.TransportFT600
	if c := ft600Config(cfg); c.VendorID != 0x1234 || c.ProductID != 0x5678 {
		t.Fatalf("ft600 config %+v", c)
	}
}
