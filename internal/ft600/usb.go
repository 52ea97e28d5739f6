package ft600

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// pipes holds the claimed FIFO interface and its two bulk endpoints.
type pipes struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	config  *gousb.Config
	intf    *gousb.Interface
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

func openPipes(cfg Config) (device, error) {
	vid, pid := cfg.ids()

	usb := gousb.NewContext()
	dev, err := usb.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		_ = usb.Close()
		return nil, fmt.Errorf("open device: %w", err)
	}
	if dev == nil {
		_ = usb.Close()
		return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X)", ErrNotFound, uint16(vid), uint16(pid))
	}

	p := &pipes{ctx: usb, dev: dev, timeout: cfg.Timeout}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if err := p.claim(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *pipes) claim() error {
	if err := p.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("auto detach: %w", err)
	}

	num, err := p.dev.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("active config: %w", err)
	}
	if p.config, err = p.dev.Config(num); err != nil {
		return fmt.Errorf("config %d: %w", num, err)
	}
	if p.intf, err = p.config.Interface(fifoInterface, 0); err != nil {
		return fmt.Errorf("claim interface %d: %w", fifoInterface, err)
	}
	if p.out, err = p.intf.OutEndpoint(fifoEndpoint); err != nil {
		return fmt.Errorf("out pipe: %w", err)
	}
	if p.in, err = p.intf.InEndpoint(fifoEndpoint); err != nil {
		return fmt.Errorf("in pipe: %w", err)
	}
	return nil
}

func (p *pipes) Write(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.out.WriteContext(ctx, b)
}

func (p *pipes) Read(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.in.ReadContext(ctx, b)
}

func (p *pipes) Close() error {
	if p.intf != nil {
		p.intf.Close()
	}
	var errs []error
	if p.config != nil {
		errs = append(errs, p.config.Close())
	}
	errs = append(errs, p.dev.Close(), p.ctx.Close())
	return errors.Join(errs...)
}

// Info describes an attached FT600.
type Info struct {
	Bus          int
	Address      int
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
}

// List returns every attached FT600 matching the IDs in cfg.
func List(cfg Config) ([]Info, error) {
	vid, pid := cfg.ids()

	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	defer func() {
		for _, d := range devs {
			_ = d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		info := Info{
			Bus:       d.Desc.Bus,
			Address:   d.Desc.Address,
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
		}
		info.Manufacturer, _ = d.Manufacturer()
		info.Product, _ = d.Product()
		info.Serial, _ = d.SerialNumber()
		out = append(out, info)
	}
	return out, nil
}
