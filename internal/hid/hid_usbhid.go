package hid

import (
	"context"
	"log/slog"

	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct{}

func (m *usbManager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Product:      d.Product(),
			Manufacturer: d.Manufacturer(),
		})
	}
	return out, nil
}

func (m *usbManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.VendorId() == vendorID && dev.ProductId() == productID
	}, true, false)
	if err != nil {
		return nil, err
	}
	return &usbDevice{d}, nil
}

type usbDevice struct{ d *usbhid.Device }

func (d *usbDevice) WriteReport(_ context.Context, r Report) error {
	return d.d.SetOutputReport(r.ID, r.Data)
}

func (d *usbDevice) PollReports(ctx context.Context) <-chan Report {
	out := make(chan Report)

	go func() {
		defer close(out)
		for {
			id, buf, err := d.d.GetInputReport()
			if err != nil {
				if ctx.Err() == nil {
					slog.Info("reading report failed", slog.Any("error", err))
				}
				return
			}

			select {
			case out <- Report{ID: id, Data: buf}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (d *usbDevice) SetFeature(reportID byte, data []byte) error {
	return d.d.SetFeatureReport(reportID, data)
}

func (d *usbDevice) Close() error { return d.d.Close() }
