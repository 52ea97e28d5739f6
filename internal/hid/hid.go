package hid

import "context"

// Report is one HID report. Data excludes the report ID.
type Report struct {
	ID   byte
	Data []byte
}

// Device represents an opened HID device capable of report I/O.
type Device interface {
	WriteReport(ctx context.Context, r Report) error
	// PollReports reads input reports in the background until ctx is done
	// or a read fails, then closes the returned channel.
	PollReports(ctx context.Context) <-chan Report
	SetFeature(reportID byte, data []byte) error
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	OpenVIDPID(vendorID, productID uint16) (Device, error)
}

// NewManager returns the OS HID manager.
func NewManager() Manager {
	return &usbManager{}
}
