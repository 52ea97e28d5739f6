package hid

import (
	"context"
	"sync"
)

// MockDevice records what is written to it and emits reports on demand.
type MockDevice struct {
	mu       sync.Mutex
	reports  chan Report
	written  []Report
	features map[byte][]byte
	closed   bool
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		reports:  make(chan Report, 64),
		features: make(map[byte][]byte),
	}
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockDevice) WriteReport(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, Report{ID: r.ID, Data: append([]byte(nil), r.Data...)})
	return nil
}

func (m *MockDevice) PollReports(ctx context.Context) <-chan Report {
	out := make(chan Report)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-m.reports:
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (m *MockDevice) SetFeature(reportID byte, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features[reportID] = append([]byte(nil), data...)
	return nil
}

// Emit queues r as if the device had sent it.
func (m *MockDevice) Emit(r Report) {
	m.reports <- r
}

// Written returns every report written so far.
func (m *MockDevice) Written() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Report(nil), m.written...)
}

// Feature returns the last data set for a feature report.
func (m *MockDevice) Feature(reportID byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.features[reportID]
}

func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockManager lists Devices and opens Device for any ID.
type MockManager struct {
	Devices []Info
	Device  Device
	Err     error
}

func (m *MockManager) List() ([]Info, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]Info(nil), m.Devices...), nil
}

func (m *MockManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Device, nil
}
