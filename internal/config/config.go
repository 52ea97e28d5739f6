// Package config loads the mesactl configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

const (
	TransportFT600  = "ft600"
	TransportUART   = "uart"
	TransportCP2110 = "cp2110"
	TransportSim    = "sim"

	// EnvLogLevel overrides log_level from the file.
	EnvLogLevel = "MESABUS_LOG_LEVEL"
)

type Config struct {
	Transport   string
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	// LineFeed overrides the framing default of the transport; see
	// UseLineFeed.
	LineFeed *bool
	Slot     uint8
	Subslot  uint8
	// VendorID and ProductID of the USB bridge; zero selects the default
	// IDs of the chosen transport.
	VendorID  uint16
	ProductID uint16
	LogLevel  slog.Level
}

type fileConfig struct {
	Transport   string `toml:"transport"`
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	ReadTimeout string `toml:"read_timeout"`
	LineFeed    bool   `toml:"line_feed"`
	Slot        int    `toml:"slot"`
	Subslot     int    `toml:"subslot"`
	VID         int    `toml:"vid"`
	PID         int    `toml:"pid"`
	LogLevel    string `toml:"log_level"`
}

func Default() Config {
	return Config{
		Transport:   TransportFT600,
		BaudRate:    921600,
		ReadTimeout: time.Second,
		LogLevel:    slog.LevelInfo,
	}
}

// Load reads path over the defaults. An empty path yields the defaults. The
// MESABUS_LOG_LEVEL environment variable wins over the file either way.
// Callers apply their own overrides and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		lvl, err := ParseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.BaudRate = raw.Baud
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("line_feed") {
		lf := raw.LineFeed
		cfg.LineFeed = &lf
	}
	if meta.IsDefined("slot") {
		if raw.Slot < 0 || raw.Slot > 0xFF {
			return fmt.Errorf("slot %d out of range", raw.Slot)
		}
		cfg.Slot = uint8(raw.Slot)
	}
	if meta.IsDefined("subslot") {
		if raw.Subslot < 0 || raw.Subslot > 0xFF {
			return fmt.Errorf("subslot %d out of range", raw.Subslot)
		}
		cfg.Subslot = uint8(raw.Subslot)
	}
	if meta.IsDefined("vid") {
		if raw.VID < 0 || raw.VID > 0xFFFF {
			return fmt.Errorf("vid 0x%x out of range", raw.VID)
		}
		cfg.VendorID = uint16(raw.VID)
	}
	if meta.IsDefined("pid") {
		if raw.PID < 0 || raw.PID > 0xFFFF {
			return fmt.Errorf("pid 0x%x out of range", raw.PID)
		}
		cfg.ProductID = uint16(raw.PID)
	}
	if meta.IsDefined("log_level") {
		lvl, err := ParseLogLevel(raw.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportFT600, TransportCP2110, TransportSim:
	case TransportUART:
		if c.Port == "" {
			return fmt.Errorf("transport %s requires a port", c.Transport)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate %d must be positive", c.BaudRate)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read timeout %v must not be negative", c.ReadTimeout)
	}
	return c.Device().Validate()
}

// UseLineFeed reports whether frames are terminated by a line feed. The UART
// bridges default to it, since the device ends every response with '\n' on
// its UART port; the FT600 FIFO port never does.
func (c Config) UseLineFeed() bool {
	if c.LineFeed != nil {
		return *c.LineFeed
	}
	return c.Transport == TransportUART || c.Transport == TransportCP2110
}

func (c Config) Device() mesabus.Device {
	return mesabus.Device{Slot: c.Slot, Subslot: c.Subslot}
}

// ParseLogLevel accepts the slog level names (debug, info, warn, error) in
// any case.
func ParseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, err
	}
	return lvl, nil
}
