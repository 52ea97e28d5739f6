package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/seagrayinc/mesabus/internal/config"
	"github.com/seagrayinc/mesabus/internal/cp2110"
	"github.com/seagrayinc/mesabus/internal/ft600"
	"github.com/seagrayinc/mesabus/internal/hid"
	"github.com/seagrayinc/mesabus/internal/sim"
	"github.com/seagrayinc/mesabus/internal/uart"
	"github.com/seagrayinc/mesabus/pkg/localbus"
	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

type opener func(cfg config.Config) (mesabus.Transport, error)

// deps are the hardware entry points; tests replace them.
type deps struct {
	open      opener
	hid       hid.Manager
	listFT600 func(ft600.Config) ([]ft600.Info, error)
}

func defaultDeps() deps {
	return deps{
		open:      openTransport,
		hid:       hid.NewManager(),
		listFT600: ft600.List,
	}
}

type app struct {
	deps
	errOut io.Writer

	cfgFile   string
	transport string
	port      string
	baud      int
	slot      uint8
	subslot   uint8
	lineFeed  bool
	logLevel  string
	reopen    bool

	cfg  config.Config
	log  *slog.Logger
	bus  *mesabus.Bus
	link *localbus.Link
}

func run(ctx context.Context, args []string, out, errOut io.Writer, d deps) error {
	a := &app{deps: d, errOut: errOut}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mesactl",
		Short: "Read and write the local bus of a MesaBus device",
		Long: `mesactl talks to one slot/subslot on a MesaBus chain through an FT600
USB 3.0 FIFO bridge, a serial UART, a CP2110 HID UART bridge or the built-in
simulator.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "TOML config file")
	f.StringVar(&a.transport, "transport", "", "ft600, uart, cp2110 or sim")
	f.StringVar(&a.port, "port", "", "serial port for the uart transport")
	f.IntVar(&a.baud, "baud", 0, "UART baud rate")
	f.Uint8Var(&a.slot, "slot", 0, "device slot")
	f.Uint8Var(&a.subslot, "subslot", 0, "device subslot (0-15)")
	f.BoolVar(&a.lineFeed, "line-feed", false, "terminate frames with a line feed (default on for uart and cp2110)")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&a.reopen, "reopen", false, "cycle the FT600 handle and wait for re-enumeration, after its chip configuration was changed with FTDI's configuration utility")

	root.AddCommand(
		a.rdCmd(),
		a.wrCmd(),
		a.selftestCmd(),
		a.benchCmd(),
		a.listCmd(),
	)
	return root
}

// loadConfig builds the effective configuration from the file, the
// environment and the flags, and installs the logger.
func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport = a.transport
	}
	if flags.Changed("port") {
		cfg.Port = a.port
	}
	if flags.Changed("baud") {
		cfg.BaudRate = a.baud
	}
	if flags.Changed("slot") {
		cfg.Slot = a.slot
	}
	if flags.Changed("subslot") {
		cfg.Subslot = a.subslot
	}
	if flags.Changed("line-feed") {
		lf := a.lineFeed
		cfg.LineFeed = &lf
	}
	if flags.Changed("log-level") {
		lvl, err := config.ParseLogLevel(a.logLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(a.log)
	return nil
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := a.loadConfig(cmd, args); err != nil {
		return err
	}
	cfg := a.cfg

	t, err := a.open(cfg)
	if err != nil {
		return err
	}
	if a.reopen {
		ft, ok := t.(*ft600.Transport)
		if !ok {
			closeTransport(t)
			return fmt.Errorf("--reopen needs the %s transport", config.TransportFT600)
		}
		a.log.Info("waiting for FT600 to re-enumerate", slog.Duration("delay", ft600.ReenumerateDelay))
		if t, err = ft600.Reopen(ft); err != nil {
			return err
		}
	}
	a.bus = mesabus.NewBus(t, mesabus.WithLogger(a.log))
	if err := a.bus.Reset(); err != nil {
		return fmt.Errorf("bus reset: %w", err)
	}

	a.link, err = localbus.New(a.bus, cfg.Device(), localbus.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.log.Debug("link ready", slog.String("transport", cfg.Transport), slog.String("device", cfg.Device().String()))
	return nil
}

func (a *app) close() {
	if a.bus == nil {
		return
	}
	if err := a.bus.Close(); err != nil {
		a.log.Warn("closing transport failed", slog.Any("error", err))
	}
}

func closeTransport(t mesabus.Transport) {
	if c, ok := t.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("closing transport failed", slog.Any("error", err))
		}
	}
}

func openTransport(cfg config.Config) (mesabus.Transport, error) {
	switch cfg.Transport {
	case config.TransportFT600:
		return ft600.Open(ft600Config(cfg))
	case config.TransportUART:
		return uart.Open(uartConfig(cfg))
	case config.TransportCP2110:
		return cp2110.Open(hid.NewManager(), cp2110Config(cfg))
	case config.TransportSim:
		return sim.New(cfg.Device()), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

// ft600Config, uartConfig and cp2110Config select the IDs of cfg only when
// they were meant for that transport.
func ft600Config(cfg config.Config) ft600.Config {
	c := ft600.Config{Timeout: cfg.ReadTimeout}
	if cfg.Transport == config.TransportFT600 {
		c.VendorID, c.ProductID = cfg.VendorID, cfg.ProductID
	}
	return c
}

func uartConfig(cfg config.Config) uart.Config {
	return uart.Config{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		LineFeed:    cfg.UseLineFeed(),
	}
}

func cp2110Config(cfg config.Config) cp2110.Config {
	c := cp2110.Config{
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		LineFeed:    cfg.UseLineFeed(),
	}
	if cfg.Transport == config.TransportCP2110 {
		c.VendorID, c.ProductID = cfg.VendorID, cfg.ProductID
	}
	return c
}
