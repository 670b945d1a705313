package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sparkbox/core"
	"sparkbox/host/config"
	"sparkbox/host/midiport"
	"sparkbox/host/serial"
	"sparkbox/protocol"
)

var (
	configPath = flag.String("config", "", "Config file (default ~/.config/sparkbox/config.json)")
	device     = flag.String("device", "", "Amp serial device, overrides the config")
	appDevice  = flag.String("app", "", "Phone app serial device for passthrough, overrides the config")
	midiName   = flag.String("midi", "", "MIDI input port name or substring, overrides the config")
	list       = flag.Bool("list", false, "List MIDI inputs and the amp command table, then exit")
	info       = flag.Bool("info", false, "Query the amp name, serial, firmware and preset, then exit")
	preset     = flag.Int("preset", -1, "Select a hardware preset (0-3), wait for the ack, then exit")
	verbose    = flag.Bool("verbose", false, "Enable debug output")
)

// logger is the package-wide structured logger
var logger = slog.Default()

// initLogger configures the shared slog logger and routes the core debug
// output through it
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)

	core.SetDebugWriter(func(s string) { logger.Debug(s) })
	core.SetDebugEnabled(debug)
}

func main() {
	flag.Parse()
	initLogger(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger = logger.With("bridge", cfg.ID)

	if *device != "" {
		cfg.AmpDevice = *device
	}
	if *appDevice != "" {
		cfg.AppDevice = *appDevice
	}
	if *midiName != "" {
		cfg.MidiPort = *midiName
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *list:
		listPorts()
	case *info:
		err = queryAmp(ctx, cfg)
	case *preset >= 0:
		err = selectPreset(ctx, cfg, uint8(*preset))
	default:
		err = runBridge(ctx, cfg)
	}
	if err != nil {
		logger.Error("sparkbox-host failed", "err", err)
		os.Exit(1)
	}
}

func listPorts() {
	defer midiport.Shutdown()

	fmt.Println("MIDI inputs:")
	ports := midiport.ListInPorts()
	if len(ports) == 0 {
		fmt.Println("  (none)")
	}
	for _, name := range ports {
		fmt.Printf("  %s\n", name)
	}

	fmt.Println("\nAmp commands:")
	amp := core.NewAmp(nil)
	fmt.Print(indent(amp.Commands().Dictionary()))

	fmt.Println("\nAmp responses:")
	responses := core.NewCommandRegistry()
	amp.RegisterHandlers(responses)
	fmt.Print(indent(responses.Dictionary()))
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "")
}

func openAmp(cfg *config.Config) (*protocol.HostTransport, error) {
	portCfg := serial.DefaultConfig(cfg.AmpDevice)
	portCfg.Baud = cfg.AmpBaud

	port, err := serial.Open(portCfg)
	if err != nil {
		return nil, err
	}
	link := protocol.NewHostTransport(port)
	link.SetMaxChunk(cfg.MaxChunk)
	return link, nil
}

// queryAmp sends the startup requests and prints what comes back
func queryAmp(ctx context.Context, cfg *config.Config) error {
	link, err := openAmp(cfg)
	if err != nil {
		return err
	}
	defer link.Close()

	amp := core.NewAmp(link)
	responses := core.NewCommandRegistry()
	amp.RegisterHandlers(responses)

	requests := []struct {
		name   string
		send   func() error
		expect uint16
	}{
		{"name", amp.RequestName, core.RspName},
		{"serial", amp.RequestSerial, core.RspSerial},
		{"firmware", amp.RequestFirmware, core.RspFirmware},
		{"preset", amp.RequestPresetNumber, core.RspHardwarePresetNumber},
	}

	for _, req := range requests {
		if err := req.send(); err != nil {
			return fmt.Errorf("failed to request %s: %w", req.name, err)
		}
		if err := awaitResponse(ctx, link, responses, req.expect); err != nil {
			return fmt.Errorf("no %s response: %w", req.name, err)
		}
	}

	state := amp.State()
	fmt.Printf("Name:     %s\n", state.Name)
	fmt.Printf("Serial:   %s\n", state.Serial)
	fmt.Printf("Firmware: %s\n", state.FirmwareString())
	fmt.Printf("Preset:   %d\n", state.CurrentPreset)
	return nil
}

// awaitResponse dispatches responses until one with cmdsub want arrives
func awaitResponse(ctx context.Context, link *protocol.HostTransport, responses *core.CommandRegistry, want uint16) error {
	deadline := time.Now().Add(protocol.DefaultAckTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protocol.ErrAckTimeout
		}
		msg, err := link.ReceiveResponse(remaining)
		if err != nil {
			return err
		}
		if err := responses.Dispatch(&msg); err != nil && !errors.Is(err, core.ErrUnknownCommand) {
			logger.Warn("bad response", "msg", msg.String(), "err", err)
		}
		if msg.CmdSub == want {
			return nil
		}
	}
}

// selectPreset switches presets and waits for the amp to acknowledge
func selectPreset(ctx context.Context, cfg *config.Config, n uint8) error {
	if n >= core.NumPresets {
		return fmt.Errorf("preset %d: %w", n, core.ErrPresetOutOfRange)
	}
	link, err := openAmp(cfg)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, cancel := context.WithTimeout(ctx, protocol.DefaultAckTimeout)
	defer cancel()
	if err := link.SendAndWait(ctx, core.CmdChangeHardwarePreset, func(e *protocol.Encoder) {
		e.WriteUint8(n)
	}); err != nil {
		return err
	}
	logger.Info("preset selected", "preset", n)
	return nil
}

// pump copies a port into a transport until the port fails or ctx ends
func pump(ctx context.Context, name string, port io.Reader, link *protocol.Transport) {
	buffer := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := port.Read(buffer)
		if n > 0 {
			if derr := link.Deliver(buffer[:n]); derr != nil {
				logger.Warn("receive buffer full, dropping", "port", name, "bytes", n)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				logger.Error("port closed", "port", name, "err", err)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// runBridge runs the bridge loop on this goroutine. Reader goroutines only
// deliver bytes; every handler runs here.
func runBridge(ctx context.Context, cfg *config.Config) error {
	bridgeCfg, err := cfg.BridgeConfig()
	if err != nil {
		return err
	}

	portCfg := serial.DefaultConfig(cfg.AmpDevice)
	portCfg.Baud = cfg.AmpBaud
	ampPort, err := serial.Open(portCfg)
	if err != nil {
		return err
	}
	defer ampPort.Close()

	var appPort serial.Port
	var appSink io.Writer
	if cfg.AppDevice != "" {
		appPort, err = serial.Open(serial.DefaultConfig(cfg.AppDevice))
		if err != nil {
			return err
		}
		defer appPort.Close()
		appSink = appPort
	}

	bridge := core.NewBridge(ampPort, appSink, bridgeCfg)
	bridge.Amp().OnPresetChanged = func(p uint8) {
		logger.Info("amp preset changed", "preset", p)
	}

	defer midiport.Shutdown()
	listener, err := midiport.Open(cfg.MidiPort, bridge.MidiInput(), logger)
	if err != nil {
		logger.Warn("running without MIDI input", "err", err)
	} else {
		defer listener.Close()
	}

	go pump(ctx, cfg.AmpDevice, ampPort, bridge.AmpTransport())
	if appPort != nil {
		go pump(ctx, cfg.AppDevice, appPort, bridge.AppTransport())
	}

	start := time.Now()
	ticks := func() uint32 { return uint32(time.Since(start) / time.Millisecond) }

	bridge.Start(ticks())
	logger.Info("bridge running", "amp", cfg.AmpDevice, "app", cfg.AppDevice, "tick", cfg.TickMS)

	ticker := time.NewTicker(time.Duration(cfg.TickMS) * time.Millisecond)
	defer ticker.Stop()
	report := time.NewTicker(30 * time.Second)
	defer report.Stop()

	healthy := bridge.Healthy()
	for {
		select {
		case <-ctx.Done():
			bridge.Stop()
			bridge.Events().Dump(func(s string) { logger.Debug(s) })
			logStats(bridge.Stats())
			return nil

		case <-ticker.C:
			now := ticks()
			core.SetTime(now)
			bridge.Tick(now)

			if h := bridge.Healthy(); h != healthy {
				healthy = h
				if h {
					logger.Info("amp link healthy")
				} else {
					logger.Warn("amp link silent, transport reset", "resets", bridge.Stats().HealthResets)
				}
			}

		case <-report.C:
			logStats(bridge.Stats())
		}
	}
}

func logStats(s core.BridgeStats) {
	logger.Info("bridge stats",
		"healthy", s.Healthy,
		"decoded", s.Amp.Decoder.Decoded,
		"acks", s.Amp.Decoder.Acks,
		"checksum_errors", s.Amp.Decoder.ChecksumErrors,
		"malformed", s.Amp.Decoder.Malformed,
		"resets", s.HealthResets,
		"midi_events", s.MidiEvents,
		"actions", s.Actions,
		"forwarded", s.Forwarded,
		"send_errors", s.SendErrors,
	)
}
