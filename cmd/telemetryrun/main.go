package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/synopticon/telemetry-fusion/internal/batcher"
	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/config"
	"github.com/synopticon/telemetry-fusion/internal/discovery"
	"github.com/synopticon/telemetry-fusion/internal/distributor"
	"github.com/synopticon/telemetry-fusion/internal/fusion"
	"github.com/synopticon/telemetry-fusion/internal/metrics"
	"github.com/synopticon/telemetry-fusion/internal/pipeline"
	"github.com/synopticon/telemetry-fusion/internal/quality"
	"github.com/synopticon/telemetry-fusion/internal/session"
	"github.com/synopticon/telemetry-fusion/internal/temporal"
	"github.com/synopticon/telemetry-fusion/internal/types"
)

const (
	appName = "telemetryrun"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-modal telemetry fusion runtime",
		Version: version,
		Long: `telemetryrun fuses eye-tracker, simulator, weather, and physiology
streams into human-state, environmental, and situational-awareness
fusion results, and republishes them to subscribers.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Discover devices and run the full fusion pipeline",
		RunE:  runPipeline,
	}
	runCmd.Flags().String("config", "", "Path to a YAML config file (optional, defaults applied otherwise)")
	runCmd.Flags().Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090); empty disables it")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Run standalone device discovery and print found devices",
		RunE:  runDiscover,
	}
	discoverCmd.Flags().Duration("window", discovery.DefaultWindow, "Bounded discovery scan window")
	discoverCmd.Flags().Bool("progress", true, "Print scan start and timed summary lines")

	replayCmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay newline-delimited JSON samples through the fusion pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(replayCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// serveMetrics runs a Prometheus text-exposition HTTP server until the
// process exits. It logs and returns on listen failure (e.g. the address
// is already in use) rather than taking the whole pipeline down with it.
func serveMetrics(addr string, registry *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.MetricsHandler())
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

func loadConfigOrDefault(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to load config, using defaults")
		return config.Default()
	}
	return cfg
}

// runPipeline wires mock eye-tracker, aircraft and weather sessions into
// the Fusion Engine and Distributor: Device Session -> (Adaptive Batcher
// for the eye-tracker) -> Fusion Engine -> Distributor. No Stream Node or
// Sync Engine is wired. Only mock transports are used; the real transports
// in internal/session/transport/* are not selectable from this command.
func runPipeline(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	dur, _ := cmd.Flags().GetDuration("duration")
	cfg := loadConfigOrDefault(cfgPath)

	clk := clock.NewSystemClock()
	registry := metrics.New()

	engine := fusion.NewEngine(fusion.Config{
		HumanThreshold: cfg.Fusion.FusionThresholds.Human,
		EnvThreshold:   cfg.Fusion.FusionThresholds.Environmental,
		MaxHistory:     cfg.Fusion.MaxHistory,
	}, clk, quality.NewAssessor(nil), temporal.NewStore(cfg.Fusion.MaxHistory), log.Logger)
	engine.SetMetrics(registry)

	distrib := distributor.New(cfg.Distributor.PerSubscriberHighWatermark, distributor.NewMemoryBroker(), log.Logger)
	distrib.SetMetrics(registry)
	rt := pipeline.NewRuntime(engine, distrib, log.Logger)

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, registry)
	}

	eyeMock := session.NewMockTransport(clk, session.GazeGenerator, time.Now().UnixNano())
	eyeSession := session.New("mock-eye-tracker", session.Config{MockMode: true}, eyeMock, clk, log.Logger)
	eyeSession.SetMetrics(registry)
	eyeSession.OnStateChange(func(from, to session.State) { registry.RecordSessionState("mock-eye-tracker", string(to)) })

	aircraftMock := session.NewMockTransport(clk, session.AircraftGenerator, time.Now().UnixNano()+1)
	aircraftSession := session.New("mock-aircraft", session.Config{MockMode: true}, aircraftMock, clk, log.Logger)
	aircraftSession.SetMetrics(registry)
	rt.AttachSession(aircraftSession, pipeline.DecodeAircraft)
	aircraftSession.OnStateChange(func(from, to session.State) { registry.RecordSessionState("mock-aircraft", string(to)) })

	// VATSIM-style weather poll, spec.md §4.10/§6: a wall-clock-stamped
	// external source, so its decode runs through a SkewTracker rather
	// than the device sessions' monotonic timestamps.
	skew := clock.NewSkewTracker(clk)
	weatherMock := session.NewMockTransport(clk, session.WeatherGenerator(clk), time.Now().UnixNano()+2)
	weatherSession := session.New("mock-vatsim-weather", session.Config{MockMode: true}, weatherMock, clk, log.Logger)
	weatherSession.SetMetrics(registry)
	rt.AttachSession(weatherSession, func(raw []byte) (types.Sample, error) {
		return pipeline.DecodeWeather(skew, "vatsim", raw)
	})
	weatherSession.OnStateChange(func(from, to session.State) { registry.RecordSessionState("mock-vatsim-weather", string(to)) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	if dur > 0 {
		go func() {
			select {
			case <-time.After(dur):
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	gazeBatcher := rt.AttachSessionBatched(ctx, eyeSession, func(raw []byte) (types.Sample, error) {
		return pipeline.DecodeGaze("mock-eye-tracker", raw)
	}, batcher.Config{
		BaseInterval:  cfg.Batcher.BaseInterval(),
		MaxBatchSize:  cfg.Batcher.MaxBatchSize,
		TargetLatency: cfg.Batcher.TargetLatency(),
	})
	gazeBatcher.SetMetrics(registry)

	go rt.PublishFusionEvents()
	eyeSession.Connect(ctx)
	aircraftSession.Connect(ctx)
	weatherSession.Connect(ctx)

	log.Info().Msg("fusion pipeline running")

	select {
	case <-sigCh:
		log.Info().Msg("received shutdown signal")
	case <-ctx.Done():
	}

	eyeSession.Disconnect()
	aircraftSession.Disconnect()
	weatherSession.Disconnect()
	log.Info().Int64("total_ingestions", engine.Metrics().TotalIngestions).Msg("fusion pipeline stopped")
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	window, _ := cmd.Flags().GetDuration("window")
	showProgress, _ := cmd.Flags().GetBool("progress")
	clk := clock.NewSystemClock()

	report := newScanReport("device discovery", showProgress)

	d := discovery.New(discovery.Config{Window: window, MockEnabled: true}, noopScanner{}, clk)
	d.Run(context.Background())
	report.done(len(d.Known()))

	for _, dev := range d.Known() {
		fmt.Printf("%s\t%s:%d\t%v\n", dev.ID, dev.Address, dev.Port, dev.Capabilities)
	}
	return nil
}

type noopScanner struct{}

func (noopScanner) Scan(ctx context.Context) ([]discovery.Device, error) { return nil, nil }

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	clk := clock.NewSystemClock()
	cfg := config.Default()
	engine := fusion.NewEngine(fusion.Config{
		HumanThreshold: cfg.Fusion.FusionThresholds.Human,
		EnvThreshold:   cfg.Fusion.FusionThresholds.Environmental,
		MaxHistory:     cfg.Fusion.MaxHistory,
	}, clk, quality.NewAssessor(nil), temporal.NewStore(cfg.Fusion.MaxHistory), log.Logger)

	phases := &replayPhases{}
	phases.begin("decode+ingest")

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := pipeline.ReplayLine(engine, line); err != nil {
			log.Warn().Err(err).Int("line", lineNo).Msg("skipping unreadable replay line")
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		phases.fail(err.Error())
		return fmt.Errorf("read replay file: %w", err)
	}
	phases.end()

	m := engine.Metrics()
	fmt.Printf("replayed %d lines: %d ingestions, %d fusions\n", lineNo, m.TotalIngestions, m.TotalFusions)
	return nil
}
