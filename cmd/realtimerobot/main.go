package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	realtimerobot "github.com/Eric-Butcher/RealTimeRobot"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "bot":
		err = botCommand(os.Args[2:])
	case "controller":
		err = controllerCommand(os.Args[2:])
	case "selftest":
		err = selfTestCommand(os.Args[2:])
	case "sim":
		err = simCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("realtimerobot %s: %v", cmd, err)
	}
}

// commonFlags are shared by every command that builds a runtime.
type commonFlags struct {
	config   *string
	logLevel *string
	metrics  *string
}

func newFlagSet(name string) (*pflag.FlagSet, commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	return fs, commonFlags{
		config:   fs.StringP("config", "c", "", "Path to configuration file (defaults apply when empty)"),
		logLevel: fs.String("log-level", "", "Override logging.level"),
		metrics:  fs.String("metrics-addr", "", "Override metrics.addr"),
	}
}

func (f commonFlags) load() (*realtimerobot.Config, error) {
	var (
		cfg *realtimerobot.Config
		err error
	)
	if *f.config == "" {
		cfg = realtimerobot.DefaultConfig()
	} else if cfg, err = realtimerobot.LoadConfig(*f.config); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if *f.logLevel != "" {
		cfg.Logging.Level = *f.logLevel
	}
	if *f.metrics != "" {
		cfg.Metrics.Addr = *f.metrics
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func botCommand(args []string) error {
	fs, common := newFlagSet("bot")
	port := fs.String("port", "", "Override drive.serial.port")
	adapter := fs.String("adapter", "", "Override link.bluez.adapter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Drive.Serial.Port = *port
	}
	if *adapter != "" {
		cfg.Link.BlueZ.Adapter = *adapter
	}

	r, err := realtimerobot.NewReceiver(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return r.Run(ctx)
}

func controllerCommand(args []string) error {
	fs, common := newFlagSet("controller")
	central := fs.String("central", "", "Override controller.central_address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *central != "" {
		cfg.Controller.CentralAddress = *central
	}

	c, err := realtimerobot.NewController(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return c.Run(ctx)
}

func selfTestCommand(args []string) error {
	fs, common := newFlagSet("selftest")
	port := fs.String("port", "", "Override drive.serial.port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Drive.Serial.Port = *port
	}
	cfg.Metrics.Addr = ""

	r, err := realtimerobot.NewReceiver(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	if err := r.SelfTest(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("self test complete")
	return nil
}

func simCommand(args []string) error {
	fs, common := newFlagSet("sim")
	duration := fs.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	return realtimerobot.RunSimulation(ctx, cfg)
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "./config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := realtimerobot.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"realtimerobot_link_state",
	"realtimerobot_link_transitions_total",
	"realtimerobot_link_drops_total",
	"realtimerobot_poll_cycles_total",
	"realtimerobot_motor1_drive",
	"realtimerobot_samples_published_total",
	"realtimerobot_telemetry_dropped_total",
}

func printMetricsSnapshot(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(bufio.NewScanner(resp.Body), statsTargets)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", time.Now().Format(time.RFC3339))
	for _, key := range statsTargets {
		fmt.Fprintf(&b, " %s=%g", strings.TrimPrefix(key, "realtimerobot_"), values[key])
	}
	fmt.Println(b.String())
	return nil
}

// scanMetrics picks unlabelled samples for keys out of the text exposition format.
func scanMetrics(scanner *bufio.Scanner, keys []string) (map[string]float64, error) {
	out := make(map[string]float64, len(keys))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range keys {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					out[key] = value
				}
			}
		}
	}
	return out, scanner.Err()
}

func printUsage() {
	fmt.Printf(`RealTimeRobot CLI

Usage:
  realtimerobot <command> [flags]

Commands:
  bot         Run the receiver: find the controller and drive the motors
  controller  Run the input source: advertise and stream controller inputs
  selftest    Ramp every motor pin once and exit
  sim         Run both roles in process over an in-memory radio
  validate    Load and validate a config file without starting anything
  stats       Poll the Prometheus metrics endpoint and print live counters

Examples:
  realtimerobot bot --config ./config.yaml --port /dev/ttyACM0
  realtimerobot controller --config ./config.yaml
  realtimerobot sim --duration 30s --log-level debug
  realtimerobot validate --config ./config.yaml
  realtimerobot stats --url http://localhost:9100/metrics --interval 1s
`)
}
