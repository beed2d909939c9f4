package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/quartz"

	"github.com/ghalamif/sensorboard"
	"github.com/ghalamif/sensorboard/internal/adapters/mqtt"
	"github.com/ghalamif/sensorboard/internal/adapters/sink"
	"github.com/ghalamif/sensorboard/internal/adapters/synthetic"
	"github.com/ghalamif/sensorboard/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "publish":
		err = publishCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		slog.Error("command failed", slog.String("command", cmd), slog.Any("err", err))
		os.Exit(1)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to dashboard configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorboard.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	board, err := sensorboard.ConfFromConfig(cfg, sensorboard.WithBoardOptions(sensorboard.WithLogger(logger)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return board.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	ping := fs.Bool("ping", false, "Also connect to the archive database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorboard.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *ping && cfg.Archive.Enabled() {
		db, err := sink.Open(context.Background(), cfg.Archive.ConnString)
		if err != nil {
			return err
		}
		db.Close()
	}

	fmt.Printf("config %s looks good (sources: %s)\n", *cfgPath, strings.Join(cfg.EnabledSources(), ", "))
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080/api/stats", "Dashboard stats endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming stats from %s (Ctrl+C to stop)\n", *url)
	for {
		if err := printStats(ctx, *url); err != nil {
			fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type statsBody struct {
	SessionID string `json:"session_id"`
	sensorboard.WindowStats
}

func printStats(ctx context.Context, url string) error {
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

	var body statsBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	fmt.Printf("[%s] session=%s len=%d/%d pushed=%d evicted=%d last_seq=%d\n",
		time.Now().Format(time.RFC3339),
		body.SessionID, body.Len, body.Cap, body.Pushed, body.Evicted, body.LastSeq,
	)
	return nil
}

func publishCommand(args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	broker := fs.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topic := fs.String("topic", "sensors/room1/temp", "Topic to publish readings on")
	device := fs.String("device", "esp32-room1", "Device id carried in each reading")
	interval := fs.Duration("interval", 2*time.Second, "Delay between readings")
	count := fs.Int("count", 0, "Stop after this many readings (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := logging.Init("text", slog.LevelInfo)

	pub, err := mqtt.NewPublisher(mqtt.Config{Broker: *broker, ClientID: "sensorboard-publisher"})
	if err != nil {
		return err
	}
	if err := pub.Connect(); err != nil {
		return err
	}
	defer pub.Close()

	gen := synthetic.NewGenerator(synthetic.Config{DeviceID: *device, Topic: *topic}, quartz.NewReal())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for sent := 0; *count == 0 || sent < *count; sent++ {
		if err := pub.Publish(*topic, gen.Payload()); err != nil {
			return err
		}
		logger.Info("published reading", slog.String("topic", *topic), slog.Int("n", sent+1))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func printUsage() {
	fmt.Printf(`sensorboard CLI

Usage:
  sensorboard <command> [flags]

Commands:
  run        Start the dashboard session using the provided config
  validate   Load and validate a config file without starting anything
  stats      Poll a running session's stats endpoint
  publish    Publish simulated ESP32 readings to an MQTT broker

Examples:
  sensorboard run -config ./data/config.yaml
  sensorboard validate -config ./data/config.yaml -ping
  sensorboard stats -url http://localhost:8080/api/stats -interval 1s
  sensorboard publish -broker tcp://localhost:1883 -count 10
`)
}
