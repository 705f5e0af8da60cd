package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flowswarm/config"
	"github.com/pthm-cable/flowswarm/game"
	"github.com/pthm-cable/flowswarm/renderer"
)

func main() {
	configPath := flag.String("config", "", "Path to a .yaml or .toml config (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics, goal follows headless.waypoints")
	seed := flag.Int64("seed", 0, "Worker RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	workers := flag.Int("workers", 0, "Worker count (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	logStats := flag.Bool("log-stats", false, "Log perf and swarm stats each window")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	opts := game.Options{
		Seed:      rngSeed,
		Workers:   *workers,
		Headless:  *headless,
		LogStats:  *logStats,
		OutputDir: *outputDir,
		Logger:    logger,
	}

	if *headless {
		g, err := game.NewGame(cfg, opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}
		defer g.Unload()

		slog.Info("starting headless simulation", "seed", rngSeed, "max_ticks", *maxTicks)
		for *maxTicks == 0 || g.Tick() < *maxTicks {
			g.Update(nil)
		}
		slog.Info("max ticks reached", "tick", g.Tick())
		return
	}

	w, h := int32(cfg.Derived.ScreenW32), int32(cfg.Derived.ScreenH32)
	rl.InitWindow(w, h, "flowswarm")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.NewGame(cfg, opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer g.Unload()

	input := renderer.NewInput(float32(cfg.Derived.BoardW), float32(cfg.Derived.BoardH))
	sink := renderer.NewSink(w, h, int32(cfg.Derived.BoardH), input)

	for !rl.WindowShouldClose() {
		g.Update(input)
		g.Render(sink)

		if *maxTicks > 0 && g.Tick() >= *maxTicks {
			break
		}
	}
}
