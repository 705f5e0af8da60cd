package game

import (
	"log/slog"

	"github.com/pthm-cable/flowswarm/swarm"
	"github.com/pthm-cable/flowswarm/telemetry"
)

// Options configures a Game beyond what the config file holds.
type Options struct {
	Seed      int64  // worker RNG seed; worker i uses Seed+i
	Workers   int    // overrides workers.count when positive
	Headless  bool   // drive the goal from the waypoint schedule
	LogStats  bool   // log perf and swarm stats each window
	OutputDir string // CSV output directory (empty = disabled)

	Logger  *slog.Logger
	Spawner swarm.Spawner // nil = one goroutine per worker

	// StatsCallback receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}
