package telemetry

import (
	"github.com/pthm-cable/flowswarm/systems"
	"gonum.org/v1/gonum/spatial/r2"
)

// Counters are cumulative coordinator totals. The collector differences
// successive snapshots to get per-window counts.
type Counters struct {
	Reports    int
	Dropped    int
	Violations int
	Ready      int
}

// Collector accumulates events over a window of ticks and produces WindowStats.
type Collector struct {
	windowTicks     int64
	windowStartTick int64

	solves     int
	broadcasts int
	last       Counters
}

// NewCollector creates a collector that flushes every windowTicks ticks.
func NewCollector(windowTicks int64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: windowTicks}
}

// RecordSolve counts a field solve.
func (c *Collector) RecordSolve() { c.solves++ }

// RecordBroadcast counts a vector update sent to the workers.
func (c *Collector) RecordBroadcast() { c.broadcasts++ }

// ShouldFlush reports whether the current window is complete.
func (c *Collector) ShouldFlush(tick int64) bool {
	return tick-c.windowStartTick >= c.windowTicks
}

// WindowTicks returns the window length.
func (c *Collector) WindowTicks() int64 { return c.windowTicks }

// Flush closes the window at tick and starts the next one.
func (c *Collector) Flush(tick int64, goal systems.Coord, goalCentre r2.Vec, cellSize float64, totals Counters, centres []r2.Vec) WindowStats {
	d := ComputeDispersion(centres, goalCentre, cellSize)
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   tick,
		GoalX:           goal.X,
		GoalY:           goal.Y,

		Solves:          c.solves,
		Broadcasts:      c.broadcasts,
		Reports:         totals.Reports - c.last.Reports,
		DroppedRequests: totals.Dropped - c.last.Dropped,
		Violations:      totals.Violations - c.last.Violations,
		ReadyWorkers:    totals.Ready,

		Particles:    d.Particles,
		MeanX:        d.MeanX,
		MeanY:        d.MeanY,
		SpreadX:      d.SpreadX,
		SpreadY:      d.SpreadY,
		GoalDistMean: d.GoalDistMean,
		GoalDistP50:  d.GoalDistP50,
		GoalDistP90:  d.GoalDistP90,
		GoalDistMax:  d.GoalDistMax,
		Arrived:      d.Arrived,
	}

	c.windowStartTick = tick
	c.solves = 0
	c.broadcasts = 0
	c.last = totals
	return stats
}
