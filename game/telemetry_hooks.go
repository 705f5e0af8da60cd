package game

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowswarm/systems"
	"github.com/pthm-cable/flowswarm/telemetry"
)

// recordSolve logs a field solve and appends it to solves.csv.
func (g *Game) recordSolve(generation uint64, res systems.SolveResult) {
	rec := telemetry.NewSolveRecord(g.tick, generation, res)
	g.solveLog.Add(rec)
	g.collector.RecordSolve()
	g.collector.RecordBroadcast()

	g.log.Debug("field_solved",
		"goal_x", res.Goal.X,
		"goal_y", res.Goal.Y,
		"reached", res.Reached,
		"max_distance", res.MaxDistance,
		"generation", generation,
		"duration_us", rec.DurationUS,
	)
	if err := g.outputManager.WriteSolve(rec); err != nil {
		g.log.Error("failed to write solve", "error", err)
	}
}

// flushTelemetry closes a stats window when one is due.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	var totals telemetry.Counters
	for _, s := range g.coord.Status() {
		totals.Reports += s.Reports
		totals.Dropped += s.Dropped
		totals.Violations += s.Violations
	}
	totals.Ready = g.coord.ReadyCount()

	goal, _ := g.boards.Valid.Goal()
	goalCentre := g.boards.Valid.CellCenter(goal.X, goal.Y)
	stats := g.collector.Flush(g.tick, goal, goalCentre, g.boards.Valid.CellSize(), totals, g.particleCentres())
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats(g.log)
		perfStats.LogStats(g.log)
		if s := g.solveLog.Summary(); s.Count > 0 {
			g.log.Info("solves",
				"count", g.solveLog.Total(),
				"mean_us", s.MeanTime.Microseconds(),
				"stddev_us", s.StdDevTime.Microseconds(),
				"max_us", s.MaxTime.Microseconds(),
				"mean_reached", s.MeanReached,
			)
		}
		g.logWorkerStatus()
	}

	if err := g.outputManager.WriteStats(stats); err != nil {
		g.log.Error("failed to write stats", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, g.tick); err != nil {
		g.log.Error("failed to write perf", "error", err)
	}
}

// particleCentres returns the centre of every particle's extent.
func (g *Game) particleCentres() []r2.Vec {
	positions := g.Positions()
	half := g.cfg.Particles.Size * 0.5
	for i := range positions {
		positions[i].X += half
		positions[i].Y += half
	}
	return positions
}
