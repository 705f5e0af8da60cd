package game

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/flowswarm/swarm"
)

// logWorkerStatus logs one line per worker with its exchange counters.
func (g *Game) logWorkerStatus() {
	for _, s := range g.coord.Status() {
		level := slog.LevelInfo
		if s.Violations > 0 || s.State != swarm.WorkerReady {
			level = slog.LevelWarn
		}
		g.log.Log(context.Background(), level, "worker",
			"id", s.ID,
			"state", s.State.String(),
			"span", [2]int{s.Span.Start, s.Span.End},
			"sent_gen", s.SentGeneration,
			"acked_gen", s.AckedGeneration,
			"requested", s.Requested,
			"reports", s.Reports,
			"rejected", s.Rejected,
			"dropped", s.Dropped,
			"violations", s.Violations,
		)
	}
}
