package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// Dispersion describes how a swarm is spread around its goal.
type Dispersion struct {
	Particles int

	// Centroid and population standard deviation per axis
	MeanX, MeanY     float64
	SpreadX, SpreadY float64

	// Distances from the goal centre, in cells
	GoalDistMean float64
	GoalDistP50  float64
	GoalDistP90  float64
	GoalDistMax  float64

	// Fraction of particles whose centre lies within one cell of the goal
	Arrived float64
}

// ComputeDispersion summarises particle centres against goal. Distances are
// divided by cellSize so that they read in cells.
func ComputeDispersion(centres []r2.Vec, goal r2.Vec, cellSize float64) Dispersion {
	n := len(centres)
	if n == 0 || cellSize <= 0 {
		return Dispersion{}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	dist := make([]float64, n)
	arrived := 0
	for i, c := range centres {
		xs[i], ys[i] = c.X, c.Y
		dist[i] = r2.Norm(r2.Sub(c, goal)) / cellSize
		if dist[i] <= 1 {
			arrived++
		}
	}

	d := Dispersion{Particles: n, Arrived: float64(arrived) / float64(n)}
	d.MeanX, d.SpreadX = stat.PopMeanStdDev(xs, nil)
	d.MeanY, d.SpreadY = stat.PopMeanStdDev(ys, nil)
	d.GoalDistMean = stat.Mean(dist, nil)
	d.GoalDistMax = floats.Max(dist)

	slices.Sort(dist)
	d.GoalDistP50 = Quantile(dist, 0.5)
	d.GoalDistP90 = Quantile(dist, 0.9)
	return d
}

// Quantile returns the p-quantile of sorted using the empirical CDF.
// It returns 0 for an empty slice.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Min(math.Max(p, 0), 1)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// WindowStats holds aggregated swarm statistics for one window of ticks.
type WindowStats struct {
	WindowStartTick int64 `csv:"-"`
	WindowEndTick   int64 `csv:"window_end"`

	GoalX int `csv:"goal_x"`
	GoalY int `csv:"goal_y"`

	// Coordinator traffic during the window
	Solves          int `csv:"solves"`
	Broadcasts      int `csv:"broadcasts"`
	Reports         int `csv:"reports"`
	DroppedRequests int `csv:"dropped_requests"`
	Violations      int `csv:"violations"`
	ReadyWorkers    int `csv:"ready_workers"`

	// Swarm shape at window end
	Particles    int     `csv:"particles"`
	MeanX        float64 `csv:"mean_x"`
	MeanY        float64 `csv:"mean_y"`
	SpreadX      float64 `csv:"spread_x"`
	SpreadY      float64 `csv:"spread_y"`
	GoalDistMean float64 `csv:"goal_dist_mean"`
	GoalDistP50  float64 `csv:"goal_dist_p50"`
	GoalDistP90  float64 `csv:"goal_dist_p90"`
	GoalDistMax  float64 `csv:"goal_dist_max"`
	Arrived      float64 `csv:"arrived"`
}

// LogValue implements slog.LogValuer.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Int("goal_x", s.GoalX),
		slog.Int("goal_y", s.GoalY),
		slog.Int("solves", s.Solves),
		slog.Int("broadcasts", s.Broadcasts),
		slog.Int("reports", s.Reports),
		slog.Int("dropped_requests", s.DroppedRequests),
		slog.Int("violations", s.Violations),
		slog.Int("ready_workers", s.ReadyWorkers),
		slog.Int("particles", s.Particles),
		slog.Float64("spread_x", s.SpreadX),
		slog.Float64("spread_y", s.SpreadY),
		slog.Float64("goal_dist_mean", s.GoalDistMean),
		slog.Float64("goal_dist_p90", s.GoalDistP90),
		slog.Float64("arrived", s.Arrived),
	)
}

// LogStats logs the headline numbers of the window.
func (s WindowStats) LogStats(log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("stats",
		"window_end", s.WindowEndTick,
		"goal", [2]int{s.GoalX, s.GoalY},
		"reports", s.Reports,
		"dropped", s.DroppedRequests,
		"violations", s.Violations,
		"goal_dist_mean", math.Round(s.GoalDistMean*100)/100,
		"arrived", math.Round(s.Arrived*1000)/1000,
	)
}
