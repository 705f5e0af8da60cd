package game

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowswarm/components"
	"github.com/pthm-cable/flowswarm/config"
	"github.com/pthm-cable/flowswarm/swarm"
	"github.com/pthm-cable/flowswarm/systems"
	"github.com/pthm-cable/flowswarm/telemetry"
)

// View holds the display toggles.
type View struct {
	ColorByDistance  bool
	DistanceLabels   bool
	VectorLines      bool
	RefreshIndicator bool
	Paused           bool // particles stop receiving step requests
	TrackingOff      bool // pointer no longer moves the goal
}

// Game owns the boards, the field solver, the worker pool and the render
// side-table. All methods must be called from one goroutine.
type Game struct {
	cfg *config.Config
	log *slog.Logger

	boards systems.Boards
	solver *systems.FieldSolver
	coord  *swarm.Coordinator

	// Render side-table, one entity per particle
	world          *ecs.World
	particleMapper *ecs.Map4[components.Position, components.Velocity, components.Particle, components.Appearance]
	particleFilter *ecs.Filter4[components.Position, components.Velocity, components.Particle, components.Appearance]
	motionMap      *ecs.Map2[components.Position, components.Velocity]
	entities       []ecs.Entity

	// State
	tick         int64
	view         View
	refreshFlash bool
	lastSolve    systems.SolveResult
	schedule     *waypointSchedule
	headless     bool

	// Telemetry
	perfCollector *telemetry.PerfCollector
	tickOpen      bool
	collector     *telemetry.Collector
	solveLog      *telemetry.SolveLog
	outputManager *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
}

// NewGame builds the boards from cfg, spawns the particle population and
// starts the worker pool.
func NewGame(cfg *config.Config, opts Options) (*Game, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	boards, err := systems.BuildBoards(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.CellSize, cfg.Derived.Layout)
	if err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:    cfg,
		log:    log,
		boards: boards,
		solver: systems.NewFieldSolver(cfg.FieldWeights()),

		world:          world,
		particleMapper: ecs.NewMap4[components.Position, components.Velocity, components.Particle, components.Appearance](world),
		particleFilter: ecs.NewFilter4[components.Position, components.Velocity, components.Particle, components.Appearance](world),
		motionMap:      ecs.NewMap2[components.Position, components.Velocity](world),

		view:     View{ColorByDistance: cfg.Render.ColorByDistance},
		headless: opts.Headless,

		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:     telemetry.NewCollector(int64(cfg.Telemetry.StatsInterval)),
		solveLog:      telemetry.NewSolveLog(cfg.Telemetry.SolveHistory),
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}
	if opts.Headless {
		g.schedule = newWaypointSchedule(cfg.Derived.Waypoints, int64(cfg.Headless.TicksPerWaypoint))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.Workers.Count
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	positions := g.spawnParticles(workers)

	spawner := opts.Spawner
	if spawner == nil {
		params := swarm.WorkerParams{
			Steering:      cfg.SteeringParams(),
			Collision:     cfg.CollisionParams(),
			Size:          cfg.Particles.Size,
			Mass:          cfg.Particles.Mass,
			InaccuracyMin: cfg.Particles.InaccuracyMin,
			InaccuracyMax: cfg.Particles.InaccuracyMax,
			Seed:          opts.Seed,
		}
		gs, err := swarm.NewGoroutineSpawner(params, cfg.Workers.InboxSize, log)
		if err != nil {
			return nil, fmt.Errorf("worker params: %w", err)
		}
		spawner = gs
	}

	g.coord, err = swarm.NewCoordinator(spawner, workers, g, log)
	if err != nil {
		return nil, err
	}

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		g.outputManager.Close()
		return nil, err
	}

	if err := g.coord.Start(positions, boards.Valid, boards.Obstacles); err != nil {
		g.outputManager.Close()
		return nil, err
	}
	// Headless ticks are not paced by a frame clock, so the first tick must
	// already find every worker ready.
	if opts.Headless && !g.coord.Settle(handshakeWait) {
		log.Warn("workers_not_ready", "ready", g.coord.ReadyCount(), "workers", workers)
	}

	log.Info("game_started",
		"grid", fmt.Sprintf("%dx%d", cfg.Grid.Width, cfg.Grid.Height),
		"valid_cells", boards.Valid.CellCount(),
		"obstacle_cells", boards.Obstacles.CellCount(),
		"particles", len(positions),
		"workers", workers,
		"headless", opts.Headless,
	)
	return g, nil
}

// ApplyPositions implements swarm.PositionSink. positions[i] belongs to the
// particle at span.Start+i.
func (g *Game) ApplyPositions(span swarm.Span, positions []r2.Vec) {
	for i, p := range positions {
		pos, vel := g.motionMap.Get(g.entities[span.Start+i])
		x, y := float32(p.X), float32(p.Y)
		vel.X, vel.Y = x-pos.X, y-pos.Y
		pos.X, pos.Y = x, y
	}
}

// SetGoal re-solves the field for goal and broadcasts the new vectors. It
// reports whether a solve happened: a goal outside the valid grid or equal to
// the current goal is ignored.
func (g *Game) SetGoal(goal systems.Coord) (bool, error) {
	if !g.boards.Valid.Exists(goal.X, goal.Y) {
		return false, nil
	}
	if cur, ok := g.boards.Valid.Goal(); ok && cur == goal {
		return false, nil
	}
	res, err := g.solver.Solve(g.boards.Valid, goal)
	if err != nil {
		return false, err
	}
	gen := g.coord.BroadcastVectorUpdate(g.boards.Valid)
	g.lastSolve = res
	g.recordSolve(gen, res)
	g.markRefresh()
	return true, nil
}

// Goal returns the current goal cell.
func (g *Game) Goal() (systems.Coord, bool) { return g.boards.Valid.Goal() }

// Boards returns the simulation grids. They must not be modified.
func (g *Game) Boards() systems.Boards { return g.boards }

// View returns the display toggles.
func (g *Game) View() View { return g.view }

// Tick returns the number of completed updates.
func (g *Game) Tick() int64 { return g.tick }

// ParticleCount returns the size of the population.
func (g *Game) ParticleCount() int { return len(g.entities) }

// Positions returns the latest reported particle positions in index order.
func (g *Game) Positions() []r2.Vec {
	out := make([]r2.Vec, len(g.entities))
	query := g.particleFilter.Query()
	for query.Next() {
		pos, _, p, _ := query.Get()
		out[p.Index] = r2.Vec{X: float64(pos.X), Y: float64(pos.Y)}
	}
	return out
}

// WorkerStatus returns the coordinator's per-worker bookkeeping.
func (g *Game) WorkerStatus() []swarm.WorkerStatus { return g.coord.Status() }

// LastSolve returns the most recent field solve.
func (g *Game) LastSolve() systems.SolveResult { return g.lastSolve }

// Perf returns the rolling timing statistics.
func (g *Game) Perf() telemetry.PerfStats { return g.perfCollector.Stats() }
