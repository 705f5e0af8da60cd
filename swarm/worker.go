package swarm

import (
	"log/slog"

	"github.com/pthm-cable/flowswarm/codec"
	"github.com/pthm-cable/flowswarm/systems"
	"gonum.org/v1/gonum/spatial/r2"
)

// WorkerParams configures particle stepping inside a worker.
type WorkerParams struct {
	Steering  systems.SteeringParams
	Collision systems.CollisionParams
	Size      float64
	Mass      float64

	// Per-axis movement factor range. Min == Max == 1 moves exactly.
	InaccuracyMin float64
	InaccuracyMax float64
	Seed          int64 // worker i uses Seed+i
}

// DefaultWorkerParams returns the standard stepping parameters.
func DefaultWorkerParams() WorkerParams {
	return WorkerParams{
		Steering:      systems.DefaultSteeringParams(),
		Collision:     systems.DefaultCollisionParams(),
		Size:          systems.DefaultParticleSize,
		Mass:          systems.DefaultMass,
		InaccuracyMin: 0.5,
		InaccuracyMax: 1,
		Seed:          1,
	}
}

// Worker owns one partition of particles and private shallow copies of the
// valid and obstacle grids. It is driven by Handle, one message at a time.
type Worker struct {
	id     int
	params WorkerParams
	log    *slog.Logger

	particles  []systems.Particle
	valid      *systems.Grid
	obstacles  *systems.Grid
	inaccuracy *systems.Inaccuracy
	generation uint64
	ready      bool

	// Reused report scratch
	positions []r2.Vec
}

// NewWorker creates an uninitialised worker.
func NewWorker(id int, params WorkerParams, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		id:     id,
		params: params,
		log:    log.With("worker", id),
	}
}

// Ready reports whether the worker has completed its init handshake.
func (w *Worker) Ready() bool { return w.ready }

// Generation returns the generation of the vector field currently held.
func (w *Worker) Generation() uint64 { return w.generation }

// Handle processes one message. It returns the reply, whether there is one,
// and a *ProtocolError when the message was dropped.
func (w *Worker) Handle(env Envelope) (Envelope, bool, error) {
	switch env.Tag {
	case codec.Init:
		return w.handleInit(env)
	case codec.SetVectors:
		return w.handleSetVectors(env)
	case codec.UpdatePositionsRequest:
		return w.handleUpdate(env)
	}
	return Envelope{}, false, violation(w.id, env.Tag, "unexpected message", nil)
}

func (w *Worker) handleInit(env Envelope) (Envelope, bool, error) {
	if w.ready {
		return Envelope{}, false, violation(w.id, env.Tag, "duplicate init", nil)
	}
	points, err := codec.DecodePoints(env.Payload, codec.Init)
	if err != nil {
		return Envelope{}, false, violation(w.id, env.Tag, "particles", err)
	}
	valid, err := codec.DecodeGrid(env.Valid)
	if err != nil {
		return Envelope{}, false, violation(w.id, env.Tag, "valid grid", err)
	}
	obstacles, err := codec.DecodeGrid(env.Obstacles)
	if err != nil {
		return Envelope{}, false, violation(w.id, env.Tag, "obstacle grid", err)
	}
	in, err := systems.NewInaccuracy(w.params.InaccuracyMin, w.params.InaccuracyMax, w.params.Seed+int64(w.id))
	if err != nil {
		return Envelope{}, false, violation(w.id, env.Tag, "inaccuracy", err)
	}

	w.particles = make([]systems.Particle, len(points))
	for i, p := range points {
		w.particles[i] = systems.NewParticle(p, w.params.Size, w.params.Mass)
	}
	w.positions = make([]r2.Vec, len(points))
	w.valid = valid
	w.obstacles = obstacles
	w.inaccuracy = in
	w.generation = env.Generation
	w.ready = true

	w.log.Debug("worker_init", "particles", len(points), "cells", valid.CellCount())
	return Envelope{Tag: codec.InitDone, Worker: w.id, Generation: w.generation, Payload: codec.EncodeTag(codec.InitDone)}, true, nil
}

func (w *Worker) handleSetVectors(env Envelope) (Envelope, bool, error) {
	if !w.ready {
		return Envelope{}, false, violation(w.id, env.Tag, "before init", nil)
	}
	// Older generations are superseded by what we already hold.
	if env.Generation >= w.generation {
		if err := codec.ApplyVectors(w.valid, env.Payload); err != nil {
			return Envelope{}, false, violation(w.id, env.Tag, "vectors", err)
		}
		w.generation = env.Generation
	}
	return Envelope{Tag: codec.SetVectorsDone, Worker: w.id, Generation: w.generation, Payload: codec.EncodeTag(codec.SetVectorsDone)}, true, nil
}

func (w *Worker) handleUpdate(env Envelope) (Envelope, bool, error) {
	if !w.ready {
		return Envelope{}, false, violation(w.id, env.Tag, "before init", nil)
	}
	w.Step()
	return Envelope{Tag: codec.UpdatedPositions, Worker: w.id, Generation: w.generation, Payload: codec.EncodePositions(w.positions)}, true, nil
}

// Step advances every particle once, in slice order.
func (w *Worker) Step() {
	for i := range w.particles {
		p := &w.particles[i]
		p.Advance(w.valid, w.obstacles, w.params.Steering, w.params.Collision, w.inaccuracy)
		w.positions[i] = p.Pos
	}
}

// Run serves inbox until stop is closed or inbox is closed. Replies go to the
// shared replies channel; a dropped message is logged and never answered.
func (w *Worker) Run(inbox <-chan Envelope, replies chan<- Envelope, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case env, ok := <-inbox:
			if !ok {
				return
			}
			reply, hasReply, err := w.Handle(env)
			if err != nil {
				w.log.Warn("protocol_violation", "error", err)
				continue
			}
			if !hasReply {
				continue
			}
			select {
			case replies <- reply:
			case <-stop:
				return
			}
		}
	}
}

// Spawner starts a worker and returns its inbox and a channel closed when the
// worker has exited. The worker must exit once stop is closed.
type Spawner interface {
	Spawn(id int, replies chan<- Envelope, stop <-chan struct{}) (inbox chan<- Envelope, done <-chan struct{})
}

// GoroutineSpawner runs each Worker on its own goroutine.
type GoroutineSpawner struct {
	params    WorkerParams
	log       *slog.Logger
	inboxSize int
}

// DefaultInboxSize is the per-worker inbox capacity.
const DefaultInboxSize = 8

// NewGoroutineSpawner validates params and returns a spawner.
func NewGoroutineSpawner(params WorkerParams, inboxSize int, log *slog.Logger) (*GoroutineSpawner, error) {
	if _, err := systems.NewInaccuracy(params.InaccuracyMin, params.InaccuracyMax, params.Seed); err != nil {
		return nil, err
	}
	if inboxSize < 1 {
		inboxSize = DefaultInboxSize
	}
	return &GoroutineSpawner{params: params, log: log, inboxSize: inboxSize}, nil
}

// Spawn implements Spawner.
func (s *GoroutineSpawner) Spawn(id int, replies chan<- Envelope, stop <-chan struct{}) (chan<- Envelope, <-chan struct{}) {
	inbox := make(chan Envelope, s.inboxSize)
	done := make(chan struct{})
	w := NewWorker(id, s.params, s.log)
	go func() {
		defer close(done)
		w.Run(inbox, replies, stop)
	}()
	return inbox, done
}
