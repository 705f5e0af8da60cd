package swarm

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pthm-cable/flowswarm/codec"
	"github.com/pthm-cable/flowswarm/systems"
	"gonum.org/v1/gonum/spatial/r2"
)

// PositionSink receives reported positions for the particles of span, in
// span order.
type PositionSink interface {
	ApplyPositions(span Span, positions []r2.Vec)
}

// WorkerState tracks the handshake of one worker.
type WorkerState uint8

const (
	WorkerPending WorkerState = iota // init sent, INIT_DONE not yet seen
	WorkerReady
	WorkerFailed // init could not be delivered
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerPending:
		return "pending"
	case WorkerReady:
		return "ready"
	case WorkerFailed:
		return "failed"
	case WorkerStopped:
		return "stopped"
	}
	return "unknown"
}

// WorkerStatus is a snapshot of one worker's bookkeeping.
type WorkerStatus struct {
	ID              int
	Span            Span
	State           WorkerState
	SentGeneration  uint64
	AckedGeneration uint64
	Requested       int // position requests delivered to the inbox
	Reports         int // position reports applied
	Dropped         int // sends skipped because the inbox was full
	Rejected        int // position reports rejected
	Violations      int // replies rejected, reports included
}

type workerSlot struct {
	WorkerStatus

	inbox chan<- Envelope
	done  <-chan struct{}

	// Latest vector update not yet delivered
	pendingVectors codec.Buffer
	pendingGen     uint64
}

// Coordinator partitions particles over workers and exchanges messages with
// them without ever blocking. It is not safe for concurrent use; call it from
// the simulation loop.
type Coordinator struct {
	spawner Spawner
	workers int
	sink    PositionSink
	log     *slog.Logger

	slots      []*workerSlot
	replies    chan Envelope
	stop       chan struct{}
	generation uint64
	running    bool
}

// ErrRunning is returned by Start on a running coordinator.
var ErrRunning = errors.New("coordinator already running")

// NewCoordinator creates a coordinator for the given worker count.
func NewCoordinator(spawner Spawner, workers int, sink PositionSink, log *slog.Logger) (*Coordinator, error) {
	if workers < 1 {
		return nil, &systems.ConfigError{Field: "workers", Reason: fmt.Sprintf("need at least 1, got %d", workers)}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		spawner: spawner,
		workers: workers,
		sink:    sink,
		log:     log,
	}, nil
}

// Start partitions positions, spawns one worker per span and sends each its
// init message. Workers stay pending until they acknowledge.
func (c *Coordinator) Start(positions []r2.Vec, valid, obstacles *systems.Grid) error {
	if c.running {
		return ErrRunning
	}

	spans := Partition(len(positions), c.workers)
	c.replies = make(chan Envelope, 4*len(spans))
	c.stop = make(chan struct{})
	c.slots = make([]*workerSlot, len(spans))
	c.running = true

	validBuf := codec.EncodeGrid(valid)
	obstacleBuf := codec.EncodeGrid(obstacles)

	for i, span := range spans {
		inbox, done := c.spawner.Spawn(i, c.replies, c.stop)
		slot := &workerSlot{
			WorkerStatus: WorkerStatus{ID: i, Span: span, State: WorkerPending},
			inbox:        inbox,
			done:         done,
		}
		c.slots[i] = slot
		c.dispatchInit(slot, positions[span.Start:span.End], slices.Clone(validBuf), slices.Clone(obstacleBuf))
	}

	c.log.Info("swarm_started", "workers", len(spans), "particles", len(positions))
	return nil
}

// dispatchInit sends the one-time handshake. The buffers are owned by the worker afterwards.
func (c *Coordinator) dispatchInit(slot *workerSlot, points []r2.Vec, valid, obstacles codec.Buffer) {
	env := Envelope{
		Tag:        codec.Init,
		Worker:     slot.ID,
		Generation: c.generation,
		Payload:    codec.EncodeInit(points),
		Valid:      valid,
		Obstacles:  obstacles,
	}
	if !trySend(slot.inbox, env) {
		slot.State = WorkerFailed
		c.log.Error("init_not_delivered", "worker", slot.ID)
		return
	}
	slot.SentGeneration = c.generation
}

// BroadcastVectorUpdate sends the current forces of valid to every worker and
// returns the new generation. Workers that are pending or busy keep only the
// latest update, which is delivered by a later Poll or RequestPositions.
func (c *Coordinator) BroadcastVectorUpdate(valid *systems.Grid) uint64 {
	if !c.running {
		return c.generation
	}
	c.generation++
	buf := codec.EncodeVectors(valid)

	for i, slot := range c.slots {
		if slot.State == WorkerFailed || slot.State == WorkerStopped {
			continue
		}
		own := buf
		if i < len(c.slots)-1 {
			own = slices.Clone(buf)
		}
		slot.pendingVectors = own
		slot.pendingGen = c.generation
		c.flush(slot)
	}
	return c.generation
}

// flush delivers a held vector update to a ready worker if its inbox has room.
func (c *Coordinator) flush(slot *workerSlot) {
	if slot.State != WorkerReady || slot.pendingVectors == nil {
		return
	}
	env := Envelope{
		Tag:        codec.SetVectors,
		Worker:     slot.ID,
		Generation: slot.pendingGen,
		Payload:    slot.pendingVectors,
	}
	if !trySend(slot.inbox, env) {
		return
	}
	slot.SentGeneration = slot.pendingGen
	slot.pendingVectors = nil
}

// RequestPositions asks every ready worker to step its particles once.
// A worker whose inbox is full misses this tick.
func (c *Coordinator) RequestPositions() {
	if !c.running {
		return
	}
	for _, slot := range c.slots {
		if slot.State != WorkerReady {
			continue
		}
		c.flush(slot)
		env := Envelope{Tag: codec.UpdatePositionsRequest, Worker: slot.ID, Payload: codec.EncodeTag(codec.UpdatePositionsRequest)}
		if !trySend(slot.inbox, env) {
			slot.Dropped++
			continue
		}
		slot.Requested++
	}
}

// InFlight returns the number of position requests sent to ready workers that
// have not been answered. Rejected reports count as answered.
func (c *Coordinator) InFlight() int {
	n := 0
	for _, slot := range c.slots {
		if slot.State != WorkerReady {
			continue
		}
		n += max(0, slot.Requested-slot.Reports-slot.Rejected)
	}
	return n
}

// Pending returns the number of workers whose handshake is outstanding.
func (c *Coordinator) Pending() int {
	n := 0
	for _, slot := range c.slots {
		if slot.State == WorkerPending {
			n++
		}
	}
	return n
}

// Settle blocks on replies until no handshake and no position request is
// outstanding, or timeout passes. It reports whether everything settled.
func (c *Coordinator) Settle(timeout time.Duration) bool {
	if !c.running {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for c.Pending() > 0 || c.InFlight() > 0 {
		select {
		case env := <-c.replies:
			c.handleReply(env)
		case <-timer.C:
			return false
		}
	}
	c.Poll()
	return true
}

// Poll applies every reply that has already arrived and returns how many
// messages it handled. It never waits.
func (c *Coordinator) Poll() int {
	if !c.running {
		return 0
	}
	handled := 0
	for {
		select {
		case env := <-c.replies:
			c.handleReply(env)
			handled++
		default:
			for _, slot := range c.slots {
				c.flush(slot)
			}
			return handled
		}
	}
}

func (c *Coordinator) handleReply(env Envelope) {
	if env.Worker < 0 || env.Worker >= len(c.slots) {
		c.log.Warn("protocol_violation", "error", violation(env.Worker, env.Tag, "unknown worker", nil))
		return
	}
	slot := c.slots[env.Worker]

	switch env.Tag {
	case codec.InitDone:
		if slot.State != WorkerPending {
			c.reject(slot, violation(slot.ID, env.Tag, "unexpected handshake in state "+slot.State.String(), nil))
			return
		}
		slot.State = WorkerReady
		slot.AckedGeneration = env.Generation
		c.log.Debug("worker_ready", "worker", slot.ID, "span_start", slot.Span.Start, "span_end", slot.Span.End)
		c.flush(slot)

	case codec.SetVectorsDone:
		slot.AckedGeneration = max(slot.AckedGeneration, env.Generation)

	case codec.UpdatedPositions:
		if slot.State != WorkerReady {
			c.reject(slot, violation(slot.ID, env.Tag, "report before handshake", nil))
			return
		}
		points, err := codec.DecodePoints(env.Payload, codec.UpdatedPositions)
		if err != nil {
			slot.Rejected++
			c.reject(slot, violation(slot.ID, env.Tag, "decode", err))
			return
		}
		if len(points) != slot.Span.Len() {
			slot.Rejected++
			c.reject(slot, violation(slot.ID, env.Tag, fmt.Sprintf("reported %d positions for span of %d", len(points), slot.Span.Len()), nil))
			return
		}
		if c.sink != nil {
			c.sink.ApplyPositions(slot.Span, points)
		}
		slot.Reports++

	default:
		c.reject(slot, violation(slot.ID, env.Tag, "unexpected reply", nil))
	}
}

func (c *Coordinator) reject(slot *workerSlot, err *ProtocolError) {
	slot.Violations++
	c.log.Warn("protocol_violation", "error", err)
}

// Stop stops all workers and waits for them to exit. Replies still in flight
// are discarded.
func (c *Coordinator) Stop() {
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
	for _, slot := range c.slots {
		<-slot.done
		slot.State = WorkerStopped
		slot.pendingVectors = nil
	}
	c.log.Info("swarm_stopped", "workers", len(c.slots))
}

// Running reports whether Start has been called without a matching Stop.
func (c *Coordinator) Running() bool { return c.running }

// Generation returns the latest broadcast generation.
func (c *Coordinator) Generation() uint64 { return c.generation }

// Status returns a snapshot of every worker.
func (c *Coordinator) Status() []WorkerStatus {
	out := make([]WorkerStatus, len(c.slots))
	for i, slot := range c.slots {
		out[i] = slot.WorkerStatus
	}
	return out
}

// ReadyCount returns the number of workers that completed the handshake.
func (c *Coordinator) ReadyCount() int {
	n := 0
	for _, slot := range c.slots {
		if slot.State == WorkerReady {
			n++
		}
	}
	return n
}

func trySend(ch chan<- Envelope, env Envelope) bool {
	select {
	case ch <- env:
		return true
	default:
		return false
	}
}
