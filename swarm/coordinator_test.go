package swarm

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/flowswarm/codec"
	"github.com/pthm-cable/flowswarm/systems"
	"gonum.org/v1/gonum/spatial/r2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// exactParams moves particles without random scaling.
func exactParams() WorkerParams {
	p := DefaultWorkerParams()
	p.InaccuracyMin, p.InaccuracyMax = 1, 1
	return p
}

func testBoards(t *testing.T) systems.Boards {
	t.Helper()
	boards, err := systems.BuildBoards(8, 8, 40, systems.ObstacleLayout{Border: true})
	if err != nil {
		t.Fatalf("BuildBoards: %v", err)
	}
	solver := systems.NewFieldSolver(systems.DefaultFieldWeights())
	if _, err := solver.Solve(boards.Valid, systems.Coord{X: 5, Y: 5}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return boards
}

func testPositions(n int) []r2.Vec {
	out := make([]r2.Vec, n)
	for i := range out {
		out[i] = r2.Vec{X: 60 + float64(i%5)*30, Y: 60 + float64(i/5)*30}
	}
	return out
}

// recordingSink stores positions by global index.
type recordingSink struct {
	positions []r2.Vec
	calls     int
}

func (s *recordingSink) ApplyPositions(span Span, positions []r2.Vec) {
	copy(s.positions[span.Start:span.End], positions)
	s.calls++
}

func waitFor(t *testing.T, c *Coordinator, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.Poll()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; status %+v", what, c.Status())
}

func totalReports(c *Coordinator) int {
	n := 0
	for _, s := range c.Status() {
		n += s.Reports
	}
	return n
}

func newTestCoordinator(t *testing.T, spawner Spawner, workers int, sink PositionSink) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(spawner, workers, sink, quietLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestNewCoordinatorRejectsZeroWorkers(t *testing.T) {
	if _, err := NewCoordinator(nil, 0, nil, quietLogger()); err == nil {
		t.Error("expected error for zero workers")
	}
}

// TestHandshake verifies workers stay pending until they acknowledge init and
// only then receive position requests.
func TestHandshake(t *testing.T) {
	boards := testBoards(t)
	positions := testPositions(10)
	sink := &recordingSink{positions: make([]r2.Vec, len(positions))}

	spawner, err := NewGoroutineSpawner(exactParams(), DefaultInboxSize, quietLogger())
	if err != nil {
		t.Fatalf("NewGoroutineSpawner: %v", err)
	}
	c := newTestCoordinator(t, spawner, 3, sink)

	// Not started: nothing to do.
	c.RequestPositions()
	if n := c.Poll(); n != 0 {
		t.Errorf("Poll before Start handled %d", n)
	}

	if err := c.Start(positions, boards.Valid, boards.Obstacles); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(positions, boards.Valid, boards.Obstacles); err != ErrRunning {
		t.Errorf("second Start = %v, want ErrRunning", err)
	}

	for _, s := range c.Status() {
		if s.State != WorkerPending {
			t.Errorf("worker %d state = %v before any Poll, want pending", s.ID, s.State)
		}
	}

	waitFor(t, c, "handshake", func() bool { return c.ReadyCount() == 3 })

	c.RequestPositions()
	if n := c.InFlight(); n == 0 || n > 3 {
		t.Errorf("in flight after request = %d, want 1..3", n)
	}
	waitFor(t, c, "reports", func() bool { return totalReports(c) == 3 })
	if sink.calls != 3 {
		t.Errorf("sink calls = %d, want 3", sink.calls)
	}
	if n := c.InFlight(); n != 0 {
		t.Errorf("in flight after reports = %d, want 0", n)
	}
}

// TestSettleCompletesHandshake verifies Settle alone picks up the init
// acknowledgements and the position reports that follow.
func TestSettleCompletesHandshake(t *testing.T) {
	boards := testBoards(t)
	positions := testPositions(10)
	sink := &recordingSink{positions: make([]r2.Vec, len(positions))}

	spawner, err := NewGoroutineSpawner(exactParams(), DefaultInboxSize, quietLogger())
	if err != nil {
		t.Fatalf("NewGoroutineSpawner: %v", err)
	}
	c := newTestCoordinator(t, spawner, 3, sink)
	if c.Settle(time.Millisecond) {
		t.Error("Settle before Start reported success")
	}
	if err := c.Start(positions, boards.Valid, boards.Obstacles); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := c.Pending(); n != 3 {
		t.Errorf("pending after Start = %d, want 3", n)
	}

	if !c.Settle(2 * time.Second) {
		t.Fatalf("handshake did not settle: %+v", c.Status())
	}
	if c.ReadyCount() != 3 || c.Pending() != 0 {
		t.Fatalf("ready = %d, pending = %d after Settle", c.ReadyCount(), c.Pending())
	}

	for tick := 1; tick <= 4; tick++ {
		c.RequestPositions()
		if !c.Settle(2 * time.Second) {
			t.Fatalf("tick %d did not settle: %+v", tick, c.Status())
		}
		if got := totalReports(c); got != 3*tick {
			t.Errorf("tick %d: reports = %d, want %d", tick, got, 3*tick)
		}
	}
	for i, p := range sink.positions {
		if p == positions[i] {
			t.Errorf("particle %d did not move from %v", i, p)
		}
	}
}

// TestIndexAlignment verifies each reported position lands on the particle
// that was dispatched at that index.
func TestIndexAlignment(t *testing.T) {
	boards := testBoards(t)
	positions := testPositions(17)
	sink := &recordingSink{positions: make([]r2.Vec, len(positions))}

	params := exactParams()
	spawner, err := NewGoroutineSpawner(params, DefaultInboxSize, quietLogger())
	if err != nil {
		t.Fatalf("NewGoroutineSpawner: %v", err)
	}
	c := newTestCoordinator(t, spawner, 4, sink)
	if err := c.Start(positions, boards.Valid, boards.Obstacles); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, c, "handshake", func() bool { return c.ReadyCount() == 4 })

	c.RequestPositions()
	waitFor(t, c, "reports", func() bool { return totalReports(c) == 4 })

	in, err := systems.NewInaccuracy(1, 1, 0)
	if err != nil {
		t.Fatalf("NewInaccuracy: %v", err)
	}
	for i, start := range positions {
		p := systems.NewParticle(start, systems.DefaultParticleSize, systems.DefaultMass)
		p.Advance(boards.Valid, boards.Obstacles, params.Steering, params.Collision, in)
		if sink.positions[i] != p.Pos {
			t.Errorf("particle %d at %v, want %v", i, sink.positions[i], p.Pos)
		}
	}
}

// TestVectorUpdateReachesPendingWorkers verifies an update broadcast before
// the handshake is held and delivered afterwards.
func TestVectorUpdateReachesPendingWorkers(t *testing.T) {
	boards := testBoards(t)
	spawner, err := NewGoroutineSpawner(exactParams(), DefaultInboxSize, quietLogger())
	if err != nil {
		t.Fatalf("NewGoroutineSpawner: %v", err)
	}
	c := newTestCoordinator(t, spawner, 2, nil)
	if err := c.Start(testPositions(6), boards.Valid, boards.Obstacles); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.BroadcastVectorUpdate(boards.Valid)
	gen := c.BroadcastVectorUpdate(boards.Valid)
	if gen != 2 {
		t.Fatalf("generation = %d, want 2", gen)
	}

	waitFor(t, c, "acks", func() bool {
		for _, s := range c.Status() {
			if s.AckedGeneration != gen {
				return false
			}
		}
		return true
	})
}

// tamperSpawner runs real workers but lets a test rewrite their replies.
type tamperSpawner struct {
	params WorkerParams
	tamper func(id int, reply Envelope) Envelope
}

func (s *tamperSpawner) Spawn(id int, replies chan<- Envelope, stop <-chan struct{}) (chan<- Envelope, <-chan struct{}) {
	inbox := make(chan Envelope, DefaultInboxSize)
	done := make(chan struct{})
	w := NewWorker(id, s.params, quietLogger())
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case env := <-inbox:
				reply, ok, err := w.Handle(env)
				if err != nil || !ok {
					continue
				}
				select {
				case replies <- s.tamper(id, reply):
				case <-stop:
					return
				}
			}
		}
	}()
	return inbox, done
}

// TestProtocolViolationsAreDropped verifies a misbehaving worker does not
// affect the others.
func TestProtocolViolationsAreDropped(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(reply Envelope) Envelope
	}{
		{"unknown tag", func(r Envelope) Envelope {
			r.Tag = codec.Tag(99)
			return r
		}},
		{"short report", func(r Envelope) Envelope {
			points, _ := codec.DecodePoints(r.Payload, codec.UpdatedPositions)
			r.Payload = codec.EncodePositions(points[1:])
			return r
		}},
		{"garbled payload", func(r Envelope) Envelope {
			r.Payload = codec.Buffer{float64(codec.UpdatedPositions), 1000}
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boards := testBoards(t)
			positions := testPositions(9)
			sink := &recordingSink{positions: make([]r2.Vec, len(positions))}

			const bad = 1
			spawner := &tamperSpawner{
				params: exactParams(),
				tamper: func(id int, r Envelope) Envelope {
					if id == bad && r.Tag == codec.UpdatedPositions {
						return tt.tamper(r)
					}
					return r
				},
			}
			c := newTestCoordinator(t, spawner, 3, sink)
			if err := c.Start(positions, boards.Valid, boards.Obstacles); err != nil {
				t.Fatalf("Start: %v", err)
			}
			waitFor(t, c, "handshake", func() bool { return c.ReadyCount() == 3 })

			c.RequestPositions()
			waitFor(t, c, "replies", func() bool {
				st := c.Status()
				return st[0].Reports == 1 && st[2].Reports == 1 && st[bad].Violations == 1
			})

			st := c.Status()[bad]
			if st.Reports != 0 {
				t.Errorf("bad worker reports = %d, want 0", st.Reports)
			}
			for i := st.Span.Start; i < st.Span.End; i++ {
				if sink.positions[i] != (r2.Vec{}) {
					t.Errorf("particle %d of bad worker was written: %v", i, sink.positions[i])
				}
			}
		})
	}
}

// countingSink counts applied reports and is safe to read after Stop.
type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSink) ApplyPositions(Span, []r2.Vec) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

// TestStopDiscardsLateReplies verifies nothing is applied after Stop.
func TestStopDiscardsLateReplies(t *testing.T) {
	boards := testBoards(t)
	sink := &countingSink{}
	spawner, err := NewGoroutineSpawner(exactParams(), DefaultInboxSize, quietLogger())
	if err != nil {
		t.Fatalf("NewGoroutineSpawner: %v", err)
	}
	c, err := NewCoordinator(spawner, 2, sink, quietLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.Start(testPositions(8), boards.Valid, boards.Obstacles); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, c, "handshake", func() bool { return c.ReadyCount() == 2 })

	c.RequestPositions()
	c.Stop()
	c.Stop()

	if c.Running() {
		t.Error("Running after Stop")
	}
	if n := c.Poll(); n != 0 {
		t.Errorf("Poll after Stop handled %d", n)
	}
	if sink.calls != 0 {
		t.Errorf("sink calls = %d after Stop, want 0", sink.calls)
	}
	for _, s := range c.Status() {
		if s.State != WorkerStopped {
			t.Errorf("worker %d state = %v, want stopped", s.ID, s.State)
		}
	}
}

// scriptSpawner starts no workers; the test writes replies itself.
type scriptSpawner struct {
	replies chan<- Envelope
}

func (s *scriptSpawner) Spawn(id int, replies chan<- Envelope, stop <-chan struct{}) (chan<- Envelope, <-chan struct{}) {
	s.replies = replies
	done := make(chan struct{})
	go func() {
		<-stop
		close(done)
	}()
	return make(chan Envelope, DefaultInboxSize), done
}

// TestInFlightCountsOnlyReportRejections verifies that violations unrelated to
// position reports leave outstanding requests outstanding.
func TestInFlightCountsOnlyReportRejections(t *testing.T) {
	boards := testBoards(t)
	spawner := &scriptSpawner{}
	c := newTestCoordinator(t, spawner, 2, &recordingSink{positions: make([]r2.Vec, 4)})
	if err := c.Start(testPositions(4), boards.Valid, boards.Obstacles); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deliver := func(env Envelope) {
		t.Helper()
		spawner.replies <- env
		if n := c.Poll(); n != 1 {
			t.Fatalf("Poll handled %d, want 1", n)
		}
	}
	ack := Envelope{Tag: codec.InitDone, Payload: codec.EncodeTag(codec.InitDone)}
	deliver(ack)
	ack.Worker = 1
	deliver(ack)
	if c.ReadyCount() != 2 {
		t.Fatalf("ready = %d, want 2", c.ReadyCount())
	}

	// Duplicate handshake and unknown tag from worker 0.
	deliver(Envelope{Tag: codec.InitDone, Worker: 0})
	deliver(Envelope{Tag: codec.Tag(99), Worker: 0})

	c.RequestPositions()
	if n := c.InFlight(); n != 2 {
		t.Fatalf("in flight = %d, want 2 after unrelated violations", n)
	}

	deliver(Envelope{Tag: codec.UpdatedPositions, Worker: 1, Payload: codec.EncodePositions(testPositions(1))})
	if n := c.InFlight(); n != 1 {
		t.Errorf("in flight = %d, want 1 after a rejected report", n)
	}
	deliver(Envelope{Tag: codec.UpdatedPositions, Worker: 0, Payload: codec.EncodePositions(testPositions(2))})
	if n := c.InFlight(); n != 0 {
		t.Errorf("in flight = %d, want 0", n)
	}

	st := c.Status()
	if st[0].Violations != 2 || st[0].Rejected != 0 || st[0].Reports != 1 {
		t.Errorf("worker 0 = %+v, want 2 violations, 0 rejected, 1 report", st[0])
	}
	if st[1].Violations != 1 || st[1].Rejected != 1 || st[1].Reports != 0 {
		t.Errorf("worker 1 = %+v, want 1 violation, 1 rejected, 0 reports", st[1])
	}
}
