package systems

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestSetVelocity(t *testing.T) {
	params := DefaultSteeringParams()

	p := NewParticle(r2.Vec{}, 0, 0)
	p.SetVelocity(r2.Vec{X: 3, Y: 4}, params)
	if math.Abs(p.Vel.X-1.2) > 1e-12 || math.Abs(p.Vel.Y-1.6) > 1e-12 {
		t.Errorf("Vel = %v, want (1.2, 1.6)", p.Vel)
	}
	if n := r2.Norm(p.Vel); math.Abs(n-params.MaxSpeed) > 1e-12 {
		t.Errorf("speed = %v, want %v", n, params.MaxSpeed)
	}

	rest := NewParticle(r2.Vec{}, 0, 0)
	rest.SetVelocity(r2.Vec{}, params)
	if rest.Vel != (r2.Vec{}) {
		t.Errorf("zero desired moved a resting particle: %v", rest.Vel)
	}
}

// TestSetVelocityTurns verifies a perpendicular field turns the particle
// gradually at constant speed.
func TestSetVelocityTurns(t *testing.T) {
	params := DefaultSteeringParams()
	p := NewParticle(r2.Vec{}, 0, 0)
	p.Vel = r2.Vec{X: 2}

	p.SetVelocity(r2.Vec{Y: 1}, params)
	if p.Vel.Y <= 0 || p.Vel.X >= 2 {
		t.Errorf("Vel after one step = %v, want turning toward +Y", p.Vel)
	}
	if n := r2.Norm(p.Vel); math.Abs(n-params.MaxSpeed) > 1e-12 {
		t.Errorf("speed = %v, want %v", n, params.MaxSpeed)
	}

	for i := 0; i < 100; i++ {
		p.SetVelocity(r2.Vec{Y: 1}, params)
	}
	if p.Vel.Y < 1.9 {
		t.Errorf("Vel after 100 steps = %v, want aligned with +Y", p.Vel)
	}
}

func TestMoveWithInaccuracy(t *testing.T) {
	in, err := NewInaccuracy(0.5, 1, 3)
	if err != nil {
		t.Fatalf("NewInaccuracy: %v", err)
	}
	for i := 0; i < 100; i++ {
		p := NewParticle(r2.Vec{X: 10, Y: 10}, 0, 0)
		p.Vel = r2.Vec{X: 2, Y: -2}
		p.MoveWithInaccuracy(in)
		dx, dy := p.Pos.X-10, p.Pos.Y-10
		if dx < 1 || dx > 2 || dy < -2 || dy > -1 {
			t.Fatalf("moved by (%v, %v), want each axis within [0.5, 1] of velocity", dx, dy)
		}
	}
}

func TestInaccuracyDeterministic(t *testing.T) {
	a, _ := NewInaccuracy(0.5, 1, 42)
	b, _ := NewInaccuracy(0.5, 1, 42)
	for i := 0; i < 10; i++ {
		if a.Sample() != b.Sample() {
			t.Fatal("same seed produced different samples")
		}
	}
}

func TestNewInaccuracyErrors(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		wantErr  bool
	}{
		{"valid", 0.5, 1, false},
		{"degenerate", 1, 1, false},
		{"inverted", 1, 0.5, true},
		{"nan min", math.NaN(), 1, true},
		{"nan max", 0.5, math.NaN(), true},
		{"inf", 0, math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInaccuracy(tt.min, tt.max, 1)
			var cerr *ConfigError
			if got := errors.As(err, &cerr); got != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckCollisionsPriority(t *testing.T) {
	// Obstacles below and to the right of cell (1,1).
	obstacles, _ := NewGrid(3, 3, 40, FillSparse([]Coord{{1, 2}, {2, 1}}))
	params := DefaultCollisionParams()

	p := NewParticle(r2.Vec{X: 72, Y: 72}, 5, 0)
	p.Vel = r2.Vec{X: 1, Y: 1}
	if got := p.CheckCollisions(obstacles, params); got != Bottom {
		t.Errorf("resolved %v, want bottom", got)
	}
	if p.Vel.X != 1 || math.Abs(p.Vel.Y+0.8) > 1e-12 {
		t.Errorf("Vel = %v, want (1, -0.8)", p.Vel)
	}
	// Bottom contact clears; right is next.
	if got := p.CheckCollisions(obstacles, params); got != Right {
		t.Errorf("second resolve %v, want right", got)
	}
}

func TestCheckCollisionsCorner(t *testing.T) {
	obstacles, _ := NewGrid(3, 3, 40, FillSparse([]Coord{{0, 0}}))
	p := NewParticle(r2.Vec{X: 41, Y: 41}, 5, 0)
	p.Vel = r2.Vec{X: -1, Y: -2}

	if got := p.CheckCollisions(obstacles, DefaultCollisionParams()); got != TopLeft {
		t.Fatalf("resolved %v, want top_left", got)
	}
	if math.Abs(p.Vel.X-0.8) > 1e-12 || math.Abs(p.Vel.Y-1.6) > 1e-12 {
		t.Errorf("Vel = %v, want both axes inverted and damped", p.Vel)
	}
	if p.Pos.X != 45 || p.Pos.Y != 45 {
		t.Errorf("Pos = %v, want (45, 45)", p.Pos)
	}
}

func TestCheckCollisionsClear(t *testing.T) {
	obstacles, _ := NewGrid(3, 3, 40, FillSparse([]Coord{{0, 0}, {2, 2}}))
	p := NewParticle(r2.Vec{X: 57, Y: 57}, 5, 0)
	p.Vel = r2.Vec{X: 1, Y: 1}
	if got := p.CheckCollisions(obstacles, DefaultCollisionParams()); got != NoDirection {
		t.Errorf("resolved %v, want none", got)
	}
	if p.Pos != (r2.Vec{X: 57, Y: 57}) || p.Vel != (r2.Vec{X: 1, Y: 1}) {
		t.Errorf("particle changed without contact: %+v", p)
	}
}

// TestCollisionContainment places a particle in the centre cell of a 3x3 board
// with one random obstacle neighbour and checks its extent never overlaps the
// obstacle after collision response.
func TestCollisionContainment(t *testing.T) {
	const cs = 40.0
	rng := rand.New(rand.NewSource(99))
	params := DefaultCollisionParams()

	for i := 0; i < 1000; i++ {
		off := Direction(rng.Intn(int(NumDirections))).Offset()
		ob := Coord{1 + off.X, 1 + off.Y}
		obstacles, err := NewGrid(3, 3, cs, FillSparse([]Coord{ob}))
		if err != nil {
			t.Fatalf("NewGrid: %v", err)
		}

		size := 2.5 + rng.Float64()*5
		center := r2.Vec{X: cs + rng.Float64()*cs, Y: cs + rng.Float64()*cs}
		p := NewParticle(r2.Vec{X: center.X - size/2, Y: center.Y - size/2}, size, 0)
		p.Vel = r2.Vec{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2}
		start := p.Pos

		p.CheckCollisions(obstacles, params)

		const eps = 1e-9
		minX, minY := float64(ob.X)*cs, float64(ob.Y)*cs
		overlapX := p.Pos.X+p.Size > minX+eps && p.Pos.X < minX+cs-eps
		overlapY := p.Pos.Y+p.Size > minY+eps && p.Pos.Y < minY+cs-eps
		if overlapX && overlapY {
			t.Fatalf("case %d: particle from %v (size %.2f) ends at %v overlapping obstacle %v", i, start, size, p.Pos, ob)
		}
	}
}

// TestCollisionContainmentMultipleContacts surrounds the centre cell with
// several random obstacles. Each call resolves one contact, so the particle is
// resolved repeatedly, the way successive ticks would; no direction may be
// resolved twice and the final extent must overlap no obstacle.
func TestCollisionContainmentMultipleContacts(t *testing.T) {
	const cs = 40.0
	rng := rand.New(rand.NewSource(7))
	params := DefaultCollisionParams()

	for i := 0; i < 1000; i++ {
		var obs []Coord
		for _, d := range rng.Perm(int(NumDirections))[:2+rng.Intn(3)] {
			off := Direction(d).Offset()
			obs = append(obs, Coord{1 + off.X, 1 + off.Y})
		}
		obstacles, err := NewGrid(3, 3, cs, FillSparse(obs))
		if err != nil {
			t.Fatalf("NewGrid: %v", err)
		}

		size := 2.5 + rng.Float64()*5
		center := r2.Vec{X: cs + rng.Float64()*cs, Y: cs + rng.Float64()*cs}
		p := NewParticle(r2.Vec{X: center.X - size/2, Y: center.Y - size/2}, size, 0)
		p.Vel = r2.Vec{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2}
		start := p.Pos

		resolved := map[Direction]bool{}
		for {
			d := p.CheckCollisions(obstacles, params)
			if d == NoDirection {
				break
			}
			if resolved[d] {
				t.Fatalf("case %d: %v resolved twice for particle from %v among %v", i, d, start, obs)
			}
			resolved[d] = true
		}

		const eps = 1e-9
		for _, ob := range obs {
			minX, minY := float64(ob.X)*cs, float64(ob.Y)*cs
			overlapX := p.Pos.X+p.Size > minX+eps && p.Pos.X < minX+cs-eps
			overlapY := p.Pos.Y+p.Size > minY+eps && p.Pos.Y < minY+cs-eps
			if overlapX && overlapY {
				t.Fatalf("case %d: particle from %v (size %.2f) ends at %v overlapping obstacle %v of %v", i, start, size, p.Pos, ob, obs)
			}
		}
	}
}

func TestAdvanceInertOutsideField(t *testing.T) {
	field, _ := NewGrid(3, 3, 40, FillSparse([]Coord{{1, 1}}))
	p := NewParticle(r2.Vec{X: 5, Y: 5}, 0, 0)
	p.Vel = r2.Vec{X: 1, Y: 0.5}

	p.Advance(field, nil, DefaultSteeringParams(), DefaultCollisionParams(), nil)
	if p.Pos != (r2.Vec{X: 6, Y: 5.5}) || p.Vel != (r2.Vec{X: 1, Y: 0.5}) {
		t.Errorf("inert motion changed course: %+v", p)
	}
}
