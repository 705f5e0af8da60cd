package systems

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// Particle defaults.
const (
	DefaultParticleSize = 5.0
	DefaultMass         = 1.5
)

// SteeringParams sets the magnitudes used by the seek behaviour. Each stage
// rescales its vector to the given length, so a moving particle always
// travels at MaxSpeed.
type SteeringParams struct {
	MaxVelocity float64 // length of the desired vector
	MaxForce    float64 // length of the steering vector before mass
	MaxSpeed    float64 // length of the resulting velocity
}

// DefaultSteeringParams returns the standard seek limits.
func DefaultSteeringParams() SteeringParams {
	return SteeringParams{
		MaxVelocity: 10,
		MaxForce:    0.2,
		MaxSpeed:    2,
	}
}

// CollisionParams controls the obstacle response. Thresholds are fractions of
// the cell size measured from an obstacle cell's centre; the far factor applies
// to obstacles below or right of the particle, the near factor to obstacles
// above or left, since the particle position is its top-left corner.
type CollisionParams struct {
	NearFactor float64 // 0.45
	FarFactor  float64 // 0.65
	Margin     float64 // separation kept after a hit
	Damping    float64 // fraction of the inverted velocity kept
}

// DefaultCollisionParams returns the standard collision response.
func DefaultCollisionParams() CollisionParams {
	return CollisionParams{
		NearFactor: 0.45,
		FarFactor:  0.65,
		Margin:     2,
		Damping:    0.8,
	}
}

// Particle is a point mass steered by the field. Pos is the top-left corner
// of its Size x Size extent.
type Particle struct {
	Pos  r2.Vec
	Vel  r2.Vec
	Mass float64
	Size float64
}

// NewParticle creates a resting particle. Non-positive size or mass fall back
// to the defaults.
func NewParticle(pos r2.Vec, size, mass float64) Particle {
	if size <= 0 {
		size = DefaultParticleSize
	}
	if mass <= 0 {
		mass = DefaultMass
	}
	return Particle{Pos: pos, Mass: mass, Size: size}
}

// Center returns the centre of the particle's extent.
func (p *Particle) Center() r2.Vec {
	return r2.Vec{X: p.Pos.X + p.Size*0.5, Y: p.Pos.Y + p.Size*0.5}
}

// SetVelocity applies one seek step toward desired.
func (p *Particle) SetVelocity(desired r2.Vec, params SteeringParams) {
	steer := r2.Add(truncate(desired, params.MaxVelocity), p.Vel)
	steer = r2.Scale(1/p.Mass, truncate(steer, params.MaxForce))
	p.Vel = truncate(r2.Add(p.Vel, steer), params.MaxSpeed)
}

// MoveByVelocity advances the position by the velocity.
func (p *Particle) MoveByVelocity() {
	p.Pos = r2.Add(p.Pos, p.Vel)
}

// MoveWithInaccuracy advances the position by the velocity scaled by an
// independent random factor per axis.
func (p *Particle) MoveWithInaccuracy(in *Inaccuracy) {
	p.Pos.X += p.Vel.X * in.Sample()
	p.Pos.Y += p.Vel.Y * in.Sample()
}

// CheckCollisions resolves at most one contact against the obstacle grid and
// returns the direction that was resolved, or NoDirection.
// Order: bottom, top, left, right, then the corners.
func (p *Particle) CheckCollisions(obstacles *Grid, params CollisionParams) Direction {
	cs := obstacles.CellSize()
	center := p.Center()
	at := obstacles.CellAtWorld(center.X, center.Y)
	hood := obstacles.NamedNeighbors(at.X, at.Y)

	farEdge := cs * params.FarFactor
	nearEdge := cs * params.NearFactor

	// Contact tests against an obstacle cell centre.
	below := func(cy float64) bool { return p.Pos.Y+p.Size >= cy-farEdge }
	above := func(cy float64) bool { return p.Pos.Y-p.Size <= cy+nearEdge }
	leftOf := func(cx float64) bool { return p.Pos.X-p.Size <= cx+nearEdge }
	rightOf := func(cx float64) bool { return p.Pos.X+p.Size >= cx-farEdge }

	// Resolutions
	pushUp := func(cy float64) {
		p.Pos.Y = cy - farEdge - p.Size - params.Margin
		p.Vel.Y = -p.Vel.Y * params.Damping
	}
	pushDown := func(cy float64) {
		p.Pos.Y = cy + nearEdge + p.Size + params.Margin
		p.Vel.Y = -p.Vel.Y * params.Damping
	}
	pushRight := func(cx float64) {
		p.Pos.X = cx + nearEdge + p.Size + params.Margin
		p.Vel.X = -p.Vel.X * params.Damping
	}
	pushLeft := func(cx float64) {
		p.Pos.X = cx - farEdge - p.Size - params.Margin
		p.Vel.X = -p.Vel.X * params.Damping
	}

	centerOf := func(d Direction) (r2.Vec, bool) {
		c, ok := hood.Get(d)
		if !ok {
			return r2.Vec{}, false
		}
		return obstacles.CellCenter(c.X, c.Y), true
	}

	if c, ok := centerOf(Bottom); ok && below(c.Y) {
		pushUp(c.Y)
		return Bottom
	}
	if c, ok := centerOf(Top); ok && above(c.Y) {
		pushDown(c.Y)
		return Top
	}
	if c, ok := centerOf(Left); ok && leftOf(c.X) {
		pushRight(c.X)
		return Left
	}
	if c, ok := centerOf(Right); ok && rightOf(c.X) {
		pushLeft(c.X)
		return Right
	}
	if c, ok := centerOf(BottomLeft); ok && below(c.Y) && leftOf(c.X) {
		pushUp(c.Y)
		pushRight(c.X)
		return BottomLeft
	}
	if c, ok := centerOf(BottomRight); ok && below(c.Y) && rightOf(c.X) {
		pushUp(c.Y)
		pushLeft(c.X)
		return BottomRight
	}
	if c, ok := centerOf(TopLeft); ok && above(c.Y) && leftOf(c.X) {
		pushDown(c.Y)
		pushRight(c.X)
		return TopLeft
	}
	if c, ok := centerOf(TopRight); ok && above(c.Y) && rightOf(c.X) {
		pushDown(c.Y)
		pushLeft(c.X)
		return TopRight
	}
	return NoDirection
}

// Advance runs one simulation tick: seek the force of the field cell under the
// particle, resolve collisions, then move. A particle outside the field keeps
// its velocity (inert motion). A nil inaccuracy moves deterministically.
func (p *Particle) Advance(field, obstacles *Grid, steer SteeringParams, coll CollisionParams, in *Inaccuracy) {
	at := field.CellAtWorld(p.Pos.X, p.Pos.Y)
	cell, ok := field.CellAt(at.X, at.Y)
	if !ok {
		p.MoveByVelocity()
		return
	}

	p.SetVelocity(cell.Force(), steer)
	if obstacles != nil {
		p.CheckCollisions(obstacles, coll)
	}
	if in != nil {
		p.MoveWithInaccuracy(in)
	} else {
		p.MoveByVelocity()
	}
}

// truncate rescales v to length n. A zero vector stays zero.
func truncate(v r2.Vec, n float64) r2.Vec {
	l := r2.Norm(v)
	if l == 0 {
		return v
	}
	return r2.Scale(n/l, v)
}

// Inaccuracy draws per-axis movement factors uniformly from [Min, Max].
type Inaccuracy struct {
	Min, Max float64
	rng      *rand.Rand
}

// NewInaccuracy creates a seeded inaccuracy source.
func NewInaccuracy(min, max float64, seed int64) (*Inaccuracy, error) {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return nil, &ConfigError{Field: "inaccuracy range", Reason: "bounds must be finite numbers"}
	}
	if max < min {
		return nil, &ConfigError{Field: "inaccuracy range", Reason: fmt.Sprintf("max %v < min %v", max, min)}
	}
	return &Inaccuracy{
		Min: min,
		Max: max,
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Sample returns the next factor.
func (in *Inaccuracy) Sample() float64 {
	return in.Min + in.rng.Float64()*(in.Max-in.Min)
}
