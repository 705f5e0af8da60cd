package systems

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// FieldWeights are the gradient blend factors used when deriving forces.
type FieldWeights struct {
	Orthogonal float64 // left/right and top/bottom differences
	Diagonal   float64 // cross terms between opposite diagonals
}

// DefaultFieldWeights returns the tuned defaults.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{
		Orthogonal: 0.25,
		Diagonal:   0.4,
	}
}

// SolveResult summarises one field solve.
type SolveResult struct {
	Goal        Coord
	Reached     int           // cells reached from the goal, goal included
	MaxDistance int           // largest hop count
	Duration    time.Duration // wall time of the solve
}

// FieldSolver propagates hop distances from a goal cell and converts them into
// a per-cell steering field.
type FieldSolver struct {
	weights FieldWeights

	// Reusable frontier buffers
	frontier []*Cell
	next     []*Cell
	seen     map[*Cell]struct{}
}

// NewFieldSolver creates a solver with the given weights.
func NewFieldSolver(weights FieldWeights) *FieldSolver {
	return &FieldSolver{
		weights: weights,
		seen:    make(map[*Cell]struct{}, 64),
	}
}

// Weights returns the solver's blend factors.
func (s *FieldSolver) Weights() FieldWeights { return s.weights }

// Solve recomputes distances and forces on g for the given goal.
// If the goal is not a populated cell it returns *GoalNotFoundError and g is untouched.
func (s *FieldSolver) Solve(g *Grid, goal Coord) (SolveResult, error) {
	start := time.Now()

	goalCell := g.cell(goal.X, goal.Y)
	if goalCell == nil {
		return SolveResult{Goal: goal}, &GoalNotFoundError{Goal: goal}
	}

	g.Reset()
	goalCell.visit(0)
	g.goal = goal
	g.hasGoal = true

	reached, maxDist := s.propagate(g, goalCell)
	s.deriveForces(g)

	return SolveResult{
		Goal:        goal,
		Reached:     reached,
		MaxDistance: maxDist,
		Duration:    time.Since(start),
	}, nil
}

// propagate runs the ring-by-ring BFS from the goal.
func (s *FieldSolver) propagate(g *Grid, goal *Cell) (reached, maxDist int) {
	reached = 1

	s.frontier = s.frontier[:0]
	s.frontier = appendUnvisited(s.frontier, g, goal, s.seen)
	clear(s.seen)

	ring := 0
	for len(s.frontier) > 0 {
		ring++
		for _, c := range s.frontier {
			if c.visited {
				continue
			}
			c.visit(ring)
			reached++
		}
		maxDist = ring

		s.next = s.next[:0]
		for _, c := range s.frontier {
			s.next = appendUnvisited(s.next, g, c, s.seen)
		}
		clear(s.seen)
		s.frontier, s.next = s.next, s.frontier
	}
	return reached, maxDist
}

// appendUnvisited appends the unvisited neighbours of c not yet in seen.
func appendUnvisited(dst []*Cell, g *Grid, c *Cell, seen map[*Cell]struct{}) []*Cell {
	for _, off := range directionOffsets {
		n := g.cell(c.X+off.X, c.Y+off.Y)
		if n == nil || n.visited {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		dst = append(dst, n)
	}
	return dst
}

// deriveForces sets each reached cell's force from the distance gradient of its
// neighbourhood. Missing or unreached neighbours count as one hop further than
// the cell itself, which pushes particles away from walls.
func (s *FieldSolver) deriveForces(g *Grid) {
	ow := s.weights.Orthogonal
	dw := s.weights.Diagonal

	g.forEach(func(c *Cell) {
		if !c.visited {
			c.force = r2.Vec{}
			return
		}

		var d [NumDirections]float64
		wall := float64(c.distance + 1)
		for dir, off := range directionOffsets {
			n := g.cell(c.X+off.X, c.Y+off.Y)
			if n == nil || !n.visited {
				d[dir] = wall
				continue
			}
			d[dir] = float64(n.distance)
		}

		mainDiag := d[BottomRight] - d[TopLeft]
		antiDiag := d[BottomLeft] - d[TopRight]

		c.force = r2.Vec{
			X: ow*(d[Left]-d[Right]) - dw*mainDiag + dw*antiDiag,
			Y: ow*(d[Top]-d[Bottom]) - dw*mainDiag - dw*antiDiag,
		}
	})
}
