package systems

import "fmt"

// Wall is a straight run of obstacle cells from From to To, inclusive.
// Runs must be horizontal, vertical or 45-degree diagonal.
type Wall struct {
	From Coord
	To   Coord
}

// ObstacleLayout describes the obstacle cells of a board.
type ObstacleLayout struct {
	Border bool    // occupy the outer frame
	Walls  []Wall  // straight runs
	Cells  []Coord // individual cells
}

// BorderCoords returns the outer frame of a width x height board.
func BorderCoords(width, height int) []Coord {
	if width <= 0 || height <= 0 {
		return nil
	}
	out := make([]Coord, 0, 2*width+2*height)
	for x := 0; x < width; x++ {
		out = append(out, Coord{x, 0})
		if height > 1 {
			out = append(out, Coord{x, height - 1})
		}
	}
	for y := 1; y < height-1; y++ {
		out = append(out, Coord{0, y})
		if width > 1 {
			out = append(out, Coord{width - 1, y})
		}
	}
	return out
}

// WallCoords expands a wall into its cells.
func WallCoords(w Wall) ([]Coord, error) {
	dx := sign(w.To.X - w.From.X)
	dy := sign(w.To.Y - w.From.Y)
	lenX := abs(w.To.X - w.From.X)
	lenY := abs(w.To.Y - w.From.Y)
	if lenX != 0 && lenY != 0 && lenX != lenY {
		return nil, &ConfigError{
			Field:  "wall",
			Reason: fmt.Sprintf("(%d,%d)-(%d,%d) is not straight", w.From.X, w.From.Y, w.To.X, w.To.Y),
		}
	}
	steps := max(lenX, lenY)
	out := make([]Coord, 0, steps+1)
	for i := 0; i <= steps; i++ {
		out = append(out, Coord{w.From.X + dx*i, w.From.Y + dy*i})
	}
	return out, nil
}

// Coords expands the layout for a width x height board. Positions outside the
// board are rejected; duplicates are left for the grid to collapse.
func (l ObstacleLayout) Coords(width, height int) ([]Coord, error) {
	var out []Coord
	if l.Border {
		out = append(out, BorderCoords(width, height)...)
	}
	for _, w := range l.Walls {
		cells, err := WallCoords(w)
		if err != nil {
			return nil, err
		}
		out = append(out, cells...)
	}
	out = append(out, l.Cells...)

	for _, c := range out {
		if c.X < 0 || c.X >= width || c.Y < 0 || c.Y >= height {
			return nil, &ConfigError{
				Field:  "obstacle",
				Reason: fmt.Sprintf("(%d,%d) outside %dx%d board", c.X, c.Y, width, height),
			}
		}
	}
	return out, nil
}

// Boards groups the three grids of a simulation.
type Boards struct {
	Full      *Grid // every address
	Obstacles *Grid // collision layer
	Valid     *Grid // Full minus Obstacles
}

// BuildBoards creates the full, obstacle and valid grids for a layout.
func BuildBoards(width, height int, cellSize float64, layout ObstacleLayout) (Boards, error) {
	full, err := NewGrid(width, height, cellSize, FillAll())
	if err != nil {
		return Boards{}, fmt.Errorf("building full grid: %w", err)
	}
	coords, err := layout.Coords(width, height)
	if err != nil {
		return Boards{}, fmt.Errorf("expanding obstacles: %w", err)
	}
	obstacles, err := NewGrid(width, height, cellSize, FillSparse(coords))
	if err != nil {
		return Boards{}, fmt.Errorf("building obstacle grid: %w", err)
	}
	return Boards{
		Full:      full,
		Obstacles: obstacles,
		Valid:     full.Difference(obstacles),
	}, nil
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
