package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Coord is an integer grid address.
type Coord struct {
	X, Y int
}

// Direction names one of the 8 neighbours of a cell.
type Direction uint8

const (
	Left Direction = iota
	Right
	Top
	Bottom
	TopLeft
	TopRight
	BottomLeft
	BottomRight
	NumDirections
)

// NoDirection is returned when no neighbour matched.
const NoDirection = NumDirections

// directionOffsets maps each Direction to its (dx, dy). Y grows downward.
var directionOffsets = [NumDirections]Coord{
	Left:        {-1, 0},
	Right:       {1, 0},
	Top:         {0, -1},
	Bottom:      {0, 1},
	TopLeft:     {-1, -1},
	TopRight:    {1, -1},
	BottomLeft:  {-1, 1},
	BottomRight: {1, 1},
}

var directionNames = [NumDirections + 1]string{
	"left", "right", "top", "bottom", "top_left", "top_right", "bottom_left", "bottom_right", "none",
}

func (d Direction) String() string {
	if d > NumDirections {
		return "invalid"
	}
	return directionNames[d]
}

// Offset returns the (dx, dy) step for the direction.
func (d Direction) Offset() Coord {
	if d >= NumDirections {
		return Coord{}
	}
	return directionOffsets[d]
}

// Cell is one addressable unit of a Grid.
// Values handed out by Grid queries are snapshots; mutating them does not
// affect the grid.
type Cell struct {
	X, Y int

	visited  bool
	distance int
	force    r2.Vec
}

// Distance returns the hop count from the goal and whether the cell was
// reached by the last solve. An unreached cell reports (0, false).
func (c Cell) Distance() (int, bool) {
	if !c.visited {
		return 0, false
	}
	return c.distance, true
}

// Visited reports whether the last solve reached this cell.
func (c Cell) Visited() bool { return c.visited }

// Force returns the steering vector derived by the last solve.
func (c Cell) Force() r2.Vec { return c.force }

// Coord returns the cell address.
func (c Cell) Coord() Coord { return Coord{c.X, c.Y} }

func (c *Cell) reset() {
	c.visited = false
	c.distance = 0
	c.force = r2.Vec{}
}

func (c *Cell) visit(distance int) {
	c.visited = true
	c.distance = distance
}

// FillMode selects which addresses a new Grid populates.
type FillMode struct {
	all       bool
	positions []Coord
}

// FillAll populates every address.
func FillAll() FillMode { return FillMode{all: true} }

// FillSparse populates only the given positions. Duplicates collapse to one cell.
func FillSparse(positions []Coord) FillMode {
	return FillMode{positions: positions}
}

// Grid is a sparse occupancy map: an address holds a Cell iff it is traversable
// for this grid's purpose (walkable space, or obstacle space for a collision grid).
type Grid struct {
	cells     []*Cell // row-major, nil = absent
	width     int     // horizontal cells
	height    int     // vertical cells
	cellSize  float64 // world units per cell
	cellCount int

	goal    Coord
	hasGoal bool
}

// MaxCells bounds width*height of any grid.
const MaxCells = 1 << 22

// NewGrid builds a grid of width x height cells of cellSize world units.
func NewGrid(width, height int, cellSize float64, fill FillMode) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, &ConfigError{Field: "grid dimensions", Reason: fmt.Sprintf("must be positive, got %dx%d", width, height)}
	}
	if width > MaxCells/height {
		return nil, &ConfigError{Field: "grid dimensions", Reason: fmt.Sprintf("%dx%d exceeds %d cells", width, height, MaxCells)}
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, &ConfigError{Field: "cell size", Reason: fmt.Sprintf("must be positive and finite, got %v", cellSize)}
	}

	g := &Grid{
		cells:    make([]*Cell, width*height),
		width:    width,
		height:   height,
		cellSize: cellSize,
	}

	if fill.all {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.cells[y*width+x] = &Cell{X: x, Y: y}
			}
		}
		g.cellCount = width * height
		return g, nil
	}

	for _, p := range fill.positions {
		if !g.inBounds(p.X, p.Y) {
			return nil, &ConfigError{Field: "fill position", Reason: fmt.Sprintf("(%d,%d) outside %dx%d grid", p.X, p.Y, width, height)}
		}
		idx := p.Y*width + p.X
		if g.cells[idx] != nil {
			continue
		}
		g.cells[idx] = &Cell{X: p.X, Y: p.Y}
		g.cellCount++
	}
	return g, nil
}

// Width returns the number of horizontal cells.
func (g *Grid) Width() int { return g.width }

// Height returns the number of vertical cells.
func (g *Grid) Height() int { return g.height }

// CellSize returns the cell edge length in world units.
func (g *Grid) CellSize() float64 { return g.cellSize }

// CellCount returns the number of populated cells.
func (g *Grid) CellCount() int { return g.cellCount }

// Goal returns the goal of the last successful solve.
func (g *Grid) Goal() (Coord, bool) { return g.goal, g.hasGoal }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// cell returns the live cell or nil. Out of range is nil.
func (g *Grid) cell(x, y int) *Cell {
	if !g.inBounds(x, y) {
		return nil
	}
	return g.cells[y*g.width+x]
}

// Exists reports whether (x, y) is in range and populated.
func (g *Grid) Exists(x, y int) bool {
	return g.cell(x, y) != nil
}

// CellAt returns a snapshot of the cell at (x, y).
func (g *Grid) CellAt(x, y int) (Cell, bool) {
	c := g.cell(x, y)
	if c == nil {
		return Cell{}, false
	}
	return *c, true
}

// CellAtWorld converts a world position to the address of the cell containing it.
// The result may be out of range; use Exists to check it.
func (g *Grid) CellAtWorld(px, py float64) Coord {
	return Coord{
		X: int(math.Floor(px / g.cellSize)),
		Y: int(math.Floor(py / g.cellSize)),
	}
}

// CellCenter returns the world position of the centre of cell (x, y).
func (g *Grid) CellCenter(x, y int) r2.Vec {
	return r2.Vec{
		X: float64(x)*g.cellSize + g.cellSize*0.5,
		Y: float64(y)*g.cellSize + g.cellSize*0.5,
	}
}

// Neighbors returns the populated cells among the 8 neighbours of (x, y).
func (g *Grid) Neighbors(x, y int) []Cell {
	out := make([]Cell, 0, NumDirections)
	for _, off := range directionOffsets {
		if c := g.cell(x+off.X, y+off.Y); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// appendNeighbors appends live neighbour pointers to dst.
func (g *Grid) appendNeighbors(dst []*Cell, x, y int) []*Cell {
	for _, off := range directionOffsets {
		if c := g.cell(x+off.X, y+off.Y); c != nil {
			dst = append(dst, c)
		}
	}
	return dst
}

// Neighborhood holds the named neighbours of a cell.
type Neighborhood struct {
	cells   [NumDirections]Cell
	present [NumDirections]bool
}

// Get returns the neighbour in direction d.
func (n Neighborhood) Get(d Direction) (Cell, bool) {
	if d >= NumDirections || !n.present[d] {
		return Cell{}, false
	}
	return n.cells[d], true
}

// Count returns the number of present neighbours.
func (n Neighborhood) Count() int {
	count := 0
	for _, ok := range n.present {
		if ok {
			count++
		}
	}
	return count
}

// NamedNeighbors returns the 8 neighbours of (x, y) by direction.
func (g *Grid) NamedNeighbors(x, y int) Neighborhood {
	var n Neighborhood
	for d, off := range directionOffsets {
		if c := g.cell(x+off.X, y+off.Y); c != nil {
			n.cells[d] = *c
			n.present[d] = true
		}
	}
	return n
}

// Difference returns a new grid populated at exactly the addresses populated
// in g and absent in other. Dimensions and cell size are taken from g.
func (g *Grid) Difference(other *Grid) *Grid {
	out := &Grid{
		cells:    make([]*Cell, len(g.cells)),
		width:    g.width,
		height:   g.height,
		cellSize: g.cellSize,
	}
	for _, c := range g.cells {
		if c == nil || (other != nil && other.Exists(c.X, c.Y)) {
			continue
		}
		out.cells[c.Y*out.width+c.X] = &Cell{X: c.X, Y: c.Y}
		out.cellCount++
	}
	return out
}

// Reset clears distance, visited state and forces on every cell.
func (g *Grid) Reset() {
	for _, c := range g.cells {
		if c != nil {
			c.reset()
		}
	}
	g.hasGoal = false
}

// SetForce overwrites the force of cell (x, y). Reports false if absent.
func (g *Grid) SetForce(x, y int, f r2.Vec) bool {
	c := g.cell(x, y)
	if c == nil {
		return false
	}
	c.force = f
	return true
}

// Cells returns snapshots of all populated cells in row-major order.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, 0, g.cellCount)
	for _, c := range g.cells {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Coords returns the addresses of all populated cells in row-major order.
func (g *Grid) Coords() []Coord {
	out := make([]Coord, 0, g.cellCount)
	for _, c := range g.cells {
		if c != nil {
			out = append(out, Coord{c.X, c.Y})
		}
	}
	return out
}

// MaxDistance returns the largest distance among reached cells.
func (g *Grid) MaxDistance() (int, bool) {
	best, found := 0, false
	for _, c := range g.cells {
		if c == nil || !c.visited {
			continue
		}
		if !found || c.distance > best {
			best = c.distance
			found = true
		}
	}
	return best, found
}

// forEach calls fn for every populated cell in row-major order.
func (g *Grid) forEach(fn func(c *Cell)) {
	for _, c := range g.cells {
		if c != nil {
			fn(c)
		}
	}
}
