// Package codec converts grids and particle positions to flat float64 buffers
// exchanged between the coordinator and its workers.
//
// Layouts:
//
//	grid:       [w, h, cellSize, count, (x, y, fx, fy) x count]
//	init:       [Init, n, (x, y) x n]
//	vectors:    [SetVectors, w, h, cellSize, count, (x, y, fx, fy) x count]
//	positions:  [UpdatedPositions, n, (x, y) x n]
//	bare tags:  [InitDone] [SetVectorsDone] [UpdatePositionsRequest]
//
// A buffer handed to a send belongs to the receiver from then on.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/flowswarm/systems"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed buffer")

// Buffer is a flat record of float64 values.
type Buffer []float64

// Tag identifies a message kind. It is stored as the first value of tagged buffers.
type Tag int

const (
	Init Tag = iota + 1
	InitDone
	SetVectors
	SetVectorsDone
	UpdatePositionsRequest
	UpdatedPositions
)

func (t Tag) String() string {
	switch t {
	case Init:
		return "init"
	case InitDone:
		return "init_done"
	case SetVectors:
		return "set_vectors"
	case SetVectorsDone:
		return "set_vectors_done"
	case UpdatePositionsRequest:
		return "update_positions_request"
	case UpdatedPositions:
		return "updated_positions"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool { return t >= Init && t <= UpdatedPositions }

const (
	gridHeader  = 4 // w, h, cellSize, count
	cellRecord  = 4 // x, y, fx, fy
	pointRecord = 2 // x, y
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// PeekTag returns the tag of a tagged buffer without consuming it.
func PeekTag(buf Buffer) (Tag, error) {
	if len(buf) == 0 {
		return 0, malformed("empty buffer")
	}
	n, ok := toInt(buf[0])
	if !ok || !Tag(n).Valid() {
		return 0, malformed("unknown tag %v", buf[0])
	}
	return Tag(n), nil
}

// EncodeTag returns a buffer holding only the tag.
func EncodeTag(tag Tag) Buffer {
	return Buffer{float64(tag)}
}

// EncodeGrid writes every populated cell of g with its force.
func EncodeGrid(g *systems.Grid) Buffer {
	return appendGrid(make(Buffer, 0, gridHeader+cellRecord*g.CellCount()), g)
}

func appendGrid(buf Buffer, g *systems.Grid) Buffer {
	cells := g.Cells()
	buf = append(buf,
		float64(g.Width()),
		float64(g.Height()),
		g.CellSize(),
		float64(len(cells)),
	)
	for _, c := range cells {
		f := c.Force()
		buf = append(buf, float64(c.X), float64(c.Y), f.X, f.Y)
	}
	return buf
}

type gridRecord struct {
	width, height int
	cellSize      float64
	coords        []systems.Coord
	forces        []r2.Vec
}

func parseGrid(buf Buffer) (gridRecord, error) {
	var rec gridRecord
	if len(buf) < gridHeader {
		return rec, malformed("grid header needs %d values, got %d", gridHeader, len(buf))
	}
	w, okW := toInt(buf[0])
	h, okH := toInt(buf[1])
	if !okW || !okH || w <= 0 || h <= 0 || w > systems.MaxCells/h {
		return rec, malformed("grid dimensions %vx%v", buf[0], buf[1])
	}
	count, ok := toInt(buf[3])
	if !ok || count < 0 || count > w*h {
		return rec, malformed("cell count %v", buf[3])
	}
	if want := gridHeader + cellRecord*count; len(buf) != want {
		return rec, malformed("grid of %d cells needs %d values, got %d", count, want, len(buf))
	}

	rec.width, rec.height, rec.cellSize = w, h, buf[2]
	rec.coords = make([]systems.Coord, count)
	rec.forces = make([]r2.Vec, count)
	for i := range count {
		r := buf[gridHeader+i*cellRecord:]
		x, okX := toInt(r[0])
		y, okY := toInt(r[1])
		if !okX || !okY || x < 0 || x >= w || y < 0 || y >= h {
			return rec, malformed("cell %d at (%v,%v)", i, r[0], r[1])
		}
		rec.coords[i] = systems.Coord{X: x, Y: y}
		rec.forces[i] = r2.Vec{X: r[2], Y: r[3]}
	}
	return rec, nil
}

// DecodeGrid rebuilds a shallow grid: topology and forces only, no distances.
func DecodeGrid(buf Buffer) (*systems.Grid, error) {
	rec, err := parseGrid(buf)
	if err != nil {
		return nil, err
	}
	g, err := systems.NewGrid(rec.width, rec.height, rec.cellSize, systems.FillSparse(rec.coords))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for i, c := range rec.coords {
		g.SetForce(c.X, c.Y, rec.forces[i])
	}
	return g, nil
}

// EncodeVectors tags a grid buffer as a vector update.
func EncodeVectors(g *systems.Grid) Buffer {
	buf := make(Buffer, 0, 1+gridHeader+cellRecord*g.CellCount())
	buf = append(buf, float64(SetVectors))
	return appendGrid(buf, g)
}

// ApplyVectors copies the forces of a vector update into g. The update must
// describe a grid of the same dimensions and only cells that exist in g;
// otherwise g is left unchanged.
func ApplyVectors(g *systems.Grid, buf Buffer) error {
	if err := expectTag(buf, SetVectors); err != nil {
		return err
	}
	rec, err := parseGrid(buf[1:])
	if err != nil {
		return err
	}
	if rec.width != g.Width() || rec.height != g.Height() {
		return malformed("vector update for %dx%d grid applied to %dx%d", rec.width, rec.height, g.Width(), g.Height())
	}
	for _, c := range rec.coords {
		if !g.Exists(c.X, c.Y) {
			return malformed("vector update for absent cell (%d,%d)", c.X, c.Y)
		}
	}
	for i, c := range rec.coords {
		g.SetForce(c.X, c.Y, rec.forces[i])
	}
	return nil
}

// EncodeInit builds a particle-init buffer.
func EncodeInit(points []r2.Vec) Buffer {
	return encodePoints(Init, points)
}

// EncodePositions builds a position-report buffer.
func EncodePositions(points []r2.Vec) Buffer {
	return encodePoints(UpdatedPositions, points)
}

func encodePoints(tag Tag, points []r2.Vec) Buffer {
	buf := make(Buffer, 0, 2+pointRecord*len(points))
	buf = append(buf, float64(tag), float64(len(points)))
	for _, p := range points {
		buf = append(buf, p.X, p.Y)
	}
	return buf
}

// DecodePoints reads a point buffer carrying the given tag.
func DecodePoints(buf Buffer, tag Tag) ([]r2.Vec, error) {
	if err := expectTag(buf, tag); err != nil {
		return nil, err
	}
	if len(buf) < 2 {
		return nil, malformed("%s buffer missing count", tag)
	}
	n, ok := toInt(buf[1])
	if !ok || n < 0 {
		return nil, malformed("%s count %v", tag, buf[1])
	}
	if want := 2 + pointRecord*n; len(buf) != want {
		return nil, malformed("%s of %d points needs %d values, got %d", tag, n, want, len(buf))
	}
	out := make([]r2.Vec, n)
	for i := range out {
		out[i] = r2.Vec{X: buf[2+2*i], Y: buf[3+2*i]}
	}
	return out, nil
}

func expectTag(buf Buffer, want Tag) error {
	got, err := PeekTag(buf)
	if err != nil {
		return err
	}
	if got != want {
		return malformed("expected %s, got %s", want, got)
	}
	return nil
}

// Bytes returns the little-endian byte form of b.
func (b Buffer) Bytes() []byte {
	out := make([]byte, 8*len(b))
	for i, v := range b {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

// FromBytes parses the output of Bytes.
func FromBytes(data []byte) (Buffer, error) {
	if len(data)%8 != 0 {
		return nil, malformed("byte length %d is not a multiple of 8", len(data))
	}
	out := make(Buffer, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return out, nil
}

// toInt converts an integral float64 to int.
func toInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return 0, false
	}
	return int(f), true
}
