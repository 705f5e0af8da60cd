package game

import (
	"strconv"

	"github.com/pthm-cable/flowswarm/telemetry"
)

// CellView is one board cell to draw. X and Y are the top-left corner in
// world pixels.
type CellView struct {
	X, Y     float32
	Size     float32
	Color    uint32 // 0xRRGGBB
	Obstacle bool

	// Distance label, drawn at the centre when non-empty
	Label string

	// Force line from the cell centre, when HasVector is set
	HasVector        bool
	CenterX, CenterY float32
	VectorX, VectorY float32 // end point offset from the centre
}

// ParticleView is one particle to draw.
type ParticleView struct {
	X, Y  float32
	Size  float32
	Tint  uint32 // 0xRRGGBB
	Alpha float32
}

// HUDView is the status strip below the board.
type HUDView struct {
	Tick        int64
	Goal        [2]int
	HasGoal     bool
	Reached     int
	MaxDistance int
	Particles   int
	Ready       int
	Workers     int
	View        View
}

// RenderSink draws one frame. The game only writes to it.
type RenderSink interface {
	BeginFrame(background uint32)
	DrawCell(CellView)
	DrawParticle(ParticleView)
	DrawHUD(HUDView)
	EndFrame()
}

// Render emits the board, the particles and the HUD to sink.
func (g *Game) Render(sink RenderSink) {
	if !g.tickOpen {
		g.perfCollector.StartTick()
		g.tickOpen = true
	}
	g.perfCollector.StartPhase(telemetry.PhaseRender)

	rc := g.cfg.Render
	sink.BeginFrame(rc.BaseColor)
	g.renderCells(sink)
	g.renderParticles(sink)
	sink.DrawHUD(g.hud())
	sink.EndFrame()

	g.perfCollector.EndTick()
	g.tickOpen = false
	g.perfCollector.RecordFrame()
}

// CellColor returns the fill of a valid cell: the refresh colour while the
// indicator is lit, blue scaled by distance when colouring by distance, the
// base colour otherwise.
func (g *Game) CellColor(distance, maxDistance int) uint32 {
	rc := g.cfg.Render
	switch {
	case g.refreshFlash:
		return rc.RefreshColor
	case g.view.ColorByDistance:
		if maxDistance <= 0 {
			return 0
		}
		return uint32(255 * distance / maxDistance)
	}
	return rc.BaseColor
}

func (g *Game) renderCells(sink RenderSink) {
	rc := g.cfg.Render
	cs := float32(g.boards.Valid.CellSize())

	for _, c := range g.boards.Obstacles.Cells() {
		sink.DrawCell(CellView{
			X: float32(c.X) * cs, Y: float32(c.Y) * cs,
			Size:     cs,
			Color:    rc.ObstacleColor,
			Obstacle: true,
		})
	}

	maxDist, _ := g.boards.Valid.MaxDistance()
	for _, c := range g.boards.Valid.Cells() {
		d, reached := c.Distance()
		v := CellView{
			X: float32(c.X) * cs, Y: float32(c.Y) * cs,
			Size:  cs,
			Color: g.CellColor(d, maxDist),
		}
		if g.view.DistanceLabels && reached {
			v.Label = strconv.Itoa(d)
		}
		if g.view.VectorLines {
			centre := g.boards.Valid.CellCenter(c.X, c.Y)
			f := c.Force()
			v.HasVector = true
			v.CenterX, v.CenterY = float32(centre.X), float32(centre.Y)
			v.VectorX = float32(f.X * rc.VectorScale)
			v.VectorY = float32(f.Y * rc.VectorScale)
		}
		sink.DrawCell(v)
	}
}

func (g *Game) renderParticles(sink RenderSink) {
	query := g.particleFilter.Query()
	for query.Next() {
		pos, _, _, app := query.Get()
		sink.DrawParticle(ParticleView{
			X: pos.X, Y: pos.Y,
			Size:  app.Size,
			Tint:  app.Tint,
			Alpha: app.Alpha,
		})
	}
}

func (g *Game) hud() HUDView {
	h := HUDView{
		Tick:      g.tick,
		Particles: len(g.entities),
		Ready:     g.coord.ReadyCount(),
		Workers:   len(g.coord.Status()),
		View:      g.view,
	}
	if goal, ok := g.boards.Valid.Goal(); ok {
		h.Goal = [2]int{goal.X, goal.Y}
		h.HasGoal = true
		h.Reached = g.lastSolve.Reached
		h.MaxDistance = g.lastSolve.MaxDistance
	}
	return h
}
