package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flowswarm/game"
	"github.com/pthm-cable/flowswarm/ui"
)

const labelFontSize = 8

// Sink draws game frames to the raylib window.
type Sink struct {
	width, height int32
	boardHeight   int32
	hud           *ui.HUD
	input         *Input
}

// NewSink creates a sink for a window of the given size whose top boardHeight
// pixels hold the board. HUD clicks are queued on input.
func NewSink(width, height, boardHeight int32, input *Input) *Sink {
	return &Sink{
		width:       width,
		height:      height,
		boardHeight: boardHeight,
		hud:         ui.NewHUD(),
		input:       input,
	}
}

// BeginFrame implements game.RenderSink.
func (s *Sink) BeginFrame(background uint32) {
	rl.BeginDrawing()
	rl.ClearBackground(hexColor(background, 1))
}

// DrawCell implements game.RenderSink.
func (s *Sink) DrawCell(c game.CellView) {
	size := int32(c.Size)
	rl.DrawRectangle(int32(c.X), int32(c.Y), size, size, hexColor(c.Color, 1))

	if c.HasVector {
		from := rl.Vector2{X: c.CenterX, Y: c.CenterY}
		to := rl.Vector2{X: c.CenterX + c.VectorX, Y: c.CenterY + c.VectorY}
		rl.DrawLineV(from, to, rl.White)
		rl.DrawRectangle(int32(c.CenterX)-1, int32(c.CenterY)-1, 3, 3, rl.White)
	}
	if c.Label != "" {
		w := rl.MeasureText(c.Label, labelFontSize)
		rl.DrawText(c.Label, int32(c.X+c.Size/2)-w/2, int32(c.Y+c.Size/2)-labelFontSize/2, labelFontSize, rl.White)
	}
}

// DrawParticle implements game.RenderSink.
func (s *Sink) DrawParticle(p game.ParticleView) {
	rl.DrawRectangleV(
		rl.Vector2{X: p.X, Y: p.Y},
		rl.Vector2{X: p.Size, Y: p.Size},
		hexColor(p.Tint, p.Alpha),
	)
}

// DrawHUD implements game.RenderSink.
func (s *Sink) DrawHUD(h game.HUDView) {
	for _, cmd := range s.hud.Draw(h, s.boardHeight, s.width, s.height-s.boardHeight) {
		s.input.Queue(cmd)
	}
}

// EndFrame implements game.RenderSink.
func (s *Sink) EndFrame() {
	rl.EndDrawing()
}
