package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flowswarm/game"
)

// toggle is one HUD button.
type toggle struct {
	label string
	cmd   game.Command
	on    func(game.View) bool
}

var toggles = []toggle{
	{"1 Distance colour", game.CmdToggleColorByDistance, func(v game.View) bool { return v.ColorByDistance }},
	{"2 Labels", game.CmdToggleDistanceLabels, func(v game.View) bool { return v.DistanceLabels }},
	{"3 Vectors", game.CmdToggleVectorLines, func(v game.View) bool { return v.VectorLines }},
	{"4 Refresh", game.CmdToggleRefreshIndicator, func(v game.View) bool { return v.RefreshIndicator }},
	{"P Pause", game.CmdTogglePause, func(v game.View) bool { return v.Paused }},
	{"Space Tracking", game.CmdToggleTracking, func(v game.View) bool { return !v.TrackingOff }},
}

// HUD renders the status strip and its toggle buttons.
type HUD struct {
	Theme Theme
}

// NewHUD creates a HUD with the default theme.
func NewHUD() *HUD {
	return &HUD{Theme: DefaultTheme()}
}

// Draw renders data in the strip starting at y and returns the commands of
// any buttons clicked this frame.
func (h *HUD) Draw(data game.HUDView, y, width, height int32) []game.Command {
	t := h.Theme
	rl.DrawRectangle(0, y, width, height, t.PanelBg)
	rl.DrawLine(0, y, width, y, t.PanelBorder)

	var clicked []game.Command
	x := t.Padding
	by := float32(y + t.Padding)
	for _, tg := range toggles {
		label := tg.label
		if tg.on(data.View) {
			label = "[x] " + label
		}
		bounds := rl.Rectangle{X: float32(x), Y: by, Width: float32(t.ButtonW), Height: float32(t.ButtonH)}
		if gui.Button(bounds, label) {
			clicked = append(clicked, tg.cmd)
		}
		x += t.ButtonW + t.Padding/2
	}

	status := fmt.Sprintf("tick %d | particles %d | workers %d/%d", data.Tick, data.Particles, data.Ready, data.Workers)
	if data.HasGoal {
		status += fmt.Sprintf(" | goal (%d,%d) reached %d max %d", data.Goal[0], data.Goal[1], data.Reached, data.MaxDistance)
	}
	color := t.LabelColor
	if data.Ready < data.Workers {
		color = t.Warning
	}
	rl.DrawText(status, t.Padding, y+t.Padding+t.ButtonH+t.Padding/2, t.FontSize, color)
	return clicked
}
