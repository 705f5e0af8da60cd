package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flowswarm/game"
)

// KeyBinding maps a raylib key to a game command.
type KeyBinding struct {
	Key int32
	Cmd game.Command
}

// KeyBindings are checked in order every frame.
var KeyBindings = []KeyBinding{
	{rl.KeyOne, game.CmdToggleColorByDistance},
	{rl.KeyTwo, game.CmdToggleDistanceLabels},
	{rl.KeyThree, game.CmdToggleVectorLines},
	{rl.KeyFour, game.CmdToggleRefreshIndicator},
	{rl.KeyP, game.CmdTogglePause},
	{rl.KeySpace, game.CmdToggleTracking},
}

// Input reads the keyboard and mouse once per frame.
type Input struct {
	boardW, boardH float32
	queued         []game.Command
}

// NewInput creates an input source for a board of the given pixel size.
func NewInput(boardW, boardH float32) *Input {
	return &Input{boardW: boardW, boardH: boardH}
}

// Queue adds a command to be returned by the next Commands call.
func (in *Input) Queue(cmd game.Command) {
	in.queued = append(in.queued, cmd)
}

// Commands implements game.InputSource.
func (in *Input) Commands() []game.Command {
	cmds := in.queued
	in.queued = nil
	for _, b := range KeyBindings {
		if rl.IsKeyPressed(b.Key) {
			cmds = append(cmds, b.Cmd)
		}
	}
	return cmds
}

// Pointer implements game.InputSource. It reports false while the mouse is
// off the window or over the HUD.
func (in *Input) Pointer() (float64, float64, bool) {
	if !rl.IsCursorOnScreen() {
		return 0, 0, false
	}
	m := rl.GetMousePosition()
	if m.X < 0 || m.Y < 0 || m.X >= in.boardW || m.Y >= in.boardH {
		return 0, 0, false
	}
	return float64(m.X), float64(m.Y), true
}
