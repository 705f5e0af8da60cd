package game

// Command is a discrete user action.
type Command uint8

const (
	CmdNone Command = iota
	CmdToggleColorByDistance
	CmdToggleDistanceLabels
	CmdToggleVectorLines
	CmdToggleRefreshIndicator
	CmdTogglePause
	CmdToggleTracking
)

var commandNames = [...]string{
	CmdNone:                   "none",
	CmdToggleColorByDistance:  "color_by_distance",
	CmdToggleDistanceLabels:   "distance_labels",
	CmdToggleVectorLines:      "vector_lines",
	CmdToggleRefreshIndicator: "refresh_indicator",
	CmdTogglePause:            "pause",
	CmdToggleTracking:         "tracking",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// InputSource supplies one frame of user input.
type InputSource interface {
	// Pointer returns the pointer in world pixels, if it is over the board.
	Pointer() (x, y float64, ok bool)
	// Commands returns the actions triggered since the last frame.
	Commands() []Command
}

// HandleCommand applies a toggle. Distance labels and vector lines exclude
// each other.
func (g *Game) HandleCommand(cmd Command) {
	v := &g.view
	switch cmd {
	case CmdToggleColorByDistance:
		v.ColorByDistance = !v.ColorByDistance
	case CmdToggleDistanceLabels:
		v.DistanceLabels = !v.DistanceLabels
		v.VectorLines = false
	case CmdToggleVectorLines:
		v.VectorLines = !v.VectorLines
		v.DistanceLabels = false
	case CmdToggleRefreshIndicator:
		v.RefreshIndicator = !v.RefreshIndicator
		g.refreshFlash = false
	case CmdTogglePause:
		v.Paused = !v.Paused
	case CmdToggleTracking:
		v.TrackingOff = !v.TrackingOff
	default:
		return
	}
	g.log.Debug("command", "cmd", cmd.String())
}

// UpdatePointer moves the goal to the cell under the pointer. It reports
// whether the field was re-solved.
func (g *Game) UpdatePointer(x, y float64) bool {
	if g.view.TrackingOff {
		return false
	}
	goal := g.boards.Valid.CellAtWorld(x, y)
	solved, err := g.SetGoal(goal)
	if err != nil {
		g.log.Warn("goal_rejected", "x", goal.X, "y", goal.Y, "error", err)
		return false
	}
	return solved
}

// markRefresh flips the refresh indicator after a solve.
func (g *Game) markRefresh() {
	g.refreshFlash = g.view.RefreshIndicator && !g.refreshFlash
}

// settleRefresh clears a lit indicator on the frame after a solve.
func (g *Game) settleRefresh() {
	if g.view.RefreshIndicator && g.refreshFlash {
		g.refreshFlash = false
	}
}
