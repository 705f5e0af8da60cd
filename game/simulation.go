package game

import (
	"time"

	"github.com/pthm-cable/flowswarm/systems"
	"github.com/pthm-cable/flowswarm/telemetry"
)

const (
	// headlessWait bounds how long a headless update waits for position reports.
	headlessWait = 250 * time.Millisecond
	// handshakeWait bounds how long a headless game waits for worker init.
	handshakeWait = 5 * time.Second
)

// Update runs one frame: commands, goal tracking, then the worker exchange.
// In headless mode the goal follows the waypoint schedule and in is ignored.
func (g *Game) Update(in InputSource) {
	if g.tickOpen {
		g.perfCollector.EndTick()
	}
	g.perfCollector.StartTick()
	g.tickOpen = true

	g.perfCollector.StartPhase(telemetry.PhaseInput)
	solved := false
	switch {
	case g.headless:
		if goal, ok := g.schedule.at(g.tick); ok {
			g.perfCollector.StartPhase(telemetry.PhaseFieldSolve)
			solved = g.setGoalLogged(goal)
		}
	case in != nil:
		for _, cmd := range in.Commands() {
			g.HandleCommand(cmd)
		}
		if x, y, ok := in.Pointer(); ok {
			g.perfCollector.StartPhase(telemetry.PhaseFieldSolve)
			solved = g.UpdatePointer(x, y)
		}
	}
	if !solved {
		g.settleRefresh()
	}

	g.perfCollector.StartPhase(telemetry.PhasePoll)
	g.coord.Poll()

	if !g.view.Paused {
		g.perfCollector.StartPhase(telemetry.PhaseDispatch)
		g.coord.RequestPositions()
		if g.headless {
			g.perfCollector.StartPhase(telemetry.PhasePoll)
			g.awaitReports(headlessWait)
		}
	}

	g.tick++
	g.flushTelemetry()
}

// awaitReports blocks until every outstanding request and handshake is
// answered or the timeout passes. Headless runs use it so a tick means one
// particle step.
func (g *Game) awaitReports(timeout time.Duration) {
	if !g.coord.Settle(timeout) {
		g.log.Warn("reports_late",
			"tick", g.tick,
			"in_flight", g.coord.InFlight(),
			"pending", g.coord.Pending(),
		)
	}
}

func (g *Game) setGoalLogged(goal systems.Coord) bool {
	solved, err := g.SetGoal(goal)
	if err != nil {
		g.log.Warn("goal_rejected", "x", goal.X, "y", goal.Y, "error", err)
	}
	return solved
}

// waypointSchedule cycles through goals, holding each for a fixed number of
// ticks.
type waypointSchedule struct {
	goals []systems.Coord
	hold  int64
}

func newWaypointSchedule(goals []systems.Coord, hold int64) *waypointSchedule {
	if hold < 1 {
		hold = 1
	}
	return &waypointSchedule{goals: goals, hold: hold}
}

// at returns the goal for tick, or false when there are no waypoints.
func (s *waypointSchedule) at(tick int64) (systems.Coord, bool) {
	if s == nil || len(s.goals) == 0 {
		return systems.Coord{}, false
	}
	return s.goals[(tick/s.hold)%int64(len(s.goals))], true
}
