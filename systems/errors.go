package systems

import "fmt"

// ConfigError reports an invalid construction parameter. It is fatal to the
// object being built.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GoalNotFoundError reports a solve against a goal that is not a populated cell.
// The grid is left as it was before the attempt.
type GoalNotFoundError struct {
	Goal Coord
}

func (e *GoalNotFoundError) Error() string {
	return fmt.Sprintf("goal (%d,%d) is not a populated cell", e.Goal.X, e.Goal.Y)
}
