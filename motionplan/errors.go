package motionplan

import "github.com/pkg/errors"

// ErrNoFeasiblePath is returned by Plan when no node in the tree is at least MinDist from the
// start. It is an expected outcome of a crowded or short planning round, not a fault.
var ErrNoFeasiblePath = errors.New("no feasible path: no node reached the minimum path length")

// NewPlannerFailedError is returned when the planner cannot even start, such as when the start
// pose itself collides.
func NewPlannerFailedError(reason string) error {
	return errors.Errorf("motion planner failed to find path: %s", reason)
}

func newInvalidOptionError(name string, value interface{}) error {
	return errors.Errorf("invalid planner option %s: %v", name, value)
}
