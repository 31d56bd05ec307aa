// Package motionplan plans informative paths for a Dubins vehicle: a PRM*-style roadmap over
// Dubins curves whose edges are scored by the predictive variance they pass through.
package motionplan

import (
	"context"

	"github.com/edaniels/golog"
)

// MotionPlanner runs one planning round over the options it was built with.
type MotionPlanner interface {
	Plan(ctx context.Context) (*Plan, error)
}

// PlannerConstructor builds a MotionPlanner for one planning round.
type PlannerConstructor func(opts *PlannerOptions, logger golog.Logger) (MotionPlanner, error)

// NewMotionPlanner is the default PlannerConstructor.
func NewMotionPlanner(opts *PlannerOptions, logger golog.Logger) (MotionPlanner, error) {
	return NewPRMStarDubinsPlanner(opts, logger)
}
