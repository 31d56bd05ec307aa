package motionplan

import (
	"go.viam.com/gmrfnav/spatialmath"
)

// Steerer connects two poses with a kinematically feasible path.
type Steerer interface {
	Steer(from, to spatialmath.Pose) (*Steering, error)
}

// Control is one constant-curvature piece of a path. Positive curvature turns left.
type Control struct {
	Curvature float64
	Length    float64
}

// Steering is a path returned by a Steerer. Poses runs from the start pose to the goal pose
// inclusive; a zero-length path holds the single start pose.
type Steering struct {
	Poses    []spatialmath.Pose
	Length   float64
	Controls []Control
}
