package motionplan

import (
	"github.com/golang/geo/r2"
	"go.uber.org/multierr"

	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/spatialmath"
)

// default values for planning options.
const (
	// number of samples drawn per planning call.
	defaultMaxIter = 30

	// longest path, measured from the start, the tree may grow.
	defaultMaxDist = 25.

	// shortest path that may be returned.
	defaultMinDist = 3.

	// inverse of the Dubins turning radius.
	defaultMaxCurvature = 1.

	// cap and scale of the PRM* connection radius.
	defaultRadiusMax   = 5.
	defaultRadiusGamma = 20.

	// weight of the squared heading difference in the pose metric.
	defaultHeadingWeight = 3.

	// reward of a path sample outside the configuration space or the lattice.
	defaultBorderPenalty = -2.

	// arc length between consecutive samples of a steered path.
	defaultPointSeparation = 0.1
)

// PlannerOptions configures one planning round. Variance is the predictive variance of the
// lattice nodes; entries past Lattice.Size() are ignored.
type PlannerOptions struct {
	Start     spatialmath.Pose
	Bounds    r2.Rect
	Obstacles []spatialmath.SquareObstacle

	Lattice  *lattice.Lattice
	Variance []float64

	MaxIter         int
	MaxDist         float64
	MinDist         float64
	MaxCurvature    float64
	RadiusMax       float64
	RadiusGamma     float64
	HeadingWeight   float64
	BorderPenalty   float64
	PointSeparation float64

	// Steerer connects poses. A nil Steerer means Dubins curves with radius 1/MaxCurvature.
	Steerer Steerer

	Seed uint64
}

// NewBasicPlannerOptions returns options with every tunable set to its default. The caller still
// supplies the start, bounds, lattice and variance.
func NewBasicPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		MaxIter:         defaultMaxIter,
		MaxDist:         defaultMaxDist,
		MinDist:         defaultMinDist,
		MaxCurvature:    defaultMaxCurvature,
		RadiusMax:       defaultRadiusMax,
		RadiusGamma:     defaultRadiusGamma,
		HeadingWeight:   defaultHeadingWeight,
		BorderPenalty:   defaultBorderPenalty,
		PointSeparation: defaultPointSeparation,
	}
}

func (opts *PlannerOptions) validate() error {
	var err error
	if opts.Lattice == nil {
		err = multierr.Append(err, newInvalidOptionError("Lattice", nil))
	} else if len(opts.Variance) < opts.Lattice.Size() {
		err = multierr.Append(err, newInvalidOptionError("Variance length", len(opts.Variance)))
	}
	if opts.Bounds.IsEmpty() || opts.Bounds.X.Length() <= 0 || opts.Bounds.Y.Length() <= 0 {
		err = multierr.Append(err, newInvalidOptionError("Bounds", opts.Bounds))
	}
	if opts.MaxIter < 0 {
		err = multierr.Append(err, newInvalidOptionError("MaxIter", opts.MaxIter))
	}
	if !(opts.MaxDist > 0) {
		err = multierr.Append(err, newInvalidOptionError("MaxDist", opts.MaxDist))
	}
	if opts.MinDist < 0 || opts.MinDist > opts.MaxDist {
		err = multierr.Append(err, newInvalidOptionError("MinDist", opts.MinDist))
	}
	if opts.Steerer == nil {
		if !(opts.MaxCurvature > 0) {
			err = multierr.Append(err, newInvalidOptionError("MaxCurvature", opts.MaxCurvature))
		}
		if !(opts.PointSeparation > 0) {
			err = multierr.Append(err, newInvalidOptionError("PointSeparation", opts.PointSeparation))
		}
	}
	if opts.RadiusMax < 0 {
		err = multierr.Append(err, newInvalidOptionError("RadiusMax", opts.RadiusMax))
	}
	if opts.RadiusGamma < 0 {
		err = multierr.Append(err, newInvalidOptionError("RadiusGamma", opts.RadiusGamma))
	}
	if opts.HeadingWeight < 0 {
		err = multierr.Append(err, newInvalidOptionError("HeadingWeight", opts.HeadingWeight))
	}
	return err
}
