// Package config defines the structures to configure a sensing scenario: the field and its
// lattice, the hypothesis grid, the planner and the simulated run.
package config

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/gmrfnav/gmrf"
	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/motionplan"
	"go.viam.com/gmrfnav/spatialmath"
)

// A Config describes the configuration of a scenario.
type Config struct {
	ConfigFilePath string `json:"-"`

	Field         FieldConfig        `json:"field"`
	Hypotheses    []HypothesisConfig `json:"hypotheses"`
	NoiseVariance float64            `json:"noise_variance"`
	Regression    RegressionConfig   `json:"regression"`
	Planner       PlannerConfig      `json:"planner"`
	Obstacles     []ObstacleConfig   `json:"obstacles,omitempty"`
	Start         PoseConfig         `json:"start"`
	Simulation    SimulationConfig   `json:"simulation"`
}

// Validate ensures all parts of the config are valid. Every problem found is reported.
func (config *Config) Validate(path string) error {
	var err error
	err = multierr.Append(err, config.Field.Validate(fmt.Sprintf("%s.field", path)))
	if len(config.Hypotheses) == 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "hypotheses"))
	}
	for idx, h := range config.Hypotheses {
		err = multierr.Append(err, h.Validate(fmt.Sprintf("%s.hypotheses.%d", path, idx)))
	}
	if !(config.NoiseVariance > 0) {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.Errorf("noise_variance must be positive, got %v", config.NoiseVariance)))
	}
	err = multierr.Append(err, config.Regression.Validate(fmt.Sprintf("%s.regression", path)))
	err = multierr.Append(err, config.Planner.Validate(fmt.Sprintf("%s.planner", path)))
	for idx, o := range config.Obstacles {
		err = multierr.Append(err, o.Validate(fmt.Sprintf("%s.obstacles.%d", path, idx)))
	}
	if config.Field.Validate("") == nil && !config.Field.Bounds().ContainsPoint(config.Start.Pose().Point) {
		err = multierr.Append(err, utils.NewConfigValidationError(fmt.Sprintf("%s.start", path),
			errors.New("start must lie inside the field")))
	}
	err = multierr.Append(err, config.Simulation.Validate(fmt.Sprintf("%s.simulation", path)))
	return err
}

// HypothesisParams returns the hyperparameters of every configured hypothesis, in order.
func (config *Config) HypothesisParams() ([]gmrf.Params, error) {
	params := make([]gmrf.Params, 0, len(config.Hypotheses))
	for _, h := range config.Hypotheses {
		p, err := h.Params()
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// ObstacleList converts the configured obstacles.
func (config *Config) ObstacleList() ([]spatialmath.SquareObstacle, error) {
	obstacles := make([]spatialmath.SquareObstacle, 0, len(config.Obstacles))
	for _, o := range config.Obstacles {
		obs, err := spatialmath.NewSquareObstacle(o.X, o.Y, o.Side)
		if err != nil {
			return nil, err
		}
		obstacles = append(obstacles, obs)
	}
	return obstacles, nil
}

// PlannerOptions returns planner options for the configured field, obstacles and tunables. The
// start pose, lattice and variance are filled in per planning round.
func (config *Config) PlannerOptions() (*motionplan.PlannerOptions, error) {
	obstacles, err := config.ObstacleList()
	if err != nil {
		return nil, err
	}
	opts := motionplan.NewBasicPlannerOptions()
	opts.Bounds = config.Field.Bounds()
	opts.Obstacles = obstacles
	opts.Seed = config.Simulation.Seed
	config.Planner.apply(opts)
	return opts, nil
}

// FieldConfig is the rectangle being surveyed and the lattice laid over it. Cols and Rows are
// the lattice nodes inside the field; PadCols and PadRows extra nodes are added on every side.
type FieldConfig struct {
	XMin    float64 `json:"x_min"`
	XMax    float64 `json:"x_max"`
	YMin    float64 `json:"y_min"`
	YMax    float64 `json:"y_max"`
	Cols    int     `json:"cols"`
	Rows    int     `json:"rows"`
	PadCols int     `json:"pad_cols"`
	PadRows int     `json:"pad_rows"`
}

// Validate ensures all parts of the config are valid.
func (config *FieldConfig) Validate(path string) error {
	if !(config.XMax > config.XMin) || !(config.YMax > config.YMin) {
		return utils.NewConfigValidationError(path, errors.New("field bounds must have x_max > x_min and y_max > y_min"))
	}
	if config.Cols < 2 {
		return utils.NewConfigValidationFieldRequiredError(path, "cols")
	}
	if config.Rows < 2 {
		return utils.NewConfigValidationFieldRequiredError(path, "rows")
	}
	if config.PadCols < 0 || config.PadRows < 0 {
		return utils.NewConfigValidationError(path, errors.New("padding cannot be negative"))
	}
	if config.Cols+2*config.PadCols < lattice.MinDim || config.Rows+2*config.PadRows < lattice.MinDim {
		return utils.NewConfigValidationError(path,
			errors.Errorf("lattice must be at least %dx%d nodes including padding", lattice.MinDim, lattice.MinDim))
	}
	return nil
}

// Bounds returns the field rectangle.
func (config *FieldConfig) Bounds() r2.Rect {
	return spatialmath.NewBounds(config.XMin, config.XMax, config.YMin, config.YMax)
}

// Lattice builds the padded lattice over the field.
func (config *FieldConfig) Lattice() (*lattice.Lattice, error) {
	return lattice.NewExtended(config.Bounds(), config.Cols, config.Rows, config.PadCols, config.PadRows)
}

// HypothesisConfig is one (kappa, alpha, order) triple. Order is "car1" or "car2".
type HypothesisConfig struct {
	Kappa float64 `json:"kappa"`
	Alpha float64 `json:"alpha"`
	Order string  `json:"order"`
}

// Validate ensures all parts of the config are valid.
func (config *HypothesisConfig) Validate(path string) error {
	if config.Order == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "order")
	}
	if _, err := config.Params(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Params converts the hypothesis to GMRF hyperparameters.
func (config *HypothesisConfig) Params() (gmrf.Params, error) {
	order, err := gmrf.ParseOrder(config.Order)
	if err != nil {
		return gmrf.Params{}, err
	}
	p := gmrf.Params{Kappa: config.Kappa, Alpha: config.Alpha, Order: order}
	if err := p.Validate(); err != nil {
		return gmrf.Params{}, err
	}
	return p, nil
}

// RegressionConfig selects the mean model. P = 0 disables regression; P = 1 estimates a constant
// mean with prior precision PriorPrecision.
type RegressionConfig struct {
	P              int     `json:"p"`
	PriorPrecision float64 `json:"prior_precision"`
}

// Validate ensures all parts of the config are valid.
func (config *RegressionConfig) Validate(path string) error {
	switch config.P {
	case 0:
		return nil
	case 1:
		if !(config.PriorPrecision > 0) {
			return utils.NewConfigValidationError(path, errors.New("prior_precision must be positive"))
		}
		return nil
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("p must be 0 or 1, got %d", config.P))
	}
}

// Design returns the regression design for a lattice of n nodes.
func (config *RegressionConfig) Design(n int) gmrf.Regression {
	if config.P == 0 {
		return gmrf.Regression{}
	}
	return gmrf.ConstantMean(n, config.PriorPrecision)
}

// PlannerConfig holds the planner tunables. Zero values fall back to the planner defaults,
// except BorderPenalty which is used as given.
type PlannerConfig struct {
	MaxIter         int      `json:"max_iter,omitempty"`
	MaxDist         float64  `json:"max_dist,omitempty"`
	MinDist         float64  `json:"min_dist,omitempty"`
	MaxCurvature    float64  `json:"max_curvature,omitempty"`
	RadiusMax       float64  `json:"radius_max,omitempty"`
	PointSeparation float64  `json:"point_separation,omitempty"`
	BorderPenalty   *float64 `json:"border_penalty,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *PlannerConfig) Validate(path string) error {
	var err error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"max_iter", float64(config.MaxIter)},
		{"max_dist", config.MaxDist},
		{"min_dist", config.MinDist},
		{"max_curvature", config.MaxCurvature},
		{"radius_max", config.RadiusMax},
		{"point_separation", config.PointSeparation},
	} {
		if field.value < 0 {
			err = multierr.Append(err, utils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative", field.name)))
		}
	}
	// compare what the planner will actually use, defaults included
	effective := motionplan.NewBasicPlannerOptions()
	config.apply(effective)
	if effective.MinDist > effective.MaxDist {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.Errorf("min_dist (%v) cannot exceed max_dist (%v)", effective.MinDist, effective.MaxDist)))
	}
	return err
}

func (config *PlannerConfig) apply(opts *motionplan.PlannerOptions) {
	if config.MaxIter > 0 {
		opts.MaxIter = config.MaxIter
	}
	if config.MaxDist > 0 {
		opts.MaxDist = config.MaxDist
	}
	if config.MinDist > 0 {
		opts.MinDist = config.MinDist
	}
	if config.MaxCurvature > 0 {
		opts.MaxCurvature = config.MaxCurvature
	}
	if config.RadiusMax > 0 {
		opts.RadiusMax = config.RadiusMax
	}
	if config.PointSeparation > 0 {
		opts.PointSeparation = config.PointSeparation
	}
	if config.BorderPenalty != nil {
		opts.BorderPenalty = *config.BorderPenalty
	}
}

// ObstacleConfig is a square obstacle centered at (X, Y).
type ObstacleConfig struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Side float64 `json:"side"`
}

// Validate ensures all parts of the config are valid.
func (config *ObstacleConfig) Validate(path string) error {
	if !(config.Side > 0) {
		return utils.NewConfigValidationFieldRequiredError(path, "side")
	}
	return nil
}

// PoseConfig is a pose with heading Theta in radians.
type PoseConfig struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Pose converts the config to a pose.
func (config PoseConfig) Pose() spatialmath.Pose {
	return spatialmath.NewPose(config.X, config.Y, spatialmath.WrapHeading(config.Theta))
}

// SimulationConfig drives a synthetic run: the ground-truth GMRF, the random seed, how many
// steps to take and how often along a planned path to take a measurement.
type SimulationConfig struct {
	Truth      HypothesisConfig `json:"truth"`
	TruthMean  float64          `json:"truth_mean"`
	Seed       uint64           `json:"seed"`
	SenseEvery int              `json:"sense_every"`
	Steps      int              `json:"steps"`
}

// Validate ensures all parts of the config are valid.
func (config *SimulationConfig) Validate(path string) error {
	var err error
	err = multierr.Append(err, config.Truth.Validate(fmt.Sprintf("%s.truth", path)))
	if config.SenseEvery < 1 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "sense_every"))
	}
	if config.Steps < 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.New("steps cannot be negative")))
	}
	return err
}
