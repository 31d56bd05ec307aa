package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/gmrfnav/gmrf"
	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/motionplan"
	"go.viam.com/gmrfnav/spatialmath"
)

// Observer receives the result of every step. Observers run in registration order on the
// driver's goroutine.
type Observer interface {
	Observe(ctx context.Context, result *StepResult) error
}

// StepResult is what one step did. Plan is nil when NoPath is set.
type StepResult struct {
	RunID   uuid.UUID
	Step    int
	Time    time.Time
	Elapsed time.Duration

	Applied      int
	Skipped      int
	Observations int
	Sensed       []r2.Point

	Prediction *gmrf.Prediction
	Plan       *motionplan.Plan
	NoPath     bool
	Pose       spatialmath.Pose

	Obstacles []spatialmath.SquareObstacle
}

// DriverConfig wires a Driver. Planner is a template: its start pose, lattice and variance are
// replaced every step.
type DriverConfig struct {
	Estimator     *gmrf.Estimator
	Truth         FieldFunc
	NoiseVariance float64
	SenseEvery    int
	Start         spatialmath.Pose

	Planner            *motionplan.PlannerOptions
	PlannerConstructor motionplan.PlannerConstructor

	Seed      uint64
	Clock     clock.Clock
	Observers []Observer
}

// Driver runs one step at a time: it senses the pending locations, updates the estimator,
// predicts, plans from the current pose and moves to the end of the plan. Measurements are
// queued every SenseEvery samples along the path just driven.
type Driver struct {
	runID         uuid.UUID
	estimator     *gmrf.Estimator
	truth         FieldFunc
	noiseVariance float64
	senseEvery    int

	planner    motionplan.PlannerOptions
	newPlanner motionplan.PlannerConstructor

	pose    spatialmath.Pose
	pending []r2.Point
	step    int

	rng       *rand.Rand
	clock     clock.Clock
	observers []Observer
	logger    golog.Logger
}

// NewDriver returns a driver that will first sense at the start pose.
func NewDriver(cfg DriverConfig, logger golog.Logger) (*Driver, error) {
	var err error
	if cfg.Estimator == nil {
		err = multierr.Append(err, errors.New("driver needs an estimator"))
	}
	if cfg.Truth == nil {
		err = multierr.Append(err, errors.New("driver needs a ground-truth field"))
	}
	if cfg.Planner == nil {
		err = multierr.Append(err, errors.New("driver needs planner options"))
	}
	if !(cfg.NoiseVariance > 0) {
		err = multierr.Append(err, errors.Errorf("noise variance must be positive, got %v", cfg.NoiseVariance))
	}
	if cfg.SenseEvery < 1 {
		err = multierr.Append(err, errors.Errorf("sense every must be at least 1, got %d", cfg.SenseEvery))
	}
	if err != nil {
		return nil, err
	}

	newPlanner := cfg.PlannerConstructor
	if newPlanner == nil {
		newPlanner = motionplan.NewMotionPlanner
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	//nolint:gosec
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+0x5eed))
	d := &Driver{
		runID:         uuid.New(),
		estimator:     cfg.Estimator,
		truth:         cfg.Truth,
		noiseVariance: cfg.NoiseVariance,
		senseEvery:    cfg.SenseEvery,
		planner:       *cfg.Planner,
		newPlanner:    newPlanner,
		pose:          cfg.Start,
		pending:       []r2.Point{cfg.Start.Point},
		rng:           rng,
		clock:         clk,
		observers:     cfg.Observers,
		logger:        logger,
	}
	logger.Infow("simulation driver created", "run_id", d.runID.String(), "start", cfg.Start.String())
	return d, nil
}

// RunID identifies this driver's run in logs and results.
func (d *Driver) RunID() uuid.UUID {
	return d.runID
}

// Pose is the vehicle's current pose.
func (d *Driver) Pose() spatialmath.Pose {
	return d.pose
}

// Estimator returns the estimator the driver updates.
func (d *Driver) Estimator() *gmrf.Estimator {
	return d.estimator
}

// Step runs one sense, update, plan and move cycle. Not finding a path is not an error: the
// result has NoPath set, the vehicle stays put and senses its current location again next step.
func (d *Driver) Step(ctx context.Context) (*StepResult, error) {
	started := d.clock.Now()
	d.step++
	result := &StepResult{
		RunID:     d.runID,
		Step:      d.step,
		Time:      started,
		Obstacles: d.planner.Obstacles,
	}

	// a point leaves the queue once handled so a failed step never applies it twice
	for len(d.pending) > 0 {
		p := d.pending[0]
		applied, err := d.sense(ctx, p)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", d.step)
		}
		d.pending = d.pending[1:]
		if applied {
			result.Applied++
			result.Sensed = append(result.Sensed, p)
		} else {
			result.Skipped++
		}
	}
	result.Observations = d.estimator.Observations()

	pred, err := d.estimator.Predict(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "step %d", d.step)
	}
	result.Prediction = pred

	plan, err := d.plan(ctx, pred)
	switch {
	case errors.Is(err, motionplan.ErrNoFeasiblePath):
		result.NoPath = true
		d.pending = []r2.Point{d.pose.Point}
		d.logger.Infow("no feasible path, staying put", "run_id", d.runID.String(), "step", d.step)
	case err != nil:
		return nil, errors.Wrapf(err, "step %d", d.step)
	default:
		result.Plan = plan
		d.pose = plan.End()
		d.pending = d.sensingPoints(plan.Trajectory)
	}
	result.Pose = d.pose
	result.Elapsed = d.clock.Since(started)

	d.logger.Debugw("simulation step",
		"run_id", d.runID.String(),
		"step", d.step,
		"applied", result.Applied,
		"skipped", result.Skipped,
		"weights", pred.Weights,
		"elapsed", result.Elapsed,
	)

	var observeErr error
	for _, o := range d.observers {
		observeErr = multierr.Append(observeErr, o.Observe(ctx, result))
	}
	return result, observeErr
}

// Run takes up to steps steps and returns the results of those that completed.
func (d *Driver) Run(ctx context.Context, steps int) ([]*StepResult, error) {
	results := make([]*StepResult, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := d.Step(ctx)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// sense measures the truth at p with Gaussian noise and applies it. Locations off the truth or
// the estimator's lattice are skipped.
func (d *Driver) sense(ctx context.Context, p r2.Point) (bool, error) {
	value := d.truth(p.X, p.Y)
	if math.IsNaN(value) {
		return false, nil
	}
	value += d.rng.NormFloat64() * math.Sqrt(d.noiseVariance)
	err := d.estimator.UpdateAt(ctx, p.X, p.Y, value, d.noiseVariance)
	if errors.Is(err, lattice.ErrOutOfRange) {
		return false, nil
	}
	return err == nil, err
}

func (d *Driver) plan(ctx context.Context, pred *gmrf.Prediction) (*motionplan.Plan, error) {
	opts := d.planner
	opts.Start = d.pose
	opts.Lattice = pred.Lattice()
	opts.Variance = pred.FieldVariance()
	opts.Seed = d.planner.Seed + uint64(d.step)

	mp, err := d.newPlanner(&opts, d.logger)
	if err != nil {
		return nil, err
	}
	return mp.Plan(ctx)
}

// sensingPoints picks every senseEvery-th sample after the start of traj, always including the
// final one.
func (d *Driver) sensingPoints(traj []spatialmath.Pose) []r2.Point {
	var points []r2.Point
	last := len(traj) - 1
	for i := d.senseEvery; i <= last; i += d.senseEvery {
		points = append(points, traj[i].Point)
	}
	if last > 0 && last%d.senseEvery != 0 {
		points = append(points, traj[last].Point)
	}
	return points
}
