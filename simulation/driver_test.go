package simulation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/gmrfnav/config"
	"go.viam.com/gmrfnav/gmrf"
	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/motionplan"
	"go.viam.com/gmrfnav/spatialmath"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Field = config.FieldConfig{XMin: 0, XMax: 4, YMin: 0, YMax: 4, Cols: 5, Rows: 5, PadCols: 1, PadRows: 1}
	cfg.Hypotheses = cfg.Hypotheses[3:5]
	cfg.Planner.MaxIter = 40
	cfg.Planner.MaxDist = 8
	cfg.Planner.MinDist = 1
	cfg.Planner.PointSeparation = 0.25
	cfg.Obstacles = nil
	cfg.Start = config.PoseConfig{X: 1, Y: 1}
	cfg.Simulation.Steps = 2
	return cfg
}

type recordingObserver struct {
	results []*StepResult
	err     error
}

func (o *recordingObserver) Observe(ctx context.Context, result *StepResult) error {
	o.results = append(o.results, result)
	return o.err
}

type stubPlanner struct {
	plan *motionplan.Plan
	err  error
}

func (s *stubPlanner) Plan(ctx context.Context) (*motionplan.Plan, error) {
	return s.plan, s.err
}

func stubConstructor(plan *motionplan.Plan, err error) motionplan.PlannerConstructor {
	return func(opts *motionplan.PlannerOptions, logger golog.Logger) (motionplan.MotionPlanner, error) {
		return &stubPlanner{plan: plan, err: err}, nil
	}
}

// straightPlan drives along +x from start in n steps of 0.25.
func straightPlan(start spatialmath.Pose, n int) *motionplan.Plan {
	traj := make([]spatialmath.Pose, 0, n+1)
	for i := 0; i <= n; i++ {
		traj = append(traj, spatialmath.NewPose(start.X()+0.25*float64(i), start.Y(), 0))
	}
	return &motionplan.Plan{
		Waypoints:  []spatialmath.Pose{start, traj[n]},
		Trajectory: traj,
		Controls:   []motionplan.Control{{Curvature: 0, Length: 0.25 * float64(n)}},
		Length:     0.25 * float64(n),
		Reward:     1,
	}
}

func newTestDriver(t *testing.T, constructor motionplan.PlannerConstructor, observers ...Observer) (*Driver, *clock.Mock) {
	t.Helper()
	logger := golog.NewTestLogger(t)
	cfg := smallConfig()
	l, err := cfg.Field.Lattice()
	test.That(t, err, test.ShouldBeNil)
	params, err := cfg.HypothesisParams()
	test.That(t, err, test.ShouldBeNil)
	est, err := gmrf.NewEstimator(l, params, cfg.Regression.Design(l.Size()), logger)
	test.That(t, err, test.ShouldBeNil)
	opts, err := cfg.PlannerOptions()
	test.That(t, err, test.ShouldBeNil)

	mock := clock.NewMock()
	d, err := NewDriver(DriverConfig{
		Estimator:          est,
		Truth:              func(x, y float64) float64 { return x + y },
		NoiseVariance:      cfg.NoiseVariance,
		SenseEvery:         5,
		Start:              cfg.Start.Pose(),
		Planner:            opts,
		PlannerConstructor: constructor,
		Seed:               3,
		Clock:              mock,
		Observers:          observers,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	return d, mock
}

func TestDriverRunFromConfig(t *testing.T) {
	logger := golog.NewTestLogger(t)
	obs := &recordingObserver{}
	mock := clock.NewMock()
	d, err := NewDriverFromConfig(smallConfig(), mock, logger, obs)
	test.That(t, err, test.ShouldBeNil)

	results, err := d.Run(context.Background(), 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(results), test.ShouldEqual, 2)
	test.That(t, len(obs.results), test.ShouldEqual, 2)

	first := results[0]
	test.That(t, first.Step, test.ShouldEqual, 1)
	test.That(t, first.RunID, test.ShouldEqual, d.RunID())
	test.That(t, first.Applied, test.ShouldEqual, 1)
	test.That(t, first.Observations, test.ShouldEqual, 1)
	test.That(t, first.Time, test.ShouldEqual, mock.Now())
	test.That(t, floats.Sum(first.Prediction.Weights), test.ShouldAlmostEqual, 1)
	for _, res := range results {
		test.That(t, res.NoPath, test.ShouldEqual, res.Plan == nil)
		if res.Plan != nil {
			test.That(t, res.Pose, test.ShouldResemble, res.Plan.End())
		}
	}
	test.That(t, results[1].Step, test.ShouldEqual, 2)
	test.That(t, results[1].Observations, test.ShouldBeGreaterThanOrEqualTo, 1)
	test.That(t, d.Estimator().Observations(), test.ShouldEqual, results[1].Observations)
}

func TestDriverFollowsPlan(t *testing.T) {
	start := spatialmath.NewPose(1, 1, 0)
	plan := straightPlan(start, 10)
	obs := &recordingObserver{}
	d, mock := newTestDriver(t, stubConstructor(plan, nil), obs)

	res, err := d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Plan, test.ShouldEqual, plan)
	test.That(t, res.Sensed, test.ShouldResemble, []r2.Point{start.Point})
	test.That(t, d.Pose(), test.ShouldResemble, plan.End())
	test.That(t, res.Elapsed, test.ShouldEqual, time.Duration(0))

	mock.Add(1)
	res, err = d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldEqual, 2)
	test.That(t, res.Observations, test.ShouldEqual, 3)
	test.That(t, res.Sensed, test.ShouldResemble, []r2.Point{plan.Trajectory[5].Point, plan.Trajectory[10].Point})
	test.That(t, res.Time, test.ShouldEqual, mock.Now())
	test.That(t, len(obs.results), test.ShouldEqual, 2)
}

func TestFailedStepDoesNotReapplyObservations(t *testing.T) {
	start := spatialmath.NewPose(1, 1, 0)
	plan := straightPlan(start, 10)
	d, _ := newTestDriver(t, stubConstructor(plan, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	d.truth = func(x, y float64) float64 {
		calls++
		if calls == 3 {
			cancel()
		}
		return x + y
	}

	_, err := d.Step(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Estimator().Observations(), test.ShouldEqual, 1)

	// second of the two queued points fails
	_, err = d.Step(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, d.Estimator().Observations(), test.ShouldEqual, 2)

	res, err := d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldEqual, 1)
	test.That(t, res.Sensed, test.ShouldResemble, []r2.Point{plan.Trajectory[10].Point})
	test.That(t, res.Observations, test.ShouldEqual, 3)
}

func TestDriverWithoutPath(t *testing.T) {
	d, _ := newTestDriver(t, stubConstructor(nil, motionplan.ErrNoFeasiblePath))
	logger, logs := golog.NewObservedTestLogger(t)
	d.logger = logger
	start := d.Pose()

	res, err := d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NoPath, test.ShouldBeTrue)
	test.That(t, res.Plan, test.ShouldBeNil)
	test.That(t, res.Pose, test.ShouldResemble, start)
	test.That(t, logs.FilterMessageSnippet("no feasible path").Len(), test.ShouldEqual, 1)

	res, err = d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldEqual, 1)
	test.That(t, res.Observations, test.ShouldEqual, 2)
}

func TestDriverErrors(t *testing.T) {
	t.Run("planner fault", func(t *testing.T) {
		d, _ := newTestDriver(t, stubConstructor(nil, errors.New("boom")))
		_, err := d.Step(context.Background())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
	})

	t.Run("observer error", func(t *testing.T) {
		obs := &recordingObserver{err: errors.New("disk full")}
		d, _ := newTestDriver(t, stubConstructor(straightPlan(spatialmath.NewPose(1, 1, 0), 4), nil), obs)
		results, err := d.Run(context.Background(), 3)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, len(results), test.ShouldEqual, 1)
	})

	t.Run("cancelled", func(t *testing.T) {
		d, _ := newTestDriver(t, stubConstructor(nil, motionplan.ErrNoFeasiblePath))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		results, err := d.Run(ctx, 2)
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
		test.That(t, results, test.ShouldBeEmpty)
	})

	t.Run("missing pieces", func(t *testing.T) {
		_, err := NewDriver(DriverConfig{}, golog.NewTestLogger(t))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "estimator")
		test.That(t, err.Error(), test.ShouldContainSubstring, "noise variance")
	})
}

func TestSensingSkipsUndefinedTruth(t *testing.T) {
	d, _ := newTestDriver(t, stubConstructor(nil, motionplan.ErrNoFeasiblePath))
	d.truth = func(x, y float64) float64 { return math.NaN() }
	res, err := d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldEqual, 0)
	test.That(t, res.Skipped, test.ShouldEqual, 1)
	test.That(t, res.Observations, test.ShouldEqual, 0)

	// defined truth but off the estimator's lattice
	d.truth = func(x, y float64) float64 { return 1 }
	d.pending = []r2.Point{{X: 100, Y: 100}}
	res, err = d.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Skipped, test.ShouldEqual, 1)
}

func TestSensingPoints(t *testing.T) {
	d := &Driver{senseEvery: 3}
	traj := straightPlan(spatialmath.NewPose(0, 0, 0), 7).Trajectory
	test.That(t, d.sensingPoints(traj), test.ShouldResemble,
		[]r2.Point{traj[3].Point, traj[6].Point, traj[7].Point})
	test.That(t, d.sensingPoints(traj[:1]), test.ShouldBeEmpty)
	test.That(t, d.sensingPoints(traj[:7]), test.ShouldResemble, []r2.Point{traj[3].Point, traj[6].Point})
}

func TestGMRFTruth(t *testing.T) {
	l, err := lattice.New(6, 6, 1, 1, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	params := gmrf.Params{Kappa: 1, Alpha: 0.1, Order: gmrf.CAR1}

	f, values, err := NewGMRFTruth(l, params, 10, 42)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(values), test.ShouldEqual, l.Size())
	for i := 0; i < l.Size(); i++ {
		p := l.Position(i)
		test.That(t, f(p.X, p.Y), test.ShouldAlmostEqual, values[i])
	}
	test.That(t, math.IsNaN(f(-1, 2)), test.ShouldBeTrue)

	_, again, err := NewGMRFTruth(l, params, 10, 42)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldResemble, values)

	_, _, err = NewGMRFTruth(l, gmrf.Params{Kappa: -1, Alpha: 1, Order: gmrf.CAR1}, 0, 1)
	test.That(t, errors.Is(err, gmrf.ErrInvalidParameter), test.ShouldBeTrue)
}
