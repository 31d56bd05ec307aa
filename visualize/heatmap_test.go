package visualize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/gmrfnav/gmrf"
	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/motionplan"
	"go.viam.com/gmrfnav/simulation"
	"go.viam.com/gmrfnav/spatialmath"
)

func TestHeatmapObserver(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()

	l, err := lattice.New(5, 6, 1, 1, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	est, err := gmrf.NewEstimator(l, []gmrf.Params{{Kappa: 1, Alpha: 0.1, Order: gmrf.CAR1}}, gmrf.Regression{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.UpdateAt(ctx, 2, 2, 1, 0.04), test.ShouldBeNil)
	pred, err := est.Predict(ctx)
	test.That(t, err, test.ShouldBeNil)

	obstacle, err := spatialmath.NewSquareObstacle(4, 3, 1)
	test.That(t, err, test.ShouldBeNil)

	dir := filepath.Join(t.TempDir(), "plots")
	obs, err := NewHeatmapObserver(dir, logger)
	test.That(t, err, test.ShouldBeNil)

	result := &simulation.StepResult{
		Step:       3,
		Prediction: pred,
		Sensed:     []r2.Point{{X: 2, Y: 2}},
		Obstacles:  []spatialmath.SquareObstacle{obstacle},
		Plan: &motionplan.Plan{
			Waypoints:  []spatialmath.Pose{spatialmath.NewPose(2, 2, 0), spatialmath.NewPose(3, 2, 0)},
			Trajectory: []spatialmath.Pose{spatialmath.NewPose(2, 2, 0), spatialmath.NewPose(2.5, 2, 0), spatialmath.NewPose(3, 2, 0)},
			Length:     1,
		},
	}
	test.That(t, obs.Observe(ctx, result), test.ShouldBeNil)

	info, err := os.Stat(filepath.Join(dir, "step_003.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	test.That(t, obs.Observe(ctx, &simulation.StepResult{Step: 4}), test.ShouldNotBeNil)
}

func TestFlatFieldPlot(t *testing.T) {
	l, err := lattice.New(4, 4, 1, 1, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	est, err := gmrf.NewEstimator(l, []gmrf.Params{{Kappa: 1, Alpha: 0.1, Order: gmrf.CAR1}}, gmrf.Regression{}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	pred, err := est.Predict(context.Background())
	test.That(t, err, test.ShouldBeNil)

	obs, err := NewHeatmapObserver(t.TempDir(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs.Observe(context.Background(), &simulation.StepResult{Step: 1, Prediction: pred}), test.ShouldBeNil)
}

func TestVarianceGrid(t *testing.T) {
	l, err := lattice.New(3, 4, 0.5, 2, 1, -1)
	test.That(t, err, test.ShouldBeNil)
	values := make([]float64, l.Size())
	for i := range values {
		values[i] = float64(i)
	}
	g := varianceGrid{lattice: l, values: values}
	c, r := g.Dims()
	test.That(t, c, test.ShouldEqual, 4)
	test.That(t, r, test.ShouldEqual, 3)
	test.That(t, g.Z(1, 2), test.ShouldEqual, float64(l.Index(2, 1)))
	test.That(t, g.X(3), test.ShouldEqual, 2.5)
	test.That(t, g.Y(2), test.ShouldEqual, 3.)
}
