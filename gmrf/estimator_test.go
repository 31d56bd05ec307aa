package gmrf

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/gmrfnav/lattice"
)

func TestNewEstimatorRejects(t *testing.T) {
	logger := golog.NewTestLogger(t)
	l := newTestLattice(t, 5, 5)

	_, err := NewEstimator(l, nil, Regression{}, logger)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewEstimator(l, []Params{{Kappa: 1, Alpha: -1, Order: CAR1}}, Regression{}, logger)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewEstimator(nil, []Params{{Kappa: 1, Alpha: 1, Order: CAR1}}, Regression{}, logger)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewEstimator(l, []Params{{Kappa: 1, Alpha: 1, Order: CAR1}}, ConstantMean(24, 1), logger)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewEstimator(l, []Params{{Kappa: 1, Alpha: 1, Order: CAR1}}, ConstantMean(25, -1), logger)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
}

func TestSingleObservationScenario(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	l := newTestLattice(t, 5, 5)
	center := l.Index(2, 2)
	pos := l.Position(center)

	for name, design := range map[string]Regression{
		"no regression": {},
		"constant mean": ConstantMean(l.Size(), DefaultPriorPrecision),
	} {
		t.Run(name, func(t *testing.T) {
			e, err := NewEstimator(l, []Params{{Kappa: 1, Alpha: 0.01, Order: CAR1}}, design, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, e.Dim(), test.ShouldEqual, l.Size()+design.P())

			prior, err := e.Predict(ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, prior.Mean[center], test.ShouldAlmostEqual, 0)

			test.That(t, e.UpdateAt(ctx, pos.X, pos.Y, 10, 0.04), test.ShouldBeNil)
			test.That(t, e.Observations(), test.ShouldEqual, 1)

			post, err := e.Predict(ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, post.Mean[center], test.ShouldBeGreaterThan, prior.Mean[center])
			test.That(t, math.Abs(post.Mean[center]-10), test.ShouldBeLessThan, math.Abs(prior.Mean[center]-10))
			test.That(t, post.Mean[center], test.ShouldBeGreaterThan, 9)
			test.That(t, post.Variance[center], test.ShouldBeLessThan, prior.Variance[center])
			test.That(t, post.Variance[center], test.ShouldBeGreaterThan, 0)

			mean, variance, err := post.At(pos.X, pos.Y)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, mean, test.ShouldAlmostEqual, post.Mean[center])
			test.That(t, variance, test.ShouldAlmostEqual, post.Variance[center])
			test.That(t, len(post.FieldVariance()), test.ShouldEqual, l.Size())
			test.That(t, len(post.FieldMean()), test.ShouldEqual, l.Size())
		})
	}
}

type testObservation struct {
	x, y, value float64
}

func TestUpdateIsOrderIndependent(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	l, err := lattice.New(5, 6, 0.5, 0.5, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	params := []Params{
		{Kappa: 1, Alpha: 0.01, Order: CAR1},
		{Kappa: 0.25, Alpha: 0.04, Order: CAR2},
	}
	obs := []testObservation{
		{0.3, 0.4, 1.5},
		{1.9, 1.1, -0.5},
		{2.2, 0.1, 3},
		{0.3, 0.4, 1.2},
	}

	run := func(order []int) *Estimator {
		e, err := NewEstimator(l, params, ConstantMean(l.Size(), DefaultPriorPrecision), logger)
		test.That(t, err, test.ShouldBeNil)
		for _, i := range order {
			test.That(t, e.UpdateAt(ctx, obs[i].x, obs[i].y, obs[i].value, 0.04), test.ShouldBeNil)
		}
		return e
	}
	a := run([]int{0, 1, 2, 3})
	b := run([]int{3, 2, 0, 1})

	test.That(t, floats.EqualApprox(a.b.RawVector().Data, b.b.RawVector().Data, 1e-9), test.ShouldBeTrue)
	test.That(t, a.c, test.ShouldAlmostEqual, b.c, 1e-9)
	for h := range params {
		test.That(t, mat.EqualApprox(a.hyps[h].qt, b.hyps[h].qt, 1e-9), test.ShouldBeTrue)
		test.That(t, a.hyps[h].g, test.ShouldAlmostEqual, b.hyps[h].g, 1e-8)
		test.That(t, floats.EqualApprox(a.hyps[h].diagInv, b.hyps[h].diagInv, 1e-8), test.ShouldBeTrue)
	}
}

func TestCachedInverseDiagonal(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	l := newTestLattice(t, 4, 5)
	e, err := NewEstimator(l, []Params{{Kappa: 0.5, Alpha: 0.1, Order: CAR2}}, ConstantMean(l.Size(), 1e-2), logger)
	test.That(t, err, test.ShouldBeNil)

	for _, o := range []testObservation{{0.5, 0.5, 2}, {3.2, 2.7, -1}, {1, 1, 0.3}} {
		test.That(t, e.UpdateAt(ctx, o.x, o.y, o.value, 0.1), test.ShouldBeNil)
	}

	hyp := e.hyps[0]
	var chol mat.Cholesky
	test.That(t, chol.Factorize(hyp.qt), test.ShouldBeTrue)
	var inv mat.SymDense
	test.That(t, chol.InverseTo(&inv), test.ShouldBeNil)
	for i := range hyp.diagInv {
		test.That(t, hyp.diagInv[i], test.ShouldAlmostEqual, inv.At(i, i), 1e-6)
	}
}

func TestPredictIsIdempotent(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	l := newTestLattice(t, 5, 5)
	e, err := NewEstimator(l, []Params{
		{Kappa: 1, Alpha: 0.01, Order: CAR1},
		{Kappa: 1, Alpha: 0.1, Order: CAR1},
		{Kappa: 0.25, Alpha: 0.04, Order: CAR2},
	}, ConstantMean(l.Size(), DefaultPriorPrecision), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.UpdateAt(ctx, 1.5, 2.5, 4, 0.04), test.ShouldBeNil)
	test.That(t, e.UpdateAt(ctx, 3.2, 0.7, 6, 0.04), test.ShouldBeNil)

	first, err := e.Predict(ctx)
	test.That(t, err, test.ShouldBeNil)
	second, err := e.Predict(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.Mean, test.ShouldResemble, first.Mean)
	test.That(t, second.Variance, test.ShouldResemble, first.Variance)
	test.That(t, second.Weights, test.ShouldResemble, first.Weights)
	test.That(t, floats.Sum(first.Weights), test.ShouldAlmostEqual, 1)
	for _, v := range first.Variance {
		test.That(t, v, test.ShouldBeGreaterThan, 0)
	}
	test.That(t, len(e.Hypotheses()), test.ShouldEqual, 3)
	for _, h := range e.Hypotheses() {
		test.That(t, h.Prior(), test.ShouldAlmostEqual, 1./3)
		test.That(t, h.LogDetTerm(), test.ShouldBeLessThan, 0)
	}
}

func TestPosteriorWeights(t *testing.T) {
	priors := []float64{0.25, 0.25, 0.25, 0.25}

	w := PosteriorWeights([]float64{0, 0, 0, 0}, priors)
	for _, v := range w {
		test.That(t, v, test.ShouldAlmostEqual, 0.25)
	}

	w = PosteriorWeights([]float64{1e6, 0, -1e6, 1e6 - math.Log(3)}, priors)
	test.That(t, floats.Sum(w), test.ShouldAlmostEqual, 1)
	test.That(t, w[0], test.ShouldAlmostEqual, 0.75)
	test.That(t, w[3], test.ShouldAlmostEqual, 0.25)
	test.That(t, w[2], test.ShouldEqual, 0.)

	w = PosteriorWeights([]float64{-5e5, -5e5 - 1}, []float64{0.5, 0.5})
	test.That(t, floats.Sum(w), test.ShouldAlmostEqual, 1)
	test.That(t, w[0], test.ShouldAlmostEqual, 1/(1+math.Exp(-1)))
	for _, v := range w {
		test.That(t, math.IsNaN(v), test.ShouldBeFalse)
	}
}

func TestUpdateFailures(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()
	l := newTestLattice(t, 4, 4)
	e, err := NewEstimator(l, []Params{
		{Kappa: 1, Alpha: 0.01, Order: CAR1},
		{Kappa: 1, Alpha: 0.5, Order: CAR1},
	}, Regression{}, logger)
	test.That(t, err, test.ShouldBeNil)

	err = e.UpdateAt(ctx, 1, 1, 1, 0)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	err = e.UpdateAt(ctx, 10, 1, 1, 0.04)
	test.That(t, errors.Is(err, lattice.ErrOutOfRange), test.ShouldBeTrue)

	// break one hypothesis; the other must not see a partial update either
	e.hyps[1].qt.SetSym(0, 0, -1)
	before := mat.DenseCopyOf(e.hyps[0].qt)
	err = e.UpdateAt(ctx, 1, 1, 1, 0.04)
	test.That(t, errors.Is(err, ErrNumericalInstability), test.ShouldBeTrue)
	test.That(t, e.Observations(), test.ShouldEqual, 0)
	test.That(t, mat.Equal(before, e.hyps[0].qt), test.ShouldBeTrue)
	test.That(t, floats.Sum(e.b.RawVector().Data), test.ShouldEqual, 0.)
	test.That(t, e.c, test.ShouldEqual, 0.)

	_, err = e.Predict(ctx)
	test.That(t, errors.Is(err, ErrNumericalInstability), test.ShouldBeTrue)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	e.hyps[1].qt.SetSym(0, 0, e.hyps[0].qt.At(0, 0))
	err = e.UpdateAt(cancelled, 1, 1, 1, 0.04)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
