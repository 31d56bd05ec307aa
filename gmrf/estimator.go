package gmrf

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/utils"
)

// Estimator is the sequential Bayesian estimate of a field on a lattice. It keeps the
// canonical parameters of the field given the observations so far, for every hypothesis at
// once: the canonical mean b and the scalar c are shared, while each Hypothesis carries its own
// precision and evidence term.
//
// Observations must be applied one at a time in temporal order. Update and Predict must not be
// called concurrently.
type Estimator struct {
	lattice *lattice.Lattice
	design  Regression
	hyps    []*Hypothesis
	dim     int

	b            *mat.VecDense
	c            float64
	observations int

	logger golog.Logger
}

// NewEstimator builds the prior state for each hypothesis in params. The hypotheses share a
// uniform prior.
func NewEstimator(l *lattice.Lattice, params []Params, design Regression, logger golog.Logger) (*Estimator, error) {
	if l == nil {
		return nil, newInvalidParameterError("nil lattice")
	}
	if len(params) == 0 {
		return nil, newInvalidParameterError("at least one hypothesis is required")
	}
	n := l.Size()
	if err := design.validate(n); err != nil {
		return nil, err
	}

	prior := 1 / float64(len(params))
	hyps := make([]*Hypothesis, len(params))
	for i, p := range params {
		q, err := NewPrecision(l, p)
		if err != nil {
			return nil, errors.Wrapf(err, "hypothesis %d", i)
		}
		if hyps[i], err = newHypothesis(q, p, design, prior); err != nil {
			return nil, err
		}
	}

	dim := n + design.P()
	logger.Debugw("gmrf estimator initialized", "lattice", l.String(), "hypotheses", len(hyps), "dim", dim)
	return &Estimator{
		lattice: l,
		design:  design,
		hyps:    hyps,
		dim:     dim,
		b:       mat.NewVecDense(dim, nil),
		logger:  logger,
	}, nil
}

// Lattice returns the lattice the field lives on.
func (e *Estimator) Lattice() *lattice.Lattice {
	return e.lattice
}

// Dim is the length of the latent vector: lattice nodes followed by regression coefficients.
func (e *Estimator) Dim() int {
	return e.dim
}

// Hypotheses returns the hypotheses in construction order.
func (e *Estimator) Hypotheses() []*Hypothesis {
	out := make([]*Hypothesis, len(e.hyps))
	copy(out, e.hyps)
	return out
}

// Observations is the number of observations applied so far.
func (e *Estimator) Observations() int {
	return e.observations
}

// UpdateAt applies a measurement taken at (x, y).
func (e *Estimator) UpdateAt(ctx context.Context, x, y, value, sigma2 float64) error {
	w, err := e.lattice.Weights(x, y)
	if err != nil {
		return err
	}
	return e.Update(ctx, w, value, sigma2)
}

// Update applies one scalar measurement y with noise variance sigma2 whose influence on the
// latent vector is given by w. Every hypothesis is solved against the current state before
// anything is written, so a factorization failure leaves the estimator untouched.
func (e *Estimator) Update(ctx context.Context, w lattice.Weights, y, sigma2 float64) error {
	if !(sigma2 > 0) {
		return newInvalidParameterError("measurement variance must be positive, got %v", sigma2)
	}
	u := w.Vec(e.dim)

	type solved struct {
		h  *mat.VecDense
		uh float64
	}
	results := make([]solved, len(e.hyps))
	if err := e.forEachHypothesis(ctx, func(i int, hyp *Hypothesis) error {
		h, err := hyp.solve(u)
		if err != nil {
			return err
		}
		results[i] = solved{h: h, uh: mat.Dot(u, h)}
		return nil
	}); err != nil {
		return err
	}

	e.b.AddScaledVec(e.b, y/sigma2, u)
	e.c -= y * y / (2 * sigma2)
	for i, hyp := range e.hyps {
		hyp.absorb(u, results[i].h, results[i].uh, sigma2)
	}
	e.observations++
	e.logger.Debugw("gmrf observation applied", "count", e.observations, "value", y)
	return nil
}

// Prediction is the model-averaged posterior of the latent vector at one point in time. Mean
// and Variance have length Dim(): lattice nodes first, then regression coefficients.
type Prediction struct {
	Mean        []float64
	Variance    []float64
	Weights     []float64
	LogEvidence []float64

	lattice *lattice.Lattice
}

// FieldMean returns the lattice part of Mean.
func (p *Prediction) FieldMean() []float64 {
	return p.Mean[:p.lattice.Size()]
}

// FieldVariance returns the lattice part of Variance.
func (p *Prediction) FieldVariance() []float64 {
	return p.Variance[:p.lattice.Size()]
}

// At interpolates the predictive mean and variance at (x, y).
func (p *Prediction) At(x, y float64) (mean, variance float64, err error) {
	w, err := p.lattice.Weights(x, y)
	if err != nil {
		return 0, 0, err
	}
	return w.Dot(p.Mean), w.Dot(p.Variance), nil
}

// Lattice returns the lattice the prediction is defined on.
func (p *Prediction) Lattice() *lattice.Lattice {
	return p.lattice
}

// Predict computes the predictive mean and variance of the field, averaged over hypotheses by
// their posterior weights. It does not modify the estimator.
func (e *Estimator) Predict(ctx context.Context) (*Prediction, error) {
	means := make([]*mat.VecDense, len(e.hyps))
	logEvidence := make([]float64, len(e.hyps))
	if err := e.forEachHypothesis(ctx, func(i int, hyp *Hypothesis) error {
		mu, err := hyp.solve(e.b)
		if err != nil {
			return err
		}
		means[i] = mu
		logEvidence[i] = e.c + hyp.g + 0.5*mat.Dot(e.b, mu)
		return nil
	}); err != nil {
		return nil, err
	}

	priors := make([]float64, len(e.hyps))
	for i, hyp := range e.hyps {
		priors[i] = hyp.prior
	}
	weights := PosteriorWeights(logEvidence, priors)

	mean := make([]float64, e.dim)
	for i, mu := range means {
		floats.AddScaled(mean, weights[i], mu.RawVector().Data)
	}
	variance := make([]float64, e.dim)
	for i, mu := range means {
		data := mu.RawVector().Data
		diag := e.hyps[i].diagInv
		for j := range variance {
			d := data[j] - mean[j]
			variance[j] += weights[i] * (diag[j] + d*d)
		}
	}

	e.logger.Debugw("gmrf prediction", "observations", e.observations, "weights", weights)
	return &Prediction{
		Mean:        mean,
		Variance:    variance,
		Weights:     weights,
		LogEvidence: logEvidence,
		lattice:     e.lattice,
	}, nil
}

// PosteriorWeights turns log-evidence values and prior probabilities into posterior
// probabilities that sum to one. The normalization goes through log-sum-exp so arbitrarily
// large or small evidence does not overflow.
func PosteriorWeights(logEvidence, priors []float64) []float64 {
	logPost := make([]float64, len(logEvidence))
	for i, le := range logEvidence {
		logPost[i] = le + math.Log(priors[i])
	}
	norm := floats.LogSumExp(logPost)
	weights := make([]float64, len(logPost))
	for i, lp := range logPost {
		weights[i] = math.Exp(lp - norm)
	}
	floats.Scale(1/floats.Sum(weights), weights)
	return weights
}

// forEachHypothesis runs fn for every hypothesis in parallel. fn may only touch state owned by
// the hypothesis it is given and slot i of caller-owned slices.
func (e *Estimator) forEachHypothesis(ctx context.Context, fn func(i int, hyp *Hypothesis) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(utils.ParallelFactor)
	for i, hyp := range e.hyps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i, hyp)
		})
	}
	return g.Wait()
}
