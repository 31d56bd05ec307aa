package gmrf

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Hypothesis is one candidate prior of the field. It owns its joint precision over
// (field, regression coefficients), the cached diagonal of that precision's inverse, and its
// log-evidence accumulator. Only the estimator mutates it.
type Hypothesis struct {
	params Params
	prior  float64

	qt      *mat.SymDense
	diagInv []float64
	g       float64
}

func newHypothesis(q *mat.SymDense, params Params, design Regression, prior float64) (*Hypothesis, error) {
	qt := augment(q, design)

	var chol mat.Cholesky
	if ok := chol.Factorize(qt); !ok {
		return nil, errors.Wrapf(ErrNumericalInstability, "initial precision of %v", params)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, errors.Wrapf(ErrNumericalInstability, "inverting initial precision of %v: %v", params, err)
	}
	diag := make([]float64, qt.SymmetricDim())
	for i := range diag {
		diag[i] = inv.At(i, i)
	}
	return &Hypothesis{params: params, prior: prior, qt: qt, diagInv: diag}, nil
}

// Params returns the hyperparameters of the hypothesis.
func (h *Hypothesis) Params() Params {
	return h.params
}

// Prior returns the prior probability of the hypothesis.
func (h *Hypothesis) Prior() float64 {
	return h.prior
}

// LogDetTerm returns the accumulated observation-dependent log-determinant term of the
// evidence.
func (h *Hypothesis) LogDetTerm() float64 {
	return h.g
}

// factor returns a fresh Cholesky factorization of the current joint precision.
func (h *Hypothesis) factor() (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(h.qt); !ok {
		return nil, errors.Wrapf(ErrNumericalInstability, "hypothesis %v", h.params)
	}
	return &chol, nil
}

// solve returns Qt^-1 v through the two triangular solves of a fresh factorization.
func (h *Hypothesis) solve(v mat.Vector) (*mat.VecDense, error) {
	chol, err := h.factor()
	if err != nil {
		return nil, err
	}
	x := mat.NewVecDense(v.Len(), nil)
	if err := chol.SolveVecTo(x, v); err != nil {
		return nil, errors.Wrapf(ErrNumericalInstability, "hypothesis %v: %v", h.params, err)
	}
	return x, nil
}

// absorb folds one observation with influence vector u and noise variance sigma2 into the
// hypothesis, given hu = Qt^-1 u computed before the update. The inverse diagonal follows the
// Sherman-Morrison identity.
func (h *Hypothesis) absorb(u, hu *mat.VecDense, uhu, sigma2 float64) {
	denom := sigma2 + uhu
	for j := range h.diagInv {
		hj := hu.AtVec(j)
		h.diagInv[j] -= hj * hj / denom
	}
	h.qt.SymRankOne(h.qt, 1/sigma2, u)
	h.g -= 0.5 * math.Log1p(uhu/sigma2)
}
