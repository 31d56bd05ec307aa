package gmrf

import (
	"gonum.org/v1/gonum/mat"
)

// DefaultPriorPrecision is the prior precision of the constant-mean coefficient: a nearly flat
// prior on the field's offset.
const DefaultPriorPrecision = 1e-6

// Regression is the mean design of the field: z = F*beta + eta, with beta ~ N(0, T^-1).
// F is n x p and T is p x p. A zero-value Regression has p = 0 and adds no coefficients.
type Regression struct {
	F *mat.Dense
	T *mat.SymDense
}

// ConstantMean returns the p = 1 design with F = 1 and T = priorPrecision.
func ConstantMean(n int, priorPrecision float64) Regression {
	f := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		f.Set(i, 0, 1)
	}
	return Regression{F: f, T: mat.NewSymDense(1, []float64{priorPrecision})}
}

// P is the number of regression coefficients.
func (r Regression) P() int {
	if r.F == nil {
		return 0
	}
	_, p := r.F.Dims()
	return p
}

func (r Regression) validate(n int) error {
	if r.F == nil && r.T == nil {
		return nil
	}
	if r.F == nil || r.T == nil {
		return newInvalidParameterError("regression needs both F and T")
	}
	rows, p := r.F.Dims()
	if rows != n {
		return newInvalidParameterError("regression F has %d rows, lattice has %d nodes", rows, n)
	}
	if r.T.SymmetricDim() != p {
		return newInvalidParameterError("regression T is %dx%d, F has %d columns", r.T.SymmetricDim(), r.T.SymmetricDim(), p)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(r.T); !ok {
		return newInvalidParameterError("regression prior precision T is not positive definite")
	}
	return nil
}

// augment returns the joint precision of (z, beta):
//
//	[  Q      -Q F       ]
//	[ -F'Q    F'Q F + T  ]
func augment(q *mat.SymDense, r Regression) *mat.SymDense {
	n := q.SymmetricDim()
	p := r.P()
	qt := mat.NewSymDense(n+p, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			qt.SetSym(i, j, q.At(i, j))
		}
	}
	if p == 0 {
		return qt
	}

	var qf, fqf mat.Dense
	qf.Mul(q, r.F)
	fqf.Mul(r.F.T(), &qf)
	for i := 0; i < n; i++ {
		for k := 0; k < p; k++ {
			qt.SetSym(i, n+k, -qf.At(i, k))
		}
	}
	for k := 0; k < p; k++ {
		for m := k; m < p; m++ {
			qt.SetSym(n+k, n+m, fqf.At(k, m)+r.T.At(k, m))
		}
	}
	return qt
}
