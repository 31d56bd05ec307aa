package gmrf

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distmv"

	"go.viam.com/gmrfnav/lattice"
)

// SampleField draws one realization of the GMRF with the given hyperparameters and constant
// mean, indexed like the lattice nodes. It is meant for building synthetic ground truth.
func SampleField(l *lattice.Lattice, params Params, mean float64, src rand.Source) ([]float64, error) {
	q, err := NewPrecision(l, params)
	if err != nil {
		return nil, err
	}
	mu := make([]float64, l.Size())
	for i := range mu {
		mu[i] = mean
	}
	dist, ok := distmv.NewNormalPrecision(mu, q, src)
	if !ok {
		return nil, errors.Wrapf(ErrNumericalInstability, "sampling %v", params)
	}
	return dist.Rand(nil), nil
}
