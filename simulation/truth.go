// Package simulation runs the sense, update, plan and move loop against a synthetic field.
package simulation

import (
	"math"
	"math/rand/v2"

	"go.viam.com/gmrfnav/gmrf"
	"go.viam.com/gmrfnav/lattice"
)

// FieldFunc is a ground-truth scalar field. It returns NaN where the field is undefined.
type FieldFunc func(x, y float64) float64

// NewGMRFTruth draws one GMRF sample on l and returns its bilinear interpolant together with
// the node values. The interpolant is NaN off the lattice.
func NewGMRFTruth(l *lattice.Lattice, params gmrf.Params, mean float64, seed uint64) (FieldFunc, []float64, error) {
	//nolint:gosec
	values, err := gmrf.SampleField(l, params, mean, rand.NewPCG(seed, seed+1))
	if err != nil {
		return nil, nil, err
	}
	return func(x, y float64) float64 {
		w, err := l.Weights(x, y)
		if err != nil {
			return math.NaN()
		}
		return w.Dot(values)
	}, values, nil
}
