package motionplan

import (
	"github.com/golang/geo/r2"

	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/spatialmath"
)

// rewardField scores path samples by the interpolated predictive variance under them.
type rewardField struct {
	lattice       *lattice.Lattice
	variance      []float64
	bounds        r2.Rect
	borderPenalty float64
}

func newRewardField(l *lattice.Lattice, variance []float64, bounds r2.Rect, borderPenalty float64) *rewardField {
	snapshot := make([]float64, l.Size())
	copy(snapshot, variance)
	return &rewardField{lattice: l, variance: snapshot, bounds: bounds, borderPenalty: borderPenalty}
}

// sampleReward is the variance at p, or the border penalty when p is outside the configuration
// space or the lattice.
func (f *rewardField) sampleReward(p spatialmath.Pose) float64 {
	if !f.bounds.ContainsPoint(p.Point) {
		return f.borderPenalty
	}
	w, err := f.lattice.Weights(p.X(), p.Y())
	if err != nil {
		return f.borderPenalty
	}
	return w.Dot(f.variance)
}

func (f *rewardField) pathReward(poses []spatialmath.Pose) float64 {
	var total float64
	for _, p := range poses {
		total += f.sampleReward(p)
	}
	return total
}
