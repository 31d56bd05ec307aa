package lattice

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// edgeTolerance, in cell units, lets coordinates computed onto the outermost nodes through
// floating point arithmetic still resolve to the last cell.
const edgeTolerance = 1e-9

// Corner slots of Weights.
const (
	LowerLeft = iota
	LowerRight
	UpperLeft
	UpperRight
)

// Weights is the sparse bilinear shape-function vector of a point: the four corner nodes of
// the enclosing cell and the weight of each.
type Weights struct {
	Index [4]int
	Value [4]float64
}

// Weights evaluates the bilinear shape functions of the cell enclosing (x, y). Points outside
// the lattice are rejected with ErrOutOfRange; nothing is clamped.
func (l *Lattice) Weights(x, y float64) (Weights, error) {
	col, sx, err := locate(x, l.X0, l.Dx, l.Cols)
	if err != nil {
		return Weights{}, errors.Wrapf(err, "x=%v", x)
	}
	row, sy, err := locate(y, l.Y0, l.Dy, l.Rows)
	if err != nil {
		return Weights{}, errors.Wrapf(err, "y=%v", y)
	}

	// coordinates relative to the cell center
	ex := sx*l.Dx - l.Dx/2
	ey := sy*l.Dy - l.Dy/2
	area := l.Dx * l.Dy

	var w Weights
	w.Index[LowerLeft] = l.Index(row, col)
	w.Index[LowerRight] = l.Index(row, col+1)
	w.Index[UpperLeft] = l.Index(row+1, col)
	w.Index[UpperRight] = l.Index(row+1, col+1)
	w.Value[LowerLeft] = (ex - l.Dx/2) * (ey - l.Dy/2) / area
	w.Value[LowerRight] = -(ex + l.Dx/2) * (ey - l.Dy/2) / area
	w.Value[UpperLeft] = -(ex - l.Dx/2) * (ey + l.Dy/2) / area
	w.Value[UpperRight] = (ex + l.Dx/2) * (ey + l.Dy/2) / area
	return w, nil
}

// locate returns the cell index along one axis and the fractional position inside it.
func locate(v, origin, spacing float64, nodes int) (int, float64, error) {
	f := (v - origin) / spacing
	last := float64(nodes - 1)
	switch {
	case math.IsNaN(f):
		return 0, 0, ErrOutOfRange
	case f < 0 && f >= -edgeTolerance:
		f = 0
	case f > last && f <= last+edgeTolerance:
		f = last
	}
	if f < 0 || f > last {
		return 0, 0, ErrOutOfRange
	}
	cell := int(math.Floor(f))
	if cell == nodes-1 {
		cell--
	}
	return cell, f - float64(cell), nil
}

// Dot evaluates a nodal field at the point the weights were built for.
func (w Weights) Dot(field []float64) float64 {
	var sum float64
	for k, i := range w.Index {
		sum += w.Value[k] * field[i]
	}
	return sum
}

// Sum returns the sum of the four weights.
func (w Weights) Sum() float64 {
	return w.Value[0] + w.Value[1] + w.Value[2] + w.Value[3]
}

// Vec densifies the weights into a vector of length dim. dim may exceed the lattice size, in
// which case the trailing entries are zero.
func (w Weights) Vec(dim int) *mat.VecDense {
	v := mat.NewVecDense(dim, nil)
	for k, i := range w.Index {
		v.SetVec(i, v.AtVec(i)+w.Value[k])
	}
	return v
}
