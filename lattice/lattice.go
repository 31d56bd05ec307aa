// Package lattice describes the regular grid a GMRF lives on: node indexing, the
// 12-entry toroidal stencil used by CAR(1)/CAR(2) precision matrices, and the bilinear
// shape functions that tie continuous coordinates to lattice nodes.
package lattice

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// MinDim is the smallest number of rows or columns a lattice may have.
const MinDim = 3

var (
	// ErrInvalidDimensions is returned for lattices smaller than MinDim along an axis or with
	// non-positive spacing.
	ErrInvalidDimensions = errors.New("invalid lattice dimensions")
	// ErrOutOfRange is returned when a continuous coordinate falls outside the lattice.
	ErrOutOfRange = errors.New("coordinate outside lattice")
)

// Stencil slots. Up/Down move along rows (y), Right/Left along columns (x).
const (
	Up = iota
	Down
	Right
	Left
	Up2
	Down2
	Right2
	Left2
	UpRight
	UpLeft
	DownLeft
	DownRight
	StencilSize
)

// Stencil groups, as slices of slot indices.
var (
	OneHop   = []int{Up, Down, Right, Left}
	TwoHop   = []int{Up2, Down2, Right2, Left2}
	Diagonal = []int{UpRight, UpLeft, DownLeft, DownRight}
)

// Lattice is a Rows x Cols grid of nodes. Node (row, col) sits at
// (X0 + col*Dx, Y0 + row*Dy) and has index row*Cols + col.
type Lattice struct {
	Rows, Cols int
	Dx, Dy     float64
	X0, Y0     float64
}

// New returns a lattice with the given shape, spacing and origin.
func New(rows, cols int, dx, dy, x0, y0 float64) (*Lattice, error) {
	if rows < MinDim || cols < MinDim {
		return nil, errors.Wrapf(ErrInvalidDimensions, "need at least %dx%d nodes, got %dx%d", MinDim, MinDim, rows, cols)
	}
	if dx <= 0 || dy <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "spacing must be positive, got dx=%v dy=%v", dx, dy)
	}
	return &Lattice{Rows: rows, Cols: cols, Dx: dx, Dy: dy, X0: x0, Y0: y0}, nil
}

// NewExtended builds a lattice that places fieldCols x fieldRows nodes evenly over bounds
// (corner nodes on the corners) and pads it with padCols/padRows extra nodes on every side.
// The padding keeps the torus wraparound of the precision stencil away from the field.
func NewExtended(bounds r2.Rect, fieldCols, fieldRows, padCols, padRows int) (*Lattice, error) {
	if fieldCols < 2 || fieldRows < 2 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "field needs at least 2x2 nodes, got %dx%d", fieldCols, fieldRows)
	}
	if padCols < 0 || padRows < 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "padding must not be negative, got %d,%d", padCols, padRows)
	}
	if bounds.IsEmpty() || bounds.X.Length() <= 0 || bounds.Y.Length() <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "empty field bounds %v", bounds)
	}
	dx := bounds.X.Length() / float64(fieldCols-1)
	dy := bounds.Y.Length() / float64(fieldRows-1)
	return New(
		fieldRows+2*padRows,
		fieldCols+2*padCols,
		dx, dy,
		bounds.X.Lo-float64(padCols)*dx,
		bounds.Y.Lo-float64(padRows)*dy,
	)
}

// Size is the number of nodes.
func (l *Lattice) Size() int {
	return l.Rows * l.Cols
}

// Index returns the node index of (row, col).
func (l *Lattice) Index(row, col int) int {
	return row*l.Cols + col
}

// RowCol is the inverse of Index.
func (l *Lattice) RowCol(i int) (int, int) {
	return i / l.Cols, i % l.Cols
}

// Position returns the coordinates of node i.
func (l *Lattice) Position(i int) r2.Point {
	row, col := l.RowCol(i)
	return r2.Point{X: l.X0 + float64(col)*l.Dx, Y: l.Y0 + float64(row)*l.Dy}
}

// Bounds is the rectangle spanned by the node positions.
func (l *Lattice) Bounds() r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: l.X0, Y: l.Y0},
		r2.Point{X: l.X0 + float64(l.Cols-1)*l.Dx, Y: l.Y0 + float64(l.Rows-1)*l.Dy},
	)
}

// Neighbors returns the stencil of node i, indexed by the stencil slot constants. The grid is
// treated as a torus, so every node has a full stencil.
func (l *Lattice) Neighbors(i int) [StencilSize]int {
	row, col := l.RowCol(i)
	up, up2 := wrap(row+1, l.Rows), wrap(row+2, l.Rows)
	down, down2 := wrap(row-1, l.Rows), wrap(row-2, l.Rows)
	right, right2 := wrap(col+1, l.Cols), wrap(col+2, l.Cols)
	left, left2 := wrap(col-1, l.Cols), wrap(col-2, l.Cols)

	var n [StencilSize]int
	n[Up] = l.Index(up, col)
	n[Down] = l.Index(down, col)
	n[Right] = l.Index(row, right)
	n[Left] = l.Index(row, left)
	n[Up2] = l.Index(up2, col)
	n[Down2] = l.Index(down2, col)
	n[Right2] = l.Index(row, right2)
	n[Left2] = l.Index(row, left2)
	n[UpRight] = l.Index(up, right)
	n[UpLeft] = l.Index(up, left)
	n[DownLeft] = l.Index(down, left)
	n[DownRight] = l.Index(down, right)
	return n
}

func (l *Lattice) String() string {
	return fmt.Sprintf("lattice %dx%d (dx=%.4g dy=%.4g) from (%.4g, %.4g)", l.Rows, l.Cols, l.Dx, l.Dy, l.X0, l.Y0)
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
