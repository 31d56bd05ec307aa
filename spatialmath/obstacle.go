package spatialmath

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// LateralInflation scales the half-width of an obstacle along x when checking for collisions.
// The half-width along y is used unscaled.
const LateralInflation = 0.8

// SquareObstacle is an axis-aligned square described by its center and side length.
type SquareObstacle struct {
	Center r2.Point
	Side   float64
}

// NewSquareObstacle returns an obstacle centered on (x, y).
func NewSquareObstacle(x, y, side float64) (SquareObstacle, error) {
	if side <= 0 {
		return SquareObstacle{}, errors.Errorf("obstacle side must be positive, got %v", side)
	}
	return SquareObstacle{Center: r2.Point{X: x, Y: y}, Side: side}, nil
}

// Footprint is the region the vehicle may not enter: LateralInflation*side wide, side tall.
func (o SquareObstacle) Footprint() r2.Rect {
	return r2.RectFromCenterSize(o.Center, r2.Point{X: LateralInflation * o.Side, Y: o.Side})
}

// Collides reports whether p lies strictly inside the obstacle footprint.
func (o SquareObstacle) Collides(p r2.Point) bool {
	return o.Footprint().InteriorContainsPoint(p)
}

// CollidesAny reports whether p lies inside any obstacle footprint.
func CollidesAny(obstacles []SquareObstacle, p r2.Point) bool {
	for _, o := range obstacles {
		if o.Collides(p) {
			return true
		}
	}
	return false
}
