// Package spatialmath defines the planar geometry shared by the planner and the simulator:
// oriented poses, rectangular bounds and inflated square obstacles.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"go.viam.com/gmrfnav/utils"
)

// Pose is an oriented position in the plane. Theta is the heading in radians measured
// counter-clockwise from the +x axis.
type Pose struct {
	Point r2.Point
	Theta float64
}

// NewPose returns a pose at (x, y) with heading theta.
func NewPose(x, y, theta float64) Pose {
	return Pose{Point: r2.Point{X: x, Y: y}, Theta: theta}
}

// X returns the x coordinate of the pose.
func (p Pose) X() float64 { return p.Point.X }

// Y returns the y coordinate of the pose.
func (p Pose) Y() float64 { return p.Point.Y }

// Slice returns the pose as [x, y, theta].
func (p Pose) Slice() []float64 {
	return []float64{p.Point.X, p.Point.Y, p.Theta}
}

// PoseFromSlice is the inverse of Slice.
func PoseFromSlice(s []float64) Pose {
	return NewPose(s[0], s[1], s[2])
}

// PoseAlmostEqual checks that two poses are within epsilon in position and heading.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	return a.Point.Sub(b.Point).Norm() < epsilon && utils.AngleDiff(a.Theta, b.Theta) < epsilon
}

func (p Pose) String() string {
	return fmt.Sprintf("{X:%.3f Y:%.3f Theta:%.3f}", p.Point.X, p.Point.Y, p.Theta)
}

// NewBounds returns the closed rectangle [xMin, xMax] x [yMin, yMax].
func NewBounds(xMin, xMax, yMin, yMax float64) r2.Rect {
	return r2.Rect{X: r1.Interval{Lo: xMin, Hi: xMax}, Y: r1.Interval{Lo: yMin, Hi: yMax}}
}

// SampleInBounds maps two uniform variates in [0, 1) to a point inside the rectangle.
func SampleInBounds(bounds r2.Rect, u, v float64) r2.Point {
	return r2.Point{
		X: bounds.X.Lo + u*bounds.X.Length(),
		Y: bounds.Y.Lo + v*bounds.Y.Length(),
	}
}

// WrapHeading maps a heading onto [-pi, pi).
func WrapHeading(theta float64) float64 {
	if theta >= -math.Pi && theta < math.Pi {
		return theta
	}
	return utils.WrapAngle(theta)
}
