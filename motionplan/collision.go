package motionplan

import (
	"go.viam.com/gmrfnav/spatialmath"
)

// collisionChecker tests poses and steered paths against the inflated obstacle footprints.
type collisionChecker struct {
	obstacles []spatialmath.SquareObstacle
}

func (cc collisionChecker) poseFree(p spatialmath.Pose) bool {
	return !spatialmath.CollidesAny(cc.obstacles, p.Point)
}

// pathFree checks every sample of the path, endpoints included.
func (cc collisionChecker) pathFree(s *Steering) bool {
	for _, p := range s.Poses {
		if !cc.poseFree(p) {
			return false
		}
	}
	return true
}
