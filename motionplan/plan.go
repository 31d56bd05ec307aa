package motionplan

import (
	"fmt"

	"go.viam.com/gmrfnav/spatialmath"
)

// Plan is the path chosen by a planning round. Waypoints are the roadmap nodes from the start to
// the chosen leaf, Trajectory is the densely sampled path through them, and Controls are the
// steering segments in driving order.
//
// Length and Reward are the totals recorded on the leaf when it was last attached. Rewiring an
// ancestor does not update them, so they can disagree with the geometry of Trajectory.
// TrajectoryLength is the summed length of the edges actually driven, which may exceed MaxDist
// in that case.
type Plan struct {
	Waypoints        []spatialmath.Pose
	Trajectory       []spatialmath.Pose
	Controls         []Control
	Length           float64
	Reward           float64
	TrajectoryLength float64
}

func newPlan(leaf *node) *Plan {
	path := leaf.pathFromRoot()
	plan := &Plan{
		Waypoints:  make([]spatialmath.Pose, 0, len(path)),
		Trajectory: []spatialmath.Pose{path[0].pose},
		Length:     leaf.length,
		Reward:     leaf.reward,
	}
	for _, n := range path {
		plan.Waypoints = append(plan.Waypoints, n.pose)
		if n.edge == nil {
			continue
		}
		// each edge starts where the previous one ended
		plan.Trajectory = append(plan.Trajectory, n.edge.Poses[1:]...)
		plan.Controls = append(plan.Controls, n.edge.Controls...)
		plan.TrajectoryLength += n.edge.Length
	}
	return plan
}

// End is the pose the plan finishes at.
func (p *Plan) End() spatialmath.Pose {
	return p.Waypoints[len(p.Waypoints)-1]
}

// Ratio is the reward per unit length of the plan.
func (p *Plan) Ratio() float64 {
	if p.Length <= 0 {
		return 0
	}
	return p.Reward / p.Length
}

func (p *Plan) String() string {
	return fmt.Sprintf("plan{waypoints: %d, samples: %d, length: %.3f (driven %.3f), reward: %.3f}",
		len(p.Waypoints), len(p.Trajectory), p.Length, p.TrajectoryLength, p.Reward)
}
