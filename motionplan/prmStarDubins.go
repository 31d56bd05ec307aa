package motionplan

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/gmrfnav/spatialmath"
)

// PRMStarDubinsPlanner grows a tree of Dubins paths from the start pose. Every sample is attached
// to the nearby node that maximizes reward per unit length of the path through it, and nearby
// nodes are re-parented through the sample when that raises their own ratio. The returned plan
// ends at the node with the best ratio among those at least MinDist from the start.
type PRMStarDubinsPlanner struct {
	opts      *PlannerOptions
	steerer   Steerer
	rewards   *rewardField
	collision collisionChecker
	randseed  *rand.Rand
	logger    golog.Logger
}

// NewPRMStarDubinsPlanner validates opts and snapshots the variance field. Later changes to
// opts.Variance do not affect the planner.
func NewPRMStarDubinsPlanner(opts *PlannerOptions, logger golog.Logger) (*PRMStarDubinsPlanner, error) {
	if opts == nil {
		return nil, errors.New("nil planner options")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	steerer := opts.Steerer
	if steerer == nil {
		d, err := NewDubins(1/opts.MaxCurvature, opts.PointSeparation)
		if err != nil {
			return nil, err
		}
		steerer = d
	}

	obstacles := make([]spatialmath.SquareObstacle, len(opts.Obstacles))
	copy(obstacles, opts.Obstacles)

	//nolint:gosec
	randseed := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	return &PRMStarDubinsPlanner{
		opts:      opts,
		steerer:   steerer,
		rewards:   newRewardField(opts.Lattice, opts.Variance, opts.Bounds, opts.BorderPenalty),
		collision: collisionChecker{obstacles: obstacles},
		randseed:  randseed,
		logger:    logger,
	}, nil
}

// Plan runs MaxIter sampling iterations and extracts the best path. It returns ErrNoFeasiblePath
// when no node reached MinDist, and ctx.Err() if ctx is done first.
func (mp *PRMStarDubinsPlanner) Plan(ctx context.Context) (*Plan, error) {
	if !mp.collision.poseFree(mp.opts.Start) {
		return nil, NewPlannerFailedError("start pose " + mp.opts.Start.String() + " is inside an obstacle")
	}

	nodes, err := mp.grow(ctx)
	if err != nil {
		return nil, err
	}

	best := mp.bestLeaf(nodes)
	if best == nil {
		return nil, ErrNoFeasiblePath
	}
	plan := newPlan(best)
	mp.logger.Debugw("prm* plan extracted", "plan", plan.String(), "ratio", plan.Ratio())
	return plan, nil
}

// grow builds the roadmap and returns its nodes, root first.
func (mp *PRMStarDubinsPlanner) grow(ctx context.Context) ([]*node, error) {
	root := newRootNode(mp.opts.Start)
	nm := newNeighborManager(mp.opts.HeadingWeight)
	nm.add(root)

	var rejected, rewired int
	for i := 0; i < mp.opts.MaxIter; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample := mp.sample()
		if !mp.collision.poseFree(sample) {
			rejected++
			continue
		}

		candidates := nm.near(sample, nearRadius(nm.size(), mp.opts.RadiusGamma, mp.opts.RadiusMax))
		if len(candidates) == 0 {
			nearest, err := nm.nearest(ctx, sample)
			if err != nil {
				return nil, err
			}
			candidates = []*node{nearest}
		}

		newNode := mp.attach(sample, candidates)
		if newNode == nil {
			rejected++
			continue
		}
		nm.add(newNode)
		rewired += mp.rewire(newNode, candidates)
	}

	mp.logger.Debugw("prm* roadmap built", "nodes", nm.size(), "rejected", rejected, "rewired", rewired)
	return nm.nodes, nil
}

func (mp *PRMStarDubinsPlanner) sample() spatialmath.Pose {
	p := spatialmath.SampleInBounds(mp.opts.Bounds, mp.randseed.Float64(), mp.randseed.Float64())
	theta := -math.Pi + 2*math.Pi*mp.randseed.Float64()
	return spatialmath.Pose{Point: p, Theta: theta}
}

// attach connects sample to the candidate giving the best reward per length through it.
// It returns nil when no candidate has a collision-free edge within MaxDist.
func (mp *PRMStarDubinsPlanner) attach(sample spatialmath.Pose, candidates []*node) *node {
	var (
		bestParent *node
		bestEdge   *Steering
		bestReward float64
	)
	bestRatio := math.Inf(-1)
	for _, c := range candidates {
		edge, err := mp.steerer.Steer(c.pose, sample)
		if err != nil {
			mp.logger.Debugw("steering failed", "from", c.pose, "to", sample, "error", err)
			continue
		}
		total := c.length + edge.Length
		if total <= 0 || total > mp.opts.MaxDist || !mp.collision.pathFree(edge) {
			continue
		}
		edgeReward := mp.rewards.pathReward(edge.Poses)
		if ratio := (c.reward + edgeReward) / total; ratio > bestRatio {
			bestParent, bestEdge, bestReward, bestRatio = c, edge, edgeReward, ratio
		}
	}
	if bestParent == nil {
		return nil
	}
	return newChildNode(sample, bestParent, bestEdge, bestReward)
}

// rewire re-parents each of near through newNode when that strictly improves its ratio. The root
// and the ancestors of newNode are never moved. It returns the number of nodes re-parented.
func (mp *PRMStarDubinsPlanner) rewire(newNode *node, near []*node) int {
	count := 0
	for _, m := range near {
		if m.parent == nil || m.isAncestorOf(newNode) {
			continue
		}
		edge, err := mp.steerer.Steer(newNode.pose, m.pose)
		if err != nil {
			continue
		}
		total := newNode.length + edge.Length
		if total <= 0 || total > mp.opts.MaxDist {
			continue
		}
		edgeReward := mp.rewards.pathReward(edge.Poses)
		if (newNode.reward+edgeReward)/total <= m.ratio() || !mp.collision.pathFree(edge) {
			continue
		}
		m.replaceEdge(newNode, edge, edgeReward)
		count++
	}
	return count
}

// bestLeaf returns the node of highest ratio among those at least MinDist from the root.
func (mp *PRMStarDubinsPlanner) bestLeaf(nodes []*node) *node {
	var best *node
	bestRatio := math.Inf(-1)
	for _, n := range nodes {
		if n.parent == nil || n.length < mp.opts.MinDist {
			continue
		}
		if r := n.ratio(); r > bestRatio {
			best, bestRatio = n, r
		}
	}
	return best
}
