package motionplan

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"go.viam.com/gmrfnav/spatialmath"
	"go.viam.com/gmrfnav/utils"
)

const neighborsBeforeParallelization = 1000

// neighborManager indexes the roadmap for radius and nearest queries under the pose metric.
type neighborManager struct {
	tree          *kdtree.Tree
	nodes         []*node
	headingWeight float64
}

func newNeighborManager(headingWeight float64) *neighborManager {
	return &neighborManager{tree: &kdtree.Tree{}, headingWeight: headingWeight}
}

func (nm *neighborManager) add(n *node) {
	nm.nodes = append(nm.nodes, n)
	nm.tree.Insert(kdNode{n}, false)
}

func (nm *neighborManager) size() int {
	return len(nm.nodes)
}

// nearRadius is the PRM* connection radius gamma*sqrt(log k / k), capped at radiusMax.
func nearRadius(k int, gamma, radiusMax float64) float64 {
	if k <= 1 {
		return 0
	}
	kf := float64(k)
	return math.Min(gamma*math.Sqrt(math.Log(kf)/kf), radiusMax)
}

// near returns the nodes within r of pose under the pose metric, closest first. The kd-tree
// query uses planar distance, which is a lower bound of the metric, so no node is missed.
func (nm *neighborManager) near(pose spatialmath.Pose, r float64) []*node {
	if r <= 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(r * r)
	nm.tree.NearestSet(keeper, kdNode{&node{pose: pose}})

	type candidate struct {
		n    *node
		dist float64
	}
	candidates := make([]candidate, 0, keeper.Len())
	for _, cd := range keeper.Heap {
		// the keeper is seeded with a nil sentinel at the radius
		if cd.Comparable == nil {
			continue
		}
		n := cd.Comparable.(kdNode).node
		if d := poseDistance(n.pose, pose, nm.headingWeight); d <= r {
			candidates = append(candidates, candidate{n, d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	out := make([]*node, len(candidates))
	for i, c := range candidates {
		out[i] = c.n
	}
	return out
}

// nearest returns the node closest to pose under the pose metric.
func (nm *neighborManager) nearest(ctx context.Context, pose spatialmath.Pose) (*node, error) {
	if len(nm.nodes) > neighborsBeforeParallelization {
		return nm.parallelNearest(ctx, pose)
	}
	best, _ := nm.scan(pose, 0, len(nm.nodes))
	return best, nil
}

func (nm *neighborManager) scan(pose spatialmath.Pose, from, to int) (*node, float64) {
	bestDist := math.Inf(1)
	var best *node
	for _, n := range nm.nodes[from:to] {
		if d := poseDistance(n.pose, pose, nm.headingWeight); d < bestDist {
			bestDist = d
			best = n
		}
	}
	return best, bestDist
}

func (nm *neighborManager) parallelNearest(ctx context.Context, pose spatialmath.Pose) (*node, error) {
	bests := make([]*node, utils.ParallelFactor)
	dists := make([]float64, utils.ParallelFactor)
	numGroups, err := utils.GroupWorkParallel(
		ctx,
		len(nm.nodes),
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return nil, func() {
				bests[groupNum], dists[groupNum] = nm.scan(pose, from, to)
			}
		},
	)
	if err != nil {
		return nil, err
	}

	var best *node
	bestDist := math.Inf(1)
	for i := 0; i < numGroups; i++ {
		if bests[i] != nil && dists[i] < bestDist {
			best, bestDist = bests[i], dists[i]
		}
	}
	return best, nil
}
