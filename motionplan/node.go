package motionplan

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"go.viam.com/gmrfnav/spatialmath"
	"go.viam.com/gmrfnav/utils"
)

// node is a pose in the roadmap tree together with the totals of the path that reaches it from
// the root. The root has no parent and no edge.
type node struct {
	pose   spatialmath.Pose
	length float64
	reward float64

	parent     *node
	edge       *Steering
	edgeReward float64
}

func newRootNode(pose spatialmath.Pose) *node {
	return &node{pose: pose}
}

func newChildNode(pose spatialmath.Pose, parent *node, edge *Steering, edgeReward float64) *node {
	n := &node{pose: pose}
	n.replaceEdge(parent, edge, edgeReward)
	return n
}

// replaceEdge moves n under parent through edge. Parent, geometry and totals change together.
// Totals of n's descendants are left as they were.
func (n *node) replaceEdge(parent *node, edge *Steering, edgeReward float64) {
	n.parent = parent
	n.edge = edge
	n.edgeReward = edgeReward
	n.length = parent.length + edge.Length
	n.reward = parent.reward + edgeReward
}

// ratio is the reward collected per unit of path length. It is zero for the root.
func (n *node) ratio() float64 {
	if n.length <= 0 {
		return 0
	}
	return n.reward / n.length
}

// isAncestorOf reports whether n lies on the path from the root to m, m itself included.
func (n *node) isAncestorOf(m *node) bool {
	for cur := m; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// pathFromRoot returns the nodes from the root down to n.
func (n *node) pathFromRoot() []*node {
	var path []*node
	for cur := n; cur != nil; cur = cur.parent {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// poseDistance is the roadmap metric: planar distance plus headingWeight times the squared
// wrapped heading difference, under one square root.
func poseDistance(a, b spatialmath.Pose, headingWeight float64) float64 {
	d := a.Point.Sub(b.Point)
	dTheta := spatialmath.WrapHeading(a.Theta - b.Theta)
	return math.Sqrt(utils.Square(d.X) + utils.Square(d.Y) + headingWeight*utils.Square(dTheta))
}

// kdNode places a node in the planar kd-tree. Distance is the squared planar distance, which
// never exceeds the squared roadmap metric.
type kdNode struct {
	*node
}

func (p kdNode) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdNode)
	switch d {
	case 0:
		return p.pose.X() - q.pose.X()
	case 1:
		return p.pose.Y() - q.pose.Y()
	default:
		panic("illegal dimension")
	}
}

func (p kdNode) Dims() int { return 2 }

func (p kdNode) Distance(c kdtree.Comparable) float64 {
	q := c.(kdNode)
	d := p.pose.Point.Sub(q.pose.Point)
	return d.X*d.X + d.Y*d.Y
}
