package motionplan

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"go.viam.com/gmrfnav/spatialmath"
	"go.viam.com/gmrfnav/utils"
)

// endpointTolerance is how far, relative to the turning radius, the integrated end of a Dubins
// word may land from the requested goal before the word is discarded.
const endpointTolerance = 1e-6

type segmentKind int

const (
	turnRight segmentKind = iota - 1
	straight
	turnLeft
)

func (k segmentKind) letter() byte {
	switch k {
	case turnLeft:
		return 'L'
	case turnRight:
		return 'R'
	default:
		return 'S'
	}
}

// solver returns the normalized segment lengths (t, p, q) of one Dubins word for the canonical
// problem where the start sits at the origin, the goal at (d, 0), and a, b are the start and
// goal headings relative to the line joining them.
type solver func(a, b, d float64) (t, p, q float64, ok bool)

type dubinsWord struct {
	kinds [3]segmentKind
	solve solver
}

var dubinsWords = []dubinsWord{
	{[3]segmentKind{turnLeft, straight, turnLeft}, solveLSL},
	{[3]segmentKind{turnRight, straight, turnRight}, solveRSR},
	{[3]segmentKind{turnLeft, straight, turnRight}, solveLSR},
	{[3]segmentKind{turnRight, straight, turnLeft}, solveRSL},
	{[3]segmentKind{turnRight, turnLeft, turnRight}, solveRLR},
	{[3]segmentKind{turnLeft, turnRight, turnLeft}, solveLRL},
}

// Dubins is a forward-only car with a minimum turning radius. Paths it produces are sampled
// every PointSeparation of arc length.
type Dubins struct {
	Radius          float64
	PointSeparation float64
}

// NewDubins returns a Dubins steering function with the given turning radius and sample spacing.
func NewDubins(radius, pointSeparation float64) (*Dubins, error) {
	if !(radius > 0) {
		return nil, errors.Errorf("dubins turning radius must be positive, got %v", radius)
	}
	if !(pointSeparation > 0) {
		return nil, errors.Errorf("dubins point separation must be positive, got %v", pointSeparation)
	}
	return &Dubins{Radius: radius, PointSeparation: pointSeparation}, nil
}

// DubinPathAttr describes one of the six Dubins words between two poses. DubinsPath holds the
// three segment lengths in world units. An infeasible word has TotalLen = +Inf.
type DubinPathAttr struct {
	Word       string
	DubinsPath []float64
	TotalLen   float64
	Straight   bool

	kinds [3]segmentKind
}

// AllPaths evaluates every Dubins word from start to end, both given as [x, y, heading]. When
// sorted is set the result is ordered by increasing length, infeasible words last.
func (d *Dubins) AllPaths(start, end []float64, sorted bool) []DubinPathAttr {
	dx := end[0] - start[0]
	dy := end[1] - start[1]
	dist := math.Hypot(dx, dy) / d.Radius
	theta := utils.Mod2Pi(math.Atan2(dy, dx))
	alpha := utils.Mod2Pi(start[2] - theta)
	beta := utils.Mod2Pi(end[2] - theta)

	goal := spatialmath.PoseFromSlice(end)
	paths := make([]DubinPathAttr, 0, len(dubinsWords))
	for _, w := range dubinsWords {
		attr := DubinPathAttr{
			Word:     string([]byte{w.kinds[0].letter(), w.kinds[1].letter(), w.kinds[2].letter()}),
			TotalLen: math.Inf(1),
			Straight: w.kinds[1] == straight,
			kinds:    w.kinds,
		}
		if t, p, q, ok := w.solve(alpha, beta, dist); ok {
			attr.DubinsPath = []float64{t * d.Radius, p * d.Radius, q * d.Radius}
			attr.TotalLen = attr.DubinsPath[0] + attr.DubinsPath[1] + attr.DubinsPath[2]
			reached := d.poseAt(spatialmath.PoseFromSlice(start), attr, attr.TotalLen)
			if !spatialmath.PoseAlmostEqual(reached, goal, endpointTolerance*math.Max(1, d.Radius)) {
				attr.DubinsPath = nil
				attr.TotalLen = math.Inf(1)
			}
		}
		paths = append(paths, attr)
	}

	if sorted {
		sort.SliceStable(paths, func(i, j int) bool {
			return paths[i].TotalLen < paths[j].TotalLen
		})
	}
	return paths
}

// generatePoints samples path every PointSeparation from start, both endpoints included.
func (d *Dubins) generatePoints(start spatialmath.Pose, path DubinPathAttr) []spatialmath.Pose {
	n := int(math.Floor(path.TotalLen / d.PointSeparation))
	points := make([]spatialmath.Pose, 0, n+2)
	for i := 0; i <= n; i++ {
		s := float64(i) * d.PointSeparation
		if path.TotalLen-s < 1e-9 && i > 0 {
			break
		}
		points = append(points, d.poseAt(start, path, s))
	}
	return append(points, d.poseAt(start, path, path.TotalLen))
}

// poseAt integrates path from start for arc length s.
func (d *Dubins) poseAt(start spatialmath.Pose, path DubinPathAttr, s float64) spatialmath.Pose {
	x, y, h := start.X(), start.Y(), start.Theta
	for i, kind := range path.kinds {
		if s <= 0 {
			break
		}
		l := math.Min(s, path.DubinsPath[i])
		s -= l
		r := d.Radius
		switch kind {
		case turnLeft:
			phi := l / r
			x, y = x-r*math.Sin(h)+r*math.Sin(h+phi), y+r*math.Cos(h)-r*math.Cos(h+phi)
			h += phi
		case turnRight:
			phi := l / r
			x, y = x+r*math.Sin(h)-r*math.Sin(h-phi), y-r*math.Cos(h)+r*math.Cos(h-phi)
			h -= phi
		default:
			x += l * math.Cos(h)
			y += l * math.Sin(h)
		}
	}
	return spatialmath.NewPose(x, y, spatialmath.WrapHeading(h))
}

// Steer connects from and to with the shortest feasible Dubins word.
func (d *Dubins) Steer(from, to spatialmath.Pose) (*Steering, error) {
	if spatialmath.PoseAlmostEqual(from, to, 1e-9) {
		return &Steering{Poses: []spatialmath.Pose{from}}, nil
	}
	best := d.AllPaths(from.Slice(), to.Slice(), true)[0]
	if math.IsInf(best.TotalLen, 1) {
		return nil, errors.Errorf("no feasible dubins path from %v to %v", from, to)
	}

	poses := d.generatePoints(from, best)
	// pin the final sample to the requested goal rather than the integrated one
	poses[len(poses)-1] = spatialmath.NewPose(to.X(), to.Y(), spatialmath.WrapHeading(to.Theta))

	controls := make([]Control, 0, 3)
	for i, kind := range best.kinds {
		if best.DubinsPath[i] <= 1e-12 {
			continue
		}
		controls = append(controls, Control{
			Curvature: float64(kind) / d.Radius,
			Length:    best.DubinsPath[i],
		})
	}
	return &Steering{Poses: poses, Length: best.TotalLen, Controls: controls}, nil
}

func solveLSL(a, b, d float64) (float64, float64, float64, bool) {
	sa, sb, ca, cb := math.Sin(a), math.Sin(b), math.Cos(a), math.Cos(b)
	p2 := 2 + d*d - 2*math.Cos(a-b) + 2*d*(sa-sb)
	p, ok := sqrtFeasible(p2)
	if !ok {
		return 0, 0, 0, false
	}
	tmp := math.Atan2(cb-ca, d+sa-sb)
	return utils.Mod2Pi(-a + tmp), p, utils.Mod2Pi(b - tmp), true
}

func solveRSR(a, b, d float64) (float64, float64, float64, bool) {
	sa, sb, ca, cb := math.Sin(a), math.Sin(b), math.Cos(a), math.Cos(b)
	p2 := 2 + d*d - 2*math.Cos(a-b) + 2*d*(sb-sa)
	p, ok := sqrtFeasible(p2)
	if !ok {
		return 0, 0, 0, false
	}
	tmp := math.Atan2(ca-cb, d-sa+sb)
	return utils.Mod2Pi(a - tmp), p, utils.Mod2Pi(-b + tmp), true
}

func solveLSR(a, b, d float64) (float64, float64, float64, bool) {
	sa, sb, ca, cb := math.Sin(a), math.Sin(b), math.Cos(a), math.Cos(b)
	p2 := -2 + d*d + 2*math.Cos(a-b) + 2*d*(sa+sb)
	p, ok := sqrtFeasible(p2)
	if !ok {
		return 0, 0, 0, false
	}
	tmp := math.Atan2(-ca-cb, d+sa+sb) - math.Atan2(-2, p)
	return utils.Mod2Pi(-a + tmp), p, utils.Mod2Pi(-utils.Mod2Pi(b) + tmp), true
}

func solveRSL(a, b, d float64) (float64, float64, float64, bool) {
	sa, sb, ca, cb := math.Sin(a), math.Sin(b), math.Cos(a), math.Cos(b)
	p2 := d*d - 2 + 2*math.Cos(a-b) - 2*d*(sa+sb)
	p, ok := sqrtFeasible(p2)
	if !ok {
		return 0, 0, 0, false
	}
	tmp := math.Atan2(ca+cb, d-sa-sb) - math.Atan2(2, p)
	return utils.Mod2Pi(a - tmp), p, utils.Mod2Pi(b - tmp), true
}

func solveRLR(a, b, d float64) (float64, float64, float64, bool) {
	sa, sb, ca, cb := math.Sin(a), math.Sin(b), math.Cos(a), math.Cos(b)
	tmp := (6 - d*d + 2*math.Cos(a-b) + 2*d*(sa-sb)) / 8
	c, ok := cosFeasible(tmp)
	if !ok {
		return 0, 0, 0, false
	}
	p := utils.Mod2Pi(2*math.Pi - math.Acos(c))
	t := utils.Mod2Pi(a - math.Atan2(ca-cb, d-sa+sb) + utils.Mod2Pi(p/2))
	q := utils.Mod2Pi(a - b - t + utils.Mod2Pi(p))
	return t, p, q, true
}

func solveLRL(a, b, d float64) (float64, float64, float64, bool) {
	sa, sb, ca, cb := math.Sin(a), math.Sin(b), math.Cos(a), math.Cos(b)
	tmp := (6 - d*d + 2*math.Cos(a-b) + 2*d*(-sa+sb)) / 8
	c, ok := cosFeasible(tmp)
	if !ok {
		return 0, 0, 0, false
	}
	p := utils.Mod2Pi(2*math.Pi - math.Acos(c))
	t := utils.Mod2Pi(-a - math.Atan2(ca-cb, d+sa-sb) + p/2)
	q := utils.Mod2Pi(utils.Mod2Pi(b) - a - t + utils.Mod2Pi(p))
	return t, p, q, true
}

// feasibilitySlack absorbs rounding at the boundary of a word's feasible region.
const feasibilitySlack = 1e-10

func sqrtFeasible(p2 float64) (float64, bool) {
	if p2 < -feasibilitySlack {
		return 0, false
	}
	return math.Sqrt(math.Max(p2, 0)), true
}

func cosFeasible(c float64) (float64, bool) {
	if math.Abs(c) > 1+feasibilitySlack {
		return 0, false
	}
	return math.Max(-1, math.Min(1, c)), true
}
