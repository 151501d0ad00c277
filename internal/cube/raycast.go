package cube

import (
	"math"

	"github.com/golang/geo/r3"
)

// Hit describes the first non-empty voxel along a ray. Pos is the entry
// point in the hit voxel's local [-1,1]³ space; World maps it back to
// root space. Normal is the face the ray entered through.
type Hit struct {
	Coord  Coord
	Value  uint8
	Normal Axis
	Pos    r3.Vector
}

// World maps the hit position from the hit voxel's local space back to
// the root's [-1,1]³ space.
func (h Hit) World() r3.Vector {
	v := h.Pos
	for level := 0; level < h.Coord.Depth; level++ {
		o := h.Coord.Octant(level)
		off := r3.Vector{X: float64(o.X*2 - 1), Y: float64(o.Y*2 - 1), Z: float64(o.Z*2 - 1)}
		v = v.Add(off).Mul(0.5)
	}
	return v
}

// TraceLimits bounds a traversal. MaxDepth stops descent and shades the
// subtree with its representative material; MaxSteps bounds total node
// visits and yields ErrorMaterial when exceeded, so runaway rays show
// up visually instead of hanging.
type TraceLimits struct {
	MaxDepth int
	MaxSteps int
}

func DefaultTraceLimits() TraceLimits {
	return TraceLimits{MaxDepth: 16, MaxSteps: 1024}
}

// Raycast walks the tree from origin along dir in the root's [-1,1]³
// space and returns the first non-empty voxel. Origins outside the root
// are clipped to the entry face; a zero direction is a miss.
func Raycast(root *Cube, origin, dir r3.Vector) (Hit, bool) {
	return RaycastLimits(root, origin, dir, DefaultTraceLimits())
}

func RaycastLimits(root *Cube, origin, dir r3.Vector, lim TraceLimits) (Hit, bool) {
	if dir == (r3.Vector{}) {
		return Hit{}, false
	}

	dirSign := signVec(dir)

	if maxElem(absVec(origin)) > 1 {
		origin2, ok := clipToRoot(origin, dir, dirSign)
		if !ok {
			return Hit{}, false
		}
		origin = origin2
	}

	tr := &tracer{lim: lim}

	absDir := absVec(dir)
	if i, ok := dominantAxis(absDir); ok {
		return tr.traceAxis(root, origin, AxisFrom(i, int(comp(dirSign, i))), Coord{})
	}

	return tr.trace(root, origin, dir, entryNormal(origin, absDir, dirSign), Coord{})
}

// clipToRoot slab-clips an outside origin to the root boundary.
func clipToRoot(origin, dir, dirSign r3.Vector) (r3.Vector, bool) {
	tEntry := compDiv(dirSign.Mul(-1).Sub(origin), dir)
	tExit := compDiv(dirSign.Sub(origin), dir)

	tEnter := maxElem(tEntry)
	tLeave := minElem(tExit)

	if tEnter > tLeave || tLeave < 0 {
		return r3.Vector{}, false
	}
	return origin.Add(dir.Mul(math.Max(tEnter, 0))), true
}

// dominantAxis reports the axis index when the other two direction
// components are negligible (axis-aligned fast path).
func dominantAxis(absDir r3.Vector) (int, bool) {
	maxComp := maxElem(absDir)
	eps := maxComp * 1e-6
	nearZero := 0
	if absDir.X <= eps {
		nearZero++
	}
	if absDir.Y <= eps {
		nearZero++
	}
	if absDir.Z <= eps {
		nearZero++
	}
	if nearZero != 2 {
		return 0, false
	}
	return argmax(absDir), true
}

// entryNormal picks the face the ray entered through: the face the
// origin sits on when it is on the boundary, otherwise the face most
// opposed to the ray direction.
func entryNormal(origin, absDir, dirSign r3.Vector) Axis {
	absOrigin := absVec(origin)
	if math.Abs(maxElem(absOrigin)-1) < 1e-5 {
		switch {
		case math.Abs(absOrigin.X-1) < 1e-5:
			return AxisFrom(0, signOf(origin.X))
		case math.Abs(absOrigin.Y-1) < 1e-5:
			return AxisFrom(1, signOf(origin.Y))
		default:
			return AxisFrom(2, signOf(origin.Z))
		}
	}
	i := argmax(absDir)
	return AxisFrom(i, -int(comp(dirSign, i)))
}

type tracer struct {
	lim   TraceLimits
	steps int
}

func (t *tracer) overBudget() bool {
	t.steps++
	return t.steps > t.lim.MaxSteps
}

func (t *tracer) trace(node *Cube, origin, dir r3.Vector, normal Axis, at Coord) (Hit, bool) {
	if t.overBudget() {
		return Hit{Coord: at, Value: ErrorMaterial, Normal: normal, Pos: origin}, true
	}

	if node.children == nil {
		if node.value != Empty {
			return Hit{Coord: at, Value: node.value, Normal: normal, Pos: origin}, true
		}
		return Hit{}, false
	}

	if at.Depth >= t.lim.MaxDepth {
		if v := node.Rep(); v != Empty {
			return Hit{Coord: at, Value: v, Normal: normal, Pos: origin}, true
		}
		return Hit{}, false
	}

	dirSign := signVec(dir)
	octant := computeOctant(origin, dirSign)

	for {
		child := node.children[OctantIndex(octant)]
		childOrigin := origin.Mul(2).Sub(octantOffset(octant))

		if hit, ok := t.trace(child, childOrigin, dir, normal, at.Child(octant)); ok {
			return hit, true
		}

		// Exit distance to the nearest child boundary ahead of the ray.
		farSide := mulVec(origin, dirSign)
		adjusted := origin
		if farSide.X >= 0 {
			adjusted.X -= dirSign.X
		}
		if farSide.Y >= 0 {
			adjusted.Y -= dirSign.Y
		}
		if farSide.Z >= 0 {
			adjusted.Z -= dirSign.Z
		}
		time := compDiv(absVec(adjusted), absVec(dir))

		exit := minTimeAxis(time, dirSign)
		i := exit.Index()

		origin = origin.Add(dir.Mul(comp(time, i)))
		octant = exit.Step(octant)

		// Snap to the boundary plane just crossed: -1, 0, or 1.
		boundary := float64(octant.Comp(i)) - float64(exit.Sign()+1)*0.5
		origin = exit.Set(origin, boundary)
		normal = exit.Flip()

		if c := octant.Comp(i); c < 0 || c > 1 {
			return Hit{}, false
		}
	}
}

func (t *tracer) traceAxis(node *Cube, origin r3.Vector, axis Axis, at Coord) (Hit, bool) {
	if t.overBudget() {
		return Hit{Coord: at, Value: ErrorMaterial, Normal: axis.Flip(), Pos: origin}, true
	}

	if node.children == nil {
		if node.value != Empty {
			return Hit{Coord: at, Value: node.value, Normal: axis.Flip(), Pos: origin}, true
		}
		return Hit{}, false
	}

	if at.Depth >= t.lim.MaxDepth {
		if v := node.Rep(); v != Empty {
			return Hit{Coord: at, Value: v, Normal: axis.Flip(), Pos: origin}, true
		}
		return Hit{}, false
	}

	i := axis.Index()
	s := axis.Sign()
	octant := computeOctant(origin, axis.Vec())

	for {
		child := node.children[OctantIndex(octant)]
		childOrigin := origin.Mul(2).Sub(octantOffset(octant))

		if hit, ok := t.traceAxis(child, childOrigin, axis, at.Child(octant)); ok {
			return hit, true
		}

		octant = octant.WithComp(i, octant.Comp(i)+s)
		c := octant.Comp(i)
		origin = axis.Set(origin, float64(c)-float64(s+1)*0.5)

		if c < 0 || c > 1 {
			return Hit{}, false
		}
	}
}

// ----------------------------------------------------------------------------
// vector helpers

func signVec(v r3.Vector) r3.Vector {
	out := r3.Vector{X: 1, Y: 1, Z: 1}
	if v.X < 0 {
		out.X = -1
	}
	if v.Y < 0 {
		out.Y = -1
	}
	if v.Z < 0 {
		out.Z = -1
	}
	return out
}

func signOf(f float64) int {
	if f < 0 {
		return -1
	}
	return 1
}

func absVec(v r3.Vector) r3.Vector {
	return r3.Vector{X: math.Abs(v.X), Y: math.Abs(v.Y), Z: math.Abs(v.Z)}
}

func mulVec(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

func compDiv(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: a.X / b.X, Y: a.Y / b.Y, Z: a.Z / b.Z}
}

func maxElem(v r3.Vector) float64 {
	return math.Max(v.X, math.Max(v.Y, v.Z))
}

func minElem(v r3.Vector) float64 {
	return math.Min(v.X, math.Min(v.Y, v.Z))
}

func argmax(v r3.Vector) int {
	if v.X >= v.Y && v.X >= v.Z {
		return 0
	}
	if v.Y >= v.Z {
		return 1
	}
	return 2
}

func octantOffset(o IVec) r3.Vector {
	return r3.Vector{
		X: float64(o.X*2 - 1),
		Y: float64(o.Y*2 - 1),
		Z: float64(o.Z*2 - 1),
	}
}

// computeOctant picks the starting octant; exactly on a boundary, the
// ray direction breaks the tie.
func computeOctant(pos, dirSign r3.Vector) IVec {
	var o IVec
	if pos.X > 0 || (pos.X == 0 && dirSign.X > 0) {
		o.X = 1
	}
	if pos.Y > 0 || (pos.Y == 0 && dirSign.Y > 0) {
		o.Y = 1
	}
	if pos.Z > 0 || (pos.Z == 0 && dirSign.Z > 0) {
		o.Z = 1
	}
	return o
}

// minTimeAxis returns the signed axis with the smallest crossing time,
// preferring x over y over z on ties.
func minTimeAxis(t, dirSign r3.Vector) Axis {
	i := 0
	switch {
	case t.X <= t.Y && t.X <= t.Z:
		i = 0
	case t.Y <= t.Z:
		i = 1
	default:
		i = 2
	}
	return AxisFrom(i, int(comp(dirSign, i)))
}
