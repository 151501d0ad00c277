package bcf

import (
	"math"

	"github.com/golang/geo/r3"
	"voxelforge.dev/internal/cube"
)

// traceStackSize bounds the explicit traversal stack. The raycast is
// iterative so it can be mirrored in shader code with no recursion;
// overflowing rays surface as ErrorMaterial hits.
const traceStackSize = 16

// traversalState is one pending node on the traversal stack. The ray
// origin is kept in the node's own [-1,1]³ local space; direction is
// shared across levels.
type traversalState struct {
	offset int
	origin r3.Vector
	normal cube.Axis
	at     cube.Coord
}

// Raycast walks serialized BCF data from origin along dir without
// decoding the tree, returning the first non-empty voxel. Semantics
// match cube.Raycast on the same tree; malformed data is a miss (use
// Unmarshal or ReadHeader to surface codec errors).
func Raycast(data []byte, origin, dir r3.Vector) (cube.Hit, bool) {
	return RaycastLimits(data, origin, dir, cube.DefaultTraceLimits())
}

func RaycastLimits(data []byte, origin, dir r3.Vector, lim cube.TraceLimits) (cube.Hit, bool) {
	if dir == (r3.Vector{}) {
		return cube.Hit{}, false
	}

	r := NewReader(data)
	header, err := r.ReadHeader()
	if err != nil {
		return cube.Hit{}, false
	}

	dirSign := signVec(dir)

	if maxElem(absVec(origin)) > 1 {
		origin2, ok := clipToRoot(origin, dir, dirSign)
		if !ok {
			return cube.Hit{}, false
		}
		origin = origin2
	}

	t := &bufTracer{r: r, lim: lim}

	absDir := absVec(dir)
	if i, ok := dominantAxis(absDir); ok {
		axis := cube.AxisFrom(i, int(comp(dirSign, i)))
		return t.traceAxis(header.RootOffset, origin, axis, cube.Coord{})
	}

	return t.trace(header.RootOffset, origin, dir, entryNormal(origin, absDir, dirSign))
}

type bufTracer struct {
	r     *Reader
	lim   cube.TraceLimits
	steps int
}

func (t *bufTracer) overBudget() bool {
	t.steps++
	return t.steps > t.lim.MaxSteps
}

func errorHit(at cube.Coord, normal cube.Axis, origin r3.Vector) cube.Hit {
	return cube.Hit{Coord: at, Value: cube.ErrorMaterial, Normal: normal, Pos: origin}
}

// trace is the general DDA traversal: pop a node, scan the octants the
// ray crosses, push non-trivial children in reverse order so the
// closest pops first.
func (t *bufTracer) trace(rootOffset int, origin, dir r3.Vector, normal cube.Axis) (cube.Hit, bool) {
	var stack [traceStackSize]traversalState
	stack[0] = traversalState{offset: rootOffset, origin: origin, normal: normal}
	sp := 1

	for sp > 0 {
		sp--
		st := stack[sp]

		if t.overBudget() {
			return errorHit(st.at, st.normal, st.origin), true
		}

		node, err := t.r.ReadNodeAt(st.offset)
		if err != nil {
			return cube.Hit{}, false
		}

		switch {
		case node.Leaf():
			if node.Value != cube.Empty {
				return cube.Hit{Coord: st.at, Value: node.Value, Normal: st.normal, Pos: st.origin}, true
			}

		case st.at.Depth >= t.lim.MaxDepth:
			if v := t.repValue(node); v != cube.Empty {
				return cube.Hit{Coord: st.at, Value: v, Normal: st.normal, Pos: st.origin}, true
			}

		case node.Kind == NodeOctaLeaves:
			if hit, ok := t.scanLeaves(node, st, dir); ok {
				return hit, true
			}

		default:
			overflow, hit := t.scanPointers(node, st, dir, stack[:], &sp)
			if overflow {
				return hit, true
			}
		}
	}

	return cube.Hit{}, false
}

// scanLeaves runs the DDA across an octant-of-leaves node.
func (t *bufTracer) scanLeaves(node Node, st traversalState, dir r3.Vector) (cube.Hit, bool) {
	dirSign := signVec(dir)
	octant := computeOctant(st.origin, dirSign)
	origin := st.origin
	normal := st.normal

	for {
		if v := node.Values[cube.OctantIndex(octant)]; v != cube.Empty {
			return cube.Hit{
				Coord:  st.at.Child(octant),
				Value:  v,
				Normal: normal,
				Pos:    origin.Mul(2).Sub(octantOffset(octant)),
			}, true
		}

		var exit cube.Axis
		origin, octant, exit = ddaStep(origin, dir, dirSign, octant)
		normal = exit.Flip()

		if c := octant.Comp(exit.Index()); c < 0 || c > 1 {
			return cube.Hit{}, false
		}
	}
}

// scanPointers collects the children the ray crosses, in crossing
// order, and pushes them reversed. Returns overflow=true with an
// ErrorMaterial hit when the stack is full.
func (t *bufTracer) scanPointers(node Node, st traversalState, dir r3.Vector, stack []traversalState, sp *int) (bool, cube.Hit) {
	dirSign := signVec(dir)
	octant := computeOctant(st.origin, dirSign)
	origin := st.origin
	normal := st.normal

	var pending [8]traversalState
	count := 0

	for {
		if offset := node.Pointers[cube.OctantIndex(octant)]; offset > 0 {
			pending[count] = traversalState{
				offset: offset,
				origin: origin.Mul(2).Sub(octantOffset(octant)),
				normal: normal,
				at:     st.at.Child(octant),
			}
			count++
		}

		var exit cube.Axis
		origin, octant, exit = ddaStep(origin, dir, dirSign, octant)
		normal = exit.Flip()

		if c := octant.Comp(exit.Index()); c < 0 || c > 1 {
			break
		}
	}

	for i := count - 1; i >= 0; i-- {
		if *sp >= traceStackSize {
			return true, errorHit(st.at, normal, st.origin)
		}
		stack[*sp] = pending[i]
		*sp++
	}
	return false, cube.Hit{}
}

// ddaStep advances the ray to the next octant boundary and snaps the
// crossed component onto the boundary plane (-1, 0 or 1).
func ddaStep(origin, dir, dirSign r3.Vector, octant cube.IVec) (r3.Vector, cube.IVec, cube.Axis) {
	adjusted := origin
	if origin.X*dirSign.X >= 0 {
		adjusted.X -= dirSign.X
	}
	if origin.Y*dirSign.Y >= 0 {
		adjusted.Y -= dirSign.Y
	}
	if origin.Z*dirSign.Z >= 0 {
		adjusted.Z -= dirSign.Z
	}
	time := compDiv(absVec(adjusted), absVec(dir))

	exit := minTimeAxis(time, dirSign)
	i := exit.Index()

	origin = origin.Add(dir.Mul(comp(time, i)))
	octant = exit.Step(octant)
	boundary := float64(octant.Comp(i)) - float64(exit.Sign()+1)*0.5
	origin = exit.Set(origin, boundary)

	return origin, octant, exit
}

// traceAxis handles axis-aligned rays: octant stepping degenerates to
// walking one axis, so no exit-time math is needed.
func (t *bufTracer) traceAxis(offset int, origin r3.Vector, axis cube.Axis, at cube.Coord) (cube.Hit, bool) {
	if t.overBudget() {
		return errorHit(at, axis.Flip(), origin), true
	}

	node, err := t.r.ReadNodeAt(offset)
	if err != nil {
		return cube.Hit{}, false
	}

	if node.Leaf() {
		if node.Value != cube.Empty {
			return cube.Hit{Coord: at, Value: node.Value, Normal: axis.Flip(), Pos: origin}, true
		}
		return cube.Hit{}, false
	}

	if at.Depth >= t.lim.MaxDepth {
		if v := t.repValue(node); v != cube.Empty {
			return cube.Hit{Coord: at, Value: v, Normal: axis.Flip(), Pos: origin}, true
		}
		return cube.Hit{}, false
	}

	i := axis.Index()
	s := axis.Sign()
	octant := computeOctant(origin, axis.Vec())

	for {
		idx := cube.OctantIndex(octant)

		if node.Kind == NodeOctaLeaves {
			if v := node.Values[idx]; v != cube.Empty {
				return cube.Hit{
					Coord:  at.Child(octant),
					Value:  v,
					Normal: axis.Flip(),
					Pos:    origin.Mul(2).Sub(octantOffset(octant)),
				}, true
			}
		} else if childOffset := node.Pointers[idx]; childOffset > 0 {
			childOrigin := origin.Mul(2).Sub(octantOffset(octant))
			if hit, ok := t.traceAxis(childOffset, childOrigin, axis, at.Child(octant)); ok {
				return hit, true
			}
		}

		octant = octant.WithComp(i, octant.Comp(i)+s)
		c := octant.Comp(i)
		origin = axis.Set(origin, float64(c)-float64(s+1)*0.5)

		if c < 0 || c > 1 {
			return cube.Hit{}, false
		}
	}
}

// repValue resolves the representative material of an octa node by
// chasing octant 0, mirroring Cube.Rep on the serialized form.
func (t *bufTracer) repValue(node Node) uint8 {
	for depth := 0; depth < MaxRecursionDepth; depth++ {
		switch node.Kind {
		case NodeInlineLeaf, NodeExtendedLeaf:
			return node.Value
		case NodeOctaLeaves:
			return node.Values[0]
		default:
			next, err := t.r.ReadNodeAt(node.Pointers[0])
			if err != nil {
				return cube.Empty
			}
			node = next
		}
	}
	return cube.Empty
}

// ----------------------------------------------------------------------------
// ray setup helpers, mirrored from the tree traversal so both paths do
// the exact same arithmetic

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

func entryNormal(origin, absDir, dirSign r3.Vector) cube.Axis {
	absOrigin := absVec(origin)
	if math.Abs(maxElem(absOrigin)-1) < 1e-5 {
		switch {
		case math.Abs(absOrigin.X-1) < 1e-5:
			return cube.AxisFrom(0, signOf(origin.X))
		case math.Abs(absOrigin.Y-1) < 1e-5:
			return cube.AxisFrom(1, signOf(origin.Y))
		default:
			return cube.AxisFrom(2, signOf(origin.Z))
		}
	}
	i := argmax(absDir)
	return cube.AxisFrom(i, -int(comp(dirSign, i)))
}

func computeOctant(pos, dirSign r3.Vector) cube.IVec {
	var o cube.IVec
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

func minTimeAxis(t, dirSign r3.Vector) cube.Axis {
	i := 0
	switch {
	case t.X <= t.Y && t.X <= t.Z:
		i = 0
	case t.Y <= t.Z:
		i = 1
	default:
		i = 2
	}
	return cube.AxisFrom(i, int(comp(dirSign, i)))
}

func octantOffset(o cube.IVec) r3.Vector {
	return r3.Vector{
		X: float64(o.X*2 - 1),
		Y: float64(o.Y*2 - 1),
		Z: float64(o.Z*2 - 1),
	}
}

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

func compDiv(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: a.X / b.X, Y: a.Y / b.Y, Z: a.Z / b.Z}
}

func comp(v r3.Vector, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
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
