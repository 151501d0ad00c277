package cube

// Material 0 is empty space; renderers substitute ErrorMaterial when a
// traversal limit trips mid-ray.
const (
	Empty         uint8 = 0
	ErrorMaterial uint8 = 7
)

// Cube is an immutable sparse voxel octree node: either solid (one
// material filling the whole region) or subdivided into eight children.
// Nodes are shared freely between trees; Update rebuilds only the path
// it touches and reuses everything else.
//
// Invariant: a subdivided node never has eight identical solid children.
// Octants collapses that case, so equal regions have equal structure.
type Cube struct {
	value    uint8
	children *[8]*Cube
}

var solids [256]Cube

func init() {
	for i := range solids {
		solids[i].value = uint8(i)
	}
}

// Solid returns the node representing a uniform region of material v.
func Solid(v uint8) *Cube { return &solids[v] }

// Octants builds a subdivided node from eight children, collapsing to a
// solid when all eight are the same solid. Children must be non-nil.
func Octants(children [8]*Cube) *Cube {
	first := children[0]
	if first == nil {
		panic("cube: nil octant")
	}
	collapse := first.children == nil
	for _, c := range children[1:] {
		if c == nil {
			panic("cube: nil octant")
		}
		if c != first {
			collapse = false
		}
	}
	if collapse {
		return first
	}
	cs := children
	return &Cube{children: &cs}
}

// IsLeaf reports whether the node is solid.
func (c *Cube) IsLeaf() bool { return c.children == nil }

// Value returns the material of a solid node; ok is false for
// subdivided nodes.
func (c *Cube) Value() (v uint8, ok bool) {
	if c.children != nil {
		return 0, false
	}
	return c.value, true
}

// Child returns the child in the given slot, or nil for solid nodes.
func (c *Cube) Child(i int) *Cube {
	if c.children == nil {
		return nil
	}
	return c.children[i]
}

// Rep returns a representative material for the region: the value of a
// solid node, or the representative of octant 0 otherwise. Raycasts use
// it when a depth limit stops descent.
func (c *Cube) Rep() uint8 {
	for c.children != nil {
		c = c.children[0]
	}
	return c.value
}

// Get resolves a coordinate to the node covering it. When a solid node
// is reached before Depth levels, that node is returned: it covers the
// whole addressed region.
func (c *Cube) Get(at Coord) *Cube {
	for level := at.Depth - 1; level >= 0; level-- {
		if c.children == nil {
			return c
		}
		c = c.children[OctantIndex(at.Octant(level))]
	}
	return c
}

// ValueAt is Get followed by Rep.
func (c *Cube) ValueAt(at Coord) uint8 { return c.Get(at).Rep() }

// Update returns a new tree with the region at the coordinate replaced
// by sub. The original tree is unchanged; untouched subtrees are shared
// between old and new. Collapse runs bottom-up along the rebuilt path.
func (c *Cube) Update(at Coord, sub *Cube) *Cube {
	if at.Depth == 0 {
		return sub
	}
	level := at.Depth - 1
	idx := OctantIndex(at.Octant(level))
	var kids [8]*Cube
	if c.children != nil {
		kids = *c.children
	} else {
		for i := range kids {
			kids[i] = Solid(c.value)
		}
	}
	kids[idx] = kids[idx].Update(Coord{Pos: at.Pos, Depth: level}, sub)
	return Octants(kids)
}

// SetVoxel replaces a single voxel at the given depth.
func (c *Cube) SetVoxel(pos IVec, depth int, v uint8) *Cube {
	return c.Update(Coord{Pos: pos, Depth: depth}, Solid(v))
}

// Simplify normalizes a tree built outside this package so it satisfies
// the collapse invariant. Trees built through Octants are already
// normalized.
func (c *Cube) Simplify() *Cube {
	if c.children == nil {
		return c
	}
	var kids [8]*Cube
	for i, ch := range c.children {
		kids[i] = ch.Simplify()
	}
	return Octants(kids)
}

// Voxel pairs a lattice position with a material.
type Voxel struct {
	Pos      IVec
	Material uint8
}

// FromVoxels builds a tree of the given depth from point voxels.
// Unlisted positions are empty; on duplicates the first entry wins.
func FromVoxels(voxels []Voxel, depth int) *Cube {
	if depth == 0 {
		if len(voxels) == 0 {
			return Solid(Empty)
		}
		return Solid(voxels[0].Material)
	}
	level := depth - 1
	var buckets [8][]Voxel
	for _, v := range voxels {
		i := OctantIndex(IVec{
			(v.Pos.X >> level) & 1,
			(v.Pos.Y >> level) & 1,
			(v.Pos.Z >> level) & 1,
		})
		buckets[i] = append(buckets[i], v)
	}
	var kids [8]*Cube
	for i := range kids {
		kids[i] = FromVoxels(buckets[i], level)
	}
	return Octants(kids)
}

// Equal reports structural equality. Shared subtrees compare by pointer
// first, so comparing a tree against its own update is cheap.
func Equal(a, b *Cube) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.children == nil || b.children == nil {
		if a.children != nil || b.children != nil {
			return false
		}
		return a.value == b.value
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

// MaxDepth returns the deepest subdivision level in the tree.
func (c *Cube) MaxDepth() int {
	if c.children == nil {
		return 0
	}
	max := 0
	for _, ch := range c.children {
		if d := ch.MaxDepth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Materials returns the set of materials appearing in the tree, in
// ascending order.
func (c *Cube) Materials() []uint8 {
	var seen [256]bool
	c.collectMaterials(&seen)
	var out []uint8
	for i, ok := range seen {
		if ok {
			out = append(out, uint8(i))
		}
	}
	return out
}

func (c *Cube) collectMaterials(seen *[256]bool) {
	if c.children == nil {
		seen[c.value] = true
		return
	}
	for _, ch := range c.children {
		ch.collectMaterials(seen)
	}
}

// VisitLeaves calls visit for every solid node with its coordinate. A
// leaf above the bottom of the tree is visited once at its own depth.
func (c *Cube) VisitLeaves(visit func(Coord, uint8)) {
	c.visitLeaves(Coord{}, visit)
}

func (c *Cube) visitLeaves(at Coord, visit func(Coord, uint8)) {
	if c.children == nil {
		visit(at, c.value)
		return
	}
	for i, ch := range c.children {
		ch.visitLeaves(at.Child(OctantAt(i)), visit)
	}
}

// CountNodes returns the total node count and the leaf count, counting
// shared subtrees once per occurrence.
func (c *Cube) CountNodes() (total, leaves int) {
	if c.children == nil {
		return 1, 1
	}
	total = 1
	for _, ch := range c.children {
		t, l := ch.CountNodes()
		total += t
		leaves += l
	}
	return total, leaves
}
