package cube

// IVec is an integer lattice vector. Octant vectors use components in
// {0,1}; voxel positions at depth d use components in [0, 2^d).
type IVec struct {
	X, Y, Z int
}

func (v IVec) Add(o IVec) IVec {
	return IVec{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v IVec) Scale(s int) IVec {
	return IVec{v.X * s, v.Y * s, v.Z * s}
}

// Comp returns the component selected by axis index 0..2.
func (v IVec) Comp(i int) int {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WithComp returns a copy with the selected component replaced.
func (v IVec) WithComp(i, val int) IVec {
	switch i {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
	return v
}

// OctantIndex maps an octant vector (components in {0,1}) to its child
// slot. Bit order is fixed: x*4 + y*2 + z.
func OctantIndex(o IVec) int {
	return o.X*4 + o.Y*2 + o.Z
}

// OctantAt is the inverse of OctantIndex.
func OctantAt(i int) IVec {
	return IVec{(i >> 2) & 1, (i >> 1) & 1, i & 1}
}
