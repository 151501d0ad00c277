package cube

// Coord addresses a node in the octree: Pos holds per-axis voxel
// coordinates in [0, 2^Depth), Depth counts subdivisions from the root.
type Coord struct {
	Pos   IVec
	Depth int
}

// Child returns the coordinate of the given octant one level down.
func (c Coord) Child(octant IVec) Coord {
	return Coord{Pos: c.Pos.Scale(2).Add(octant), Depth: c.Depth + 1}
}

// Octant extracts the child slot taken at the given level when
// descending from the root, level Depth-1 first.
func (c Coord) Octant(level int) IVec {
	return IVec{
		(c.Pos.X >> level) & 1,
		(c.Pos.Y >> level) & 1,
		(c.Pos.Z >> level) & 1,
	}
}
