package bcf

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"voxelforge.dev/internal/cube"
)

func vecNear(a, b r3.Vector, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps
}

func parityScenes() map[string]*cube.Cube {
	return map[string]*cube.Cube{
		"solid": cube.Solid(5),
		"empty": cube.Solid(cube.Empty),
		"single voxel": cube.Solid(cube.Empty).
			SetVoxel(cube.IVec{X: 1, Y: 1, Z: 1}, 1, 3),
		"two voxels": cube.Solid(cube.Empty).
			SetVoxel(cube.IVec{X: 0, Y: 1, Z: 1}, 1, 2).
			SetVoxel(cube.IVec{X: 1, Y: 1, Z: 1}, 1, 3),
		"eight colors": eightColorCube(),
		"sparse depth 2": cube.Solid(cube.Empty).
			SetVoxel(cube.IVec{X: 0, Y: 0, Z: 0}, 2, 1).
			SetVoxel(cube.IVec{X: 3, Y: 2, Z: 1}, 2, 2).
			SetVoxel(cube.IVec{X: 2, Y: 2, Z: 2}, 2, 4),
		"depth 3 extended materials": cube.Solid(cube.Empty).
			SetVoxel(cube.IVec{X: 0, Y: 0, Z: 0}, 3, 130).
			SetVoxel(cube.IVec{X: 7, Y: 4, Z: 2}, 3, 200).
			SetVoxel(cube.IVec{X: 3, Y: 3, Z: 3}, 3, 6),
	}
}

// eightColorCube is the canonical depth-1 render fixture: six distinct
// materials plus two empty octants, one material per child slot.
func eightColorCube() *cube.Cube {
	var kids [8]*cube.Cube
	for i, v := range eightColorValues() {
		kids[i] = cube.Solid(v)
	}
	return cube.Octants(kids)
}

func eightColorValues() [8]uint8 {
	// red, cyan, green, blue, white, yellow, empty, empty
	return [8]uint8{1, 2, 3, 4, 5, 6, 0, 0}
}

func parityRays() []struct{ origin, dir r3.Vector } {
	rays := []struct{ origin, dir r3.Vector }{
		// General rays from outside and inside.
		{r3.Vector{X: -2, Y: 0.1, Z: 0.2}, r3.Vector{X: 1, Y: 0.3, Z: 0.2}},
		{r3.Vector{X: 1.8, Y: -0.4, Z: 0.6}, r3.Vector{X: -1, Y: 0.2, Z: -0.5}},
		{r3.Vector{X: 0.3, Y: -1.9, Z: -0.2}, r3.Vector{X: -0.2, Y: 1, Z: 0.4}},
		{r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}, r3.Vector{X: 0.5, Y: -0.8, Z: 0.3}},
		{r3.Vector{X: -0.9, Y: -0.9, Z: -0.9}, r3.Vector{X: 0.8, Y: 0.7, Z: 0.9}},
		// Rays exactly on octant boundary planes.
		{r3.Vector{X: -2, Y: 0, Z: 0}, r3.Vector{X: 1}},
		{r3.Vector{X: 2, Y: 0, Z: 0.5}, r3.Vector{X: -1}},
		{r3.Vector{X: 0, Y: 0, Z: -2}, r3.Vector{Z: 1}},
		{r3.Vector{X: -2, Y: -2, Z: 0}, r3.Vector{X: 1, Y: 1}},
		{r3.Vector{X: -2, Y: 0, Z: 0.5}, r3.Vector{X: 1, Z: 0.3}},
		{r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0.5, Z: 0.25}},
		// Origins exactly on an outer face.
		{r3.Vector{X: -1, Y: 0.5, Z: 0.5}, r3.Vector{X: 1, Y: 0.2, Z: 0.1}},
		{r3.Vector{X: 1, Y: -0.5, Z: 0.25}, r3.Vector{X: -1}},
		{r3.Vector{X: 0.5, Y: 0.5, Z: 1}, r3.Vector{X: -0.3, Y: -0.2, Z: -1}},
		// Misses.
		{r3.Vector{X: -2, Y: 5, Z: 0}, r3.Vector{X: 1, Y: 0.1, Z: 0.2}},
		{r3.Vector{X: 2, Y: 2, Z: 2}, r3.Vector{X: 1, Y: 1, Z: 0.5}},
	}
	// Axis-aligned scan planes on all six directions, including scans
	// riding the boundary planes at offset 0.
	offsets := []float64{-0.75, -0.25, 0, 0.25, 0.75}
	for _, a := range offsets {
		for _, b := range offsets {
			rays = append(rays,
				struct{ origin, dir r3.Vector }{r3.Vector{X: -2, Y: a, Z: b}, r3.Vector{X: 1}},
				struct{ origin, dir r3.Vector }{r3.Vector{X: 2, Y: a, Z: b}, r3.Vector{X: -1}},
				struct{ origin, dir r3.Vector }{r3.Vector{X: a, Y: -2, Z: b}, r3.Vector{Y: 1}},
				struct{ origin, dir r3.Vector }{r3.Vector{X: a, Y: 2, Z: b}, r3.Vector{Y: -1}},
				struct{ origin, dir r3.Vector }{r3.Vector{X: a, Y: b, Z: -2}, r3.Vector{Z: 1}},
				struct{ origin, dir r3.Vector }{r3.Vector{X: a, Y: b, Z: 2}, r3.Vector{Z: -1}},
			)
		}
	}
	return rays
}

// The buffer traversal must agree with the tree traversal on hit,
// value, coordinate, normal and position for every scene and ray.
func TestBufferMatchesTreeTraversal(t *testing.T) {
	for name, root := range parityScenes() {
		data := Marshal(root)
		for n, ray := range parityRays() {
			treeHit, treeOK := cube.Raycast(root, ray.origin, ray.dir)
			bufHit, bufOK := Raycast(data, ray.origin, ray.dir)

			if treeOK != bufOK {
				t.Errorf("%s ray %d: tree hit=%v, buffer hit=%v", name, n, treeOK, bufOK)
				continue
			}
			if !treeOK {
				continue
			}
			if bufHit.Value != treeHit.Value {
				t.Errorf("%s ray %d: value %d vs %d", name, n, bufHit.Value, treeHit.Value)
			}
			if bufHit.Coord != treeHit.Coord {
				t.Errorf("%s ray %d: coord %+v vs %+v", name, n, bufHit.Coord, treeHit.Coord)
			}
			if bufHit.Normal != treeHit.Normal {
				t.Errorf("%s ray %d: normal %v vs %v", name, n, bufHit.Normal, treeHit.Normal)
			}
			if !vecNear(bufHit.Pos, treeHit.Pos, 1e-12) {
				t.Errorf("%s ray %d: pos %v vs %v", name, n, bufHit.Pos, treeHit.Pos)
			}
		}
	}
}

// Each octant of the eight-color cube is shot head-on through its
// center; the hit must report that octant's material and the face
// looking back at the camera. The two empty octants sit on the same z
// column, so rays at their centers pass through and miss.
func TestEightColorOctantCenters(t *testing.T) {
	values := eightColorValues()
	root := eightColorCube()
	data := Marshal(root)

	for i := 0; i < 8; i++ {
		o := cube.OctantAt(i)
		sz := o.Z*2 - 1
		origin := r3.Vector{
			X: float64(o.X) - 0.5,
			Y: float64(o.Y) - 0.5,
			Z: float64(2 * sz),
		}
		dir := r3.Vector{Z: float64(-sz)}

		treeHit, treeOK := cube.Raycast(root, origin, dir)
		bufHit, bufOK := Raycast(data, origin, dir)

		if treeOK != bufOK {
			t.Fatalf("octant %d: tree hit=%v, buffer hit=%v", i, treeOK, bufOK)
		}
		if values[i] == cube.Empty {
			if bufOK {
				t.Errorf("octant %d: expected miss through empty column, got %+v", i, bufHit)
			}
			continue
		}
		if !bufOK {
			t.Fatalf("octant %d: expected hit", i)
		}
		if bufHit.Value != values[i] || treeHit.Value != values[i] {
			t.Errorf("octant %d: value buffer=%d tree=%d, want %d", i, bufHit.Value, treeHit.Value, values[i])
		}
		wantCoord := cube.Coord{Pos: o, Depth: 1}
		if bufHit.Coord != wantCoord || treeHit.Coord != wantCoord {
			t.Errorf("octant %d: coord buffer=%+v tree=%+v, want %+v", i, bufHit.Coord, treeHit.Coord, wantCoord)
		}
		wantNormal := cube.AxisFrom(2, sz)
		if bufHit.Normal != wantNormal || treeHit.Normal != wantNormal {
			t.Errorf("octant %d: normal buffer=%v tree=%v, want %v", i, bufHit.Normal, treeHit.Normal, wantNormal)
		}
	}
}

func TestBufferRaycastBasics(t *testing.T) {
	data := Marshal(cube.Solid(cube.Empty).SetVoxel(cube.IVec{X: 1, Y: 1, Z: 1}, 1, 3))

	hit, ok := Raycast(data, r3.Vector{X: -2, Y: 0.5, Z: 0.5}, r3.Vector{X: 1})
	if !ok || hit.Value != 3 {
		t.Fatalf("got %+v/%v, want value 3", hit, ok)
	}
	if hit.Coord != (cube.Coord{Pos: cube.IVec{X: 1, Y: 1, Z: 1}, Depth: 1}) {
		t.Errorf("coord = %+v", hit.Coord)
	}
	if hit.Normal != cube.NegX {
		t.Errorf("normal = %v", hit.Normal)
	}

	if _, ok := Raycast(data, r3.Vector{X: -2, Y: 0.5, Z: 0.5}, r3.Vector{}); ok {
		t.Error("zero direction must miss")
	}
	if _, ok := Raycast(data, r3.Vector{X: -2, Y: 5, Z: 5}, r3.Vector{X: 1}); ok {
		t.Error("ray outside bounds must miss")
	}
}

func TestBufferRaycastMalformedDataMisses(t *testing.T) {
	if _, ok := Raycast([]byte("garbage"), r3.Vector{X: -2}, r3.Vector{X: 1}); ok {
		t.Error("malformed data must miss")
	}
	data := Marshal(cube.Solid(5))
	if _, ok := Raycast(data[:8], r3.Vector{X: -2}, r3.Vector{X: 1}); ok {
		t.Error("truncated header must miss")
	}
}

func TestBufferDepthLimit(t *testing.T) {
	data := Marshal(cube.Solid(cube.Empty).SetVoxel(cube.IVec{X: 0, Y: 0, Z: 0}, 4, 9))
	origin := r3.Vector{X: -2, Y: -0.95, Z: -0.95}
	dir := r3.Vector{X: 1}

	hit, ok := Raycast(data, origin, dir)
	if !ok || hit.Coord.Depth != 4 {
		t.Fatalf("unlimited: got %+v/%v, want hit at depth 4", hit, ok)
	}

	hit, ok = RaycastLimits(data, origin, dir, cube.TraceLimits{MaxDepth: 2, MaxSteps: 1024})
	if !ok || hit.Coord.Depth != 2 || hit.Value != 9 {
		t.Fatalf("limited: got %+v/%v, want representative 9 at depth 2", hit, ok)
	}
}

func TestBufferStepLimitReturnsErrorMaterial(t *testing.T) {
	data := Marshal(cube.Solid(cube.Empty).SetVoxel(cube.IVec{X: 3, Y: 2, Z: 1}, 2, 2))

	hit, ok := RaycastLimits(data,
		r3.Vector{X: -2, Y: 0.1, Z: 0.2},
		r3.Vector{X: 1, Y: 0.4, Z: 0.3},
		cube.TraceLimits{MaxDepth: 16, MaxSteps: 1})
	if !ok {
		t.Fatal("exhausted trace should surface as a hit")
	}
	if hit.Value != cube.ErrorMaterial {
		t.Errorf("value = %d, want error material %d", hit.Value, cube.ErrorMaterial)
	}
}
