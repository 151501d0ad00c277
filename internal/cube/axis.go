package cube

import "github.com/golang/geo/r3"

// Axis identifies one of the six signed axis directions. Raycasts use it
// for face normals and DDA stepping.
type Axis uint8

const (
	PosX Axis = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

var axisNames = [6]string{"+x", "-x", "+y", "-y", "+z", "-z"}

func (a Axis) String() string { return axisNames[a] }

// Index returns the axis index 0..2 (x, y, z).
func (a Axis) Index() int { return int(a) >> 1 }

// Sign returns +1 or -1.
func (a Axis) Sign() int { return 1 - (int(a)&1)*2 }

// Flip returns the opposite direction on the same axis.
func (a Axis) Flip() Axis { return a ^ 1 }

// AxisFrom builds an Axis from an index 0..2 and a nonzero sign.
func AxisFrom(index, sign int) Axis {
	a := Axis(index * 2)
	if sign < 0 {
		a++
	}
	return a
}

// Vec returns the unit vector for the axis direction.
func (a Axis) Vec() r3.Vector {
	return a.Set(r3.Vector{}, float64(a.Sign()))
}

// Set returns v with the component on this axis replaced.
func (a Axis) Set(v r3.Vector, val float64) r3.Vector {
	switch a.Index() {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
	return v
}

// Step moves an octant vector one cell along the axis.
func (a Axis) Step(o IVec) IVec {
	i := a.Index()
	return o.WithComp(i, o.Comp(i)+a.Sign())
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
