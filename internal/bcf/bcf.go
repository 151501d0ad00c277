// Package bcf implements the Binary Cube Format, a compact octree
// encoding built for zero-copy traversal: raycasts run directly over
// the serialized bytes without decoding the tree.
//
// Layout:
//
//	[Header: 12 bytes]
//	  magic 'BCF1' (u32 LE), version, 3 reserved bytes, root offset (u32 LE)
//	[Nodes: variable]
//
// Every node starts with a type byte [M|TTT|SSSS]. MSB clear means an
// inline leaf carrying its material in the low 7 bits. MSB set selects
// an extended type: extended leaf (one value byte), octant-of-leaves
// (8 value bytes), or octant-of-pointers (8 absolute child offsets of
// 2^SSSS bytes each, little-endian). Types 3-7 are reserved.
package bcf

import "errors"

const (
	// Magic spells 'BCF1'; the header stores it as a little-endian u32.
	Magic   uint32 = 0x42434631
	Version uint8  = 0x01

	HeaderSize = 12

	// MaxRecursionDepth bounds nested octants when decoding, so cyclic
	// or adversarial pointer graphs cannot blow the stack.
	MaxRecursionDepth = 64
)

// Type byte fields.
const (
	msbMask   = 0x80
	valueMask = 0x7F

	typeExtendedLeaf = 0
	typeOctaLeaves   = 1
	typeOctaPointers = 2

	extendedLeafBase = 0x80
	octaLeavesBase   = 0x90
	octaPointersBase = 0xA0
)

var (
	ErrInvalidMagic       = errors.New("bcf: invalid magic")
	ErrUnsupportedVersion = errors.New("bcf: unsupported version")
	ErrInvalidType        = errors.New("bcf: reserved node type")
	ErrInvalidPointerSize = errors.New("bcf: invalid pointer size")
	ErrTruncated          = errors.New("bcf: truncated data")
	ErrInvalidOffset      = errors.New("bcf: offset out of bounds")
	ErrRecursionLimit     = errors.New("bcf: recursion limit exceeded")
)
