package bcf

import (
	"fmt"

	"voxelforge.dev/internal/cube"
)

// Header is the decoded 12-byte file header.
type Header struct {
	Magic      uint32
	Version    uint8
	RootOffset int
}

// NodeKind discriminates decoded node variants.
type NodeKind uint8

const (
	NodeInlineLeaf NodeKind = iota
	NodeExtendedLeaf
	NodeOctaLeaves
	NodeOctaPointers
)

// Node is one decoded BCF node. Value is set for leaves, Values for
// octant-of-leaves, Pointers and SSSS for octant-of-pointers.
type Node struct {
	Kind     NodeKind
	Value    uint8
	Values   [8]uint8
	SSSS     uint8
	Pointers [8]int
}

// Leaf reports whether the node is a single-material leaf.
func (n Node) Leaf() bool {
	return n.Kind == NodeInlineLeaf || n.Kind == NodeExtendedLeaf
}

// Reader decodes nodes straight out of a byte buffer. Every read is
// bounds-checked; the reader never allocates, so it is safe to use on
// untrusted data and in per-ray hot paths.
type Reader struct {
	data []byte
}

func NewReader(data []byte) *Reader { return &Reader{data: data} }

func (r *Reader) Len() int { return len(r.data) }

func (r *Reader) U8(offset int) (uint8, error) {
	if offset < 0 || offset >= len(r.data) {
		return 0, fmt.Errorf("%w: %d (size %d)", ErrInvalidOffset, offset, len(r.data))
	}
	return r.data[offset], nil
}

func (r *Reader) U16(offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(r.data) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, offset+2, len(r.data))
	}
	return uint16(r.data[offset]) | uint16(r.data[offset+1])<<8, nil
}

func (r *Reader) U32(offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(r.data) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, offset+4, len(r.data))
	}
	return uint32(r.data[offset]) |
		uint32(r.data[offset+1])<<8 |
		uint32(r.data[offset+2])<<16 |
		uint32(r.data[offset+3])<<24, nil
}

func (r *Reader) U64(offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(r.data) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, offset+8, len(r.data))
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(r.data[offset+i])
	}
	return v, nil
}

// Pointer reads a child offset of width 2^ssss bytes.
func (r *Reader) Pointer(offset int, ssss uint8) (int, error) {
	switch ssss {
	case 0:
		v, err := r.U8(offset)
		return int(v), err
	case 1:
		v, err := r.U16(offset)
		return int(v), err
	case 2:
		v, err := r.U32(offset)
		return int(v), err
	case 3:
		v, err := r.U64(offset)
		return int(v), err
	default:
		return 0, fmt.Errorf("%w: ssss=%d", ErrInvalidPointerSize, ssss)
	}
}

// DecodeTypeByte splits a type byte into its [M|TTT|SSSS] fields.
func DecodeTypeByte(b uint8) (extended bool, typeID, ssss uint8) {
	return b&msbMask != 0, (b >> 4) & 0x07, b & 0x0F
}

// ReadHeader validates magic, version and root offset.
func (r *Reader) ReadHeader() (Header, error) {
	if len(r.data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, HeaderSize, len(r.data))
	}
	magic, err := r.U32(0)
	if err != nil {
		return Header{}, err
	}
	if magic != Magic {
		return Header{}, fmt.Errorf("%w: expected 0x%08X, found 0x%08X", ErrInvalidMagic, Magic, magic)
	}
	version, err := r.U8(4)
	if err != nil {
		return Header{}, err
	}
	if version != Version {
		return Header{}, fmt.Errorf("%w: 0x%02X", ErrUnsupportedVersion, version)
	}
	rootOffset, err := r.U32(8)
	if err != nil {
		return Header{}, err
	}
	if int(rootOffset) >= len(r.data) {
		return Header{}, fmt.Errorf("%w: root %d (size %d)", ErrInvalidOffset, rootOffset, len(r.data))
	}
	return Header{Magic: magic, Version: version, RootOffset: int(rootOffset)}, nil
}

// ReadNodeAt decodes the node starting at offset.
func (r *Reader) ReadNodeAt(offset int) (Node, error) {
	typeByte, err := r.U8(offset)
	if err != nil {
		return Node{}, err
	}

	extended, typeID, ssss := DecodeTypeByte(typeByte)
	if !extended {
		return Node{Kind: NodeInlineLeaf, Value: typeByte & valueMask}, nil
	}

	switch typeID {
	case typeExtendedLeaf:
		v, err := r.U8(offset + 1)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: NodeExtendedLeaf, Value: v}, nil

	case typeOctaLeaves:
		n := Node{Kind: NodeOctaLeaves}
		for i := 0; i < 8; i++ {
			v, err := r.U8(offset + 1 + i)
			if err != nil {
				return Node{}, err
			}
			n.Values[i] = v
		}
		return n, nil

	case typeOctaPointers:
		width := 1 << ssss
		n := Node{Kind: NodeOctaPointers, SSSS: ssss}
		for i := 0; i < 8; i++ {
			p, err := r.Pointer(offset+1+i*width, ssss)
			if err != nil {
				return Node{}, err
			}
			if p >= len(r.data) {
				return Node{}, fmt.Errorf("%w: child %d (size %d)", ErrInvalidOffset, p, len(r.data))
			}
			n.Pointers[i] = p
		}
		return n, nil

	default:
		return Node{}, fmt.Errorf("%w: type %d at offset %d", ErrInvalidType, typeID, offset)
	}
}

// Unmarshal parses BCF data back into a tree. Subdivided regions that
// encode eight identical leaves come back collapsed, matching the tree
// invariant.
func Unmarshal(data []byte) (*cube.Cube, error) {
	r := NewReader(data)
	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	return parseAt(r, h.RootOffset, 0)
}

func parseAt(r *Reader, offset, depth int) (*cube.Cube, error) {
	if depth >= MaxRecursionDepth {
		return nil, fmt.Errorf("%w: max depth %d", ErrRecursionLimit, MaxRecursionDepth)
	}
	node, err := r.ReadNodeAt(offset)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case NodeInlineLeaf, NodeExtendedLeaf:
		return cube.Solid(node.Value), nil

	case NodeOctaLeaves:
		var kids [8]*cube.Cube
		for i, v := range node.Values {
			kids[i] = cube.Solid(v)
		}
		return cube.Octants(kids), nil

	default:
		var kids [8]*cube.Cube
		for i, p := range node.Pointers {
			child, err := parseAt(r, p, depth+1)
			if err != nil {
				return nil, err
			}
			kids[i] = child
		}
		return cube.Octants(kids), nil
	}
}
