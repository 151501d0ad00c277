package bcf

import (
	"encoding/binary"

	"voxelforge.dev/internal/cube"
)

// Marshal encodes a tree to BCF. Nodes are written parent-first in
// fixed octant order, so equal trees always produce identical bytes.
func Marshal(c *cube.Cube) []byte {
	e := encoder{buf: make([]byte, HeaderSize)}
	root := e.writeNode(c)
	binary.LittleEndian.PutUint32(e.buf[0:4], Magic)
	e.buf[4] = Version
	binary.LittleEndian.PutUint32(e.buf[8:12], uint32(root))
	return e.buf
}

// encoder appends nodes to buf; base is where buf lands in the final
// file, so child pointers can be absolute before the buffers are
// stitched together.
type encoder struct {
	buf  []byte
	base int
}

func (e *encoder) writeNode(c *cube.Cube) int {
	if v, ok := c.Value(); ok {
		return e.writeLeaf(v)
	}
	for i := 0; i < 8; i++ {
		if !c.Child(i).IsLeaf() {
			return e.writeOctaPointers(c)
		}
	}
	return e.writeOctaLeaves(c)
}

func (e *encoder) writeLeaf(v uint8) int {
	offset := e.base + len(e.buf)
	if v <= valueMask {
		e.buf = append(e.buf, v)
	} else {
		e.buf = append(e.buf, extendedLeafBase, v)
	}
	return offset
}

func (e *encoder) writeOctaLeaves(c *cube.Cube) int {
	offset := e.base + len(e.buf)
	e.buf = append(e.buf, octaLeavesBase)
	for i := 0; i < 8; i++ {
		v, _ := c.Child(i).Value()
		e.buf = append(e.buf, v)
	}
	return offset
}

func (e *encoder) writeOctaPointers(c *cube.Cube) int {
	node := e.base + len(e.buf)

	// Smallest pointer width that can address every child. Widening
	// only pushes children further out, so the first width where all
	// offsets fit is the answer.
	for ssss := 0; ; ssss++ {
		width := 1 << ssss
		childBase := node + 1 + 8*width

		ce := encoder{base: childBase}
		var offsets [8]int
		for i := 0; i < 8; i++ {
			offsets[i] = ce.writeNode(c.Child(i))
		}

		if ssss < 3 {
			fits := true
			for _, o := range offsets {
				if uint64(o) > maxPointer(ssss) {
					fits = false
					break
				}
			}
			if !fits {
				continue
			}
		}

		e.buf = append(e.buf, octaPointersBase|uint8(ssss))
		for _, o := range offsets {
			e.buf = appendPointer(e.buf, uint64(o), ssss)
		}
		e.buf = append(e.buf, ce.buf...)
		return node
	}
}

func maxPointer(ssss int) uint64 {
	switch ssss {
	case 0:
		return 0xFF
	case 1:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

func appendPointer(buf []byte, v uint64, ssss int) []byte {
	switch ssss {
	case 0:
		return append(buf, byte(v))
	case 1:
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case 2:
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}
