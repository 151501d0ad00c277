// Package csm implements the Cube Scene Model text form, a small
// human-editable notation for octrees. An expression is either a solid
// `s<value>` or an octant list `o[e0 e1 e2 e3 e4 e5 e6 e7]` in fixed
// child order; `#` starts a line comment.
package csm

import (
	"errors"
	"fmt"
	"strings"

	"voxelforge.dev/internal/cube"
)

var ErrSyntax = errors.New("csm: syntax error")

// Parse reads a single CSM expression into a tree. Trailing content
// other than whitespace and comments is an error.
func Parse(input string) (*cube.Cube, error) {
	p := &parser{src: input}
	c, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.pos < len(p.src) {
		return nil, p.errorf("trailing input")
	}
	return c, nil
}

// Format renders a tree as a compact single-line expression. Output
// always parses back to an equal tree.
func Format(c *cube.Cube) string {
	var b strings.Builder
	formatTo(&b, c)
	return b.String()
}

func formatTo(b *strings.Builder, c *cube.Cube) {
	if v, ok := c.Value(); ok {
		fmt.Fprintf(b, "s%d", v)
		return
	}
	b.WriteString("o[")
	for i := 0; i < 8; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		formatTo(b, c.Child(i))
	}
	b.WriteByte(']')
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s at offset %d", ErrSyntax, msg, p.pos)
}

// skip consumes whitespace and # comments.
func (p *parser) skip() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) expr() (*cube.Cube, error) {
	p.skip()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	switch p.src[p.pos] {
	case 's':
		p.pos++
		return p.solid()
	case 'o':
		p.pos++
		return p.octants()
	default:
		return nil, p.errorf("expected 's' or 'o', found %q", p.src[p.pos])
	}
}

func (p *parser) solid() (*cube.Cube, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("expected material value")
	}
	if p.pos-start > 3 {
		return nil, p.errorf("material %q out of range", p.src[start:p.pos])
	}
	v := 0
	for _, c := range p.src[start:p.pos] {
		v = v*10 + int(c-'0')
	}
	if v > 255 {
		return nil, p.errorf("material %d out of range", v)
	}
	return cube.Solid(uint8(v)), nil
}

func (p *parser) octants() (*cube.Cube, error) {
	p.skip()
	if p.pos >= len(p.src) || p.src[p.pos] != '[' {
		return nil, p.errorf("expected '['")
	}
	p.pos++

	var kids [8]*cube.Cube
	for i := range kids {
		child, err := p.expr()
		if err != nil {
			return nil, err
		}
		kids[i] = child
	}

	p.skip()
	if p.pos >= len(p.src) || p.src[p.pos] != ']' {
		return nil, p.errorf("expected ']' after 8 octants")
	}
	p.pos++
	return cube.Octants(kids), nil
}
