package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pppplang/ppppl/pkg/value"
)

func TestExpStringForms(t *testing.T) {
	lit := Literal{Val: value.Int64(5)}
	assert.Equal(t, "5", lit.String())

	bin := Binary{Op: PLUS, X: Literal{Val: value.Int64(1)}, Y: Literal{Val: value.Int64(2)}}
	assert.Equal(t, "(1 + 2)", bin.String())

	idx := Binary{Op: INDEX, X: Root{}, Y: Literal{Val: value.BlobString("x")}}
	assert.Equal(t, `root["x"]`, idx.String())

	tern := Ternary{Op: IF, Cond: Name{Name: "p"}, Then: Literal{Val: value.Int64(1)}, Else: Literal{Val: value.Int64(0)}}
	assert.Equal(t, "(1 if p else 0)", tern.String())

	un := Unary{Op: NOT, X: Name{Name: "b"}}
	assert.Equal(t, "(not b)", un.String())
}

func TestLValStringForms(t *testing.T) {
	l := LIndex{Of: LName{Name: "m"}, Key: Literal{Val: value.BlobString("k")}}
	assert.Equal(t, `m["k"]`, l.String())

	root := LRoot{}
	assert.Equal(t, "root", root.String())
}

func TestBlockAndModuleString(t *testing.T) {
	b := Block{
		Name: "move",
		Parameters: []Param{
			{Name: "i", Exp: Name{Name: "keys"}},
		},
		Guards: []Exp{
			Binary{Op: GT, X: Name{Name: "i"}, Y: Literal{Val: value.Int64(0)}},
		},
		Assignments: []Assignment{
			{LVal: LName{Name: "x"}, Exp: Name{Name: "i"}},
		},
	}
	assert.Contains(t, b.String(), "block move(i in keys)")
	assert.Contains(t, b.String(), "when (i > 0)")
	assert.Contains(t, b.String(), "x = i")

	m := Module{Blocks: []Block{b, b}}
	assert.Equal(t, b.String()+"\n"+b.String(), m.String())
}

func TestOperatorStringers(t *testing.T) {
	assert.Equal(t, "not", NOT.String())
	assert.Equal(t, "-", NEGATE.String())
	assert.Equal(t, "==", EQ.String())
	assert.Equal(t, "++", CONCAT.String())
	assert.Equal(t, "if", IF.String())
}
