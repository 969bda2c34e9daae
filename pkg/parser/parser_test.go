package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pppplang/ppppl/pkg/ast"
)

func TestParseExpPrecedence(t *testing.T) {
	e, err := ParseExp("1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, "(1 + (2 * 3))", e.String())
}

func TestParseExpTernary(t *testing.T) {
	e, err := ParseExp("1 if true else 0")
	require.NoError(t, err)
	assert.Equal(t, "(1 if true else 0)", e.String())
}

func TestParseExpIndexAndIn(t *testing.T) {
	e, err := ParseExp(`root["key"]`)
	require.NoError(t, err)
	assert.Equal(t, `root["key"]`, e.String())

	e2, err := ParseExp(`x in root`)
	require.NoError(t, err)
	bin, ok := e2.(ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.IN, bin.Op)
}

func TestParseExpUnaryAndParens(t *testing.T) {
	e, err := ParseExp("not (a and b)")
	require.NoError(t, err)
	assert.Equal(t, "(not (a and b))", e.String())

	e2, err := ParseExp("-x")
	require.NoError(t, err)
	assert.Equal(t, "(- x)", e2.String())
}

func TestParseExpConcat(t *testing.T) {
	e, err := ParseExp(`"a" ++ "b"`)
	require.NoError(t, err)
	bin := e.(ast.Binary)
	assert.Equal(t, ast.CONCAT, bin.Op)
}

func TestParseAssignment(t *testing.T) {
	lv, rhs, err := ParseAssignment(`counters["x"] = counters["x"] + 1`)
	require.NoError(t, err)
	assert.Equal(t, `counters["x"]`, lv.String())
	assert.Equal(t, `(counters["x"] + 1)`, rhs.String())
}

func TestParseModuleSingleBlock(t *testing.T) {
	src := `
block increment(k in keys) when counters[k] < 10 {
	counters[k] = counters[k] + 1;
}
`
	m, err := ParseModule(src)
	require.NoError(t, err)
	require.Len(t, m.Blocks, 1)
	b := m.Blocks[0]
	assert.Equal(t, "increment", b.Name)
	require.Len(t, b.Parameters, 1)
	assert.Equal(t, "k", b.Parameters[0].Name)
	require.Len(t, b.Guards, 1)
	require.Len(t, b.Assignments, 1)
}

func TestParseModuleMultipleBlocksAndParams(t *testing.T) {
	src := `
block swap(a in root, b in root) {
	a = b;
	b = a;
}
block noop() {
	x = 1;
}
`
	m, err := ParseModule(src)
	require.NoError(t, err)
	require.Len(t, m.Blocks, 2)
	assert.Equal(t, "swap", m.Blocks[0].Name)
	assert.Len(t, m.Blocks[0].Parameters, 2)
	assert.Equal(t, "noop", m.Blocks[1].Name)
}

func TestParseModuleSyntaxError(t *testing.T) {
	_, err := ParseModule("block broken(")
	assert.Error(t, err)
}

func TestParseExpTrailingTokenIsError(t *testing.T) {
	_, err := ParseExp("1 2")
	assert.Error(t, err)
}
