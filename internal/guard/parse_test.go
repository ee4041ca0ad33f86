package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/ir"
)

func TestParseComparisons(t *testing.T) {
	tests := []struct {
		name  string
		input string
		op    Op
		left  Operand
		right Operand
	}{
		{"int", "count > 3", OpGt, EventRef{Name: "count"}, Literal{Value: ir.Int(3)}},
		{"negative int", "delta >= -2", OpGe, EventRef{Name: "delta"}, Literal{Value: ir.Int(-2)}},
		{"float", "ratio < 0.5", OpLt, EventRef{Name: "ratio"}, Literal{Value: ir.Float(0.5)}},
		{"exponent", "size <= 1e3", OpLe, EventRef{Name: "size"}, Literal{Value: ir.Float(1000)}},
		{"string", `kind == "a \"b\""`, OpEq, EventRef{Name: "kind"}, Literal{Value: ir.String(`a "b"`)}},
		{"symbol", "@state != :idle", OpNe, StateVar{Name: "state"}, Literal{Value: ir.Symbol("idle")}},
		{"bool", "open == true", OpEq, EventRef{Name: "open"}, Literal{Value: ir.Bool(true)}},
		{"dotted", "door.lock.open == false", OpEq, EventRef{Name: "door.lock.open"}, Literal{Value: ir.Bool(false)}},
		{"state rhs", "level > @threshold", OpGt, EventRef{Name: "level"}, StateVar{Name: "threshold"}},
		{"event rhs", "@count == total", OpEq, StateVar{Name: "count"}, EventRef{Name: "total"}},
		{"no spaces", "a<=b", OpLe, EventRef{Name: "a"}, EventRef{Name: "b"}},
		{"keyword prefix", "x == trueish", OpEq, EventRef{Name: "x"}, EventRef{Name: "trueish"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.input)
			require.NoError(t, err)

			cmp, ok := n.(*Comparison)
			require.True(t, ok, "expected *Comparison, got %T", n)
			assert.Equal(t, tt.op, cmp.Op)
			assert.Equal(t, tt.left, cmp.Left)
			assert.Equal(t, tt.right, cmp.Right)
		})
	}
}

func TestParseBooleanTests(t *testing.T) {
	n, err := Parse("ready")
	require.NoError(t, err)
	assert.Equal(t, &BoolTest{Operand: EventRef{Name: "ready"}}, n)

	n, err = Parse("! door.open")
	require.NoError(t, err)
	assert.Equal(t, &BoolTest{Negated: true, Operand: EventRef{Name: "door.open"}}, n)

	n, err = Parse(":always")
	require.NoError(t, err)
	assert.Equal(t, &BoolTest{Operand: Literal{Value: ir.Symbol("always")}}, n)
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"and binds tighter", "a or b and c", "a or b and c"},
		{"parens", "(a or b) and c", "(a or b) and c"},
		{"nested", "a and (b or (c and d))", "a and (b or c and d)"},
		{"redundant parens", "((a))", "a"},
		{"any whitespace", "a\tand\n(b or c)", "a and (b or c)"},
		{"keyword prefix in name", "a or android", "a or android"},
		{"mixed", `x > 1 and @state == :on or kind == "k"`, `x > 1 and @state == :on or kind == "k"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n.String())
		})
	}
}

func TestParseStructure(t *testing.T) {
	n, err := Parse("a or b and c")
	require.NoError(t, err)

	or, ok := n.(*Or)
	require.True(t, ok)
	require.Len(t, or.Terms, 2)
	assert.IsType(t, &BoolTest{}, or.Terms[0])

	and, ok := or.Terms[1].(*And)
	require.True(t, ok)
	assert.Len(t, and.Terms, 2)

	n, err = Parse("a and b and c")
	require.NoError(t, err)
	assert.Len(t, n.(*And).Terms, 3, "chained conjuncts flatten into one node")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pos   int
	}{
		{"empty", "   ", 3},
		{"dangling and", "a and", 5},
		{"and without spaces", "(a == 1)and(b == 2)", 8},
		{"and before paren", "a == 1 and(b == 2)", 7},
		{"or without leading space", `x == "a"or y == 1`, 8},
		{"missing operand", "a ==", 4},
		{"unclosed paren", "(a or b", 7},
		{"trailing input", "a == 1 )", 7},
		{"keyword as name", "and == 1", 0},
		{"state var test", "@flag", 5},
		{"unterminated string", `x == "abc`, 5},
		{"bad escape", `x == "a\q"`, 7},
		{"bad number", "x == 12ab", 7},
		{"single equals", "x = 1", 2},
		{"empty symbol", "x == :", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, IsParseError(err))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.input, pe.Input)
			assert.Equal(t, tt.pos, pe.Pos, "message: %s", pe.Message)
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a ==") })
	assert.NotPanics(t, func() { MustParse("a == 1") })
}
