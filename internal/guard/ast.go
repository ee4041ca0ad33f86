package guard

import (
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Node is a guard AST node: *Or, *And, *Comparison or *BoolTest.
type Node interface {
	guardNode()
	String() string
}

// Operand is one side of a comparison: StateVar, EventRef or Literal.
type Operand interface {
	guardOperand()
	String() string
}

// Or holds two or more alternatives.
type Or struct {
	Terms []Node
}

// And holds two or more conjuncts.
type And struct {
	Terms []Node
}

// Comparison is "Left Op Right". Left is never a Literal.
type Comparison struct {
	Op    Op
	Left  Operand
	Right Operand
	Pos   int // byte offset of Left in the source
}

// BoolTest is a bare operand used as a condition, optionally negated.
// Operand is an EventRef or a symbol Literal.
type BoolTest struct {
	Negated bool
	Operand Operand
	Pos     int
}

func (*Or) guardNode()         {}
func (*And) guardNode()        {}
func (*Comparison) guardNode() {}
func (*BoolTest) guardNode()   {}

// StateVar references a state variable of the machine instance: @name.
type StateVar struct {
	Name string
}

// EventRef references an attribute of the delivered event. Dotted paths
// descend into nested objects.
type EventRef struct {
	Name string
}

// Literal is a constant: Int, Float, String, Symbol or Bool.
type Literal struct {
	Value ir.Value
}

func (StateVar) guardOperand() {}
func (EventRef) guardOperand() {}
func (Literal) guardOperand()  {}

func (s StateVar) String() string { return "@" + s.Name }
func (e EventRef) String() string { return e.Name }
func (l Literal) String() string  { return ir.Format(l.Value) }

func (o *Or) String() string {
	parts := make([]string, len(o.Terms))
	for i, t := range o.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " or ")
}

func (a *And) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		if _, ok := t.(*Or); ok {
			parts[i] = "(" + t.String() + ")"
			continue
		}
		parts[i] = t.String()
	}
	return strings.Join(parts, " and ")
}

func (c *Comparison) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

func (b *BoolTest) String() string {
	if b.Negated {
		return "!" + b.Operand.String()
	}
	return b.Operand.String()
}
