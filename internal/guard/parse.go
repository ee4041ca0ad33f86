package guard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// Parse parses a guard expression.
func Parse(text string) (Node, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty guard")
	}

	n, err := p.orExpr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.rest(8))
	}
	return n, nil
}

// MustParse is like Parse but panics on error. Use only in tests.
func MustParse(text string) Node {
	n, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	src string
	pos int
}

func (p *parser) orExpr() (Node, error) {
	first, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.connective("or") {
		next, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &Or{Terms: terms}, nil
}

func (p *parser) andExpr() (Node, error) {
	first, err := p.eval()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.connective("and") {
		next, err := p.eval()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &And{Terms: terms}, nil
}

func (p *parser) eval() (Node, error) {
	p.skipSpace()
	start := p.pos

	switch {
	case p.eof():
		return nil, p.errorf("unexpected end of guard")
	case p.peek() == '(':
		p.pos++
		n, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("expected ')'")
		}
		p.pos++
		return n, nil
	case p.peek() == '!' && !strings.HasPrefix(p.src[p.pos:], "!="):
		p.pos++
		operand, err := p.testOperand()
		if err != nil {
			return nil, err
		}
		return &BoolTest{Negated: true, Operand: operand, Pos: start}, nil
	case p.peek() == ':':
		sym, err := p.symbol()
		if err != nil {
			return nil, err
		}
		return &BoolTest{Operand: sym, Pos: start}, nil
	}

	lhs, err := p.lhs()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	op, ok := p.comparator()
	if !ok {
		ref, isRef := lhs.(EventRef)
		if !isRef {
			return nil, p.errorf("expected comparator after %s", lhs)
		}
		return &BoolTest{Operand: ref, Pos: start}, nil
	}

	rhs, err := p.rhs()
	if err != nil {
		return nil, err
	}
	return &Comparison{Op: op, Left: lhs, Right: rhs, Pos: start}, nil
}

// testOperand parses the operand of a negated boolean test.
func (p *parser) testOperand() (Operand, error) {
	p.skipSpace()
	if !p.eof() && p.peek() == ':' {
		return p.symbol()
	}
	name, err := p.eventRef()
	if err != nil {
		return nil, err
	}
	return name, nil
}

func (p *parser) lhs() (Operand, error) {
	if !p.eof() && p.peek() == '@' {
		p.pos++
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		return StateVar{Name: name}, nil
	}
	return p.eventRef()
}

func (p *parser) rhs() (Operand, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("expected operand")
	}

	c := p.peek()
	switch {
	case c == '"':
		return p.str()
	case c == ':':
		return p.symbol()
	case c == '-' || c == '+' || isDigit(c):
		return p.number()
	case c == '@':
		return p.lhs()
	}

	if p.keyword("true") {
		return Literal{Value: ir.Bool(true)}, nil
	}
	if p.keyword("false") {
		return Literal{Value: ir.Bool(false)}, nil
	}
	return p.eventRef()
}

func (p *parser) eventRef() (EventRef, error) {
	first, err := p.name()
	if err != nil {
		return EventRef{}, err
	}
	parts := []string{first}
	for !p.eof() && p.peek() == '.' {
		p.pos++
		next, err := p.name()
		if err != nil {
			return EventRef{}, err
		}
		parts = append(parts, next)
	}
	return EventRef{Name: strings.Join(parts, ".")}, nil
}

// name parses an identifier that is not a keyword.
func (p *parser) name() (string, error) {
	start := p.pos
	if p.eof() || !isIdentStart(p.peek()) {
		return "", p.errorf("expected name")
	}
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	word := p.src[start:p.pos]
	if isKeyword(word) {
		p.pos = start
		return "", p.errorf("unexpected keyword %q", word)
	}
	return word, nil
}

func (p *parser) symbol() (Literal, error) {
	p.pos++ // ':'
	start := p.pos
	if p.eof() || !isIdentStart(p.peek()) {
		return Literal{}, p.errorf("expected symbol name")
	}
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	return Literal{Value: ir.Symbol(p.src[start:p.pos])}, nil
}

func (p *parser) str() (Literal, error) {
	start := p.pos
	p.pos++ // opening quote

	var b strings.Builder
	for {
		if p.eof() {
			p.pos = start
			return Literal{}, p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return Literal{Value: ir.String(b.String())}, nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				p.pos = start
				return Literal{}, p.errorf("unterminated string")
			}
			switch esc := p.src[p.pos+1]; esc {
			case '"', '\\':
				b.WriteByte(esc)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				return Literal{}, p.errorf("invalid escape \\%c", esc)
			}
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}

func (p *parser) number() (Literal, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	if !p.digits() {
		p.pos = start
		return Literal{}, p.errorf("expected number")
	}

	isFloat := false
	if !p.eof() && p.peek() == '.' {
		p.pos++
		if !p.digits() {
			return Literal{}, p.errorf("expected digits after decimal point")
		}
		isFloat = true
	}
	if !p.eof() && (p.peek() == 'e' || p.peek() == 'E') {
		p.pos++
		if !p.eof() && (p.peek() == '-' || p.peek() == '+') {
			p.pos++
		}
		if !p.digits() {
			return Literal{}, p.errorf("expected exponent digits")
		}
		isFloat = true
	}
	if !p.eof() && isIdentPart(p.peek()) {
		return Literal{}, p.errorf("invalid number")
	}

	text := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.pos = start
			return Literal{}, p.errorf("invalid number %q", text)
		}
		return Literal{Value: ir.Float(f)}, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		p.pos = start
		return Literal{}, p.errorf("integer %q out of range", text)
	}
	return Literal{Value: ir.Int(n)}, nil
}

func (p *parser) digits() bool {
	start := p.pos
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
	}
	return p.pos > start
}

// comparator consumes a comparison operator. Two-character operators are
// tried first so "<=" is not read as "<".
func (p *parser) comparator() (Op, bool) {
	for _, op := range []Op{OpEq, OpNe, OpLe, OpGe, OpLt, OpGt} {
		if strings.HasPrefix(p.src[p.pos:], string(op)) {
			p.pos += len(op)
			return op, true
		}
	}
	return "", false
}

// keyword consumes word if it appears next as a whole word.
func (p *parser) keyword(word string) bool {
	save := p.pos
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], word) {
		end := p.pos + len(word)
		if end == len(p.src) || !isIdentPart(p.src[end]) {
			p.pos = end
			return true
		}
	}
	p.pos = save
	return false
}

// connective consumes a binary "and" or "or". It must be preceded by
// whitespace and followed by whitespace or the end of the guard.
func (p *parser) connective(word string) bool {
	save := p.pos
	p.skipSpace()
	if p.pos > 0 && isSpace(p.src[p.pos-1]) && strings.HasPrefix(p.src[p.pos:], word) {
		end := p.pos + len(word)
		if end == len(p.src) || isSpace(p.src[end]) {
			p.pos = end
			return true
		}
	}
	p.pos = save
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) eof() bool  { return p.pos >= len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) rest(n int) string {
	if p.pos+n > len(p.src) {
		return p.src[p.pos:]
	}
	return p.src[p.pos:p.pos+n] + "..."
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Input: p.src, Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// IsIdent reports whether s is a name the guard grammar can spell: a letter
// or underscore followed by letters, digits and underscores.
func IsIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

func isKeyword(word string) bool {
	switch word {
	case "and", "or", "true", "false":
		return true
	}
	return false
}
