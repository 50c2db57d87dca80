// Package mathexpr parses and compares mathematical expressions for
// symbolic and numeric equivalence, and extracts bare numeric values
// from free text such as "42 volts" or "3/4".
package mathexpr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// node is an expression tree node.
type node interface{}

type numNode float64

type varNode string

type unaryNode struct {
	op byte // '-'
	x  node
}

type binNode struct {
	op   byte // '+', '-', '*', '/', '^' (power)
	l, r node
}

type callNode struct {
	fn  string
	arg node
}

var knownFuncs = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"asin": math.Asin,
	"acos": math.Acos,
	"atan": math.Atan,
	"log":  math.Log, // natural log, matching CAS convention
	"ln":   math.Log,
	"exp":  math.Exp,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
}

var knownConsts = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
	"oo": math.Inf(1),
}

type parser struct {
	input string
	pos   int
}

// parseExpr parses a plain-notation expression ("x**2 + 2*x + 1").
// Power is written ** and binds tighter than unary minus.
func parseExpr(s string) (node, error) {
	p := &parser{input: s}
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("empty expression")
	}
	n, err := p.sum()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.input[p.pos], p.pos)
	}
	return n, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// sum := product (('+' | '-') product)*
func (p *parser) sum() (node, error) {
	left, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.product()
			if err != nil {
				return nil, err
			}
			left = binNode{op: '+', l: left, r: right}
		case '-':
			p.pos++
			right, err := p.product()
			if err != nil {
				return nil, err
			}
			left = binNode{op: '-', l: left, r: right}
		default:
			return left, nil
		}
	}
}

// product := unary (('*' | '/') unary)*  — but not '**'
func (p *parser) product() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c == '*' && !p.lookingAtPower() {
			p.pos++
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			left = binNode{op: '*', l: left, r: right}
		} else if c == '/' {
			p.pos++
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			left = binNode{op: '/', l: left, r: right}
		} else {
			return left, nil
		}
	}
}

func (p *parser) lookingAtPower() bool {
	return p.pos+1 < len(p.input) && p.input[p.pos] == '*' && p.input[p.pos+1] == '*'
}

// unary := '-' unary | power
func (p *parser) unary() (node, error) {
	if p.peek() == '-' {
		p.pos++
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: '-', x: x}, nil
	}
	if p.peek() == '+' {
		p.pos++
		return p.unary()
	}
	return p.power()
}

// power := atom ('**' unary)?  — right-associative, exponent may be signed
func (p *parser) power() (node, error) {
	base, err := p.atom()
	if err != nil {
		return nil, err
	}
	if p.peek() == '*' && p.lookingAtPower() {
		p.pos += 2
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return binNode{op: '^', l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) atom() (node, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		n, err := p.sum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return n, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.number()
	case isIdentStart(c):
		return p.identifier()
	case c == 0:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
	}
}

func (p *parser) number() (node, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		// Scientific notation: 1.5e-3.
		if (c == 'e' || c == 'E') && p.pos > start {
			next := p.pos + 1
			if next < len(p.input) && (p.input[next] == '+' || p.input[next] == '-') {
				next++
			}
			if next < len(p.input) && p.input[next] >= '0' && p.input[next] <= '9' {
				p.pos = next
				continue
			}
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", p.input[start:p.pos])
	}
	return numNode(v), nil
}

func (p *parser) identifier() (node, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])

	if p.peek() == '(' {
		fn, ok := knownFuncs[name]
		_ = fn
		if !ok {
			return nil, fmt.Errorf("unknown function %q", name)
		}
		p.pos++
		arg, err := p.sum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing closing parenthesis after %s", name)
		}
		p.pos++
		return callNode{fn: name, arg: arg}, nil
	}

	if v, ok := knownConsts[name]; ok {
		return numNode(v), nil
	}
	return varNode(name), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// freeVars collects variable names appearing in n.
func freeVars(n node, into map[string]struct{}) {
	switch t := n.(type) {
	case varNode:
		into[string(t)] = struct{}{}
	case unaryNode:
		freeVars(t.x, into)
	case binNode:
		freeVars(t.l, into)
		freeVars(t.r, into)
	case callNode:
		freeVars(t.arg, into)
	}
}

// eval computes the value of n with every variable bound in vars.
// Non-finite intermediate values are reported as errors so sampling
// can skip the point.
func eval(n node, vars map[string]float64) (float64, error) {
	var v float64
	switch t := n.(type) {
	case numNode:
		v = float64(t)
	case varNode:
		b, ok := vars[string(t)]
		if !ok {
			return 0, fmt.Errorf("unbound variable %q", string(t))
		}
		v = b
	case unaryNode:
		x, err := eval(t.x, vars)
		if err != nil {
			return 0, err
		}
		v = -x
	case binNode:
		l, err := eval(t.l, vars)
		if err != nil {
			return 0, err
		}
		r, err := eval(t.r, vars)
		if err != nil {
			return 0, err
		}
		switch t.op {
		case '+':
			v = l + r
		case '-':
			v = l - r
		case '*':
			v = l * r
		case '/':
			if r == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v = l / r
		case '^':
			v = math.Pow(l, r)
		}
	case callNode:
		arg, err := eval(t.arg, vars)
		if err != nil {
			return 0, err
		}
		v = knownFuncs[t.fn](arg)
	default:
		return 0, fmt.Errorf("unknown node %T", n)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return v, nil
}

// render produces a canonical textual form of n, used as a cheap
// structural-equality check before the polynomial comparison.
func render(n node) string {
	switch t := n.(type) {
	case numNode:
		return strconv.FormatFloat(float64(t), 'g', -1, 64)
	case varNode:
		return string(t)
	case unaryNode:
		return "(-" + render(t.x) + ")"
	case binNode:
		return "(" + render(t.l) + string(t.op) + render(t.r) + ")"
	case callNode:
		return t.fn + "(" + render(t.arg) + ")"
	}
	return "?"
}
