package mathexpr

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// poly is a multivariate polynomial in canonical form: monomial key
// ("x^2*y" with variables sorted, "" for the constant term) to
// coefficient. Expanding both sides to this form and comparing
// coefficients decides exact equivalence, e.g. (x+1)**2 against
// x**2 + 2*x + 1.
type poly map[string]float64

const coefEpsilon = 1e-9

// toPoly expands n into polynomial form. It fails (ok=false) for
// anything non-polynomial: function calls, variable exponents,
// negative or fractional powers, division by a non-constant.
func toPoly(n node) (poly, bool) {
	switch t := n.(type) {
	case numNode:
		if math.IsInf(float64(t), 0) || math.IsNaN(float64(t)) {
			return nil, false
		}
		return poly{"": float64(t)}, true
	case varNode:
		return poly{monoKey(map[string]int{string(t): 1}): 1}, true
	case unaryNode:
		p, ok := toPoly(t.x)
		if !ok {
			return nil, false
		}
		return p.scale(-1), true
	case binNode:
		l, ok := toPoly(t.l)
		if !ok {
			return nil, false
		}
		switch t.op {
		case '+':
			r, ok := toPoly(t.r)
			if !ok {
				return nil, false
			}
			return l.add(r, 1), true
		case '-':
			r, ok := toPoly(t.r)
			if !ok {
				return nil, false
			}
			return l.add(r, -1), true
		case '*':
			r, ok := toPoly(t.r)
			if !ok {
				return nil, false
			}
			return l.mul(r), true
		case '/':
			r, ok := toPoly(t.r)
			if !ok {
				return nil, false
			}
			c, isConst := r.constant()
			if !isConst || c == 0 {
				return nil, false
			}
			return l.scale(1 / c), true
		case '^':
			e, isNum := t.r.(numNode)
			if !isNum {
				return nil, false
			}
			k := int(float64(e))
			if float64(k) != float64(e) || k < 0 {
				return nil, false
			}
			acc := poly{"": 1}
			for i := 0; i < k; i++ {
				acc = acc.mul(l)
			}
			return acc, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func (p poly) add(q poly, sign float64) poly {
	out := poly{}
	for k, v := range p {
		out[k] = v
	}
	for k, v := range q {
		out[k] += sign * v
	}
	return out
}

func (p poly) scale(c float64) poly {
	out := poly{}
	for k, v := range p {
		out[k] = v * c
	}
	return out
}

func (p poly) mul(q poly) poly {
	out := poly{}
	for ka, va := range p {
		for kb, vb := range q {
			out[mulKeys(ka, kb)] += va * vb
		}
	}
	return out
}

// constant returns the value of p if it has no variable terms.
func (p poly) constant() (float64, bool) {
	c := 0.0
	for k, v := range p {
		if k == "" {
			c = v
		} else if math.Abs(v) > coefEpsilon {
			return 0, false
		}
	}
	return c, true
}

func polyEqual(p, q poly) bool {
	for k, v := range p {
		if math.Abs(v-q[k]) > coefEpsilon {
			return false
		}
	}
	for k, v := range q {
		if _, seen := p[k]; !seen && math.Abs(v) > coefEpsilon {
			return false
		}
	}
	return true
}

func monoKey(pows map[string]int) string {
	names := make([]string, 0, len(pows))
	for name, k := range pows {
		if k != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if pows[name] == 1 {
			parts = append(parts, name)
		} else {
			parts = append(parts, name+"^"+strconv.Itoa(pows[name]))
		}
	}
	return strings.Join(parts, "*")
}

func parseKey(key string) map[string]int {
	pows := map[string]int{}
	if key == "" {
		return pows
	}
	for _, part := range strings.Split(key, "*") {
		name, exp := part, 1
		if i := strings.IndexByte(part, '^'); i >= 0 {
			name = part[:i]
			exp, _ = strconv.Atoi(part[i+1:])
		}
		pows[name] += exp
	}
	return pows
}

func mulKeys(a, b string) string {
	pows := parseKey(a)
	for name, k := range parseKey(b) {
		pows[name] += k
	}
	return monoKey(pows)
}
