package mathexpr

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Equivalence classifies the outcome of comparing two expressions.
type Equivalence string

const (
	EquivExact     Equivalence = "exact"
	EquivNumerical Equivalence = "numerical"
	EquivPartial   Equivalence = "partial"
	EquivDifferent Equivalence = "different"
)

// DefaultTolerance is the relative tolerance for numeric equivalence.
const DefaultTolerance = 0.02

// partialFactor widens the tolerance for the partial tier.
const partialFactor = 2.5

// samplePoints are the values substituted for every free variable when
// deciding numeric equivalence of symbolic expressions.
var samplePoints = []float64{0, 1, -1, 2, 0.5}

// latexRules rewrites common LaTeX notation into plain form before
// parsing. Order matters: \^ must run after the macro rules that
// contain no carets, and before nothing that re-introduces one.
var latexRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`), `(${1})/(${2})`},
	{regexp.MustCompile(`\\sqrt\{([^}]+)\}`), `sqrt(${1})`},
	{regexp.MustCompile(`\\sin`), "sin"},
	{regexp.MustCompile(`\\cos`), "cos"},
	{regexp.MustCompile(`\\tan`), "tan"},
	{regexp.MustCompile(`\\log`), "log"},
	{regexp.MustCompile(`\\ln`), "ln"},
	{regexp.MustCompile(`\\pi`), "pi"},
	{regexp.MustCompile(`\\infty`), "oo"},
	{regexp.MustCompile(`\^`), "**"},
	{regexp.MustCompile(`\\times`), "*"},
	{regexp.MustCompile(`\\cdot`), "*"},
}

var (
	fractionRe = regexp.MustCompile(`(-?\d+\.?\d*)\s*/\s*(-?\d+\.?\d*)`)
	sciRe      = regexp.MustCompile(`(-?\d+\.?\d*)[eE](-?\d+)`)
	numberRe   = regexp.MustCompile(`-?\d+\.?\d*`)
	unitRe     = regexp.MustCompile(`[a-z]+$`)
)

// Comparator compares mathematical expressions for equivalence.
type Comparator struct {
	Tolerance float64
}

// NewComparator returns a Comparator with the default 2% tolerance.
func NewComparator() *Comparator {
	return &Comparator{Tolerance: DefaultTolerance}
}

// Parse turns an expression string (LaTeX or plain notation) into an
// expression tree. Returns nil on empty input or parse failure.
func (c *Comparator) Parse(s string) node {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	if s == "" {
		return nil
	}
	for _, r := range latexRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	n, err := parseExpr(s)
	if err != nil {
		return nil
	}
	return n
}

// Compare decides whether two expression strings are equivalent.
//
// Tiers, in order: exact (identical canonical polynomials, or equal
// constants), numerical (values agree within tolerance at every sample
// point, or extracted numbers agree within tolerance), partial
// (extracted numbers agree within 2.5x tolerance), different.
// The partial tier still counts as equivalent.
func (c *Comparator) Compare(a, b string) (bool, Equivalence) {
	tol := c.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	ea := c.Parse(a)
	eb := c.Parse(b)
	if ea != nil && eb != nil {
		if equiv, kind := compareSymbolic(ea, eb, tol); equiv {
			return true, kind
		}
	}

	na, okA := ExtractNumber(a)
	nb, okB := ExtractNumber(b)
	if okA && okB {
		scale := math.Max(math.Abs(na), math.Abs(nb))
		diff := math.Abs(na - nb)
		if diff <= scale*tol {
			return true, EquivNumerical
		}
		if diff <= scale*tol*partialFactor {
			return true, EquivPartial
		}
	}
	return false, EquivDifferent
}

func compareSymbolic(ea, eb node, tol float64) (bool, Equivalence) {
	if render(ea) == render(eb) {
		return true, EquivExact
	}

	pa, okA := toPoly(ea)
	pb, okB := toPoly(eb)
	if okA && okB && polyEqual(pa, pb) {
		return true, EquivExact
	}

	vars := map[string]struct{}{}
	freeVars(ea, vars)
	freeVars(eb, vars)
	if len(vars) == 0 {
		va, errA := eval(ea, nil)
		vb, errB := eval(eb, nil)
		if errA == nil && errB == nil &&
			math.Abs(va-vb) <= math.Max(math.Abs(va), math.Abs(vb))*coefEpsilon {
			return true, EquivExact
		}
		return false, EquivDifferent
	}

	// Sample every free variable at the same value per point. Points
	// where either side fails to evaluate are skipped; at least one
	// point must succeed.
	sampled := 0
	for _, v := range samplePoints {
		subs := make(map[string]float64, len(vars))
		for name := range vars {
			subs[name] = v
		}
		va, errA := eval(ea, subs)
		vb, errB := eval(eb, subs)
		if errA != nil || errB != nil {
			continue
		}
		sampled++
		if math.Abs(va-vb) > math.Max(math.Abs(va), math.Abs(vb))*tol {
			return false, EquivDifferent
		}
	}
	if sampled > 0 {
		return true, EquivNumerical
	}
	return false, EquivDifferent
}

// ExtractNumber pulls a numeric value out of free text. It handles
// plain numbers, trailing units ("42 volts"), fractions ("3/4") and
// scientific notation ("1.5e-3"), in that order, falling back to the
// first embedded number.
func ExtractNumber(text string) (float64, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimSpace(unitRe.ReplaceAllString(text, ""))
	if text == "" {
		return 0, false
	}

	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, true
	}

	if m := fractionRe.FindStringSubmatch(text); m != nil {
		num, errN := strconv.ParseFloat(m[1], 64)
		den, errD := strconv.ParseFloat(m[2], 64)
		if errN == nil && errD == nil && den != 0 {
			return num / den, true
		}
	}

	if sciRe.MatchString(text) {
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return v, true
		}
	}

	if m := numberRe.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
