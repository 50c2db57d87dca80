package mathexpr

import (
	"math"
	"testing"
)

func TestCompareEquivalence(t *testing.T) {
	c := NewComparator()

	tests := []struct {
		name      string
		a, b      string
		wantEquiv bool
		wantKind  Equivalence
	}{
		{"expanded square", "(x+1)**2", "x**2 + 2*x + 1", true, EquivExact},
		{"caret power", "x^2 - 1", "(x-1)*(x+1)", true, EquivExact},
		{"latex fraction", `\frac{1}{2}`, "0.5", true, EquivExact},
		{"dollar delimiters", "$x**2 + 3*x$", "x*(x + 3)", true, EquivExact},
		{"constant arithmetic", "2 + 2", "4", true, EquivExact},
		{"fraction constant", "2/4", "0.5", true, EquivExact},
		{"trig identity", "sin(x)/cos(x)", "tan(x)", true, EquivNumerical},
		{"within two percent", "100", "98", true, EquivNumerical},
		{"exact boundary", "100", "98.0", true, EquivNumerical},
		{"just past boundary", "100", "97.99", true, EquivPartial},
		{"partial band", "100", "96", true, EquivPartial},
		{"outside partial band", "100", "90", false, EquivDifferent},
		{"different polynomials", "x + 1", "x + 2", false, EquivDifferent},
		{"prose around numbers", "about 100 units", "98", true, EquivNumerical},
		{"no numbers at all", "hello", "world", false, EquivDifferent},
		{"empty sides", "", "", false, EquivDifferent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equiv, kind := c.Compare(tt.a, tt.b)
			if equiv != tt.wantEquiv || kind != tt.wantKind {
				t.Errorf("Compare(%q, %q) = (%v, %s), want (%v, %s)",
					tt.a, tt.b, equiv, kind, tt.wantEquiv, tt.wantKind)
			}
		})
	}
}

func TestCompareToleranceConfigurable(t *testing.T) {
	c := &Comparator{Tolerance: 0.10}
	equiv, kind := c.Compare("100", "92")
	if !equiv || kind != EquivNumerical {
		t.Errorf("Compare with 10%% tolerance = (%v, %s), want (true, numerical)", equiv, kind)
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{"plain integer", "42", 42, true},
		{"plain float", "3.14", 3.14, true},
		{"negative", "-7.5", -7.5, true},
		{"trailing unit", "42 volts", 42, true},
		{"fraction", "3/4", 0.75, true},
		{"spaced fraction", "3 / 4", 0.75, true},
		{"scientific notation", "1.5e-3", 0.0015, true},
		{"scientific with unit", "1.5e-3 volts", 0.0015, true},
		{"embedded number", "approximately 12.5 meters", 12.5, true},
		{"no number", "no idea", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractNumber(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ExtractNumber(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ExtractNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	c := NewComparator()
	for _, in := range []string{"", "2x", "x +", "((x)", "foo(1)"} {
		if got := c.Parse(in); got != nil {
			t.Errorf("Parse(%q) = %v, want nil", in, got)
		}
	}
}

func TestLatexSubstitutions(t *testing.T) {
	c := NewComparator()

	tests := []struct {
		name string
		a, b string
	}{
		{"frac", `\frac{4}{2}`, "2"},
		{"sqrt", `\sqrt{4}`, "2"},
		{"pi constant", `2*\pi`, "6.283185307179586"},
		{"times and cdot", `2 \times 3 \cdot 4`, "24"},
		{"sin macro", `\sin(0)`, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equiv, _ := c.Compare(tt.a, tt.b)
			if !equiv {
				t.Errorf("Compare(%q, %q) not equivalent", tt.a, tt.b)
			}
		})
	}
}
