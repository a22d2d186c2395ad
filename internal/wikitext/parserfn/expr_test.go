package parserfn

import "testing"

func TestExprArithmetic(t *testing.T) {
	cases := map[string]string{
		"2 + 3 * 4": "14",
		"1/0":       "Divide by zero",
		"1 mod 0":   "Divide by zero",
	}
	for expr, want := range cases {
		got := pfExpr(nil, []string{expr})
		if got != want {
			t.Errorf("pfExpr(%q) = %q, want %q", expr, got, want)
		}
	}
}

// TestExprBinaryRound pins the two cases from
// original_source/tests/test_wikiprocess.py: round is a binary operator,
// "X round Y", rounding X to Y decimal places.
func TestExprBinaryRound(t *testing.T) {
	cases := map[string]string{
		"9.876round2":            "9.88",
		"trunc1234round trunc-2": "1200",
	}
	for expr, want := range cases {
		got := pfExpr(nil, []string{expr})
		if got != want {
			t.Errorf("pfExpr(%q) = %q, want %q", expr, got, want)
		}
	}
}
