package parse

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TestRoundTripNormalizesWhitespace checks the parse-then-serialize
// round trip is a no-op for already-normalized wikitext: parsing into a
// node tree and writing it back out must reproduce the input exactly,
// the property spec.md §8 calls out for whitespace handling.
func TestRoundTripNormalizesWhitespace(t *testing.T) {
	cases := []string{
		"plain paragraph text",
		"'''bold''' and ''italic''",
		"a '''bold ''nested italic'' word''' after",
	}

	dmp := diffmatchpatch.New()
	for _, text := range cases {
		page := newTestPage(t, "RoundTrip")
		root := Parse(text, page)
		got := ToWikitext(root)

		diffs := dmp.DiffMain(text, got, false)
		for _, d := range diffs {
			if d.Type != diffmatchpatch.DiffEqual {
				t.Errorf("round trip changed %q: produced %q (diff %v)", text, got, diffs)
				break
			}
		}
	}
}
