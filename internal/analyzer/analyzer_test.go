package analyzer

import "testing"

func identity(s string) string { return s }

func TestAnalyzeBodyListPrefix(t *testing.T) {
	r := AnalyzeBody("* item one\n* item two", identity)
	if !r.NeedsPreExpand {
		t.Errorf("expected leading list prefix to need pre-expand")
	}
}

func TestAnalyzeBodyPairedTableIsNotFlagged(t *testing.T) {
	r := AnalyzeBody("{|\n|-\n| a || b\n|}", identity)
	if r.NeedsPreExpand {
		t.Errorf("a fully paired table should not need pre-expand")
	}
}

func TestAnalyzeBodyUnpairedTableOpener(t *testing.T) {
	r := AnalyzeBody("some text {| no closer", identity)
	if !r.NeedsPreExpand {
		t.Errorf("expected unpaired table opener to need pre-expand")
	}
}

func TestAnalyzeBodyBareRowToken(t *testing.T) {
	r := AnalyzeBody("regular paragraph\n|-\nmore text", identity)
	if !r.NeedsPreExpand {
		t.Errorf("expected bare row token at line start to need pre-expand")
	}
}

func TestAnalyzeBodyUnbalancedHTML(t *testing.T) {
	r := AnalyzeBody("<div>unterminated", identity)
	if !r.NeedsPreExpand {
		t.Errorf("expected unbalanced HTML tag to need pre-expand")
	}
}

func TestAnalyzeBodyBalancedHTMLIsNotFlagged(t *testing.T) {
	r := AnalyzeBody("<div>fine</div> and plain text", identity)
	if r.NeedsPreExpand {
		t.Errorf("balanced HTML should not need pre-expand")
	}
}

func TestAnalyzeBodyPlainTextIsNotFlagged(t *testing.T) {
	r := AnalyzeBody("Just a sentence with {{other|arg}} and nothing structural.", identity)
	if r.NeedsPreExpand {
		t.Errorf("plain prose referencing a template should not itself need pre-expand")
	}
	if len(r.Transcludes) != 1 || r.Transcludes[0] != "other" {
		t.Errorf("expected transclusion of %q, got %v", "other", r.Transcludes)
	}
}

func TestAnalyzeTransitivePropagation(t *testing.T) {
	bodies := map[string]string{
		"A": "{{B}} some prose",
		"B": "* a list item",
		"C": "no structure here",
	}
	flags := Analyze(bodies, nil, identity)
	if !flags["B"] {
		t.Errorf("B directly contains a list prefix, expected pre-expand")
	}
	if !flags["A"] {
		t.Errorf("A transcludes B, expected transitive pre-expand")
	}
	if flags["C"] {
		t.Errorf("C has no structural tokens and no transclusions, expected false")
	}
}

func TestAnalyzeRedirectInheritsTargetFlag(t *testing.T) {
	bodies := map[string]string{
		"Target": "* list content",
		"Alias":  "",
	}
	redirects := map[string]string{"Alias": "Target"}
	flags := Analyze(bodies, redirects, identity)
	if !flags["Alias"] {
		t.Errorf("redirect should inherit target's pre-expand flag")
	}
}

func TestAnalyzeFixedPointTerminates(t *testing.T) {
	bodies := map[string]string{
		"A": "{{B}}",
		"B": "{{A}}",
	}
	// A mutual cycle with no structural tokens anywhere must still
	// terminate with both flags false, not loop forever.
	flags := Analyze(bodies, nil, identity)
	if flags["A"] || flags["B"] {
		t.Errorf("cyclic templates with no structural content should not be flagged")
	}
}
