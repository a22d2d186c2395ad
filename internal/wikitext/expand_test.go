package wikitext

import (
	"strings"
	"testing"

	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

// fakeStore is a minimal PageSource for expansion tests: templates and
// pages are registered directly rather than going through a page store.
type fakeStore struct {
	templates map[string]string
	preExpand map[string]bool
	pages     map[string]bool
	sections  map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates: make(map[string]string),
		preExpand: make(map[string]bool),
		pages:     make(map[string]bool),
		sections:  make(map[string]string),
	}
}

func (s *fakeStore) TemplateLookup(name string) (string, bool, bool) {
	body, ok := s.templates[name]
	return body, s.preExpand[name], ok
}

func (s *fakeStore) PageExists(title string) bool { return s.pages[title] }

func (s *fakeStore) SectionText(title, section string) (string, bool) {
	v, ok := s.sections[title+"#"+section]
	return v, ok
}

func newTestEngine(store *fakeStore) *Engine {
	return &Engine{Store: store, Namespaces: namespace.NewDefault(nil)}
}

func expandFull(t *testing.T, e *Engine, title, text string) string {
	t.Helper()
	p := NewPage()
	if err := p.StartPage(title); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	encoded := p.Encode(p.Preprocess(text))
	expanded := e.Expand(p, encoded, nil, Flags{})
	return Finalize(p, expanded)
}

func TestTemplateSubstitutionWithDefault(t *testing.T) {
	store := newFakeStore()
	store.templates["Greet"] = "Hello, {{{name|World}}}!"
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "{{Greet}}")
	if got != "Hello, World!" {
		t.Fatalf("got %q, want %q", got, "Hello, World!")
	}

	got = expandFull(t, e, "Test", "{{Greet|name=Ferris}}")
	if got != "Hello, Ferris!" {
		t.Fatalf("got %q, want %q", got, "Hello, Ferris!")
	}
}

func TestTemplatePositionalArgs(t *testing.T) {
	store := newFakeStore()
	store.templates["Add"] = "{{{1}}} and {{{2}}}"
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "{{Add|foo|bar}}")
	if got != "foo and bar" {
		t.Fatalf("got %q, want %q", got, "foo and bar")
	}
}

func TestParserFunctionArithmetic(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "{{#expr: 2 + 3 * 4}}")
	if got != "14" {
		t.Fatalf("got %q, want %q", got, "14")
	}
}

func TestExprDivideByZero(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "{{#expr: 1/0}}")
	if got != "Divide by zero" {
		t.Fatalf("got %q, want the bare literal %q", got, "Divide by zero")
	}
}

func TestNowikiPreservesLiteralMarkup(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "<nowiki>{{Foo}}</nowiki>")
	want := "&lbrace;&lbrace;Foo&rbrace;&rbrace;"
	if got != want {
		t.Fatalf("got %q, want entity-quoted %q", got, want)
	}
}

func TestTemplateLoopDetectionStopsRecursion(t *testing.T) {
	store := newFakeStore()
	store.templates["A"] = "{{B}}"
	store.templates["B"] = "{{A}}"
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "{{A}}")
	if !strings.Contains(got, "Template loop detected") {
		t.Fatalf("expected loop-detection marker, got %q", got)
	}

	p := NewPage()
	if err := p.StartPage("Test"); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	encoded := p.Encode(p.Preprocess("{{A}}"))
	_ = e.Expand(p, encoded, nil, Flags{})
	sawLoopDiag := false
	for _, d := range p.Diag.ToReturn() {
		if strings.Contains(d.Message, "loop") {
			sawLoopDiag = true
		}
	}
	if !sawLoopDiag {
		t.Fatalf("expected a loop diagnostic to be recorded")
	}
}

func TestUndefinedTemplateProducesErrorMarker(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)

	got := expandFull(t, e, "Test", "{{DoesNotExist}}")
	if !strings.Contains(got, "Template:DoesNotExist") {
		t.Fatalf("got %q, want a missing-template marker", got)
	}
}

func TestInvokeWithoutScriptHostReportsError(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)

	p := NewPage()
	if err := p.StartPage("Test"); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	encoded := p.Encode(p.Preprocess("{{#invoke:Mod|fn}}"))
	_ = e.Expand(p, encoded, nil, Flags{})

	found := false
	for _, d := range p.Diag.ToReturn() {
		if d.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error diagnostic when no script host is configured")
	}
}

func TestPreOnlyFlagSkipsNonPreExpandTemplates(t *testing.T) {
	store := newFakeStore()
	store.templates["Skip"] = "expanded"
	e := newTestEngine(store)

	p := NewPage()
	if err := p.StartPage("Test"); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	encoded := p.Encode(p.Preprocess("{{Skip}}"))
	expanded := e.Expand(p, encoded, nil, Flags{PreOnly: true})
	if strings.Contains(expanded, "expanded") {
		t.Fatalf("expected pre-only pass to skip a non-pre-expand template, got %q", expanded)
	}
}

func TestPreOnlyFlagExpandsFlaggedTemplates(t *testing.T) {
	store := newFakeStore()
	store.templates["Must"] = "expanded"
	store.preExpand["Must"] = true
	e := newTestEngine(store)

	p := NewPage()
	if err := p.StartPage("Test"); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	encoded := p.Encode(p.Preprocess("{{Must}}"))
	expanded := e.Expand(p, encoded, nil, Flags{PreOnly: true})
	if !strings.Contains(expanded, "expanded") {
		t.Fatalf("expected pre-only pass to expand a pre-expand-flagged template, got %q", expanded)
	}
}
