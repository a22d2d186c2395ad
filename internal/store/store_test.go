package store

import (
	"path/filepath"
	"testing"

	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "pages.dat"), namespace.NewDefault(nil), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddPageEmptyTitleFails(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPage("wikitext", "", "body"); err != ErrEmptyTitle {
		t.Fatalf("want ErrEmptyTitle, got %v", err)
	}
}

func TestReadByTitleMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	text, ok := s.ReadByTitle("Does Not Exist")
	if ok || text != "" {
		t.Fatalf("expected ok=false, empty text for missing page; got %q, %v", text, ok)
	}
}

func TestAddPageIdempotentAndReadable(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPage("wikitext", "Foo", "hello world"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := s.AddPage("wikitext", "Foo", "hello world"); err != nil {
		t.Fatalf("re-AddPage before analysis: %v", err)
	}

	text, ok := s.ReadByTitle("Foo")
	if !ok || text != "hello world" {
		t.Fatalf("want %q, got %q (ok=%v)", "hello world", text, ok)
	}
	if !s.PageExists("Foo") {
		t.Errorf("expected PageExists(Foo) true")
	}
}

func TestAddPageAfterAnalysisSignalsReanalyze(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPage("wikitext", "Foo", "v1"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	s.MarkAnalyzed()

	if err := s.AddPage("wikitext", "Foo", "v2"); err != ErrMustReanalyze {
		t.Fatalf("want ErrMustReanalyze after analyzed store's page changes, got %v", err)
	}
}

func TestRedirectResolvesExactlyOneHop(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPage("wikitext", "Target", "final content"); err != nil {
		t.Fatalf("AddPage Target: %v", err)
	}
	if err := s.AddPage("redirect", "Middle", "Target"); err != nil {
		t.Fatalf("AddPage Middle: %v", err)
	}
	if err := s.AddPage("redirect", "Start", "Middle"); err != nil {
		t.Fatalf("AddPage Start: %v", err)
	}

	// Start -> Middle is one hop; Middle is itself a redirect, so
	// resolving from Start must land on Middle's raw page (its redirect
	// target title), not follow the chain all the way to Target.
	p, ok := s.GetPageResolveRedirect("Start")
	if !ok {
		t.Fatalf("expected a page for Start")
	}
	if p.ContentModel != ModelRedirect || p.Body != "Target" {
		t.Errorf("expected one-hop resolution to land on the redirect page itself, got model=%v body=%q", p.ContentModel, p.Body)
	}

	// Resolving directly from Middle goes the one hop to Target.
	p2, ok := s.GetPageResolveRedirect("Middle")
	if !ok {
		t.Fatalf("expected a page for Middle")
	}
	if p2.Body != "final content" {
		t.Errorf("expected Middle to resolve to Target's content, got %q", p2.Body)
	}
}

func TestTemplateLookupByCanonicalName(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPage("wikitext", "Template:Infobox", "{{{name}}}"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	body, needsPreExpand, ok := s.TemplateLookup("Infobox")
	if !ok {
		t.Fatalf("expected template lookup to succeed")
	}
	if body != "{{{name}}}" {
		t.Errorf("unexpected body %q", body)
	}
	if needsPreExpand {
		t.Errorf("expected needsPreExpand false before analysis runs")
	}

	s.SetPreExpand("Infobox", true)
	_, needsPreExpand, _ = s.TemplateLookup("Infobox")
	if !needsPreExpand {
		t.Errorf("expected needsPreExpand true after SetPreExpand")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "pages.dat"), namespace.NewDefault(nil), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.AddPage("wikitext", "Template:Infobox", "body"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := s.AddPage("redirect", "Start", "Target"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	s.SetPreExpand("Infobox", true)
	s.MarkAnalyzed()

	db, err := OpenSnapshotDB(filepath.Join(dir, "snapshot.db"))
	if err != nil {
		t.Fatalf("OpenSnapshotDB: %v", err)
	}
	defer db.Close()

	if err := s.SaveSnapshot(db); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	s2, err := Open(filepath.Join(dir, "pages.dat"), namespace.NewDefault(nil), false)
	if err != nil {
		t.Fatalf("reopen Store: %v", err)
	}
	defer s2.Close()

	if err := s2.LoadSnapshot(db); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if !s2.PageExists("Template:Infobox") {
		t.Errorf("expected Template:Infobox to survive the snapshot round trip")
	}
	body, needsPreExpand, ok := s2.TemplateLookup("Infobox")
	if !ok || body != "body" || !needsPreExpand {
		t.Errorf("unexpected template lookup after reload: body=%q needsPreExpand=%v ok=%v", body, needsPreExpand, ok)
	}

	digest, ok := SnapshotTemplateDigest(db)
	if !ok || digest != s.TemplateDigest() {
		t.Errorf("expected stored digest to match the source store's digest, got %q ok=%v", digest, ok)
	}
}

func TestTemplateDigestStableAndSensitiveToBodyChange(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPage("wikitext", "Template:A", "one"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	d1 := s.TemplateDigest()
	d2 := s.TemplateDigest()
	if d1 != d2 {
		t.Errorf("expected a stable digest across repeated calls, got %q then %q", d1, d2)
	}

	if err := s.AddPage("wikitext", "Template:A", "two"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if d3 := s.TemplateDigest(); d3 == d1 {
		t.Errorf("expected digest to change after a template body changed")
	}
}
