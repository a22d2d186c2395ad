package dump

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielledeleo/wikiforge/internal/store"
	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

const sampleDump = `<mediawiki>
<page><title>Foo</title><ns>0</ns><id>1</id>
  <revision><model>wikitext</model><text>hello [[Bar]]</text></revision>
</page>
<page><title>Bar</title><ns>0</ns><id>2</id>
  <revision><model>wikitext</model><text>world</text></revision>
</page>
<page><title>Baz</title><ns>0</ns><id>3</id>
  <redirect title="Foo" />
  <revision><model>wikitext</model><text>#REDIRECT [[Foo]]</text></revision>
</page>
<page><title>Template:Greet</title><ns>10</ns><id>4</id>
  <revision><model>wikitext</model><text>Hello {{{1|world}}}!</text></revision>
</page>
<page><title>User:Someone</title><ns>2</ns><id>5</id>
  <revision><model>wikitext</model><text>user page</text></revision>
</page>
</mediawiki>`

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pages.dat"), namespace.NewDefault(nil), false)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Driver{Store: s, Namespaces: namespace.NewDefault(nil)}
}

func TestIngestStoresEveryPage(t *testing.T) {
	d := newTestDriver(t)
	stats, err := d.Ingest(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Seen != 5 || stats.Ingested != 5 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if !d.Store.PageExists("Foo") {
		t.Errorf("expected Foo to be stored")
	}
	p, ok := d.Store.GetPage("Baz")
	if !ok || p.ContentModel != store.ModelRedirect || p.Body != "Foo" {
		t.Errorf("expected Baz to be stored as a redirect to Foo, got %+v ok=%v", p, ok)
	}
}

func TestIngestRespectsNamespaceFilter(t *testing.T) {
	d := newTestDriver(t)
	d.AllowedNamespaces = map[int]bool{0: true, 10: true}

	stats, err := d.Ingest(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected exactly the User: page skipped, got stats %+v", stats)
	}
	if d.Store.PageExists("User:Someone") {
		t.Errorf("expected the User: page to be filtered out")
	}
	if !d.Store.PageExists("Template:Greet") {
		t.Errorf("expected the Template: page to survive the filter")
	}
}

func TestRunAnalysisSetsPreExpandFlags(t *testing.T) {
	d := newTestDriver(t)
	if _, err := d.Ingest(strings.NewReader(sampleDump)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := d.RunAnalysis(); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}

	_, needsPreExpand, ok := d.Store.TemplateLookup("Greet")
	if !ok {
		t.Fatalf("expected Template:Greet to be registered as a template")
	}
	if needsPreExpand {
		t.Errorf("a plain argument-ref template shouldn't need pre-expansion")
	}
}

func TestReplayInvokesHandlerForEveryPage(t *testing.T) {
	d := newTestDriver(t)
	if _, err := d.Ingest(strings.NewReader(sampleDump)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := d.RunAnalysis(); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}

	seen := make(chan string, 16)
	handle := func(model store.ContentModel, title, body string) (any, error) {
		seen <- title
		return len(body), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := d.Replay(ctx, 2, handle)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected handler error: %v", r.Err)
		}
	}
	close(seen)
	count := 0
	for range seen {
		count++
	}
	if count != 5 {
		t.Errorf("expected handler invoked 5 times, got %d", count)
	}
}

func TestReplayRecoversHandlerPanic(t *testing.T) {
	d := newTestDriver(t)
	if err := d.Store.AddPage("wikitext", "Boom", "x"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := d.RunAnalysis(); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}

	handle := func(model store.ContentModel, title, body string) (any, error) {
		panic("kaboom")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := d.Replay(ctx, 1, handle)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("expected one recovered-panic result, got %+v", results)
	}
	if !strings.Contains(results[0].Err.Error(), "Boom") {
		t.Errorf("expected the panic error to name the page title, got %v", results[0].Err)
	}
}

func TestPhase1OnlySkipsReplay(t *testing.T) {
	d := newTestDriver(t)
	d.Phase1Only = true
	if _, err := d.Ingest(strings.NewReader(sampleDump)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	stats, results, err := d.Run(context.Background(), strings.NewReader(""), 2, func(store.ContentModel, string, string) (any, error) {
		t.Fatalf("handler must not be called when Phase1Only is set")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results under Phase1Only, got %v", results)
	}
	_ = stats
}
