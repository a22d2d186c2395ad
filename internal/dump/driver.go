package dump

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/danielledeleo/wikiforge/internal/analyzer"
	"github.com/danielledeleo/wikiforge/internal/store"
	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

// AddPageFunc matches store.Store.AddPage's signature, letting callers
// substitute a decorator (e.g. one that also logs) for the default.
type AddPageFunc func(model, title, text string) error

// Driver runs the three phases spec.md §4.2 describes against one Store:
// ingest, C8 analysis, and worker-pool replay.
type Driver struct {
	Store      *store.Store
	Namespaces *namespace.Table

	// AllowedNamespaces, if non-nil, restricts ingest to pages whose
	// namespace id is a key of this set (spec.md §4.2's "optional
	// namespace filter").
	AllowedNamespaces map[int]bool

	// AddPage receives each surviving page; defaults to Store.AddPage.
	AddPage AddPageFunc

	// Phase1Only stops Run after ingest + analysis, skipping replay.
	Phase1Only bool
}

// Stats summarizes one Ingest call.
type Stats struct {
	Seen     int
	Ingested int
	Skipped  int // filtered out by AllowedNamespaces
}

// Ingest streams r's <page> elements, calling AddPage (or Store.AddPage)
// for each one not excluded by AllowedNamespaces.
func (d *Driver) Ingest(r io.Reader) (Stats, error) {
	addPage := d.AddPage
	if addPage == nil {
		addPage = d.Store.AddPage
	}

	var stats Stats
	err := decodePages(r, func(p *page) error {
		stats.Seen++

		nsID := parseNamespaceID(p.Ns)
		if d.AllowedNamespaces != nil && !d.AllowedNamespaces[nsID] {
			stats.Skipped++
			return nil
		}

		if err := addPage(p.model(), p.Title, p.body()); err != nil && err != store.ErrMustReanalyze {
			return fmt.Errorf("ingesting %q: %w", p.Title, err)
		}
		stats.Ingested++
		return nil
	})
	return stats, err
}

// RunAnalysis runs the template analyzer (C8) over every template body
// currently in the store, records each template's needs_pre_expand flag,
// and marks the store analyzed. Spec.md §4.2: "After ingestion, the
// driver triggers the template analyzer."
func (d *Driver) RunAnalysis() error {
	canonicalize := func(name string) string {
		return wikitext.CanonicalizeTemplateName(name, d.Store.FirstLetterCaseSensitive())
	}

	bodies := d.Store.TemplateBodies()
	redirects := make(map[string]string)
	for title, target := range d.Store.Redirects() {
		if p, ok := d.Store.GetPage(title); ok && p.NamespaceID == namespace.Template {
			redirects[canonicalize(title)] = canonicalize(target)
		}
	}
	flags := analyzer.Analyze(bodies, redirects, canonicalize)

	for name, needs := range flags {
		d.Store.SetPreExpand(name, needs)
	}
	d.Store.MarkAnalyzed()

	slog.Info("template analysis complete", "templates", len(bodies), "needs_pre_expand", countTrue(flags))
	return nil
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Replay runs every page currently in the store through handle via a
// worker pool of size workers (spec.md §4.2/§5), returning one Result per
// page in the order Store.Iterate yielded the titles (unspecified order
// across pages, per spec.md §5's ordering guarantees). Phase1Only short-circuits to a no-op.
func (d *Driver) Replay(ctx context.Context, workers int, handle Handler) ([]Result, error) {
	if d.Phase1Only {
		return nil, nil
	}

	q := NewQueue(workers, handle)

	var titles []string
	var models []store.ContentModel
	d.Store.Iterate(func(title string, model store.ContentModel) bool {
		titles = append(titles, title)
		models = append(models, model)
		return true
	})

	waitChs := make([]chan Result, len(titles))
	for i, title := range titles {
		p, ok := d.Store.GetPage(title)
		if !ok {
			continue
		}
		waitChs[i] = make(chan Result, 1)
		if err := q.Submit(Job{Title: title, Model: models[i], Body: p.Body}, waitChs[i]); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(titles))
	for _, ch := range waitChs {
		if ch == nil {
			continue
		}
		select {
		case r := <-ch:
			results = append(results, r)
		case <-ctx.Done():
			_ = q.Shutdown(context.Background())
			return results, ctx.Err()
		}
	}

	return results, q.Shutdown(ctx)
}

// Run executes ingest, analysis, and (unless Phase1Only) replay in
// sequence, the top-level orchestration spec.md §4.2 describes.
func (d *Driver) Run(ctx context.Context, r io.Reader, workers int, handle Handler) (Stats, []Result, error) {
	stats, err := d.Ingest(r)
	if err != nil {
		return stats, nil, err
	}
	if err := d.RunAnalysis(); err != nil {
		return stats, nil, err
	}
	if d.Phase1Only {
		return stats, nil, nil
	}
	results, err := d.Replay(ctx, workers, handle)
	return stats, results, err
}
