// Package store implements the page store (C1): an append-only
// page-body data file with an in-memory index, holding templates and
// script modules as strings, resolving one hop of redirects, per
// spec.md §3/§4.1. Persistence is `jmoiron/sqlx` + `modernc.org/sqlite`
// over a sidecar snapshot table set (snapshot.go), adapted from
// periwiki's internal/storage/sqlite.go prepared-statement pattern.
package store

import (
	"strings"
	"sync"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

// ContentModel is spec.md §3's Page record content_model field.
type ContentModel int

const (
	ModelWikitext ContentModel = iota
	ModelRedirect
	ModelScriptModule
	ModelOther
)

func (m ContentModel) String() string {
	switch m {
	case ModelWikitext:
		return "wikitext"
	case ModelRedirect:
		return "redirect"
	case ModelScriptModule:
		return "script-module"
	default:
		return "other"
	}
}

// ParseContentModel maps a dump's free-text model name to a ContentModel,
// defaulting to ModelOther for anything unrecognized (e.g. "css",
// "javascript", which are out of scope per spec.md's Non-goals).
func ParseContentModel(s string) ContentModel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wikitext":
		return ModelWikitext
	case "redirect":
		return ModelRedirect
	case "module", "script", "scribunto":
		return ModelScriptModule
	default:
		return ModelOther
	}
}

// Page is spec.md §3's Page record: immutable after ingest, re-added
// only via an explicit AddPage call. For a redirect page, Body holds
// the resolved target title rather than wikitext.
type Page struct {
	Title        string
	NamespaceID  int
	ContentModel ContentModel
	Body         string
}

type indexEntry struct {
	offset      int64
	length      int
	namespaceID int
	model       ContentModel
}

// templateEntry is the Template record view (spec.md §3) over a page in
// the Template namespace: the canonical name maps back to the page
// title that actually holds the body in the data file, so the body
// itself is never duplicated in memory and survives a snapshot
// round-trip without needing its own column.
type templateEntry struct {
	title          string
	needsPreExpand bool
}

// Store is the page store (C1). One Store exists per project; replay
// workers share it read-only via positional file reads, per spec.md
// §4.1's "the file is read with positional reads so parallel workers
// can share it".
type Store struct {
	mu sync.RWMutex

	ns                       *namespace.Table
	firstLetterCaseSensitive bool

	data *dataFile

	index     map[string]indexEntry    // title -> body location
	templates map[string]templateEntry // canonical template name -> record
	redirects map[string]string        // title -> target title (one hop)
	analyzed  bool                     // true once C8 analysis has run
	dirty     map[string]bool          // titles added/changed since last analysis
}

// Open opens (creating if absent) the append-only data file at dataPath
// and returns an empty in-memory index; callers that have a prior
// snapshot should follow with LoadSnapshot. firstLetterCaseSensitive
// mirrors config.Project's namespace-casing policy and must match
// whatever the Expansion Engine and analyzer are configured with, since
// all three canonicalize template titles to the same key space.
func Open(dataPath string, ns *namespace.Table, firstLetterCaseSensitive bool) (*Store, error) {
	df, err := openDataFile(dataPath)
	if err != nil {
		return nil, err
	}
	return &Store{
		ns:                       ns,
		firstLetterCaseSensitive: firstLetterCaseSensitive,
		data:                     df,
		index:                    make(map[string]indexEntry),
		templates:                make(map[string]templateEntry),
		redirects:                make(map[string]string),
		dirty:                    make(map[string]bool),
	}, nil
}

// Close flushes and closes the underlying data file.
func (s *Store) Close() error { return s.data.close() }

// FirstLetterCaseSensitive reports the casing policy this Store
// canonicalizes template titles with, so callers that also canonicalize
// titles (the analyzer, the expansion engine) can stay in lockstep with
// it rather than configuring their own copy.
func (s *Store) FirstLetterCaseSensitive() bool { return s.firstLetterCaseSensitive }

// splitNamespace separates a title's "NS:" prefix (if it names a known
// namespace) from its local part, per MediaWiki's standard title syntax.
func (s *Store) splitNamespace(title string) (int, string) {
	if i := strings.IndexByte(title, ':'); i > 0 {
		if e := s.ns.Resolve(title[:i]); e != nil && e.ID != namespace.Main {
			return e.ID, title[i+1:]
		}
	}
	return namespace.Main, title
}

// AddPage implements spec.md §4.1's add_page(model, title, text):
// idempotent on (title, namespace); signals ErrMustReanalyze if the
// store has already run template analysis and this call changes a page
// that analysis depends on (a template body, or any page at all, since
// C8's transitive propagation is global).
func (s *Store) AddPage(model, title, text string) error {
	if title == "" {
		return ErrEmptyTitle
	}

	cm := ParseContentModel(model)
	nsID, _ := s.splitNamespace(title)

	offset, length, err := s.data.append(text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.index[title]
	s.index[title] = indexEntry{offset: offset, length: length, namespaceID: nsID, model: cm}

	if cm == ModelRedirect {
		s.redirects[title] = strings.TrimSpace(text)
	} else {
		delete(s.redirects, title)
	}

	if cm == ModelWikitext && nsID == namespace.Template {
		canonical := wikitext.CanonicalizeTemplateName(title, s.firstLetterCaseSensitive)
		prev := s.templates[canonical]
		s.templates[canonical] = templateEntry{title: title, needsPreExpand: prev.needsPreExpand}
	}

	if s.analyzed && existed {
		s.dirty[title] = true
	}

	var reanalyzeErr error
	if s.dirty[title] {
		reanalyzeErr = ErrMustReanalyze
	}
	return reanalyzeErr
}

// GetPage returns the page named title, exactly as stored (no redirect
// resolution).
func (s *Store) GetPage(title string) (*Page, bool) {
	s.mu.RLock()
	e, ok := s.index[title]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	body, err := s.data.readAt(e.offset, e.length)
	if err != nil {
		return nil, false
	}
	return &Page{Title: title, NamespaceID: e.namespaceID, ContentModel: e.model, Body: body}, true
}

// GetPageResolveRedirect resolves exactly one hop of redirect, per
// spec.md §4.1: "a redirect whose target is itself a redirect resolves
// to whichever is pointed to directly (no loop following...)". This
// keeps the operation O(1) regardless of how many redirects chain
// together, and is a tested property (TestRedirectResolvesExactlyOneHop
// in store_test.go).
func (s *Store) GetPageResolveRedirect(title string) (*Page, bool) {
	s.mu.RLock()
	target, isRedirect := s.redirects[title]
	s.mu.RUnlock()
	if isRedirect {
		return s.GetPage(target)
	}
	return s.GetPage(title)
}

// ReadByTitle returns the raw stored body for title, or ok=false if the
// page is unknown — not an error, per spec.md §4.1's error conditions.
func (s *Store) ReadByTitle(title string) (text string, ok bool) {
	p, ok := s.GetPage(title)
	if !ok {
		return "", false
	}
	return p.Body, true
}

// PageExists reports whether title names a known page (for #ifexist).
func (s *Store) PageExists(title string) bool {
	s.mu.RLock()
	_, ok := s.index[title]
	s.mu.RUnlock()
	return ok
}

// Iterate calls fn once per stored page in unspecified order, stopping
// early if fn returns false.
func (s *Store) Iterate(fn func(title string, model ContentModel) bool) {
	s.mu.RLock()
	titles := make([]string, 0, len(s.index))
	models := make([]ContentModel, 0, len(s.index))
	for title, e := range s.index {
		titles = append(titles, title)
		models = append(models, e.model)
	}
	s.mu.RUnlock()

	for i, title := range titles {
		if !fn(title, models[i]) {
			return
		}
	}
}

// TemplateLookup implements wikitext.PageSource: resolves a canonical
// template name to its body and C8 pre-expand flag.
func (s *Store) TemplateLookup(canonicalName string) (body string, needsPreExpand bool, ok bool) {
	s.mu.RLock()
	t, ok := s.templates[canonicalName]
	var e indexEntry
	if ok {
		e, ok = s.index[t.title]
	}
	s.mu.RUnlock()
	if !ok {
		return "", false, false
	}
	body, err := s.data.readAt(e.offset, e.length)
	if err != nil {
		return "", false, false
	}
	return body, t.needsPreExpand, true
}

// SetPreExpand records C8's analysis result for a template name; called
// by the template analyzer once per completed run.
func (s *Store) SetPreExpand(canonicalName string, needsPreExpand bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.templates[canonicalName]
	t.needsPreExpand = needsPreExpand
	s.templates[canonicalName] = t
}

// MarkAnalyzed records that C8 has run over the current template set;
// subsequent AddPage calls that touch an existing page flag
// ErrMustReanalyze until the caller reruns analysis and calls this
// again.
func (s *Store) MarkAnalyzed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzed = true
	for k := range s.dirty {
		delete(s.dirty, k)
	}
}

// TemplateBodies returns a snapshot of every known template body, keyed
// by canonical name, for the analyzer (C8) to scan.
func (s *Store) TemplateBodies() map[string]string {
	s.mu.RLock()
	names := make([]string, 0, len(s.templates))
	titles := make([]string, 0, len(s.templates))
	for k, v := range s.templates {
		names = append(names, k)
		titles = append(titles, v.title)
	}
	s.mu.RUnlock()

	out := make(map[string]string, len(names))
	for i, name := range names {
		if p, ok := s.GetPage(titles[i]); ok {
			out[name] = p.Body
		}
	}
	return out
}

// Redirects returns a snapshot of the title->target redirect map, for
// the analyzer's single-hop inheritance pass.
func (s *Store) Redirects() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.redirects))
	for k, v := range s.redirects {
		out[k] = v
	}
	return out
}

// SectionText implements wikitext.PageSource's #lst support: the
// concatenation of every <section begin=NAME/>...<section end=NAME/>
// span in title's body.
func (s *Store) SectionText(title, section string) (string, bool) {
	p, ok := s.GetPage(title)
	if !ok {
		return "", false
	}
	spans := extractSections(p.Body, section)
	if len(spans) == 0 {
		return "", false
	}
	return strings.Join(spans, ""), true
}

func extractSections(body, name string) []string {
	begin := "<section begin=" + name + "/>"
	end := "<section end=" + name + "/>"

	var out []string
	rest := body
	for {
		i := strings.Index(rest, begin)
		if i < 0 {
			break
		}
		rest = rest[i+len(begin):]
		j := strings.Index(rest, end)
		if j < 0 {
			break
		}
		out = append(out, rest[:j])
		rest = rest[j+len(end):]
	}
	return out
}

var _ wikitext.PageSource = (*Store)(nil)
