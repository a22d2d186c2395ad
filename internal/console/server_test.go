package console

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/securecookie"

	"github.com/danielledeleo/wikiforge/internal/store"
	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "pages.dat"), namespace.NewDefault(nil), false)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.AddPage("wikitext", "Foo", "hello {{Greet}}"); err != nil {
		t.Fatalf("AddPage Foo: %v", err)
	}
	if err := st.AddPage("wikitext", "Template:Greet", "hi"); err != nil {
		t.Fatalf("AddPage Template:Greet: %v", err)
	}
	if err := st.AddPage("redirect", "Bar", "Foo"); err != nil {
		t.Fatalf("AddPage Bar: %v", err)
	}
	st.SetPreExpand("Greet", true)

	db, err := store.OpenSnapshotDB(filepath.Join(dir, "snapshot.db"))
	if err != nil {
		t.Fatalf("OpenSnapshotDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(st, db, securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleDashboard(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var view dashboardView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", view.PageCount)
	}
	if view.TemplateCount != 1 {
		t.Errorf("TemplateCount = %d, want 1", view.TemplateCount)
	}
	if view.RedirectCount != 1 {
		t.Errorf("RedirectCount = %d, want 1", view.RedirectCount)
	}
	if view.TemplateDigest == "" {
		t.Errorf("TemplateDigest empty")
	}
}

func TestHandlePagesListsSorted(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/pages")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var pages []pageSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &pages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("len(pages) = %d, want 3", len(pages))
	}
	for i := 1; i < len(pages); i++ {
		if pages[i-1].Title > pages[i].Title {
			t.Fatalf("pages not sorted: %v", pages)
		}
	}
}

func TestHandlePageResolvesRedirect(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/pages/Bar")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var view pageView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Title != "Foo" {
		t.Errorf("Title = %q, want Foo (redirect resolved)", view.Title)
	}
}

func TestHandlePageMissingReturns404(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/pages/DoesNotExist")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleTemplatesReportsPreExpand(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/templates")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var templates []templateView
	if err := json.Unmarshal(rec.Body.Bytes(), &templates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("len(templates) = %d, want 1", len(templates))
	}
	if !templates[0].NeedsPreExpand {
		t.Errorf("NeedsPreExpand = false, want true")
	}
}

func TestHandleDiagnosticsReturnsRecordedEntries(t *testing.T) {
	srv := newTestServer(t)
	srv.Record("Foo", []wikitext.Diagnostic{{Title: "Foo", Message: "unmatched nowiki"}})
	srv.Record("Empty", nil)

	rec := doGet(t, srv, "/diagnostics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var entries []PageDiagnostics
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (empty-diagnostic page skipped)", len(entries))
	}
	if entries[0].Title != "Foo" {
		t.Errorf("Title = %q, want Foo", entries[0].Title)
	}
}

func TestSessionCookieReissuedOnSecondRequest(t *testing.T) {
	srv := newTestServer(t)

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	rec1 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec1, req1)

	cookies := rec1.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected a session cookie to be set")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req2.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("second request status = %d", rec2.Code)
	}
	if len(rec2.Result().Cookies()) == 0 {
		t.Errorf("expected session cookie to be re-issued on second request")
	}
}
