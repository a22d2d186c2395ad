// Package console implements the read-only operator console: a small
// HTTP surface over the page store's diagnostics and C8's pre-expand
// set, useful for watching a dump run progress (spec.md's EXTERNAL
// INTERFACES section). It is deliberately outside C1-C9 and carries none
// of their invariants.
package console

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/jmoiron/sqlx"

	"github.com/danielledeleo/wikiforge/internal/store"
	"github.com/danielledeleo/wikiforge/internal/wikitext"
)

const sessionCookieName = "wikiforge_operator"

// Server is the console's HTTP app: one operator session, a read-only
// view of a *store.Store, and a recent-diagnostics log.
type Server struct {
	Store    *store.Store
	sessions sessions.Store
	diag     *diagLog
	router   *mux.Router
	started  time.Time
}

// New builds a Server backed by db for session persistence (normally the
// same sqlite connection the page store's snapshot uses) and keyPairs
// for cookie signing (see gorilla/securecookie.GenerateRandomKey).
func New(st *store.Store, db *sqlx.DB, keyPairs ...[]byte) (*Server, error) {
	sessStore, err := NewSessionStore(db, "/", int((24 * time.Hour).Seconds()), keyPairs...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Store:    st,
		sessions: sessStore,
		diag:     newDiagLog(200),
		started:  time.Now(),
	}
	s.router = mux.NewRouter()
	s.registerRoutes()
	return s, nil
}

// Handler returns the wrapped http.Handler: gorilla/handlers request
// logging around the mux router, the same layering periwiki's app.go
// describes (SlogLoggingMiddleware wrapping router.Use chains), except
// request logging here goes through gorilla/handlers.CombinedLoggingHandler
// rather than a hand-rolled middleware, since this console has no
// existing slog-format convention of its own to match beyond "log every
// request".
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(slogWriter{}, s.router)
}

// Record feeds one replayed page's diagnostics into the console's
// recent-activity log. It is the log's only entry point; the replay
// command runs in a separate process from serve and does not call it.
func (s *Server) Record(title string, diags []wikitext.Diagnostic) {
	s.diag.Record(title, diags)
}

func (s *Server) registerRoutes() {
	s.router.Use(s.operatorSessionMiddleware)

	s.router.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/pages", s.handlePages).Methods(http.MethodGet)
	s.router.HandleFunc("/pages/{title}", s.handlePage).Methods(http.MethodGet)
	s.router.HandleFunc("/templates", s.handleTemplates).Methods(http.MethodGet)
	s.router.HandleFunc("/diagnostics", s.handleDiagnostics).Methods(http.MethodGet)
}

// operatorSessionMiddleware ensures every request carries the single
// operator session cookie, touching it so its expiry slides forward.
// There is no login step: the console is a local debugging aid, not a
// multi-user surface, so "operator" names an identity, not a privilege
// check.
func (s *Server) operatorSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Get(r, sessionCookieName)
		if err != nil {
			slog.Warn("console session decode failed, issuing a fresh one", "error", err)
		}
		visits, _ := session.Values["visits"].(int)
		session.Values["visits"] = visits + 1
		if err := session.Save(r, w); err != nil {
			slog.Warn("console session save failed", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("console: encoding response", "error", err)
	}
}

// slogWriter adapts slog to gorilla/handlers' io.Writer-based logging
// handlers, so request-access lines go through the process's configured
// logger instead of a second, independent output stream.
type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	slog.Info("console request", "line", string(p))
	return len(p), nil
}
