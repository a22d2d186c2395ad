package console

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/jmoiron/sqlx"
)

func init() {
	gob.Register(time.Time{})
}

// SessionStore backs the console's single operator cookie with the same
// sqlite database the page store's snapshot lives in, adapted from
// periwiki's internal/storage/session_store.go. That file already
// replaced michaeljs1990/sqlitestore with a direct sqlx/securecookie
// implementation for being unmaintained (DESIGN.md records why this
// module drops the dependency rather than importing it); this is the
// same replacement, generalized from article-editor sessions to one
// anonymous operator identity.
type SessionStore struct {
	db      *sqlx.DB
	codecs  []securecookie.Codec
	Options *sessions.Options
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS console_sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_data TEXT NOT NULL,
	created_on   DATETIME NOT NULL,
	expires_on   DATETIME NOT NULL
);
`

// NewSessionStore creates a SessionStore and ensures its backing table
// exists. keyPairs are passed to securecookie.CodecsFromPairs.
func NewSessionStore(db *sqlx.DB, cookiePath string, maxAge int, keyPairs ...[]byte) (*SessionStore, error) {
	if _, err := db.Exec(sessionSchema); err != nil {
		return nil, err
	}
	return &SessionStore{
		db:     db,
		codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:   cookiePath,
			MaxAge: maxAge,
		},
	}, nil
}

// Get returns a cached session if present, otherwise calls New.
func (s *SessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New creates or loads a session, the same cookie-then-DB lookup
// periwiki's SessionStore.New performs.
func (s *SessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	session.Options = &sessions.Options{Path: s.Options.Path, MaxAge: s.Options.MaxAge}
	session.IsNew = true

	var err error
	if c, errCookie := r.Cookie(name); errCookie == nil {
		err = securecookie.DecodeMulti(name, c.Value, &session.ID, s.codecs...)
		if err == nil {
			if loadErr := s.load(session); loadErr == nil {
				session.IsNew = false
			}
		}
	}
	return session, err
}

// Save persists the session and sets the cookie.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	var err error
	if session.ID == "" {
		err = s.insert(session)
	} else {
		err = s.update(session)
	}
	if err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Delete removes the session row and expires the cookie.
func (s *SessionStore) Delete(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	options := *session.Options
	options.MaxAge = -1
	http.SetCookie(w, sessions.NewCookie(session.Name(), "", &options))

	for k := range session.Values {
		delete(session.Values, k)
	}

	_, err := s.db.Exec(`DELETE FROM console_sessions WHERE id = ?`, session.ID)
	return err
}

func (s *SessionStore) insert(session *sessions.Session) error {
	createdOn := time.Now()
	expiresOn := createdOn.Add(time.Second * time.Duration(session.Options.MaxAge))

	encoded, err := securecookie.EncodeMulti(session.Name(), session.Values, s.codecs...)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`INSERT INTO console_sessions (session_data, created_on, expires_on) VALUES (?, ?, ?)`,
		encoded, createdOn, expiresOn)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	session.ID = fmt.Sprintf("%d", id)
	return nil
}

func (s *SessionStore) update(session *sessions.Session) error {
	if session.IsNew {
		return s.insert(session)
	}

	expiresOn := time.Now().Add(time.Second * time.Duration(session.Options.MaxAge))
	encoded, err := securecookie.EncodeMulti(session.Name(), session.Values, s.codecs...)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`UPDATE console_sessions SET session_data = ?, expires_on = ? WHERE id = ?`,
		encoded, expiresOn, session.ID)
	return err
}

func (s *SessionStore) load(session *sessions.Session) error {
	var data string
	var expiresOn time.Time

	err := s.db.QueryRowx(
		`SELECT session_data, expires_on FROM console_sessions WHERE id = ?`, session.ID,
	).Scan(&data, &expiresOn)
	if err != nil {
		return err
	}
	if time.Now().After(expiresOn) {
		return fmt.Errorf("console session expired")
	}
	return securecookie.DecodeMulti(session.Name(), data, &session.Values, s.codecs...)
}
