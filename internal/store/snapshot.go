package store

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// snapshot persists the in-memory index, template pre-expand flags, and
// redirect map to a sidecar SQLite database (spec.md §4.1: "the index...
// can be pickled alongside the templates map and the pre-expand set,
// allowing a subsequent run to skip ingest entirely"), adapted from
// periwiki's internal/storage/sqlite.go connection-and-prepared-statement
// pattern. The page bodies themselves stay in the append-only data file;
// this table set only records where to find them.
const snapshotSchema = `
CREATE TABLE IF NOT EXISTS page_index (
	title        TEXT PRIMARY KEY,
	namespace_id INTEGER NOT NULL,
	model        INTEGER NOT NULL,
	offset       INTEGER NOT NULL,
	length       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS redirects (
	title  TEXT PRIMARY KEY,
	target TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS templates (
	canonical_name   TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	needs_pre_expand INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// OpenSnapshotDB opens (creating and migrating if absent) the sidecar
// SQLite database at path.
func OpenSnapshotDB(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SaveSnapshot writes the current index, redirect map, and template
// pre-expand flags to db, replacing whatever was there before. Page
// bodies are not duplicated into SQLite; only their data-file location
// is recorded.
func (s *Store) SaveSnapshot(db *sqlx.DB) error {
	digest := s.TemplateDigest()

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM page_index", "DELETE FROM redirects", "DELETE FROM templates"} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	for title, e := range s.index {
		if _, err := tx.Exec(
			`INSERT INTO page_index (title, namespace_id, model, offset, length) VALUES (?, ?, ?, ?, ?)`,
			title, e.namespaceID, int(e.model), e.offset, e.length); err != nil {
			return err
		}
	}
	for title, target := range s.redirects {
		if _, err := tx.Exec(`INSERT INTO redirects (title, target) VALUES (?, ?)`, title, target); err != nil {
			return err
		}
	}
	for name, t := range s.templates {
		needs := 0
		if t.needsPreExpand {
			needs = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO templates (canonical_name, title, needs_pre_expand) VALUES (?, ?, ?)`, name, t.title, needs); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('analyzed', ?)`, boolToStr(s.analyzed)); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('template_digest', ?)`, digest); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSnapshot replaces the Store's in-memory index, redirect map, and
// template pre-expand flags with what's recorded in db. The page-body
// data file referenced by the snapshot's offsets must be the same one
// this Store was Open'd with.
func (s *Store) LoadSnapshot(db *sqlx.DB) error {
	var rows []struct {
		Title       string `db:"title"`
		NamespaceID int    `db:"namespace_id"`
		Model       int    `db:"model"`
		Offset      int64  `db:"offset"`
		Length      int    `db:"length"`
	}
	if err := db.Select(&rows, `SELECT title, namespace_id, model, offset, length FROM page_index`); err != nil {
		return err
	}

	var redirectRows []struct {
		Title  string `db:"title"`
		Target string `db:"target"`
	}
	if err := db.Select(&redirectRows, `SELECT title, target FROM redirects`); err != nil {
		return err
	}

	var templateRows []struct {
		CanonicalName  string `db:"canonical_name"`
		Title          string `db:"title"`
		NeedsPreExpand int    `db:"needs_pre_expand"`
	}
	if err := db.Select(&templateRows, `SELECT canonical_name, title, needs_pre_expand FROM templates`); err != nil {
		return err
	}

	var analyzedStr string
	_ = db.Get(&analyzedStr, `SELECT value FROM meta WHERE key = 'analyzed'`)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = make(map[string]indexEntry, len(rows))
	for _, r := range rows {
		s.index[r.Title] = indexEntry{offset: r.Offset, length: r.Length, namespaceID: r.NamespaceID, model: ContentModel(r.Model)}
	}

	s.redirects = make(map[string]string, len(redirectRows))
	for _, r := range redirectRows {
		s.redirects[r.Title] = r.Target
	}

	s.templates = make(map[string]templateEntry, len(templateRows))
	for _, r := range templateRows {
		s.templates[r.CanonicalName] = templateEntry{title: r.Title, needsPreExpand: r.NeedsPreExpand != 0}
	}

	s.analyzed = analyzedStr == "1"
	return nil
}

// SnapshotTemplateDigest reads the template digest recorded by the last
// SaveSnapshot, without touching the Store's in-memory state. No caller in
// this module compares it with TemplateDigest.
func SnapshotTemplateDigest(db *sqlx.DB) (string, bool) {
	var digest string
	if err := db.Get(&digest, `SELECT value FROM meta WHERE key = 'template_digest'`); err != nil {
		return "", false
	}
	return digest, true
}

func boolToStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
