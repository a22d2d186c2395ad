package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// TemplateDigest hashes every known template's canonical name and body, in
// sorted-name order so the result is deterministic regardless of ingest
// order, adapted from periwiki's render.HashRenderTemplates technique.
// SaveSnapshot records it and the ingest command logs it; no caller in
// this module compares it with SnapshotTemplateDigest, so analysis runs on
// every ingest.
func (s *Store) TemplateDigest() string {
	bodies := s.TemplateBodies()

	names := make([]string, 0, len(bodies))
	for name := range bodies {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(bodies[name]))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
