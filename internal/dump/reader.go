package dump

import (
	"compress/bzip2"
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
)

// OpenDump opens path for streaming, wrapping it in a bzip2 reader when
// the name ends in ".bz2" (spec.md §6: "possibly bzip2-compressed").
// compress/bzip2 is decompression-only, which is all a read-only ingest
// needs.
func OpenDump(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".bz2") {
		return struct {
			io.Reader
			io.Closer
		}{bzip2.NewReader(f), f}, nil
	}
	return f, nil
}

// pageFunc is called once per <page> element found in the dump, in
// document order.
type pageFunc func(*page) error

// decodePages streams r token by token, decoding each <page> element
// into a page and invoking fn, the same xml.Decoder token loop as
// wikireader_fastparser/xml.go's startReader but without its dedup-by-
// title buffering (ingest here is a single linear pass, and dedup on
// re-add is the store's job, not the reader's).
func decodePages(r io.Reader, fn pageFunc) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "page" {
			continue
		}
		var p page
		if err := dec.DecodeElement(&p, &se); err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
}

// parseNamespaceID parses a <ns> element's decimal value, defaulting to
// the main namespace (0) for anything unparsable.
func parseNamespaceID(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
