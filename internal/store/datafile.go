package store

import (
	"bufio"
	"os"
	"sync"
)

// dataFile is the append-only page-body file spec.md §4.1 describes:
// writes go through a buffer, the in-memory index records each page's
// {offset, length}, and reads are positional (os.File.ReadAt) so
// multiple replay workers can share one *os.File without seek
// contention, the same requirement periwiki's SQLite layer avoids by
// using a connection pool rather than a single cursor.
type dataFile struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	offset int64
}

func openDataFile(path string) (*dataFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &dataFile{f: f, w: bufio.NewWriter(f), offset: info.Size()}, nil
}

// append writes body to the end of the file and returns its offset and
// length. Safe for concurrent callers (the dump driver's ingest phase is
// single-threaded per spec.md §4.2, but append stays locked regardless).
func (d *dataFile) append(body string) (offset int64, length int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset = d.offset
	n, err := d.w.WriteString(body)
	if err != nil {
		return 0, 0, err
	}
	if err := d.w.Flush(); err != nil {
		return 0, 0, err
	}
	d.offset += int64(n)
	return offset, n, nil
}

// readAt reads length bytes at offset without disturbing any other
// reader's position.
func (d *dataFile) readAt(offset int64, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := d.f.ReadAt(buf, offset); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *dataFile) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.w.Flush(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}
