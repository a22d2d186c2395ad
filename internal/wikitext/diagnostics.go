package wikitext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// Severity is one of spec.md §7's four levels.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityDebug
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Diagnostic is one accumulated message for the page currently being
// processed (spec.md §7).
type Diagnostic struct {
	Severity Severity
	Title    string
	Message  string
}

// Diagnostics accumulates messages for one page; cleared by StartPage.
// It never panics or aborts expansion — every call site that would raise
// instead appends here and keeps going, per spec.md §7's propagation
// rule that "expansion never raises".
type Diagnostics struct {
	items []Diagnostic
	title string
}

// StartPage clears the diagnostics list and records the page title that
// subsequent messages will be attributed to.
func (d *Diagnostics) StartPage(title string) {
	d.items = d.items[:0]
	d.title = title
}

func (d *Diagnostics) add(sev Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.items = append(d.items, Diagnostic{Severity: sev, Title: d.title, Message: msg})
	level := slog.LevelInfo
	switch sev {
	case SeverityDebug:
		level = slog.LevelDebug
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, msg, "title", d.title)
}

// Debugf records a DEBUG diagnostic (benign recovery).
func (d *Diagnostics) Debugf(format string, args ...any) { d.add(SeverityDebug, format, args...) }

// Warnf records a WARNING diagnostic (output produced, semantics uncertain).
func (d *Diagnostics) Warnf(format string, args ...any) { d.add(SeverityWarning, format, args...) }

// Errorf records an ERROR diagnostic (operation aborted or a red marker
// was produced).
func (d *Diagnostics) Errorf(format string, args ...any) { d.add(SeverityError, format, args...) }

// ToReturn exposes the accumulated messages for the current page, the
// way spec.md §7 describes worker handlers forwarding them.
func (d *Diagnostics) ToReturn() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}

// Sentinel errors for the "programmer contract violation" hard failures
// spec.md §7 calls out, in periwiki's wiki/errors.go style (a flat list
// of exported sentinel errors rather than a custom error type per case).
var (
	ErrEmptyTitle  = errors.New("wikitext: page title must not be empty")
	ErrNotStarted  = errors.New("wikitext: StartPage must be called before expansion")
	ErrDepthExceeded = errors.New("wikitext: recursion depth limit exceeded")
)
