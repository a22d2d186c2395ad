package wikitext

import (
	"strconv"
	"strings"
)

// ArgPair is one (key, value) pair from a Frame, in insertion order, for
// the script bridge's argumentPairs() (spec.md §4.7).
type ArgPair struct {
	Key   string
	Value string
}

// Frame is spec.md §3's execution context for one template or script
// invocation: positional and named arguments share one namespace
// (numeric names decode to positional), and a frame links to its
// caller's frame as parent.
type Frame struct {
	Title  string
	Parent *Frame
	args   map[string]string
	order  []string
}

// NewFrame constructs a frame for invoking title, with the given parent
// (nil for the top-level/no-enclosing-template case).
func NewFrame(title string, parent *Frame) *Frame {
	return &Frame{Title: title, Parent: parent, args: make(map[string]string)}
}

// normalizeKey applies spec.md §3's key rule: positional keys are
// positive integers, named keys are whitespace-normalized strings, and
// a numeric name decodes to the same key as the equivalent positional
// argument.
func normalizeKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return strconv.Itoa(n)
	}
	return trimmed
}

// Set assigns an argument by key (positional index as a string, or a
// name). Per spec.md §3, "duplicates: the later definition wins" — the
// value is overwritten but the key keeps its first insertion position
// so argumentPairs() iteration order matches MediaWiki's.
func (f *Frame) Set(key, value string) {
	key = normalizeKey(key)
	if _, exists := f.args[key]; !exists {
		f.order = append(f.order, key)
	}
	f.args[key] = value
}

// SetPositional assigns the n-th positional argument (1-based).
func (f *Frame) SetPositional(n int, value string) {
	f.Set(strconv.Itoa(n), value)
}

// Get looks up an argument by key in this frame only (no parent
// fallback — spec.md §4.5's argument-ref rule only consults "the
// current frame's args").
func (f *Frame) Get(key string) (string, bool) {
	v, ok := f.args[normalizeKey(key)]
	return v, ok
}

// Pairs returns all arguments in insertion order, for the script
// bridge's frame:argumentPairs().
func (f *Frame) Pairs() []ArgPair {
	pairs := make([]ArgPair, len(f.order))
	for i, k := range f.order {
		pairs[i] = ArgPair{Key: k, Value: f.args[k]}
	}
	return pairs
}

// Len reports how many distinct argument keys this frame holds.
func (f *Frame) Len() int { return len(f.order) }
