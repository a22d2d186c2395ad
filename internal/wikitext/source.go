package wikitext

// PageSource is the slice of the page store (C1) the expansion engine
// consults: template bodies (with their pre-expand flag), page
// existence, and <section> extraction for #lst. internal/store's
// Store satisfies this directly.
type PageSource interface {
	// TemplateLookup resolves a canonical template name to its body and
	// C8 pre-expand flag; ok is false on a miss.
	TemplateLookup(canonicalName string) (body string, needsPreExpand bool, ok bool)

	// PageExists reports whether title names a known page, for #ifexist.
	PageExists(title string) bool

	// SectionText returns the concatenation of every
	// <section begin=NAME/>...<section end=NAME/> span in title's body,
	// for #lst. ok is false if the page or section doesn't exist.
	SectionText(title, section string) (string, bool)
}
