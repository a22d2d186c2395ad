package dump

import "encoding/xml"

// page mirrors the <page> element of a MediaWiki XML export 0.10 dump
// (spec.md §6), field-for-field the same shape as
// wikireader_fastparser/xml.Page but renamed to the Page record §3
// describes (Model/Text/Redirect instead of Revision.Text.Text etc).
type page struct {
	XMLName  xml.Name `xml:"page"`
	Title    string   `xml:"title"`
	Ns       string   `xml:"ns"`
	ID       string   `xml:"id"`
	Redirect struct {
		Title string `xml:"title,attr"`
	} `xml:"redirect"`
	Revision struct {
		Model string `xml:"model"`
		Text  string `xml:"text"`
	} `xml:"revision"`
}

// isRedirect reports whether the dump's own <redirect title="..."/>
// element was present, the authoritative signal rather than sniffing the
// body for a "#REDIRECT" prefix the way wikireader_fastparser's worker
// does.
func (p *page) isRedirect() bool { return p.Redirect.Title != "" }

// body returns the text add_page should store: the redirect target for a
// redirect page (spec.md's convention, since the store's Body field holds
// the target title directly for ModelRedirect pages), the raw revision
// text otherwise.
func (p *page) body() string {
	if p.isRedirect() {
		return p.Redirect.Title
	}
	return p.Revision.Text
}

// model returns the dump's content model name, defaulting to "redirect"
// when the dump marks the page as a redirect but the revision's own
// model field is empty or stale.
func (p *page) model() string {
	if p.isRedirect() {
		return "redirect"
	}
	return p.Revision.Model
}
