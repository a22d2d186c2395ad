package parse

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/danielledeleo/wikiforge/internal/wikitext/node"
)

// ToWikitext walks the tree back into the markup it was parsed from. This
// is a plain recursive strings.Builder walk: there's no third-party
// serializer in the pack for round-tripping a custom node tree back to a
// wiki-specific text format, and html/template's escaping would actively
// fight a markup (not HTML) output, so this one stays on the standard
// library.
func ToWikitext(n *node.Node) string {
	var b strings.Builder
	writeWikitext(&b, n)
	return b.String()
}

func writeWikitext(b *strings.Builder, n *node.Node) {
	open, closing := wikitextDelims(n)
	b.WriteString(open)
	for _, c := range n.Children {
		if c.IsText() {
			b.WriteString(c.Text)
			continue
		}
		writeWikitext(b, c.Node)
	}
	b.WriteString(closing)
}

func wikitextDelims(n *node.Node) (open, close string) {
	switch n.Kind {
	case node.Bold:
		return "'''", "'''"
	case node.Italic:
		return "''", "''"
	case node.Level2, node.Level3, node.Level4, node.Level5, node.Level6:
		eq := strings.Repeat("=", node.LevelOf(n.Kind))
		return eq + " ", " " + eq + "\n"
	case node.HLine:
		return "----\n", ""
	case node.ListItem:
		prefix := ""
		if len(n.Args) > 0 {
			prefix = n.Args[0]
		}
		return prefix, "\n"
	case node.Preformatted:
		return " ", "\n"
	case node.Link:
		return "[[" + strings.Join(n.Args, "|"), "]]"
	case node.Template:
		return "{{" + strings.Join(n.Args, "|"), "}}"
	case node.TemplateArg:
		return "{{{" + strings.Join(n.Args, "|"), "}}}"
	case node.ParserFn:
		return "{{" + strings.Join(n.Args, "|"), "}}"
	case node.URL:
		if len(n.Args) > 0 {
			return n.Args[0], ""
		}
		return "", ""
	case node.Table:
		attrs := ""
		if len(n.Args) > 0 {
			attrs = " " + n.Args[0]
		}
		return "{|" + attrs + "\n", "|}\n"
	case node.TableCaption:
		return "|+", "\n"
	case node.TableRow:
		attrs := ""
		if len(n.Args) > 0 {
			attrs = " " + n.Args[0]
		}
		return "|-" + attrs + "\n", ""
	case node.TableHeaderCell:
		return "!", "\n"
	case node.TableCell:
		return "|", "\n"
	case node.HTML:
		name := "span"
		if len(n.Args) > 0 {
			name = n.Args[0]
		}
		return "<" + name + renderAttrsWikitext(n) + ">", "</" + name + ">"
	default:
		return "", ""
	}
}

func renderAttrsWikitext(n *node.Node) string {
	if len(n.Attrs) == 0 {
		return ""
	}
	var b strings.Builder
	for k, v := range n.Attrs {
		fmt.Fprintf(&b, " %s=%q", k, v)
	}
	return b.String()
}

// htmlFragments holds one html/template per node.Kind, keyed by the kind's
// String() name, mirroring templater.Templater's map[string]*template.Template
// shape (github.com/danielledeleo/periwiki/templater) — adapted from
// text/template there to html/template here, since this serializer produces
// HTML rather than another round of wikitext and needs the contextual
// auto-escaping html/template adds.
type htmlFragments struct {
	templates map[node.Kind]*template.Template
	sanitizer *bluemonday.Policy
}

// HTMLOption configures a HTMLSerializer, in the same functional-options
// shape as extensions.WikiLinkRendererOption
// (github.com/danielledeleo/periwiki/extensions/wikilink.go).
type HTMLOption func(*htmlFragments)

// WithSanitizerPolicy overrides the default bluemonday policy used to
// scrub the rendered HTML before it's returned.
func WithSanitizerPolicy(p *bluemonday.Policy) HTMLOption {
	return func(f *htmlFragments) { f.sanitizer = p }
}

func newHTMLFragments(opts ...HTMLOption) *htmlFragments {
	f := &htmlFragments{
		templates: map[node.Kind]*template.Template{},
		sanitizer: bluemonday.UGCPolicy(),
	}
	for kind, src := range htmlFragmentSource {
		f.templates[kind] = template.Must(template.New(kind.String()).Parse(src))
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// htmlFragmentSource is one html/template body per node.Kind that produces
// a real HTML element; kinds absent here (Root, Text, MagicWord, Pre) are
// walked without a wrapping element.
var htmlFragmentSource = map[node.Kind]string{
	node.Bold:            `<b>{{.Inner}}</b>`,
	node.Italic:          `<i>{{.Inner}}</i>`,
	node.Level2:          `<h2 id="{{.ID}}">{{.Inner}}</h2>`,
	node.Level3:          `<h3 id="{{.ID}}">{{.Inner}}</h3>`,
	node.Level4:          `<h4 id="{{.ID}}">{{.Inner}}</h4>`,
	node.Level5:          `<h5 id="{{.ID}}">{{.Inner}}</h5>`,
	node.Level6:          `<h6 id="{{.ID}}">{{.Inner}}</h6>`,
	node.HLine:           `<hr>`,
	node.List:            `<{{.Tag}}>{{.Inner}}</{{.Tag}}>`,
	node.ListItem:        `<{{.Tag}}>{{.Inner}}</{{.Tag}}>`,
	node.Preformatted:    `<pre>{{.Inner}}</pre>`,
	node.Link:            `<a href="{{.Href}}">{{.Inner}}</a>`,
	node.URL:             `<a href="{{.Href}}">{{.Inner}}</a>`,
	node.Template:        `{{.Inner}}`,
	node.TemplateArg:     `{{.Inner}}`,
	node.ParserFn:        `{{.Inner}}`,
	node.Table:           `<table{{.Attrs}}>{{.Inner}}</table>`,
	node.TableCaption:    `<caption>{{.Inner}}</caption>`,
	node.TableRow:        `<tr{{.Attrs}}>{{.Inner}}</tr>`,
	node.TableHeaderCell: `<th{{.Attrs}}>{{.Inner}}</th>`,
	node.TableCell:       `<td{{.Attrs}}>{{.Inner}}</td>`,
	node.HTML:            `<{{.Tag}}{{.Attrs}}>{{.Inner}}</{{.Tag}}>`,
}

// ToHTML serializes the tree to HTML. This is a utility serializer only
// (there's no browser-facing render path in scope) used by ToPlainText and
// BuildTOC below; it runs the result through bluemonday's UGC policy as a
// defense-in-depth pass the way periwiki's own HTTP handlers sanitize
// rendered markup before sending it to a browser (wiki/service/rendering.go,
// internal/server/app.go's NewSanitizer).
func ToHTML(n *node.Node, opts ...HTMLOption) (string, error) {
	f := newHTMLFragments(opts...)
	inner, err := f.renderChildren(n)
	if err != nil {
		return "", err
	}
	return f.sanitizer.Sanitize(inner), nil
}

func (f *htmlFragments) renderChildren(n *node.Node) (string, error) {
	var b strings.Builder
	for _, c := range n.Children {
		if c.IsText() {
			b.WriteString(c.Text)
			continue
		}
		s, err := f.render(c.Node)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (f *htmlFragments) render(n *node.Node) (string, error) {
	tmpl, ok := f.templates[n.Kind]
	if !ok {
		return f.renderChildren(n)
	}

	inner, err := f.renderChildren(n)
	if err != nil {
		return "", err
	}

	data := map[string]any{"Inner": template.HTML(inner)}
	switch n.Kind {
	case node.Level2, node.Level3, node.Level4, node.Level5, node.Level6:
		data["ID"] = headingID(n)
	case node.List:
		data["Tag"] = listTag(n)
	case node.ListItem:
		data["Tag"] = listItemTag(n)
	case node.Link, node.URL:
		data["Href"] = linkHref(n)
	case node.Table, node.TableRow, node.TableHeaderCell, node.TableCell, node.HTML:
		data["Attrs"] = template.HTMLAttr(htmlAttrs(n))
		if n.Kind == node.HTML {
			tag := "span"
			if len(n.Args) > 0 {
				tag = n.Args[0]
			}
			data["Tag"] = tag
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return buf.String(), nil
}

func headingID(n *node.Node) string {
	return slugify(n.PlainText())
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '_' || r == '-':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		}
	}
	return strings.Trim(b.String(), "-")
}

func listTag(n *node.Node) string {
	if len(n.Args) > 0 {
		switch n.Args[0][len(n.Args[0])-1] {
		case '#':
			return "ol"
		case ';', ':':
			return "dl"
		}
	}
	return "ul"
}

func listItemTag(n *node.Node) string {
	if len(n.Args) > 0 {
		switch n.Args[0][len(n.Args[0])-1] {
		case ';':
			return "dt"
		case ':':
			return "dd"
		}
	}
	return "li"
}

func linkHref(n *node.Node) string {
	if len(n.Args) == 0 {
		return "#"
	}
	target := strings.TrimSpace(strings.SplitN(n.Args[0], "|", 2)[0])
	return "/" + target
}

func htmlAttrs(n *node.Node) string {
	if len(n.Attrs) == 0 && len(n.Args) == 0 {
		return ""
	}
	var b strings.Builder
	if n.Kind == node.Table || n.Kind == node.TableRow || n.Kind == node.TableHeaderCell || n.Kind == node.TableCell {
		if len(n.Args) > 0 {
			fmt.Fprintf(&b, " %s", n.Args[0])
		}
	}
	for k, v := range n.Attrs {
		fmt.Fprintf(&b, ` %s=%q`, k, v)
	}
	return b.String()
}

// ToPlainText strips markup down to its readable text: render to HTML,
// then tokenize with golang.org/x/net/html and keep only text nodes,
// grounded on render/renderer.go's textContent helper (periwiki builds
// the same "walk an *html.Node tree, concatenate TextNode data" routine
// for its table of contents).
func ToPlainText(n *node.Node) (string, error) {
	htm, err := ToHTML(n)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(htm))
	if err != nil {
		return "", fmt.Errorf("parse rendered html: %w", err)
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(hn *html.Node) {
		if hn.Type == html.TextNode {
			b.WriteString(hn.Data)
		}
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

// TOCEntry is one table-of-contents heading, matching
// render/renderer.go's TOCEntry shape (ID/Text/Children, nested h2 > h3 > h4).
type TOCEntry struct {
	ID       string
	Text     string
	Children []TOCEntry
}

// BuildTOC serializes n to HTML and extracts a nested table of contents
// from the resulting h2/h3/h4 elements via goquery, the same DOM-based
// approach render/renderer.go's Render method uses (document.Find("h2,
// h3, h4") followed by buildTOCTree over the matched *html.Node slice).
func BuildTOC(n *node.Node) ([]TOCEntry, error) {
	htm, err := ToHTML(n)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htm))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	headers := doc.Find("h2, h3, h4")
	if headers.Length() == 0 {
		return nil, nil
	}

	var hnodes []*html.Node
	headers.Each(func(_ int, s *goquery.Selection) {
		hnodes = append(hnodes, s.Nodes[0])
	})
	return buildTOCTree(hnodes), nil
}

func buildTOCTree(nodes []*html.Node) []TOCEntry {
	var root []TOCEntry

	for _, n := range nodes {
		level := tocHeadingLevel(n)
		if level < 2 || level > 4 {
			continue
		}

		entry := TOCEntry{ID: tocAttr(n, "id"), Text: tocText(n)}

		switch level {
		case 2:
			root = append(root, entry)
		case 3:
			if len(root) > 0 {
				root[len(root)-1].Children = append(root[len(root)-1].Children, entry)
			}
		case 4:
			if len(root) > 0 {
				parent := &root[len(root)-1]
				if len(parent.Children) > 0 {
					last := len(parent.Children) - 1
					parent.Children[last].Children = append(parent.Children[last].Children, entry)
				}
			}
		}
	}

	return root
}

func tocHeadingLevel(n *html.Node) int {
	switch n.Data {
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	default:
		return 0
	}
}

func tocAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func tocText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(tocText(c))
	}
	return b.String()
}
