// Package parse implements the structural parser (spec.md §4.9): a
// line-aware state machine that turns preprocessed (and optionally
// cookie-bearing) wikitext into the typed node tree package node
// defines, plus the three serializers spec.md §4.9 calls for.
package parse

import (
	"regexp"
	"strings"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/node"
)

var (
	headingRe      = regexp.MustCompile(`^(=+)[ \t]*(.*?)[ \t]*(=+)[ \t]*$`)
	hrRe           = regexp.MustCompile(`^----+`)
	listPrefixRe   = regexp.MustCompile(`^([*#;:]+)(.*)$`)
	preLineRe      = regexp.MustCompile(`^ (.*)$`)
	tableOpenRe    = regexp.MustCompile(`^\{\|(.*)$`)
	tableCloseRe   = regexp.MustCompile(`^\|\}`)
	tableCaptionRe = regexp.MustCompile(`^\|\+(.*)$`)
	tableRowRe     = regexp.MustCompile(`^\|-+[ \t]*(.*)$`)
	tableHeaderRe  = regexp.MustCompile(`^!(.*)$`)
	tableCellRe    = regexp.MustCompile(`^\|(.*)$`)
)

// openSpan tracks one currently-open inline bold/italic node, for the
// cross-nesting close logic in toggleSpan.
type openSpan struct {
	kind node.Kind
	n    *node.Node
}

// listFrame is one level of the currently open list-prefix chain.
type listFrame struct {
	ch   byte // one of '*', '#', ';', ':'
	list *node.Node
}

// Parser holds the state spec.md §4.9 describes: a stack of open nodes,
// plus the auxiliary bookkeeping (list chain, inline spans, table mode)
// the block dispatch below needs.
type Parser struct {
	page  *wikitext.Page
	root  *node.Node
	stack []*node.Node

	lists     []listFrame
	openSpans []openSpan

	inTable    bool
	tableDepth int
	line       int
}

// New constructs a Parser over page (used for cookie resolution and
// diagnostics).
func New(page *wikitext.Page) *Parser {
	root := node.New(node.Root, 0)
	return &Parser{page: page, root: root, stack: []*node.Node{root}}
}

// Parse runs the full structural parse and returns the root node.
func Parse(text string, page *wikitext.Page) *node.Node {
	p := New(page)
	p.run(text)
	return p.root
}

func (p *Parser) current() *node.Node { return p.stack[len(p.stack)-1] }

func (p *Parser) push(n *node.Node) {
	p.current().AppendNode(n)
	p.stack = append(p.stack, n)
}

// popTo pops the stack until (and including) n is removed, or the root
// is reached.
func (p *Parser) popTo(n *node.Node) {
	for len(p.stack) > 1 {
		top := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if top == n {
			return
		}
	}
}

func (p *Parser) run(text string) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		p.line = i + 1
		p.dispatchLine(line)
	}
	if !strings.HasSuffix(text, "\n") {
		if cur := p.current(); len(cur.Children) > 0 {
			if last := &cur.Children[len(cur.Children)-1]; last.IsText() {
				last.Text = strings.TrimSuffix(last.Text, "\n")
			}
		}
	}
	for p.inTable {
		p.closeTable()
	}
	p.closeHeadings(2)
}

// dispatchLine handles one line's block-level token, per spec.md §4.9.
func (p *Parser) dispatchLine(line string) {
	if p.inTable {
		if p.dispatchTableLine(line) {
			return
		}
	}

	if m := tableOpenRe.FindStringSubmatch(line); m != nil {
		p.openTable(m[1])
		return
	}

	if m := headingRe.FindStringSubmatch(line); m != nil {
		level := minInt(len(m[1]), len(m[3]))
		if level >= 2 && level <= 6 {
			p.openHeading(level, m[2])
			return
		}
	}

	if hrRe.MatchString(line) {
		p.closeLists(0)
		p.current().AppendNode(node.New(node.HLine, p.line))
		return
	}

	if m := listPrefixRe.FindStringSubmatch(line); m != nil {
		p.handleListLine(m[1], m[2])
		return
	}

	if strings.TrimSpace(line) == "" {
		p.closeLists(0)
		p.current().Append("\n")
		return
	}

	if m := preLineRe.FindStringSubmatch(line); m != nil {
		p.closeLists(0)
		pre := node.New(node.Preformatted, p.line)
		p.parseInlineInto(pre, m[1])
		p.current().AppendNode(pre)
		p.current().Append("\n")
		return
	}

	p.closeLists(0)
	p.parseInlineLine(line)
	p.current().Append("\n")
}

// openHeading implements spec.md §4.9's "level-N pop rule": close any
// open heading of level >= N, then open and push the new one.
func (p *Parser) openHeading(level int, text string) {
	p.closeLists(0)
	p.closeHeadings(level)
	h := node.New(node.LevelKind(level), p.line)
	p.parseInlineInto(h, text)
	p.push(h)
}

// closeHeadings pops every open heading node whose level is >= level.
func (p *Parser) closeHeadings(level int) {
	for len(p.stack) > 1 {
		top := p.current()
		l := node.LevelOf(top.Kind)
		if l == 0 || l < level {
			return
		}
		p.stack = p.stack[:len(p.stack)-1]
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
