package parse

import "github.com/danielledeleo/wikiforge/internal/wikitext/node"

// handleListLine implements spec.md §4.9's list-nesting rule: the
// prefix string is compared against the currently open chain; a common
// prefix is kept, the rest of the open chain is closed, and any new
// levels in the new prefix are opened, before the line's own text
// becomes one or two new LIST_ITEMs.
//
// A ';'-prefixed line splits its text on the first unescaped ':' into a
// term item (the ';' item itself) and, when present, a separate
// definition item at the same depth with prefix ":" — matching how
// MediaWiki's own `;term:definition` shorthand expands to a <dt> and a
// <dd> pair. A line whose prefix is plain ":" (with no preceding ';' on
// the same line) is exactly that definition item written on its own
// line, so it needs no special handling beyond normal list nesting.
func (p *Parser) handleListLine(prefix, text string) {
	common := 0
	for common < len(prefix) && common < len(p.lists) && p.lists[common].ch == prefix[common] {
		common++
	}

	p.closeLists(common)

	for i := common; i < len(prefix); i++ {
		list := node.New(node.List, p.line)
		list.Args = []string{prefix[:i+1]}
		p.push(list)
		p.lists = append(p.lists, listFrame{ch: prefix[i], list: list})
	}

	lastCh := prefix[len(prefix)-1]
	if lastCh != ';' {
		p.appendListItem(prefix, text)
		return
	}

	head, def, hasDef := splitDefinition(text)
	p.appendListItem(prefix, head)
	if hasDef {
		defPrefix := prefix[:len(prefix)-1] + ":"
		p.appendListItem(defPrefix, def)
	}
}

func (p *Parser) appendListItem(prefix, text string) {
	item := node.New(node.ListItem, p.line)
	item.Args = []string{prefix}
	p.push(item)
	p.parseInlineLine(text)
	p.pop()
}

// closeLists closes open list levels down to keep, the common-prefix
// length with the line just read.
func (p *Parser) closeLists(keep int) {
	for len(p.lists) > keep {
		frame := p.lists[len(p.lists)-1]
		p.popTo(frame.list)
		p.lists = p.lists[:len(p.lists)-1]
	}
}

// splitDefinition splits a ';' item's text on the first unescaped ':'
// into head and def (spec.md §4.9).
func splitDefinition(text string) (head, def string, hasDef bool) {
	for i := 0; i < len(text); i++ {
		if text[i] == ':' && (i == 0 || text[i-1] != '\\') {
			return text[:i], text[i+1:], true
		}
	}
	return text, "", false
}
