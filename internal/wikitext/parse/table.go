package parse

import (
	"strings"

	"github.com/danielledeleo/wikiforge/internal/wikitext/node"
)

// openTable pushes a new TABLE node; attrs is the raw text following
// "{|" on the opening line (spec.md §4.9's table attribute string).
func (p *Parser) openTable(attrs string) {
	p.closeLists(0)
	t := node.New(node.Table, p.line)
	if a := strings.TrimSpace(attrs); a != "" {
		t.Args = []string{a}
	}
	p.push(t)
	p.tableDepth++
	p.inTable = true
}

// closeTable pops back out through any open row/cell to the innermost
// table node and clears table mode only once every nested table has
// been closed; called both by "|}" and at end of input for an
// unterminated table.
func (p *Parser) closeTable() {
	if !p.inTable {
		return
	}
	for len(p.stack) > 1 {
		top := p.current()
		p.stack = p.stack[:len(p.stack)-1]
		if top.Kind == node.Table {
			break
		}
	}
	p.tableDepth--
	p.inTable = p.tableDepth > 0
}

// dispatchTableLine handles one line while inside "{| ... |}", per
// spec.md §4.9: caption, row, header-cell, and data-cell tokens are only
// recognized at line start; anything else is inline content appended to
// whatever cell/caption is currently open. Returns false when the line
// isn't itself a table-governed line (the table has implicitly ended,
// e.g. a line starting "==" that dispatchLine's caller should handle as
// a heading instead) — in practice every line while inTable is
// table-governed, so this always returns true, but the bool return
// keeps dispatchLine's call site uniform with the other block matchers.
func (p *Parser) dispatchTableLine(line string) bool {
	if tableCloseRe.MatchString(line) {
		p.closeTable()
		return true
	}
	if m := tableOpenRe.FindStringSubmatch(line); m != nil {
		p.openTable(m[1]) // nested table: openTable leaves p.inTable true
		return true
	}
	if m := tableRowRe.FindStringSubmatch(line); m != nil {
		p.closeOpenRow() // leaves the enclosing table node on top of the stack
		row := node.New(node.TableRow, p.line)
		if attrs := strings.TrimSpace(m[1]); attrs != "" {
			row.Args = []string{attrs} // "|- attrs" carries the row's own attribute string, not cells
		}
		p.push(row)
		return true
	}
	if m := tableCaptionRe.FindStringSubmatch(line); m != nil {
		p.closeOpenRow()
		caption := node.New(node.TableCaption, p.line)
		p.push(caption)
		p.parseInlineLine(m[1])
		p.pop()
		return true
	}
	if m := tableHeaderRe.FindStringSubmatch(line); m != nil {
		p.ensureRow()
		p.splitCellsInto(m[1], "!!", node.TableHeaderCell)
		return true
	}
	if m := tableCellRe.FindStringSubmatch(line); m != nil {
		p.ensureRow()
		p.splitCellsInto(m[1], "||", node.TableCell)
		return true
	}

	// Continuation text for whatever cell/caption is currently open.
	p.parseInlineLine(line)
	p.current().Append("\n")
	return true
}

// closeOpenRow pops back to (and including) the currently open row, if
// any, leaving the table itself on top of the stack.
func (p *Parser) closeOpenRow() {
	for len(p.stack) > 1 {
		top := p.current()
		if top.Kind == node.Table {
			return
		}
		p.stack = p.stack[:len(p.stack)-1]
		if top.Kind == node.TableRow {
			return
		}
	}
}

// ensureRow opens an implicit row when a header/data cell token appears
// with none open yet (a table may start straight into "!" or "|" cells
// without an explicit "|-").
func (p *Parser) ensureRow() {
	for i := len(p.stack) - 1; i >= 0; i-- {
		switch p.stack[i].Kind {
		case node.TableRow:
			p.stack = p.stack[:i+1]
			return
		case node.Table:
			row := node.New(node.TableRow, p.line)
			p.stack[i].AppendNode(row)
			p.stack = append(p.stack[:i+1], row)
			return
		}
	}
}

// splitCellsInto splits rest on sep (MediaWiki also allows splitting a
// cell on a single '|' to separate an attribute segment from content,
// handled per-cell below), builds one node of kind per cell, and closes
// any previously open cell first.
func (p *Parser) splitCellsInto(rest string, sep string, kind node.Kind) {
	for _, part := range strings.Split(rest, sep) {
		p.closeOpenCell()
		cell := node.New(kind, p.line)
		content := part
		if i := strings.IndexByte(part, '|'); i >= 0 && looksLikeAttrs(part[:i]) {
			cell.Args = []string{part[:i]}
			content = part[i+1:]
		}
		p.push(cell)
		p.parseInlineLine(content)
	}
}

func (p *Parser) closeOpenCell() {
	if top := p.current(); top.Kind == node.TableCell || top.Kind == node.TableHeaderCell {
		p.stack = p.stack[:len(p.stack)-1]
	}
}
