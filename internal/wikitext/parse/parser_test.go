package parse

import (
	"testing"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/node"
)

func newTestPage(t *testing.T, title string) *wikitext.Page {
	t.Helper()
	p := wikitext.NewPage()
	if err := p.StartPage(title); err != nil {
		t.Fatalf("StartPage: %v", err)
	}
	return p
}

func firstChildNode(t *testing.T, n *node.Node) *node.Node {
	t.Helper()
	for _, c := range n.Children {
		if !c.IsText() {
			return c.Node
		}
	}
	t.Fatalf("no node child found under %s", n.Kind)
	return nil
}

func TestListNestingTreeShape(t *testing.T) {
	page := newTestPage(t, "Test")
	text := "*one\n**two\n**three\n*four\n"
	root := Parse(text, page)

	top := firstChildNode(t, root)
	if top.Kind != node.List {
		t.Fatalf("expected top-level LIST, got %s", top.Kind)
	}

	var items []*node.Node
	for _, c := range top.Children {
		if !c.IsText() {
			items = append(items, c.Node)
		}
	}
	// "one", nested list (**two/**three), "four" -> 3 node children.
	if len(items) != 3 {
		t.Fatalf("expected 3 children under top list, got %d", len(items))
	}
	if items[0].Kind != node.ListItem || items[0].Args[0] != "*" {
		t.Errorf("item 0: want LIST_ITEM prefix '*', got %s %v", items[0].Kind, items[0].Args)
	}
	if items[1].Kind != node.List || items[1].Args[0] != "**" {
		t.Errorf("item 1: want nested LIST prefix '**', got %s %v", items[1].Kind, items[1].Args)
	}
	nested := items[1]
	var nestedItems []*node.Node
	for _, c := range nested.Children {
		if !c.IsText() {
			nestedItems = append(nestedItems, c.Node)
		}
	}
	if len(nestedItems) != 2 {
		t.Fatalf("expected 2 nested items, got %d", len(nestedItems))
	}
	if items[2].Kind != node.ListItem || items[2].Args[0] != "*" {
		t.Errorf("item 2: want LIST_ITEM prefix '*', got %s %v", items[2].Kind, items[2].Args)
	}
}

func TestDefinitionListSplitsIntoTermAndDef(t *testing.T) {
	page := newTestPage(t, "Test")
	root := Parse(";term:definition\n", page)

	list := firstChildNode(t, root)
	var items []*node.Node
	for _, c := range list.Children {
		if !c.IsText() {
			items = append(items, c.Node)
		}
	}
	if len(items) != 2 {
		t.Fatalf("expected term+def items, got %d", len(items))
	}
	if items[0].Args[0] != ";" || items[0].PlainText() != "term" {
		t.Errorf("term item: got prefix %q text %q", items[0].Args[0], items[0].PlainText())
	}
	if items[1].Args[0] != ":" || items[1].PlainText() != "definition" {
		t.Errorf("def item: got prefix %q text %q", items[1].Args[0], items[1].PlainText())
	}
}

func TestHeadingLevelPopRule(t *testing.T) {
	page := newTestPage(t, "Test")
	text := "== A ==\ntext1\n=== B ===\ntext2\n== C ==\ntext3\n"
	root := Parse(text, page)

	var headings []*node.Node
	for _, c := range root.Children {
		if !c.IsText() && node.LevelOf(c.Node.Kind) > 0 {
			headings = append(headings, c.Node)
		}
	}
	if len(headings) != 2 {
		t.Fatalf("expected 2 top-level headings (B should nest under A), got %d", len(headings))
	}
	if headings[0].Kind != node.Level2 || headings[1].Kind != node.Level2 {
		t.Fatalf("expected both top-level headings at Level2")
	}

	var sub []*node.Node
	for _, c := range headings[0].Children {
		if !c.IsText() && c.Node.Kind == node.Level3 {
			sub = append(sub, c.Node)
		}
	}
	if len(sub) != 1 {
		t.Fatalf("expected 1 Level3 heading nested under first Level2, got %d", len(sub))
	}
}

func TestBoldItalicCrossNesting(t *testing.T) {
	page := newTestPage(t, "Test")
	// "''italic '''both''' more'''" style cross-nesting: open italic, open
	// bold inside it, close italic first (closing bold too, then reopening
	// bold), then close bold.
	text := "''one'''two''three'''\n"
	root := Parse(text, page)

	para := firstChildNodeOrNil(root)
	if para == nil {
		t.Fatalf("expected at least one inline node under root")
	}
	if para.Kind != node.Italic {
		t.Fatalf("expected outermost span ITALIC, got %s", para.Kind)
	}
}

func firstChildNodeOrNil(n *node.Node) *node.Node {
	for _, c := range n.Children {
		if !c.IsText() {
			return c.Node
		}
	}
	return nil
}

func TestTableWithNestedTable(t *testing.T) {
	page := newTestPage(t, "Test")
	text := "{| class=\"outer\"\n|-\n| cell one\n{|\n|-\n| inner cell\n|}\n|-\n| cell two\n|}\n"
	root := Parse(text, page)

	outer := firstChildNode(t, root)
	if outer.Kind != node.Table {
		t.Fatalf("expected TABLE, got %s", outer.Kind)
	}
	if len(outer.Args) != 1 || outer.Args[0] != `class="outer"` {
		t.Errorf("expected outer table attrs, got %v", outer.Args)
	}

	var rows []*node.Node
	for _, c := range outer.Children {
		if !c.IsText() && c.Node.Kind == node.TableRow {
			rows = append(rows, c.Node)
		}
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows in outer table, got %d", len(rows))
	}

	// First row's cell should contain a nested TABLE.
	var firstCell *node.Node
	for _, c := range rows[0].Children {
		if !c.IsText() && c.Node.Kind == node.TableCell {
			firstCell = c.Node
			break
		}
	}
	if firstCell == nil {
		t.Fatalf("expected a cell in the first row")
	}
	var foundNested bool
	for _, c := range firstCell.Children {
		if !c.IsText() && c.Node.Kind == node.Table {
			foundNested = true
		}
	}
	if !foundNested {
		t.Errorf("expected nested TABLE inside first row's cell")
	}
}

func TestRowDashCarriesAttributesNotCellContent(t *testing.T) {
	page := newTestPage(t, "Test")
	text := "{|\n|- style=\"color:red\"\n| a cell\n|}\n"
	root := Parse(text, page)

	table := firstChildNode(t, root)
	row := firstChildNode(t, table)
	if row.Kind != node.TableRow {
		t.Fatalf("expected TABLE_ROW, got %s", row.Kind)
	}
	if len(row.Args) != 1 || row.Args[0] != `style="color:red"` {
		t.Fatalf("expected row attrs from '|-' line, got %v", row.Args)
	}
	var cellFound bool
	for _, c := range row.Children {
		if !c.IsText() && c.Node.Kind == node.TableCell {
			cellFound = true
			if c.Node.PlainText() != " a cell" && c.Node.PlainText() != "a cell" {
				t.Errorf("unexpected cell text %q", c.Node.PlainText())
			}
		}
	}
	if !cellFound {
		t.Errorf("expected a TABLE_CELL child of the row")
	}
}

func TestUnmatchedHTMLClosingTagKeptAsText(t *testing.T) {
	page := newTestPage(t, "Test")
	root := Parse("hello </b> world\n", page)

	text := root.PlainText()
	if got := text; got == "" {
		t.Fatalf("expected some text content")
	}
	if !contains(text, "</b>") {
		t.Errorf("expected unmatched </b> kept literally in output, got %q", text)
	}
	if len(page.Diag.ToReturn()) == 0 {
		t.Errorf("expected a diagnostic to be recorded for the unmatched tag")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestCookieTemplateDispatch(t *testing.T) {
	page := newTestPage(t, "Test")
	encoded := page.Encode("{{Infobox|name=Foo}} text")
	root := Parse(encoded, page)

	var tmpl *node.Node
	var walk func(*node.Node)
	walk = func(n *node.Node) {
		if n.Kind == node.Template {
			tmpl = n
		}
		for _, c := range n.Children {
			if !c.IsText() {
				walk(c.Node)
			}
		}
	}
	walk(root)

	if tmpl == nil {
		t.Fatalf("expected a TEMPLATE node from cookie dispatch")
	}
	if len(tmpl.Args) == 0 || tmpl.Args[0] != "Infobox" {
		t.Errorf("expected template title arg 'Infobox', got %v", tmpl.Args)
	}
}

func TestCookieParserFnDispatch(t *testing.T) {
	page := newTestPage(t, "Test")
	encoded := page.Encode("{{#if:yes|then|else}}")
	root := Parse(encoded, page)

	var fn *node.Node
	var walk func(*node.Node)
	walk = func(n *node.Node) {
		if n.Kind == node.ParserFn {
			fn = n
		}
		for _, c := range n.Children {
			if !c.IsText() {
				walk(c.Node)
			}
		}
	}
	walk(root)

	if fn == nil {
		t.Fatalf("expected a PARSER_FN node from cookie dispatch")
	}
}

func TestBareURLRecognized(t *testing.T) {
	page := newTestPage(t, "Test")
	root := Parse("see https://example.com/path for more\n", page)

	var url *node.Node
	var walk func(*node.Node)
	walk = func(n *node.Node) {
		if n.Kind == node.URL {
			url = n
		}
		for _, c := range n.Children {
			if !c.IsText() {
				walk(c.Node)
			}
		}
	}
	walk(root)

	if url == nil {
		t.Fatalf("expected a URL node for the bare link")
	}
	if len(url.Args) == 0 || url.Args[0] != "https://example.com/path" {
		t.Errorf("unexpected URL args %v", url.Args)
	}
}
