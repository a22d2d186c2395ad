package parserfn

// Stubs for extension parser functions outside this system's transclusion
// core: sufficient to let templates that reference them expand to
// something inert rather than fail outright. #statements has no lookup
// hook and returns empty, matching the others.
func init() {
	register("wikidata", pfStub)
	register("statements", pfStatements)
	register("categorytree", pfStub)
	register("filepath", pfStub)
	register("coordinates", pfStub)
}

func pfStub(ctx *Context, args []string) string { return "" }

// pfStatements consults no lookup: no Wikibase store is modeled here, so
// it always reports empty, same as the other stubs.
func pfStatements(ctx *Context, args []string) string { return "" }
