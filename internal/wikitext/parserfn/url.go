package parserfn

import (
	"net/url"
	"strings"
)

func init() {
	register("fullurl", pfFullURL)
	register("localurl", pfLocalURL)
}

// pfFullURL and pfLocalURL both build `/wiki/Title?query` style URLs the
// way templater/urlhelper.go assembles page links; "full" differs only
// in that a real deployment would prefix it with the project's base URL,
// which this bridge leaves to the caller via InterwikiURL-style config
// (kept local/full identical here, matching the stub's documented
// sufficiency for tests).
func pfFullURL(ctx *Context, args []string) string { return buildWikiURL(ctx, args) }
func pfLocalURL(ctx *Context, args []string) string { return buildWikiURL(ctx, args) }

func buildWikiURL(ctx *Context, args []string) string {
	title := arg(args, 0, ctx.Title)

	if idx := strings.Index(title, ":"); idx > 0 && ctx.InterwikiURL != nil {
		prefix, rest := title[:idx], title[idx+1:]
		if tmpl, ok := ctx.InterwikiURL(prefix); ok {
			return strings.ReplaceAll(tmpl, "$1", url.PathEscape(rest))
		}
	}

	u := "/wiki/" + strings.ReplaceAll(url.PathEscape(title), "%2F", "/")
	if len(args) > 1 {
		query := strings.Join(args[1:], "&")
		if query != "" {
			u += "?" + query
		}
	}
	return u
}
