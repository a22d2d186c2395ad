package parserfn

import (
	"strconv"
	"strings"

	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

func init() {
	register("FULLPAGENAME", pfFullPageName)
	register("PAGENAME", pfPageName)
	register("BASEPAGENAME", pfBasePageName)
	register("ROOTPAGENAME", pfRootPageName)
	register("SUBPAGENAME", pfSubPageName)
	register("NAMESPACE", pfNamespace)
	register("TALKPAGENAME", pfTalkPageName)
	register("TALKSPACE", pfTalkSpace)
	register("SUBJECTSPACE", pfSubjectSpace)
	register("ns", pfNs)
	register("titleparts", pfTitleParts)
}

func titleArg(ctx *Context, args []string) string {
	if t := trimmedArg(args, 0, ""); t != "" {
		return t
	}
	return ctx.Title
}

// splitTitle separates a raw "NS:Name" title into its namespace id and
// the unprefixed name part.
func splitTitle(ctx *Context, raw string) (nsID int, name string) {
	if idx := strings.Index(raw, ":"); idx > 0 {
		prefix := raw[:idx]
		if ctx.Namespaces != nil {
			if ns := ctx.Namespaces.Resolve(prefix); ns != nil {
				return ns.ID, raw[idx+1:]
			}
		}
	}
	return namespace.Main, raw
}

func nsPrefix(ctx *Context, nsID int) string {
	if ctx.Namespaces == nil {
		return ""
	}
	if e := ctx.Namespaces.ByID(nsID); e != nil && e.CanonicalName != "" {
		return e.CanonicalName + ":"
	}
	return ""
}

func pfFullPageName(ctx *Context, args []string) string {
	nsID, name := splitTitle(ctx, titleArg(ctx, args))
	return nsPrefix(ctx, nsID) + name
}

func pfPageName(ctx *Context, args []string) string {
	_, name := splitTitle(ctx, titleArg(ctx, args))
	return name
}

func pfBasePageName(ctx *Context, args []string) string {
	_, name := splitTitle(ctx, titleArg(ctx, args))
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[:idx]
	}
	return name
}

func pfRootPageName(ctx *Context, args []string) string {
	_, name := splitTitle(ctx, titleArg(ctx, args))
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[:idx]
	}
	return name
}

func pfSubPageName(ctx *Context, args []string) string {
	_, name := splitTitle(ctx, titleArg(ctx, args))
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func pfNamespace(ctx *Context, args []string) string {
	nsID, _ := splitTitle(ctx, titleArg(ctx, args))
	if ctx.Namespaces == nil {
		return ""
	}
	if e := ctx.Namespaces.ByID(nsID); e != nil {
		return e.CanonicalName
	}
	return ""
}

func pfTalkPageName(ctx *Context, args []string) string {
	nsID, name := splitTitle(ctx, titleArg(ctx, args))
	if ctx.Namespaces == nil {
		return name
	}
	return nsPrefix(ctx, ctx.Namespaces.TalkOf(nsID)) + name
}

func pfTalkSpace(ctx *Context, args []string) string {
	nsID, _ := splitTitle(ctx, titleArg(ctx, args))
	if ctx.Namespaces == nil {
		return ""
	}
	if e := ctx.Namespaces.ByID(ctx.Namespaces.TalkOf(nsID)); e != nil {
		return e.CanonicalName
	}
	return ""
}

func pfSubjectSpace(ctx *Context, args []string) string {
	nsID, _ := splitTitle(ctx, titleArg(ctx, args))
	if ctx.Namespaces == nil {
		return ""
	}
	if e := ctx.Namespaces.ByID(ctx.Namespaces.SubjectOf(nsID)); e != nil {
		return e.CanonicalName
	}
	return ""
}

func pfNs(ctx *Context, args []string) string {
	if ctx.Namespaces == nil {
		return ""
	}
	if e := ctx.Namespaces.Resolve(trimmedArg(args, 0, "")); e != nil {
		return e.CanonicalName
	}
	return ""
}

// pfTitleParts implements #titleparts:title|count|first — splits title on
// ":" and "/" keeping the separators attached to the following segment,
// then returns a slice starting at the 1-based first index (negative
// counts from the end) spanning count segments (0 means "the rest").
func pfTitleParts(ctx *Context, args []string) string {
	title := arg(args, 0, "")
	count := 0
	if c, err := strconv.Atoi(trimmedArg(args, 1, "0")); err == nil {
		count = c
	}
	first := 1
	if f, err := strconv.Atoi(trimmedArg(args, 2, "1")); err == nil {
		first = f
	}

	segs := splitKeepingSeparators(title)
	n := len(segs)
	if n == 0 {
		return ""
	}

	idx := first - 1
	if first < 0 {
		idx = n + first
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		return ""
	}

	end := n
	if count > 0 && idx+count < n {
		end = idx + count
	}
	return strings.Join(segs[idx:end], "")
}

// splitKeepingSeparators splits s on ':' and '/', returning segments
// where each separator stays attached to the segment that follows it
// (matching MediaWiki's #titleparts tokenization).
func splitKeepingSeparators(s string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' || s[i] == '/' {
			segs = append(segs, s[start:i])
			start = i
		}
	}
	segs = append(segs, s[start:])
	if len(segs) > 0 && segs[0] == "" {
		segs = segs[1:]
	}
	return segs
}
