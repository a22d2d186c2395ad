package parserfn

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func init() {
	register("lc", pfLc)
	register("uc", pfUc)
	register("lcfirst", pfLcfirst)
	register("ucfirst", pfUcfirst)
	register("formatnum", pfFormatnum)
	register("len", pfLen)
	register("pos", pfPos)
	register("rpos", pfRpos)
	register("sub", pfSub)
	register("pad", pfPad)
	register("replace", pfReplace)
	register("explode", pfExplode)
	register("urlencode", pfURLEncode)
	register("urldecode", pfURLDecode)
	register("padleft", pfPadLeft)
	register("padright", pfPadRight)
	register("anchorencode", pfAnchorEncode)
}

var (
	lowerCaser = cases.Lower(language.Und)
	upperCaser = cases.Upper(language.Und)
	titleCaser = cases.Title(language.Und)
)

func pfLc(ctx *Context, args []string) string { return lowerCaser.String(arg(args, 0, "")) }
func pfUc(ctx *Context, args []string) string { return upperCaser.String(arg(args, 0, "")) }

func pfLcfirst(ctx *Context, args []string) string {
	return mapFirstRune(arg(args, 0, ""), lowerCaser.String)
}
func pfUcfirst(ctx *Context, args []string) string {
	return mapFirstRune(arg(args, 0, ""), upperCaser.String)
}

func mapFirstRune(s string, f func(string) string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return f(string(runes[0])) + string(runes[1:])
}

// pfFormatnum inserts thousands separators into a number. Flags:
// "R" reverses formatting (strips separators back to a plain number),
// "NOSEP" formats without inserting separators.
func pfFormatnum(ctx *Context, args []string) string {
	num := arg(args, 0, "")
	flags := trimmedArg(args, 1, "")

	if strings.Contains(flags, "R") {
		return strings.ReplaceAll(num, ",", "")
	}

	neg := strings.HasPrefix(num, "-")
	if neg {
		num = num[1:]
	}
	intPart, fracPart, hasFrac := num, "", false
	if idx := strings.Index(num, "."); idx >= 0 {
		intPart, fracPart, hasFrac = num[:idx], num[idx+1:], true
	}

	if !strings.Contains(flags, "NOSEP") {
		intPart = groupThousands(intPart)
	}

	out := intPart
	if hasFrac {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func pfLen(ctx *Context, args []string) string {
	return strconv.Itoa(len([]rune(arg(args, 0, ""))))
}

func pfPos(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	needle := arg(args, 1, "")
	offset := intArg(args, 2, 0)
	r := []rune(s)
	if offset < 0 {
		offset = 0
	}
	if offset > len(r) {
		return ""
	}
	idx := strings.Index(string(r[offset:]), needle)
	if idx < 0 {
		return ""
	}
	return strconv.Itoa(offset + len([]rune(string(r[offset:])[:idx])))
}

func pfRpos(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	needle := arg(args, 1, "")
	idx := strings.LastIndex(s, needle)
	if idx < 0 {
		return "-1"
	}
	return strconv.Itoa(len([]rune(s[:idx])))
}

func intArg(args []string, i, def int) int {
	v, err := strconv.Atoi(trimmedArg(args, i, ""))
	if err != nil {
		return def
	}
	return v
}

// pfSub implements #sub: string|start|length with Python-style negative
// indices; a zero or omitted length means "the rest of the string".
func pfSub(ctx *Context, args []string) string {
	r := []rune(arg(args, 0, ""))
	n := len(r)
	start := intArg(args, 1, 0)
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if start > n {
		return ""
	}
	length := intArg(args, 2, 0)
	end := n
	if length > 0 {
		end = start + length
		if end > n {
			end = n
		}
	} else if length < 0 {
		end = n + length
		if end < start {
			end = start
		}
	}
	return string(r[start:end])
}

func pfPad(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	length := intArg(args, 1, 0)
	padChar := arg(args, 2, "0")
	direction := strings.ToLower(trimmedArg(args, 3, "right"))
	if padChar == "" {
		padChar = "0"
	}
	switch direction {
	case "left":
		return padSide(s, length, padChar, true)
	case "center":
		return padCenter(s, length, padChar)
	default:
		return padSide(s, length, padChar, false)
	}
}

func padSide(s string, length int, padChar string, left bool) string {
	need := length - len([]rune(s))
	if need <= 0 {
		return s
	}
	pad := strings.Repeat(padChar, need)
	pad = string([]rune(pad)[:need])
	if left {
		return pad + s
	}
	return s + pad
}

func padCenter(s string, length int, padChar string) string {
	need := length - len([]rune(s))
	if need <= 0 {
		return s
	}
	leftN := need / 2
	rightN := need - leftN
	return strings.Repeat(padChar, leftN)[:leftN] + s + strings.Repeat(padChar, rightN)[:rightN]
}

func pfPadLeft(ctx *Context, args []string) string {
	return padSide(arg(args, 0, ""), intArg(args, 1, 0), orDefault(arg(args, 2, ""), "0"), true)
}

func pfPadRight(ctx *Context, args []string) string {
	return padSide(arg(args, 0, ""), intArg(args, 1, 0), orDefault(arg(args, 2, ""), "0"), false)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func pfReplace(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	from := arg(args, 1, "")
	to := arg(args, 2, "")
	if from == "" {
		return s
	}
	return strings.ReplaceAll(s, from, to)
}

func pfExplode(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	delim := arg(args, 1, "")
	index := intArg(args, 2, 0)
	limit := intArg(args, 3, -1)

	var parts []string
	if delim == "" {
		parts = []string{s}
	} else if limit > 0 {
		parts = strings.SplitN(s, delim, limit)
	} else {
		parts = strings.Split(s, delim)
	}

	if index < 0 {
		index += len(parts)
	}
	if index < 0 || index >= len(parts) {
		return ""
	}
	return parts[index]
}

func pfURLEncode(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	mode := strings.ToUpper(trimmedArg(args, 1, "QUERY"))
	switch mode {
	case "PATH":
		return url.PathEscape(s)
	case "WIKI":
		return strings.ReplaceAll(url.QueryEscape(s), "%20", "_")
	default: // QUERY
		return url.QueryEscape(s)
	}
}

func pfURLDecode(ctx *Context, args []string) string {
	s, err := url.QueryUnescape(arg(args, 0, ""))
	if err != nil {
		return arg(args, 0, "")
	}
	return s
}

// pfAnchorEncode converts spaces to underscores and percent-encodes
// quote-like/reserved characters, using "." in place of "%" the way
// MediaWiki's anchorencode builds fragment ids.
func pfAnchorEncode(ctx *Context, args []string) string {
	s := arg(args, 0, "")
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			encoded := url.QueryEscape(string(r))
			b.WriteString(strings.ReplaceAll(encoded, "%", "."))
		}
	}
	return b.String()
}

var _ = titleCaser // reserved for future title-case magic words
