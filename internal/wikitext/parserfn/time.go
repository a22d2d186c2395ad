package parserfn

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func init() {
	register("time", pfTime)
}

// permissiveLayouts are tried in order against the (non-"now") date
// argument; MediaWiki's #time accepts a broad variety of input shapes.
var permissiveLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
	"January 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"01/02/2006",
}

func pfTime(ctx *Context, args []string) string {
	format := arg(args, 0, "")
	dateArg := strings.TrimSpace(arg(args, 1, ""))
	local := strings.TrimSpace(arg(args, 3, "")) != ""

	var t time.Time
	if dateArg == "" || strings.EqualFold(dateArg, "now") {
		if ctx.Now != nil {
			t = time.Unix(ctx.Now(), 0).UTC()
		} else {
			t = time.Unix(0, 0).UTC()
		}
	} else {
		var parsed time.Time
		var err error
		ok := false
		for _, layout := range permissiveLayouts {
			parsed, err = time.Parse(layout, dateArg)
			if err == nil {
				ok = true
				break
			}
		}
		if !ok {
			return errMarker(fmt.Errorf("Invalid time."))
		}
		t = parsed.UTC()
	}

	if local {
		t = t.Local()
	}

	return formatMediaWikiTime(format, t)
}

// formatMediaWikiTime translates MediaWiki's PHP-style #time format
// string into text. A double-quoted run is emitted literally.
func formatMediaWikiTime(format string, t time.Time) string {
	var b strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '"' {
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				b.WriteRune(runes[j])
				j++
			}
			i = j
			continue
		}
		b.WriteString(timeChar(c, t))
	}
	return b.String()
}

func timeChar(c rune, t time.Time) string {
	switch c {
	case 'Y':
		return strconv.Itoa(t.Year())
	case 'y':
		return pad2(t.Year() % 100)
	case 'L':
		if isLeap(t.Year()) {
			return "1"
		}
		return "0"
	case 'o':
		year, _ := t.ISOWeek()
		return strconv.Itoa(year)
	case 'n':
		return strconv.Itoa(int(t.Month()))
	case 'm':
		return pad2(int(t.Month()))
	case 'M':
		return t.Month().String()[:3]
	case 'F':
		return t.Month().String()
	case 'j':
		return strconv.Itoa(t.Day())
	case 'd':
		return pad2(t.Day())
	case 'z':
		return strconv.Itoa(t.YearDay() - 1)
	case 'W':
		_, week := t.ISOWeek()
		return pad2(week)
	case 'N':
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return strconv.Itoa(wd)
	case 'w':
		return strconv.Itoa(int(t.Weekday()))
	case 'D':
		return t.Weekday().String()[:3]
	case 'l':
		return t.Weekday().String()
	case 'A':
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case 'a':
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case 'g':
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		return strconv.Itoa(h)
	case 'h':
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		return pad2(h)
	case 'G':
		return strconv.Itoa(t.Hour())
	case 'H':
		return pad2(t.Hour())
	case 'i':
		return pad2(t.Minute())
	case 's':
		return pad2(t.Second())
	case 'U':
		return strconv.FormatInt(t.Unix(), 10)
	case 'e':
		name, _ := t.Zone()
		return name
	case 'I':
		return "0"
	case 'O':
		_, offset := t.Zone()
		sign := "+"
		if offset < 0 {
			sign = "-"
			offset = -offset
		}
		return sign + pad2(offset/3600) + pad2((offset/60)%60)
	case 'P':
		_, offset := t.Zone()
		sign := "+"
		if offset < 0 {
			sign = "-"
			offset = -offset
		}
		return sign + pad2(offset/3600) + ":" + pad2((offset/60)%60)
	case 'T':
		name, _ := t.Zone()
		return name
	case 'Z':
		_, offset := t.Zone()
		return strconv.Itoa(offset)
	case 't':
		return strconv.Itoa(daysInMonth(t.Year(), int(t.Month())))
	case 'c':
		return t.Format("2006-01-02T15:04:05-07:00")
	case 'r':
		return t.Format("Mon, 02 Jan 2006 15:04:05 -0700")
	default:
		return string(c)
	}
}

func pad2(n int) string {
	if n < 10 && n >= 0 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
