package lua

import (
	"strconv"

	glua "github.com/yuin/gopher-lua"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
)

// frameBinding closes over the Go objects one #invoke call needs to
// answer the frame API (spec.md §4.7); buildTable constructs the Lua
// table scripts actually see. Every exposed field is a closure baked at
// construction time rather than a metatable __index dispatch, which is
// this bridge's version of spec.md §4.7's "attribute filter that rejects
// access to underscore-prefixed members": nothing but the args table and
// the nine named methods below is ever reachable from script code, so there is no
// member list to filter.
type frameBinding struct {
	title  string
	frame  *wikitext.Frame
	bridge wikitext.ScriptBridge
}

func (b *frameBinding) buildTable(L *glua.LState) *glua.LTable {
	t := L.NewTable()

	t.RawSetString("args", b.argsTable(L))
	t.RawSetString("getTitle", L.NewFunction(func(L *glua.LState) int {
		L.Push(glua.LString(b.title))
		return 1
	}))
	t.RawSetString("getParent", L.NewFunction(func(L *glua.LState) int {
		if b.frame.Parent == nil {
			L.Push(glua.LNil)
			return 1
		}
		parent := &frameBinding{title: b.frame.Parent.Title, frame: b.frame.Parent, bridge: b.bridge}
		L.Push(parent.buildTable(L))
		return 1
	}))
	t.RawSetString("preprocess", L.NewFunction(func(L *glua.LState) int {
		text := L.CheckString(1)
		L.Push(glua.LString(b.bridge.Preprocess(text, b.frame)))
		return 1
	}))
	t.RawSetString("expandTemplate", L.NewFunction(func(L *glua.LState) int {
		opts := L.CheckTable(1)
		title := opts.RawGetString("title").String()
		args := argPairsFromLuaTable(opts.RawGetString("args"))
		L.Push(glua.LString(b.bridge.ExpandTemplate(title, args, b.frame)))
		return 1
	}))
	t.RawSetString("callParserFunction", L.NewFunction(func(L *glua.LState) int {
		name := L.CheckString(1)
		var args []string
		top := L.GetTop()
		for i := 2; i <= top; i++ {
			args = append(args, L.CheckString(i))
		}
		result, _ := b.bridge.CallParserFunction(name, args, b.frame)
		L.Push(glua.LString(result))
		return 1
	}))
	t.RawSetString("extensionTag", L.NewFunction(func(L *glua.LState) int {
		name := L.CheckString(1)
		content := L.OptString(2, "")
		attrs := map[string]string{}
		if t := L.OptTable(3, nil); t != nil {
			t.ForEach(func(k, v glua.LValue) {
				attrs[k.String()] = v.String()
			})
		}
		L.Push(glua.LString(b.bridge.ExtensionTag(name, content, attrs)))
		return 1
	}))
	t.RawSetString("newChild", L.NewFunction(func(L *glua.LState) int {
		opts := L.OptTable(1, L.NewTable())
		title := opts.RawGetString("title").String()
		child := wikitext.NewFrame(title, b.frame)
		for _, pair := range argPairsFromLuaTable(opts.RawGetString("args")) {
			child.Set(pair.Key, pair.Value)
		}
		childBinding := &frameBinding{title: title, frame: child, bridge: b.bridge}
		L.Push(childBinding.buildTable(L))
		return 1
	}))
	t.RawSetString("argumentPairs", L.NewFunction(func(L *glua.LState) int {
		pairs := b.frame.Pairs()
		i := 0
		iter := L.NewFunction(func(L *glua.LState) int {
			if i >= len(pairs) {
				L.Push(glua.LNil)
				return 1
			}
			p := pairs[i]
			i++
			L.Push(glua.LString(p.Key))
			L.Push(glua.LString(p.Value))
			return 2
		})
		L.Push(iter)
		return 1
	}))
	t.RawSetString("getArgument", L.NewFunction(func(L *glua.LState) int {
		key := L.CheckAny(1).String()
		value, ok := b.frame.Get(key)
		if !ok {
			L.Push(glua.LNil)
			return 1
		}
		obj := L.NewTable()
		obj.RawSetString("expand", L.NewFunction(func(L *glua.LState) int {
			L.Push(glua.LString(value))
			return 1
		}))
		L.Push(obj)
		return 1
	}))

	return t
}

// argsTable builds the frame's "args" field: indexable by both integer
// and string key, per spec.md §4.7.
func (b *frameBinding) argsTable(L *glua.LState) *glua.LTable {
	t := L.NewTable()
	for _, p := range b.frame.Pairs() {
		if n, err := strconv.Atoi(p.Key); err == nil {
			t.RawSetInt(n, glua.LString(p.Value))
		} else {
			t.RawSetString(p.Key, glua.LString(p.Value))
		}
	}
	return t
}

// argPairsFromLuaTable reads a Lua table's entries as template-argument
// pairs: array-part entries become positional args "1", "2", ...; hash
// entries keep their string keys.
func argPairsFromLuaTable(v glua.LValue) []wikitext.ArgPair {
	t, ok := v.(*glua.LTable)
	if !ok {
		return nil
	}
	var out []wikitext.ArgPair
	t.ForEach(func(k, val glua.LValue) {
		out = append(out, wikitext.ArgPair{Key: k.String(), Value: val.String()})
	})
	return out
}
