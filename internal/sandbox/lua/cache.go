package lua

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	glua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// protoCache compiles Lua source to bytecode once and reuses it across
// every fresh *glua.LState a later invocation creates, keyed by the
// source's content hash rather than its module name — the same
// technique periwiki's render/templatehash.go applies to template
// directories, applied here to module source instead.
type protoCache struct {
	mu    sync.Mutex
	protos map[string]*glua.FunctionProto
}

func newProtoCache() *protoCache {
	return &protoCache{protos: make(map[string]*glua.FunctionProto)}
}

func contentHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// compile returns a fresh *glua.LFunction bound to L for the given
// source, compiling (and caching the resulting bytecode) only on a
// cache miss.
func (c *protoCache) compile(L *glua.LState, name, source string) (*glua.LFunction, error) {
	key := contentHash(source)

	c.mu.Lock()
	proto, ok := c.protos[key]
	c.mu.Unlock()

	if !ok {
		chunk, err := parse.Parse(strings.NewReader(source), name)
		if err != nil {
			return nil, err
		}
		proto, err = glua.Compile(chunk, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.protos[key] = proto
		c.mu.Unlock()
	}

	return L.NewFunctionFromProto(proto), nil
}
