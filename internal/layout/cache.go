package layout

import "ampcap/internal/types"

// cacheKey includes the member count so structs grown in place get a fresh
// layout.
type cacheKey struct {
	Type    types.TypeID
	Members int
}

type cache struct {
	byType map[cacheKey]TypeLayout
}

func newCache() *cache {
	return &cache{byType: make(map[cacheKey]TypeLayout, 64)}
}

func (c *cache) get(key cacheKey) (TypeLayout, bool) {
	if c == nil {
		return TypeLayout{}, false
	}
	l, ok := c.byType[key]
	return l, ok
}

func (c *cache) put(key cacheKey, l *TypeLayout) {
	if c == nil {
		return
	}
	if l == nil {
		delete(c.byType, key)
		return
	}
	c.byType[key] = *l
}

func (e *LayoutEngine) keyOf(id types.TypeID) cacheKey {
	key := cacheKey{Type: id}
	if tt, ok := e.Types.Lookup(id); ok && tt.Kind == types.KindStruct {
		key.Members = len(tt.Members)
	}
	return key
}
