package layout

import (
	"math"

	"fortio.org/safecast"

	"ampcap/internal/types"
)

// TypeLayout is the in-memory layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int
}

// LayoutEngine computes memory layout for types.
type LayoutEngine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		index: make(map[types.TypeID]int, 16),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	layout, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return layout, err
	}
	return layout, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	key := e.keyOf(t)
	if cached, ok := e.cache.get(key); ok {
		return cached, nil
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{
			Kind:  LayoutErrRecursive,
			Type:  t,
			Cycle: cycle,
		}
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	if err == nil {
		e.cache.put(key, &layout)
	}
	return layout, err
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (e *LayoutEngine) FieldOffset(structT types.TypeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, &LayoutError{Kind: LayoutErrIndex, Type: structT, Value: int64(fieldIdx)}
	}
	return l.FieldOffsets[fieldIdx], nil
}

// OffsetOf resolves a GEP-style index path below a pointer: path[0] steps over
// whole objects of type base, the rest select array elements and struct
// members. It returns the byte offset and the type reached.
func (e *LayoutEngine) OffsetOf(base types.TypeID, path []uint64) (int, types.TypeID, error) {
	if len(path) == 0 {
		return 0, base, nil
	}
	size, err := e.SizeOf(base)
	if err != nil {
		return 0, types.NoTypeID, err
	}
	first, err := safecast.Conv[int](path[0])
	if err != nil {
		return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrIndex, Type: base, Err: err}
	}
	if size > 0 && first > math.MaxInt/size {
		return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrOverflow, Type: base}
	}
	offset := first * size
	cur := base
	for _, raw := range path[1:] {
		idx, err := safecast.Conv[int](raw)
		if err != nil {
			return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrIndex, Type: cur, Err: err}
		}
		tt, ok := e.Types.Lookup(cur)
		if !ok {
			return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrUnsized, Type: cur}
		}
		switch tt.Kind {
		case types.KindArray, types.KindVector:
			if idx >= int(tt.Count) {
				return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrIndex, Type: cur, Value: int64(idx)}
			}
			elemSize, err := e.SizeOf(tt.Elem)
			if err != nil {
				return 0, types.NoTypeID, err
			}
			offset += idx * elemSize
			cur = tt.Elem
		case types.KindStruct:
			fieldOff, err := e.FieldOffset(cur, idx)
			if err != nil {
				return 0, types.NoTypeID, err
			}
			offset += fieldOff
			cur = tt.Members[idx]
		default:
			return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrIndex, Type: cur, Value: int64(idx)}
		}
	}
	return offset, cur, nil
}

// PackedSize returns the byte count of all scalar leaves of t laid end to end
// with no padding. Only scalars, arrays and structs have a packed size.
func (e *LayoutEngine) PackedSize(t types.TypeID) (uint32, error) {
	size, err := e.packedSize(t, newLayoutState())
	if err != nil {
		return 0, err
	}
	return uint32(size), nil //nolint:gosec // bounded by MaxObjectSize
}

func (e *LayoutEngine) packedSize(t types.TypeID, state *layoutState) (uint64, *LayoutError) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return 0, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}
	switch tt.Kind {
	case types.KindInt, types.KindFloat:
		if tt.Width < types.Width8 {
			return 0, &LayoutError{Kind: LayoutErrUnsized, Type: t}
		}
		return uint64(tt.Bytes()), nil
	case types.KindArray, types.KindStruct:
	default:
		return 0, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}

	if idx, seen := state.index[t]; seen {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		return 0, &LayoutError{Kind: LayoutErrRecursive, Type: t, Cycle: append(cycle, t)}
	}
	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	defer func() {
		state.stack = state.stack[:len(state.stack)-1]
		delete(state.index, t)
	}()

	var total uint64
	if tt.Kind == types.KindArray {
		elem, err := e.packedSize(tt.Elem, state)
		if err != nil {
			return 0, err
		}
		total = elem * uint64(tt.Count)
	} else {
		for _, m := range tt.Members {
			sz, err := e.packedSize(m, state)
			if err != nil {
				return 0, err
			}
			total += sz
			if total > MaxObjectSize {
				break
			}
		}
	}
	if total > MaxObjectSize {
		return 0, &LayoutError{Kind: LayoutErrOverflow, Type: t}
	}
	return total, nil
}
