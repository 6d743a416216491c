// Package payload walks aggregate payload types and emits the instructions
// that move them between groupshared memory and a raw read/write buffer.
package payload

import (
	"fmt"
	"slices"

	"ampcap/internal/types"
)

// Leaf is one scalar of a payload type in depth-first order.
type Leaf struct {
	// Path holds the member and element indices below the payload root.
	Path []uint32
	Type types.TypeID
	// Width is the scalar width in bits.
	Width types.Width
	Float bool
}

// Bytes returns the packed size of the leaf.
func (l Leaf) Bytes() uint32 { return uint32(l.Width) / 8 }

// UnsupportedError reports a type the copier cannot move.
type UnsupportedError struct {
	Type types.TypeID
	Kind types.Kind
	Path []uint32
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported payload leaf %s (%s) at %v", e.Name, e.Kind, e.Path)
}

// RecursiveError reports an aggregate that contains itself by value.
type RecursiveError struct {
	Type types.TypeID
	Path []uint32
}

func (e *RecursiveError) Error() string {
	return fmt.Sprintf("payload type#%d contains itself at %v", e.Type, e.Path)
}

// Leaves lists the scalar leaves of t. Arrays are expanded element by
// element and aggregates member by member; zero-length arrays contribute
// nothing. Pointers, functions, vectors, labels, metadata, void and bool are
// rejected.
func Leaves(in *types.Interner, t types.TypeID) ([]Leaf, error) {
	w := walker{in: in, open: make(map[types.TypeID]bool, 8)}
	if err := w.walk(t, nil); err != nil {
		return nil, err
	}
	return w.out, nil
}

type walker struct {
	in   *types.Interner
	open map[types.TypeID]bool
	out  []Leaf
}

func (w *walker) walk(t types.TypeID, path []uint32) error {
	tt, ok := w.in.Lookup(t)
	if !ok {
		return &UnsupportedError{Type: t, Kind: types.KindInvalid, Path: slices.Clone(path), Name: "invalid"}
	}
	switch tt.Kind {
	case types.KindInt, types.KindFloat:
		if tt.Width < types.Width8 {
			break
		}
		w.out = append(w.out, Leaf{Path: slices.Clone(path), Type: t, Width: tt.Width, Float: tt.Kind == types.KindFloat})
		return nil
	case types.KindArray, types.KindStruct:
		if w.open[t] {
			return &RecursiveError{Type: t, Path: slices.Clone(path)}
		}
		w.open[t] = true
		defer delete(w.open, t)
		if tt.Kind == types.KindStruct {
			for i, m := range tt.Members {
				if err := w.walk(m, append(path, uint32(i))); err != nil {
					return err
				}
			}
			return nil
		}
		for i := range tt.Count {
			if err := w.walk(tt.Elem, append(path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	return &UnsupportedError{Type: t, Kind: tt.Kind, Path: slices.Clone(path), Name: w.in.String(t)}
}

// PackedSize sums the leaf sizes of t.
func PackedSize(leaves []Leaf) uint32 {
	var n uint32
	for _, l := range leaves {
		n += l.Bytes()
	}
	return n
}
