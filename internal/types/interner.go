package types

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Interner owns every type of a program. TypeIDs are stable indices: types are
// only ever appended, and named structs may grow members in place.
type Interner struct {
	types []Type
	index map[typeKey]TypeID
	named map[string]TypeID
}

// NewInterner constructs an empty interner with slot 0 reserved as invalid.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
		named: make(map[string]TypeID, 16),
	}
	in.types = append(in.types, Type{Kind: KindInvalid})
	return in
}

// Intern ensures the provided descriptor has a stable TypeID. Named structs are
// matched by name only: a second registration returns the first definition
// and ignores the members it was given.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if t.Kind == KindStruct && t.Name != "" {
		if id, ok := in.named[t.Name]; ok {
			return id
		}
		return in.internRaw(t)
	}
	if id, ok := in.index[keyOf(t)]; ok {
		return id
	}
	return in.internRaw(t)
}

// Append stores the descriptor at the next TypeID without deduplication. The
// first occurrence of a descriptor keeps ownership of its key, so decoding a
// type table reproduces it exactly.
func (in *Interner) Append(t Type) TypeID {
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the maps.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	t.Members = append([]TypeID(nil), t.Members...)
	in.types = append(in.types, t)
	if t.Kind == KindStruct && t.Name != "" {
		if _, ok := in.named[t.Name]; !ok {
			in.named[t.Name] = id
		}
		return id
	}
	key := keyOf(t)
	if _, ok := in.index[key]; !ok {
		in.index[key] = id
	}
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Len returns the number of allocated slots including the reserved one.
func (in *Interner) Len() int {
	return len(in.types)
}

// Named returns the struct registered under name.
func (in *Interner) Named(name string) (TypeID, bool) {
	id, ok := in.named[name]
	return id, ok
}

// AppendMembers grows a struct in place. Every value typed with id observes the
// new members; existing member indices are unchanged.
func (in *Interner) AppendMembers(id TypeID, members ...TypeID) error {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindStruct {
		return fmt.Errorf("types: %d is not a struct", id)
	}
	if t.Name == "" {
		return fmt.Errorf("types: cannot grow literal struct %s", in.String(id))
	}
	in.types[id].Members = append(in.types[id].Members, members...)
	return nil
}

// Convenience constructors ---------------------------------------------------

func (in *Interner) Void() TypeID     { return in.Intern(Type{Kind: KindVoid}) }
func (in *Interner) Label() TypeID    { return in.Intern(Type{Kind: KindLabel}) }
func (in *Interner) Metadata() TypeID { return in.Intern(Type{Kind: KindMetadata}) }
func (in *Interner) Bool() TypeID     { return in.Intern(MakeInt(Width1)) }

// Int interns an integer type of the given width.
func (in *Interner) Int(w Width) TypeID { return in.Intern(MakeInt(w)) }

// Float interns a float type of the given width.
func (in *Interner) Float(w Width) TypeID { return in.Intern(MakeFloat(w)) }

// Pointer interns a pointer to elem in space.
func (in *Interner) Pointer(elem TypeID, space AddrSpace) TypeID {
	return in.Intern(MakePointer(elem, space))
}

// Array interns a fixed-size array.
func (in *Interner) Array(elem TypeID, count uint32) TypeID {
	return in.Intern(MakeArray(elem, count))
}

// Struct interns a named struct.
func (in *Interner) Struct(name string, members ...TypeID) TypeID {
	return in.Intern(MakeStruct(name, members...))
}

// String renders a type in LLVM-like syntax.
func (in *Interner) String(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindLabel:
		return "label"
	case KindMetadata:
		return "metadata"
	case KindInt:
		return "i" + strconv.Itoa(int(t.Width))
	case KindFloat:
		switch t.Width {
		case Width16:
			return "half"
		case Width32:
			return "float"
		case Width64:
			return "double"
		}
		return "f" + strconv.Itoa(int(t.Width))
	case KindPointer:
		if t.Space != AddrDefault {
			return fmt.Sprintf("%s addrspace(%d)*", in.String(t.Elem), t.Space)
		}
		return in.String(t.Elem) + "*"
	case KindArray:
		return fmt.Sprintf("[%d x %s]", t.Count, in.String(t.Elem))
	case KindVector:
		return fmt.Sprintf("<%d x %s>", t.Count, in.String(t.Elem))
	case KindStruct:
		if t.Name != "" {
			return "%" + t.Name
		}
		return "{ " + in.list(t.Members) + " }"
	case KindFunc:
		return in.String(t.Elem) + " (" + in.list(t.Members) + ")"
	}
	return t.Kind.String()
}

func (in *Interner) list(ids []TypeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = in.String(id)
	}
	return strings.Join(parts, ", ")
}

type typeKey struct {
	Kind    Kind
	Width   Width
	Elem    TypeID
	Count   uint32
	Space   AddrSpace
	Members string
}

func keyOf(t Type) typeKey {
	key := typeKey{Kind: t.Kind, Width: t.Width, Elem: t.Elem, Count: t.Count, Space: t.Space}
	if len(t.Members) > 0 {
		var sb strings.Builder
		for i, m := range t.Members {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatUint(uint64(m), 10))
		}
		key.Members = sb.String()
	}
	return key
}
