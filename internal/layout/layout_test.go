package layout

import (
	"errors"
	"testing"

	"ampcap/internal/types"
)

func TestStructLayoutPadsMembers(t *testing.T) {
	in := types.NewInterner()
	i8 := in.Int(types.Width8)
	i64 := in.Int(types.Width64)
	f32 := in.Float(types.Width32)
	s := in.Struct("struct.Mixed", i8, i64, f32)

	e := New(GroupShared(), in)
	l, err := e.LayoutOf(s)
	if err != nil {
		t.Fatalf("LayoutOf: %v", err)
	}
	if l.Size != 24 || l.Align != 8 {
		t.Fatalf("layout = size %d align %d, want 24/8", l.Size, l.Align)
	}
	want := []int{0, 8, 16}
	for i, off := range want {
		if l.FieldOffsets[i] != off {
			t.Fatalf("field %d offset = %d, want %d", i, l.FieldOffsets[i], off)
		}
	}

	packed, err := e.PackedSize(s)
	if err != nil {
		t.Fatalf("PackedSize: %v", err)
	}
	if packed != 13 {
		t.Fatalf("packed = %d, want 13", packed)
	}
}

func TestPackedSizeCountsArrays(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Int(types.Width32)
	s := in.Struct("struct.Payload", in.Float(types.Width32), in.Array(i32, 2), in.Array(i32, 0))
	e := New(GroupShared(), in)
	packed, err := e.PackedSize(s)
	if err != nil {
		t.Fatalf("PackedSize: %v", err)
	}
	if packed != 12 {
		t.Fatalf("packed = %d, want 12", packed)
	}
}

func TestPackedSizeRejectsPointers(t *testing.T) {
	in := types.NewInterner()
	ptr := in.Pointer(in.Int(types.Width32), types.AddrDefault)
	s := in.Struct("struct.Bad", ptr)
	e := New(GroupShared(), in)
	_, err := e.PackedSize(s)
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != LayoutErrUnsized {
		t.Fatalf("expected unsized error, got %v", err)
	}
}

func TestOffsetOfFollowsPath(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Int(types.Width32)
	i16 := in.Int(types.Width16)
	inner := in.Struct("struct.Inner", i16, i32)
	outer := in.Struct("struct.Outer", in.Float(types.Width64), in.Array(inner, 3))
	e := New(GroupShared(), in)

	off, ty, err := e.OffsetOf(outer, []uint64{0, 1, 2, 1})
	if err != nil {
		t.Fatalf("OffsetOf: %v", err)
	}
	// outer: f64 at 0, array at 8; inner stride 8; member 1 at 4
	if off != 8+2*8+4 || ty != i32 {
		t.Fatalf("offset=%d type=%d, want 28/%d", off, ty, i32)
	}
	if _, _, err := e.OffsetOf(outer, []uint64{0, 1, 3}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestGrownStructGetsFreshLayout(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Int(types.Width32)
	s := in.Struct("struct.Payload", i32)
	e := New(GroupShared(), in)
	before, _ := e.SizeOf(s)
	if err := in.AppendMembers(s, i32, i32, i32, i32); err != nil {
		t.Fatal(err)
	}
	after, _ := e.SizeOf(s)
	if before != 4 || after != 20 {
		t.Fatalf("sizes = %d -> %d, want 4 -> 20", before, after)
	}
}

func TestPackedSizeRejectsSelfContainingStruct(t *testing.T) {
	in := types.NewInterner()
	s := in.Struct("struct.Payload", in.Int(types.Width32))
	if err := in.AppendMembers(s, s); err != nil {
		t.Fatal(err)
	}
	e := New(GroupShared(), in)
	_, err := e.PackedSize(s)
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrRecursive {
		t.Fatalf("PackedSize err = %v, want recursive", err)
	}
	if len(le.Cycle) != 2 || le.Cycle[0] != s || le.Cycle[1] != s {
		t.Fatalf("cycle = %v", le.Cycle)
	}
	if _, err := e.LayoutOf(s); !errors.As(err, &le) || le.Kind != LayoutErrRecursive {
		t.Fatalf("LayoutOf err = %v, want recursive", err)
	}
}

func TestPackedSizeRejectsOverflow(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Int(types.Width32)
	e := New(GroupShared(), in)
	cases := map[string]types.TypeID{
		"array":  in.Array(i32, 0x40000001),
		"nested": in.Array(in.Array(i32, 0x10000), 0x10000),
		"struct": in.Struct("struct.Big", in.Array(i32, 0x3FFFFFFF), in.Array(i32, 0x3FFFFFFF)),
	}
	for name, id := range cases {
		_, err := e.PackedSize(id)
		var le *LayoutError
		if !errors.As(err, &le) || le.Kind != LayoutErrOverflow {
			t.Fatalf("%s: PackedSize err = %v, want overflow", name, err)
		}
		if _, err := e.LayoutOf(id); !errors.As(err, &le) || le.Kind != LayoutErrOverflow {
			t.Fatalf("%s: LayoutOf err = %v, want overflow", name, err)
		}
	}

	largest := in.Array(in.Int(types.Width8), 0xFFFFFFFF)
	if got, err := e.PackedSize(largest); err != nil || got != 0xFFFFFFFF {
		t.Fatalf("PackedSize = %d, %v", got, err)
	}
}
