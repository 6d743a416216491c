package types

import "testing"

func TestInternerReservesInvalid(t *testing.T) {
	in := NewInterner()
	if _, ok := in.Lookup(NoTypeID); ok {
		t.Fatalf("NoTypeID must not resolve")
	}
	if in.Intern(Type{Kind: KindInvalid}) != NoTypeID {
		t.Fatalf("invalid descriptor must map to NoTypeID")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	i32 := in.Int(Width32)
	if in.Int(Width32) != i32 {
		t.Fatalf("scalar types should be deduplicated")
	}
	arr1 := in.Array(i32, 4)
	arr2 := in.Intern(MakeArray(i32, 4))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Array(i32, 5) == arr1 {
		t.Fatalf("array count must affect identity")
	}
}

func TestPointerSpaceAffectsIdentity(t *testing.T) {
	in := NewInterner()
	i8 := in.Int(Width8)
	if in.Pointer(i8, AddrDefault) == in.Pointer(i8, AddrGroupShared) {
		t.Fatalf("address space must affect pointer identity")
	}
}

func TestNamedStructReturnsFirstDefinition(t *testing.T) {
	in := NewInterner()
	i32 := in.Int(Width32)
	i8 := in.Int(Width8)
	first := in.Struct("dx.types.ResBind", i32, i32, i32, i8)
	again := in.Struct("dx.types.ResBind")
	if first != again {
		t.Fatalf("re-registering a name must return the existing struct")
	}
	if got := len(in.MustLookup(again).Members); got != 4 {
		t.Fatalf("members = %d, want 4", got)
	}
}

func TestAppendMembersIsVisibleThroughAliases(t *testing.T) {
	in := NewInterner()
	f32 := in.Float(Width32)
	i32 := in.Int(Width32)
	payload := in.Struct("struct.Payload", f32)
	ptr := in.Pointer(payload, AddrGroupShared)

	if err := in.AppendMembers(payload, i32, i32); err != nil {
		t.Fatalf("AppendMembers: %v", err)
	}
	pointee := in.MustLookup(ptr).Elem
	if got := len(in.MustLookup(pointee).Members); got != 3 {
		t.Fatalf("members through pointer = %d, want 3", got)
	}
	if err := in.AppendMembers(i32, f32); err == nil {
		t.Fatalf("expected error growing a scalar")
	}
}

func TestAppendKeepsTableOrder(t *testing.T) {
	in := NewInterner()
	a := in.Append(MakeInt(Width32))
	b := in.Append(MakeInt(Width32))
	if a == b {
		t.Fatalf("Append must not deduplicate")
	}
	if in.Int(Width32) != a {
		t.Fatalf("first occurrence should own the key")
	}
}

func TestString(t *testing.T) {
	in := NewInterner()
	i32 := in.Int(Width32)
	payload := in.Struct("struct.Payload", in.Float(Width32), in.Array(i32, 2))
	tests := []struct {
		id   TypeID
		want string
	}{
		{i32, "i32"},
		{in.Float(Width64), "double"},
		{in.Array(i32, 2), "[2 x i32]"},
		{payload, "%struct.Payload"},
		{in.Pointer(payload, AddrGroupShared), "%struct.Payload addrspace(3)*"},
		{in.Intern(MakeStruct("", i32, i32)), "{ i32, i32 }"},
	}
	for _, tt := range tests {
		if got := in.String(tt.id); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
