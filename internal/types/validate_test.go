package types

import (
	"strings"
	"testing"
)

func TestValidateAcceptsPointerCycleThroughNamedStruct(t *testing.T) {
	in := NewInterner()
	node := in.Struct("Node", in.Int(Width32))
	if err := in.AppendMembers(node, in.Pointer(node, AddrDefault)); err != nil {
		t.Fatal(err)
	}
	in.Array(node, 4)
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsSelfContainingStruct(t *testing.T) {
	in := NewInterner()
	payload := in.Struct("Payload", in.Int(Width32))
	if err := in.AppendMembers(payload, payload); err != nil {
		t.Fatal(err)
	}
	err := in.Validate()
	if err == nil || !strings.Contains(err.Error(), "contains itself") {
		t.Fatalf("expected containment error, got %v", err)
	}
}

func TestValidateRejectsContainmentThroughArray(t *testing.T) {
	in := NewInterner()
	outer := in.Struct("Outer", in.Int(Width32))
	arr := in.Array(outer, 2)
	if err := in.AppendMembers(outer, arr); err != nil {
		t.Fatal(err)
	}
	if err := in.Validate(); err == nil {
		t.Fatalf("expected containment error")
	}
}

func TestValidateRejectsAnonymousReferenceCycle(t *testing.T) {
	in := NewInterner()
	// #1 = #2*, #2 = [1 x #1]
	in.Append(Type{Kind: KindPointer, Elem: 2})
	in.Append(Type{Kind: KindArray, Elem: 1, Count: 1})
	err := in.Validate()
	if err == nil || !strings.Contains(err.Error(), "without a named struct") {
		t.Fatalf("expected reference cycle error, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeReferences(t *testing.T) {
	cases := []Type{
		{Kind: KindPointer, Elem: 9},
		{Kind: KindArray, Elem: NoTypeID, Count: 1},
		{Kind: KindStruct, Name: "S", Members: []TypeID{42}},
		{Kind: KindFunc, Elem: 1, Members: []TypeID{77}},
	}
	for _, c := range cases {
		in := NewInterner()
		in.Append(c)
		if err := in.Validate(); err == nil || !strings.Contains(err.Error(), "out of range") {
			t.Fatalf("%s: expected range error, got %v", c.Kind, err)
		}
	}
}
