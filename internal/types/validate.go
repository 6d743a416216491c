package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that every type reference points into the table and that
// the graph is finite. A type may not contain itself by value, and a cycle
// through pointers or functions must pass through a named struct.
func (in *Interner) Validate() error {
	var errs []error
	for id := 1; id < len(in.types); id++ {
		t := in.types[id]
		switch t.Kind {
		case KindPointer, KindArray, KindVector, KindFunc:
			if !in.valid(t.Elem) {
				errs = append(errs, fmt.Errorf("type %d: element type %d out of range", id, t.Elem))
			}
		}
		switch t.Kind {
		case KindStruct, KindFunc:
			for i, m := range t.Members {
				if !in.valid(m) {
					errs = append(errs, fmt.Errorf("type %d: member %d type %d out of range", id, i, m))
				}
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if cycle := in.findCycle(in.containedBy); cycle != nil {
		return fmt.Errorf("type %d contains itself: %s", cycle[0], in.cycleString(cycle))
	}
	if cycle := in.findCycle(in.referencedBy); cycle != nil {
		return fmt.Errorf("type %d refers to itself without a named struct: %s", cycle[0], in.cycleString(cycle))
	}
	return nil
}

func (in *Interner) valid(id TypeID) bool {
	return id != NoTypeID && int(id) < len(in.types)
}

// containedBy lists the types stored inline in a value of type t.
func (in *Interner) containedBy(t Type) []TypeID {
	switch t.Kind {
	case KindArray, KindVector:
		return []TypeID{t.Elem}
	case KindStruct:
		return t.Members
	}
	return nil
}

// referencedBy lists every edge followed when rendering t. Named structs
// print by name, so edges into them are dropped.
func (in *Interner) referencedBy(t Type) []TypeID {
	var out []TypeID
	add := func(id TypeID) {
		if n := in.types[id]; n.Kind == KindStruct && n.Name != "" {
			return
		}
		out = append(out, id)
	}
	switch t.Kind {
	case KindPointer, KindArray, KindVector:
		add(t.Elem)
	case KindFunc:
		add(t.Elem)
		for _, m := range t.Members {
			add(m)
		}
	case KindStruct:
		if t.Name != "" {
			break
		}
		for _, m := range t.Members {
			add(m)
		}
	}
	return out
}

// findCycle runs an iterative depth-first search and returns the first cycle
// it meets, starting and ending at the same TypeID.
func (in *Interner) findCycle(edges func(Type) []TypeID) []TypeID {
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, len(in.types))
	type frame struct {
		id   TypeID
		next []TypeID
	}
	for root := 1; root < len(in.types); root++ {
		if color[root] != white {
			continue
		}
		stack := []frame{{id: TypeID(root), next: edges(in.types[root])}} //nolint:gosec // bounded by len
		color[root] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := top.next[0]
			top.next = top.next[1:]
			switch color[child] {
			case grey:
				var cycle []TypeID
				for i := range stack {
					if stack[i].id == child {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.id)
						}
						break
					}
				}
				return append(cycle, child)
			case white:
				color[child] = grey
				stack = append(stack, frame{id: child, next: edges(in.types[child])})
			}
		}
	}
	return nil
}

func (in *Interner) cycleString(cycle []TypeID) string {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		t := in.types[id]
		if t.Kind == KindStruct && t.Name != "" {
			parts[i] = "%" + t.Name
			continue
		}
		parts[i] = fmt.Sprintf("#%d(%s)", id, t.Kind)
	}
	return strings.Join(parts, " -> ")
}
