package layout

// Target describes the memory model the layout is computed for.
type Target struct {
	Name     string
	PtrSize  int // bytes
	PtrAlign int // bytes
}

// GroupShared is the layout used for workgroup-shared memory: natural
// alignment for scalars, 32-bit handles for pointers.
func GroupShared() Target {
	return Target{
		Name:     "groupshared",
		PtrSize:  4,
		PtrAlign: 4,
	}
}
