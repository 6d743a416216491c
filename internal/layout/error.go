package layout

import (
	"fmt"
	"math"
	"strings"

	"ampcap/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursive indicates a struct that contains itself by value.
	LayoutErrRecursive LayoutErrorKind = iota + 1
	// LayoutErrUnsized indicates a type with no storage size (void, label, function).
	LayoutErrUnsized
	// LayoutErrIndex indicates an out-of-range or non-indexable GEP step.
	LayoutErrIndex
	// LayoutErrOverflow indicates a size above MaxObjectSize.
	LayoutErrOverflow
)

// MaxObjectSize bounds every computed size in bytes.
const MaxObjectSize = math.MaxUint32

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Cycle []types.TypeID // for LayoutErrRecursive
	Value int64          // for LayoutErrIndex
	Err   error
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursive:
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrUnsized:
		return fmt.Sprintf("type#%d has no storage size", e.Type)
	case LayoutErrIndex:
		if e.Err != nil {
			return fmt.Sprintf("bad index into type#%d: %v", e.Type, e.Err)
		}
		return fmt.Sprintf("index %d out of range for type#%d", e.Value, e.Type)
	case LayoutErrOverflow:
		return fmt.Sprintf("size of type#%d exceeds %d bytes", e.Type, uint64(MaxObjectSize))
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
