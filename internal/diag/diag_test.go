package diag

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestFormatShort(t *testing.T) {
	loc := At("a.sxbc").InFunc("main")
	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     EdtResourceSlot,
			Message:  "slot id is not a constant",
			Primary:  loc.InChunk("SXIL"),
		},
		{
			Severity: SevError,
			Code:     CapNoDispatch,
			Message:  "first line\nsecond",
			Primary:  loc.InBlock(2).AtInstr(7),
			Notes:    []Note{{Loc: loc, Msg: "entry function"}},
		},
	}

	expected := "error CAP4001 a.sxbc:@main:bb2:%7 first line second\n" +
		"note CAP4001 a.sxbc:@main entry function\n" +
		"warning EDT2007 a.sxbc:SXIL:@main slot id is not a constant"

	if got := FormatShort(diags, true); got != expected {
		t.Fatalf("unexpected diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestErrorWrapsAndReports(t *testing.T) {
	err := Errorf(CpyUnsupportedLeaf, NoLocation, "leaf %s: %w", "ptr", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("wrapped error lost")
	}
	wrapped := fmt.Errorf("inject: %w", err)
	code, ok := CodeOf(wrapped)
	if !ok || code != CpyUnsupportedLeaf {
		t.Fatalf("CodeOf = %v, %v", code, ok)
	}

	bag := NewBag(4)
	ReportErr(BagReporter{Bag: bag}, CapUnavailable, wrapped)
	ReportErr(BagReporter{Bag: bag}, CapUnavailable, errors.New("plain"))
	if bag.Len() != 2 || !bag.HasErrors() {
		t.Fatalf("expected two errors, got %d", bag.Len())
	}
	if got := bag.Items()[1].Code; got != CapUnavailable {
		t.Fatalf("fallback code = %v", got)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(8)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for range 3 {
		ReportWarning(r, EdtResourceSlot, At("x"), "dup").Emit()
	}
	ReportWarning(r, EdtResourceSlot, At("y"), "dup").Emit()
	if bag.Len() != 2 {
		t.Fatalf("expected 2 unique diagnostics, got %d", bag.Len())
	}
	if bag.HasErrors() || !bag.HasWarnings() {
		t.Fatalf("severity flags wrong")
	}
}

func TestBagLimit(t *testing.T) {
	bag := NewBag(1)
	if !bag.Add(NewError(UnknownCode, NoLocation, "a")) {
		t.Fatalf("first add rejected")
	}
	if bag.Add(NewError(UnknownCode, NoLocation, "b")) {
		t.Fatalf("limit ignored")
	}
}
