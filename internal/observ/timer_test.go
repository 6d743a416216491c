package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.Record("inject", 2*time.Millisecond, "")
	tm.Record("feeder", 3*time.Millisecond, "wide")
	err := tm.Measure("verify", func() error { return errors.New("boom") })
	if err == nil {
		t.Fatal("Measure dropped the error")
	}

	r := tm.Report()
	if len(r.Phases) != 3 {
		t.Fatalf("got %d phases, want 3", len(r.Phases))
	}
	if r.Phases[1].Note != "wide" || r.Phases[2].Note != "failed" {
		t.Fatalf("notes = %q, %q", r.Phases[1].Note, r.Phases[2].Note)
	}
	if r.TotalMS < 5 {
		t.Fatalf("total = %v ms, want at least 5", r.TotalMS)
	}

	s := tm.Summary()
	for _, want := range []string{"inject", "feeder", "// wide", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary misses %q:\n%s", want, s)
		}
	}
}

func TestTimerEndOutOfRange(t *testing.T) {
	tm := NewTimer()
	tm.End(3, "ignored")
	if got := tm.Report(); len(got.Phases) != 0 || got.TotalMS != 0 {
		t.Fatalf("empty timer reported %+v", got)
	}
}
