package ui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"ampcap/internal/pipeline"
)

func TestPercentCountsFinishedFiles(t *testing.T) {
	events := make(chan pipeline.Event)
	m := NewProgressModel("capture", []string{"a.sxbc", "b.sxbc"}, events).(*progressModel)

	m.applyEvent(pipeline.Event{File: "a.sxbc", Stage: pipeline.StageWrite, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{File: "b.sxbc", Stage: pipeline.StageFeeder, Status: pipeline.StatusWorking})

	if got, want := m.percent(), (1.0+0.5)/2; got != want {
		t.Fatalf("percent = %v, want %v", got, want)
	}
	if m.items[1].status != "feeding" {
		t.Fatalf("status = %q, want feeding", m.items[1].status)
	}
	m.applyEvent(pipeline.Event{File: "unknown.sxbc", Status: pipeline.StatusError})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
	long := truncate("a-very-long-file-name.sxbc", 10)
	if !strings.HasSuffix(long, "...") || runewidth.StringWidth(long) > 10 {
		t.Errorf("truncate of a long name = %q", long)
	}
}
