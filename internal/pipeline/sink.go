package pipeline

import (
	"fmt"
	"io"
	"sync"
)

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// LineSink prints finished and failed files, one line each.
type LineSink struct {
	mu sync.Mutex
	W  io.Writer
}

func (s *LineSink) OnEvent(evt Event) {
	if s == nil || s.W == nil || evt.File == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch evt.Status {
	case StatusDone:
		fmt.Fprintf(s.W, "done   %s\n", evt.File)
	case StatusError:
		fmt.Fprintf(s.W, "error  %s: capture unavailable (%s: %v)\n", evt.File, evt.Stage, evt.Err)
	}
}

func emit(sink ProgressSink, file string, stage Stage, status Status, err error) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err})
}
