package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core"
)

// Recorder keeps published events in memory (tests).
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
	Err    error // returned by Publish when set
}

var _ core.EventPublisher = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

// Events returns the recorded events, optionally only those of the given types.
func (r *Recorder) Events(types ...string) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	evts := make([]core.Event, 0, len(r.events))
	for _, evt := range r.events {
		if len(types) == 0 || contains(types, evt.Type) {
			evts = append(evts, evt)
		}
	}
	return evts
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
