// Package watch fans document changes out to subscribers.
package watch

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core"
)

type (
	key struct {
		coll string
		id   string
	}

	watcher struct {
		mu     sync.Mutex
		ch     chan core.Snapshot
		sub    *core.Subscription
		closed bool
	}

	// Hub keeps track of the watchers of every document.
	Hub struct {
		mu       sync.Mutex
		watchers map[key]map[*watcher]struct{}
		closed   bool
	}
)

func NewHub() *Hub {
	return &Hub{watchers: make(map[key]map[*watcher]struct{})}
}

// Subscribe registers a watcher of coll/id and delivers initial to it.
// The subscription ends when ctx is done or when it is closed.
// Subscribing to a closed Hub returns a closed subscription.
func (h *Hub) Subscribe(ctx context.Context, coll, id string, initial core.Snapshot) *core.Subscription {
	w := &watcher{ch: make(chan core.Snapshot, 1)}
	w.ch <- initial

	k := key{coll, id}
	done := make(chan struct{})
	cancel := func() {
		h.mu.Lock()
		delete(h.watchers[k], w)
		if len(h.watchers[k]) == 0 {
			delete(h.watchers, k)
		}
		h.mu.Unlock()
		w.close()
		close(done)
	}
	sub := core.NewSubscription(w.ch, cancel)
	w.sub = sub

	// registered once complete: Close may end it as soon as it is visible
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.Close()
		return sub
	}
	if h.watchers[k] == nil {
		h.watchers[k] = make(map[*watcher]struct{})
	}
	h.watchers[k][w] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()
	return sub
}

// Publish delivers snap to every watcher of coll/id. Watchers that did not consume
// their previous snapshot only get the latest one.
func (h *Hub) Publish(coll, id string, snap core.Snapshot) {
	h.mu.Lock()
	ws := make([]*watcher, 0, len(h.watchers[key{coll, id}]))
	for w := range h.watchers[key{coll, id}] {
		ws = append(ws, w)
	}
	h.mu.Unlock()

	for _, w := range ws {
		w.send(snap)
	}
}

// Watched reports whether coll/id has at least one watcher.
func (h *Hub) Watched(coll, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[key{coll, id}]) > 0
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.watchers
	h.watchers = make(map[key]map[*watcher]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, ws := range all {
		for w := range ws {
			w.sub.Close()
		}
	}
}

func (w *watcher) send(snap core.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.ch: // drop the stale snapshot
	default:
	}
	w.ch <- snap
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		select {
		case <-w.ch: // undelivered snapshots are dropped
		default:
		}
		close(w.ch)
	}
}
