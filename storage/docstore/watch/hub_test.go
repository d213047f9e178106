package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func drain(t *testing.T, sub *core.Subscription) []core.Snapshot {
	t.Helper()
	var snaps []core.Snapshot
	timeout := time.After(time.Second)
	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				return snaps
			}
			snaps = append(snaps, snap)
		case <-timeout:
			t.Fatal("subscription was not closed")
		}
	}
}

func TestHub_PublishLatestWins(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := h.Subscribe(context.Background(), "courses", "c1", core.Snapshot{Exists: false})
	defer sub.Close()
	assert.True(t, h.Watched("courses", "c1"))

	first := <-sub.C
	assert.False(t, first.Exists)

	h.Publish("courses", "c1", core.Snapshot{Document: core.Document{ID: "c1", Fields: core.Fields{"likes": 1}}, Exists: true})
	h.Publish("courses", "c1", core.Snapshot{Document: core.Document{ID: "c1", Fields: core.Fields{"likes": 2}}, Exists: true})
	h.Publish("courses", "other", core.Snapshot{Document: core.Document{ID: "c1", Fields: core.Fields{"likes": 9}}, Exists: true})

	latest := <-sub.C
	assert.True(t, latest.Exists)
	assert.Equal(t, 2, latest.Fields["likes"])
	select {
	case snap := <-sub.C:
		t.Fatalf("unexpected snapshot %v", snap)
	default:
	}

	sub.Close()
	assert.False(t, h.Watched("courses", "c1"))
}

func TestHub_ContextEndsSubscription(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.Subscribe(ctx, "courses", "c1", core.Snapshot{})
	cancel()

	drain(t, sub)
	assert.False(t, h.Watched("courses", "c1"))
}

func TestHub_CloseDuringSubscribe(t *testing.T) {
	h := NewHub()

	const n = 50
	subs := make([]*core.Subscription, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			subs[i] = h.Subscribe(context.Background(), "courses", "c1", core.Snapshot{})
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		assert.NotPanics(t, h.Close)
	}()
	close(start)
	wg.Wait()

	// every subscription ends, whether it was registered before or after Close
	for _, sub := range subs {
		require.NotNil(t, sub)
		drain(t, sub)
	}
	assert.False(t, h.Watched("courses", "c1"))
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	h := NewHub()
	h.Close()

	sub := h.Subscribe(context.Background(), "courses", "c1", core.Snapshot{Exists: true})
	assert.Empty(t, drain(t, sub))
	assert.False(t, h.Watched("courses", "c1"))
}
