package mongodoc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

// requires a replica set, eg. MONGO_TEST_URI=mongodb://localhost:27017/?replicaSet=rs0
func setupStore(t *testing.T) *Store {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Open(ctx, uri, "academia_test")
	if err != nil {
		t.Skipf("mongo unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestStore_Integration(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateWithID(ctx, "courses", "c1", core.Fields{"name": "React Basics", "likes": int64(10)}))
	assert.Equal(t, core.ErrDocExists, s.CreateWithID(ctx, "courses", "c1", core.Fields{}))

	require.NoError(t, s.Increment(ctx, "courses", "c1", "likes", 1))
	doc, err := s.Get(ctx, "courses", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), doc.Fields["likes"])

	err = s.RunInTransaction(ctx, func(ctx context.Context, tx core.DocExecutor) error {
		if err := tx.CreateWithID(ctx, "likes", "u_c1", core.Fields{"at": core.ServerTimestamp}); err != nil {
			return err
		}
		return tx.Increment(ctx, "courses", "unknown", "likes", 1)
	})
	assert.Equal(t, core.ErrDocNotFound, err)
	_, err = s.Get(ctx, "likes", "u_c1")
	assert.Equal(t, core.ErrDocNotFound, err)

	docs, err := s.Query(ctx, "courses", core.Filter{"name": "React Basics"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, s.Delete(ctx, "courses", "c1"))
	assert.Equal(t, core.ErrDocNotFound, s.Delete(ctx, "courses", "c1"))
}

func TestStore_Watch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateWithID(ctx, "courses", "c2", core.Fields{"likes": int64(0)}))

	sub, err := s.Watch(ctx, "courses", "c2")
	require.NoError(t, err)
	defer sub.Close()

	snap := <-sub.C
	assert.True(t, snap.Exists)

	require.NoError(t, s.Increment(ctx, "courses", "c2", "likes", 1))
	select {
	case snap = <-sub.C:
		assert.Equal(t, int64(1), snap.Fields["likes"])
	case <-time.After(5 * time.Second):
		t.Fatal("no change received")
	}
}
