package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/course"
)

var testCourses = []course.Course{
	{ID: "c1", Name: "React Basics", Fee: 49, Likes: 10, Syllabus: []course.SyllabusItem{{Week: 1, Topic: "JSX"}}},
	{ID: "c2", Name: "Go Concurrency", Fee: 49},
}

func TestCatalogCache_GetCatalog(t *testing.T) {
	ctx := context.Background()
	payload, _ := json.Marshal(testCourses)

	t.Run("hit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewCatalogCache(db, time.Minute)
		mock.ExpectGet(catalogKey).SetVal(string(payload))

		courses, ok, err := c.GetCatalog(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, testCourses, courses)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewCatalogCache(db, time.Minute)
		mock.ExpectGet(catalogKey).RedisNil()

		courses, ok, err := c.GetCatalog(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, courses)
	})

	t.Run("error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewCatalogCache(db, time.Minute)
		mock.ExpectGet(catalogKey).SetErr(errors.New("conn refused"))

		_, ok, err := c.GetCatalog(ctx)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestCatalogCache_SetAndInvalidate(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewCatalogCache(db, 30*time.Second)

	payload, _ := json.Marshal(testCourses)
	mock.ExpectSet(catalogKey, string(payload), 30*time.Second).SetVal("OK")
	mock.ExpectDel(catalogKey).SetVal(1)

	require.NoError(t, c.SetCatalog(ctx, testCourses))
	require.NoError(t, c.InvalidateCatalog(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
