package like_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/like"
	"github.com/trezcool/academia/testutil"
)

func getLikes(t *testing.T, app *testutil.App, courseID string) int64 {
	crs, err := app.CourseSvc.Get(context.Background(), courseID)
	require.NoError(t, err)
	return crs.Likes
}

func TestService_Like(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	_, sess := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")

	tests := []struct {
		name      string
		sess      identity.Session
		courseID  string
		wantErr   error
		wantLikes int64
	}{
		{name: "anonymous", sess: identity.Session{}, courseID: crs.ID, wantErr: identity.ErrUnauthenticated, wantLikes: 10},
		{name: "unknown course", sess: sess, courseID: "unknown", wantErr: course.ErrNotFound, wantLikes: 10},
		{name: "like", sess: sess, courseID: crs.ID, wantLikes: 11},
		{name: "like again", sess: sess, courseID: crs.ID, wantErr: like.ErrAlreadyLiked, wantLikes: 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := app.LikeSvc.Like(ctx, tt.sess, tt.courseID)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
			assert.Equal(t, tt.wantLikes, getLikes(t, app, crs.ID))
		})
	}

	// the failed like on an unknown course left no ledger record behind
	_, err := app.LikeRepo.GetLike(ctx, like.Key(sess.UserID, "unknown"))
	assert.Equal(t, like.ErrNotLiked, err)

	t.Run("missing course ID", func(t *testing.T) {
		err := app.LikeSvc.Like(ctx, sess, "")
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok)
	})

	assert.Len(t, app.Events.Events(core.EventLikeAdded), 1)
}

func TestService_Unlike(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	_, sess := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")

	require.NoError(t, app.LikeSvc.Like(ctx, sess, crs.ID))
	require.Equal(t, int64(11), getLikes(t, app, crs.ID))

	require.NoError(t, app.LikeSvc.Unlike(ctx, sess, crs.ID))
	assert.Equal(t, int64(10), getLikes(t, app, crs.ID))
	liked, err := app.LikeSvc.IsLiked(ctx, sess, crs.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	err = app.LikeSvc.Unlike(ctx, sess, crs.ID)
	assert.Equal(t, like.ErrNotLiked, errors.Cause(err))
	assert.Equal(t, int64(10), getLikes(t, app, crs.ID))

	assert.Len(t, app.Events.Events(core.EventLikeRemoved), 1)
}

func TestService_LikeConcurrently(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "Cybersecurity Fundamentals", 22)

	n := 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := identity.Session{UserID: fmt.Sprintf("u%d", i)}
			assert.NoError(t, app.LikeSvc.Like(ctx, sess, crs.ID))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(22+n), getLikes(t, app, crs.ID))
	count, err := app.LikeRepo.CountLikes(ctx, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func TestService_ReactBasicsScenario(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	courses, err := app.CourseSvc.Seed(ctx)
	require.NoError(t, err)
	var react course.Course
	for _, crs := range courses {
		if crs.Name == "React Basics" {
			react = crs
		}
	}
	require.NotEmpty(t, react.ID)
	require.Equal(t, int64(10), getLikes(t, app, react.ID))

	_, sess := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")

	sub, err := app.LikeSvc.WatchLiked(ctx, sess, react.ID)
	require.NoError(t, err)
	defer sub.Close()
	assert.False(t, <-sub.C)

	require.NoError(t, app.LikeSvc.Like(ctx, sess, react.ID))
	assert.Equal(t, int64(11), getLikes(t, app, react.ID))
	select {
	case liked := <-sub.C:
		assert.True(t, liked)
	case <-time.After(time.Second):
		t.Fatal("like not observed")
	}

	require.NoError(t, app.LikeSvc.Unlike(ctx, sess, react.ID))
	assert.Equal(t, int64(10), getLikes(t, app, react.ID))
	select {
	case liked := <-sub.C:
		assert.False(t, liked)
	case <-time.After(time.Second):
		t.Fatal("unlike not observed")
	}
}

func TestService_Reconcile(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs1 := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	crs2 := testutil.CreateCourse(t, app.CourseRepo, "JavaScript Fundamentals", 15)

	require.NoError(t, app.LikeSvc.Like(ctx, identity.Session{UserID: "u1"}, crs1.ID))
	require.NoError(t, app.LikeSvc.Like(ctx, identity.Session{UserID: "u2"}, crs1.ID))

	fixed, err := app.LikeSvc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)

	// out-of-band counter writes
	require.NoError(t, app.Store.Increment(ctx, core.CoursesCollection, crs1.ID, "likes", 5))
	require.NoError(t, app.Store.Increment(ctx, core.CoursesCollection, crs2.ID, "likes", -3))

	fixed, err = app.LikeSvc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)
	assert.Equal(t, int64(12), getLikes(t, app, crs1.ID))
	assert.Equal(t, int64(15), getLikes(t, app, crs2.ID))
}

func TestService_AmbiguousIDs(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)

	tests := []struct {
		name     string
		userID   string
		courseID string
	}{
		{name: "user id", userID: "a_b", courseID: crs.ID},
		{name: "course id", userID: "a", courseID: "b_" + crs.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := app.LikeSvc.Like(ctx, identity.Session{UserID: tt.userID}, tt.courseID)
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, like.ErrInvalidIDs, vErr.Err)

			_, err = app.LikeSvc.IsLiked(ctx, identity.Session{UserID: tt.userID}, tt.courseID)
			assert.Error(t, err)
		})
	}
	assert.Equal(t, int64(10), getLikes(t, app, crs.ID))
}

// catalogCache counts invalidations of the cached catalog.
type catalogCache struct {
	mu          sync.Mutex
	invalidated int
}

func (c *catalogCache) GetCatalog(context.Context) ([]course.Course, bool, error) { return nil, false, nil }
func (c *catalogCache) SetCatalog(context.Context, []course.Course) error         { return nil }
func (c *catalogCache) InvalidateCatalog(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

func (c *catalogCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

func TestService_InvalidatesCatalog(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	cache := new(catalogCache)
	catalog := course.NewService(app.CourseRepo, cache, app.Logger)
	svc := like.NewService(app.Store, app.LikeRepo, app.CourseRepo, catalog, app.Events, app.Logger)

	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	_, sess := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")

	require.NoError(t, svc.Like(ctx, sess, crs.ID))
	assert.Equal(t, 1, cache.count())

	// failed writes change nothing
	assert.Error(t, svc.Like(ctx, sess, crs.ID))
	assert.Equal(t, 1, cache.count())

	require.NoError(t, svc.Unlike(ctx, sess, crs.ID))
	assert.Equal(t, 2, cache.count())

	fixed, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
	assert.Equal(t, 2, cache.count())

	require.NoError(t, app.Store.Increment(ctx, core.CoursesCollection, crs.ID, "likes", 3))
	fixed, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, 3, cache.count())
}
