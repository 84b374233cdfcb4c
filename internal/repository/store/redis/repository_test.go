package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, slog.Default()), s
}

func TestAccessCode(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetUser(ctx, &store.SetUserParams{UserId: "u1", Username: "alice"}))

	loc := time.FixedZone("UTC+3", 3*60*60)
	expiresAt := time.Date(2030, 1, 2, 15, 4, 5, 0, loc)
	params := store.InsertAccessCodeParams{
		Code:      "Ab3dE5gH9k",
		MovieId:   7,
		UserId:    "u1",
		ExpiresAt: expiresAt,
	}
	require.NoError(t, r.InsertAccessCode(ctx, &params))

	accessCode, err := r.GetAccessCode(ctx, params.Code)
	require.NoError(t, err)
	assert.Equal(t, params.Code, accessCode.Code)
	assert.Equal(t, 7, accessCode.MovieId)
	assert.Equal(t, "u1", accessCode.UserId)
	assert.True(t, expiresAt.Equal(accessCode.ExpiresAt))
	assert.Equal(t, time.UTC, accessCode.ExpiresAt.Location())

	err = r.InsertAccessCode(ctx, &params)
	assert.ErrorIs(t, err, store.ErrAccessCodeAlreadyExists)
}

func TestAccessCodeUnknownUser(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	err := r.InsertAccessCode(ctx, &store.InsertAccessCodeParams{
		Code:      "Ab3dE5gH9k",
		MovieId:   1,
		UserId:    "ghost",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.False(t, s.Exists("access-code:Ab3dE5gH9k"))
}

func TestAccessCodeUserDeletedDuringInsert(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetUser(ctx, &store.SetUserParams{UserId: "u1", Username: "alice"}))

	calls := 0
	testHookBeforeSetAccessCode = func() {
		calls++
		if calls == 1 {
			s.Del("user:u1")
		}
	}
	t.Cleanup(func() { testHookBeforeSetAccessCode = func() {} })

	err := r.InsertAccessCode(ctx, &store.InsertAccessCodeParams{
		Code:      "Ab3dE5gH9k",
		MovieId:   1,
		UserId:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.Equal(t, 1, calls)
	assert.False(t, s.Exists("access-code:Ab3dE5gH9k"))
}

func TestAccessCodeUserUpdatedDuringInsert(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetUser(ctx, &store.SetUserParams{UserId: "u1", Username: "alice"}))

	calls := 0
	testHookBeforeSetAccessCode = func() {
		calls++
		if calls == 1 {
			s.HSet("user:u1", "username", "bob")
		}
	}
	t.Cleanup(func() { testHookBeforeSetAccessCode = func() {} })

	require.NoError(t, r.InsertAccessCode(ctx, &store.InsertAccessCodeParams{
		Code:      "Ab3dE5gH9k",
		MovieId:   1,
		UserId:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	assert.Equal(t, 2, calls)
	assert.True(t, s.Exists("access-code:Ab3dE5gH9k"))
}

func TestAccessCodeNotFound(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := r.GetAccessCode(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrAccessCodeNotFound)
}

func TestAccessCodeHasNoTTL(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetUser(ctx, &store.SetUserParams{UserId: "u1", Username: "alice"}))
	require.NoError(t, r.InsertAccessCode(ctx, &store.InsertAccessCodeParams{
		Code:      "code",
		MovieId:   1,
		UserId:    "u1",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	assert.Equal(t, time.Duration(0), s.TTL("access-code:code"))
	_, err := r.GetAccessCode(ctx, "code")
	assert.NoError(t, err)
}

func TestUser(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	require.NoError(t, r.SetUser(ctx, &store.SetUserParams{UserId: "u1", Username: "alice"}))
	user, err := r.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, store.User{Id: "u1", Username: "alice"}, user)
}

func TestMovies(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	movies, err := r.GetMovies(ctx)
	require.NoError(t, err)
	assert.Empty(t, movies)

	_, err = r.GetMovie(ctx, 1)
	assert.ErrorIs(t, err, store.ErrMovieNotFound)

	require.NoError(t, r.SetMovie(ctx, &store.SetMovieParams{MovieId: 2, Title: "Second", Path: "/movies/2.mp4"}))
	require.NoError(t, r.SetMovie(ctx, &store.SetMovieParams{MovieId: 1, Title: "First", Path: "/movies/1.mp4"}))

	movie, err := r.GetMovie(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, store.Movie{Id: 1, Title: "First", Path: "/movies/1.mp4"}, movie)

	movies, err = r.GetMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, 1, movies[0].Id)
	assert.Equal(t, 2, movies[1].Id)
}
