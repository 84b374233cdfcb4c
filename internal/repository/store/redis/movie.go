package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/store"
)

const movieListKey = "movies"

type movieHash struct {
	Title string `redis:"title"`
	Path  string `redis:"path"`
}

func (r repo) getMovieKey(movieId int) string {
	return "movie:" + strconv.Itoa(movieId)
}

func (r repo) SetMovie(ctx context.Context, params *store.SetMovieParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.HSet(ctx, r.getMovieKey(params.MovieId), movieHash{
		Title: params.Title,
		Path:  params.Path,
	})
	pipe.ZAdd(ctx, movieListKey, redis.Z{
		Score:  float64(params.MovieId),
		Member: params.MovieId,
	})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set movie: %w", err)
	}

	return nil
}

func (r repo) GetMovie(ctx context.Context, movieId int) (store.Movie, error) {
	r.logger.DebugContext(ctx, "called", "movie_id", movieId)

	cmd := r.rc.HGetAll(ctx, r.getMovieKey(movieId))
	if err := cmd.Err(); err != nil {
		return store.Movie{}, fmt.Errorf("failed to get movie: %w", err)
	}

	if len(cmd.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", store.ErrMovieNotFound)
		return store.Movie{}, store.ErrMovieNotFound
	}

	var movie movieHash
	if err := cmd.Scan(&movie); err != nil {
		return store.Movie{}, fmt.Errorf("failed to scan movie: %w", err)
	}

	return store.Movie{
		Id:    movieId,
		Title: movie.Title,
		Path:  movie.Path,
	}, nil
}

func (r repo) GetMovies(ctx context.Context) ([]store.Movie, error) {
	r.logger.DebugContext(ctx, "called")

	ids, err := r.rc.ZRange(ctx, movieListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get movie ids: %w", err)
	}

	movies := make([]store.Movie, 0, len(ids))
	for _, id := range ids {
		movieId, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("invalid movie id %q: %w", id, err)
		}

		movie, err := r.GetMovie(ctx, movieId)
		if err != nil {
			return nil, err
		}

		movies = append(movies, movie)
	}

	return movies, nil
}
