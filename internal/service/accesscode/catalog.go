package accesscode

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/repository/store"
)

type RegisterUserParams struct {
	Username string
}

func (s service) RegisterUser(ctx context.Context, params *RegisterUserParams) (store.User, error) {
	user := store.User{
		Id:       uuid.NewString(),
		Username: params.Username,
	}

	if err := s.store.SetUser(ctx, &store.SetUserParams{
		UserId:   user.Id,
		Username: user.Username,
	}); err != nil {
		return store.User{}, storeError(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.Id)
	return user, nil
}

func (s service) GetUser(ctx context.Context, userId string) (store.User, error) {
	user, err := s.store.GetUser(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return store.User{}, ErrUnknownUser
		}

		return store.User{}, storeError(err)
	}

	return user, nil
}

type AddMovieParams struct {
	MovieId int
	Title   string
	Path    string
}

func (s service) AddMovie(ctx context.Context, params *AddMovieParams) (store.Movie, error) {
	if err := s.store.SetMovie(ctx, &store.SetMovieParams{
		MovieId: params.MovieId,
		Title:   params.Title,
		Path:    params.Path,
	}); err != nil {
		return store.Movie{}, storeError(err)
	}

	return store.Movie{
		Id:    params.MovieId,
		Title: params.Title,
		Path:  params.Path,
	}, nil
}

func (s service) GetMovies(ctx context.Context) ([]store.Movie, error) {
	movies, err := s.store.GetMovies(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	return movies, nil
}
