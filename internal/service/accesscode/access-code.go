package accesscode

import (
	"context"
	"errors"
	"time"

	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/repository/store"
)

type IssueParams struct {
	UserId    string
	MovieId   int
	ExpiresAt time.Time
}

// Issue stores a fresh code for the user. ExpiresAt may lie in the past; such a code is
// stored and simply never validates.
func (s service) Issue(ctx context.Context, params *IssueParams) (store.AccessCode, error) {
	s.logger.DebugContext(ctx, "called", "params", params)

	insertParams := store.InsertAccessCodeParams{
		MovieId:   params.MovieId,
		UserId:    params.UserId,
		ExpiresAt: params.ExpiresAt.UTC(),
	}

	var err error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		insertParams.Code = s.generator.GenerateRandomString(codeLength)
		err = s.store.InsertAccessCode(ctx, &insertParams)
		if !errors.Is(err, store.ErrAccessCodeAlreadyExists) {
			break
		}

		s.logger.InfoContext(ctx, "access code collision", "attempt", attempt+1)
	}

	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return store.AccessCode{}, ErrUnknownUser
		}

		s.logger.WarnContext(ctx, "failed to insert access code", "error", err)
		return store.AccessCode{}, storeError(err)
	}

	s.metrics.AccessCodeIssued()

	accessCode := store.AccessCode{
		Code:      insertParams.Code,
		MovieId:   insertParams.MovieId,
		UserId:    insertParams.UserId,
		ExpiresAt: insertParams.ExpiresAt,
	}

	s.logger.InfoContext(ctx, "access code issued", "user_id", accessCode.UserId, "movie_id", accessCode.MovieId)
	return accessCode, nil
}

// Validate returns the stored record while now < expires_at.
func (s service) Validate(ctx context.Context, code string) (store.AccessCode, error) {
	s.logger.DebugContext(ctx, "called", "code", code)

	accessCode, err := s.store.GetAccessCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrAccessCodeNotFound) {
			s.metrics.AccessCodeValidated(metrics.ValidationNotFound)
			return store.AccessCode{}, ErrNotFound
		}

		s.metrics.AccessCodeValidated(metrics.ValidationError)
		s.logger.WarnContext(ctx, "failed to get access code", "error", err)
		return store.AccessCode{}, storeError(err)
	}

	if !s.now().UTC().Before(accessCode.ExpiresAt.UTC()) {
		s.metrics.AccessCodeValidated(metrics.ValidationExpired)
		return store.AccessCode{}, ErrExpired
	}

	s.metrics.AccessCodeValidated(metrics.ValidationValid)
	return accessCode, nil
}

type ResolveStreamResponse struct {
	AccessCode   store.AccessCode
	Movie        store.Movie
	ConnectToken string
}

// ResolveStream validates the code and returns the movie it grants plus a connect token
// for the room keyed by the code.
func (s service) ResolveStream(ctx context.Context, code string) (ResolveStreamResponse, error) {
	accessCode, err := s.Validate(ctx, code)
	if err != nil {
		return ResolveStreamResponse{}, err
	}

	movie, err := s.store.GetMovie(ctx, accessCode.MovieId)
	if err != nil {
		if errors.Is(err, store.ErrMovieNotFound) {
			return ResolveStreamResponse{}, ErrMovieNotFound
		}

		return ResolveStreamResponse{}, storeError(err)
	}

	connectToken, err := s.issueConnectToken(accessCode)
	if err != nil {
		return ResolveStreamResponse{}, err
	}

	return ResolveStreamResponse{
		AccessCode:   accessCode,
		Movie:        movie,
		ConnectToken: connectToken,
	}, nil
}
