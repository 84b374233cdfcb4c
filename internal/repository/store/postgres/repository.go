package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/watchparty/internal/repository/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepo(db *gorm.DB, logger *slog.Logger) *repo {
	return &repo{
		db:     db,
		logger: logger.With("component", "store.postgres"),
	}
}

func (r repo) SetUser(ctx context.Context, params *store.SetUserParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	row := userRow{UserId: params.UserId, Username: params.Username}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set user: %w", err)
	}

	return nil
}

func (r repo) GetUser(ctx context.Context, userId string) (store.User, error) {
	r.logger.DebugContext(ctx, "called", "user_id", userId)

	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.User{}, store.ErrUserNotFound
		}

		return store.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return store.User{Id: row.UserId, Username: row.Username}, nil
}

func (r repo) SetMovie(ctx context.Context, params *store.SetMovieParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	row := movieRow{MovieId: params.MovieId, Title: params.Title, Path: params.Path}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set movie: %w", err)
	}

	return nil
}

func (r repo) GetMovie(ctx context.Context, movieId int) (store.Movie, error) {
	r.logger.DebugContext(ctx, "called", "movie_id", movieId)

	var row movieRow
	if err := r.db.WithContext(ctx).First(&row, "movie_id = ?", movieId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.Movie{}, store.ErrMovieNotFound
		}

		return store.Movie{}, fmt.Errorf("failed to get movie: %w", err)
	}

	return movieFromRow(row), nil
}

func (r repo) GetMovies(ctx context.Context) ([]store.Movie, error) {
	r.logger.DebugContext(ctx, "called")

	var rows []movieRow
	if err := r.db.WithContext(ctx).Order("movie_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get movies: %w", err)
	}

	movies := make([]store.Movie, 0, len(rows))
	for _, row := range rows {
		movies = append(movies, movieFromRow(row))
	}

	return movies, nil
}

// InsertAccessCode checks the user and inserts the code in one transaction.
func (r repo) InsertAccessCode(ctx context.Context, params *store.InsertAccessCodeParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("user_id = ?", params.UserId).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}

		if count == 0 {
			return store.ErrUserNotFound
		}

		row := accessCodeRow{
			CodeId:    params.Code,
			MovieId:   params.MovieId,
			UserId:    params.UserId,
			ExpiresAt: params.ExpiresAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrAccessCodeAlreadyExists
			}

			return fmt.Errorf("failed to insert access code: %w", err)
		}

		return nil
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetAccessCode(ctx context.Context, code string) (store.AccessCode, error) {
	r.logger.DebugContext(ctx, "called", "code", code)

	var row accessCodeRow
	if err := r.db.WithContext(ctx).First(&row, "code_id = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.DebugContext(ctx, "returned", "error", store.ErrAccessCodeNotFound)
			return store.AccessCode{}, store.ErrAccessCodeNotFound
		}

		return store.AccessCode{}, fmt.Errorf("failed to get access code: %w", err)
	}

	return store.AccessCode{
		Code:      row.CodeId,
		MovieId:   row.MovieId,
		UserId:    row.UserId,
		ExpiresAt: row.ExpiresAt.UTC(),
	}, nil
}

func movieFromRow(row movieRow) store.Movie {
	return store.Movie{
		Id:    row.MovieId,
		Title: row.Title,
		Path:  row.Path,
	}
}
