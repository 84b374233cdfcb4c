package accesscode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/repository/store"
	"github.com/sharetube/watchparty/pkg/randstr"
)

const (
	codeLength       = 10
	maxIssueAttempts = 3
)

var (
	ErrUnknownUser         = errors.New("unknown user")
	ErrNotFound            = errors.New("not found")
	ErrMovieNotFound       = fmt.Errorf("movie %w", ErrNotFound)
	ErrExpired             = errors.New("access code expired")
	ErrStore               = errors.New("store unavailable")
	ErrInvalidConnectToken = errors.New("invalid connect token")
)

type iStore interface {
	InsertAccessCode(context.Context, *store.InsertAccessCodeParams) error
	GetAccessCode(context.Context, string) (store.AccessCode, error)
	SetUser(context.Context, *store.SetUserParams) error
	GetUser(context.Context, string) (store.User, error)
	SetMovie(context.Context, *store.SetMovieParams) error
	GetMovie(context.Context, int) (store.Movie, error)
	GetMovies(context.Context) ([]store.Movie, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type iMetrics interface {
	AccessCodeIssued()
	AccessCodeValidated(result string)
}

type Config struct {
	Secret          string
	ConnectTokenTTL time.Duration
}

type service struct {
	store           iStore
	generator       iGenerator
	metrics         iMetrics
	secret          []byte
	connectTokenTTL time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

func New(storeRepo iStore, metrics iMetrics, cfg *Config, logger *slog.Logger) *service {
	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	return &service{
		store:           storeRepo,
		generator:       randstr.New(letterBytes),
		metrics:         metrics,
		secret:          []byte(cfg.Secret),
		connectTokenTTL: cfg.ConnectTokenTTL,
		now:             time.Now,
		logger:          logger.With("component", "service.accesscode"),
	}
}

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}
