package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/repository/store"
	"github.com/sharetube/watchparty/internal/repository/store/postgres"
	"github.com/sharetube/watchparty/internal/repository/store/redis"
	"github.com/sharetube/watchparty/internal/service/accesscode"
	"github.com/sharetube/watchparty/internal/service/broadcast"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	shutdownTimeout = 30 * time.Second
)

type AppConfig struct {
	Secret          string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	LogLevel        string        `json:"log_level"`
	Store           string        `json:"store"`
	PostgresDSN     string        `json:"-"`
	RedisPort       int           `json:"redis_port"`
	RedisHost       string        `json:"redis_host"`
	RedisPassword   string        `json:"-"`
	ConnectTokenTTL time.Duration `json:"connect_token_ttl"`
	SendBuffer      int           `json:"send_buffer"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Secret == "" {
		errs = append(errs, errors.New("secret must not be empty"))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch cfg.Store {
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn must not be empty"))
		}
	case StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", cfg.Store))
	}
	if cfg.ConnectTokenTTL <= 0 {
		errs = append(errs, errors.New("connect token ttl must be greater than 0"))
	}
	if cfg.SendBuffer < 1 {
		errs = append(errs, errors.New("send buffer must be greater than 0"))
	}

	return errors.Join(errs...)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}

	return level, nil
}

type accessCodeStore interface {
	InsertAccessCode(context.Context, *store.InsertAccessCodeParams) error
	GetAccessCode(context.Context, string) (store.AccessCode, error)
	SetUser(context.Context, *store.SetUserParams) error
	GetUser(context.Context, string) (store.User, error)
	SetMovie(context.Context, *store.SetMovieParams) error
	GetMovie(context.Context, int) (store.Movie, error)
	GetMovies(context.Context) ([]store.Movie, error)
}

// openStore returns the configured store and a func releasing its connections.
func openStore(cfg *AppConfig, logger *slog.Logger) (accessCodeStore, func(), error) {
	switch cfg.Store {
	case StorePostgres:
		db, err := postgres.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get postgres connection pool: %w", err)
		}

		if err := postgres.Migrate(db); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}

		return postgres.NewRepo(db, logger), func() { sqlDB.Close() }, nil
	case StoreRedis:
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		return redis.NewRepo(rc, logger), func() { rc.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel, _ := parseLogLevel(cfg.LogLevel)
	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(&h)

	storeRepo, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	connRepo := inmemory.NewRepo(logger)
	accessCodeService := accesscode.New(storeRepo, m, &accesscode.Config{
		Secret:          cfg.Secret,
		ConnectTokenTTL: cfg.ConnectTokenTTL,
	}, logger)
	broadcaster := broadcast.New(m, logger)

	controller := controller.NewController(accessCodeService, broadcaster, connRepo, m, &controller.Config{
		SendBuffer:     cfg.SendBuffer,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           controller.GetMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case s := <-sig:
			logger.InfoContext(serverCtx, "shutting down", "signal", s.String())
		case <-serverCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not tracked by the server
		err := server.Shutdown(shutdownCtx)
		connRepo.CloseAll()
		shutdownErr <- err
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	return nil
}
