package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/store"
	"github.com/sharetube/watchparty/internal/service/accesscode"
	"github.com/sharetube/watchparty/internal/service/broadcast"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type iAccessCodeService interface {
	Issue(context.Context, *accesscode.IssueParams) (store.AccessCode, error)
	Validate(context.Context, string) (store.AccessCode, error)
	ResolveStream(context.Context, string) (accesscode.ResolveStreamResponse, error)
	ParseConnectToken(string) (*accesscode.ConnectClaims, error)
	RegisterUser(context.Context, *accesscode.RegisterUserParams) (store.User, error)
	AddMovie(context.Context, *accesscode.AddMovieParams) (store.Movie, error)
	GetMovies(context.Context) ([]store.Movie, error)
}

type iBroadcaster interface {
	Join(ctx context.Context, conn broadcast.Conn, sessionCode string)
	Leave(ctx context.Context, conn broadcast.Conn, sessionCode string)
	Disconnect(ctx context.Context, conn broadcast.Conn)
	RelaySyncCommand(ctx context.Context, conn broadcast.Conn, sessionCode, action string, currentTime float64)
	RelayClockReport(ctx context.Context, conn broadcast.Conn, sessionCode string, currentTime float64)
	Members(sessionCode string) int
}

type iConnRepo interface {
	Add(*websocket.Conn, string) error
	Remove(*websocket.Conn) error
}

type iMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

type Config struct {
	// SendBuffer is the number of outbound messages queued per connection before it is dropped.
	SendBuffer     int
	MetricsHandler http.Handler
}

type controller struct {
	accessCodeService iAccessCodeService
	broadcaster       iBroadcaster
	connRepo          iConnRepo
	metrics           iMetrics
	upgrader          websocket.Upgrader
	validate          *validator.Validator
	wsRouter          *wsrouter.WSRouter
	sendBuffer        int
	metricsHandler    http.Handler
	now               func() time.Time
	logger            *slog.Logger
}

func NewController(
	accessCodeService iAccessCodeService,
	broadcaster iBroadcaster,
	connRepo iConnRepo,
	metrics iMetrics,
	cfg *Config,
	logger *slog.Logger,
) *controller {
	c := &controller{
		accessCodeService: accessCodeService,
		broadcaster:       broadcaster,
		connRepo:          connRepo,
		metrics:           metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:       validator.NewValidator(),
		sendBuffer:     cfg.SendBuffer,
		metricsHandler: cfg.MetricsHandler,
		now:            time.Now,
		logger:         logger,
	}
	c.wsRouter = c.getWSRouter()

	return c
}
