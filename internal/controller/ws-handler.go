package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/rest"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

var errForeignSession = errors.New("session code is not granted by the connect token")

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorOutput struct {
	MessageType string                      `json:"message_type,omitempty"`
	Message     string                      `json:"message"`
	Errors      []validator.ValidationError `json:"errors,omitempty"`
}

func (c controller) streamManager(w http.ResponseWriter, r *http.Request) {
	claims, err := c.accessCodeService.ParseConnectToken(r.URL.Query().Get("connect-token"))
	if err != nil {
		c.logger.InfoContext(r.Context(), "invalid connect token", "error", err)
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid connect token"})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	connId := uuid.NewString()
	if err := c.connRepo.Add(conn, connId); err != nil {
		c.logger.WarnContext(r.Context(), "failed to add connection", "error", err)
		conn.Close()
		return
	}

	cl := newClient(connId, conn, c.sendBuffer)
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", connId))
	ctx = context.WithValue(ctx, clientCtxKey, cl)
	ctx = context.WithValue(ctx, sessionCodeCtxKey, claims.SessionCode)

	c.metrics.ConnectionOpened()
	c.logger.InfoContext(ctx, "connected", "session_code", claims.SessionCode)
	defer func() {
		c.broadcaster.Disconnect(ctx, cl)
		cl.close()
		c.connRepo.Remove(conn)
		c.metrics.ConnectionClosed()
		c.logger.InfoContext(ctx, "disconnected")
	}()

	go cl.writePump(ctx, c.logger)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := c.wsRouter.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.InfoContext(ctx, "connection closed unexpectedly", "error", err)
		}
	}
}

// checkSessionCode rejects events for rooms other than the one the connection was granted.
func (c controller) checkSessionCode(ctx context.Context, sessionCode string) (*client, error) {
	if granted := c.getSessionCodeFromCtx(ctx); sessionCode != granted {
		return nil, errForeignSession
	}

	cl := c.getClientFromCtx(ctx)
	if cl == nil {
		return nil, errClientClosed
	}

	return cl, nil
}

type JoinInput struct {
	SessionCode string `json:"session_code" validate:"required"`
}

func (c controller) handleJoin(ctx context.Context, _ *websocket.Conn, input JoinInput) error {
	cl, err := c.checkSessionCode(ctx, input.SessionCode)
	if err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	c.broadcaster.Join(ctx, cl, input.SessionCode)
	return nil
}

type LeaveInput struct {
	SessionCode string `json:"session_code" validate:"required"`
}

func (c controller) handleLeave(ctx context.Context, _ *websocket.Conn, input LeaveInput) error {
	cl, err := c.checkSessionCode(ctx, input.SessionCode)
	if err != nil {
		return fmt.Errorf("failed to leave: %w", err)
	}

	c.broadcaster.Leave(ctx, cl, input.SessionCode)
	return nil
}

type SyncCommandInput struct {
	SessionCode string  `json:"session_code" validate:"required"`
	Action      string  `json:"action" validate:"required,max=32"`
	CurrentTime float64 `json:"currentTime" validate:"gte=0"`
}

func (c controller) handleSyncCommand(ctx context.Context, _ *websocket.Conn, input SyncCommandInput) error {
	cl, err := c.checkSessionCode(ctx, input.SessionCode)
	if err != nil {
		return fmt.Errorf("failed to relay sync command: %w", err)
	}

	c.broadcaster.RelaySyncCommand(ctx, cl, input.SessionCode, input.Action, input.CurrentTime)
	return nil
}

type ReportCurrentTimeInput struct {
	SessionCode string  `json:"session_code" validate:"required"`
	CurrentTime float64 `json:"currentTime" validate:"gte=0"`
}

func (c controller) handleReportCurrentTime(ctx context.Context, _ *websocket.Conn, input ReportCurrentTimeInput) error {
	cl, err := c.checkSessionCode(ctx, input.SessionCode)
	if err != nil {
		return fmt.Errorf("failed to relay current time: %w", err)
	}

	c.broadcaster.RelayClockReport(ctx, cl, input.SessionCode, input.CurrentTime)
	return nil
}

// handleWSError answers the sender only. Nothing reaches the other members.
func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	c.logger.InfoContext(ctx, "failed to handle websocket message", "error", err)

	cl := c.getClientFromCtx(ctx)
	if cl == nil {
		return
	}

	out := errorOutput{
		MessageType: wsrouter.GetMessageTypeFromCtx(ctx),
		Message:     err.Error(),
	}

	var vErr *validationError
	if errors.As(err, &vErr) {
		out.Errors = vErr.errors
	}

	if err := cl.Send(&Output{Type: typeError, Payload: out}); err != nil {
		c.logger.DebugContext(ctx, "failed to send error", "error", err)
	}
}
