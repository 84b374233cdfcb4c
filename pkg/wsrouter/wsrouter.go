package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandlerFunc is called with every error produced while routing a message:
// unknown types, undecodable payloads and handler errors. It never stops the read loop.
type ErrorHandlerFunc func(ctx context.Context, conn *websocket.Conn, err error)

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	errorHandler ErrorHandlerFunc
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]route),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middlewares. The first one registered is the outermost.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) HandleError(h ErrorHandlerFunc) {
	r.errorHandler = h
}

// Handle registers a typed handler for messageType. The payload is decoded into T before the
// middleware chain runs, so middlewares see the decoded value.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 || string(raw) == "null" {
				return payload, nil
			}

			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, err
			}

			return payload, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, payload any) error {
			typed, ok := payload.(T)
			if !ok {
				return fmt.Errorf("%w: unexpected payload type %T", ErrInvalidPayload, payload)
			}

			return handler(ctx, conn, typed)
		},
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

// Dispatch routes a single raw message.
func (r *WSRouter) Dispatch(ctx context.Context, conn *websocket.Conn, messageType string, raw json.RawMessage) {
	ctx = context.WithValue(ctx, messageTypeKey, messageType)

	rt, ok := r.routes[messageType]
	if !ok {
		r.errorHandler(ctx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, messageType))
		return
	}

	payload, err := rt.decode(raw)
	if err != nil {
		r.errorHandler(ctx, conn, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		return
	}

	if err := r.chain(rt.handler)(ctx, conn, payload); err != nil {
		r.errorHandler(ctx, conn, err)
	}
}

// ServeConn reads messages until the connection fails and returns the read error.
// Messages are handled one at a time, in arrival order. Frames that do not decode are
// reported to the error handler and skipped.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
			continue
		}

		r.Dispatch(ctx, conn, msg.Type, msg.Payload)
	}
}
