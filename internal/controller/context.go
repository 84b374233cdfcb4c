package controller

import "context"

type contextKey int

const (
	clientCtxKey contextKey = iota
	sessionCodeCtxKey
)

func (c controller) getClientFromCtx(ctx context.Context) *client {
	cl, ok := ctx.Value(clientCtxKey).(*client)
	if !ok {
		return nil
	}

	return cl
}

// getSessionCodeFromCtx returns the session code granted by the connect token.
func (c controller) getSessionCodeFromCtx(ctx context.Context) string {
	sessionCode, ok := ctx.Value(sessionCodeCtxKey).(string)
	if !ok {
		return ""
	}

	return sessionCode
}
