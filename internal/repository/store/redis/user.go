package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/watchparty/internal/repository/store"
)

type userHash struct {
	Username string `redis:"username"`
}

func (r repo) getUserKey(userId string) string {
	return "user:" + userId
}

func (r repo) SetUser(ctx context.Context, params *store.SetUserParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	if err := r.rc.HSet(ctx, r.getUserKey(params.UserId), userHash{Username: params.Username}).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set user: %w", err)
	}

	return nil
}

func (r repo) GetUser(ctx context.Context, userId string) (store.User, error) {
	r.logger.DebugContext(ctx, "called", "user_id", userId)

	cmd := r.rc.HGetAll(ctx, r.getUserKey(userId))
	if err := cmd.Err(); err != nil {
		return store.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	if len(cmd.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", store.ErrUserNotFound)
		return store.User{}, store.ErrUserNotFound
	}

	var user userHash
	if err := cmd.Scan(&user); err != nil {
		return store.User{}, fmt.Errorf("failed to scan user: %w", err)
	}

	return store.User{
		Id:       userId,
		Username: user.Username,
	}, nil
}
