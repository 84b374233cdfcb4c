package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/store"
)

type accessCodeValue struct {
	MovieId   int       `json:"movie_id"`
	UserId    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r repo) getAccessCodeKey(code string) string {
	return "access-code:" + code
}

const maxWatchAttempts = 3

// called between the user check and the write
var testHookBeforeSetAccessCode = func() {}

// InsertAccessCode stores the code without a TTL: expired codes stay readable and are
// rejected by the caller at validation time. The user key is watched, so the code is
// only written if the user still exists at commit.
func (r repo) InsertAccessCode(ctx context.Context, params *store.InsertAccessCodeParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	value, err := json.Marshal(accessCodeValue{
		MovieId:   params.MovieId,
		UserId:    params.UserId,
		ExpiresAt: params.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal access code: %w", err)
	}

	userKey := r.getUserKey(params.UserId)
	insert := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, userKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}

		if exists == 0 {
			return store.ErrUserNotFound
		}

		testHookBeforeSetAccessCode()

		var setNX *redis.BoolCmd
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			setNX = pipe.SetNX(ctx, r.getAccessCodeKey(params.Code), value, 0)
			return nil
		}); err != nil {
			if errors.Is(err, redis.TxFailedErr) {
				return err
			}

			return fmt.Errorf("failed to set access code: %w", err)
		}

		if !setNX.Val() {
			return store.ErrAccessCodeAlreadyExists
		}

		return nil
	}

	for i := 0; i < maxWatchAttempts; i++ {
		err = r.rc.Watch(ctx, insert, userKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}

		r.logger.DebugContext(ctx, "user changed during insert, retrying", "attempt", i+1)
	}

	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to set access code: %w", err)
		}

		return err
	}

	return nil
}

func (r repo) GetAccessCode(ctx context.Context, code string) (store.AccessCode, error) {
	r.logger.DebugContext(ctx, "called", "code", code)

	raw, err := r.rc.Get(ctx, r.getAccessCodeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.DebugContext(ctx, "returned", "error", store.ErrAccessCodeNotFound)
			return store.AccessCode{}, store.ErrAccessCodeNotFound
		}

		r.logger.DebugContext(ctx, "returned", "error", err)
		return store.AccessCode{}, fmt.Errorf("failed to get access code: %w", err)
	}

	var value accessCodeValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return store.AccessCode{}, fmt.Errorf("failed to unmarshal access code: %w", err)
	}

	accessCode := store.AccessCode{
		Code:      code,
		MovieId:   value.MovieId,
		UserId:    value.UserId,
		ExpiresAt: value.ExpiresAt.UTC(),
	}

	r.logger.DebugContext(ctx, "returned", "access_code", accessCode)
	return accessCode, nil
}
