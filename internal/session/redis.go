package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// redisStore persists session state as one JSON blob per user key.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (r *redisStore) Load(ctx context.Context, userID string) (*State, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return &State{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", userID, err)
	}
	var state State
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		// A corrupt blob should not wedge the conversation forever.
		return &State{UserID: userID}, nil
	}
	return &state, nil
}

func (r *redisStore) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.UserID, err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+state.UserID, data, 0).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", state.UserID, err)
	}
	return nil
}
