// Package dialog stores per-chat conversational state in Redis. The state is
// the single source of truth for what input the bot currently expects from a
// chat; the notifier consults it before sending unsolicited prompts.
package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	// KindIdle means no input is expected. Idle is stored explicitly; a
	// missing key for a known participant is an anomaly, not idle.
	KindIdle Kind = "idle"
	// KindEntering is the guided data-entry flow; Field names the next input.
	KindEntering Kind = "entering"
	// KindEditing is a single-field edit; Field names the input.
	KindEditing Kind = "editing"
	// KindAwaitingSignup means a notification prompt for CourseID is pending.
	KindAwaitingSignup Kind = "awaiting_signup"
)

// Field identifies one participant profile field in entry/edit flows.
type Field string

const (
	FieldGivenName         Field = "given_name"
	FieldLastName          Field = "last_name"
	FieldGender            Field = "gender"
	FieldStreet            Field = "street"
	FieldCity              Field = "city"
	FieldPhone             Field = "phone"
	FieldEmail             Field = "email"
	FieldStatus            Field = "status"
	FieldStatusRelatedInfo Field = "status_related_info"
)

type State struct {
	Kind     Kind  `json:"kind"`
	Field    Field `json:"field,omitempty"`
	CourseID int64 `json:"course_id,omitempty"`
}

func Idle() State {
	return State{Kind: KindIdle}
}

func (s State) IsIdle() bool {
	return s.Kind == KindIdle
}

// Store is the external conversational-state boundary.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, bool, error)
	Set(ctx context.Context, chatID int64, state State) error
	Delete(ctx context.Context, chatID int64) error
}

type redisStore struct {
	client *redis.Client
}

func NewStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

// NewRedis returns a connected Redis client.
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func key(chatID int64) string {
	return fmt.Sprintf("dialog:%d", chatID)
}

func (r *redisStore) Get(ctx context.Context, chatID int64) (State, bool, error) {
	raw, err := r.client.Get(ctx, key(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("failed to read dialog state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, false, fmt.Errorf("failed to decode dialog state: %w", err)
	}
	return state, true, nil
}

func (r *redisStore) Set(ctx context.Context, chatID int64, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode dialog state: %w", err)
	}
	if err := r.client.Set(ctx, key(chatID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write dialog state: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, key(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete dialog state: %w", err)
	}
	return nil
}
