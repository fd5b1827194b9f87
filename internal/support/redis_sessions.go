package support

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"agora/core/internal/domain"
)

const (
	sessionKeyPrefix = "support:session:"
	waitingSetKey    = "support:waiting"
	activeKeyPrefix  = "support:active:"
)

// RedisSessions stores sessions as JSON blobs keyed by session id, with a
// waiting set and per-volunteer active sets for the queue views. Transitions
// run inside WATCH so two callers cannot claim the same session.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(redisURL string) (*RedisSessions, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisSessions{client: client}, nil
}

// NewRedisSessionsWithClient wraps an existing client, mainly for tests.
func NewRedisSessionsWithClient(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func activeKey(volunteerAddress string) string {
	return activeKeyPrefix + volunteerAddress
}

func (s *RedisSessions) Save(ctx context.Context, session domain.SupportSession) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(session.ID), jsonData, 0).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return domain.ConflictError("session " + session.ID + " already exists")
	}
	if session.Status == domain.SessionWaiting {
		if err := s.client.SAdd(ctx, waitingSetKey, session.ID).Err(); err != nil {
			return fmt.Errorf("enqueue session: %w", err)
		}
	}
	return nil
}

func (s *RedisSessions) Get(ctx context.Context, id string) (*domain.SupportSession, error) {
	jsonData, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	var session domain.SupportSession
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessions) Assign(ctx context.Context, id, volunteerAddress string, maxActive int) (*domain.SupportSession, error) {
	var assigned *domain.SupportSession

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		jsonData, err := tx.Get(ctx, sessionKey(id)).Result()
		if err == redis.Nil {
			return domain.NotFoundError("support_session", id)
		}
		if err != nil {
			return fmt.Errorf("lookup session: %w", err)
		}

		var session domain.SupportSession
		if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if session.Status != domain.SessionWaiting {
			return domain.InvalidTransitionError(session.Status, domain.SessionActive)
		}

		active, err := tx.SCard(ctx, activeKey(volunteerAddress)).Result()
		if err != nil {
			return fmt.Errorf("count active sessions: %w", err)
		}
		if active >= int64(maxActive) {
			return domain.ConflictError("volunteer " + volunteerAddress + " is at capacity")
		}

		session.Status = domain.SessionActive
		session.VolunteerAddress = volunteerAddress
		session.UpdatedAt = time.Now()

		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(id), updated, 0)
			pipe.SRem(ctx, waitingSetKey, id)
			pipe.SAdd(ctx, activeKey(volunteerAddress), id)
			return nil
		})
		if err != nil {
			return err
		}
		assigned = &session
		return nil
	}, sessionKey(id), activeKey(volunteerAddress))
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func (s *RedisSessions) Resolve(ctx context.Context, id string) (*domain.SupportSession, error) {
	return s.transition(ctx, id, domain.SessionActive, domain.SessionResolved)
}

func (s *RedisSessions) Cancel(ctx context.Context, id string) (*domain.SupportSession, error) {
	return s.transition(ctx, id, domain.SessionWaiting, domain.SessionCancelled)
}

func (s *RedisSessions) transition(ctx context.Context, id string, from, to domain.SessionStatus) (*domain.SupportSession, error) {
	var moved *domain.SupportSession

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		jsonData, err := tx.Get(ctx, sessionKey(id)).Result()
		if err == redis.Nil {
			return domain.NotFoundError("support_session", id)
		}
		if err != nil {
			return fmt.Errorf("lookup session: %w", err)
		}

		var session domain.SupportSession
		if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if session.Status != from {
			return domain.InvalidTransitionError(session.Status, to)
		}

		session.Status = to
		session.UpdatedAt = time.Now()

		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(id), updated, 0)
			pipe.SRem(ctx, waitingSetKey, id)
			if session.VolunteerAddress != "" {
				pipe.SRem(ctx, activeKey(session.VolunteerAddress), id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		moved = &session
		return nil
	}, sessionKey(id))
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (s *RedisSessions) ActiveCount(ctx context.Context, volunteerAddress string) (int, error) {
	count, err := s.client.SCard(ctx, activeKey(volunteerAddress)).Result()
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return int(count), nil
}

func (s *RedisSessions) ListWaiting(ctx context.Context) ([]domain.SupportSession, error) {
	ids, err := s.client.SMembers(ctx, waitingSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}

	waiting := make([]domain.SupportSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		// Set membership can briefly outlive a transition.
		if session == nil || session.Status != domain.SessionWaiting {
			continue
		}
		waiting = append(waiting, *session)
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].ID < waiting[j].ID
		}
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting, nil
}

func (s *RedisSessions) Close() error {
	return s.client.Close()
}

func (s *RedisSessions) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
