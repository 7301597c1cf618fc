// Package redis provides a settings.Store kept in a Redis hash.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/lookout/internal/settings"
)

// Store stages writes in memory and commits them in one transaction on Sync.
// Reads see staged writes first, then the hash.
type Store struct {
	client *redis.Client
	key    string

	mu     sync.Mutex
	staged map[string]*string // nil value marks a pending delete
	status error
}

var _ settings.Store = (*Store)(nil)

// NewStore creates a store over the hash at key.
func NewStore(client *redis.Client, key string) *Store {
	if key == "" {
		key = DefaultHashKey
	}
	return &Store{
		client: client,
		key:    key,
		staged: make(map[string]*string),
	}
}

func (s *Store) Value(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	if v, ok := s.staged[key]; ok {
		s.mu.Unlock()
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	s.mu.Unlock()

	v, err := s.client.HGet(ctx, s.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		s.setStatus(fmt.Errorf("%w: %v", settings.ErrAccess, err))
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) SetValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := value
	s.staged[key] = &v
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[key] = nil
	return nil
}

func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	if v, ok := s.staged[key]; ok {
		s.mu.Unlock()
		return v != nil, nil
	}
	s.mu.Unlock()

	ok, err := s.client.HExists(ctx, s.key, key).Result()
	if err != nil {
		s.setStatus(fmt.Errorf("%w: %v", settings.ErrAccess, err))
		return false, fmt.Errorf("failed to check setting %s: %w", key, err)
	}
	return ok, nil
}

// Sync commits staged writes atomically. Staged writes are kept on failure so
// a later Sync can retry them.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.staged) == 0 {
		err := s.client.Ping(ctx).Err()
		if err != nil {
			err = fmt.Errorf("%w: %v", settings.ErrAccess, err)
		}
		s.status = err
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range s.staged {
			if v == nil {
				pipe.HDel(ctx, s.key, k)
				continue
			}
			pipe.HSet(ctx, s.key, k, *v)
		}
		return nil
	})
	if err != nil {
		s.status = fmt.Errorf("%w: failed to commit settings: %v", settings.ErrAccess, err)
		return s.status
	}

	s.staged = make(map[string]*string)
	s.status = nil
	return nil
}

func (s *Store) Status() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) setStatus(err error) {
	s.mu.Lock()
	s.status = err
	s.mu.Unlock()
}
