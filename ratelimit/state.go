package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Key identifies one throttle bucket: a gateway and the host it talks to.
// Both parts compare case-insensitively.
type Key struct {
	ProviderID string
	Host       string
}

func (k Key) normalized() Key {
	return Key{
		ProviderID: strings.ToLower(strings.TrimSpace(k.ProviderID)),
		Host:       strings.ToLower(strings.TrimSpace(k.Host)),
	}
}

// State is what the policy last learned about a bucket. Attempts counts
// consecutive throttled replies and resets on the first normal one.
type State struct {
	Key            Key
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

// blockedFor reports how long calls must wait at now, if at all. An explicit
// throttle window wins over an exhausted quota.
func (s State) blockedFor(now time.Time) (time.Duration, bool) {
	if s.ThrottledUntil != nil && now.Before(*s.ThrottledUntil) {
		return s.ThrottledUntil.Sub(now), true
	}
	if s.Remaining == 0 && s.ResetAt != nil && now.Before(*s.ResetAt) {
		return s.ResetAt.Sub(now), true
	}
	return 0, false
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

// MemoryStateStore keeps state for the life of the process. Its zero value is
// ready to use.
type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.items[key.normalized()]; ok {
		return state, nil
	}
	return State{}, ErrStateNotFound
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	state.Key = state.Key.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[Key]State{}
	}
	s.items[state.Key] = state
	return nil
}
