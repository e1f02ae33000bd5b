// Package storefakes provides an in-memory Store mirroring the Redis
// store's TTL semantics for tests.
package storefakes

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/jrsteele09/go-edge-gateway/sessions"
)

var _ sessions.Store = (*FakeStore)(nil)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type entry struct {
	record    sessions.Record
	expiresAt time.Time // zero means no expiry
}

type FakeStore struct {
	accessExpiry  time.Duration
	refreshExpiry time.Duration

	byAccess  map[string]*entry
	byRefresh map[string]*entry
	byUser    map[string]map[string]struct{} // userID -> set of access tokens
	lock      sync.Mutex

	// TouchErr, when set, is returned from Touch to exercise the
	// best-effort touch path.
	TouchErr error
}

func NewFakeStore(accessExpiry, refreshExpiry time.Duration) *FakeStore {
	return &FakeStore{
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		byAccess:      make(map[string]*entry),
		byRefresh:     make(map[string]*entry),
		byUser:        make(map[string]map[string]struct{}),
	}
}

func (s *FakeStore) Create(_ context.Context, accessToken, refreshToken string, record sessions.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := NowTimeFunc()
	record.RefreshToken = refreshToken
	s.byAccess[accessToken] = &entry{record: record, expiresAt: now.Add(s.accessExpiry)}
	s.byRefresh[refreshToken] = &entry{record: record, expiresAt: now.Add(s.refreshExpiry)}
	if s.byUser[record.UserID] == nil {
		s.byUser[record.UserID] = make(map[string]struct{})
	}
	s.byUser[record.UserID][accessToken] = struct{}{}
	return nil
}

func (s *FakeStore) GetByAccess(_ context.Context, accessToken string) (*sessions.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.live(s.byAccess, accessToken)
}

func (s *FakeStore) GetByRefresh(_ context.Context, refreshToken string) (*sessions.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.live(s.byRefresh, refreshToken)
}

func (s *FakeStore) live(m map[string]*entry, key string) (*sessions.Record, error) {
	e, ok := m[key]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	if !e.expiresAt.IsZero() && NowTimeFunc().After(e.expiresAt) {
		delete(m, key)
		return nil, errors.ErrSessionNotFound
	}
	record := e.record
	return &record, nil
}

func (s *FakeStore) Touch(_ context.Context, accessToken string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.TouchErr != nil {
		return s.TouchErr
	}
	e, ok := s.byAccess[accessToken]
	if !ok {
		return errors.ErrSessionNotFound
	}
	// expiresAt is deliberately untouched: the remaining TTL is preserved.
	e.record.LastActivity = NowTimeFunc()
	return nil
}

func (s *FakeStore) Revoke(_ context.Context, accessToken, refreshToken, userID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if refreshToken == "" && accessToken != "" {
		if e, ok := s.byAccess[accessToken]; ok {
			refreshToken = e.record.RefreshToken
		}
	}

	delete(s.byAccess, accessToken)
	delete(s.byRefresh, refreshToken)
	if set, ok := s.byUser[userID]; ok {
		delete(set, accessToken)
	}
	return nil
}

func (s *FakeStore) RevokeAll(_ context.Context, userID string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	set, ok := s.byUser[userID]
	if !ok || len(set) == 0 {
		return 0, nil
	}
	for accessToken := range set {
		if e, ok := s.byAccess[accessToken]; ok && e.record.RefreshToken != "" {
			delete(s.byRefresh, e.record.RefreshToken)
		}
		delete(s.byAccess, accessToken)
	}
	count := len(set)
	delete(s.byUser, userID)
	return count, nil
}

func (s *FakeStore) CountActive(_ context.Context, userID string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.byUser[userID]), nil
}

func (s *FakeStore) TTLRemaining(_ context.Context, accessToken string) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.byAccess[accessToken]
	if !ok {
		return sessions.TTLNotFound, nil
	}
	if e.expiresAt.IsZero() {
		return sessions.TTLNoExpiry, nil
	}
	remaining := e.expiresAt.Sub(NowTimeFunc())
	if remaining <= 0 {
		delete(s.byAccess, accessToken)
		return sessions.TTLNotFound, nil
	}
	return int64(remaining.Seconds()), nil
}
