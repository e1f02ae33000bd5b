package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/redis/go-redis/v9"
)

const (
	accessKeyPrefix  = "session:access:"
	refreshKeyPrefix = "session:refresh:"
	userSetKeyPrefix = "session:user:"
)

var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on a shared Redis instance.
type RedisStore struct {
	client        *redis.Client
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewRedisStore creates a session store writing access-keyed records with
// accessExpiry and refresh-keyed records (and the per-user set) with
// refreshExpiry.
func NewRedisStore(client *redis.Client, accessExpiry, refreshExpiry time.Duration) *RedisStore {
	return &RedisStore{
		client:        client,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (s *RedisStore) Create(ctx context.Context, accessToken, refreshToken string, record Record) error {
	record.RefreshToken = refreshToken
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, accessKeyPrefix+accessToken, payload, s.accessExpiry)
	pipe.Set(ctx, refreshKeyPrefix+refreshToken, payload, s.refreshExpiry)
	pipe.SAdd(ctx, userSetKeyPrefix+record.UserID, accessToken)
	pipe.Expire(ctx, userSetKeyPrefix+record.UserID, s.refreshExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByAccess(ctx context.Context, accessToken string) (*Record, error) {
	return s.get(ctx, accessKeyPrefix+accessToken)
}

func (s *RedisStore) GetByRefresh(ctx context.Context, refreshToken string) (*Record, error) {
	return s.get(ctx, refreshKeyPrefix+refreshToken)
}

func (s *RedisStore) get(ctx context.Context, key string) (*Record, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &record, nil
}

// Touch rewrites the access-keyed record with a fresh LastActivity. The SET
// uses KEEPTTL so the record keeps its remaining lifetime instead of being
// renewed to the full access expiry.
func (s *RedisStore) Touch(ctx context.Context, accessToken string) error {
	record, err := s.GetByAccess(ctx, accessToken)
	if err != nil {
		return err
	}

	record.LastActivity = time.Now()
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := s.client.Set(ctx, accessKeyPrefix+accessToken, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (s *RedisStore) Revoke(ctx context.Context, accessToken, refreshToken, userID string) error {
	// A caller holding only the access token still revokes the pair.
	if refreshToken == "" && accessToken != "" {
		if record, err := s.GetByAccess(ctx, accessToken); err == nil {
			refreshToken = record.RefreshToken
		}
	}

	pipe := s.client.TxPipeline()
	if accessToken != "" {
		pipe.Del(ctx, accessKeyPrefix+accessToken)
		pipe.SRem(ctx, userSetKeyPrefix+userID, accessToken)
	}
	if refreshToken != "" {
		pipe.Del(ctx, refreshKeyPrefix+refreshToken)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	setKey := userSetKeyPrefix + userID
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read active sessions: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	accessKeys := make([]string, 0, len(members))
	for _, accessToken := range members {
		accessKeys = append(accessKeys, accessKeyPrefix+accessToken)
	}

	// Each access record names its paired refresh token, so one MGET
	// collects every key the revocation has to delete.
	keys := make([]string, 0, 2*len(members)+1)
	keys = append(keys, accessKeys...)
	payloads, err := s.client.MGet(ctx, accessKeys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read active sessions: %w", err)
	}
	for _, payload := range payloads {
		text, ok := payload.(string)
		if !ok {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(text), &record); err != nil || record.RefreshToken == "" {
			continue
		}
		keys = append(keys, refreshKeyPrefix+record.RefreshToken)
	}
	keys = append(keys, setKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return len(members), nil
}

func (s *RedisStore) CountActive(ctx context.Context, userID string) (int, error) {
	count, err := s.client.SCard(ctx, userSetKeyPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) TTLRemaining(ctx context.Context, accessToken string) (int64, error) {
	d, err := s.client.TTL(ctx, accessKeyPrefix+accessToken).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read session TTL: %w", err)
	}
	// go-redis passes the cache's -1 (no expiry) and -2 (missing) through
	// as raw negative durations.
	if d < 0 {
		return int64(d), nil
	}
	return int64(d.Seconds()), nil
}
