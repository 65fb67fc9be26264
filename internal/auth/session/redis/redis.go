// Package redis implements the session store on top of a Redis server.
//
// Key layout:
//
//	rt:{userID}:{deviceID}   refresh token fingerprint (string)
//	pwdreset:{token}         email address (string, single use)
//	confirmation-flag:{id}   rate limit marker (string "1")
//	mfa:{token}              pending MFA challenge (hash: user_id, attempts)
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patronhq/patron/internal/auth/session"
	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix      = "rt:"
	resetKeyPrefix        = "pwdreset:"
	confirmKeyPrefix      = "confirm:"
	confirmationKeyPrefix = "confirmation-flag:"
	mfaKeyPrefix          = "mfa:"
)

// rotateScript swaps the stored fingerprint only if it still matches the
// expected previous value. Running it server-side makes rotation atomic under
// concurrent refresh attempts from the same device.
//
// Returns 1 on success, 0 on mismatch, -1 if the key does not exist.
var rotateScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
return 1
`)

type Store struct {
	client *redis.Client
}

var _ session.Store = (*Store)(nil)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func refreshKey(userID, deviceID string) string {
	return refreshKeyPrefix + userID + ":" + deviceID
}

func (s *Store) SaveRefresh(ctx context.Context, userID, deviceID, fingerprint string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKey(userID, deviceID), fingerprint, ttl).Err()
}

func (s *Store) GetRefresh(ctx context.Context, userID, deviceID string) (string, error) {
	fp, err := s.client.Get(ctx, refreshKey(userID, deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return fp, nil
}

func (s *Store) RotateRefresh(ctx context.Context, userID, deviceID, oldFingerprint, newFingerprint string, ttl time.Duration) error {
	res, err := rotateScript.Run(ctx, s.client,
		[]string{refreshKey(userID, deviceID)},
		oldFingerprint, newFingerprint, int(ttl.Seconds()),
	).Int64()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case 0:
		return session.ErrConflict
	default:
		return session.ErrNotFound
	}
}

func (s *Store) DeleteRefresh(ctx context.Context, userID, deviceID string) error {
	return s.client.Del(ctx, refreshKey(userID, deviceID)).Err()
}

func (s *Store) DeleteAllRefresh(ctx context.Context, userID string) error {
	pattern := refreshKeyPrefix + userID + ":*"
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) SaveResetToken(ctx context.Context, token, email string, ttl time.Duration) error {
	return s.client.Set(ctx, resetKeyPrefix+token, email, ttl).Err()
}

func (s *Store) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	email, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

func (s *Store) SaveConfirmToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, confirmKeyPrefix+token, userID, ttl).Err()
}

func (s *Store) ConsumeConfirmToken(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, confirmKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Store) SetConfirmationFlag(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, confirmationKeyPrefix+userID, "1", ttl).Result()
}

func (s *Store) CreateMFAChallenge(ctx context.Context, token, userID string, ttl time.Duration) error {
	key := mfaKeyPrefix + token
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "user_id", userID, "attempts", 0)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetMFAChallenge(ctx context.Context, token string) (string, int, error) {
	vals, err := s.client.HGetAll(ctx, mfaKeyPrefix+token).Result()
	if err != nil {
		return "", 0, err
	}
	if len(vals) == 0 {
		return "", 0, session.ErrNotFound
	}
	attempts, err := strconv.Atoi(vals["attempts"])
	if err != nil {
		return "", 0, fmt.Errorf("malformed mfa attempts counter: %w", err)
	}
	return vals["user_id"], attempts, nil
}

func (s *Store) IncrementMFAAttempts(ctx context.Context, token string) (int, error) {
	key := mfaKeyPrefix + token
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, session.ErrNotFound
	}
	n, err := s.client.HIncrBy(ctx, key, "attempts", 1).Result()
	return int(n), err
}

func (s *Store) DeleteMFAChallenge(ctx context.Context, token string) error {
	return s.client.Del(ctx, mfaKeyPrefix+token).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
