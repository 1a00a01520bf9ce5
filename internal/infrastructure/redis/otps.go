package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/finance-tracker/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// Each script runs atomically on the server and mirrors one conditional
// write of the DynamoDB store. created_at (unix millis) is the record version.
var (
	// Returns 0 when written, otherwise the created_at of the blocking record.
	createScript = goredis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'created_at', 'verified')
if cur[1] and cur[2] ~= '1' and tonumber(cur[1]) > tonumber(ARGV[1]) then
  return tonumber(cur[1])
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'code', ARGV[2], 'purpose', ARGV[3], 'user_id', ARGV[4],
  'verified', '0', 'attempts', '0', 'created_at', ARGV[5], 'expires_at', ARGV[6])
redis.call('PEXPIRE', KEYS[1], ARGV[7])
return 0
`)

	// Returns the new attempt count or -1 when the guard fails.
	incrementScript = goredis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'created_at', 'verified', 'attempts')
if not cur[1] or cur[1] ~= ARGV[1] or cur[2] == '1' or tonumber(cur[3]) >= tonumber(ARGV[2]) then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

	markVerifiedScript = goredis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'created_at', 'verified', 'attempts')
if not cur[1] or cur[1] ~= ARGV[1] or cur[2] == '1' or tonumber(cur[3]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'verified', '1')
return 1
`)

	deleteScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'created_at') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)
)

// OTPStore keeps OTP challenges as Redis hashes under otp:<email>. Key expiry
// follows the record's expires_at.
type OTPStore struct {
	client *goredis.Client
}

func NewOTPStore(client *goredis.Client) *OTPStore {
	return &OTPStore{client: client}
}

func key(email string) string { return keyPrefix + email }

func version(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func (s *OTPStore) Create(ctx context.Context, rec *domain.OTP, cooldown time.Duration) error {
	ttl := max(rec.ExpiresAt.Sub(rec.CreatedAt).Milliseconds(), 1)
	blocking, err := createScript.Run(ctx, s.client, []string{key(rec.Email)},
		rec.CreatedAt.Add(-cooldown).UnixMilli(),
		rec.Code,
		string(rec.Purpose),
		rec.UserID,
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		ttl,
	).Int64()
	if err != nil {
		return fmt.Errorf("create otp: %w", err)
	}
	if blocking != 0 {
		return &domain.RateLimitError{RetryAfter: time.UnixMilli(blocking).Add(cooldown).Sub(rec.CreatedAt)}
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, email string) (*domain.OTP, error) {
	fields, err := s.client.HGetAll(ctx, key(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	return parseOTP(email, fields)
}

func (s *OTPStore) IncrementAttempts(ctx context.Context, email string, v time.Time, max int) (int, error) {
	n, err := incrementScript.Run(ctx, s.client, []string{key(email)}, version(v), max).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("otp changed: %w", domain.ErrConflict)
	}
	return int(n), nil
}

func (s *OTPStore) MarkVerified(ctx context.Context, email string, v time.Time, max int) error {
	ok, err := markVerifiedScript.Run(ctx, s.client, []string{key(email)}, version(v), max).Int64()
	if err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("otp changed: %w", domain.ErrConflict)
	}
	return nil
}

func (s *OTPStore) Delete(ctx context.Context, email string, v time.Time) error {
	if err := deleteScript.Run(ctx, s.client, []string{key(email)}, version(v)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func parseOTP(email string, f map[string]string) (*domain.OTP, error) {
	attempts, err := strconv.Atoi(f["attempts"])
	if err != nil {
		return nil, fmt.Errorf("parse otp attempts: %w", err)
	}
	created, err := strconv.ParseInt(f["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse otp created_at: %w", err)
	}
	expires, err := strconv.ParseInt(f["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse otp expires_at: %w", err)
	}
	return &domain.OTP{
		Email:     email,
		Code:      f["code"],
		Purpose:   domain.Purpose(f["purpose"]),
		UserID:    f["user_id"],
		Verified:  f["verified"] == "1",
		Attempts:  attempts,
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}
