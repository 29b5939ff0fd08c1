package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/eventhub/internal/utils"
)

// OTP failures.
var (
	ErrOTPInvalid   = errors.New("otp code is invalid or expired")
	ErrOTPExhausted = errors.New("too many otp attempts")
)

// OTPStore keeps one-time login codes in Redis.  Each username has a
// code key and an attempts counter sharing the code's TTL.
type OTPStore struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	maxAttempts int
}

// NewOTPStore constructs an OTPStore.  maxAttempts below 1 is treated
// as 1.
func NewOTPStore(rdb *redis.Client, prefix string, ttl time.Duration, maxAttempts int) *OTPStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if prefix == "" {
		prefix = "otp"
	}
	return &OTPStore{rdb: rdb, prefix: prefix, ttl: ttl, maxAttempts: maxAttempts}
}

// TTL returns how long a saved code stays valid.
func (s *OTPStore) TTL() time.Duration { return s.ttl }

func (s *OTPStore) codeKey(username string) string    { return s.prefix + ":code:" + username }
func (s *OTPStore) attemptsKey(username string) string { return s.prefix + ":attempts:" + username }

// Save stores code for username and resets the attempts counter.
func (s *OTPStore) Save(ctx context.Context, username, code string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.codeKey(username), code, s.ttl)
		p.Del(ctx, s.attemptsKey(username))
		return nil
	})
	return err
}

// Verify checks code against the stored one.  A match consumes the
// code.  Every failed attempt is counted and the code is dropped once
// the limit is reached.
func (s *OTPStore) Verify(ctx context.Context, username, code string) error {
	stored, err := s.rdb.Get(ctx, s.codeKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPInvalid
	}
	if err != nil {
		return err
	}
	if utils.EqualCode(stored, code) {
		return s.rdb.Del(ctx, s.codeKey(username), s.attemptsKey(username)).Err()
	}

	attempts, err := s.rdb.Incr(ctx, s.attemptsKey(username)).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		s.rdb.Expire(ctx, s.attemptsKey(username), s.ttl)
	}
	if attempts >= int64(s.maxAttempts) {
		if err := s.rdb.Del(ctx, s.codeKey(username), s.attemptsKey(username)).Err(); err != nil {
			return err
		}
		return ErrOTPExhausted
	}
	return ErrOTPInvalid
}
