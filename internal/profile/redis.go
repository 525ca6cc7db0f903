package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// RedisResolver stores grades under learner:{id}:grade so every server
// instance sees the same value.
type RedisResolver struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResolver creates a resolver on client. A ttl of zero keeps keys
// forever.
func NewRedisResolver(client *redis.Client, ttl time.Duration) *RedisResolver {
	return &RedisResolver{client: client, ttl: ttl}
}

func gradeKey(userID string) string {
	return "learner:" + userID + ":grade"
}

func (r *RedisResolver) Lookup(ctx context.Context, userID string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	v, err := r.client.Get(ctx, gradeKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get grade: %w", err)
	}

	grade, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("parse grade %q: %w", v, err)
	}
	return grade, true, nil
}

func (r *RedisResolver) SetGrade(ctx context.Context, userID string, grade int) error {
	if err := validGrade(grade); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, gradeKey(userID), grade, r.ttl).Err(); err != nil {
		return fmt.Errorf("set grade: %w", err)
	}
	return nil
}
