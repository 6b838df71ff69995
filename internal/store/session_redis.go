package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/pisoprint/internal/paper"
)

type RedisSessions struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisSessions(redisURL string, ttl time.Duration) (*RedisSessions, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return NewRedisSessionsFromClient(c, ttl), nil
}

func NewRedisSessionsFromClient(c *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: c, keyNS: "session", ttl: ttl}
}

var _ Sessions = (*RedisSessions)(nil)

func (s *RedisSessions) key(baseName string) string { return fmt.Sprintf("%s:%s", s.keyNS, baseName) }

func (s *RedisSessions) Save(ctx context.Context, sess Session) error {
	k := s.key(sess.BaseName)
	m := map[string]interface{}{
		"total_pages":   sess.TotalPages,
		"original_size": sess.OriginalSize.String(),
		"archive_key":   sess.ArchiveKey,
		"created_at":    sess.CreatedAt.Format(time.RFC3339Nano),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, m)
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSessions) Get(ctx context.Context, baseName string) (Session, error) {
	res, err := s.client.HGetAll(ctx, s.key(baseName)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(res) == 0 {
		return Session{}, ErrSessionNotFound
	}
	sess := Session{
		BaseName:     baseName,
		OriginalSize: paper.Size(res["original_size"]),
		ArchiveKey:   res["archive_key"],
	}
	// malformed fields decode as zero values
	sess.TotalPages, _ = strconv.Atoi(res["total_pages"])
	if t, err := time.Parse(time.RFC3339Nano, res["created_at"]); err == nil {
		sess.CreatedAt = t
	}
	return sess, nil
}

func (s *RedisSessions) Delete(ctx context.Context, baseName string) error {
	return s.client.Del(ctx, s.key(baseName)).Err()
}

func (s *RedisSessions) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisSessions) Close() error { return s.client.Close() }
