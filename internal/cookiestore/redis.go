package cookiestore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares jars between bot instances.
type RedisStore struct {
	client *redis.Client
	codec  *Codec
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, codec *Codec, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, codec: codec, prefix: "courtsniper:jar:", ttl: ttl}
}

// OpenRedis parses url and verifies the server is reachable.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]Cookie, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(v)
}

func (s *RedisStore) Save(ctx context.Context, key string, cookies []Cookie) error {
	enc, err := s.codec.Encode(cookies)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, enc, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
