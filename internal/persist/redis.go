package persist

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores client state under "<namespace>:<key>".
type Redis struct {
	rdb       *redis.Client
	namespace string
}

func NewRedis(url, namespace string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = "cartd"
	}
	return &Redis{rdb: redis.NewClient(opt), namespace: namespace}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		err = ErrNotFound
	}
	observe("redis", "get", err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	err := r.rdb.Set(ctx, r.key(key), value, 0).Err()
	observe("redis", "set", err)
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	err := r.rdb.Del(ctx, r.key(key)).Err()
	observe("redis", "delete", err)
	return err
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) key(k string) string { return r.namespace + ":" + k }
