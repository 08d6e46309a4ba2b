package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/ekisa-team/scanbill/internal/billing"
)

// DefaultPrefix namespaces bill keys.
const DefaultPrefix = "scanbill:bill:"

// Redis stores bills as JSON strings with a sorted-set index scored by
// bill date.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL expires bills after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Redis) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Redis) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedis connects to the server at address.
func NewRedis(address, password string, db int, opts ...Option) *Redis {
	return NewRedisFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	s := &Redis{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

func (s *Redis) indexKey() string {
	return s.prefix + "index"
}

// Ping checks the connection.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Save(ctx context.Context, bill *billing.Bill) error {
	data, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to marshal bill: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(bill.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(bill.Date.UnixMilli()),
		Member: bill.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save bill to redis: %w", err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, id string) (*billing.Bill, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("failed to get bill from redis: %w", err)
	}

	var bill billing.Bill
	if err := json.Unmarshal(val, &bill); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bill: %w", err)
	}
	return &bill, nil
}

// List reads the index newest first. Index entries whose bill has expired
// are pruned as they are found.
func (s *Redis) List(ctx context.Context, limit int) ([]*billing.Bill, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	if len(ids) == 0 {
		return []*billing.Bill{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bills from redis: %w", err)
	}

	bills := make([]*billing.Bill, 0, len(ids))
	var expired []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var bill billing.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bill %s: %w", ids[i], err)
		}
		bills = append(bills, &bill)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired bills: %w", err)
		}
	}

	return bills, nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if del.Val() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
