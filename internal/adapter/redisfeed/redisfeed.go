// Package redisfeed implements a health store on a Redis stream. Every
// change is one stream entry whose "data" field holds a JSON sample batch,
// so external bridges can push samples with a plain XADD. The stream entry
// ID serves as the feed anchor.
package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bpdiary/internal/config"
	"bpdiary/internal/domain"
	"bpdiary/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const readCount = 100

// streamClient is the subset of *redis.Client the store uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

var _ domain.HealthStore = (*Store)(nil)

// Store is a domain.HealthStore backed by a Redis stream.
type Store struct {
	client streamClient
	stream string
	block  time.Duration
	log    *zap.Logger
}

// NewClient creates the Redis client for cfg.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// New creates a Store reading and writing cfg.Stream.
func New(client streamClient, cfg config.RedisConfig, log *zap.Logger) *Store {
	s := &Store{client: client, stream: cfg.Stream, block: cfg.Block, log: logger.OrNop(log)}
	if s.stream == "" {
		s.stream = "bpdiary:samples"
	}
	if s.block <= 0 {
		s.block = 5 * time.Second
	}
	return s
}

func (s *Store) authKey() string {
	return s.stream + ":authorization"
}

// Available reports whether Redis answers a ping.
func (s *Store) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// AuthorizationStatus reads the stored sharing decision.
func (s *Store) AuthorizationStatus(ctx context.Context) (domain.AuthorizationStatus, error) {
	v, err := s.client.Get(ctx, s.authKey()).Result()
	if errors.Is(err, redis.Nil) {
		return domain.AuthorizationNotDetermined, nil
	}
	if err != nil {
		return domain.AuthorizationNotDetermined, err
	}
	switch v {
	case "granted":
		return domain.AuthorizationGranted, nil
	case "denied":
		return domain.AuthorizationDenied, nil
	}
	return domain.AuthorizationNotDetermined, nil
}

// RequestAuthorization grants sharing unless a decision is already stored.
func (s *Store) RequestAuthorization(ctx context.Context) error {
	return s.client.SetNX(ctx, s.authKey(), domain.AuthorizationGranted.String(), 0).Err()
}

// SetAuthorization overwrites the stored sharing decision.
func (s *Store) SetAuthorization(ctx context.Context, status domain.AuthorizationStatus) error {
	return s.client.Set(ctx, s.authKey(), status.String(), 0).Err()
}

// SaveReading appends m to the stream as one batch.
func (s *Store) SaveReading(ctx context.Context, m domain.Measurement) error {
	bp, hr := m.Samples(uuid.NewString(), uuid.NewString())
	_, err := s.Publish(ctx, domain.SampleBatch{
		BloodPressure: []domain.BloodPressureSample{bp},
		HeartRate:     []domain.HeartRateSample{hr},
	})
	return err
}

// Publish appends a batch to the stream and returns its entry ID.
func (s *Store) Publish(ctx context.Context, b domain.SampleBatch) (string, error) {
	b.Anchor = ""
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return id, nil
}

// Next reads the entries after q.Anchor and merges the samples inside the
// query window into one batch. It blocks until there is one or ctx ends;
// cancellation is noticed at the latest one block interval later.
func (s *Store) Next(ctx context.Context, q domain.FeedQuery) (domain.SampleBatch, error) {
	last := q.Anchor
	if last == "" {
		last = "0"
	}
	for {
		if err := ctx.Err(); err != nil {
			return domain.SampleBatch{}, err
		}
		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.stream, last},
			Count:   readCount,
			Block:   s.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return domain.SampleBatch{}, fmt.Errorf("xread %s: %w", s.stream, err)
		}

		var out domain.SampleBatch
		for _, st := range streams {
			for _, msg := range st.Messages {
				last = msg.ID
				b, err := decode(msg)
				if err != nil {
					s.log.Warn("skipping malformed stream entry", zap.String("id", msg.ID), zap.Error(err))
					continue
				}
				merge(&out, b, q)
			}
		}
		if !out.Empty() {
			out.Anchor = last
			return out, nil
		}
	}
}

func decode(msg redis.XMessage) (domain.SampleBatch, error) {
	var b domain.SampleBatch
	raw, ok := msg.Values["data"]
	if !ok {
		return b, errors.New("missing data field")
	}
	str, ok := raw.(string)
	if !ok {
		return b, fmt.Errorf("data field is %T", raw)
	}
	if err := json.Unmarshal([]byte(str), &b); err != nil {
		return b, err
	}
	return b, nil
}

func merge(out *domain.SampleBatch, b domain.SampleBatch, q domain.FeedQuery) {
	for _, s := range b.BloodPressure {
		if q.Contains(s.TakenAt) {
			out.BloodPressure = append(out.BloodPressure, s)
		}
	}
	for _, s := range b.HeartRate {
		if q.Contains(s.TakenAt) {
			out.HeartRate = append(out.HeartRate, s)
		}
	}
	out.Deleted = append(out.Deleted, b.Deleted...)
}
