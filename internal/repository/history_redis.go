package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
)

const (
	KeyHistory   = "clip:history" // HASH per platform. item_id: entry JSON
	KeySeparator = ":"
)

// RedisHistory stores entries in one hash per platform.
type RedisHistory struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewRedisHistory(cl *redis.Client, log *slog.Logger) *RedisHistory {
	return &RedisHistory{
		cl:  cl,
		log: log.With(slog.String("item", "RedisHistory")),
	}
}

func historyKey(p domain.Platform) string {
	return KeyHistory + KeySeparator + string(p)
}

func (r *RedisHistory) Record(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := r.cl.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("cannot encode entry %s: %w", e.ItemID, err)
			}
			pipe.HSet(ctx, historyKey(e.Platform), e.ItemID, data)
		}
		return nil
	})
	if err != nil {
		r.log.Error("Cannot record history", slog.Int("entries", len(entries)), slog.Any("error", err))
		return fmt.Errorf("cannot record history: %w", err)
	}
	return nil
}

func (r *RedisHistory) Get(ctx context.Context, platform domain.Platform, itemID string) (*Entry, error) {
	data, err := r.cl.HGet(ctx, historyKey(platform), itemID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errpkg.ErrNotFound
		}
		return nil, fmt.Errorf("cannot get history entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cannot decode history entry: %w", err)
	}
	return &e, nil
}
