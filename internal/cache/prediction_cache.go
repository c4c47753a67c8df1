package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/climatehealth/healthrisk/internal/models"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

const keyPrefix = "healthrisk:prediction:"

// PredictionCache stores prediction responses in Redis keyed by a digest of
// the request. Cache failures are reported as misses so a degraded Redis
// never blocks serving.
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*PredictionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &PredictionCache{client: client, ttl: ttl}, nil
}

// Key derives a deterministic cache key from the prediction input. The
// digest covers the full flattened feature set plus model version, so a
// redeployed model never serves stale scores.
func (c *PredictionCache) Key(input *models.PredictionInput, modelVersion string) string {
	payload, err := json.Marshal(struct {
		Record  map[string]float64 `json:"record"`
		Version string             `json:"version"`
	}{Record: input.Flatten(), Version: modelVersion})
	if err != nil {
		// Flatten output is always marshalable; keep a safe fallback anyway.
		payload = []byte(modelVersion)
	}
	digest := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(digest[:])
}

// Get fetches a cached prediction. A miss, an unreachable Redis or a corrupt
// entry all return (nil, false).
func (c *PredictionCache) Get(ctx context.Context, key string) (*models.PredictionOutput, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithComponent("cache").Warn().Err(err).Msg("Cache lookup failed")
		}
		return nil, false
	}

	var output models.PredictionOutput
	if err := json.Unmarshal(payload, &output); err != nil {
		logger.WithComponent("cache").Warn().Err(err).Msg("Discarding corrupt cache entry")
		return nil, false
	}
	return &output, true
}

// Set stores a prediction with the configured TTL. Failures are logged and
// swallowed.
func (c *PredictionCache) Set(ctx context.Context, key string, output *models.PredictionOutput) {
	payload, err := json.Marshal(output)
	if err != nil {
		logger.WithComponent("cache").Warn().Err(err).Msg("Failed to marshal prediction for cache")
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.WithComponent("cache").Warn().Err(err).Msg("Failed to store prediction in cache")
	}
}

// Ping reports whether Redis is reachable.
func (c *PredictionCache) Ping(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// Close releases the Redis connection.
func (c *PredictionCache) Close() error {
	return c.client.Close()
}
