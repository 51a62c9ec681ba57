// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// Redis computes geo distances on a slightly larger sphere than ours. Searching
// a little wider and filtering with haversine keeps edge results consistent
// across backends.
const redisRadiusSlack = 1.001

const sweepBatchSize = 256

// removeStaleScript drops index members whose position key no longer exists.
// The existence check and ZREM run atomically so a concurrent upsert is never undone.
var removeStaleScript = redis.NewScript(`
local removed = 0
for _, member in ipairs(ARGV) do
  if redis.call('EXISTS', 'vehicle:' .. member .. ':position') == 0 then
    removed = removed + redis.call('ZREM', KEYS[1], member)
  end
end
return removed
`)

// RedisStore keeps positions as plain keys with EX and indexes them in the
// geo sorted set vehicles:locations.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the redis URL and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Name implements PositionStore.
func (s *RedisStore) Name() string { return "redis" }

// Upsert implements PositionStore. SET and GEOADD run in one MULTI/EXEC.
func (s *RedisStore) Upsert(ctx context.Context, vehicleID int64, snapshot models.CachedPosition, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cached position: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, PositionKey(vehicleID), data, ttl)
		pipe.GeoAdd(ctx, GeoIndexKey, &redis.GeoLocation{
			Name:      strconv.FormatInt(vehicleID, 10),
			Longitude: snapshot.Longitude,
			Latitude:  snapshot.Latitude,
		})
		return nil
	})
	metrics.RecordCacheOp(s.Name(), "upsert", err)
	if err != nil {
		return fmt.Errorf("write position: %w", err)
	}
	return nil
}

// Get implements PositionStore.
func (s *RedisStore) Get(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error) {
	data, err := s.client.Get(ctx, PositionKey(vehicleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup(s.Name(), false)
		return models.CachedPosition{}, false, nil
	}
	if err != nil {
		metrics.RecordCacheOp(s.Name(), "get", err)
		return models.CachedPosition{}, false, fmt.Errorf("read position: %w", err)
	}

	var pos models.CachedPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return models.CachedPosition{}, false, fmt.Errorf("decode position: %w", err)
	}
	metrics.RecordCacheLookup(s.Name(), true)
	return pos, true, nil
}

// QueryRadius implements PositionStore. Index members whose position key has
// expired are removed from the index with ZREM.
func (s *RedisStore) QueryRadius(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error) {
	locations, err := s.client.GeoSearchLocation(ctx, GeoIndexKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm * redisRadiusSlack,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		metrics.RecordCacheOp(s.Name(), "query", err)
		return nil, fmt.Errorf("geo search: %w", err)
	}
	if len(locations) == 0 {
		metrics.RecordCacheOp(s.Name(), "query", nil)
		return []models.NearbyVehicle{}, nil
	}

	keys := make([]string, len(locations))
	for i, loc := range locations {
		id, _ := strconv.ParseInt(loc.Name, 10, 64)
		keys[i] = PositionKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.RecordCacheOp(s.Name(), "query", err)
		return nil, fmt.Errorf("confirm positions: %w", err)
	}

	results := make([]models.NearbyVehicle, 0, len(locations))
	var stale []interface{}
	for i, loc := range locations {
		raw, ok := values[i].(string)
		if !ok {
			stale = append(stale, loc.Name)
			continue
		}

		var pos models.CachedPosition
		if err := json.Unmarshal([]byte(raw), &pos); err != nil {
			logging.Warn().Err(err).Str("member", loc.Name).Msg("Skipping undecodable cached position")
			continue
		}
		d := haversineDistance(lat, lng, pos.Latitude, pos.Longitude)
		if d > radiusKm {
			continue
		}
		results = append(results, models.NearbyVehicle{
			VehicleID:      pos.VehicleID,
			DistanceKm:     d,
			LatestPosition: pos,
		})
	}

	if len(stale) > 0 {
		s.removeMembers(ctx, stale)
	}

	metrics.RecordCacheOp(s.Name(), "query", nil)
	sortByDistance(results)
	return results, nil
}

// Sweep implements PositionStore. It walks the geo index and drops members
// whose position key has expired.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		pairs, next, err := s.client.ZScan(ctx, GeoIndexKey, cursor, "", sweepBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("scan geo index: %w", err)
		}

		// ZSCAN returns member, score, member, score...
		members := make([]string, 0, len(pairs)/2)
		keys := make([]string, 0, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			id, err := strconv.ParseInt(pairs[i], 10, 64)
			if err != nil {
				continue
			}
			members = append(members, pairs[i])
			keys = append(keys, PositionKey(id))
		}

		if len(keys) > 0 {
			values, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("confirm positions: %w", err)
			}
			var stale []interface{}
			for i, v := range values {
				if v == nil {
					stale = append(stale, members[i])
				}
			}
			removed += s.removeMembers(ctx, stale)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if n, err := s.client.ZCard(ctx, GeoIndexKey).Result(); err == nil {
		metrics.CacheEntries.WithLabelValues(s.Name()).Set(float64(n))
	}
	return removed, nil
}

// removeMembers drops index members that are still stale.
func (s *RedisStore) removeMembers(ctx context.Context, members []interface{}) int {
	if len(members) == 0 {
		return 0
	}
	n, err := removeStaleScript.Run(ctx, s.client, []string{GeoIndexKey}, members...).Int64()
	if err != nil {
		logging.Warn().Err(err).Int("members", len(members)).Msg("Failed to remove stale geo index members")
		return 0
	}
	metrics.CacheSweptEntries.WithLabelValues(s.Name()).Add(float64(n))
	return int(n)
}

// Close implements PositionStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
