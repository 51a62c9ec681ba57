// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

const badgerLockStripes = 64

// BadgerStore keeps positions in BadgerDB with native entry TTL and indexes
// them in an in-process SpatialHashGrid. Writes to one vehicle are serialized
// by a striped lock so the badger entry and the grid entry move together.
type BadgerStore struct {
	db    *badger.DB
	grid  *SpatialHashGrid
	locks [badgerLockStripes]sync.Mutex
	now   func() time.Time
}

// NewBadgerStore opens BadgerDB at dir and rebuilds the grid from live entries.
// An empty dir opens an in-memory database.
func NewBadgerStore(dir string, cellSizeKm float64) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return NewBadgerStoreFromDB(db, cellSizeKm)
}

// NewBadgerStoreFromDB wraps an already opened database.
func NewBadgerStoreFromDB(db *badger.DB, cellSizeKm float64) (*BadgerStore, error) {
	s := &BadgerStore{
		db:   db,
		grid: NewSpatialHashGrid(cellSizeKm),
		now:  time.Now,
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, fmt.Errorf("rebuild geo index: %w", err)
	}
	return s, nil
}

// Name implements PositionStore.
func (s *BadgerStore) Name() string { return "badger" }

func (s *BadgerStore) lockFor(vehicleID int64) *sync.Mutex {
	idx := vehicleID % badgerLockStripes
	if idx < 0 {
		idx = -idx
	}
	return &s.locks[idx]
}

// Upsert implements PositionStore. Badger stores expiry in whole Unix seconds;
// the deadline is rounded up so an entry never expires before ttl elapses,
// and may outlive it by less than a second.
func (s *BadgerStore) Upsert(ctx context.Context, vehicleID int64, snapshot models.CachedPosition, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cached position: %w", err)
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	mu := s.lockFor(vehicleID)
	mu.Lock()
	defer mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(PositionKey(vehicleID)), data)
		if ttl > 0 {
			e.ExpiresAt = expiresAtSeconds(expiresAt)
		}
		return txn.SetEntry(e)
	})
	metrics.RecordCacheOp(s.Name(), "upsert", err)
	if err != nil {
		return fmt.Errorf("write position: %w", err)
	}

	s.grid.Insert(vehicleID, snapshot.Latitude, snapshot.Longitude, expiresAt)
	metrics.CacheEntries.WithLabelValues(s.Name()).Set(float64(s.grid.Len()))
	return nil
}

// expiresAtSeconds converts a deadline to badger's expiry, rounding up.
func expiresAtSeconds(t time.Time) uint64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return uint64(sec)
}

// Get implements PositionStore.
func (s *BadgerStore) Get(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CachedPosition{}, false, err
	}

	pos, ok, err := s.read(vehicleID)
	if err != nil {
		metrics.RecordCacheOp(s.Name(), "get", err)
		return models.CachedPosition{}, false, err
	}
	metrics.RecordCacheLookup(s.Name(), ok)
	return pos, ok, nil
}

func (s *BadgerStore) read(vehicleID int64) (models.CachedPosition, bool, error) {
	var pos models.CachedPosition
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(PositionKey(vehicleID)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pos)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.CachedPosition{}, false, nil
	}
	if err != nil {
		return models.CachedPosition{}, false, fmt.Errorf("read position: %w", err)
	}
	return pos, true, nil
}

// QueryRadius implements PositionStore. Every grid hit is confirmed by a badger
// read; hits whose entry has expired are dropped from the grid.
func (s *BadgerStore) QueryRadius(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := s.grid.QueryNearby(lat, lng, radiusKm)
	results := make([]models.NearbyVehicle, 0, len(hits))
	for _, hit := range hits {
		pos, ok, err := s.read(hit.VehicleID)
		if err != nil {
			metrics.RecordCacheOp(s.Name(), "query", err)
			return nil, err
		}
		if !ok {
			s.dropStale(hit.VehicleID)
			continue
		}
		// The grid may lag a concurrent upsert; distance comes from the confirmed entry.
		d := haversineDistance(lat, lng, pos.Latitude, pos.Longitude)
		if d > radiusKm {
			continue
		}
		results = append(results, models.NearbyVehicle{
			VehicleID:      hit.VehicleID,
			DistanceKm:     d,
			LatestPosition: pos,
		})
	}

	metrics.RecordCacheOp(s.Name(), "query", nil)
	sortByDistance(results)
	return results, nil
}

// dropStale removes a grid entry whose badger entry is gone, re-checking under
// the vehicle lock so a concurrent upsert wins.
func (s *BadgerStore) dropStale(vehicleID int64) bool {
	mu := s.lockFor(vehicleID)
	mu.Lock()
	defer mu.Unlock()

	if _, ok, err := s.read(vehicleID); err != nil || ok {
		return false
	}
	if s.grid.Remove(vehicleID) {
		metrics.CacheSweptEntries.WithLabelValues(s.Name()).Inc()
		return true
	}
	return false
}

// Sweep implements PositionStore. Badger discards expired values during
// compaction; the sweep only has to clean the grid.
func (s *BadgerStore) Sweep(ctx context.Context) (int, error) {
	removed := 0
	for _, id := range s.grid.ExpiredBefore(s.now()) {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if s.dropStale(id) {
			removed++
		}
	}

	if !s.db.Opts().InMemory {
		if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			logging.Debug().Err(err).Msg("badger value log GC skipped")
		}
	}

	metrics.CacheEntries.WithLabelValues(s.Name()).Set(float64(s.grid.Len()))
	return removed, nil
}

// rebuildIndex loads live entries left by a previous process into the grid.
func (s *BadgerStore) rebuildIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(positionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id, ok := ParsePositionKey(string(item.Key()))
			if !ok {
				continue
			}

			var pos models.CachedPosition
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &pos)
			}); err != nil {
				logging.Warn().Err(err).Int64("vehicle_id", id).Msg("Skipping unreadable cached position")
				continue
			}

			var expiresAt time.Time
			if ts := item.ExpiresAt(); ts > 0 {
				expiresAt = time.Unix(int64(ts), 0)
			}
			s.grid.Insert(id, pos.Latitude, pos.Longitude, expiresAt)
		}
		return nil
	})
}

// Close implements PositionStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
