// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"math"
	"sync"
	"time"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.32

	defaultCellSizeKm = 1.0
)

// SpatialHashGrid divides geographic space into square cells of equal size in
// degrees so that radius queries only visit cells that can contain a hit.
//
// Time Complexity:
//   - Insert: O(1)
//   - Remove: O(1) amortized (swap-remove inside the cell)
//   - QueryNearby: O(k) where k = entries in the visited cells
type SpatialHashGrid struct {
	mu       sync.RWMutex
	cells    map[CellKey]*Cell
	cellSize float64 // degrees
	columns  int     // cells around a full circle of longitude
	entries  map[int64]*SpatialEntry
}

// CellKey represents a grid cell coordinate.
type CellKey struct {
	X, Y int
}

// Cell contains all entries in a grid cell.
type Cell struct {
	entries []*SpatialEntry
}

// SpatialEntry is one vehicle in the grid.
type SpatialEntry struct {
	VehicleID int64
	Lat       float64
	Lon       float64
	ExpiresAt time.Time
	cellKey   CellKey
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *SpatialEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// SpatialHit is a query result with its great-circle distance.
type SpatialHit struct {
	SpatialEntry
	DistanceKm float64
}

// NewSpatialHashGrid creates a grid with cells of roughly cellSizeKm at the equator.
// Cells should be close to the typical query radius.
func NewSpatialHashGrid(cellSizeKm float64) *SpatialHashGrid {
	if cellSizeKm <= 0 {
		cellSizeKm = defaultCellSizeKm
	}
	cellSizeDeg := cellSizeKm / kmPerDegree

	return &SpatialHashGrid{
		cells:    make(map[CellKey]*Cell),
		cellSize: cellSizeDeg,
		columns:  int(math.Ceil(360 / cellSizeDeg)),
		entries:  make(map[int64]*SpatialEntry),
	}
}

// getCellKey returns the cell key for a lat/lon coordinate.
func (g *SpatialHashGrid) getCellKey(lat, lon float64) CellKey {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}

	x := int(math.Floor((lon + 180) / g.cellSize))
	y := int(math.Floor(lat / g.cellSize))
	return CellKey{X: x % g.columns, Y: y}
}

// Insert adds or moves a vehicle.
func (g *SpatialHashGrid) Insert(vehicleID int64, lat, lon float64, expiresAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[vehicleID]; ok {
		g.removeFromCellUnlocked(existing)
	}

	cellKey := g.getCellKey(lat, lon)
	entry := &SpatialEntry{
		VehicleID: vehicleID,
		Lat:       lat,
		Lon:       lon,
		ExpiresAt: expiresAt,
		cellKey:   cellKey,
	}

	cell, exists := g.cells[cellKey]
	if !exists {
		cell = &Cell{entries: make([]*SpatialEntry, 0, 4)}
		g.cells[cellKey] = cell
	}
	cell.entries = append(cell.entries, entry)
	g.entries[vehicleID] = entry
}

// Remove removes a vehicle. It reports whether the vehicle was present.
func (g *SpatialHashGrid) Remove(vehicleID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.entries[vehicleID]
	if !exists {
		return false
	}
	g.removeFromCellUnlocked(entry)
	delete(g.entries, vehicleID)
	return true
}

// RemoveIfExpired removes a vehicle only if its entry has expired at now.
// A concurrent re-insert with a fresh TTL is left alone.
func (g *SpatialHashGrid) RemoveIfExpired(vehicleID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.entries[vehicleID]
	if !exists || !entry.Expired(now) {
		return false
	}
	g.removeFromCellUnlocked(entry)
	delete(g.entries, vehicleID)
	return true
}

// removeFromCellUnlocked removes an entry from its cell (caller must hold lock).
func (g *SpatialHashGrid) removeFromCellUnlocked(entry *SpatialEntry) {
	cell, exists := g.cells[entry.cellKey]
	if !exists {
		return
	}

	for i, e := range cell.entries {
		if e.VehicleID == entry.VehicleID {
			last := len(cell.entries) - 1
			cell.entries[i] = cell.entries[last]
			cell.entries[last] = nil
			cell.entries = cell.entries[:last]
			break
		}
	}

	if len(cell.entries) == 0 {
		delete(g.cells, entry.cellKey)
	}
}

// Get returns a copy of a vehicle's entry.
func (g *SpatialHashGrid) Get(vehicleID int64) (SpatialEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, exists := g.entries[vehicleID]
	if !exists {
		return SpatialEntry{}, false
	}
	return *entry, true
}

// QueryNearby returns every entry within radiusKm of (lat, lon), expired or not.
// Liveness is the caller's decision.
func (g *SpatialHashGrid) QueryNearby(lat, lon, radiusKm float64) []SpatialHit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if radiusKm < 0 || len(g.entries) == 0 {
		return nil
	}

	var hits []SpatialHit
	check := func(e *SpatialEntry) {
		d := haversineDistance(lat, lon, e.Lat, e.Lon)
		if d <= radiusKm {
			hits = append(hits, SpatialHit{SpatialEntry: *e, DistanceKm: d})
		}
	}

	rows := int(math.Ceil(radiusKm/kmPerDegree/g.cellSize)) + 1
	cols := g.columnSpan(lat, radiusKm, rows)

	// Wide queries touch more cells than there are entries.
	if (2*rows+1)*(2*cols+1) >= len(g.entries) || 2*cols+1 >= g.columns {
		for _, e := range g.entries {
			check(e)
		}
		return hits
	}

	center := g.getCellKey(lat, lon)
	for dy := -rows; dy <= rows; dy++ {
		for dx := -cols; dx <= cols; dx++ {
			x := ((center.X+dx)%g.columns + g.columns) % g.columns
			cell, ok := g.cells[CellKey{X: x, Y: center.Y + dy}]
			if !ok {
				continue
			}
			for _, e := range cell.entries {
				check(e)
			}
		}
	}
	return hits
}

// columnSpan returns how many cells east and west a query must visit. A degree
// of longitude shrinks with cos(lat), using the highest latitude the query reaches.
func (g *SpatialHashGrid) columnSpan(lat, radiusKm float64, rows int) int {
	edge := math.Abs(lat) + float64(rows)*g.cellSize
	if edge >= 89.9 {
		return g.columns
	}
	kmPerLonDegree := kmPerDegree * math.Cos(edge*math.Pi/180)
	return int(math.Ceil(radiusKm/kmPerLonDegree/g.cellSize)) + 1
}

// ExpiredBefore returns the ids of entries expired at now.
func (g *SpatialHashGrid) ExpiredBefore(now time.Time) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []int64
	for id, e := range g.entries {
		if e.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of entries in the grid.
func (g *SpatialHashGrid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Clear removes all entries.
func (g *SpatialHashGrid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[CellKey]*Cell)
	g.entries = make(map[int64]*SpatialEntry)
}

// haversineDistance returns the great-circle distance in km between two points.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// HaversineKm is the exported great-circle distance helper.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineDistance(lat1, lon1, lat2, lon2)
}
