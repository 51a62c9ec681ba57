// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// maxFeedBytes bounds the response body read from the feed.
const maxFeedBytes = 32 << 20

// ErrDecode marks a feed body that is not a valid FeedMessage.
var ErrDecode = errors.New("decode feed")

// Observation is one vehicle position read from a feed.
type Observation struct {
	EntityID     string
	VehicleID    string
	LicensePlate string
	Latitude     float64
	Longitude    float64
	Speed        *float64 // km/h
	Heading      *float64 // degrees
	Timestamp    time.Time
}

// Source fetches the current observations.
type Source interface {
	Fetch(ctx context.Context) ([]Observation, error)
}

// GTFSRTSource reads a GTFS-Realtime VehiclePositions feed over HTTP.
type GTFSRTSource struct {
	url        string
	httpClient *http.Client
}

// NewGTFSRTSource fetches url with the given request timeout.
func NewGTFSRTSource(url string, timeout time.Duration) *GTFSRTSource {
	return &GTFSRTSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch implements Source.
func (s *GTFSRTSource) Fetch(ctx context.Context) ([]Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs-rt http status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	return DecodeFeed(body)
}

// DecodeFeed parses a serialized FeedMessage. Entities without a vehicle
// position or identity are skipped.
func DecodeFeed(body []byte) ([]Observation, error) {
	var feed gtfs.FeedMessage
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	headerTime := feed.GetHeader().GetTimestamp()
	observations := make([]Observation, 0, len(feed.GetEntity()))
	for _, ent := range feed.GetEntity() {
		vp := ent.GetVehicle()
		if vp == nil || vp.GetPosition() == nil || ent.GetIsDeleted() {
			continue
		}
		desc := vp.GetVehicle()
		if desc.GetId() == "" && desc.GetLicensePlate() == "" {
			continue
		}

		pos := vp.GetPosition()
		obs := Observation{
			EntityID:     ent.GetId(),
			VehicleID:    desc.GetId(),
			LicensePlate: desc.GetLicensePlate(),
			Latitude:     float64(pos.GetLatitude()),
			Longitude:    float64(pos.GetLongitude()),
		}
		if pos.Speed != nil {
			kmh := float64(pos.GetSpeed()) * 3.6 // m/s
			obs.Speed = &kmh
		}
		if pos.Bearing != nil {
			bearing := float64(pos.GetBearing())
			obs.Heading = &bearing
		}

		ts := vp.GetTimestamp()
		if ts == 0 {
			ts = headerTime
		}
		if ts > 0 {
			obs.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
		observations = append(observations, obs)
	}
	return observations, nil
}
