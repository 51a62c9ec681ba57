// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"time"

	"github.com/goccy/go-json"
)

// Message types for WebSocket communication
const (
	MessageTypePositionUpdate = "position_update"
	MessageTypePositionAck    = "position_ack"
	MessageTypeCommand        = "command"
	MessageTypePosition       = "position"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeError          = "error"
)

// TargetVehicleField is the data field naming the addressee of a directed message.
const TargetVehicleField = "target_vehicle"

// Message is an outbound event. It is never persisted.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage creates a message stamped with the current UTC time.
func NewMessage(msgType string, data map[string]interface{}) Message {
	return Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()}
}

// withData returns a copy of m whose data map can be modified freely.
func (m Message) withData() Message {
	data := make(map[string]interface{}, len(m.Data)+1)
	for k, v := range m.Data {
		data[k] = v
	}
	m.Data = data
	return m
}

// InboundMessage is a message received from a peer. Data is decoded by
// whoever handles the type.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
