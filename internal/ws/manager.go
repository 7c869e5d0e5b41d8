package ws

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ConnectionManager is the process-wide directory of lobby rooms and the
// single entry point external callers use. One instance is constructed at
// startup and injected into the transport layer; it lives for the process
// lifetime and has no teardown. Rooms are created lazily and never reclaimed
// (lobby rooms are long-lived and bounded by lobby count).
type ConnectionManager struct {
	log *zerolog.Logger

	mu    sync.RWMutex
	rooms map[int64]*Room
}

// NewConnectionManager builds an empty registry.
func NewConnectionManager(logger *zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		log:   logger,
		rooms: make(map[int64]*Room),
	}
}

// GetRoom looks a room up by id. With strict set, a miss fails with
// ErrRoomNotFound instead of returning nil.
func (m *ConnectionManager) GetRoom(roomID int64, strict bool) (*Room, error) {
	m.mu.RLock()
	room := m.rooms[roomID]
	m.mu.RUnlock()

	if room == nil && strict {
		return nil, fmt.Errorf("%w: room %d", ErrRoomNotFound, roomID)
	}
	return room, nil
}

// GetOrCreateRoom returns the room for roomID, creating it on first
// reference. Creation is serialized under the registry mutex so concurrent
// calls for the same id observe a single Room instance.
func (m *ConnectionManager) GetOrCreateRoom(roomID int64) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[roomID]; ok {
		return room
	}

	room := NewRoom(roomID, *m.log)
	m.rooms[roomID] = room
	m.log.Debug().Int64("room_id", roomID).Msg("room created")
	return room
}

// CreateConnection resolves the room for roomID, creating it if needed, and
// registers a connection in it under the room's duplicate-session policy.
func (m *ConnectionManager) CreateConnection(roomID, connectionID int64, transport Transport, disconnectExisting bool) (*Connection, error) {
	room := m.GetOrCreateRoom(roomID)
	return room.CreateConnection(connectionID, transport, disconnectExisting)
}

// Stats is a snapshot of registry occupancy.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Stats counts rooms and live connections across the registry.
func (m *ConnectionManager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Rooms: len(m.rooms)}
	for _, room := range m.rooms {
		stats.Connections += room.Len()
	}
	return stats
}
