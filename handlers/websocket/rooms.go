package websocket

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Emitter delivers a single event to one connected client.
// *socketio.Socket satisfies it; tests use fakes.
type Emitter interface {
	Emit(event string, args ...any) error
}

// RoomRegistry maps a document ID to the set of connections currently editing
// it. It owns the member sets exclusively; handlers go through Join, Leave and
// Broadcast and never touch the maps directly.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Emitter
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[string]Emitter),
	}
}

// Join adds a connection to a document's room, creating the room lazily on
// first join. It returns the resulting member count.
func (r *RoomRegistry) Join(documentID, connectionID string, emitter Emitter) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[documentID]
	if !ok {
		room = make(map[string]Emitter)
		r.rooms[documentID] = room
	}
	room[connectionID] = emitter

	logrus.WithFields(logrus.Fields{
		"document_id":   documentID,
		"connection_id": connectionID,
		"members":       len(room),
	}).Debug("Connection joined room")
	return len(room)
}

// Leave removes a connection from a document's room. A room left empty is
// deleted so the registry does not accumulate entries for abandoned documents.
func (r *RoomRegistry) Leave(documentID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[documentID]
	if !ok {
		return
	}
	delete(room, connectionID)
	if len(room) == 0 {
		delete(r.rooms, documentID)
	}

	logrus.WithFields(logrus.Fields{
		"document_id":   documentID,
		"connection_id": connectionID,
		"members":       len(room),
	}).Debug("Connection left room")
}

// Broadcast delivers an event to every member of a document's room except the
// sender. A sender never receives an echo of its own event. Broadcasting to a
// room nobody has joined is a no-op, not an error.
func (r *RoomRegistry) Broadcast(documentID, senderConnectionID, event string, args ...any) {
	r.mu.RLock()
	recipients := make([]Emitter, 0, len(r.rooms[documentID]))
	for connectionID, emitter := range r.rooms[documentID] {
		if connectionID != senderConnectionID {
			recipients = append(recipients, emitter)
		}
	}
	r.mu.RUnlock()

	for _, emitter := range recipients {
		if err := emitter.Emit(event, args...); err != nil {
			logrus.WithFields(logrus.Fields{
				"document_id": documentID,
				"event":       event,
				"error":       err,
			}).Warn("Failed to deliver event to room member")
		}
	}
}

// Members returns the connection IDs currently in a document's room.
func (r *RoomRegistry) Members(documentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[documentID]))
	for connectionID := range r.rooms[documentID] {
		members = append(members, connectionID)
	}
	return members
}

// RoomCount returns the number of live rooms.
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
