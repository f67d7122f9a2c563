package websocket

import "sync"

// PresenceTracker relays typing signals to a document's room and remembers
// which users currently have a typing flag raised. Clients rebuild their own
// "who is typing" view from the relayed events; the server-side flags exist so
// disconnect teardown can clear a flag the client never withdrew.
type PresenceTracker struct {
	mu     sync.Mutex
	typing map[string]map[string]bool
	rooms  *RoomRegistry
}

// NewPresenceTracker creates a tracker that fans out through the given registry.
func NewPresenceTracker(rooms *RoomRegistry) *PresenceTracker {
	return &PresenceTracker{
		typing: make(map[string]map[string]bool),
		rooms:  rooms,
	}
}

// StartTyping raises the user's typing flag and tells the rest of the room.
// Repeated starts from the same user are relayed as-is, not deduplicated.
func (p *PresenceTracker) StartTyping(documentID, senderConnectionID, userID, userName string) {
	p.mu.Lock()
	flags, ok := p.typing[documentID]
	if !ok {
		flags = make(map[string]bool)
		p.typing[documentID] = flags
	}
	flags[userID] = true
	p.mu.Unlock()

	p.rooms.Broadcast(documentID, senderConnectionID, EventUserTyping, UserTypingPayload{
		UserID:   userID,
		UserName: userName,
	})
}

// StopTyping clears the user's typing flag and tells the rest of the room,
// keyed strictly by userID so each client can drop exactly that entry from its
// local typing set.
func (p *PresenceTracker) StopTyping(documentID, senderConnectionID, userID string) {
	p.clearFlag(documentID, userID)
	p.rooms.Broadcast(documentID, senderConnectionID, EventUserStoppedTyping, UserStoppedTypingPayload{
		UserID: userID,
	})
}

// ClearOnDisconnect clears the user's typing flag if it was raised, notifying
// the room as if an explicit stop had arrived. Called from connection
// teardown so a mid-keystroke disconnect does not leave the room believing
// the user is still typing.
func (p *PresenceTracker) ClearOnDisconnect(documentID, senderConnectionID, userID string) {
	if !p.clearFlag(documentID, userID) {
		return
	}
	p.rooms.Broadcast(documentID, senderConnectionID, EventUserStoppedTyping, UserStoppedTypingPayload{
		UserID: userID,
	})
}

// Typing returns the users whose flag is raised for a document.
func (p *PresenceTracker) Typing(documentID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := make([]string, 0, len(p.typing[documentID]))
	for userID := range p.typing[documentID] {
		users = append(users, userID)
	}
	return users
}

func (p *PresenceTracker) clearFlag(documentID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	flags, ok := p.typing[documentID]
	if !ok {
		return false
	}
	raised := flags[userID]
	delete(flags, userID)
	if len(flags) == 0 {
		delete(p.typing, documentID)
	}
	return raised
}
