package websocket

import (
	"collabdocs/core"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ChangeRelay fans an edit out to the rest of the room and persists it.
// The broadcast is synchronous and in-memory; the persistence write runs in
// its own goroutine so fan-out never blocks on storage. Writes from racing
// edits may complete out of order, in which case whichever lands last is what
// a later reload sees (last-write-wins, by contract).
type ChangeRelay struct {
	rooms *RoomRegistry
	store core.DocumentStore
}

// NewChangeRelay creates a relay that persists through the given store.
func NewChangeRelay(rooms *RoomRegistry, store core.DocumentStore) *ChangeRelay {
	return &ChangeRelay{rooms: rooms, store: store}
}

// OnChange broadcasts the new content to every other member of the document's
// room, then dispatches a fire-and-forget overwrite of the stored content.
// A persistence failure is logged and swallowed: the broadcast has already
// happened and is the source of truth for the live session.
func (c *ChangeRelay) OnChange(documentID, senderConnectionID, senderUserID, content string) {
	c.rooms.Broadcast(documentID, senderConnectionID, EventDocumentUpdated, DocumentUpdatedPayload{
		Content:   content,
		UserID:    senderUserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	go func() {
		if err := c.store.Overwrite(context.Background(), documentID, content); err != nil {
			logrus.WithFields(logrus.Fields{
				"document_id": documentID,
				"user_id":     senderUserID,
				"error":       err,
			}).Error("Failed to persist document change")
		}
	}()
}
