package core

import (
	"context"
	"time"
)

type (
	// Document is a user-owned text document. Content is an opaque blob as far
	// as the server is concerned; the collaboration channel overwrites it
	// wholesale (last-write-wins, no merge metadata).
	Document struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Title     string    `json:"title"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// DocumentStore defines the persistence layer for documents.
	// All operations except Overwrite are scoped to a specific user.
	DocumentStore interface {
		// List returns all documents owned by a user, most recently updated first.
		List(ctx context.Context, userID string) ([]*Document, error)

		// Create stores a new document and returns its generated ID.
		Create(ctx context.Context, document *Document) (string, error)

		// Get returns a single document by its ID, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Document, error)

		// Save updates an existing document, ensuring it belongs to the user.
		Save(ctx context.Context, document *Document) error

		// Overwrite replaces a document's content unconditionally. This is the
		// collaboration channel's write path: no ownership check, no version
		// check, whichever write lands last wins.
		Overwrite(ctx context.Context, id, content string) error
	}
)
