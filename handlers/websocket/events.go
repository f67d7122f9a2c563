package websocket

// Event names exchanged with clients. These are the wire contract shared with
// the editor frontend and must not be renamed.
const (
	// client -> server
	EventJoinDocument   = "join-document"
	EventDocumentChange = "document-change"

	// server -> client
	EventJoinedDocument  = "joined-document"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventDocumentUpdated = "document-updated"
	EventError           = "error"

	// both directions
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
)

type (
	UserJoinedPayload struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}

	UserLeftPayload struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}

	DocumentUpdatedPayload struct {
		Content   string `json:"content"`
		UserID    string `json:"userId"`
		Timestamp string `json:"timestamp"`
	}

	UserTypingPayload struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}

	UserStoppedTypingPayload struct {
		UserID string `json:"userId"`
	}
)
