package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// connectionState is the per-connection bookkeeping: identity after a
// successful join, and the single room the connection belongs to.
type connectionState struct {
	identity Identity
	roomID   string
}

// CollabHub owns the connection lifecycle for the collaboration channel. A
// connection starts unauthenticated, becomes joined after a validated
// join-document, and is torn down unconditionally on disconnect so room
// membership and presence only ever reflect live connections.
type CollabHub struct {
	mu        sync.Mutex
	conns     map[string]*connectionState
	validator *SessionValidator
	rooms     *RoomRegistry
	presence  *PresenceTracker
	relay     *ChangeRelay
}

// NewCollabHub wires the hub's collaborators. The validator must be ready
// before any connection is accepted.
func NewCollabHub(validator *SessionValidator, rooms *RoomRegistry, presence *PresenceTracker, relay *ChangeRelay) *CollabHub {
	return &CollabHub{
		conns:     make(map[string]*connectionState),
		validator: validator,
		rooms:     rooms,
		presence:  presence,
		relay:     relay,
	}
}

// HandleJoin runs the join handshake for one connection: validate the session
// token, add the connection to the document's room, notify existing members,
// and confirm to the joiner. On error the connection is left unauthenticated
// and never touches the room.
func (h *CollabHub) HandleJoin(ctx context.Context, connectionID, token, documentID string, emitter Emitter) error {
	identity, err := h.validator.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidSession) {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"connection_id": connectionID,
			"document_id":   documentID,
			"error":         err,
		}).Error("Unexpected error during join")
		return ErrJoinFailed
	}

	// A connection belongs to at most one room; a second join moves it.
	h.teardown(connectionID)

	h.rooms.Join(documentID, connectionID, emitter)

	h.mu.Lock()
	h.conns[connectionID] = &connectionState{identity: identity, roomID: documentID}
	h.mu.Unlock()

	h.rooms.Broadcast(documentID, connectionID, EventUserJoined, UserJoinedPayload{
		UserID:   identity.UserID,
		UserName: identity.UserName,
	})

	if err := emitter.Emit(EventJoinedDocument, documentID); err != nil {
		logrus.WithField("connection_id", connectionID).WithError(err).Warn("Failed to confirm join")
	}

	logrus.WithFields(logrus.Fields{
		"connection_id": connectionID,
		"document_id":   documentID,
		"user_id":       identity.UserID,
	}).Info("Connection joined document")
	return nil
}

// HandleChange relays an edit through the change relay.
func (h *CollabHub) HandleChange(connectionID, documentID, userID, content string) {
	h.relay.OnChange(documentID, connectionID, userID, content)
}

// HandleStartTyping relays a typing-start signal.
func (h *CollabHub) HandleStartTyping(connectionID, documentID, userID, userName string) {
	h.presence.StartTyping(documentID, connectionID, userID, userName)
}

// HandleStopTyping relays a typing-stop signal.
func (h *CollabHub) HandleStopTyping(connectionID, documentID, userID string) {
	h.presence.StopTyping(documentID, connectionID, userID)
}

// HandleDisconnect tears down a departed connection: its typing flag is
// cleared, the room is told it left, and its membership is released. Safe to
// call for connections that never joined.
func (h *CollabHub) HandleDisconnect(connectionID string) {
	h.teardown(connectionID)
}

func (h *CollabHub) teardown(connectionID string) {
	h.mu.Lock()
	state, ok := h.conns[connectionID]
	delete(h.conns, connectionID)
	h.mu.Unlock()

	if !ok || state.roomID == "" {
		return
	}

	h.presence.ClearOnDisconnect(state.roomID, connectionID, state.identity.UserID)
	h.rooms.Broadcast(state.roomID, connectionID, EventUserLeft, UserLeftPayload{
		UserID:   state.identity.UserID,
		UserName: state.identity.UserName,
	})
	h.rooms.Leave(state.roomID, connectionID)

	logrus.WithFields(logrus.Fields{
		"connection_id": connectionID,
		"document_id":   state.roomID,
		"user_id":       state.identity.UserID,
	}).Info("Connection left document")
}

// handshakeToken pulls the session token out of the socket.io handshake. The
// credential travels once, at connection time, never per-message.
func handshakeToken(socket *socketio.Socket) string {
	handshake := socket.Handshake()
	if handshake == nil {
		return ""
	}
	if auth, ok := handshake.Auth.(map[string]any); ok {
		if token, ok := auth["token"].(string); ok {
			return token
		}
	}
	return ""
}

func stringField(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

func eventPayload(datas []any) map[string]any {
	if len(datas) == 0 {
		return nil
	}
	payload, _ := datas[0].(map[string]any)
	return payload
}

// SetupSocketIO builds the socket.io server and binds the hub's lifecycle to
// its events.
func SetupSocketIO(hub *CollabHub) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	io := socketio.NewServer(nil, opts)

	io.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		connectionID := string(socket.Id())
		token := handshakeToken(socket)
		logrus.WithField("connection_id", connectionID).Debug("Connection established")

		socket.On(EventJoinDocument, func(datas ...any) {
			documentID := ""
			if len(datas) > 0 {
				documentID, _ = datas[0].(string)
			}
			if documentID == "" {
				_ = socket.Emit(EventError, ErrJoinFailed.Error())
				return
			}

			if err := hub.HandleJoin(context.Background(), connectionID, token, documentID, socket); err != nil {
				_ = socket.Emit(EventError, err.Error())
			}
		})

		socket.On(EventDocumentChange, func(datas ...any) {
			payload := eventPayload(datas)
			if payload == nil {
				return
			}
			hub.HandleChange(connectionID,
				stringField(payload, "documentId"),
				stringField(payload, "userId"),
				stringField(payload, "content"))
		})

		socket.On(EventUserTyping, func(datas ...any) {
			payload := eventPayload(datas)
			if payload == nil {
				return
			}
			hub.HandleStartTyping(connectionID,
				stringField(payload, "documentId"),
				stringField(payload, "userId"),
				stringField(payload, "userName"))
		})

		socket.On(EventUserStoppedTyping, func(datas ...any) {
			payload := eventPayload(datas)
			if payload == nil {
				return
			}
			hub.HandleStopTyping(connectionID,
				stringField(payload, "documentId"),
				stringField(payload, "userId"))
		})

		socket.On("disconnecting", func(datas ...any) {
			hub.HandleDisconnect(connectionID)
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return io
}
