package websocket

import (
	"collabdocs/core"
	"collabdocs/stores/memory"
	"context"
	"errors"
	"testing"
	"time"
)

type testFixture struct {
	hub      *CollabHub
	registry *RoomRegistry
	presence *PresenceTracker
	store    interface {
		core.DocumentStore
		core.UserStore
		core.SessionStore
	}
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	store := memory.NewStore()
	registry := NewRoomRegistry()
	presence := NewPresenceTracker(registry)
	relay := NewChangeRelay(registry, store)
	validator := NewSessionValidator(store, store)
	return &testFixture{
		hub:      NewCollabHub(validator, registry, presence, relay),
		registry: registry,
		presence: presence,
		store:    store,
	}
}

func TestHandleJoin_MissingTokenRejected(t *testing.T) {
	f := newTestFixture(t)
	emitter := &fakeEmitter{}

	err := f.hub.HandleJoin(context.Background(), "conn-1", "", "doc-1", emitter)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if f.registry.RoomCount() != 0 {
		t.Errorf("Rejected join still created a room")
	}
	if emitter.count(EventJoinedDocument) != 0 {
		t.Errorf("Rejected join still confirmed")
	}
}

func TestHandleJoin_UnknownTokenRejected(t *testing.T) {
	f := newTestFixture(t)
	emitter := &fakeEmitter{}

	err := f.hub.HandleJoin(context.Background(), "conn-1", "bogus", "doc-1", emitter)
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Expected ErrInvalidSession, got %v", err)
	}
	if len(f.registry.Members("doc-1")) != 0 {
		t.Errorf("Rejected connection ended up in the room")
	}
}

func TestHandleJoin_ExpiredTokenRejected(t *testing.T) {
	f := newTestFixture(t)
	seedUserAndSession(t, f.store, "Alice", "stale", time.Now().Add(-time.Minute))
	emitter := &fakeEmitter{}

	err := f.hub.HandleJoin(context.Background(), "conn-1", "stale", "doc-1", emitter)
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Expected ErrInvalidSession, got %v", err)
	}
	if f.registry.RoomCount() != 0 {
		t.Errorf("Expired session still created a room")
	}
}

func TestHandleJoin_NotifiesExistingMembersOnly(t *testing.T) {
	f := newTestFixture(t)
	seedUserAndSession(t, f.store, "Alice", "alice-token", time.Now().Add(time.Hour))
	bob := seedUserAndSession(t, f.store, "Bob", "bob-token", time.Now().Add(time.Hour))

	aliceConn := &fakeEmitter{}
	bobConn := &fakeEmitter{}

	if err := f.hub.HandleJoin(context.Background(), "conn-alice", "alice-token", "doc-1", aliceConn); err != nil {
		t.Fatalf("Alice's join failed: %v", err)
	}
	if aliceConn.count(EventUserJoined) != 0 {
		t.Errorf("First joiner was notified about itself")
	}

	if err := f.hub.HandleJoin(context.Background(), "conn-bob", "bob-token", "doc-1", bobConn); err != nil {
		t.Fatalf("Bob's join failed: %v", err)
	}

	events := aliceConn.received(EventUserJoined)
	if len(events) != 1 {
		t.Fatalf("Existing member expected 1 user-joined, got %d", len(events))
	}
	payload := events[0].args[0].(UserJoinedPayload)
	if payload.UserID != bob.ID || payload.UserName != "Bob" {
		t.Errorf("Unexpected user-joined payload: %+v", payload)
	}
	if bobConn.count(EventUserJoined) != 0 {
		t.Errorf("Joiner received its own join notification")
	}
}

func TestHandleJoin_SecondJoinMovesConnection(t *testing.T) {
	f := newTestFixture(t)
	seedUserAndSession(t, f.store, "Alice", "alice-token", time.Now().Add(time.Hour))
	conn := &fakeEmitter{}

	ctx := context.Background()
	if err := f.hub.HandleJoin(ctx, "conn-1", "alice-token", "doc-1", conn); err != nil {
		t.Fatalf("First join failed: %v", err)
	}
	if err := f.hub.HandleJoin(ctx, "conn-1", "alice-token", "doc-2", conn); err != nil {
		t.Fatalf("Second join failed: %v", err)
	}

	if len(f.registry.Members("doc-1")) != 0 {
		t.Errorf("Connection left behind in previous room")
	}
	if len(f.registry.Members("doc-2")) != 1 {
		t.Errorf("Connection not in new room")
	}
}

func TestHandleDisconnect_CleansUpMembershipAndPresence(t *testing.T) {
	f := newTestFixture(t)
	seedUserAndSession(t, f.store, "Alice", "alice-token", time.Now().Add(time.Hour))
	bob := seedUserAndSession(t, f.store, "Bob", "bob-token", time.Now().Add(time.Hour))

	aliceConn := &fakeEmitter{}
	bobConn := &fakeEmitter{}
	ctx := context.Background()
	if err := f.hub.HandleJoin(ctx, "conn-alice", "alice-token", "doc-1", aliceConn); err != nil {
		t.Fatalf("Alice's join failed: %v", err)
	}
	if err := f.hub.HandleJoin(ctx, "conn-bob", "bob-token", "doc-1", bobConn); err != nil {
		t.Fatalf("Bob's join failed: %v", err)
	}

	// Bob drops mid-keystroke, never sending an explicit stop.
	f.hub.HandleStartTyping("conn-bob", "doc-1", bob.ID, "Bob")
	f.hub.HandleDisconnect("conn-bob")

	stops := aliceConn.received(EventUserStoppedTyping)
	if len(stops) != 1 {
		t.Fatalf("Expected 1 user-stopped-typing after disconnect, got %d", len(stops))
	}
	if payload := stops[0].args[0].(UserStoppedTypingPayload); payload.UserID != bob.ID {
		t.Errorf("Stop event keyed by %q, want %q", payload.UserID, bob.ID)
	}

	lefts := aliceConn.received(EventUserLeft)
	if len(lefts) != 1 {
		t.Fatalf("Expected 1 user-left after disconnect, got %d", len(lefts))
	}
	if payload := lefts[0].args[0].(UserLeftPayload); payload.UserName != "Bob" {
		t.Errorf("Unexpected user-left payload: %+v", payload)
	}

	members := f.registry.Members("doc-1")
	if len(members) != 1 || members[0] != "conn-alice" {
		t.Errorf("Room membership after disconnect: %v", members)
	}

	// Departed connection neither receives nor is counted anymore.
	before := bobConn.count(EventDocumentUpdated)
	f.hub.HandleChange("conn-alice", "doc-1", "alice", "after-disconnect")
	if bobConn.count(EventDocumentUpdated) != before {
		t.Errorf("Disconnected connection still receives broadcasts")
	}
}

func TestHandleDisconnect_NeverJoinedIsNoOp(t *testing.T) {
	f := newTestFixture(t)
	f.hub.HandleDisconnect("conn-stranger")

	if f.registry.RoomCount() != 0 {
		t.Errorf("Disconnect of unjoined connection touched the registry")
	}
}

func TestCollabScenario_TwoClients(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	alice := seedUserAndSession(t, f.store, "Alice", "alice-token", time.Now().Add(time.Hour))
	bob := seedUserAndSession(t, f.store, "Bob", "bob-token", time.Now().Add(time.Hour))

	docID, err := f.store.Create(ctx, &core.Document{UserID: alice.ID, Title: "doc-42"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	aliceConn := &fakeEmitter{}
	bobConn := &fakeEmitter{}

	// Alice joins with a valid token and gets the confirmation.
	if err := f.hub.HandleJoin(ctx, "conn-alice", "alice-token", docID, aliceConn); err != nil {
		t.Fatalf("Alice's join failed: %v", err)
	}
	joined := aliceConn.received(EventJoinedDocument)
	if len(joined) != 1 {
		t.Fatalf("Expected 1 joined-document, got %d", len(joined))
	}
	if got := joined[0].args[0].(string); got != docID {
		t.Errorf("joined-document carried %q, want %q", got, docID)
	}

	// Bob joins the same room; Alice hears about it.
	if err := f.hub.HandleJoin(ctx, "conn-bob", "bob-token", docID, bobConn); err != nil {
		t.Fatalf("Bob's join failed: %v", err)
	}
	userJoined := aliceConn.received(EventUserJoined)
	if len(userJoined) != 1 {
		t.Fatalf("Expected 1 user-joined, got %d", len(userJoined))
	}
	if payload := userJoined[0].args[0].(UserJoinedPayload); payload.UserName != "Bob" {
		t.Errorf("user-joined userName %q, want Bob", payload.UserName)
	}

	// Bob edits; Alice sees the update, Bob gets no echo.
	f.hub.HandleChange("conn-bob", docID, bob.ID, "Hello")

	updates := aliceConn.received(EventDocumentUpdated)
	if len(updates) != 1 {
		t.Fatalf("Expected 1 document-updated, got %d", len(updates))
	}
	payload := updates[0].args[0].(DocumentUpdatedPayload)
	if payload.Content != "Hello" || payload.UserID != bob.ID {
		t.Errorf("Unexpected document-updated payload: %+v", payload)
	}
	if bobConn.count(EventDocumentUpdated) != 0 {
		t.Errorf("Sender received echo of its own change")
	}

	// The fire-and-forget write eventually lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		doc, err := f.store.Get(ctx, alice.ID, docID)
		if err == nil && doc.Content == "Hello" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Persisted content never became %q", "Hello")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
