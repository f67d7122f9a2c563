package memory

import (
	"collabdocs/core"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements DocumentStore, UserStore and SessionStore for in-memory
// storage. It is the default backend and the one the tests run against.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
	users     map[string]*core.User
	sessions  map[string]*core.Session
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		documents: make(map[string]*core.Document),
		users:     make(map[string]*core.User),
		sessions:  make(map[string]*core.Session),
	}
}

// DocumentStore implementation

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	documents := make([]*core.Document, 0)
	for _, doc := range s.documents {
		if doc.UserID == userID {
			copied := *doc
			documents = append(documents, &copied)
		}
	}
	sort.Slice(documents, func(i, j int) bool {
		return documents[i].UpdatedAt.After(documents[j].UpdatedAt)
	})

	logrus.WithField("user_id", userID).Debugf("Listed %d documents", len(documents))
	return documents, nil
}

func (s *memStore) Create(ctx context.Context, document *core.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if document.UserID == "" {
		return "", fmt.Errorf("document UserID cannot be empty")
	}

	id := ulid.Make().String()
	now := time.Now()
	document.ID = id
	document.CreatedAt = now
	document.UpdatedAt = now

	copied := *document
	s.documents[id] = &copied

	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"user_id":     document.UserID,
	}).Info("Document created successfully")
	return id, nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok || doc.UserID != userID {
		return nil, fmt.Errorf("document with id %s not found for user %s", id, userID)
	}

	copied := *doc
	return &copied, nil
}

func (s *memStore) Save(ctx context.Context, document *core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.documents[document.ID]
	if !ok || existing.UserID != document.UserID {
		return fmt.Errorf("document with id %s not found for user %s", document.ID, document.UserID)
	}

	document.CreatedAt = existing.CreatedAt
	document.UpdatedAt = time.Now()
	copied := *document
	s.documents[document.ID] = &copied
	return nil
}

func (s *memStore) Overwrite(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("document with id %s not found", id)
	}

	doc.Content = content
	doc.UpdatedAt = time.Now()
	return nil
}

// UserStore implementation

func (s *memStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("user with email %s already exists", user.Email)
		}
	}

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	copied := *user
	s.users[user.ID] = &copied

	logrus.WithField("user_id", user.ID).Info("User created successfully")
	return nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s not found", id)
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user with email %s not found", email)
}

// SessionStore implementation

func (s *memStore) CreateSession(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Token == "" {
		return fmt.Errorf("session token cannot be empty")
	}

	copied := *session
	s.sessions[session.Token] = &copied
	return nil
}

func (s *memStore) LookupSession(ctx context.Context, token string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	copied := *session
	return &copied, nil
}

func (s *memStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}
