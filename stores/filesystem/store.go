package filesystem

import (
	"collabdocs/core"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore persists documents, users and sessions as JSON files under a base
// path, one subdirectory per record type.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{"documents", "users", "sessions"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// recordPath joins a record ID into its type directory, rejecting IDs that
// would escape it.
func (s *fsStore) recordPath(kind, id string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid record id %q", id)
	}
	return filepath.Join(s.basePath, kind, id+".json"), nil
}

func (s *fsStore) readRecord(kind, id string, out any) error {
	path, err := s.recordPath(kind, id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *fsStore) writeRecord(kind, id string, record any) error {
	path, err := s.recordPath(kind, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DocumentStore implementation

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Document, error) {
	dir := filepath.Join(s.basePath, "documents")
	log := logrus.WithField("user_id", userID)

	files, err := os.ReadDir(dir)
	if err != nil {
		log.WithError(err).Error("Failed to read documents directory")
		return nil, err
	}

	documents := make([]*core.Document, 0)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read document file %s, skipping", file.Name())
			continue
		}
		var doc core.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal document file %s, skipping", file.Name())
			continue
		}
		if doc.UserID == userID {
			documents = append(documents, &doc)
		}
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].UpdatedAt.After(documents[j].UpdatedAt)
	})
	log.Debugf("Listed %d documents", len(documents))
	return documents, nil
}

func (s *fsStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	document.ID = id
	document.CreatedAt = now
	document.UpdatedAt = now

	if err := s.writeRecord("documents", id, document); err != nil {
		logrus.WithField("document_id", id).WithError(err).Error("Failed to create document")
		return "", err
	}
	return id, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Document, error) {
	var doc core.Document
	if err := s.readRecord("documents", id, &doc); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document with id %s not found for user %s", id, userID)
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("document with id %s not found for user %s", id, userID)
	}
	return &doc, nil
}

func (s *fsStore) Save(ctx context.Context, document *core.Document) error {
	existing, err := s.Get(ctx, document.UserID, document.ID)
	if err != nil {
		return err
	}
	document.CreatedAt = existing.CreatedAt
	document.UpdatedAt = time.Now()
	return s.writeRecord("documents", document.ID, document)
}

func (s *fsStore) Overwrite(ctx context.Context, id, content string) error {
	var doc core.Document
	if err := s.readRecord("documents", id, &doc); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("document with id %s not found", id)
		}
		return err
	}
	doc.Content = content
	doc.UpdatedAt = time.Now()
	return s.writeRecord("documents", id, &doc)
}

// UserStore implementation

type userRecord struct {
	core.User
	PasswordHash string `json:"passwordHash"`
}

func (s *fsStore) CreateUser(ctx context.Context, user *core.User) error {
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return fmt.Errorf("user with email %s already exists", user.Email)
	}

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	record := userRecord{User: *user, PasswordHash: user.PasswordHash}
	return s.writeRecord("users", user.ID, &record)
}

func (s *fsStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	var record userRecord
	if err := s.readRecord("users", id, &record); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("user with id %s not found", id)
		}
		return nil, err
	}
	user := record.User
	user.PasswordHash = record.PasswordHash
	return &user, nil
}

func (s *fsStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	dir := filepath.Join(s.basePath, "users")
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		var record userRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if record.Email == email {
			user := record.User
			user.PasswordHash = record.PasswordHash
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user with email %s not found", email)
}

// SessionStore implementation

func (s *fsStore) CreateSession(ctx context.Context, session *core.Session) error {
	return s.writeRecord("sessions", session.Token, session)
}

func (s *fsStore) LookupSession(ctx context.Context, token string) (*core.Session, error) {
	var session core.Session
	if err := s.readRecord("sessions", token, &session); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (s *fsStore) DeleteSession(ctx context.Context, token string) error {
	path, err := s.recordPath("sessions", token)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
