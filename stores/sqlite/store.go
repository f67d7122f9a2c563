package sqlite

import (
	"collabdocs/core"
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			created_at DATETIME,
			updated_at DATETIME
		);`,
	}
	for _, stmt := range stmts {
		if _, err = db.Exec(stmt); err != nil {
			log.Fatalf("failed to initialize sqlite schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

// DocumentStore implementation

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content, created_at, updated_at FROM documents WHERE user_id = ? ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := make([]*core.Document, 0)
	for rows.Next() {
		var doc core.Document
		doc.UserID = userID
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		documents = append(documents, &doc)
	}
	return documents, rows.Err()
}

func (s *sqliteStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	document.ID = id
	document.CreatedAt = now
	document.UpdatedAt = now

	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"user_id":     document.UserID,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, user_id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, document.UserID, document.Title, document.Content, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Document, error) {
	var doc core.Document
	doc.ID = id
	doc.UserID = userID
	err := s.db.QueryRowContext(ctx,
		"SELECT title, content, created_at, updated_at FROM documents WHERE user_id = ? AND id = ?", userID, id).
		Scan(&doc.Title, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document with id %s not found for user %s", id, userID)
		}
		return nil, err
	}
	return &doc, nil
}

func (s *sqliteStore) Save(ctx context.Context, document *core.Document) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET title = ?, content = ?, updated_at = ? WHERE user_id = ? AND id = ?",
		document.Title, document.Content, now, document.UserID, document.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document with id %s not found for user %s", document.ID, document.UserID)
	}
	document.UpdatedAt = now
	return nil
}

func (s *sqliteStore) Overwrite(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET content = ?, updated_at = ? WHERE id = ?", content, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document with id %s not found", id)
	}
	return nil
}

// UserStore implementation

func (s *sqliteStore) CreateUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Name, user.PasswordHash, now, now)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("Failed to create user")
		return err
	}
	return nil
}

func (s *sqliteStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	var user core.User
	user.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT email, name, password_hash, created_at, updated_at FROM users WHERE id = ?", id).
		Scan(&user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user with id %s not found", id)
		}
		return nil, err
	}
	return &user, nil
}

func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	var user core.User
	user.Email = email
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, password_hash, created_at, updated_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user with email %s not found", email)
		}
		return nil, err
	}
	return &user, nil
}

// SessionStore implementation

func (s *sqliteStore) CreateSession(ctx context.Context, session *core.Session) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		session.Token, session.UserID, session.ExpiresAt)
	return err
}

func (s *sqliteStore) LookupSession(ctx context.Context, token string) (*core.Session, error) {
	var session core.Session
	session.Token = token
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token = ?", token).
		Scan(&session.UserID, &session.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (s *sqliteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}
