package aws

import (
	"bytes"
	"collabdocs/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

// s3Store keeps documents, users and sessions as JSON objects under per-type
// key prefixes.
type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func recordKey(kind, id string) (string, error) {
	// IDs are object names, not paths.
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return "", fmt.Errorf("invalid record id %q", id)
	}
	return path.Join(kind, id+".json"), nil
}

func (s *s3Store) getJSON(ctx context.Context, key string, out any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %v", key, err)
	}
	return json.Unmarshal(data, out)
}

func (s *s3Store) putJSON(ctx context.Context, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %v", err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

// DocumentStore implementation

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Document, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String("documents/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %v", err)
	}

	documents := make([]*core.Document, 0, len(output.Contents))
	for _, object := range output.Contents {
		var doc core.Document
		if err := s.getJSON(ctx, *object.Key, &doc); err != nil {
			log.Printf("warn: failed to read object %s: %v", *object.Key, err)
			continue
		}
		if doc.UserID == userID {
			documents = append(documents, &doc)
		}
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].UpdatedAt.After(documents[j].UpdatedAt)
	})
	return documents, nil
}

func (s *s3Store) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	document.ID = id
	document.CreatedAt = now
	document.UpdatedAt = now

	key, err := recordKey("documents", id)
	if err != nil {
		return "", err
	}
	if err := s.putJSON(ctx, key, document); err != nil {
		return "", fmt.Errorf("failed to upload document: %v", err)
	}
	return id, nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Document, error) {
	key, err := recordKey("documents", id)
	if err != nil {
		return nil, err
	}
	var doc core.Document
	if err := s.getJSON(ctx, key, &doc); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("document with id %s not found for user %s", id, userID)
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("document with id %s not found for user %s", id, userID)
	}
	return &doc, nil
}

func (s *s3Store) Save(ctx context.Context, document *core.Document) error {
	existing, err := s.Get(ctx, document.UserID, document.ID)
	if err != nil {
		return err
	}
	document.CreatedAt = existing.CreatedAt
	document.UpdatedAt = time.Now()

	key, err := recordKey("documents", document.ID)
	if err != nil {
		return err
	}
	return s.putJSON(ctx, key, document)
}

func (s *s3Store) Overwrite(ctx context.Context, id, content string) error {
	key, err := recordKey("documents", id)
	if err != nil {
		return err
	}
	var doc core.Document
	if err := s.getJSON(ctx, key, &doc); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("document with id %s not found", id)
		}
		return err
	}
	doc.Content = content
	doc.UpdatedAt = time.Now()
	return s.putJSON(ctx, key, &doc)
}

// UserStore implementation

type userRecord struct {
	core.User
	PasswordHash string `json:"passwordHash"`
}

func (s *s3Store) CreateUser(ctx context.Context, user *core.User) error {
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return fmt.Errorf("user with email %s already exists", user.Email)
	}

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	key, err := recordKey("users", user.ID)
	if err != nil {
		return err
	}
	return s.putJSON(ctx, key, &userRecord{User: *user, PasswordHash: user.PasswordHash})
}

func (s *s3Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	key, err := recordKey("users", id)
	if err != nil {
		return nil, err
	}
	var record userRecord
	if err := s.getJSON(ctx, key, &record); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("user with id %s not found", id)
		}
		return nil, err
	}
	user := record.User
	user.PasswordHash = record.PasswordHash
	return &user, nil
}

func (s *s3Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String("users/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}

	for _, object := range output.Contents {
		var record userRecord
		if err := s.getJSON(ctx, *object.Key, &record); err != nil {
			log.Printf("warn: failed to read object %s: %v", *object.Key, err)
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

func (s *s3Store) CreateSession(ctx context.Context, session *core.Session) error {
	key, err := recordKey("sessions", session.Token)
	if err != nil {
		return err
	}
	return s.putJSON(ctx, key, session)
}

func (s *s3Store) LookupSession(ctx context.Context, token string) (*core.Session, error) {
	key, err := recordKey("sessions", token)
	if err != nil {
		return nil, err
	}
	var session core.Session
	if err := s.getJSON(ctx, key, &session); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (s *s3Store) DeleteSession(ctx context.Context, token string) error {
	key, err := recordKey("sessions", token)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %v", err)
	}
	return nil
}
