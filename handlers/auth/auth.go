package auth

import (
	"collabdocs/core"
	"collabdocs/middleware"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Sessions live for a week; the expiry is checked on lookup, and exactly once
// per real-time connection at join time.
const sessionTTL = 7 * 24 * time.Hour

type (
	signupRequest struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	userResponse struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
)

// Stores is the slice of the store surface the auth handlers need.
type Stores interface {
	core.UserStore
	core.SessionStore
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleSignup creates an account and opens a session for it.
func HandleSignup(store Stores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		if req.Email == "" || req.Name == "" || req.Password == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Email, name and password are required"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			logrus.WithError(err).Error("Failed to hash password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		user := &core.User{
			Email:        req.Email,
			Name:         req.Name,
			PasswordHash: string(hash),
		}
		if err := store.CreateUser(r.Context(), user); err != nil {
			logrus.WithFields(logrus.Fields{"email": req.Email, "error": err}).Warn("Failed to create user")
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]string{"error": "User already exists"})
			return
		}

		if err := openSession(w, r, store, user); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"success": true,
			"user":    userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
		})
	}
}

// HandleLogin verifies credentials and opens a session.
func HandleLogin(store Stores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		user, err := store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid credentials"})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid credentials"})
			return
		}

		if err := openSession(w, r, store, user); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		render.JSON(w, r, map[string]any{
			"success": true,
			"user":    userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
		})
	}
}

// HandleLogout deletes the request's session.
func HandleLogout(store Stores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.SessionToken(r)
		if token == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "No session found"})
			return
		}

		if err := store.DeleteSession(r.Context(), token); err != nil {
			logrus.WithError(err).Error("Failed to delete session")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		setSessionCookie(w, "", time.Unix(0, 0))
		render.JSON(w, r, map[string]any{"success": true})
	}
}

// HandleMe reports the user behind the request's session.
func HandleMe(store Stores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.SessionToken(r)
		if token == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "No session found"})
			return
		}

		session, err := store.LookupSession(r.Context(), token)
		if err != nil || session.ExpiresAt.Before(time.Now()) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid or expired session"})
			return
		}

		user, err := store.GetUser(r.Context(), session.UserID)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid or expired session"})
			return
		}

		render.JSON(w, r, map[string]any{
			"success": true,
			"user":    userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
		})
	}
}

func openSession(w http.ResponseWriter, r *http.Request, store Stores, user *core.User) error {
	token, err := newSessionToken()
	if err != nil {
		logrus.WithError(err).Error("Failed to generate session token")
		return err
	}

	expiresAt := time.Now().Add(sessionTTL)
	session := &core.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	if err := store.CreateSession(r.Context(), session); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("Failed to create session")
		return err
	}

	setSessionCookie(w, token, expiresAt)
	return nil
}
