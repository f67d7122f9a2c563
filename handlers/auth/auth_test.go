package auth

import (
	"bytes"
	"collabdocs/stores/memory"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postJSON(t *testing.T, handler http.HandlerFunc, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSignup_CreatesUserAndSession(t *testing.T) {
	store := memory.NewStore()

	w := postJSON(t, HandleSignup(store), map[string]string{
		"email":    "alice@example.com",
		"name":     "Alice",
		"password": "secret",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Signup returned status %d: %s", w.Code, w.Body.String())
	}

	cookie := sessionCookie(t, w)
	if cookie.Value == "" {
		t.Error("Session cookie has no value")
	}
	if !cookie.HttpOnly {
		t.Error("Session cookie is not HttpOnly")
	}

	var resp struct {
		Success bool `json:"success"`
		User    struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.User.Email != "alice@example.com" || resp.User.Name != "Alice" {
		t.Errorf("Unexpected response: %s", w.Body.String())
	}
}

func TestSignup_RejectsMissingFields(t *testing.T) {
	store := memory.NewStore()

	w := postJSON(t, HandleSignup(store), map[string]string{"email": "alice@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing fields, got %d", w.Code)
	}
}

func TestSignup_RejectsDuplicateEmail(t *testing.T) {
	store := memory.NewStore()
	body := map[string]string{"email": "alice@example.com", "name": "Alice", "password": "secret"}

	if w := postJSON(t, HandleSignup(store), body); w.Code != http.StatusCreated {
		t.Fatalf("First signup failed with status %d", w.Code)
	}
	if w := postJSON(t, HandleSignup(store), body); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate email, got %d", w.Code)
	}
}

func TestLogin_WithValidCredentials(t *testing.T) {
	store := memory.NewStore()
	postJSON(t, HandleSignup(store), map[string]string{
		"email": "alice@example.com", "name": "Alice", "password": "secret",
	})

	w := postJSON(t, HandleLogin(store), map[string]string{
		"email": "alice@example.com", "password": "secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Login returned status %d: %s", w.Code, w.Body.String())
	}
	if sessionCookie(t, w).Value == "" {
		t.Error("Login did not set a session cookie")
	}
}

func TestLogin_WithWrongPassword(t *testing.T) {
	store := memory.NewStore()
	postJSON(t, HandleSignup(store), map[string]string{
		"email": "alice@example.com", "name": "Alice", "password": "secret",
	})

	w := postJSON(t, HandleLogin(store), map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}
}

func TestLogin_WithUnknownEmail(t *testing.T) {
	store := memory.NewStore()

	w := postJSON(t, HandleLogin(store), map[string]string{
		"email": "nobody@example.com", "password": "secret",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unknown email, got %d", w.Code)
	}
}

func TestMe_WithValidSession(t *testing.T) {
	store := memory.NewStore()
	signup := postJSON(t, HandleSignup(store), map[string]string{
		"email": "alice@example.com", "name": "Alice", "password": "secret",
	})
	cookie := sessionCookie(t, signup)

	w := postJSON(t, HandleMe(store), nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Me returned status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.User.Name != "Alice" {
		t.Errorf("Me returned user %+v", resp.User)
	}
}

func TestMe_WithoutSession(t *testing.T) {
	store := memory.NewStore()

	w := postJSON(t, HandleMe(store), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without session, got %d", w.Code)
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	store := memory.NewStore()
	signup := postJSON(t, HandleSignup(store), map[string]string{
		"email": "alice@example.com", "name": "Alice", "password": "secret",
	})
	cookie := sessionCookie(t, signup)

	if w := postJSON(t, HandleLogout(store), nil, cookie); w.Code != http.StatusOK {
		t.Fatalf("Logout returned status %d", w.Code)
	}

	if w := postJSON(t, HandleMe(store), nil, cookie); w.Code != http.StatusUnauthorized {
		t.Errorf("Session still valid after logout, status %d", w.Code)
	}
}
