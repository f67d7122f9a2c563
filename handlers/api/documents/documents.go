package documents

import (
	"collabdocs/core"
	"collabdocs/middleware"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	createRequest struct {
		Title string `json:"title"`
	}

	updateRequest struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
)

// HandleList returns the authenticated user's documents, most recently
// updated first.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Unauthorized"})
			return
		}

		documents, err := store.List(r.Context(), user.ID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("Failed to list documents")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		if documents == nil {
			documents = []*core.Document{}
		}
		render.JSON(w, r, map[string]any{"documents": documents})
	}
}

// HandleCreate creates a new, empty document for the authenticated user.
func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Unauthorized"})
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Title == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Title is required"})
			return
		}

		document := &core.Document{
			UserID: user.ID,
			Title:  req.Title,
		}
		if _, err := store.Create(r.Context(), document); err != nil {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("Failed to create document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		render.JSON(w, r, map[string]any{"document": document})
	}
}

// HandleGet returns a single document, 404 unless it belongs to the
// authenticated user.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Unauthorized"})
			return
		}

		id := chi.URLParam(r, "id")
		document, err := store.Get(r.Context(), user.ID, id)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Document not found"})
			return
		}

		render.JSON(w, r, map[string]any{"document": document})
	}
}

// HandleUpdate applies a title and/or content change to the user's document.
// This is the sequential REST write path; the collaboration channel has its
// own unscoped overwrite.
func HandleUpdate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Unauthorized"})
			return
		}

		id := chi.URLParam(r, "id")
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		document, err := store.Get(r.Context(), user.ID, id)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Document not found"})
			return
		}

		if req.Title != nil && *req.Title != "" {
			document.Title = *req.Title
		}
		if req.Content != nil {
			document.Content = *req.Content
		}

		if err := store.Save(r.Context(), document); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":     user.ID,
				"document_id": id,
				"error":       err,
			}).Error("Failed to update document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		render.JSON(w, r, map[string]any{"document": document})
	}
}
