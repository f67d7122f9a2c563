package summary

import (
	"bytes"
	"collabdocs/core"
	"collabdocs/middleware"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const defaultModelURL = "https://api-inference.huggingface.co/models/facebook/bart-large-cnn"

var (
	apiKey   string
	modelURL string
)

// Init reads the summarization provider config. A missing API key disables
// the provider unless demo mode is explicitly opted into with
// HUGGINGFACE_ALLOW_DEMO=true; the provider's anonymous "demo" key is never
// used silently.
func Init() {
	apiKey = os.Getenv("HUGGINGFACE_API_KEY")
	modelURL = os.Getenv("HUGGINGFACE_MODEL_URL")
	if modelURL == "" {
		modelURL = defaultModelURL
	}
	if apiKey == "" {
		if os.Getenv("HUGGINGFACE_ALLOW_DEMO") == "true" {
			apiKey = "demo"
			logrus.Warn("HUGGINGFACE_API_KEY not set, using demo key (rate-limited)")
		} else {
			logrus.Warn("HUGGINGFACE_API_KEY not set, summaries will use the local fallback")
		}
	}
}

type (
	inferenceRequest struct {
		Inputs     string              `json:"inputs"`
		Parameters inferenceParameters `json:"parameters"`
	}

	inferenceParameters struct {
		MaxLength int  `json:"max_length"`
		MinLength int  `json:"min_length"`
		DoSample  bool `json:"do_sample"`
	}

	inferenceResult struct {
		SummaryText string `json:"summary_text"`
	}
)

// HandleGenerate produces an AI summary of the user's document, falling back
// to a locally generated description when the provider is unavailable.
func HandleGenerate(store core.DocumentStore) http.HandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

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

		if apiKey == "" {
			render.JSON(w, r, map[string]string{"summary": fallbackSummary(document)})
			return
		}

		summary, err := generate(r, client, document.Content)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"document_id": id,
				"error":       err,
			}).Error("AI summary request failed")
			render.JSON(w, r, map[string]string{"summary": fallbackSummary(document)})
			return
		}

		render.JSON(w, r, map[string]string{"summary": summary})
	}
}

func generate(r *http.Request, client *http.Client, content string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: content,
		Parameters: inferenceParameters{
			MaxLength: 150,
			MinLength: 30,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, modelURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference API returned status %d", resp.StatusCode)
	}

	var results []inferenceResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].SummaryText == "" {
		return "Unable to generate summary at this time.", nil
	}
	return results[0].SummaryText, nil
}

func fallbackSummary(document *core.Document) string {
	words := len(strings.Fields(document.Content))
	size := "brief"
	if len(document.Content) > 500 {
		size = "comprehensive"
	}
	return fmt.Sprintf("This document contains %d words and covers topics related to %s. The content appears to be %s documentation.",
		words, document.Title, size)
}
