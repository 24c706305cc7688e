package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kahero/campushub/core"
)

func TestClientGenerate(t *testing.T) {
	var gotPath string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Parts: []part{{Text: "Attend the next two events."}}}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(core.AssistantConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		Timeout: 5 * time.Second,
	})

	answer, err := client.Generate(context.Background(), "How do I improve my score?", "Student score: 95.00%")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Attend the next two events." {
		t.Errorf("Generate() = %q", answer)
	}
	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestClientGenerateErrors(t *testing.T) {
	t.Run("disabled without api key", func(t *testing.T) {
		client := NewClient(core.AssistantConfig{})
		if _, err := client.Generate(context.Background(), "hi", ""); err != ErrDisabled {
			t.Errorf("error = %v, want %v", err, ErrDisabled)
		}
	})

	t.Run("api error is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
		}))
		defer srv.Close()

		client := NewClient(core.AssistantConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: time.Second})
		if _, err := client.Generate(context.Background(), "hi", ""); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("empty candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		client := NewClient(core.AssistantConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: time.Second})
		if _, err := client.Generate(context.Background(), "hi", ""); err != ErrNoAnswer {
			t.Errorf("error = %v, want %v", err, ErrNoAnswer)
		}
	})
}
