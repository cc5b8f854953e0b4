package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "test-model", 2*time.Second, zap.NewNop()), srv
}

func completionBody(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCompleteReturnsText(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text == "" {
			t.Fatalf("prompt missing from request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("  next line of code\n")))
	})

	text, err := client.Complete(context.Background(), "complete this")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "next line of code" {
		t.Fatalf("unexpected completion %q", text)
	}
	if !strings.Contains(gotPath, "/models/test-model:generateContent") {
		t.Fatalf("unexpected endpoint %q", gotPath)
	}
}

func TestCompleteEmptyResponseIsError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.Complete(context.Background(), "anything")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestCompleteServiceErrorPropagates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "anything")
	if err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestCompleteHonorsTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(completionBody("too late")))
	})
	client.httpClient.Timeout = 20 * time.Millisecond

	_, err := client.Complete(context.Background(), "anything")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestGenerateDocsAppendsAsTrailingBlock(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody("// adds two numbers")))
	})

	docs, err := client.GenerateDocs(context.Background(), "func add(a, b int) int { return a + b }", "go")
	if err != nil {
		t.Fatalf("generate docs: %v", err)
	}
	if !strings.HasPrefix(docs, "\n\n") {
		t.Fatalf("docs must be a trailing block, got %q", docs)
	}
	if !strings.Contains(docs, "adds two numbers") {
		t.Fatalf("docs content missing: %q", docs)
	}
}
