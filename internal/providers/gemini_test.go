package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func geminiEnvelope(text, finishReason string) string {
	return `{
		"candidates": [{
			"content": {"parts": [{"text": ` + mustJSON(text) + `}]},
			"finishReason": "` + finishReason + `"
		}],
		"usageMetadata": {"promptTokenCount": 100, "candidatesTokenCount": 50}
	}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGeminiClient_Extract(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiEnvelope(`{"title":"T"}`, "STOP")))
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	res, err := client.Extract(context.Background(), &ExtractRequest{
		Prompt:    "read this register",
		FileBytes: []byte("fake image bytes"),
		MIMEType:  "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if gotPath != "/models/"+GeminiModel+":generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("request parts = %+v", gotBody.Contents)
	}
	if gotBody.Contents[0].Parts[0].Text != "read this register" {
		t.Errorf("prompt part = %q", gotBody.Contents[0].Parts[0].Text)
	}
	inline := gotBody.Contents[0].Parts[1].InlineData
	if inline == nil || inline.MIMEType != "image/jpeg" || inline.Data == "" {
		t.Errorf("inline data part = %+v", inline)
	}

	if res.Text != `{"title":"T"}` {
		t.Errorf("text = %q", res.Text)
	}
	if res.Truncated {
		t.Error("STOP finish reason must not report truncation")
	}
	if res.PromptTokens != 100 || res.CompletionTokens != 50 {
		t.Errorf("token counts = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
}

func TestGeminiClient_TruncationFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiEnvelope(`{"title":"cut`, "MAX_TOKENS")))
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: srv.URL})
	res, err := client.Extract(context.Background(), &ExtractRequest{
		Prompt: "p", FileBytes: []byte("x"), MIMEType: "image/png",
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !res.Truncated {
		t.Error("MAX_TOKENS finish reason must report truncation")
	}
}

func TestGeminiClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiEnvelope("ok", "STOP")))
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	res, err := client.Extract(context.Background(), &ExtractRequest{
		Prompt: "p", FileBytes: []byte("x"), MIMEType: "image/png",
	})
	if err != nil {
		t.Fatalf("Extract should succeed on third attempt: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("text = %q", res.Text)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGeminiClient_ClientErrorsNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	_, err := client.Extract(context.Background(), &ExtractRequest{
		Prompt: "p", FileBytes: []byte("x"), MIMEType: "image/png",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestGeminiClient_SingleAttempt(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	_, err := client.Extract(context.Background(), &ExtractRequest{
		Prompt: "p", FileBytes: []byte("x"), MIMEType: "image/png",
		SingleAttempt: true,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want exactly 1 for the quality-gate path", calls.Load())
	}
}
