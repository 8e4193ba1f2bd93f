package analyzer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsinsight/internal/analyzer"
	"newsinsight/internal/domain"
)

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatCompletionServer(t *testing.T, content string, got *chatRequest, headers *http.Header) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if headers != nil {
			*headers = r.Header.Clone()
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		reply, _ := json.Marshal(content)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": ` + string(reply) + `}
			}]
		}`))
	}))
}

func TestOpenAIAnalyzerAnalyze(t *testing.T) {
	var req chatRequest
	var headers http.Header
	srv := chatCompletionServer(t,
		`{"summary": "A summary.", "sentiment": "positive", "sentiment_explanation": "Upbeat."}`,
		&req, &headers)
	defer srv.Close()

	a, err := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{
		APIKey:    "key",
		BaseURL:   srv.URL,
		Model:     "anthropic/claude-3-haiku",
		MaxTokens: 1000,
		Referer:   "https://newsinsight.app",
		Title:     "NewsInsight App",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := a.Analyze(context.Background(), analyzer.Input{Title: "Chips", Content: "Chips got faster."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.Analysis{Summary: "A summary.", Sentiment: domain.SentimentPositive, SentimentExplanation: "Upbeat."}
	if got != want {
		t.Fatalf("unexpected analysis: got %+v want %+v", got, want)
	}

	if req.Model != "anthropic/claude-3-haiku" || req.MaxTokens != 1000 {
		t.Errorf("unexpected request: model %q max tokens %d", req.Model, req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("expected system and user messages, got %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, "Title: Chips") ||
		!strings.Contains(req.Messages[1].Content, "Content: Chips got faster.") {
		t.Errorf("unexpected user prompt: %q", req.Messages[1].Content)
	}
	if headers.Get("Authorization") != "Bearer key" {
		t.Errorf("unexpected authorization header: %q", headers.Get("Authorization"))
	}
	if headers.Get("X-Title") != "NewsInsight App" || headers.Get("HTTP-Referer") != "https://newsinsight.app" {
		t.Errorf("expected attribution headers, got %v", headers)
	}
}

func TestOpenAIAnalyzerFallsBackOnProse(t *testing.T) {
	var req chatRequest
	srv := chatCompletionServer(t, "Sorry, I can't help with that.", &req, nil)
	defer srv.Close()

	a, err := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{APIKey: "key", BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := a.Analyze(context.Background(), analyzer.Input{Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Fallback || got.Summary != domain.FallbackSummary || got.Sentiment != domain.SentimentNeutral {
		t.Fatalf("expected fallback analysis, got %+v", got)
	}
}

func TestNewOpenAIAnalyzerRequiresKeyAndModel(t *testing.T) {
	if _, err := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{Model: "m"}); err == nil {
		t.Errorf("expected error for missing API key")
	}
	if _, err := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{APIKey: "key"}); err == nil {
		t.Errorf("expected error for missing model")
	}
}
