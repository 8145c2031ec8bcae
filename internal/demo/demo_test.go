package demo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	openai "github.com/sashabaranov/go-openai"

	"OpenAIApp/internal/completion"
	"OpenAIApp/internal/demo"
	"OpenAIApp/internal/ledger"
	"OpenAIApp/internal/session"
)

func init() {
	color.NoColor = true
}

// stubClient answers every call locally and records what it was asked
type stubClient struct {
	chats      [][]session.Turn
	chatParams []completion.Params
	images     int
	failOn     string
}

func (s *stubClient) ChatComplete(_ context.Context, turns []session.Turn, p completion.Params) (session.Turn, error) {
	s.chats = append(s.chats, turns)
	s.chatParams = append(s.chatParams, p)
	if s.failOn == completion.OpChat {
		return session.Turn{}, &completion.ServiceError{Op: completion.OpChat, Err: errors.New("rate limited")}
	}
	return session.Turn{Role: session.RoleAssistant, Content: "reply"}, nil
}

func (s *stubClient) TextComplete(_ context.Context, _ string, _ completion.Params) (string, error) {
	if s.failOn == completion.OpCompletion {
		return "", &completion.ServiceError{Op: completion.OpCompletion, Err: errors.New("model not found")}
	}
	return "  faster research.\n", nil
}

func (s *stubClient) GenerateImage(_ context.Context, _ string, opts completion.ImageOptions) ([]completion.ImageRef, error) {
	s.images++
	return []completion.ImageRef{{URL: "https://img.example/1.png"}}, nil
}

func (s *stubClient) Embed(_ context.Context, _, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestRun_AllExamples(t *testing.T) {
	client := &stubClient{}
	var out bytes.Buffer

	err := demo.Run(context.Background(), client, &out, demo.Options{
		Chat: completion.Params{Model: "gpt-3.5-turbo", Temperature: 0.7},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// examples 1, 2 and the two steps of example 6
	if len(client.chats) != 4 {
		t.Fatalf("expected 4 chat calls, got %d", len(client.chats))
	}
	if client.images != 0 {
		t.Errorf("expected image example to be skipped by default")
	}
	if p := client.chatParams[1]; p.Temperature != 1.0 || p.MaxTokens != 200 {
		t.Errorf("unexpected creative writing params %+v", p)
	}
	if p := client.chatParams[0]; p.Temperature != 0.7 {
		t.Errorf("expected default params for simple chat, got %+v", p)
	}

	// the second multi-turn request carries the first reply
	last := client.chats[3]
	if len(last) != 4 || last[2].Role != session.RoleAssistant || last[2].Content != "reply" {
		t.Errorf("unexpected multi-turn transcript %+v", last)
	}

	got := out.String()
	for _, want := range []string{
		"Example 1: Simple Chat Completion",
		"Completion: faster research.",
		"Embedding dimension: 3",
		"First 5 values: [0.1 0.2 0.3]",
		"All examples completed successfully!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(got, "Example 5") {
		t.Errorf("image example should not be printed when disabled")
	}
}

func TestRun_WithImage(t *testing.T) {
	client := &stubClient{}
	var out bytes.Buffer

	if err := demo.Run(context.Background(), client, &out, demo.Options{WithImage: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.images != 1 {
		t.Errorf("expected 1 image request, got %d", client.images)
	}
	if !strings.Contains(out.String(), "Generated image URL: https://img.example/1.png") {
		t.Errorf("expected image URL in output")
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	client := &stubClient{failOn: completion.OpCompletion}
	var out bytes.Buffer

	err := demo.Run(context.Background(), client, &out, demo.Options{})
	if !completion.IsServiceError(err) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if len(client.chats) != 2 {
		t.Errorf("expected examples after the failure to be skipped, got %d chat calls", len(client.chats))
	}
	if strings.Contains(out.String(), "completed successfully") {
		t.Errorf("unexpected success message")
	}
}

func TestFail_PrintsGuidance(t *testing.T) {
	var out bytes.Buffer
	demo.Fail(&out, &completion.ConfigurationError{Field: "api_key", Reason: "is required"})

	got := out.String()
	if !strings.HasPrefix(got, "❌ Error: invalid client configuration: api_key is required\n") {
		t.Errorf("unexpected error line %q", got)
	}
	if !strings.Contains(got, "OPENAI_API_KEY") {
		t.Errorf("expected setup guidance, got %q", got)
	}
}

// TestRun_AgainstService drives the real client against a fake API and
// records usage in a ledger.
func TestRun_AgainstService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		usage := openai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}
		var v any
		switch strings.TrimPrefix(r.URL.Path, "/v1") {
		case "/chat/completions":
			v = openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "Paris."}}},
				Usage:   usage,
			}
		case "/completions":
			v = openai.CompletionResponse{Choices: []openai.CompletionChoice{{Text: " efficiency."}}, Usage: usage}
		case "/embeddings":
			v = openai.EmbeddingResponse{Data: []openai.Embedding{{Embedding: []float32{0.5, -0.5}}}, Usage: usage}
		default:
			http.NotFound(w, r)
			return
		}
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	defer server.Close()

	l, err := ledger.Open(filepath.Join(t.TempDir(), "usage.db"), nil)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer l.Close()

	const sessionID = "demo-session"
	client, err := completion.New(
		completion.Config{APIKey: "test-key", BaseURL: server.URL + "/v1"},
		completion.WithRecorder(l.Recorder(sessionID)),
		completion.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("completion.New: %v", err)
	}

	var out bytes.Buffer
	err = demo.Run(context.Background(), client, &out, demo.Options{
		Chat:       completion.Params{Model: "gpt-3.5-turbo"},
		Completion: completion.Params{Model: "gpt-3.5-turbo-instruct"},
		Embedding:  "text-embedding-ada-002",
		Usage:      l,
		SessionID:  sessionID,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 4 chat calls, 1 completion, 1 embedding
	if !strings.Contains(out.String(), "6 calls, 30 tokens (18 prompt, 12 completion)") {
		t.Errorf("expected usage summary, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Response: Paris.") {
		t.Errorf("expected chat response in output")
	}
}
