package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClaudeChat_SplitsSystemMessages(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}]}`)
	}))
	defer srv.Close()

	c := NewClaudeClient("k", "claude-test", 0).WithEndpoint(srv.URL)
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello there" {
		t.Errorf("expected joined text, got %q", out)
	}
	if got.System != "be brief" {
		t.Errorf("expected system prompt lifted out, got %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("expected one user message, got %+v", got.Messages)
	}
}

func TestClaudeChat_RetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", "m", 0).WithEndpoint(srv.URL).Complete(context.Background(), "p")
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestClaudeChat_ClientErrorNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", "m", 0).WithEndpoint(srv.URL).Complete(context.Background(), "p")
	if err == nil || IsRetryable(err) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestClaudeChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start"}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Bid "}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"security"}}`,
			`{"type":"message_stop"}`,
		}
		for _, ev := range events {
			fmt.Fprintf(w, "event: x\ndata: %s\n\n", ev)
		}
	}))
	defer srv.Close()

	var deltas []string
	full, err := NewClaudeClient("k", "m", 0).WithEndpoint(srv.URL).ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "q"}},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "Bid security" {
		t.Errorf("expected full text, got %q", full)
	}
	if strings.Join(deltas, "|") != "Bid |security" {
		t.Errorf("unexpected deltas: %q", deltas)
	}
}

func TestRetryableError_MessageKeepsRunesWhole(t *testing.T) {
	err := &RetryableError{StatusCode: 503, Message: strings.Repeat("é", 150)}
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("error message is not valid UTF-8: %q", msg)
	}
	if !strings.HasSuffix(msg, "...") {
		t.Errorf("expected long message to be cut, got %q", msg)
	}
}
