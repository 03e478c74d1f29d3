package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hntbot/biddocs/internal/config"
	"github.com/hntbot/biddocs/internal/pipeline"
)

const tenderText = "Bid security shall be two lakh rupees.\n\nDelivery within ninety days of the order.\n\nPayment after inspection."

// uploadAndWait uploads a text document and polls until it is indexed.
func uploadAndWait(t *testing.T, env *testEnv, collectionID string) string {
	t.Helper()
	fields := map[string]string{}
	if collectionID != "" {
		fields["collection_id"] = collectionID
	}
	rec := env.do(t, multipartRequest(t, "/agent/upload", "tender.txt", tenderText, fields))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	id, _ := body["collection_id"].(string)
	poll, _ := body["poll_url"].(string)
	if id == "" || poll == "" {
		t.Fatalf("unexpected upload response: %v", body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status := decode(t, env.do(t, httptest.NewRequest(http.MethodGet, poll, nil)))
		switch status["status"] {
		case "completed":
			return id
		case "failed", "partial":
			t.Fatalf("indexing did not complete: %v", status)
		}
		if time.Now().After(deadline) {
			t.Fatalf("indexing timed out: %v", status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAgent_UploadAskHistoryDelete(t *testing.T) {
	env := newTestEnv(t, "")
	id := uploadAndWait(t, env, "tender-42")
	if id != "tender-42" {
		t.Fatalf("expected supplied collection id, got %q", id)
	}

	rec := env.do(t, formRequest("/agent/ask", url.Values{
		"question":      {"What is the bid security?"},
		"collection_id": {id},
		"format":        {"html"},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	ans := decode(t, rec)
	if ans["answer"] != env.chat.reply || ans["thread_id"] != id {
		t.Errorf("unexpected answer: %v", ans)
	}
	if html, _ := ans["html"].(string); !strings.Contains(html, "<strong>2 lakh</strong>") {
		t.Errorf("expected rendered html, got %q", ans["html"])
	}
	sources, _ := ans["sources"].([]any)
	if len(sources) == 0 {
		t.Fatal("expected cited sources")
	}
	if src := sources[0].(map[string]any); src["source"] != "tender.txt" {
		t.Errorf("expected best source from the upload, got %v", src)
	}

	hist := decode(t, env.do(t, httptest.NewRequest(http.MethodGet, "/agent/history/"+id, nil)))
	msgs, _ := hist["messages"].([]any)
	if len(msgs) != 2 || hist["filename"] != "tender.txt" || hist["collection_id"] != id {
		t.Fatalf("unexpected history: %v", hist)
	}
	if first := msgs[0].(map[string]any); first["role"] != "user" || first["content"] != "What is the bid security?" {
		t.Errorf("unexpected first message: %v", first)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/agent/collections/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected delete to succeed, got %d", rec.Code)
	}
	hist = decode(t, env.do(t, httptest.NewRequest(http.MethodGet, "/agent/history/"+id, nil)))
	if msgs, _ := hist["messages"].([]any); len(msgs) != 0 || hist["filename"] != nil {
		t.Errorf("expected history and filename gone, got %v", hist)
	}
}

func TestAgent_UploadGeneratesCollectionID(t *testing.T) {
	env := newTestEnv(t, "")
	if id := uploadAndWait(t, env, ""); len(id) != 36 {
		t.Errorf("expected a uuid collection id, got %q", id)
	}
}

func TestAgent_UploadRejects(t *testing.T) {
	env := newTestEnv(t, "")
	tests := []struct {
		name   string
		file   string
		fields map[string]string
		code   int
	}{
		{"unsupported type", "tender.exe", nil, http.StatusBadRequest},
		{"no file", "", nil, http.StatusBadRequest},
		{"bad collection id", "tender.txt", map[string]string{"collection_id": ".."}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, multipartRequest(t, "/agent/upload", tt.file, "x", tt.fields))
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
		})
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/agent/upload/nope/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestAgent_AskValidation(t *testing.T) {
	env := newTestEnv(t, "")
	for _, fields := range []url.Values{
		{"collection_id": {"c1"}},
		{"question": {"why?"}},
	} {
		if rec := env.do(t, formRequest("/agent/ask", fields)); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", fields, rec.Code)
		}
	}
}

func TestAgent_AskModelOverride(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, formRequest("/agent/ask", url.Values{
		"question":      {"q"},
		"collection_id": {"c1"},
		"model":         {"gpt-4o-mini"},
		"provider":      {"openai"},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ans := decode(t, rec); ans["answer"] != "override openai/gpt-4o-mini" {
		t.Errorf("expected override model to answer, got %v", ans["answer"])
	}
}

func TestAgent_AskFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.chat.err = errors.New("provider down")
	rec := env.do(t, formRequest("/agent/ask", url.Values{"question": {"q"}, "collection_id": {"c1"}}))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "provider down") {
		t.Errorf("expected internal error detail hidden, got %s", rec.Body)
	}
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestAgent_AskStream(t *testing.T) {
	env := newTestEnv(t, "")
	env.chat.deltas = []string{"Delivery ", "within ", "90 days."}

	rec := env.do(t, formRequest("/agent/ask-stream", url.Values{"question": {"When is delivery?"}, "collection_id": {"c1"}}))
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", rec.Header().Get("Content-Type"))
	}

	events := readEvents(t, rec.Body.String())
	var types []string
	var text strings.Builder
	for _, ev := range events {
		types = append(types, ev.Type)
		text.WriteString(ev.Content)
	}
	if strings.Join(types, ",") != "start,chunk,chunk,chunk,done" {
		t.Fatalf("unexpected event sequence %v", types)
	}
	if text.String() != "Delivery within 90 days." || events[len(events)-1].ThreadID != "c1" {
		t.Errorf("unexpected stream content %q / %+v", text.String(), events[len(events)-1])
	}

	hist := decode(t, env.do(t, httptest.NewRequest(http.MethodGet, "/agent/history/c1", nil)))
	if msgs, _ := hist["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected streamed exchange recorded, got %v", hist)
	}
}

func TestAgent_AskStreamError(t *testing.T) {
	env := newTestEnv(t, "")
	env.chat.err = errors.New("provider down")

	rec := env.do(t, formRequest("/agent/ask-stream", url.Values{"question": {"q"}, "collection_id": {"c1"}}))
	events := readEvents(t, rec.Body.String())
	if len(events) != 2 || events[0].Type != "start" || events[1].Type != "error" {
		t.Fatalf("expected start then error, got %+v", events)
	}
}

func TestAgent_DeleteCollectionWhileIndexing(t *testing.T) {
	// The orchestrator is never started, so the job stays queued.
	orch := pipeline.NewOrchestrator(config.Defaults(), wordEmbedder{}, nil, discard)
	if err := orch.Submit(pipeline.NewJob("tender-7", "boq.csv", "boq.csv")); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Deps{Orchestrator: orch}, discard, config.Defaults())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/agent/collections/tender-7", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body)
	}
}
