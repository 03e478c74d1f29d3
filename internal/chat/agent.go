// Package chat answers questions about an uploaded collection using
// retrieved chunks as context, keeping the conversation per collection.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/vectorstore"
)

const systemPrompt = `You are a helpful assistant. Answer questions based only on the uploaded documents, using the context provided. If the context does not contain the answer, say so.
Format your responses using Markdown for better readability:
- Use **bold** for emphasis and important points
- Use bullet points for lists
- Use numbered lists for sequential steps
- Use headings (##) for sections when appropriate
- Use code blocks for technical content
Provide clear, well-structured answers.`

const noContext = "No relevant context found in the uploaded documents."

// DefaultK is how many chunks are retrieved per question.
const DefaultK = 10

// ErrEmptyQuestion is returned when the question is blank.
var ErrEmptyQuestion = errors.New("question is empty")

// Retriever finds the chunks most relevant to a query within a collection.
type Retriever interface {
	Search(ctx context.Context, collectionID, query string, k int) ([]vectorstore.Hit, error)
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
}

// Answer is the result of one question.
type Answer struct {
	Answer   string   `json:"answer"`
	ThreadID string   `json:"thread_id"`
	Sources  []Source `json:"sources,omitempty"`
}

type Agent struct {
	model       llm.ChatModel
	retriever   Retriever
	checkpoints *Checkpoints
	k           int
	log         *slog.Logger
}

func NewAgent(model llm.ChatModel, retriever Retriever, checkpoints *Checkpoints, k int, log *slog.Logger) *Agent {
	if k <= 0 {
		k = DefaultK
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Agent{model: model, retriever: retriever, checkpoints: checkpoints, k: k, log: log}
}

// WithModel returns an agent that answers with model but shares the
// retriever and conversation store.
func (a *Agent) WithModel(model llm.ChatModel) *Agent {
	cp := *a
	cp.model = model
	return &cp
}

// Ask answers question against collectionID and records the exchange.
func (a *Agent) Ask(ctx context.Context, question, collectionID string) (Answer, error) {
	msgs, sources, err := a.prepare(ctx, question, collectionID)
	if err != nil {
		return Answer{}, err
	}
	text, err := a.model.Chat(ctx, msgs)
	if err != nil {
		return Answer{}, fmt.Errorf("chat: %w", err)
	}
	if err := a.record(ctx, collectionID, question, text); err != nil {
		return Answer{}, err
	}
	return Answer{Answer: text, ThreadID: collectionID, Sources: sources}, nil
}

// StreamAsk is Ask with the answer delivered incrementally through emit. The
// exchange is recorded only after the stream completes.
func (a *Agent) StreamAsk(ctx context.Context, question, collectionID string, emit func(string) error) (Answer, error) {
	msgs, sources, err := a.prepare(ctx, question, collectionID)
	if err != nil {
		return Answer{}, err
	}
	text, err := a.model.ChatStream(ctx, msgs, emit)
	if err != nil {
		return Answer{}, fmt.Errorf("chat stream: %w", err)
	}
	if err := a.record(ctx, collectionID, question, text); err != nil {
		return Answer{}, err
	}
	return Answer{Answer: text, ThreadID: collectionID, Sources: sources}, nil
}

// History returns the recorded conversation for collectionID.
func (a *Agent) History(ctx context.Context, collectionID string) ([]llm.Message, error) {
	return a.checkpoints.Load(ctx, collectionID)
}

// Forget deletes the conversation for collectionID.
func (a *Agent) Forget(ctx context.Context, collectionID string) error {
	return a.checkpoints.Delete(ctx, collectionID)
}

func (a *Agent) prepare(ctx context.Context, question, collectionID string) ([]llm.Message, []Source, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyQuestion
	}

	history, err := a.checkpoints.Load(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}
	hits, err := a.retriever.Search(ctx, collectionID, question, a.k)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve: %w", err)
	}
	a.log.Debug("context retrieved", "collection_id", collectionID, "hits", len(hits), "history", len(history))

	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: contextMessage(hits)})
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{Source: h.Source, Page: h.Page, Section: h.Section, Score: h.Score}
	}
	return msgs, sources, nil
}

func (a *Agent) record(ctx context.Context, collectionID, question, answer string) error {
	return a.checkpoints.Append(ctx, collectionID,
		llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(question)},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
}

func contextMessage(hits []vectorstore.Hit) string {
	if len(hits) == 0 {
		return "Context:\n" + noContext
	}
	var b strings.Builder
	b.WriteString("Context from the uploaded documents:\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, h.Source)
		if h.Page > 0 {
			fmt.Fprintf(&b, ", page %d", h.Page)
		}
		if h.Section != "" {
			fmt.Fprintf(&b, " (%s)", h.Section)
		}
		b.WriteString("\n")
		b.WriteString(h.Text)
		b.WriteString("\n")
	}
	return b.String()
}
