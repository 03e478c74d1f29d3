package llm

import (
	"context"
	"slices"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	op         string
	durationMs int64
	failed     bool
}

// StatsSnapshot aggregates the latency samples of one operation.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// LLMStats keeps provider call latencies for a rolling window, grouped by
// operation (complete, chat, chat_stream, embed).
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one call. Negative durations are stored as zero.
func (s *LLMStats) Record(op string, d time.Duration, err error) {
	ms := max(d.Milliseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, op: op, durationMs: ms, failed: err != nil})
}

// Snapshot returns per-operation aggregates for the samples still inside
// the window.
func (s *LLMStats) Snapshot() map[string]StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	byOp := make(map[string][]sample)
	for _, sm := range s.samples {
		byOp[sm.op] = append(byOp[sm.op], sm)
	}

	out := make(map[string]StatsSnapshot, len(byOp))
	for op, samples := range byOp {
		out[op] = aggregate(samples)
	}
	return out
}

func aggregate(samples []sample) StatsSnapshot {
	values := make([]int64, 0, len(samples))
	var (
		sum    int64
		failed int
	)
	for _, sm := range samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		if sm.failed {
			failed++
		}
	}
	if len(values) == 0 {
		return StatsSnapshot{}
	}
	slices.Sort(values)

	return StatsSnapshot{
		Count:  len(values),
		Errors: failed,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  float64(sum) / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}

// Instrumented records the latency of every call made through a Client.
type Instrumented struct {
	Client
	stats *LLMStats
}

func Instrument(c Client, stats *LLMStats) *Instrumented {
	return &Instrumented{Client: c, stats: stats}
}

func (i *Instrumented) Stats() *LLMStats { return i.stats }

func (i *Instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.Client.Complete(ctx, prompt)
	i.stats.Record("complete", time.Since(start), err)
	return out, err
}

func (i *Instrumented) Chat(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	out, err := i.Client.Chat(ctx, messages)
	i.stats.Record("chat", time.Since(start), err)
	return out, err
}

func (i *Instrumented) ChatStream(ctx context.Context, messages []Message, emit func(string) error) (string, error) {
	start := time.Now()
	out, err := i.Client.ChatStream(ctx, messages, emit)
	i.stats.Record("chat_stream", time.Since(start), err)
	return out, err
}

// InstrumentedEmbedder records the latency of embedding calls.
type InstrumentedEmbedder struct {
	Embedder
	stats *LLMStats
}

func InstrumentEmbedder(e Embedder, stats *LLMStats) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{Embedder: e, stats: stats}
}

func (i *InstrumentedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	out, err := i.Embedder.Embed(ctx, texts)
	i.stats.Record("embed", time.Since(start), err)
	return out, err
}
