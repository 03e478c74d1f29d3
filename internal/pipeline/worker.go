package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hntbot/biddocs/internal/chunker"
	"github.com/hntbot/biddocs/internal/doctree"
	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/parser"
)

// Index is where embedded chunks end up.
type Index interface {
	Register(ctx context.Context, collectionID, filename string) error
	Insert(ctx context.Context, collectionID string, chunks []doctree.Chunk, vectors [][]float32) error
}

// Worker processes a single document job.
type Worker struct {
	embedder  llm.Embedder
	index     Index
	log       *slog.Logger
	chunkCfg  chunker.Config
	batchSize int

	maxConcurrentEmbed int
	backoff            func(attempt int) time.Duration
}

func NewWorker(embedder llm.Embedder, index Index, log *slog.Logger, chunkCfg chunker.Config, batchSize, maxEmbed int) *Worker {
	return &Worker{
		embedder:           embedder,
		index:              index,
		log:                log,
		chunkCfg:           chunkCfg,
		batchSize:          max(batchSize, 1),
		maxConcurrentEmbed: max(maxEmbed, 1),
		backoff:            Backoff,
	}
}

type batch struct {
	idx     int
	chunks  []doctree.Chunk
	vectors [][]float32
	err     error
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "collection_id", job.CollectionID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	tree, err := parser.ParseFile(job.path, job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.setContentHash(ContentHashHex([]byte(flattenTreeText(tree))))

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.ChunkTree(tree, w.chunkCfg)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 3: Embed batches with bounded concurrency.
	job.SetStatus(StatusEmbedding, "embedding")
	batches := splitBatches(chunks, w.batchSize)
	results := make(chan batch, len(batches))
	sem := make(chan struct{}, w.maxConcurrentEmbed)

	for _, b := range batches {
		sem <- struct{}{}
		go func(b batch) {
			defer func() { <-sem }()
			b.vectors, b.err = w.embed(ctx, log, b)
			results <- b
		}(b)
	}

	done := make([]batch, len(batches))
	hadErrors := false
	for range batches {
		r := <-results
		done[r.idx] = r
		if r.err != nil {
			log.Error("embedding failed", "batch", r.idx, "error", r.err)
			job.AddError(fmt.Sprintf("batch %d: %s", r.idx, r.err))
			hadErrors = true
			continue
		}
		job.AddEmbedded(len(r.chunks))
	}

	var (
		keep    []doctree.Chunk
		vectors [][]float32
	)
	for _, b := range done {
		if b.err == nil {
			keep = append(keep, b.chunks...)
			vectors = append(vectors, b.vectors...)
		}
	}
	log.Info("embedding complete", "embedded", len(keep), "errors", hadErrors)

	if len(keep) == 0 {
		job.SetStatus(StatusFailed, "embedding")
		return
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	if err := w.index.Register(ctx, job.CollectionID, job.Filename); err != nil {
		log.Error("register failed", "error", err)
		job.AddError(fmt.Sprintf("register: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	if err := w.index.Insert(ctx, job.CollectionID, keep, vectors); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.SetStored(len(keep))
	log.Info("storage complete", "stored", len(keep), "total", len(chunks))

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// embed calls the embedder for one batch, retrying transient failures.
func (w *Worker) embed(ctx context.Context, log *slog.Logger, b batch) ([][]float32, error) {
	texts := make([]string, len(b.chunks))
	for i, c := range b.chunks {
		texts[i] = embeddingText(c)
	}

	var vectors [][]float32
	err := retry(ctx, log.With("batch", b.idx), w.backoff, func() error {
		var err error
		vectors, err = w.embedder.Embed(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// embeddingText prefixes the chunk with its section path so headings
// contribute to similarity.
func embeddingText(c doctree.Chunk) string {
	if len(c.Breadcrumb) == 0 {
		return c.Text
	}
	return strings.Join(c.Breadcrumb, " > ") + "\n\n" + c.Text
}

func splitBatches(chunks []doctree.Chunk, size int) []batch {
	var out []batch
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		out = append(out, batch{idx: len(out), chunks: chunks[start:end]})
	}
	return out
}

// flattenTreeText extracts all text from a DocTree into a single string for hashing.
func flattenTreeText(tree *doctree.DocTree) string {
	var sb strings.Builder
	tree.Walk(func(n *doctree.DocNode, _ []string) {
		if n.Text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(n.Text)
	})
	return sb.String()
}
