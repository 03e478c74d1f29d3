package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hntbot/biddocs/internal/chunker"
	"github.com/hntbot/biddocs/internal/config"
	"github.com/hntbot/biddocs/internal/llm"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("ingest queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("ingest pipeline is stopped")
)

const cleanupInterval = 5 * time.Minute

// Orchestrator owns the ingest queue, the worker pool and the job registry.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	embedder llm.Embedder
	index    Index
	log      *slog.Logger
	cfg      config.Config
	chunkCfg chunker.Config

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator builds the pipeline around an embedder and the index that
// receives the vectors. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, embedder llm.Embedder, index Index, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, max(cfg.MaxQueueSize, 1)),
		embedder: embedder,
		index:    index,
		log:      log,
		cfg:      cfg,
		chunkCfg: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			MinChunk:     1,
		},
	}
}

// Start launches cfg.WorkerCount workers plus the job-expiry loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	workers := max(o.cfg.WorkerCount, 1)
	for i := range workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.embedder, o.index, o.log.With("worker", i), o.chunkCfg, o.cfg.EmbeddingBatchSize, o.cfg.MaxConcurrentEmbed)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
	o.log.Info("ingest pipeline started", "workers", workers, "queue_size", cap(o.queue))
}

// Stop cancels in-flight jobs and waits for every worker to exit. Jobs still
// queued are marked failed.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for job := range o.queue {
		job.SetStatus(StatusFailed, "shutdown")
	}
}

// Submit registers the job and queues it. A job that cannot be queued is
// still registered, marked failed, so its status stays pollable.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "collection_id", job.CollectionID, "filename", job.Filename)
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d jobs)", ErrQueueFull, cap(o.queue))
	}
}

func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// ActiveJobs counts unfinished jobs for a collection.
func (o *Orchestrator) ActiveJobs(collectionID string) int {
	return o.jobs.Active(collectionID)
}

func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
