package classify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nsavage/wardendns/internal/store"
)

// DefaultShutdownGrace bounds how long Stop waits for an in-flight
// classification to finish before giving up.
const DefaultShutdownGrace = 5 * time.Second

// Fetcher retrieves rendered page text for domain, bounded by timeout and
// maxBytes. Implemented by internal/fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, domain string, timeout time.Duration, maxBytes int) string
}

// Moderator decides whether text is harmful. Implemented by
// internal/moderate.Moderator.
type Moderator interface {
	Moderate(ctx context.Context, text string) bool
}

// domainStore is the subset of store.Store the Worker needs.
type domainStore interface {
	ListActiveEntries(ctx context.Context, domain string) ([]store.DomainListEntry, error)
	InsertEntry(ctx context.Context, entry store.DomainListEntry) error
}

// WorkerConfig bundles the tunables a Worker needs beyond its
// collaborators.
type WorkerConfig struct {
	FetchTimeout    time.Duration
	ModerateTimeout time.Duration
	MaxFetchBytes   int
	TTL             time.Duration // lifetime of an llm-sourced DomainList entry
}

// Worker is the single classification consumer: it drains the Queue,
// fetches and moderates each domain, and persists the verdict.
type Worker struct {
	queue     *Queue
	store     domainStore
	fetcher   Fetcher
	moderator Moderator
	cfg       WorkerConfig
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewWorker builds a Worker. st must implement domainStore (satisfied by
// *store.Store).
func NewWorker(queue *Queue, st domainStore, fetcher Fetcher, moderator Moderator, cfg WorkerConfig, logger *slog.Logger) *Worker {
	return &Worker{queue: queue, store: st, fetcher: fetcher, moderator: moderator, cfg: cfg, logger: logger}
}

// Start launches the single worker goroutine. It returns immediately;
// the goroutine runs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop waits up to timeout (DefaultShutdownGrace if <= 0) for the
// in-flight classification to finish after the caller has cancelled the
// context passed to Start.
func (w *Worker) Stop(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownGrace
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("classify: timeout waiting for worker to drain")
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		domain, ok := w.queue.Take(ctx)
		if !ok {
			return
		}
		w.process(ctx, domain)
	}
}

// process implements the Classifier's per-domain contract: re-check,
// fetch, moderate, insert, complete on every exit path.
func (w *Worker) process(ctx context.Context, domain string) {
	defer w.queue.Complete(domain)

	entries, err := w.store.ListActiveEntries(ctx, domain)
	if err != nil {
		w.warn("store re-check failed", domain, err)
		return
	}
	if len(entries) > 0 {
		// A racing write (manual entry or another classification) already
		// decided this domain.
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	text := w.fetcher.Fetch(fetchCtx, domain, w.cfg.FetchTimeout, w.cfg.MaxFetchBytes)
	cancel()

	modCtx, cancel2 := context.WithTimeout(ctx, w.cfg.ModerateTimeout)
	harmful := w.moderator.Moderate(modCtx, text)
	cancel2()

	listType := store.ListWhitelist
	if harmful {
		listType = store.ListBlacklist
	}

	now := time.Now()
	expires := now.Add(w.cfg.TTL)
	entry := store.DomainListEntry{
		Domain:    domain,
		ListType:  listType,
		Source:    store.SourceLLM,
		CreatedAt: now,
		ExpiresAt: &expires,
	}

	if err := w.store.InsertEntry(ctx, entry); err != nil {
		var conflict *store.ErrConflict
		if errors.As(err, &conflict) {
			// Someone else classified it first; their verdict wins.
			return
		}
		w.warn("store insert failed", domain, err)
	}
}

func (w *Worker) warn(msg, domain string, err error) {
	if w.logger != nil {
		w.logger.Warn(msg, "domain", domain, "err", err)
	}
}
