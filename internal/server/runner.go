package server

import (
	"context"
	"log/slog"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/nsavage/wardendns/internal/classify"
	"github.com/nsavage/wardendns/internal/config"
	"github.com/nsavage/wardendns/internal/fetch"
	"github.com/nsavage/wardendns/internal/moderate"
	"github.com/nsavage/wardendns/internal/resolver"
	"github.com/nsavage/wardendns/internal/store"
)

// Runner orchestrates DNS server startup, the classification pipeline,
// and shutdown. The Control API server is started independently by
// cmd/wardendns; Runner owns only the DNS listener and its background
// worker.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run builds the resolver chain and classification worker against st, and
// serves DNS over UDP until ctx is cancelled. The Store's lifecycle belongs
// to the caller (cmd/wardendns), which shares it with the Control API.
//
// Server lifecycle:
//  1. Configure runtime (GOMAXPROCS based on workers setting)
//  2. Build the resolver chain: FilteringResolver -> ForwardingResolver
//  3. Start the classification queue + worker
//  4. Start the UDP server
//  5. Wait for ctx cancellation (shutdown signal)
//  6. Gracefully stop the UDP server and drain the worker, with timeouts
func (r *Runner) Run(ctx context.Context, cfg *config.Config, st *store.Store) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	desiredProcs := r.configureRuntime(cfg)
	maxConc := r.calculateMaxConcurrency(cfg, desiredProcs)

	queue := classify.NewQueue(cfg.Classifier.QueueCapacity)
	worker := r.buildWorker(st, queue, cfg)
	worker.Start(ctx)

	chain := r.buildResolverChain(cfg, st, queue)
	defer chain.Close()

	h := &QueryHandler{Logger: r.logger, Resolver: chain, Timeout: r.upstreamTimeout(cfg)}
	limiter := NewRateLimiterFromEnv()

	addr := net.JoinHostPort(cfg.DNS.Host, strconv.Itoa(cfg.DNS.Port))
	r.logStartup(cfg, addr, maxConc)

	udp := &UDPServer{Logger: r.logger, Handler: h, Limiter: limiter, WorkersPerSocket: maxConc}

	errCh := make(chan error, 1)
	go func() { errCh <- udp.Run(ctx, addr) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancelRun()
			return err
		}
	}

	_ = udp.Stop(5 * time.Second)

	grace := parseDurationOr(cfg.Classifier.ShutdownGrace, classify.DefaultShutdownGrace)
	if err := worker.Stop(grace); err != nil && r.logger != nil {
		r.logger.Warn("classifier did not drain cleanly", "err", err)
	}

	return nil
}

// configureRuntime sets GOMAXPROCS based on worker configuration.
// Workers can reduce but never increase parallelism beyond the default.
func (r *Runner) configureRuntime(cfg *config.Config) int {
	baseProcs := runtime.GOMAXPROCS(0)
	if baseProcs <= 0 {
		baseProcs = 1
	}
	desiredProcs := baseProcs

	if cfg.DNS.Workers.Mode == config.WorkersFixed {
		w := cfg.DNS.Workers.Value
		if w <= 0 {
			w = 1
		}
		if w < desiredProcs {
			desiredProcs = w
		}
	}

	prev := runtime.GOMAXPROCS(desiredProcs)
	actual := runtime.GOMAXPROCS(0)
	if r.logger != nil {
		r.logger.Info("runtime", "gomaxprocs", actual, "prev", prev, "base", baseProcs)
	}
	return actual
}

// calculateMaxConcurrency determines the maximum concurrent request handlers.
func (r *Runner) calculateMaxConcurrency(cfg *config.Config, procs int) int {
	maxConc := cfg.DNS.MaxConcurrency
	if maxConc <= 0 {
		c := procs
		if c <= 0 {
			c = 1
		}
		maxConc = c * 256
		if maxConc > 2048 {
			maxConc = 2048
		}
		if maxConc < 1 {
			maxConc = 1
		}
	}
	return maxConc
}

func (r *Runner) upstreamTimeout(cfg *config.Config) time.Duration {
	return parseDurationOr(cfg.Upstream.Timeout, resolver.DefaultUpstreamTimeout)
}

// buildResolverChain builds FilteringResolver -> ForwardingResolver, the
// only two stages a query passes through.
func (r *Runner) buildResolverChain(cfg *config.Config, st *store.Store, queue *classify.Queue) resolver.Resolver {
	fwd := resolver.NewForwardingResolver(cfg.Upstream.Server, r.upstreamTimeout(cfg))
	return resolver.NewFilteringResolver(st, queue, fwd, r.logger)
}

// buildWorker wires the Classifier's Fetcher and Moderator collaborators
// from configuration.
func (r *Runner) buildWorker(st *store.Store, queue *classify.Queue, cfg *config.Config) *classify.Worker {
	fetcher := fetch.New()
	moderator := moderate.New(cfg.Moderation.OpenAIAPIKey)

	workerCfg := classify.WorkerConfig{
		FetchTimeout:    parseDurationOr(cfg.Classifier.FetchTimeout, 5*time.Second),
		ModerateTimeout: parseDurationOr(cfg.Classifier.ModerateTimeout, 5*time.Second),
		MaxFetchBytes:   cfg.Classifier.MaxFetchBytes,
		TTL:             parseDurationOr(cfg.Classifier.LLMTTL, 24*time.Hour),
	}
	return classify.NewWorker(queue, st, fetcher, moderator, workerCfg, r.logger)
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, addr string, maxConc int) {
	if r.logger != nil {
		r.logger.Info(
			"dns listening",
			"addr", addr,
			"upstream", cfg.Upstream.Server,
			"max_concurrency", maxConc,
		)
	}
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
