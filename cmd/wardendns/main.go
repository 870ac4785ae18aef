package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsavage/wardendns/internal/api"
	"github.com/nsavage/wardendns/internal/config"
	"github.com/nsavage/wardendns/internal/logging"
	"github.com/nsavage/wardendns/internal/server"
	"github.com/nsavage/wardendns/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	dbURL    string
	host     string
	port     int
	workers  int
	jsonLogs bool
	debug    bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.dbURL, "db", "", "Override storage database URL")
	flag.StringVar(&f.host, "host", "", "Override DNS server bind host")
	flag.IntVar(&f.port, "port", 0, "Override DNS server bind port")
	flag.IntVar(&f.workers, "workers", -1, "Clamp GOMAXPROCS (can only reduce; -1 means default/auto)")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

// applyCLIOverrides applies command-line overrides to the config.
func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.dbURL != "" {
		cfg.Store.DatabaseURL = f.dbURL
	}
	if f.host != "" {
		cfg.DNS.Host = f.host
	}
	if f.port != 0 {
		cfg.DNS.Port = f.port
	}
	if f.workers >= 0 {
		cfg.DNS.Workers.Mode = config.WorkersFixed
		cfg.DNS.Workers.Value = f.workers
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("wardendns starting",
		"database", cfg.Store.DatabaseURL,
		"host", cfg.DNS.Host,
		"port", cfg.DNS.Port,
		"workers", cfg.DNS.Workers.String(),
	)
	logger.Info("rate limits", "effective", server.RateLimitsStartupLog())

	st, err := store.Open(cfg.Store.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	apiSrv := api.New(cfg, st, logger)
	logger.Info("control API starting", "addr", apiSrv.Addr())

	go func() {
		serveErr := apiSrv.ListenAndServe()
		if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) {
			return
		}
		logger.Error("control API error", "err", serveErr)
		cancel()
	}()

	runner := server.NewRunner(logger)
	runErr := runner.Run(ctx, cfg, st)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = apiSrv.Shutdown(shutdownCtx)
	shutdownCancel()
	logger.Info("control API stopped")

	if runErr != nil {
		return fmt.Errorf("server exited with error: %w", runErr)
	}
	return nil
}
