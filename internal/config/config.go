// Package config provides configuration loading and validation for wardendns.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (bare names: DNS_IP, API_PORT, ...)
//  2. Hardcoded defaults
//
// An optional YAML file can be layered in below the environment if
// WARDENDNS_CONFIG points at one; this is a convenience for local
// development, not part of the documented surface.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults and direct env bindings.
func initConfig() (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// Each key is bound to its bare environment variable name individually;
	// the spec's env vars (DNS_IP, API_PORT, ...) carry no common prefix.
	envBindings := map[string]string{
		"dns.host":                "DNS_IP",
		"dns.port":                "DNS_PORT",
		"api.host":                "API_IP",
		"api.port":                "API_PORT",
		"store.database_url":      "SQLALCHEMY_DATABASE_URL",
		"moderation.openai_key":   "OPENAI_API_KEY",
		"api.secret_key":          "SECRET_KEY",
		"upstream.server":         "UPSTREAM_SERVER",
		"upstream.timeout":        "UPSTREAM_TIMEOUT",
		"classifier.queue_cap":    "CLASSIFIER_QUEUE_CAPACITY",
		"classifier.llm_ttl":      "CLASSIFIER_LLM_TTL",
		"classifier.fetch_tmo":    "CLASSIFIER_FETCH_TIMEOUT",
		"classifier.moderate_tmo": "CLASSIFIER_MODERATE_TIMEOUT",
		"classifier.max_bytes":    "CLASSIFIER_MAX_FETCH_BYTES",
		"classifier.grace":        "CLASSIFIER_SHUTDOWN_GRACE",
		"api.token_ttl":           "API_TOKEN_TTL",
		"logging.level":           "LOG_LEVEL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if configPath := strings.TrimSpace(os.Getenv("WARDENDNS_CONFIG")); configPath != "" {
		v.SetConfigFile(configPath)
		_ = v.ReadInConfig() // best-effort; env and defaults still apply
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dns.host", "127.0.0.1")
	v.SetDefault("dns.port", 5353)
	v.SetDefault("dns.workers", "auto")
	v.SetDefault("dns.max_concurrency", 0)
	v.SetDefault("dns.upstream_socket_pool_size", 0)

	v.SetDefault("upstream.server", "8.8.8.8:53")
	v.SetDefault("upstream.timeout", "4s")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", true)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)

	v.SetDefault("rate_limit.cleanup_seconds", 60.0)
	v.SetDefault("rate_limit.max_ip_entries", 65536)
	v.SetDefault("rate_limit.max_prefix_entries", 16384)
	v.SetDefault("rate_limit.global_qps", 100000.0)
	v.SetDefault("rate_limit.global_burst", 100000)
	v.SetDefault("rate_limit.prefix_qps", 10000.0)
	v.SetDefault("rate_limit.prefix_burst", 20000)
	v.SetDefault("rate_limit.ip_qps", 5000.0)
	v.SetDefault("rate_limit.ip_burst", 10000)

	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.secret_key", "placeholder")
	v.SetDefault("api.token_ttl", "24h")

	v.SetDefault("store.database_url", "wardendns.db")

	v.SetDefault("moderation.openai_key", "")

	v.SetDefault("classifier.queue_cap", 1024)
	v.SetDefault("classifier.llm_ttl", "24h")
	v.SetDefault("classifier.fetch_tmo", "5s")
	v.SetDefault("classifier.moderate_tmo", "5s")
	v.SetDefault("classifier.max_bytes", 5000)
	v.SetDefault("classifier.grace", "5s")
}

func loadFromSource() (*Config, error) {
	v, err := initConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.DNS.Host = v.GetString("dns.host")
	cfg.DNS.Port = v.GetInt("dns.port")
	cfg.DNS.MaxConcurrency = v.GetInt("dns.max_concurrency")
	cfg.DNS.UpstreamSocketPoolSize = v.GetInt("dns.upstream_socket_pool_size")
	cfg.DNS.WorkersRaw = v.GetString("dns.workers")
	cfg.DNS.Workers = parseWorkers(cfg.DNS.WorkersRaw)

	cfg.Upstream.Server = v.GetString("upstream.server")
	cfg.Upstream.Timeout = v.GetString("upstream.timeout")

	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")

	cfg.RateLimit.CleanupSeconds = v.GetFloat64("rate_limit.cleanup_seconds")
	cfg.RateLimit.MaxIPEntries = v.GetInt("rate_limit.max_ip_entries")
	cfg.RateLimit.MaxPrefixEntries = v.GetInt("rate_limit.max_prefix_entries")
	cfg.RateLimit.GlobalQPS = v.GetFloat64("rate_limit.global_qps")
	cfg.RateLimit.GlobalBurst = v.GetInt("rate_limit.global_burst")
	cfg.RateLimit.PrefixQPS = v.GetFloat64("rate_limit.prefix_qps")
	cfg.RateLimit.PrefixBurst = v.GetInt("rate_limit.prefix_burst")
	cfg.RateLimit.IPQPS = v.GetFloat64("rate_limit.ip_qps")
	cfg.RateLimit.IPBurst = v.GetInt("rate_limit.ip_burst")

	cfg.API.Host = v.GetString("api.host")
	cfg.API.Port = v.GetInt("api.port")
	cfg.API.SecretKey = v.GetString("api.secret_key")
	cfg.API.TokenTTL = v.GetString("api.token_ttl")

	cfg.Store.DatabaseURL = v.GetString("store.database_url")

	cfg.Moderation.OpenAIAPIKey = v.GetString("moderation.openai_key")

	cfg.Classifier.QueueCapacity = v.GetInt("classifier.queue_cap")
	cfg.Classifier.LLMTTL = v.GetString("classifier.llm_ttl")
	cfg.Classifier.FetchTimeout = v.GetString("classifier.fetch_tmo")
	cfg.Classifier.ModerateTimeout = v.GetString("classifier.moderate_tmo")
	cfg.Classifier.MaxFetchBytes = v.GetInt("classifier.max_bytes")
	cfg.Classifier.ShutdownGrace = v.GetString("classifier.grace")

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseWorkers(raw string) WorkerSetting {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "auto" {
		return WorkerSetting{Mode: WorkersAuto}
	}
	if n, err := parsePositiveInt(raw); err == nil {
		return WorkerSetting{Mode: WorkersFixed, Value: n}
	}
	return WorkerSetting{Mode: WorkersAuto}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, errors.New("not positive")
	}
	return n, nil
}

func normalizeConfig(cfg *Config) error {
	if cfg.DNS.Port <= 0 || cfg.DNS.Port > 65535 {
		return errors.New("dns.port must be 1..65535")
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return errors.New("api.port must be 1..65535")
	}
	if strings.TrimSpace(cfg.Upstream.Server) == "" {
		cfg.Upstream.Server = "8.8.8.8:53"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Classifier.QueueCapacity <= 0 {
		cfg.Classifier.QueueCapacity = 1024
	}
	if cfg.Classifier.MaxFetchBytes <= 0 {
		cfg.Classifier.MaxFetchBytes = 5000
	}
	return nil
}
