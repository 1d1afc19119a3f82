// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config turns viper settings into a validated types.Config.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/publish"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultPostPrefix opens every post.
const DefaultPostPrefix = "C(・ω・ )つ みんなー！"

// SetDefaults registers the default for every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logs_dir", "logs")

	v.SetDefault("execution.wait_between_sets", "10s")
	v.SetDefault("execution.candidate_delay", "5s")
	v.SetDefault("execution.test_mode", false)

	v.SetDefault("source.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.page_size", search.DefaultPageSize)
	v.SetDefault("source.page_delay", search.DefaultPageDelay)
	v.SetDefault("source.attempts", search.DefaultAttempts)
	v.SetDefault("source.base_delay", search.DefaultBaseDelay)
	v.SetDefault("source.requests_per_second", 1.0/3)

	v.SetDefault("download.papers_dir", "papers")
	v.SetDefault("download.timeout", "2m")
	v.SetDefault("download.attempts", 3)
	v.SetDefault("download.retry_delay", "5s")
	v.SetDefault("download.max_bytes", 100<<20)

	v.SetDefault("extract.backend", string(types.ExtractPdftotext))
	v.SetDefault("extract.timeout", "2m")

	v.SetDefault("summarize.backend", string(types.SummarizeOpenAI))
	v.SetDefault("summarize.api_key", "")
	v.SetDefault("summarize.max_retries", 2)
	v.SetDefault("summarize.system_prompt", summarize.DefaultSystemPrompt)
	v.SetDefault("summarize.prompt", summarize.DefaultPrompt)
	v.SetDefault("summarize.max_input_chars", summarize.DefaultMaxInputChars)
	v.SetDefault("summarize.max_tokens", summarize.DefaultMaxTokens)
	v.SetDefault("summarize.timeout", summarize.DefaultTimeout)
	v.SetDefault("summarize.base_delay", "2s")

	v.SetDefault("publish.base_url", "https://api.x.com")
	v.SetDefault("publish.timeout", "30s")
	v.SetDefault("publish.access_token", "")
	v.SetDefault("publish.prefix", DefaultPostPrefix)
	v.SetDefault("publish.max_length", publish.DefaultMaxLength)
	v.SetDefault("publish.max_posts_per_set", 0)
	v.SetDefault("publish.min_interval", "30s")
	v.SetDefault("publish.rate_limit_wait", publish.DefaultRateLimitWait)

	v.SetDefault("ledger.backend", string(types.LedgerSQLite))
	v.SetDefault("ledger.path", filepath.Join("data", "ledger.db"))
	v.SetDefault("ledger.redis_addr", "")
	v.SetDefault("ledger.redis_prefix", ledger.DefaultRedisPrefix)
	v.SetDefault("ledger.cache_size", ledger.DefaultCacheSize)

	v.SetDefault("manifest.backend", string(types.ManifestFile))
	v.SetDefault("manifest.path", filepath.Join("data", "manifest.yaml"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.job", "paper_digest")
}

// decodeHook accepts durations as Go strings ("90s") or as bare integers,
// which are read as seconds.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	durationType := reflect.TypeOf(time.Duration(0))
	if to != durationType || from == durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}

// Load unmarshals v into a Config, fills credentials from s where the
// config leaves them empty, normalizes the search sets and validates the
// result.
func Load(v *viper.Viper, s secrets.Secrets) (*types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	sets, err := decodeSearchSets(v.Get("search_sets"))
	if err != nil {
		return nil, err
	}
	cfg.SearchSets = sets
	normalizeSearchSets(&cfg)

	if cfg.Summarize.Model == "" {
		cfg.Summarize.Model = summarize.DefaultModel(cfg.Summarize.Backend)
	}
	switch cfg.Summarize.Backend {
	case types.SummarizeClaude:
		cfg.Summarize.APIKey = s.Get(secrets.AnthropicAPIKey, cfg.Summarize.APIKey)
	default:
		cfg.Summarize.APIKey = s.Get(secrets.OpenAIAPIKey, cfg.Summarize.APIKey)
	}
	cfg.Publish.AccessToken = s.Get(secrets.XAccessToken, cfg.Publish.AccessToken)
	cfg.Ledger.RedisAddr = s.Get(secrets.RedisURL, cfg.Ledger.RedisAddr)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// searchSetInput mirrors types.SearchSet with the fields that need
// presence detection.
type searchSetInput struct {
	Name           string   `mapstructure:"name"`
	Keywords       []string `mapstructure:"keywords"`
	UseOr          bool     `mapstructure:"use_or"`
	OutputDir      string   `mapstructure:"output_dir"`
	LogDir         string   `mapstructure:"log_dir"`
	MaxResults     int      `mapstructure:"max_results"`
	MaxProcess     int      `mapstructure:"max_process"`
	PublishEnabled *bool    `mapstructure:"publish_enabled"`
	TweetEnabled   *bool    `mapstructure:"tweet_enabled"`
	Prompt         string   `mapstructure:"prompt"`
}

func decodeSearchSets(raw any) ([]types.SearchSet, error) {
	if raw == nil {
		return nil, nil
	}
	var in []searchSetInput
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook(),
		WeaklyTypedInput: true,
		Result:           &in,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding search_sets: %w", err)
	}

	out := make([]types.SearchSet, 0, len(in))
	for _, s := range in {
		enabled := true
		switch {
		case s.PublishEnabled != nil:
			enabled = *s.PublishEnabled
		case s.TweetEnabled != nil:
			enabled = *s.TweetEnabled
		}
		out = append(out, types.SearchSet{
			Name:           s.Name,
			Keywords:       s.Keywords,
			UseOr:          s.UseOr,
			OutputDir:      s.OutputDir,
			LogDir:         s.LogDir,
			MaxResults:     s.MaxResults,
			MaxProcess:     s.MaxProcess,
			PublishEnabled: enabled,
			Prompt:         s.Prompt,
		})
	}
	return out, nil
}

// normalizeSearchSets derives names, result caps and log directories.
func normalizeSearchSets(cfg *types.Config) {
	for i := range cfg.SearchSets {
		s := &cfg.SearchSets[i]
		for j, k := range s.Keywords {
			s.Keywords[j] = strings.TrimSpace(k)
		}
		if s.Name == "" {
			s.Name = SetName(s.Keywords)
		}
		if s.MaxResults == 0 {
			s.MaxResults = search.DefaultMaxResults
		}
		if s.LogDir == "" {
			s.LogDir = filepath.Join(cfg.LogsDir, s.Name)
		}
	}
}

// SetName derives a search set name from its keywords.
func SetName(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.Join(strings.Fields(k), "-")
		if k != "" {
			parts = append(parts, strings.ToLower(k))
		}
	}
	return strings.Join(parts, "_")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, set name uniqueness and that every
// prompt template parses.
func Validate(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.SearchSets))
	for _, s := range cfg.SearchSets {
		if seen[s.Name] {
			return fmt.Errorf("invalid config: duplicate search set name %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := summarize.ParsePrompt(s.Prompt); err != nil {
			return fmt.Errorf("invalid config: search set %q: %w", s.Name, err)
		}
	}
	if _, err := summarize.ParsePrompt(cfg.Summarize.Prompt); err != nil {
		return fmt.Errorf("invalid config: summarize.prompt: %w", err)
	}
	return nil
}
