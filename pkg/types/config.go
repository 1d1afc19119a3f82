// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchSet is one named keyword query and the publishing settings that go
// with it. Search sets are read-only while a run is in progress.
type SearchSet struct {
	// Name identifies the set in the ledger and the cursor store. Defaults to
	// the keywords joined with "_".
	Name string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`

	// Keywords are combined with AND (or OR when UseOr is set).
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords" validate:"required,min=1,dive,required"`

	// UseOr joins the keywords with OR instead of AND.
	UseOr bool `json:"use_or" yaml:"use_or" mapstructure:"use_or"`

	// OutputDir is where the downstream site generator renders this set.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir" validate:"required"`

	// LogDir receives per-candidate post logs. Defaults to logs/<name>.
	LogDir string `json:"log_dir" yaml:"log_dir" mapstructure:"log_dir"`

	// MaxResults caps the number of results requested from the source (default 100).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"gte=1"`

	// MaxProcess caps how many new candidates go through the pipeline per run.
	// Zero means no cap.
	MaxProcess int `json:"max_process" yaml:"max_process" mapstructure:"max_process" validate:"gte=0"`

	// PublishEnabled controls whether summaries are posted (default true).
	PublishEnabled bool `json:"publish_enabled" yaml:"publish_enabled" mapstructure:"publish_enabled"`

	// Prompt overrides the global summarization prompt template.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
}

// ExecutionConfig controls pacing and run-wide switches.
type ExecutionConfig struct {
	// WaitBetweenSets is the pause between consecutive search sets (default 10s).
	WaitBetweenSets time.Duration `json:"wait_between_sets" yaml:"wait_between_sets" mapstructure:"wait_between_sets" validate:"gte=0"`

	// CandidateDelay is the pause after each processed candidate (default 5s).
	CandidateDelay time.Duration `json:"candidate_delay" yaml:"candidate_delay" mapstructure:"candidate_delay" validate:"gte=0"`

	// TestMode processes a single candidate for the whole run and never publishes.
	TestMode bool `json:"test_mode" yaml:"test_mode" mapstructure:"test_mode"`
}

// SourceConfig holds settings for the arXiv search adapter.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the arXiv API query endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// PageSize is the number of entries requested per page (default 10).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size" validate:"gte=1"`

	// PageDelay is the pause between page requests (default 3s).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay" mapstructure:"page_delay" validate:"gte=0"`

	// Attempts is the number of tries per page fetch (default 3).
	Attempts int `json:"attempts" yaml:"attempts" mapstructure:"attempts" validate:"gte=1"`

	// BaseDelay is the first retry delay; it doubles per attempt (default 2s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`

	// RequestsPerSecond limits calls to the API (default 0.33).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
}

// DownloadConfig holds settings for PDF acquisition.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir is the base directory for cached PDFs and metadata records.
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir" validate:"required"`

	// Attempts is the total number of download tries (default 3).
	Attempts int `json:"attempts" yaml:"attempts" mapstructure:"attempts" validate:"gte=1"`

	// RetryDelay is the fixed pause between download tries (default 5s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`

	// MaxBytes caps the PDF size (default 100 MiB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes" validate:"gte=0"`
}

// ExtractBackend identifies the PDF text extraction tool.
type ExtractBackend string

const (
	ExtractPdftotext  ExtractBackend = "pdftotext"
	ExtractMarkitdown ExtractBackend = "markitdown"
)

// ExtractConfig holds settings for text extraction.
type ExtractConfig struct {
	// Backend selects the extraction tool: pdftotext or markitdown.
	Backend ExtractBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=pdftotext markitdown"`

	// Timeout bounds a single extraction run (default 2m).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// SummarizeBackend identifies the language-model provider.
type SummarizeBackend string

const (
	SummarizeClaude SummarizeBackend = "claude"
	SummarizeOpenAI SummarizeBackend = "openai"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retries after the first failed call (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
}

// SummarizeConfig holds settings for the summarization stage.
type SummarizeConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the provider: claude or openai.
	Backend SummarizeBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=claude openai"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// SystemPrompt sets the persona for the model.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" mapstructure:"system_prompt"`

	// Prompt is the default text/template prompt; {{.Text}} is the paper text.
	Prompt string `json:"prompt" yaml:"prompt" mapstructure:"prompt" validate:"required"`

	// MaxInputChars truncates the paper text before prompting (default 60000).
	MaxInputChars int `json:"max_input_chars" yaml:"max_input_chars" mapstructure:"max_input_chars" validate:"gte=1"`

	// MaxTokens caps the response length (default 300).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=1"`

	// Timeout bounds a single API call (default 90s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// BaseDelay is the first retry delay; it doubles per retry (default 2s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`
}

// PublishConfig holds settings for the publication sink.
type PublishConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the X API root (default https://api.x.com).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// AccessToken is the OAuth 2.0 user-context token used to post.
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty" mapstructure:"access_token"`

	// Prefix is prepended to every post.
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// MaxLength is the platform character limit (default 280).
	MaxLength int `json:"max_length" yaml:"max_length" mapstructure:"max_length" validate:"gte=4"`

	// MaxPostsPerSet caps posts per search set per run. Zero means no cap.
	MaxPostsPerSet int `json:"max_posts_per_set" yaml:"max_posts_per_set" mapstructure:"max_posts_per_set" validate:"gte=0"`

	// MinInterval is the minimum spacing between posts (default 30s).
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval" mapstructure:"min_interval" validate:"gte=0"`

	// RateLimitWait is used when a rate-limit response carries no reset hint (default 15m).
	RateLimitWait time.Duration `json:"rate_limit_wait" yaml:"rate_limit_wait" mapstructure:"rate_limit_wait" validate:"gte=0"`
}

// LedgerBackend identifies the idempotency ledger storage.
type LedgerBackend string

const (
	LedgerSQLite LedgerBackend = "sqlite"
	LedgerRedis  LedgerBackend = "redis"
)

// LedgerConfig holds settings for the idempotency ledger.
type LedgerConfig struct {
	// Backend selects sqlite or redis.
	Backend LedgerBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=sqlite redis"`

	// Path is the SQLite database file (default data/ledger.db).
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required_if=Backend sqlite"`

	// RedisAddr is host:port of the Redis server.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr" validate:"required_if=Backend redis"`

	// RedisPrefix namespaces ledger keys (default "paper-digest:ledger:").
	RedisPrefix string `json:"redis_prefix" yaml:"redis_prefix" mapstructure:"redis_prefix"`

	// CacheSize bounds the in-memory cache of processed ids (default 4096).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size" validate:"gte=1"`
}

// ManifestBackend identifies the run manifest storage.
type ManifestBackend string

const (
	ManifestFile   ManifestBackend = "file"
	ManifestSQLite ManifestBackend = "sqlite"
)

// ManifestConfig holds settings for the run manifest store.
type ManifestConfig struct {
	// Backend selects file (YAML) or sqlite.
	Backend ManifestBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=file sqlite"`

	// Path is the manifest file or database (default data/manifest.yaml).
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console pretty"`
}

// MetricsConfig holds Prometheus push settings for batch runs.
type MetricsConfig struct {
	// PushgatewayURL enables pushing run metrics when set.
	PushgatewayURL string `json:"pushgateway_url,omitempty" yaml:"pushgateway_url,omitempty" mapstructure:"pushgateway_url" validate:"omitempty,url"`

	// Job is the Pushgateway job label (default "paper_digest").
	Job string `json:"job" yaml:"job" mapstructure:"job"`
}

// Config groups every setting a run needs.
type Config struct {
	LogsDir    string          `json:"logs_dir" yaml:"logs_dir" mapstructure:"logs_dir" validate:"required"`
	SearchSets []SearchSet     `json:"search_sets" yaml:"search_sets" mapstructure:"-" validate:"required,min=1,dive"`
	Execution  ExecutionConfig `json:"execution" yaml:"execution" mapstructure:"execution"`
	Source     SourceConfig    `json:"source" yaml:"source" mapstructure:"source"`
	Download   DownloadConfig  `json:"download" yaml:"download" mapstructure:"download"`
	Extract    ExtractConfig   `json:"extract" yaml:"extract" mapstructure:"extract"`
	Summarize  SummarizeConfig `json:"summarize" yaml:"summarize" mapstructure:"summarize"`
	Publish    PublishConfig   `json:"publish" yaml:"publish" mapstructure:"publish"`
	Ledger     LedgerConfig    `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Manifest   ManifestConfig  `json:"manifest" yaml:"manifest" mapstructure:"manifest"`
	Logging    LoggingConfig   `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig   `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}
