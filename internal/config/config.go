// Package config loads and validates ingest configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig         `mapstructure:"logging"`
	Run        RunConfig             `mapstructure:"run"`
	HTTP       HTTPConfig            `mapstructure:"http"`
	Politeness PolitenessConfig      `mapstructure:"politeness"`
	Enrich     EnrichConfig          `mapstructure:"enrich"`
	LLM        LLMConfig             `mapstructure:"llm"`
	Sink       SinkConfig            `mapstructure:"sink"`
	Notify     NotifyConfig          `mapstructure:"notify"`
	Metrics    MetricsConfig         `mapstructure:"metrics"`
	Proxy      ProxyConfig           `mapstructure:"proxy"`
	Lexicons   map[string]Lexicon    `mapstructure:"lexicons"`
	Sources    []ingest.SourceConfig `mapstructure:"sources"`
	UserAgents []string              `mapstructure:"user_agents"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// RunConfig holds per-invocation choices, usually set from CLI flags.
type RunConfig struct {
	Sources []string `mapstructure:"sources"`
	Pages   int      `mapstructure:"pages"`
	Limit   int      `mapstructure:"limit"`
	// Category overrides the listing category code; negative keeps each source's own.
	Category        int    `mapstructure:"category"`
	Collection      string `mapstructure:"collection"`
	Output          string `mapstructure:"output"`
	Format          string `mapstructure:"format"`
	Upload          bool   `mapstructure:"upload"`
	AI              bool   `mapstructure:"ai"`
	ParallelSources bool   `mapstructure:"parallel_sources"`
	LockFile        string `mapstructure:"lock_file"`
}

// HTTPConfig configures outbound request timeouts.
type HTTPConfig struct {
	TimeoutSeconds       int `mapstructure:"timeout_seconds"`
	DetailTimeoutSeconds int `mapstructure:"detail_timeout_seconds"`
}

// PolitenessConfig bounds the randomized delay between page and detail requests.
type PolitenessConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// EnrichConfig governs the AI summary stage.
type EnrichConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	MinDelay         time.Duration `mapstructure:"min_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	MinContentLength int           `mapstructure:"min_content_length"`
	FailureMarker    bool          `mapstructure:"failure_marker"`
	Splice           bool          `mapstructure:"splice"`
}

// LLMConfig describes the chat-completions endpoint used for summaries.
type LLMConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	Model          string  `mapstructure:"model"`
	APIKey         string  `mapstructure:"api_key"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxInputChars  int     `mapstructure:"max_input_chars"`
}

// SinkConfig selects and configures the upsert store.
type SinkConfig struct {
	Kind string `mapstructure:"kind"`
	URL  string `mapstructure:"url"`
	Key  string `mapstructure:"key"`
	DSN  string `mapstructure:"dsn"`
	Path string `mapstructure:"path"`
}

// NotifyConfig selects where insert notifications go.
type NotifyConfig struct {
	Kind      string `mapstructure:"kind"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig configures the optional pushgateway push at the end of a run.
type MetricsConfig struct {
	PushURL string `mapstructure:"push_url"`
	Job     string `mapstructure:"job"`
}

// ProxyConfig configures the relay server.
type ProxyConfig struct {
	Listen         string `mapstructure:"listen"`
	Upstream       string `mapstructure:"upstream"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Lexicon is one keyword profile used by the classifier and the trending scorer.
type Lexicon struct {
	High                  []string `mapstructure:"high"`
	Low                   []string `mapstructure:"low"`
	DefaultHighCategories []string `mapstructure:"default_high_categories"`
	Frontier              []string `mapstructure:"frontier"`
	Exclude               []string `mapstructure:"exclude"`
}

// Sink kinds.
const (
	SinkSupabase = "supabase"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkMemory   = "memory"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied Viper instance so CLI flags can be bound first.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if len(cfg.Lexicons) == 0 {
		cfg.Lexicons = DefaultLexicons()
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bindLegacyEnv keeps the unprefixed variable names deployments already export.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.api_key", "INGEST_LLM_API_KEY", "SILICONFLOW_API_KEY")
	_ = v.BindEnv("sink.url", "INGEST_SINK_URL", "SUPABASE_URL")
	_ = v.BindEnv("sink.key", "INGEST_SINK_KEY", "SUPABASE_KEY")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("run.pages", 3)
	v.SetDefault("run.limit", 20)
	v.SetDefault("run.category", -1)
	v.SetDefault("run.format", "json")
	v.SetDefault("run.upload", false)
	v.SetDefault("run.ai", false)
	v.SetDefault("run.parallel_sources", false)
	v.SetDefault("run.lock_file", "")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.detail_timeout_seconds", 10)
	v.SetDefault("politeness.min_delay", "1500ms")
	v.SetDefault("politeness.max_delay", "3s")
	v.SetDefault("enrich.concurrency", 1)
	v.SetDefault("enrich.min_delay", "1s")
	v.SetDefault("enrich.max_delay", "4s")
	v.SetDefault("enrich.min_content_length", 100)
	v.SetDefault("enrich.failure_marker", false)
	v.SetDefault("enrich.splice", true)
	v.SetDefault("llm.endpoint", "https://api.siliconflow.cn/v1/chat/completions")
	v.SetDefault("llm.model", "Qwen/Qwen2.5-7B-Instruct")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.max_input_chars", 3000)
	v.SetDefault("sink.kind", SinkSupabase)
	v.SetDefault("sink.path", "anthropo-reader.db")
	v.SetDefault("notify.kind", "none")
	v.SetDefault("metrics.job", "anthropo-reader")
	v.SetDefault("proxy.listen", ":8787")
	v.SetDefault("proxy.upstream", "https://jw.scut.edu.cn")
	v.SetDefault("proxy.timeout_seconds", 15)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.Pages <= 0 {
		return fmt.Errorf("run.pages must be > 0")
	}
	if c.Run.Limit <= 0 {
		return fmt.Errorf("run.limit must be > 0")
	}
	switch c.Run.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("run.format must be json or yaml, got %q", c.Run.Format)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Politeness.MinDelay < 0 || c.Politeness.MaxDelay < c.Politeness.MinDelay {
		return fmt.Errorf("politeness delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Enrich.Concurrency <= 0 {
		return fmt.Errorf("enrich.concurrency must be > 0")
	}
	if c.Enrich.MinDelay < 0 || c.Enrich.MaxDelay < c.Enrich.MinDelay {
		return fmt.Errorf("enrich delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be > 0")
	}
	switch c.Sink.Kind {
	case SinkSupabase, SinkPostgres, SinkSQLite, SinkMemory:
	default:
		return fmt.Errorf("sink.kind %q is not supported", c.Sink.Kind)
	}
	switch c.Notify.Kind {
	case "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set for pubsub")
		}
	default:
		return fmt.Errorf("notify.kind %q is not supported", c.Notify.Kind)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Key == "" {
			return fmt.Errorf("sources[%d].key must be set", i)
		}
		if _, dup := seen[src.Key]; dup {
			return fmt.Errorf("sources[%d].key %q is duplicated", i, src.Key)
		}
		seen[src.Key] = struct{}{}
		switch src.Kind {
		case ingest.KindSession, ingest.KindSearch, ingest.KindFeed:
		default:
			return fmt.Errorf("sources[%d].kind %q is not supported", i, src.Kind)
		}
		if src.Collection == "" {
			return fmt.Errorf("sources[%d].collection must be set", i)
		}
		if src.Lexicon != "" {
			if _, ok := c.Lexicons[src.Lexicon]; !ok {
				return fmt.Errorf("sources[%d].lexicon %q is not defined", i, src.Lexicon)
			}
		}
	}
	return nil
}

// Source looks up a configured source by key.
func (c Config) Source(key string) (ingest.SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.Key == key {
			return src, true
		}
	}
	return ingest.SourceConfig{}, false
}

// Selected resolves Run.Sources to source configs, in the order given. An empty selection means
// every configured source.
func (c Config) Selected() ([]ingest.SourceConfig, error) {
	if len(c.Run.Sources) == 0 {
		return append([]ingest.SourceConfig(nil), c.Sources...), nil
	}
	out := make([]ingest.SourceConfig, 0, len(c.Run.Sources))
	for _, key := range c.Run.Sources {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		src, ok := c.Source(key)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", key)
		}
		out = append(out, src)
	}
	return out, nil
}

// HTTPTimeout converts the HTTP timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Timeout converts the LLM request timeout to a duration.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// DetailTimeout converts the detail-page timeout to a duration.
func (c Config) DetailTimeout() time.Duration {
	return time.Duration(c.HTTP.DetailTimeoutSeconds) * time.Second
}
