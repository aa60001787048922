package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Server    Server    `mapstructure:"server"`
	Cache     Cache     `mapstructure:"cache"`
	Fetch     Fetch     `mapstructure:"fetch"`
	AI        AI        `mapstructure:"ai"`
	Sources   Sources   `mapstructure:"sources"`
	Quotas    Quotas    `mapstructure:"quotas"`
	Feeds     Feeds     `mapstructure:"feeds"`
	Billing   Billing   `mapstructure:"billing"`
	AuthToken AuthToken `mapstructure:"auth"`
}

// App holds general application configuration.
type App struct {
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Cache holds content-cache configuration.
type Cache struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// TTL returns the cache freshness window as a duration.
func (c Cache) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// Fetch holds outbound HTTP configuration.
type Fetch struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	MirrorTimeout       time.Duration `mapstructure:"mirror_timeout"`
	MaxImageBytes       int64         `mapstructure:"max_image_bytes"`
	MaxDocumentBytes    int64         `mapstructure:"max_document_bytes"`
	AllowPrivateTargets bool          `mapstructure:"allow_private_targets"`
	UserAgent           string        `mapstructure:"user_agent"`
}

// AI holds provider-chain configuration. Order lists provider names; each
// provider carries its own per-tier model lists.
type AI struct {
	Order  []string     `mapstructure:"order"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	Groq   GroqConfig   `mapstructure:"groq"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	TierModels map[string][]string `mapstructure:"tier_models"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// GroqConfig holds configuration for the OpenAI-compatible HTTP provider.
type GroqConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Models  []string      `mapstructure:"models"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Sources holds per-adapter configuration.
type Sources struct {
	MediumMirrors      []string `mapstructure:"medium_mirrors"`
	MediumPublications []string `mapstructure:"medium_publications"`
	LibgenMirrors      []string `mapstructure:"libgen_mirrors"`
	SemanticScholarKey string   `mapstructure:"semantic_scholar_key"`
	MarkdownProxyURL   string   `mapstructure:"markdown_proxy_url"`
	ImageProxyURL      string   `mapstructure:"image_proxy_url"`
}

// Quotas maps action -> tier -> daily allowance. Zero means unlimited.
type Quotas struct {
	Daily map[string]map[string]int `mapstructure:"daily"`
}

// Allowance returns the daily quota for an action and tier (0 = unlimited).
func (q Quotas) Allowance(action, tier string) int {
	if m, ok := q.Daily[action]; ok {
		return m[tier]
	}
	return 0
}

// Feeds holds RSS discover configuration.
type Feeds struct {
	URLs        []string      `mapstructure:"urls"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxItems    int           `mapstructure:"max_items"`
	Concurrency int           `mapstructure:"concurrency"`
}

// Billing holds payment verification configuration.
type Billing struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// AuthToken holds static-token auth configuration (token -> email).
type AuthToken struct {
	Tokens map[string]string `mapstructure:"tokens"`
}

// Load reads configuration from an optional file, the environment
// (NOOK_ prefix), and built-in defaults, in descending precedence.
func Load(configFile string) (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("nook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/nook")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.data_dir", ".nook")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("cache.ttl_seconds", 3600)

	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.mirror_timeout", 10*time.Second)
	v.SetDefault("fetch.max_image_bytes", int64(10<<20))
	v.SetDefault("fetch.max_document_bytes", int64(50<<20))
	v.SetDefault("fetch.allow_private_targets", false)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	v.SetDefault("ai.order", []string{"gemini", "groq"})
	v.SetDefault("ai.gemini.timeout", 45*time.Second)
	v.SetDefault("ai.gemini.tier_models", map[string][]string{
		"seeker":  {"gemini-flash-lite-latest"},
		"insider": {"gemini-flash-latest", "gemini-flash-lite-latest"},
		"patron":  {"gemini-pro-latest", "gemini-flash-latest"},
	})
	v.SetDefault("ai.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.groq.models", []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"})
	v.SetDefault("ai.groq.timeout", 30*time.Second)

	v.SetDefault("sources.medium_mirrors", []string{
		"freedium-mirror.cfd",
		"readmedium.com",
		"freedium.cfd",
		"scribe.rip",
	})
	v.SetDefault("sources.medium_publications", []string{
		"towardsdatascience.com",
		"betterprogramming.pub",
		"levelup.gitconnected.com",
		"javascript.plainenglish.io",
		"blog.bitsrc.io",
		"itnext.io",
		"codeburst.io",
		"uxdesign.cc",
		"hackernoon.com",
	})
	v.SetDefault("sources.libgen_mirrors", []string{
		"libgen.is",
		"libgen.rs",
		"libgen.st",
	})
	v.SetDefault("sources.markdown_proxy_url", "https://r.jina.ai")
	v.SetDefault("sources.image_proxy_url", "https://images.weserv.nl")

	v.SetDefault("quotas.daily", map[string]map[string]int{
		"unlock":    {"seeker": 5, "insider": 50, "patron": 0},
		"summarize": {"seeker": 3, "insider": 25, "patron": 0},
		"chat":      {"seeker": 3, "insider": 25, "patron": 0},
	})

	v.SetDefault("feeds.timeout", 15*time.Second)
	v.SetDefault("feeds.max_items", 30)
	v.SetDefault("feeds.concurrency", 4)
}
