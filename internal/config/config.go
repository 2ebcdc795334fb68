package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names accepted by ANALYSIS_PROVIDER.
const (
	ProviderMistral = "mistral"
	ProviderClaude  = "claude"
	ProviderGemini  = "gemini"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type Config struct {
	// Listener
	Host   string
	Port   string
	APIKey string

	// Issue tracker
	GitHubToken    string
	GitHubUser     string
	RepoName       string
	GitHubAPIURL   string
	PendingLabel   string
	DeployWorkflow string
	TrackerTimeout time.Duration

	// Analysis service
	AnalysisProvider string
	MistralAPIKey    string
	MistralModel     string
	AnthropicAPIKey  string
	AnthropicModel   string
	GeminiAPIKey     string
	GeminiModel      string
	SummaryLanguage  string
	AnalysisTimeout  time.Duration

	// Content extraction
	UserAgent            string
	FetchTimeout         time.Duration
	MaxContentChars      int
	MaxFetchBytes        int64
	PDFFallbackPdftotext bool

	// Output
	ContentRoot      string
	IndexFile        string
	IndexTitle       string
	WriteFallbackCmd []string

	// Logging
	LogLevel  string
	LogFormat string
}

// SetDefaults registers every key with its default so AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "localhost")
	v.SetDefault("PORT", "5888")
	v.SetDefault("VEILLE_API_KEY", "")

	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_USER", "martinregent")
	v.SetDefault("REPO_NAME", "veille")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("PENDING_LABEL", "to_process")
	v.SetDefault("DEPLOY_WORKFLOW", "process-and-deploy.yml")
	v.SetDefault("TRACKER_TIMEOUT", 10*time.Second)

	v.SetDefault("ANALYSIS_PROVIDER", ProviderMistral)
	v.SetDefault("MISTRAL_API_KEY", "")
	v.SetDefault("MISTRAL_MODEL", "mistral-large-latest")
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("SUMMARY_LANGUAGE", "français")
	v.SetDefault("ANALYSIS_TIMEOUT", 120*time.Second)

	v.SetDefault("USER_AGENT", defaultUserAgent)
	v.SetDefault("FETCH_TIMEOUT", 10*time.Second)
	v.SetDefault("MAX_CONTENT_CHARS", 15000)
	v.SetDefault("MAX_FETCH_BYTES", 10<<20)
	v.SetDefault("PDF_FALLBACK_PDFTOTEXT", true)

	v.SetDefault("CONTENT_ROOT", "docs")
	v.SetDefault("INDEX_FILE", "index.md")
	v.SetDefault("INDEX_TITLE", "Veille technologique")
	v.SetDefault("WRITE_FALLBACK_CMD", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// NewViper builds the layered source used by Load: a .env file (if present),
// an optional config file, then the process environment.
func NewViper(configFile string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("veille")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func Load(v *viper.Viper) Config {
	cfg := Config{
		Host:   v.GetString("HOST"),
		Port:   v.GetString("PORT"),
		APIKey: strings.TrimSpace(v.GetString("VEILLE_API_KEY")),

		GitHubToken:    strings.TrimSpace(v.GetString("GITHUB_TOKEN")),
		GitHubUser:     strings.TrimSpace(v.GetString("GITHUB_USER")),
		RepoName:       strings.TrimSpace(v.GetString("REPO_NAME")),
		GitHubAPIURL:   strings.TrimRight(v.GetString("GITHUB_API_URL"), "/"),
		PendingLabel:   v.GetString("PENDING_LABEL"),
		DeployWorkflow: v.GetString("DEPLOY_WORKFLOW"),
		TrackerTimeout: v.GetDuration("TRACKER_TIMEOUT"),

		AnalysisProvider: strings.ToLower(strings.TrimSpace(v.GetString("ANALYSIS_PROVIDER"))),
		MistralAPIKey:    strings.TrimSpace(v.GetString("MISTRAL_API_KEY")),
		MistralModel:     v.GetString("MISTRAL_MODEL"),
		AnthropicAPIKey:  strings.TrimSpace(v.GetString("ANTHROPIC_API_KEY")),
		AnthropicModel:   v.GetString("ANTHROPIC_MODEL"),
		GeminiAPIKey:     strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:      v.GetString("GEMINI_MODEL"),
		SummaryLanguage:  v.GetString("SUMMARY_LANGUAGE"),
		AnalysisTimeout:  v.GetDuration("ANALYSIS_TIMEOUT"),

		UserAgent:            v.GetString("USER_AGENT"),
		FetchTimeout:         v.GetDuration("FETCH_TIMEOUT"),
		MaxContentChars:      v.GetInt("MAX_CONTENT_CHARS"),
		MaxFetchBytes:        v.GetInt64("MAX_FETCH_BYTES"),
		PDFFallbackPdftotext: v.GetBool("PDF_FALLBACK_PDFTOTEXT"),

		ContentRoot:      v.GetString("CONTENT_ROOT"),
		IndexFile:        v.GetString("INDEX_FILE"),
		IndexTitle:       v.GetString("INDEX_TITLE"),
		WriteFallbackCmd: strings.Fields(v.GetString("WRITE_FALLBACK_CMD")),

		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if cfg.Port == "" {
		cfg.Port = "5888"
	}
	if cfg.TrackerTimeout <= 0 {
		cfg.TrackerTimeout = 10 * time.Second
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 120 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 15000
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = 10 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.ContentRoot == "" {
		cfg.ContentRoot = "docs"
	}
	if cfg.IndexFile == "" {
		cfg.IndexFile = "index.md"
	}
	if cfg.AnalysisProvider == "" {
		cfg.AnalysisProvider = ProviderMistral
	}

	return cfg
}

// ValidateTracker checks the settings needed to talk to the issue tracker.
func (c Config) ValidateTracker() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.GitHubUser == "" || c.RepoName == "" {
		return fmt.Errorf("GITHUB_USER and REPO_NAME are required")
	}
	return nil
}

// ValidateAnalysis checks that the selected provider has credentials.
func (c Config) ValidateAnalysis() error {
	switch c.AnalysisProvider {
	case ProviderMistral:
		if c.MistralAPIKey == "" {
			return fmt.Errorf("MISTRAL_API_KEY is required")
		}
	case ProviderClaude:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown ANALYSIS_PROVIDER %q", c.AnalysisProvider)
	}
	return nil
}

// Addr is the listen address of the capture listener.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
