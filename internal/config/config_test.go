package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "ANALYSIS_PROVIDER", "MAX_CONTENT_CHARS", "FETCH_TIMEOUT", "CONTENT_ROOT", "WRITE_FALLBACK_CMD"} {
		t.Setenv(key, "")
	}
	cfg := Load(newTestViper())

	assert.Equal(t, "localhost:5888", cfg.Addr())
	assert.Equal(t, "to_process", cfg.PendingLabel)
	assert.Equal(t, ProviderMistral, cfg.AnalysisProvider)
	assert.Equal(t, "mistral-large-latest", cfg.MistralModel)
	assert.Equal(t, 15000, cfg.MaxContentChars)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "docs", cfg.ContentRoot)
	assert.Equal(t, "index.md", cfg.IndexFile)
	assert.Empty(t, cfg.WriteFallbackCmd)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_PROVIDER", " Gemini ")
	t.Setenv("MAX_CONTENT_CHARS", "2000")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("WRITE_FALLBACK_CMD", "sudo tee")
	t.Setenv("GITHUB_API_URL", "http://tracker.local/")

	cfg := Load(newTestViper())

	assert.Equal(t, ProviderGemini, cfg.AnalysisProvider)
	assert.Equal(t, 2000, cfg.MaxContentChars)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"sudo", "tee"}, cfg.WriteFallbackCmd)
	assert.Equal(t, "http://tracker.local", cfg.GitHubAPIURL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_CONTENT_CHARS", "-5")
	t.Setenv("FETCH_TIMEOUT", "0s")

	cfg := Load(newTestViper())

	assert.Equal(t, 15000, cfg.MaxContentChars)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
}

func TestNewViper_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veille.yaml")
	require.NoError(t, os.WriteFile(path, []byte("CONTENT_ROOT: site/docs\nREPO_NAME: notes\n"), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)

	cfg := Load(v)
	assert.Equal(t, "site/docs", cfg.ContentRoot)
	assert.Equal(t, "notes", cfg.RepoName)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateTracker(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	cfg := Load(newTestViper())
	require.Error(t, cfg.ValidateTracker())

	cfg.GitHubToken = "tok"
	require.NoError(t, cfg.ValidateTracker())

	cfg.RepoName = ""
	require.Error(t, cfg.ValidateTracker())
}

func TestValidateAnalysis(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name     string
		provider string
		set      func(*Config)
		wantErr  bool
	}{
		{"mistral missing key", ProviderMistral, func(*Config) {}, true},
		{"mistral ok", ProviderMistral, func(c *Config) { c.MistralAPIKey = "k" }, false},
		{"claude missing key", ProviderClaude, func(*Config) {}, true},
		{"claude ok", ProviderClaude, func(c *Config) { c.AnthropicAPIKey = "k" }, false},
		{"gemini ok", ProviderGemini, func(c *Config) { c.GeminiAPIKey = "k" }, false},
		{"unknown provider", "openai", func(*Config) {}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load(newTestViper())
			cfg.AnalysisProvider = tc.provider
			tc.set(&cfg)
			err := cfg.ValidateAnalysis()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
