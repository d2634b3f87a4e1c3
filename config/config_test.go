package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/student"
	"github.com/aula-hub/gradebook/internal/infrastructure/ingest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "gradebook", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*time.Second, cfg.Feedback.Timeout)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int64(ingest.DefaultMaxBytes), cfg.HTTP.MaxUploadBytes)
	require.NotNil(t, cfg.Features)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "gradebook.yaml", `
app:
  env: production
http:
  port: 9000
grading:
  min_score: 12
  min_attendance: 75
  session_level: secondary
feedback:
  provider: huggingface
  timeout: 10s
session:
  store: redis
  ttl: 30m
`)
	t.Setenv("GRADEBOOK_HTTP_PORT", "9100")
	t.Setenv("GRADEBOOK_HTTP_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GRADEBOOK_FEEDBACK_RATE_PER_MINUTE", "12")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9100, cfg.HTTP.Port, "environment overrides the file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 12.0, cfg.Feedback.RatePerMinute)
	assert.Equal(t, "huggingface", cfg.Feedback.Provider)
	assert.Equal(t, 10*time.Second, cfg.Feedback.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "redis", cfg.Session.Store)

	// untouched keys keep their defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Grading.TopN)
}

func TestLoad_DotEnv(t *testing.T) {
	path := writeFile(t, ".env", "GRADEBOOK_GRADING_MIN_SCORE=13\n")
	t.Cleanup(func() { os.Unsetenv("GRADEBOOK_GRADING_MIN_SCORE") })

	cfg, err := Load(Options{DotEnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, 13.0, cfg.Grading.MinScore)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(Options{DotEnvFile: filepath.Join(t.TempDir(), ".env")})
	require.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, "bad.yaml", "http: [unclosed")
	_, err := Load(Options{ConfigFile: path})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: "http.port",
		},
		{
			name:    "min score above scale",
			mutate:  func(c *Config) { c.Grading.MinScore = 21 },
			wantErr: "grading.min_score",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Session.Store = "etcd" },
			wantErr: "session.store",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Session.Store = "postgres" },
			wantErr: "database.url is required",
		},
		{
			name: "fallback equals provider",
			mutate: func(c *Config) {
				c.Feedback.FallbackProvider = c.Feedback.Provider
			},
			wantErr: "must differ",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Feedback.Provider = "openai" },
			wantErr: "feedback.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = 0
	cfg.Grading.TopN = 0
	cfg.Session.Store = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.port")
	assert.Contains(t, err.Error(), "grading.top_n")
	assert.Contains(t, err.Error(), "database.url")
}

func TestGradingThresholds(t *testing.T) {
	g := Default().Grading
	g.MinScore = 12
	g.SessionLevel = "mixed"

	th := g.Thresholds()
	assert.Equal(t, 12.0, th.Primary.MinScore)
	assert.Equal(t, 12.0, th.Secondary.MinScore)
	assert.True(t, th.Primary.LetterGrades)
	assert.False(t, th.Secondary.LetterGrades)
	assert.Equal(t, student.LevelMixed, th.SessionLevel)
	require.NoError(t, th.Validate())
}

func TestFeedbackAPIKey(t *testing.T) {
	f := FeedbackConfig{AnthropicAPIKey: "a", GeminiAPIKey: "g"}
	assert.Equal(t, "a", f.APIKey(feedback.ProviderAnthropic))
	assert.Equal(t, "g", f.APIKey(feedback.ProviderGemini))
	assert.Empty(t, f.APIKey(feedback.ProviderHuggingFace))
	assert.Empty(t, f.APIKey(feedback.ProviderNone))
}

func TestHTTPAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8081", HTTPConfig{Host: "127.0.0.1", Port: 8081}.Addr())
}
