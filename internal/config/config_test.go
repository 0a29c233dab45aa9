package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.kickbase.com/v4", c.Kickbase.BaseURL)
	assert.Equal(t, []int{1}, c.Ingestion.CompetitionIDs)
	assert.Equal(t, 365, c.Ingestion.MarketValueDays)
	assert.Equal(t, 50, c.Ingestion.PerformanceMatchdays)
	assert.Equal(t, 12, c.Ingestion.Workers)
	assert.Equal(t, "abort", c.Ingestion.FailurePolicy)
	assert.Equal(t, "sqlite", c.Storage.Backend)
	assert.Equal(t, "22:15", c.Features.Cutoff)
	assert.Equal(t, 2.5, c.Features.IQRMultiplier)
	assert.Equal(t, 500, c.Model.Trees)
	assert.Equal(t, 20, c.Model.MaxDepth)
	assert.Equal(t, 5, c.Model.MinSamplesSplit)
	assert.Equal(t, 2, c.Model.MinSamplesLeaf)
	assert.Equal(t, 0.75, c.Model.TrainFraction)
	assert.Equal(t, 5000.0, c.Recommendations.MinPredictedGain)
	assert.Equal(t, 30*time.Second, c.Kickbase.Timeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
kickbase:
  league_name: Hannover Kivis
  timeout: 5s
ingestion:
  competition_ids: [1, 2]
  failure_policy: best_effort
storage:
  backend: memory
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Hannover Kivis", c.Kickbase.LeagueName)
	assert.Equal(t, 5*time.Second, c.Kickbase.Timeout)
	assert.Equal(t, []int{1, 2}, c.Ingestion.CompetitionIDs)
	assert.Equal(t, "best_effort", c.Ingestion.FailurePolicy)
	assert.Equal(t, "memory", c.Storage.Backend)
	assert.Equal(t, 12, c.Ingestion.Workers)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "storage:\n  backend: mongo\n"},
		{"postgres without dsn", "storage:\n  backend: postgres\n"},
		{"bad cutoff", "features:\n  cutoff: \"25:99\"\n"},
		{"bad timezone", "features:\n  timezone: Mars/Olympus\n"},
		{"bad policy", "ingestion:\n  failure_policy: retry\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"KICK_USER":     "me@example.com",
		"KICK_PASS":     "secret",
		"KICK_LEAGUE":   "Office League",
		"POSTGRES_DSN":  "postgres://u:p@localhost/db",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "me@example.com", c.Kickbase.Email)
	assert.Equal(t, "secret", c.Kickbase.Password)
	assert.Equal(t, "Office League", c.Kickbase.LeagueName)
	assert.Equal(t, "postgres://u:p@localhost/db", c.Storage.PostgresDSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("22:15")
	require.NoError(t, err)
	assert.Equal(t, 22, h)
	assert.Equal(t, 15, m)

	_, _, err = ParseClock("late")
	assert.Error(t, err)
}
