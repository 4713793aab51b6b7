package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonyguard/internal/privacy"
	"github.com/inferloop/anonyguard/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, privacy.DefaultThresholds(), cfg.Thresholds())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
privacy:
  k_threshold: 3
  l_threshold: 0.2
  t_threshold: 0.4
  weights:
    k: 1
    l: 0
    t: 0
enforcement:
  max_iterations: 7
noise:
  source: secure
  keep_probability: 0.8
  budget_epsilon: 5
report:
  format: json
  max_violations: 3
logging:
  level: debug
  format: json
metrics:
  enabled: true
  textfile: /tmp/anonyguard.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, privacy.Thresholds{K: 3, L: 0.2, T: 0.4}, cfg.Thresholds())
	assert.Equal(t, privacy.Weights{K: 1}, cfg.Privacy.Weights)
	assert.Equal(t, 7, cfg.Enforcement.MaxIterations)
	assert.Equal(t, "secure", cfg.Noise.Source)
	assert.Equal(t, 0.8, cfg.Noise.KeepProbability)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "anonyguard", cfg.Metrics.Namespace)

	engineCfg := cfg.EngineConfig()
	assert.Equal(t, 7, engineCfg.MaxIterations)
	assert.Equal(t, 5.0, engineCfg.Noise.BudgetEpsilon)
	assert.Equal(t, 3, engineCfg.MaxViolationsShown)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "privacy:\n  k_threshold: 3\n")
	t.Setenv("ANONYGUARD_PRIVACY_K_THRESHOLD", "5")
	t.Setenv("ANONYGUARD_NOISE_SEED", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Privacy.KThreshold)
	assert.Equal(t, int64(42), cfg.Noise.Seed)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
privacy:
  k_threshold: 0
  t_threshold: 1.5
noise:
  source: dice
report:
  format: xml
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "noise.source")
	assert.Contains(t, err.Error(), "report.format")
	assert.Contains(t, err.Error(), "privacy")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfiguration)
	assert.Contains(t, err.Error(), "CONFIG_NOT_FOUND")
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "privacy: [\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfigurationLoad)
	assert.Contains(t, err.Error(), "CONFIG_LOAD_FAILED")
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = NewLogger(LoggingConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
