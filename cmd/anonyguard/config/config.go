package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/inferloop/anonyguard/internal/privacy"
	"github.com/inferloop/anonyguard/pkg/constants"
	"github.com/inferloop/anonyguard/pkg/errors"
)

type Config struct {
	Privacy     PrivacyConfig       `mapstructure:"privacy" yaml:"privacy"`
	Enforcement EnforcementConfig   `mapstructure:"enforcement" yaml:"enforcement"`
	Noise       privacy.NoiseConfig `mapstructure:"noise" yaml:"noise"`
	Report      ReportConfig        `mapstructure:"report" yaml:"report"`
	Logging     LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
}

type PrivacyConfig struct {
	KThreshold int             `mapstructure:"k_threshold" yaml:"k_threshold"`
	LThreshold float64         `mapstructure:"l_threshold" yaml:"l_threshold"`
	TThreshold float64         `mapstructure:"t_threshold" yaml:"t_threshold"`
	Weights    privacy.Weights `mapstructure:"weights" yaml:"weights"`
}

type EnforcementConfig struct {
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
}

type ReportConfig struct {
	MaxViolations int    `mapstructure:"max_violations" yaml:"max_violations"`
	Format        string `mapstructure:"format" yaml:"format"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Textfile  string `mapstructure:"textfile" yaml:"textfile"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Privacy: PrivacyConfig{
			KThreshold: constants.DefaultKThreshold,
			LThreshold: constants.DefaultLThreshold,
			TThreshold: constants.DefaultTThreshold,
			Weights:    privacy.DefaultWeights(),
		},
		Noise: privacy.NoiseConfig{
			Source:          constants.NoiseSourceSeeded,
			KeepProbability: constants.DefaultKeepProbability,
			BudgetEpsilon:   constants.DefaultBudgetEpsilon,
		},
		Report: ReportConfig{
			MaxViolations: constants.DefaultMaxViolationsShown,
			Format:        constants.FormatText,
		},
		Logging: LoggingConfig{
			Level:  constants.DefaultLogLevel,
			Format: constants.DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Namespace: constants.DefaultMetricsNamespace,
		},
	}
}

// Load reads cfgFile, or $HOME/.anonyguard/config.yaml when empty, and
// ANONYGUARD_* environment variables on top of the defaults. A missing
// default file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	config := Default()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, constants.DefaultConfigName))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType(constants.DefaultConfigType)
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.NewConfigLoadError(cfgFile, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, errors.NewConfigLoadError(v.ConfigFileUsed(), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("privacy.k_threshold", c.Privacy.KThreshold)
	v.SetDefault("privacy.l_threshold", c.Privacy.LThreshold)
	v.SetDefault("privacy.t_threshold", c.Privacy.TThreshold)
	v.SetDefault("privacy.weights.k", c.Privacy.Weights.K)
	v.SetDefault("privacy.weights.l", c.Privacy.Weights.L)
	v.SetDefault("privacy.weights.t", c.Privacy.Weights.T)
	v.SetDefault("enforcement.max_iterations", c.Enforcement.MaxIterations)
	v.SetDefault("noise.source", c.Noise.Source)
	v.SetDefault("noise.seed", c.Noise.Seed)
	v.SetDefault("noise.keep_probability", c.Noise.KeepProbability)
	v.SetDefault("noise.budget_epsilon", c.Noise.BudgetEpsilon)
	v.SetDefault("report.max_violations", c.Report.MaxViolations)
	v.SetDefault("report.format", c.Report.Format)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)
	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.namespace", c.Metrics.Namespace)
	v.SetDefault("metrics.textfile", c.Metrics.Textfile)
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	ve := errors.NewValidationErrors()

	if err := c.Thresholds().Validate(); err != nil {
		ve.Add("privacy", errors.CodeInvalidParameter, err.Error(), nil)
	}
	if err := c.Privacy.Weights.Validate(); err != nil {
		ve.Add("privacy.weights", errors.CodeInvalidParameter, err.Error(), c.Privacy.Weights)
	}
	if c.Enforcement.MaxIterations < 0 {
		ve.Add("enforcement.max_iterations", errors.CodeInvalidParameter, "must not be negative", c.Enforcement.MaxIterations)
	}
	switch c.Noise.Source {
	case constants.NoiseSourceSeeded, constants.NoiseSourceSecure:
	default:
		ve.Add("noise.source", errors.CodeInvalidConfiguration,
			fmt.Sprintf("must be %q or %q", constants.NoiseSourceSeeded, constants.NoiseSourceSecure), c.Noise.Source)
	}
	if err := privacy.ValidateKeepProbability(c.Noise.KeepProbability); err != nil {
		ve.Add("noise.keep_probability", errors.CodeInvalidParameter, "must be within [0, 1]", c.Noise.KeepProbability)
	}
	if c.Noise.BudgetEpsilon < 0 {
		ve.Add("noise.budget_epsilon", errors.CodeInvalidParameter, "must not be negative", c.Noise.BudgetEpsilon)
	}
	switch c.Report.Format {
	case constants.FormatText, constants.FormatJSON, constants.FormatYAML:
	default:
		ve.Add("report.format", errors.CodeInvalidConfiguration, "must be text, json or yaml", c.Report.Format)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		ve.Add("logging.level", errors.CodeInvalidConfiguration, err.Error(), c.Logging.Level)
	}

	return ve.AsConfigurationError()
}

// Thresholds returns the configured violation thresholds.
func (c *Config) Thresholds() privacy.Thresholds {
	return privacy.Thresholds{
		K: c.Privacy.KThreshold,
		L: c.Privacy.LThreshold,
		T: c.Privacy.TThreshold,
	}
}

// EngineConfig converts the file configuration into engine settings.
func (c *Config) EngineConfig() *privacy.EngineConfig {
	return &privacy.EngineConfig{
		Thresholds:         c.Thresholds(),
		Weights:            c.Privacy.Weights,
		MaxIterations:      c.Enforcement.MaxIterations,
		Noise:              c.Noise,
		MaxViolationsShown: c.Report.MaxViolations,
	}
}

// NewLogger builds a logger from the logging section. Unknown levels fall
// back to info.
func NewLogger(c LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(c.Level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logger.SetOutput(os.Stderr)

	return logger
}
