package constants

// Application constants
const (
	// Application metadata
	AppName        = "anonyguard"
	AppDescription = "Statistical disclosure control for tabular datasets"
	AppVersion     = "0.1.0"

	// Configuration
	EnvPrefix         = "ANONYGUARD"
	DefaultConfigName = ".anonyguard"
	DefaultConfigType = "yaml"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"

	// Privacy thresholds
	DefaultKThreshold = 1
	DefaultLThreshold = 0.0
	DefaultTThreshold = 0.5

	// Composite score weights
	DefaultWeightK = 0.5
	DefaultWeightL = 0.25
	DefaultWeightT = 0.25

	// Noise defaults
	DefaultEpsilon         = 1.0
	DefaultKeepProbability = 0.5
	DefaultBudgetEpsilon   = 0.0 // 0 disables budget accounting limits
	NoiseSourceSeeded      = "seeded"
	NoiseSourceSecure      = "secure"

	// Reporting
	DefaultMaxViolationsShown = 10
	ScoreDisplayPrecision     = 3

	// Metrics
	DefaultMetricsNamespace = "anonyguard"
)

// Report output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)
