package commands

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/anonyguard/cmd/anonyguard/config"
	"github.com/inferloop/anonyguard/internal/export"
	"github.com/inferloop/anonyguard/internal/observability/metrics"
	"github.com/inferloop/anonyguard/internal/privacy"
	"github.com/inferloop/anonyguard/pkg/errors"
)

var errEmptyRelease = errors.NewPrivacyError(errors.CodeEmptyRelease,
	"enforcement removed every row; nothing is safe to release")

// GlobalOptions holds the persistent root flags.
type GlobalOptions struct {
	ConfigFile string
	Verbose    bool
}

// appRuntime bundles everything a command needs once configuration is loaded.
type appRuntime struct {
	config  *config.Config
	logger  *logrus.Logger
	engine  *privacy.Engine
	metrics *metrics.PrometheusMetrics
	io      *export.ExportEngine
}

func newRuntime(g *GlobalOptions, tweak func(*config.Config)) (*appRuntime, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := config.NewLogger(cfg.Logging)
	if g.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	rt := &appRuntime{
		config: cfg,
		logger: logger,
		io:     export.NewExportEngine(logger),
	}

	var recorder privacy.Recorder
	if cfg.Metrics.Enabled {
		rt.metrics, err = metrics.NewPrometheusMetrics(&metrics.PrometheusConfig{
			Namespace: cfg.Metrics.Namespace,
		}, logger)
		if err != nil {
			return nil, err
		}
		recorder = rt.metrics
	}

	rt.engine, err = privacy.NewEngine(cfg.EngineConfig(), logger, recorder)
	if err != nil {
		return nil, err
	}

	return rt, nil
}

// finish flushes metrics to the configured textfile, if any.
func (rt *appRuntime) finish() error {
	if rt.metrics == nil || rt.config.Metrics.Textfile == "" {
		return nil
	}
	return rt.metrics.WriteTextfile(rt.config.Metrics.Textfile)
}

func (rt *appRuntime) report(w io.Writer, format string, report *export.Report) error {
	if format == "" {
		format = rt.config.Report.Format
	}
	return export.WriteReport(w, report, format, rt.config.Report.MaxViolations)
}

// reportWriter sends the report to stderr when the dataset itself goes to
// stdout.
func reportWriter(cmd *cobra.Command, datasetOutput string) io.Writer {
	if datasetOutput == "-" || datasetOutput == "" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// thresholdFlags are shared by evaluate and enforce.
type thresholdFlags struct {
	QuasiIdentifiers []string
	Sensitive        []string
	K                int
	L                float64
	T                float64
	WeightK          float64
	WeightL          float64
	WeightT          float64
}

func (f *thresholdFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.QuasiIdentifiers, "qi", "q", nil, "Quasi-identifier columns (required)")
	cmd.Flags().StringSliceVarP(&f.Sensitive, "sensitive", "s", nil, "Sensitive attribute columns (required)")
	cmd.Flags().IntVar(&f.K, "k", 0, "k-anonymity threshold; classes with k at or below it violate")
	cmd.Flags().Float64Var(&f.L, "l", 0, "l-diversity threshold; classes with l at or below it violate")
	cmd.Flags().Float64Var(&f.T, "t", 0, "t-closeness threshold; classes with t above it violate")
	cmd.Flags().Float64Var(&f.WeightK, "wk", 0, "Score weight for k-anonymity")
	cmd.Flags().Float64Var(&f.WeightL, "wl", 0, "Score weight for l-diversity")
	cmd.Flags().Float64Var(&f.WeightT, "wt", 0, "Score weight for t-closeness")

	cmd.MarkFlagRequired("qi")
	cmd.MarkFlagRequired("sensitive")
}

// apply copies explicitly set flags over the loaded configuration.
func (f *thresholdFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("k") {
		cfg.Privacy.KThreshold = f.K
	}
	if flags.Changed("l") {
		cfg.Privacy.LThreshold = f.L
	}
	if flags.Changed("t") {
		cfg.Privacy.TThreshold = f.T
	}
	if flags.Changed("wk") {
		cfg.Privacy.Weights.K = f.WeightK
	}
	if flags.Changed("wl") {
		cfg.Privacy.Weights.L = f.WeightL
	}
	if flags.Changed("wt") {
		cfg.Privacy.Weights.T = f.WeightT
	}
}

func (f *thresholdFlags) request() privacy.EvaluateRequest {
	return privacy.EvaluateRequest{
		QuasiIdentifiers:    f.QuasiIdentifiers,
		SensitiveAttributes: f.Sensitive,
	}
}

func openReportOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return fallback, func() error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}
