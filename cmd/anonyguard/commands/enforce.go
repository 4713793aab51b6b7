package commands

import (
	"github.com/spf13/cobra"

	"github.com/inferloop/anonyguard/cmd/anonyguard/config"
	"github.com/inferloop/anonyguard/internal/export"
	"github.com/inferloop/anonyguard/internal/privacy"
)

type EnforceOptions struct {
	InputFile     string
	OutputFile    string
	ReportFormat  string
	MaxIterations int
	FailOnEmpty   bool
	Thresholds    thresholdFlags
}

func NewEnforceCmd(global *GlobalOptions) *cobra.Command {
	opts := &EnforceOptions{}

	cmd := &cobra.Command{
		Use:   "enforce",
		Short: "Drop rows until every equivalence class meets the thresholds",
		Long: `Repeatedly evaluate the dataset and remove every row belonging to a
violating equivalence class until no violations remain. The filtered dataset
is written to --output and a summary report is printed.`,
		Example: `  # Enforce and write the filtered dataset
  anonyguard enforce --input patients.csv --qi age,gender --sensitive diagnosis --output safe.csv

  # Treat an emptied dataset as a failure
  anonyguard enforce -i patients.csv -q age -s diagnosis --k 3 -o safe.csv --fail-on-empty`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnforce(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input dataset, .csv or .json (required)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "", "Filtered dataset, .csv or .json; - for CSV on stdout (required)")
	cmd.Flags().StringVar(&opts.ReportFormat, "format", "", "Report format (text, json, yaml)")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "Cap on removal passes (0 uses the configured value or rows+1)")
	cmd.Flags().BoolVar(&opts.FailOnEmpty, "fail-on-empty", false, "Exit with an error when enforcement removes every row")
	opts.Thresholds.register(cmd)

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runEnforce(cmd *cobra.Command, global *GlobalOptions, opts *EnforceOptions) error {
	rt, err := newRuntime(global, func(cfg *config.Config) {
		opts.Thresholds.apply(cmd, cfg)
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	dataset, err := rt.io.ReadFile(ctx, opts.InputFile, export.DefaultOptions())
	if err != nil {
		return err
	}

	result, err := rt.engine.Enforce(ctx, dataset, privacy.EnforceRequest{
		EvaluateRequest: opts.Thresholds.request(),
		MaxIterations:   opts.MaxIterations,
	})
	if err != nil {
		return err
	}

	if err := rt.io.WriteFile(ctx, opts.OutputFile, result.Dataset, export.DefaultOptions()); err != nil {
		return err
	}

	if err := rt.report(reportWriter(cmd, opts.OutputFile), opts.ReportFormat, &export.Report{
		Operation:   "enforce",
		Input:       opts.InputFile,
		Output:      opts.OutputFile,
		Enforcement: result,
	}); err != nil {
		return err
	}

	if err := rt.finish(); err != nil {
		return err
	}

	if opts.FailOnEmpty && result.Exhausted() {
		return errEmptyRelease
	}
	return nil
}
