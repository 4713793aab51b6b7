package commands

import (
	"github.com/spf13/cobra"

	"github.com/inferloop/anonyguard/cmd/anonyguard/config"
	"github.com/inferloop/anonyguard/internal/export"
	"github.com/inferloop/anonyguard/internal/privacy"
)

type NoiseOptions struct {
	InputFile          string
	OutputFile         string
	ReportFormat       string
	CategoricalColumns []string
	NumericColumns     []string
	OtherColumns       []string
	Epsilon            float64
	KeepProbability    float64
	Source             string
	Seed               int64
}

func NewNoiseCmd(global *GlobalOptions) *cobra.Command {
	opts := &NoiseOptions{}

	cmd := &cobra.Command{
		Use:   "noise",
		Short: "Add local differential privacy noise to selected columns",
		Long: `Perturb numeric columns with Laplace noise scaled to their range and
categorical columns with randomized response. Columns not listed are copied
unchanged.`,
		Example: `  # Laplace on age, randomized response on diagnosis
  anonyguard noise --input patients.csv --numeric age --categorical diagnosis --epsilon 1.0 --output noisy.csv

  # Reproducible run
  anonyguard noise -i patients.csv --numeric age --epsilon 0.5 --seed 7 -o noisy.csv

  # Require every column to be classified
  anonyguard noise -i patients.csv --numeric age --categorical gender,diagnosis --other id --epsilon 1 -o noisy.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNoise(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input dataset, .csv or .json (required)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "", "Noised dataset, .csv or .json; - for CSV on stdout (required)")
	cmd.Flags().StringVar(&opts.ReportFormat, "format", "", "Report format (text, json, yaml)")
	cmd.Flags().StringSliceVar(&opts.CategoricalColumns, "categorical", nil, "Columns for randomized response")
	cmd.Flags().StringSliceVar(&opts.NumericColumns, "numeric", nil, "Columns for the Laplace mechanism")
	cmd.Flags().StringSliceVar(&opts.OtherColumns, "other", nil, "Columns left untouched; when set, all columns must be classified")
	cmd.Flags().Float64VarP(&opts.Epsilon, "epsilon", "e", 0, "Privacy parameter epsilon, > 0 (required)")
	cmd.Flags().Float64Var(&opts.KeepProbability, "keep-probability", 0, "Probability of keeping a categorical value")
	cmd.Flags().StringVar(&opts.Source, "source", "", "Noise source (seeded, secure)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Seed for the seeded source (0 uses the clock)")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("epsilon")

	return cmd
}

func runNoise(cmd *cobra.Command, global *GlobalOptions, opts *NoiseOptions) error {
	flags := cmd.Flags()
	rt, err := newRuntime(global, func(cfg *config.Config) {
		if flags.Changed("source") {
			cfg.Noise.Source = opts.Source
		}
		if flags.Changed("seed") {
			cfg.Noise.Seed = opts.Seed
		}
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	dataset, err := rt.io.ReadFile(ctx, opts.InputFile, export.DefaultOptions())
	if err != nil {
		return err
	}

	req := privacy.NoiseRequest{
		CategoricalColumns: opts.CategoricalColumns,
		NumericColumns:     opts.NumericColumns,
		Epsilon:            opts.Epsilon,
	}
	if flags.Changed("other") {
		req.OtherColumns = append([]string{}, opts.OtherColumns...)
	}
	if flags.Changed("keep-probability") {
		p := opts.KeepProbability
		req.KeepProbability = &p
	}

	result, err := rt.engine.AddNoise(ctx, dataset, req)
	if err != nil {
		return err
	}

	if err := rt.io.WriteFile(ctx, opts.OutputFile, result.Dataset, export.DefaultOptions()); err != nil {
		return err
	}

	budget := rt.engine.Budget()
	if err := rt.report(reportWriter(cmd, opts.OutputFile), opts.ReportFormat, &export.Report{
		Operation: "noise",
		Input:     opts.InputFile,
		Output:    opts.OutputFile,
		Noise:     result,
		Budget:    &budget,
	}); err != nil {
		return err
	}

	return rt.finish()
}
