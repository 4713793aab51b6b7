package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inferloop/anonyguard/internal/privacy"
	"github.com/inferloop/anonyguard/pkg/constants"
)

// Report is what the CLI prints after an operation. Only the sections that
// apply are set.
type Report struct {
	Operation   string                     `json:"operation" yaml:"operation"`
	Input       string                     `json:"input,omitempty" yaml:"input,omitempty"`
	Output      string                     `json:"output,omitempty" yaml:"output,omitempty"`
	Evaluation  *privacy.PrivacyEvaluation `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	Enforcement *privacy.EnforcementResult `json:"enforcement,omitempty" yaml:"enforcement,omitempty"`
	Noise       *privacy.NoiseResult       `json:"noise,omitempty" yaml:"noise,omitempty"`
	Budget      *privacy.BudgetStatus      `json:"budget,omitempty" yaml:"budget,omitempty"`
}

// WriteReport renders the report as text, JSON or YAML. maxViolations
// limits how many violations are listed; a negative value lists them all.
func WriteReport(w io.Writer, report *Report, format string, maxViolations int) error {
	trimmed := trimReport(report, maxViolations)

	switch format {
	case constants.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trimmed)
	case constants.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(trimmed); err != nil {
			return err
		}
		return enc.Close()
	case constants.FormatText, "":
		return writeText(w, trimmed)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func trimReport(report *Report, maxViolations int) *Report {
	out := *report
	if report.Evaluation != nil {
		out.Evaluation = trimEvaluation(report.Evaluation, maxViolations)
	}
	if report.Enforcement != nil && report.Enforcement.Final != nil {
		enf := *report.Enforcement
		enf.Final = trimEvaluation(report.Enforcement.Final, maxViolations)
		out.Enforcement = &enf
	}
	return &out
}

func trimEvaluation(eval *privacy.PrivacyEvaluation, maxViolations int) *privacy.PrivacyEvaluation {
	e := *eval
	e.Violations = eval.TopViolations(maxViolations)
	return &e
}

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...interface{}) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func writeText(w io.Writer, report *Report) error {
	tw := &textWriter{w: w}

	tw.printf("Operation: %s\n", report.Operation)
	if report.Input != "" {
		tw.printf("Input: %s\n", report.Input)
	}
	if report.Output != "" {
		tw.printf("Output: %s\n", report.Output)
	}

	if report.Evaluation != nil {
		tw.printf("\n")
		writeEvaluationText(tw, report.Evaluation)
	}

	if enf := report.Enforcement; enf != nil {
		tw.printf("\nEnforcement:\n")
		tw.printf("- Status: %s\n", enf.Status)
		tw.printf("- Iterations: %d\n", enf.Iterations)
		tw.printf("- Rows Removed: %d\n", enf.RowsRemoved)
		tw.printf("- Groups Removed: %d\n", len(enf.RemovedGroups))
		if enf.Exhausted() {
			tw.printf("WARNING: enforcement removed every row; the released dataset is empty\n")
		}
		if enf.Final != nil {
			tw.printf("\nFinal ")
			writeEvaluationText(tw, enf.Final)
		}
	}

	if n := report.Noise; n != nil {
		tw.printf("\nNoise:\n")
		tw.printf("- Epsilon: %g\n", n.Epsilon)
		tw.printf("- Source: %s\n", n.Source)
		for _, col := range sortedKeys(n.Columns) {
			info := n.Columns[col]
			switch info.Mechanism {
			case "laplace":
				tw.printf("- %s: laplace sensitivity=%g scale=%g changed=%d\n", col, info.Sensitivity, info.Scale, info.Changed)
			default:
				tw.printf("- %s: %s keep=%g changed=%d\n", col, info.Mechanism, info.KeepProbability, info.Changed)
			}
		}
	}

	if b := report.Budget; b != nil {
		tw.printf("\nBudget:\n")
		tw.printf("- Consumed Epsilon: %g\n", b.ConsumedEpsilon)
		if b.Unlimited {
			tw.printf("- Limit: none\n")
		} else {
			tw.printf("- Limit: %g (remaining %g)\n", b.LimitEpsilon, b.RemainingEpsilon)
		}
	}

	return tw.err
}

func writeEvaluationText(tw *textWriter, eval *privacy.PrivacyEvaluation) {
	tw.printf("Privacy Evaluation:\n")
	tw.printf("- Score: %.*f\n", constants.ScoreDisplayPrecision, eval.Score)
	tw.printf("- Rows: %d\n", eval.Rows)
	tw.printf("- Equivalence Classes: %d\n", eval.Partitions)
	tw.printf("- Min k: %d\n", eval.MinK)
	tw.printf("- Min l: %.3f\n", eval.MinL)
	tw.printf("- Max t: %.3f\n", eval.MaxT)

	if len(eval.Reasons) == 0 {
		tw.printf("- Violations: none\n")
		return
	}
	tw.printf("- Reasons: %s\n", strings.Join(eval.Reasons, "; "))
	tw.printf("- Violations:\n")
	for _, v := range eval.Violations {
		tw.printf("  [%s] %s\n", v.GroupKey, v.Reason)
	}
}

func sortedKeys(m map[string]privacy.ColumnNoise) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
