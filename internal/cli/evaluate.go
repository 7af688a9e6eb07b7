package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reqgate/reqgate/internal/config"
	"github.com/reqgate/reqgate/internal/decisionlog"
	"github.com/reqgate/reqgate/internal/model"
	"github.com/reqgate/reqgate/internal/opa"
	"github.com/reqgate/reqgate/internal/sarif"
)

var (
	evalBundle    string
	evalFacts     string
	evalSARIFPath string
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalBundle, "bundle", "", "Path to OPA policy bundle directory (overrides config)")
	evaluateCmd.Flags().StringVar(&evalFacts, "facts", "", "Path to agent facts JSON (required)")
	evaluateCmd.Flags().StringVar(&evalSARIFPath, "sarif", "", "Output path for the SARIF report")
	evaluateCmd.MarkFlagRequired("facts")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <requirement-json>",
	Short: "Evaluate one requirement against the policy bundle",
	Long:  "Runs the OPA rubric for the requirement with the given facts, appends the\ndecision to the decision log, writes a SARIF report, and prints the decision.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if evalBundle != "" {
		cfg.BundlePath = evalBundle
	}

	var req model.Requirement
	if err := readJSON(args[0], &req); err != nil {
		return err
	}
	var facts model.Facts
	if err := readJSON(evalFacts, &facts); err != nil {
		return err
	}

	decision, err := opa.Evaluate(context.Background(), req, facts, opa.Options{
		BundlePath: cfg.BundlePath,
		Binary:     cfg.OPABinary,
		Timeout:    cfg.Timeout(),
	})
	if err != nil {
		return err
	}

	log, err := decisionlog.Open(cfg.DecisionLogPath())
	if err != nil {
		return err
	}
	defer log.Close()

	entry := decisionlog.NewEntry(req, facts, nil, *decision)
	if err := log.Record(entry); err != nil {
		fmt.Fprintf(os.Stderr, "decision log write failed: %v\n", err)
	}

	if evalSARIFPath != "" {
		report := sarif.GenerateReport(req, *decision, facts, entry.EvaluationID)
		abs, err := sarif.WriteFile(report, evalSARIFPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "SARIF report written to %s\n", abs)
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if decision.Status == model.DecisionFail || decision.Status == model.DecisionBlocked {
		os.Exit(1)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %q: %w", path, err)
	}
	return nil
}
