// Harrier - Revenue leakage detection for property registration offices.
// Copyright (c) 2026 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/inr"
	"github.com/opensource-finance/harrier/internal/rules"
)

var evaluateFile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single case fact sheet from a JSON file",
	Long: `Reads a registration document fact sheet from a JSON file, runs the builtin
rule catalog against it, and prints the evaluation. No server, database, or
custom rules are involved; this is the offline scoring path.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "path to the case fact sheet JSON (required)")
	evaluateCmd.MarkFlagRequired("file")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(evaluateFile)
	if err != nil {
		return fmt.Errorf("failed to read fact sheet: %w", err)
	}

	var facts domain.ManualCaseInput
	if err := json.Unmarshal(data, &facts); err != nil {
		return fmt.Errorf("failed to parse fact sheet: %w", err)
	}

	engine, err := rules.NewEngine(nil)
	if err != nil {
		return err
	}

	result, err := engine.EvaluateCase(context.Background(), "local", facts)
	if err != nil {
		return err
	}

	fmt.Printf("Risk:       %s (score %d, confidence %d%%)\n", result.RiskLevel, result.RiskScore, result.Confidence)
	fmt.Printf("Payable:    %s\n", inr.Format(result.PayableINR))
	fmt.Printf("Gap:        %s\n", inr.Format(result.GapINR))
	fmt.Printf("Signals:    %v\n", result.LeakageSignals)
	fmt.Printf("Rules hit:  %d\n", len(result.TriggeredRules))
	for _, hit := range result.TriggeredRules {
		fmt.Printf("\n  [%s] %s (%s)\n", hit.RuleID, hit.RuleName, hit.Severity)
		fmt.Printf("      %s\n", hit.Explanation)
		if hit.ImpactINR > 0 {
			fmt.Printf("      Impact: %s\n", inr.Format(hit.ImpactINR))
		}
	}
	return nil
}
