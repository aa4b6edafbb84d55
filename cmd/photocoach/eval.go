package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lenslab/photocoach/internal/config"
	"github.com/lenslab/photocoach/internal/eval"
	"github.com/lenslab/photocoach/internal/llm"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the offline evaluation harness against the coaching pipeline",
	Long: `Run the offline evaluation harness against the coaching pipeline.

Scores a set of synthetic coaching questions with response heuristics
and, with --judge, an LLM rubric. Runs in-process against isolated
eval users; it does not touch real coaching sessions.

Examples:
  photocoach eval
  photocoach eval --judge --csv results.csv --json results.json
  photocoach eval --image ./sample.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath, _ := cmd.Flags().GetString("csv")
		jsonPath, _ := cmd.Flags().GetString("json")
		imagePath, _ := cmd.Flags().GetString("image")
		useJudge, _ := cmd.Flags().GetBool("judge")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.store.Close()

		var image []byte
		if imagePath != "" {
			image, err = os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
		}

		var judge llm.Generator
		if useJudge {
			judge = a.client
		}

		runner := eval.NewRunner(a.orch, judge, slog.Default())

		printStep("Running %d evaluation prompts...", len(eval.DefaultPrompts()))
		results, summary := runner.Run(cmd.Context(), eval.DefaultPrompts(), image)

		printStatus("Prompts", "%d", summary.Prompts)
		printStatus("Succeeded", "%d", summary.Succeeded)
		printStatus("Failed", "%d", summary.Failed)
		printStatus("Avg score", "%.2f", summary.AvgScore)
		printStatus("Avg latency", "%dms", summary.AvgLatencyMS)

		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				return fmt.Errorf("creating CSV report: %w", err)
			}
			defer f.Close()
			if err := eval.WriteCSV(f, results); err != nil {
				return err
			}
			printSuccess("CSV report written to %s", csvPath)
		}

		if jsonPath != "" {
			f, err := os.Create(jsonPath)
			if err != nil {
				return fmt.Errorf("creating JSON report: %w", err)
			}
			defer f.Close()
			if err := eval.WriteJSON(f, results); err != nil {
				return err
			}
			printSuccess("JSON report written to %s", jsonPath)
		}

		return nil
	},
}

func init() {
	evalCmd.Flags().String("csv", "", "write a CSV report to this path")
	evalCmd.Flags().String("json", "", "write a JSON report to this path")
	evalCmd.Flags().String("image", "", "photo to attach to every prompt")
	evalCmd.Flags().Bool("judge", false, "score responses with the LLM rubric judge")
}
