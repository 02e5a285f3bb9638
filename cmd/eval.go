package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/arcana-family/arcana/internal/evaluation"
	"github.com/spf13/cobra"
)

func newEvalCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "eval <dataset.yaml>",
		Short: "Measure recognition accuracy on labeled shelf photos",
		Long: `Runs book recognition on every shelf of a labeled dataset and reports
precision, recall and mean confidence.

The dataset is a YAML file:

  shelves:
    - image: shelves/living-room.jpg
      books:
        - {title: Dune, author: Frank Herbert}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := evaluation.LoadDataset(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), g.cfg, g.logger, appNeeds{llm: true})
			if err != nil {
				return err
			}
			defer a.Close()

			g.logger.Info("Starting evaluation run", "dataset", args[0], "shelves", len(ds.Shelves), "provider", a.recognizer.Provider(), "model", a.recognizer.Model())
			runner := evaluation.NewRunner(a.recognizer, g.cfg.ScanConcurrency, g.logger.With("component", "evaluation"))
			results, err := runner.Run(cmd.Context(), ds)
			if err != nil {
				return err
			}

			report := evaluation.Aggregate(results, a.recognizer.Provider(), a.recognizer.Model(), args[0])
			report.PrintSummary(cmd.OutOrStdout())

			if output == "" {
				model := strings.ReplaceAll(a.recognizer.Model(), "/", "_")
				output = filepath.Join("evals", fmt.Sprintf("%s-%s.yaml", model, time.Now().Format("2006-01-02_15-04-05")))
			}
			if err := report.SaveYAML(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nResults saved to: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "results file (default evals/<model>-<timestamp>.yaml)")
	cmd.Flags().String("provider", "", "recognition provider: gemini, openai or ollama")
	cmd.Flags().String("model", "", "recognition model")
	cmd.Flags().Int("concurrency", 0, "shelves recognized in parallel")

	return cmd
}
