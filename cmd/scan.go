package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/arcana-family/arcana/internal/cataloging"
	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newScanCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan a shelf photo into the catalog",
		Long: `Identifies the books on a shelf photo, enriches them from Google Books and
adds the confident, new ones to the catalog.`,
		Example: `  arcana scan shelf.jpg
  arcana scan shelf.jpg --output report.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			a, err := newApp(cmd.Context(), g.cfg, g.logger, appNeeds{pipeline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			stderr := cmd.ErrOrStderr()
			result, err := a.pipeline.ScanShelf(cmd.Context(), image, utils.ImageMIMEType(args[0], image),
				cataloging.WithProgress(func(p models.ScanProgress) {
					fmt.Fprintf(stderr, "[%3d%%] %s\n", p.Progress, p.Message)
				}))
			if err != nil {
				return err
			}

			renderScanResult(cmd.OutOrStdout(), result)

			if output != "" {
				data, err := yaml.Marshal(result)
				if err != nil {
					return fmt.Errorf("failed to marshal YAML: %w", err)
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				fmt.Fprintf(stderr, "Report saved to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the scan result as YAML to this file")
	cmd.Flags().String("provider", "", "recognition provider: gemini, openai or ollama")
	cmd.Flags().String("model", "", "recognition model")
	cmd.Flags().Int("concurrency", 0, "books enriched in parallel")

	return cmd
}

func renderScanResult(w io.Writer, result *models.ScanResult) {
	if len(result.Books) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Title", "Author", "Confidence", "Copy", "Result"})
		for _, b := range result.Books {
			outcome := "added"
			if !b.IsNewBook {
				outcome = "duplicate"
			}
			tw.AppendRow(table.Row{b.Title, b.Author, fmt.Sprintf("%.0f%%", b.Confidence*100), b.CopyNumber, outcome})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
		})
		tw.Render()
	}
	s := result.Stats
	fmt.Fprintf(w, "%s (detected %d: %d added, %d duplicates, %d skipped)\n", result.Message, s.Detected, s.Added, s.Duplicates, s.Skipped)
}
