package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/arcana-family/arcana/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(g *globals) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog to Parquet or YAML",
		Example: `  arcana export --format parquet --out books.parquet
  arcana export --format yaml > books.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g.cfg, g.logger, appNeeds{store: true})
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read catalog: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := export.Write(w, format, entries); err != nil {
				return err
			}
			g.logger.Info("Catalog exported", "books", len(entries), "format", format, "out", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "export format: parquet or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	return cmd
}
