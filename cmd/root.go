package cmd

import (
	"fmt"
	"log/slog"

	"github.com/arcana-family/arcana/internal/config"
	"github.com/arcana-family/arcana/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globals carries what the root command resolves for its subcommands
type globals struct {
	version string
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// flagKeys binds command-line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"db":          "database.path",
	"provider":    "recognition.provider",
	"model":       "recognition.model",
	"addr":        "server.addr",
	"static":      "static.dir",
	"concurrency": "scan.concurrency",
}

func NewRootCmd(version string) *cobra.Command {
	g := &globals{version: version}

	cmd := &cobra.Command{
		Use:   "arcana",
		Short: "Family book inventory with LLM-powered shelf scanning",
		Long: `Arcana keeps the family book catalog.

Photograph a shelf and Arcana identifies every visible book with a vision LLM,
enriches it from Google Books and adds the ones it is confident about.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return g.load(cmd.Flags())
		},
	}

	cmd.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default: ./arcana.yaml or ~/.config/arcana/arcana.yaml)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().String("log-format", "", "log format: text, json or auto")
	cmd.PersistentFlags().String("db", "", "path to the catalog database")

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newScanCmd(g))
	cmd.AddCommand(newExportCmd(g))
	cmd.AddCommand(newEvalCmd(g))

	return cmd
}

func (g *globals) load(flags *pflag.FlagSet) error {
	v, err := config.NewViper(g.cfgFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("Using config file", "path", used)
	}

	g.cfg = cfg
	g.logger = logger
	return nil
}
