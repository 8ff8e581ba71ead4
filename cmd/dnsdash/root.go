package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/logging"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootFlags struct {
	configPath string
	backendURL string
	debug      bool
	jsonLogs   bool
}

var rootCmd = &cobra.Command{
	Use:   "dnsdash",
	Short: "DNS analytics dashboard",
	Long: `dnsdash shows what a DNS server is answering: top domains, clients,
query types, blocked domains and live domain search.

Each browser tab gets its own dashboard session with independent refresh
settings. The same dashboard can be drawn in a terminal with "dnsdash watch".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.ResolveConfigPath(rootFlags.configPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if rootFlags.backendURL != "" {
			loaded.Backend.URL = rootFlags.backendURL
		}
		if rootFlags.jsonLogs {
			loaded.Logging.Structured = true
			loaded.Logging.StructuredFormat = "json"
		}
		if rootFlags.debug {
			loaded.Logging.Level = "DEBUG"
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger = logging.Configure(logging.FromConfig(cfg.Logging))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to YAML configuration file (or set "+config.EnvConfigPath+")")
	pf.StringVar(&rootFlags.backendURL, "backend-url", "", "Override the telemetry backend URL")
	pf.BoolVar(&rootFlags.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&rootFlags.jsonLogs, "json-logs", config.EnvBool("DNSDASH_JSON_LOGS", false), "Enable JSON structured logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
