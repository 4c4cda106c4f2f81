package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/config"
	"github.com/soaringjerry/Vigil/internal/logging"
	"github.com/soaringjerry/Vigil/internal/utils"
)

// Set with -ldflags "-X main.commit=... -X main.buildTime=...".
var (
	commit    string
	buildTime string
)

var (
	configPath string
	flagAddr   string
	flagDBType string
	flagDBURL  string
	flagLevel  string
	flagDev    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "vigil",
	Short:         "Vigil security evaluation API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		b := buildInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "vigil commit=%s built=%s\n", b.Commit, b.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("VIGIL_CONFIG"), "YAML config file (or set VIGIL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "Listen address (overrides VIGIL_ADDR)")
	rootCmd.PersistentFlags().StringVar(&flagDBType, "database-type", "", "memory, sqlite or postgres (overrides DATABASE_TYPE)")
	rootCmd.PersistentFlags().StringVar(&flagDBURL, "database-url", "", "SQLite path or Postgres DSN (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&flagDev, "dev", false, "Development logging and dev JWT secret (overrides LOG_DEV)")

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("addr") {
		c.Addr = flagAddr
	}
	if flags.Changed("database-type") {
		c.Database.Type = flagDBType
	}
	if flags.Changed("database-url") {
		c.Database.URL = flagDBURL
	}
	if flags.Changed("log-level") {
		c.Log.Level = flagLevel
	}
	if flags.Changed("dev") {
		c.Log.Development = flagDev
	}
}

func buildInfo() api.BuildInfo {
	b := api.BuildInfo{Commit: commit, BuildTime: buildTime}
	if b.Commit == "" {
		b.Commit = utils.SafeEnv("VIGIL_COMMIT", "dev")
	}
	if b.BuildTime == "" {
		b.BuildTime = utils.SafeEnv("VIGIL_BUILD_TIME", "")
	}
	return b
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vigil:", err)
		os.Exit(1)
	}
}
