package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"logvault/internal/config"
	"logvault/internal/logging"
	"logvault/internal/query"
)

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand
type app struct {
	v *viper.Viper
}

func newApp() *app {
	return &app{v: viper.New()}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "logvault",
		Short: "logvault - log indexing and retrieval for security dashboards",
		Long: `logvault discovers log files in a directory, keeps lightweight metadata
about them in memory, and answers paging, search, tail, export and statistics
queries by streaming the files on demand.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default: ~/.config/logvault/config.toml)")
	flags.StringP("output", "o", "text", "output format: text, json")
	flags.String("log-dir", "", "logs directory to index")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Int("workers", 0, "pipeline workers (0 = one per CPU)")
	flags.Int("max-cached-files", 0, "metadata cache capacity")

	for key, flag := range map[string]string{
		"config":           "config",
		"output":           "output",
		"log_dir":          "log-dir",
		"log_level":        "log-level",
		"workers":          "workers",
		"max_cached_files": "max-cached-files",
	} {
		cobra.CheckErr(a.v.BindPFlag(key, flags.Lookup(flag)))
	}
	a.v.SetEnvPrefix("LOGVAULT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.serveCmd(),
		a.filesCmd(),
		a.entriesCmd(),
		a.tailCmd(),
		a.exportCmd(),
		a.statsCmd(),
	)
	return root
}

// loadConfig reads the TOML file and overlays flags and LOGVAULT_* variables
func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return config.Config{}, err
	}

	if a.v.IsSet("log_dir") && a.v.GetString("log_dir") != "" {
		cfg.LogDir = a.v.GetString("log_dir")
	}
	if a.v.IsSet("log_level") && a.v.GetString("log_level") != "" {
		cfg.LogLevel = a.v.GetString("log_level")
	}
	if a.v.IsSet("workers") && a.v.GetInt("workers") > 0 {
		cfg.Workers = a.v.GetInt("workers")
	}
	if a.v.IsSet("max_cached_files") && a.v.GetInt("max_cached_files") > 0 {
		cfg.MaxCachedFiles = a.v.GetInt("max_cached_files")
	}
	if a.v.IsSet("listen_addr") && a.v.GetString("listen_addr") != "" {
		cfg.ListenAddr = a.v.GetString("listen_addr")
	}
	if a.v.IsSet("log_format") && a.v.GetString("log_format") != "" {
		cfg.LogFormat = strings.ToLower(a.v.GetString("log_format"))
	}
	if a.v.IsSet("watch") {
		cfg.Watch = a.v.GetBool("watch")
	}
	return cfg, nil
}

// setup loads config, initialises logging and builds the query service.
// One-shot commands log as text; serve uses the configured format.
func (a *app) setup(logFormat string) (config.Config, *query.Service, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	if logFormat == "" {
		logFormat = cfg.LogFormat
	}
	logging.Init(logFormat, logging.ParseLevel(cfg.LogLevel))

	svc, err := query.New(query.Options{
		Dir:            config.ResolveLogDir(cfg.LogDir, cfg.FallbackLogDir),
		Pattern:        cfg.Pattern,
		MaxCachedFiles: cfg.MaxCachedFiles,
		Workers:        cfg.Workers,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create query service: %w", err)
	}
	return cfg, svc, nil
}

func (a *app) outputFormat() string {
	return a.v.GetString("output")
}
