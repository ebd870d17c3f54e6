package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finboard/txexchange/internal/apiclient"
	"github.com/finboard/txexchange/internal/buildinfo"
	"github.com/finboard/txexchange/internal/config"
	"github.com/finboard/txexchange/internal/runlog"
)

// errNoToken is returned when neither --token nor TXEXCHANGE_TOKEN is set.
var errNoToken = errors.New("no API token: pass --token or set " + config.EnvToken)

// globals holds persistent flags and the state loaded from them.
type globals struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	runLog     bool

	cfg *config.Config
	log *logrus.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "txexchange",
		Short:   "Exchange transactions and credit scores between the API and CSV files",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", config.FileName, "config file (optional)")
	flags.StringVar(&g.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "log format override (text, json)")
	flags.BoolVar(&g.runLog, "run-log", true, "append a line to logs/run-log.csv for each run")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newExportCommand(g))
	rootCmd.AddCommand(newImportCommand(g))

	return rootCmd
}

// load reads .env, the config file and env overrides, then builds the logger.
func (g *globals) load() error {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return err
	}

	cfg, err := config.LoadOptional(g.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	g.cfg = cfg
	g.log = log
	return nil
}

// projectRoot is the directory holding the config file; relative output
// directories and the run log live under it.
func (g *globals) projectRoot() string {
	abs, err := filepath.Abs(g.configPath)
	if err != nil {
		return "."
	}
	return filepath.Dir(abs)
}

func (g *globals) client() *apiclient.Client {
	return apiclient.NewClient(g.cfg.API.BaseURL,
		apiclient.WithTimeout(g.cfg.API.Timeout),
		apiclient.WithLogger(g.log),
	)
}

func (g *globals) recordRun(entries ...runlog.Entry) {
	if !g.runLog || len(entries) == 0 {
		return
	}
	if err := runlog.Append(g.projectRoot(), entries); err != nil {
		g.log.WithError(err).Warn("failed to write run log")
	}
}

func resolveToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if t := config.Token(); t != "" {
		return t, nil
	}
	return "", errNoToken
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return log, nil
}
