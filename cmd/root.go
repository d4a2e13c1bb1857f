// Package cmd provides the brick command-line interface.
//
// Configuration is read with the following precedence:
//
//  1. command-line flags
//  2. BRICK_<SECTION>_<OPTION> environment variables
//  3. the config file: --config, else BRICK_CONFIG_FILE, else .brick.yml
//     in the working directory
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "brick",
	Short: "Render HTML pages built from declared components",
	Long: `brick upgrades the elements of an HTML page into components declared in
.brick.yml, renders their templates and writes the resulting page.

Quick Start:
  brick validate        Check the configuration
  brick list            List declared components
  brick render          Render the page once
  brick watch           Re-render whenever a source file changes
  brick serve           Serve the page with live reload`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .brick.yml, can also use BRICK_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error, off)")
	flags.String("log-format", "text", "log format (text, json)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := viper.BindPFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
			return err
		}
		return viper.BindPFlag("logging.format", cmd.Flags().Lookup("log-format"))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("BRICK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, ".yml"))
	}

	viper.SetEnvPrefix("BRICK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file is fine; the defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig(stderr io.Writer) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: w,
	}), nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
