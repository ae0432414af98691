package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aixgo-dev/dailyagent/internal/logging"
	"github.com/aixgo-dev/dailyagent/pkg/config"
)

// Version information (set via ldflags)
var Version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:           "dailyagent",
		Short:         "Personal assistant backed by a remote tool server",
		Version:       Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configFile)
			if err != nil {
				return err
			}
			if o.logLevel != "" {
				cfg.LogLevel = o.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			o.cfg = cfg
			o.log = logging.New(cfg.LogLevel, !cfg.IsProduction(), logOut)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(o),
		newChatCmd(o),
		newBriefingCmd(o),
		newHealthCmd(o),
		newWeatherCmd(o),
		newTodosCmd(o),
		newCommuteCmd(o),
		newConfigCmd(),
	)
	return root
}
