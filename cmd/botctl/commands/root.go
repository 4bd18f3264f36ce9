package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ecom-support/chatbot/internal/ingestion"
	"github.com/ecom-support/chatbot/pkg/config"
	"github.com/ecom-support/chatbot/pkg/logger"
)

var (
	cfgFile string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "Offline tooling for the support chatbot",
	Long: `botctl builds the artifacts the chatbot server loads at startup: the FAQ
similarity index, the intent classifier and the entity model. Each artifact is
written to a temporary location first and moved into place when complete, so
a running server never reads a partial file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.LoadFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := "info"
		if verbose {
			level = "debug"
		}
		if err := logger.Init(level, "console", "stdout"); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func processor() *ingestion.Processor {
	return ingestion.NewProcessor(cfg)
}
