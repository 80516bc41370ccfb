package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.bptree/internal/config"
	"go.bptree/internal/logger"
)

// Test drivers for the library. None of this is part of the library
// contract; the commands exist to exercise it against real files.

var (
	cfg *config.Config
	log *logger.Logger

	homeFlag   string
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "btdrive",
	Short: "btdrive - drivers exercising the bptree library",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(homeFlag, configFlag)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log = logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "tool home directory")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path")
}
