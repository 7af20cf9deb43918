package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/macrolens/shelfprice/config"
	"github.com/macrolens/shelfprice/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shelfprice",
	Short: "Compare grocery prices across Dutch supermarkets",
	Long: `shelfprice searches Albert Heijn, Jumbo and PLUS for a term, normalises
every listing to a common schema and ranks the merged result by price per unit.`,
	SilenceUsage: true,
}

func main() {
	// .env is optional and only meant for local runs
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and initialises the process logger
func loadConfig(logToStderr bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := logger.Options{Environment: cfg.Server.Environment, Level: cfg.Log.Level}
	if logToStderr {
		opts.Output = os.Stderr
	}
	logger.Init(opts)

	return cfg, nil
}
