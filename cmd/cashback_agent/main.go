// Package main provides the cashback_agent CLI: evaluate pages for cashback
// opportunities, inspect the brand list and run the detection service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cashback-scout/internal/config"
)

var (
	configPath   string
	registryFlag string
	logLevel     string
	logFormat    string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "cashback_agent",
	Short: "Cashback opportunity detection",
	Long: "cashback_agent decides whether a web page is a product page for a brand on the cashback list, " +
		"and serves the same decision to the browser extension over HTTP.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./cashback.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&registryFlag, "registry", "r", "", "Brand list file or URL (overrides registry.location)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed detection boxes")
}

func main() {
	config.LoadEnvFile()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
