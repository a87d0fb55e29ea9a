package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cashback-scout/internal/brands"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
)

var brandsCmd = &cobra.Command{
	Use:   "brands [query]",
	Short: "List or search the cashback brand list",
	Long: "Loads the configured brand list, reporting load errors instead of falling back to an empty list, " +
		"and prints every brand or those whose normalized key contains the query.",
	Args: cobra.MaximumNArgs(1),
	RunE: runBrands,
}

var (
	brandsLookup  string
	brandsJSON    bool
	brandsNoColor bool
)

func init() {
	brandsCmd.Flags().StringVar(&brandsLookup, "lookup", "", "Resolve one brand name exactly (after normalization)")
	brandsCmd.Flags().BoolVar(&brandsJSON, "json", false, "Print records as JSON")
	brandsCmd.Flags().BoolVar(&brandsNoColor, "no-color", false, "Disable coloured output")
	rootCmd.AddCommand(brandsCmd)
}

func runBrands(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Registry.Location == "" {
		return fmt.Errorf("no brand list configured: use --registry or set CASHBACK_REGISTRY_LOCATION")
	}

	payload, err := orchestrator.NewRegistrySource(cfg.Registry.Location).Fetch(cmd.Context())
	if err != nil {
		return err
	}
	reg, err := brands.Load(payload)
	if err != nil {
		return err
	}

	var records []brands.Record
	switch {
	case brandsLookup != "":
		rec, ok := reg.Lookup(brandsLookup)
		if !ok {
			return fmt.Errorf("brand %q is not on the cashback list (key %q)", brandsLookup, brands.Normalize(brandsLookup))
		}
		records = []brands.Record{rec}
	case len(args) == 1:
		records = reg.Search(args[0])
	default:
		records = reg.Records()
	}

	if brandsJSON {
		if records == nil {
			records = []brands.Record{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	newPrinter(cmd, brandsNoColor).PrintBrands(records)
	return nil
}
