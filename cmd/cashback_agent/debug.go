package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cashback-scout/internal/detection/brand"
	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
	"github.com/jonathan/cashback-scout/internal/page"
	"github.com/jonathan/cashback-scout/internal/server"
)

var debugCmd = &cobra.Command{
	Use:   "debug <url>",
	Short: "Explain every brand candidate and product page signal for one page",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

var (
	debugHTMLFile string
	debugJSON     bool
	debugNoColor  bool
)

func init() {
	debugCmd.Flags().StringVar(&debugHTMLFile, "html-file", "", "Evaluate this saved HTML instead of fetching")
	debugCmd.Flags().BoolVar(&debugJSON, "json", false, "Print the report as JSON")
	debugCmd.Flags().BoolVar(&debugNoColor, "no-color", false, "Disable coloured output")
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	pageURL := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	o, err := newOrchestrator(cfg, logger, orchestratorParts{})
	if err != nil {
		return err
	}

	doc, err := loadDebugDocument(cmd.Context(), newSource(cfg, logger), pageURL)
	if err != nil {
		return err
	}

	reg := o.EnsureRegistry(cmd.Context(), orchestrator.NewPageContext("", pageURL))
	report := server.DebugResponse{
		URL:      pageURL,
		Platform: string(fetch.DetectDocumentPlatform(doc)),
		Brand:    brand.NewDetector().Detect(doc, reg),
		PDP:      o.Scorer().Debug(doc),
	}

	if debugJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printer := newPrinter(cmd, debugNoColor)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", report.URL, report.Platform)
	printer.PrintBrandDetection(report.Brand)
	printer.PrintPDPDebug(report.PDP)
	return nil
}

func loadDebugDocument(ctx context.Context, src fetch.Source, pageURL string) (*page.Document, error) {
	if debugHTMLFile == "" {
		return src.Load(ctx, pageURL)
	}
	data, err := os.ReadFile(debugHTMLFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTML file %s: %w", debugHTMLFile, err)
	}
	return page.Parse(string(data), pageURL)
}
