package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/observability"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
)

var detectCmd = &cobra.Command{
	Use:   "detect [url...]",
	Short: "Evaluate pages for a cashback opportunity",
	Long: "Loads each URL, detects the brand and scores the page as a product page. " +
		"A page is actionable when the brand is on the cashback list and the page is a product page.",
	RunE: runDetect,
}

var (
	detectHTMLFile    string
	detectURLsFile    string
	detectJSON        bool
	detectConcurrency int
	detectNoColor     bool
)

func init() {
	detectCmd.Flags().StringVar(&detectHTMLFile, "html-file", "", "Evaluate this saved HTML instead of fetching (single URL only)")
	detectCmd.Flags().StringVarP(&detectURLsFile, "urls-file", "f", "", "File with one URL per line")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Print one JSON decision per line")
	detectCmd.Flags().IntVar(&detectConcurrency, "concurrency", 0, "Pages evaluated in parallel (default: detection.concurrency)")
	detectCmd.Flags().BoolVar(&detectNoColor, "no-color", false, "Disable coloured output")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	urls, err := collectURLs(args, detectURLsFile)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or with --urls-file")
	}
	if detectHTMLFile != "" && len(urls) != 1 {
		return fmt.Errorf("--html-file evaluates exactly one URL, got %d", len(urls))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	var src fetch.Source = newSource(cfg, logger)
	if detectHTMLFile != "" {
		data, err := os.ReadFile(detectHTMLFile)
		if err != nil {
			return fmt.Errorf("failed to read HTML file %s: %w", detectHTMLFile, err)
		}
		src = fetch.StaticSource{HTML: string(data)}
		// saved markup never changes between attempts
		cfg.Detection.RetryAttempts = 1
	}

	o, err := newOrchestrator(cfg, logger, orchestratorParts{})
	if err != nil {
		return err
	}

	limit := detectConcurrency
	if limit <= 0 {
		limit = cfg.Detection.Concurrency
	}

	decisions := make([]orchestrator.Decision, len(urls))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			decisions[i] = o.Run(ctx, orchestrator.NewPageContext("", u), src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if detectJSON {
		enc := json.NewEncoder(out)
		for _, d := range decisions {
			if err := enc.Encode(d); err != nil {
				return fmt.Errorf("failed to encode decision: %w", err)
			}
		}
		return nil
	}

	printer := newPrinter(cmd, detectNoColor)
	for _, d := range decisions {
		if verbose {
			printer.PrintDecision(d)
		} else {
			printer.Verdict(d)
		}
	}
	return nil
}

// collectURLs joins positional URLs with the non-blank, non-comment lines of
// path.
func collectURLs(args []string, path string) ([]string, error) {
	urls := append([]string(nil), args...)
	if path == "" {
		return urls, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list %s: %w", path, err)
	}
	return urls, nil
}

func newPrinter(cmd *cobra.Command, noColor bool) *observability.Printer {
	return observability.NewPrinterWithColor(cmd.OutOrStdout(), !noColor && !color.NoColor)
}
