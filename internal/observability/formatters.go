// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/jonathan/cashback-scout/internal/brands"
	"github.com/jonathan/cashback-scout/internal/detection/brand"
	"github.com/jonathan/cashback-scout/internal/detection/pdp"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 8
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out  io.Writer
	good *color.Color
	bad  *color.Color
	dim  *color.Color
}

// NewPrinter creates a new Printer that writes to the given writer. Colour
// follows the terminal detection of fatih/color.
func NewPrinter(out io.Writer) *Printer {
	return NewPrinterWithColor(out, !color.NoColor)
}

// NewPrinterWithColor creates a Printer with colour forced on or off.
func NewPrinterWithColor(out io.Writer, enabled bool) *Printer {
	p := &Printer{
		out:  out,
		good: color.New(color.FgGreen, color.Bold),
		bad:  color.New(color.FgRed),
		dim:  color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.good, p.bad, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "·"
}

// Verdict prints one coloured summary line for a decision.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) Verdict(d orchestrator.Decision) {
	switch {
	case d.Error != "" && !d.Actionable:
		p.bad.Fprintf(p.out, "✗ %s", d.URL)
		p.dim.Fprintf(p.out, "  (%s)\n", d.Error)
	case d.Actionable:
		p.good.Fprintf(p.out, "✓ %s", d.URL)
		fmt.Fprintf(p.out, "  %s", d.BrandName())
		if d.Brand.Brand != nil {
			fmt.Fprintf(p.out, " %.4g%% cashback", d.Brand.Brand.CashbackPercent)
		}
		p.dim.Fprintf(p.out, "  score %d\n", d.PDP.Score)
	default:
		fmt.Fprintf(p.out, "· %s", d.URL)
		p.dim.Fprintf(p.out, "  brand=%t product_page=%t score %d\n", d.Brand.IsSupported, d.PDP.IsProductPage, d.PDP.Score)
	}
}

// PrintDecision outputs a human-readable summary of a decision.
func (p *Printer) PrintDecision(d orchestrator.Decision) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("URL:        %s\n", d.URL))
	if d.Platform != "" {
		sb.WriteString(fmt.Sprintf("Platform:   %s\n", d.Platform))
	}
	sb.WriteString(fmt.Sprintf("Page view:  %s\n", d.PageID))
	sb.WriteString(fmt.Sprintf("Attempts:   %d\n", d.Attempts))
	sb.WriteString("\n")

	if d.Brand.IsSupported {
		sb.WriteString(fmt.Sprintf("Brand:      %s (%.4g%%)\n", d.BrandName(), d.Brand.Brand.CashbackPercent))
	} else {
		sb.WriteString("Brand:      not supported\n")
	}
	if d.Brand.ProductTitle != "" {
		sb.WriteString(fmt.Sprintf("Title:      %s\n", d.Brand.ProductTitle))
	}
	sb.WriteString(fmt.Sprintf("PDP score:  %d (product page: %t)\n", d.PDP.Score, d.PDP.IsProductPage))
	sb.WriteString(fmt.Sprintf("Actionable: %t\n", d.Actionable))
	if d.Notified || d.AlreadyNotified {
		sb.WriteString(fmt.Sprintf("Notified:   %t (already: %t)\n", d.Notified, d.AlreadyNotified))
	}
	if d.SearchURL != "" {
		sb.WriteString(fmt.Sprintf("Search:     %s\n", d.SearchURL))
	}
	if d.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:      %s\n", d.Error))
	}

	p.printBox("DETECTION DECISION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBrandDetection outputs the candidates and the vote tally.
func (p *Printer) PrintBrandDetection(res brand.Result) {
	var sb strings.Builder

	if res.IsSupported {
		sb.WriteString(fmt.Sprintf("Winner: %s\n\n", res.Brand.CanonicalName))
	} else {
		sb.WriteString("Winner: none\n\n")
	}

	if len(res.Tally) > 0 {
		sb.WriteString("Votes:\n")
		keys := make([]string, 0, len(res.Tally))
		for k := range res.Tally {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if res.Tally[keys[i]] != res.Tally[keys[j]] {
				return res.Tally[keys[i]] > res.Tally[keys[j]]
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %-20s %d\n", k, res.Tally[k]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Candidates (%d):\n", len(res.Candidates)))
	count := min(len(res.Candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := res.Candidates[i]
		sb.WriteString(fmt.Sprintf("  • %-16s %s\n", c.Source, c.Value))
	}
	if len(res.Candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(res.Candidates)-maxItemsToShow))
	}

	p.printBox("BRAND DETECTION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPDPDebug outputs every signal with its weight.
func (p *Printer) PrintPDPDebug(dbg pdp.DebugResult) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Action buttons: %s\n\n", mark(dbg.GatePassed)))
	for _, sig := range pdp.DefaultSignals() {
		present, ok := dbg.Signals[sig.Name]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %s %-16s %3d", mark(present), sig.Name, dbg.Weights[sig.Name])
		if msg, failed := dbg.Errors[sig.Name]; failed {
			line += "  error: " + msg
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Score: %d / threshold %d (ungated %d)\n", dbg.Score, dbg.Threshold, dbg.PotentialScore))
	sb.WriteString(fmt.Sprintf("Product page: %t", dbg.IsProductPage))

	p.printBox("PRODUCT PAGE SIGNALS", sb.String())
}

// PrintBrands lists registry records.
func (p *Printer) PrintBrands(records []brands.Record) {
	if len(records) == 0 {
		p.printBox("BRANDS", "no brands")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d brands\n\n", len(records)))
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%-28s %-20s %6.2f%%\n", r.CanonicalName, r.NormalizedKey, r.CashbackPercent))
	}
	p.printBox("BRANDS", strings.TrimSuffix(sb.String(), "\n"))
}
