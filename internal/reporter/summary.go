package reporter

import (
	"fmt"
	"sort"
	"strings"

	"golang-invoice-etl/internal/analytics"
	"golang-invoice-etl/internal/ingest"
	"golang-invoice-etl/internal/transformer"
)

// RunSummary collects the per-stage diagnostics of one pipeline run
type RunSummary struct {
	Ingest       *ingest.Stats
	Clients      *transformer.Stats
	Invoices     *transformer.Stats
	Results      *analytics.Results
	WrittenFiles []string
}

// Render produces the console run summary
func (s *RunSummary) Render() string {
	var b strings.Builder

	b.WriteString("\n=== ETL RUN SUMMARY ===\n\n")

	if s.Ingest != nil {
		b.WriteString("INGEST\n")
		fmt.Fprintf(&b, "  Files found:       %d (%d client, %d invoice)\n",
			s.Ingest.FilesFound, s.Ingest.ClientFiles, s.Ingest.InvoiceFiles)
		fmt.Fprintf(&b, "  Files skipped:     %d\n", s.Ingest.FilesSkipped)
		fmt.Fprintf(&b, "  Rows loaded:       %d\n\n", s.Ingest.RowsLoaded)
	}

	for _, stats := range []*transformer.Stats{s.Clients, s.Invoices} {
		if stats == nil {
			continue
		}
		b.WriteString(strings.ToUpper(stats.Entity.String()) + "S\n")
		fmt.Fprintf(&b, "  Rows read:         %d\n", stats.RowsRead)
		fmt.Fprintf(&b, "  Rows rejected:     %d\n", stats.RowsRejected)
		fmt.Fprintf(&b, "  Keys dropped:      %d\n", stats.KeysRejected)
		fmt.Fprintf(&b, "  Canonical rows:    %d (%d duplicates merged)\n",
			stats.UniqueKeys, stats.DuplicatesMerged)
		fmt.Fprintf(&b, "  Values unrecognized: %d\n", stats.FieldsUnrecognized)
		sources := make([]string, 0, len(stats.AbsentFields))
		for source := range stats.AbsentFields {
			sources = append(sources, source)
		}
		sort.Strings(sources)
		for _, source := range sources {
			fmt.Fprintf(&b, "  Unclassified:      %s: %s\n", source, strings.Join(stats.AbsentFields[source], ", "))
		}
		b.WriteString("\n")
	}

	if s.Results != nil {
		b.WriteString("ANALYTICS\n")
		fmt.Fprintf(&b, "  Model rows:        %d\n", len(s.Results.Model))
		fmt.Fprintf(&b, "  Clients in model:  %d\n", len(s.Results.ClientTotals))
		fmt.Fprintf(&b, "  Growth months:     %d\n", len(s.Results.MonthlyGrowth))
		fmt.Fprintf(&b, "  Savings > 50%%:     %d\n", len(s.Results.SavingsOver50Pct))
		fmt.Fprintf(&b, "  Savings > 500k:    %d\n\n", len(s.Results.SavingsOver500K))
	}

	if len(s.WrittenFiles) > 0 {
		b.WriteString("OUTPUT FILES\n")
		for _, file := range s.WrittenFiles {
			fmt.Fprintf(&b, "  %s\n", file)
		}
	}

	return b.String()
}
