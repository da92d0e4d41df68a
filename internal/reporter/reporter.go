// Package reporter serializes the pipeline's outputs: the two canonical
// tables, the joined invoice-client model, and every analysis query as
// CSV files with fixed column order, plus a human-readable console run
// summary.
//
// The writer mirrors the fixed output layout:
//
//	<output-dir>/Outputs/Clients_Merged_Cleaned.csv
//	<output-dir>/Outputs/Invoices_Merged_Cleaned.csv
//	<output-dir>/Outputs/Clients_Invoices_Model.csv
//	<output-dir>/Analysis/Top5_Invoice_Outstanding.csv
//	<output-dir>/Analysis/Month_Per_Month_Invoice_Growth.csv
//	<output-dir>/Analysis/Top5_Invoice_Discounts.csv
//	<output-dir>/Analysis/Total_Cost_Savings.csv
//	<output-dir>/Analysis/Savings_Over_50percent.csv
//	<output-dir>/Analysis/Savings_Over_500k.csv
package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"golang-invoice-etl/internal/analytics"
	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/pkg/errors"
	"golang-invoice-etl/pkg/logger"
)

// Fixed output file names, matching the layout consumers already expect
const (
	OutputsSubdir  = "Outputs"
	AnalysisSubdir = "Analysis"

	FileClientsCleaned  = "Clients_Merged_Cleaned.csv"
	FileInvoicesCleaned = "Invoices_Merged_Cleaned.csv"
	FileModel           = "Clients_Invoices_Model.csv"
	FileTopOutstanding  = "Top5_Invoice_Outstanding.csv"
	FileMonthlyGrowth   = "Month_Per_Month_Invoice_Growth.csv"
	FileTopDiscounts    = "Top5_Invoice_Discounts.csv"
	FileTotalSavings    = "Total_Cost_Savings.csv"
	FileSavingsOver50   = "Savings_Over_50percent.csv"
	FileSavingsOver500K = "Savings_Over_500k.csv"
)

// Config holds configuration for the Reporter
type Config struct {
	// OutputDir is the directory the Outputs/ and Analysis/ trees are
	// created under
	OutputDir string `json:"output_dir"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{OutputDir: "."}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// Reporter writes the pipeline outputs to disk
type Reporter struct {
	config *Config
	logger logger.Logger
}

// NewReporter creates a Reporter with the given configuration
func NewReporter(config *Config) (*Reporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reporter", config.OutputDir, err)
	}

	return &Reporter{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// WriteAll writes every output file and returns the paths written
func (r *Reporter) WriteAll(clients []models.CanonicalClient, invoices []models.CanonicalInvoice, results *analytics.Results) ([]string, error) {
	outputsDir := filepath.Join(r.config.OutputDir, OutputsSubdir)
	analysisDir := filepath.Join(r.config.OutputDir, AnalysisSubdir)
	for _, dir := range []string{outputsDir, analysisDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.FileError(errors.CodeDirectoryError, dir, err)
		}
	}

	files := []struct {
		path    string
		headers []string
		rows    [][]string
	}{
		{filepath.Join(outputsDir, FileClientsCleaned), clientHeaders(), clientRecords(clients)},
		{filepath.Join(outputsDir, FileInvoicesCleaned), invoiceHeaders(), invoiceRecords(invoices)},
		{filepath.Join(outputsDir, FileModel), modelHeaders(), modelRecords(results.Model)},
		{filepath.Join(analysisDir, FileTopOutstanding), totalHeaders(), totalRecords(results.TopOutstanding)},
		{filepath.Join(analysisDir, FileMonthlyGrowth), growthHeaders(), growthRecords(results.MonthlyGrowth)},
		{filepath.Join(analysisDir, FileTopDiscounts), totalHeaders(), totalRecords(results.TopDiscounts)},
		{filepath.Join(analysisDir, FileTotalSavings), savingsHeaders(), savingsRecords(results.Savings)},
		{filepath.Join(analysisDir, FileSavingsOver50), savingsHeaders(), savingsRecords(results.SavingsOver50Pct)},
		{filepath.Join(analysisDir, FileSavingsOver500K), savingsHeaders(), savingsRecords(results.SavingsOver500K)},
	}

	written := make([]string, 0, len(files))
	for _, file := range files {
		if err := r.writeCSV(file.path, file.headers, file.rows); err != nil {
			return written, err
		}
		written = append(written, file.path)
	}

	r.logger.WithFields(logger.Fields{
		"dir":   r.config.OutputDir,
		"files": len(written),
	}).Info("Wrote output files")

	return written, nil
}

// writeCSV writes one CSV file with a header row
func (r *Reporter) writeCSV(path string, headers []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return errors.FileError(errors.CodeFileCorrupted, path, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	r.logger.WithFields(logger.Fields{
		"file": filepath.Base(path),
		"rows": len(rows),
	}).Debug("Wrote CSV file")

	return nil
}

func clientHeaders() []string {
	return []string{"client_id", "client_name", "status", "start_date", "tier"}
}

func clientRecords(clients []models.CanonicalClient) [][]string {
	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []string{c.ClientID, c.ClientName, c.Status.String(), c.StartDate, c.Tier})
	}
	return rows
}

func invoiceHeaders() []string {
	return []string{"invoice_id", "client_id", "start_date", "subtotal", "tax", "total", "shipment_type"}
}

func invoiceRecords(invoices []models.CanonicalInvoice) [][]string {
	rows := make([][]string, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, []string{
			inv.InvoiceID,
			inv.ClientID,
			inv.StartDate,
			models.FormatNullDecimal(inv.Subtotal),
			models.FormatNullDecimal(inv.Tax),
			models.FormatNullDecimal(inv.Total),
			inv.ShipmentType.String(),
		})
	}
	return rows
}

func modelHeaders() []string {
	return []string{"client_id", "client_name", "invoice_id", "start_date", "total", "shipment_type"}
}

func modelRecords(model []analytics.ModelRow) [][]string {
	rows := make([][]string, 0, len(model))
	for _, m := range model {
		rows = append(rows, []string{
			m.ClientID,
			m.ClientName,
			m.InvoiceID,
			m.StartDate,
			models.FormatNullDecimal(m.Total),
			m.ShipmentType.String(),
		})
	}
	return rows
}

func totalHeaders() []string {
	return []string{"client_id", "client_name", "total"}
}

func totalRecords(totals []analytics.ClientTotal) [][]string {
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.ClientID, t.ClientName, t.Total.String()})
	}
	return rows
}

func growthHeaders() []string {
	return []string{"client_id", "client_name", "year_month", "total", "mom_delta", "mom_growth_pct"}
}

func growthRecords(growth []analytics.GrowthRow) [][]string {
	rows := make([][]string, 0, len(growth))
	for _, g := range growth {
		rows = append(rows, []string{
			g.ClientID,
			g.ClientName,
			g.YearMonth,
			g.Total.String(),
			g.Delta.String(),
			g.GrowthPct.String(),
		})
	}
	return rows
}

func savingsHeaders() []string {
	return []string{"client_id", "client_name", "old_total", "discounted_total", "savings", "percent_savings"}
}

func savingsRecords(savings []analytics.SavingsRow) [][]string {
	rows := make([][]string, 0, len(savings))
	for _, s := range savings {
		rows = append(rows, []string{
			s.ClientID,
			s.ClientName,
			s.OldTotal.String(),
			s.DiscountedTotal.String(),
			s.Savings.String(),
			s.PercentSavings.String(),
		})
	}
	return rows
}
