// Package ingest discovers and loads the raw input files. Files are
// classified by filename prefix (clients_*.csv, invoices_*.csv), loaded
// in lexicographic order and parsed into immutable RawTables. Unreadable
// or malformed files are skipped with a warning; discovery order and row
// order are preserved because reconciliation depends on them.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/pkg/errors"
	"golang-invoice-etl/pkg/logger"
)

// Config holds configuration for the Ingestor
type Config struct {
	// InputDir is the directory scanned for input files
	InputDir string `json:"input_dir"`

	// ClientPrefix and InvoicePrefix classify files by name
	ClientPrefix  string `json:"client_prefix"`
	InvoicePrefix string `json:"invoice_prefix"`

	// Extension filters the files considered at all
	Extension string `json:"extension"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ClientPrefix:  "clients_",
		InvoicePrefix: "invoices_",
		Extension:     ".csv",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	if c.ClientPrefix == "" || c.InvoicePrefix == "" {
		return fmt.Errorf("file prefixes are required")
	}
	return nil
}

// Result is the outcome of one directory scan: the loaded tables per
// entity kind, in discovery order, plus the files that could not be
// loaded
type Result struct {
	ClientTables  []*models.RawTable `json:"client_tables"`
	InvoiceTables []*models.RawTable `json:"invoice_tables"`
	SkippedFiles  []string           `json:"skipped_files"`
}

// Stats captures ingestion diagnostics
type Stats struct {
	FilesFound    int           `json:"files_found"`
	FilesLoaded   int           `json:"files_loaded"`
	FilesSkipped  int           `json:"files_skipped"`
	ClientFiles   int           `json:"client_files"`
	InvoiceFiles  int           `json:"invoice_files"`
	RowsLoaded    int           `json:"rows_loaded"`
	RowsMalformed int           `json:"rows_malformed"`
	Duration      time.Duration `json:"duration"`
}

// String returns a human-readable summary of the stats
func (s *Stats) String() string {
	return fmt.Sprintf("ingest: %d files found, %d loaded (%d client, %d invoice), %d skipped, %d rows, %d malformed rows dropped in %v",
		s.FilesFound, s.FilesLoaded, s.ClientFiles, s.InvoiceFiles, s.FilesSkipped, s.RowsLoaded, s.RowsMalformed, s.Duration)
}

// Ingestor scans one input directory and loads its tables
type Ingestor struct {
	config *Config
	logger logger.Logger
}

// NewIngestor creates an Ingestor with the given configuration
func NewIngestor(config *Config) (*Ingestor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "ingest", config.InputDir, err)
	}

	return &Ingestor{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("ingest"),
	}, nil
}

// Ingest scans the input directory and loads every recognized file. A
// missing or unreadable directory is fatal; individual files that fail to
// load are skipped with a warning and recorded in the result.
func (i *Ingestor) Ingest() (*Result, *Stats, error) {
	start := time.Now()

	entries, err := os.ReadDir(i.config.InputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, i.config.InputDir, err)
		}
		return nil, nil, errors.FileError(errors.CodeDirectoryError, i.config.InputDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), i.config.Extension) {
			names = append(names, entry.Name())
		}
	}
	// Lexicographic order defines file order for reconciliation
	sort.Strings(names)

	result := &Result{
		ClientTables:  make([]*models.RawTable, 0),
		InvoiceTables: make([]*models.RawTable, 0),
		SkippedFiles:  make([]string, 0),
	}
	stats := &Stats{}

	for _, name := range names {
		kind, ok := i.classifyFilename(name)
		if !ok {
			continue
		}
		stats.FilesFound++

		path := filepath.Join(i.config.InputDir, name)
		table, malformed, err := i.loadTable(path)
		if err != nil {
			i.logger.WithError(err).WithField("file", name).Warn("Skipping unreadable file")
			result.SkippedFiles = append(result.SkippedFiles, name)
			stats.FilesSkipped++
			continue
		}
		stats.RowsMalformed += malformed

		switch kind {
		case models.EntityClient:
			result.ClientTables = append(result.ClientTables, table)
			stats.ClientFiles++
		case models.EntityInvoice:
			result.InvoiceTables = append(result.InvoiceTables, table)
			stats.InvoiceFiles++
		}
		stats.FilesLoaded++
		stats.RowsLoaded += table.NumRows()

		i.logger.WithFields(logger.Fields{
			"file":    name,
			"entity":  kind.String(),
			"rows":    table.NumRows(),
			"columns": len(table.Columns),
		}).Debug("Loaded input file")
	}

	if stats.FilesFound == 0 {
		i.logger.WithField("dir", i.config.InputDir).Warn("No recognizable input files found")
	}

	stats.Duration = time.Since(start)
	i.logger.Info(stats.String())
	return result, stats, nil
}

// classifyFilename maps a filename to an entity kind by prefix
func (i *Ingestor) classifyFilename(name string) (models.EntityKind, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, i.config.ClientPrefix):
		return models.EntityClient, true
	case strings.HasPrefix(lower, i.config.InvoicePrefix):
		return models.EntityInvoice, true
	default:
		return "", false
	}
}

// loadTable parses one CSV file into a RawTable, returning the number of
// malformed rows dropped along the way. The header row defines the column
// set; records whose width mismatches it lose only themselves, not the
// file.
func (i *Ingestor) loadTable(path string) (*models.RawTable, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.FileError(errors.CodeFilePermission, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, errors.ParseError(errors.CodeEmptyTable, path, 0, "", nil)
		}
		return nil, 0, errors.ParseError(errors.CodeInvalidFormat, path, 1, "", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")

	columns := make([]string, len(header))
	for idx, column := range header {
		columns[idx] = strings.TrimSpace(column)
	}

	table := &models.RawTable{
		Source:  filepath.Base(path),
		Columns: columns,
		Rows:    make([]models.RawRow, 0),
	}

	malformed := 0
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			if parseErr, ok := err.(*csv.ParseError); ok && parseErr.Err == csv.ErrFieldCount {
				malformed++
				i.logger.WithFields(logger.Fields{
					"file": filepath.Base(path),
					"line": line,
				}).Warn("Dropping row with mismatched field count")
				continue
			}
			return nil, malformed, errors.ParseError(errors.CodeInvalidFormat, path, line, "", err)
		}

		row := make(models.RawRow, len(columns))
		for idx, column := range columns {
			row[column] = record[idx]
		}
		table.Rows = append(table.Rows, row)
	}

	return table, malformed, nil
}
