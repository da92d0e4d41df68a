package reporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"golang-invoice-etl/internal/analytics"
	"golang-invoice-etl/internal/ingest"
	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/internal/transformer"
)

func testResults() *analytics.Results {
	total := decimal.NullDecimal{Decimal: decimal.NewFromFloat(110.5), Valid: true}
	return &analytics.Results{
		Model: []analytics.ModelRow{
			{ClientID: "C10001", ClientName: "John Smith", InvoiceID: "INV-A000001",
				StartDate: "2024-01-10", Total: total, ShipmentType: models.ShipmentGround},
		},
		ClientTotals:   []analytics.ClientTotal{{ClientID: "C10001", ClientName: "John Smith", Total: decimal.NewFromFloat(110.5)}},
		TopOutstanding: []analytics.ClientTotal{{ClientID: "C10001", ClientName: "John Smith", Total: decimal.NewFromFloat(110.5)}},
		MonthlyGrowth: []analytics.GrowthRow{
			{ClientID: "C10001", ClientName: "John Smith", YearMonth: "2024-01", Total: decimal.NewFromFloat(110.5)},
		},
		TopDiscounts: []analytics.ClientTotal{{ClientID: "C10001", ClientName: "John Smith", Total: decimal.NewFromFloat(88.4)}},
		Savings: []analytics.SavingsRow{
			{ClientID: "C10001", ClientName: "John Smith", OldTotal: decimal.NewFromFloat(110.5),
				DiscountedTotal: decimal.NewFromFloat(88.4), Savings: decimal.NewFromFloat(22.1),
				PercentSavings: decimal.NewFromInt(20)},
		},
		SavingsOver50Pct: []analytics.SavingsRow{},
		SavingsOver500K:  []analytics.SavingsRow{},
	}
}

func TestWriteAllProducesEveryFile(t *testing.T) {
	dir := t.TempDir()
	config := &Config{OutputDir: dir}
	r, err := NewReporter(config)
	if err != nil {
		t.Fatalf("NewReporter error: %v", err)
	}

	clients := []models.CanonicalClient{
		{ClientID: "C10001", ClientName: "John Smith", Status: models.StatusActive, StartDate: "2024-01-02"},
	}
	invoices := []models.CanonicalInvoice{
		{InvoiceID: "INV-A000001", ClientID: "C10001", StartDate: "2024-01-10",
			Total:        decimal.NullDecimal{Decimal: decimal.NewFromFloat(110.5), Valid: true},
			ShipmentType: models.ShipmentGround},
	}

	written, err := r.WriteAll(clients, invoices, testResults())
	if err != nil {
		t.Fatalf("WriteAll error: %v", err)
	}
	if len(written) != 9 {
		t.Fatalf("written files = %d, expected 9", len(written))
	}

	expected := []string{
		filepath.Join(dir, OutputsSubdir, FileClientsCleaned),
		filepath.Join(dir, OutputsSubdir, FileInvoicesCleaned),
		filepath.Join(dir, OutputsSubdir, FileModel),
		filepath.Join(dir, AnalysisSubdir, FileTopOutstanding),
		filepath.Join(dir, AnalysisSubdir, FileMonthlyGrowth),
		filepath.Join(dir, AnalysisSubdir, FileTopDiscounts),
		filepath.Join(dir, AnalysisSubdir, FileTotalSavings),
		filepath.Join(dir, AnalysisSubdir, FileSavingsOver50),
		filepath.Join(dir, AnalysisSubdir, FileSavingsOver500K),
	}
	for _, path := range expected {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected output file missing: %s", path)
		}
	}
}

func TestWriteAllFileContents(t *testing.T) {
	dir := t.TempDir()
	r, err := NewReporter(&Config{OutputDir: dir})
	if err != nil {
		t.Fatalf("NewReporter error: %v", err)
	}

	clients := []models.CanonicalClient{
		{ClientID: "C10001", ClientName: "John Smith", Status: models.StatusActive,
			StartDate: "2024-01-02", Tier: models.Missing},
	}
	invoices := []models.CanonicalInvoice{
		{InvoiceID: "INV-A000001", ClientID: "C10001", StartDate: "2024-01-10",
			Total:        decimal.NullDecimal{Decimal: decimal.NewFromFloat(110.5), Valid: true},
			ShipmentType: models.ShipmentMissing},
	}

	if _, err := r.WriteAll(clients, invoices, testResults()); err != nil {
		t.Fatalf("WriteAll error: %v", err)
	}

	records := readCSV(t, filepath.Join(dir, OutputsSubdir, FileClientsCleaned))
	if len(records) != 2 {
		t.Fatalf("client file rows = %d, expected header + 1", len(records))
	}
	wantHeader := "client_id,client_name,status,start_date,tier"
	if strings.Join(records[0], ",") != wantHeader {
		t.Errorf("client header = %v, expected %s", records[0], wantHeader)
	}
	if records[1][0] != "C10001" || records[1][2] != "ACTIVE" || records[1][4] != "" {
		t.Errorf("client row = %v", records[1])
	}

	records = readCSV(t, filepath.Join(dir, OutputsSubdir, FileInvoicesCleaned))
	// Missing numeric fields and shipment type serialize as empty cells
	if records[1][3] != "" || records[1][4] != "" || records[1][6] != "" {
		t.Errorf("invoice row = %v, expected empty cells for missing fields", records[1])
	}
	if records[1][5] != "110.5" {
		t.Errorf("invoice total = '%s', expected plain decimal '110.5'", records[1][5])
	}

	records = readCSV(t, filepath.Join(dir, AnalysisSubdir, FileSavingsOver50))
	// Empty query results still produce a file with only the header
	if len(records) != 1 {
		t.Errorf("empty savings view rows = %d, expected header only", len(records))
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return records
}

func TestRunSummaryRender(t *testing.T) {
	summary := &RunSummary{
		Ingest: &ingest.Stats{FilesFound: 4, FilesLoaded: 3, FilesSkipped: 1, ClientFiles: 2, InvoiceFiles: 1, RowsLoaded: 42},
		Clients: &transformer.Stats{
			Entity: models.EntityClient, RowsRead: 20, RowsKept: 18, RowsRejected: 2, UniqueKeys: 15, DuplicatesMerged: 3,
			FieldsUnrecognized: 4,
			AbsentFields:       map[string][]string{"clients_b.csv": {"tier"}},
		},
		Invoices:     &transformer.Stats{Entity: models.EntityInvoice, RowsRead: 22, RowsKept: 22, UniqueKeys: 22},
		Results:      testResults(),
		WrittenFiles: []string{"Outputs/Clients_Merged_Cleaned.csv"},
	}

	rendered := summary.Render()
	for _, want := range []string{
		"ETL RUN SUMMARY",
		"INGEST",
		"CLIENTS",
		"INVOICES",
		"ANALYTICS",
		"clients_b.csv: tier",
		"Values unrecognized: 4",
		"Outputs/Clients_Merged_Cleaned.csv",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("summary missing %q:\n%s", want, rendered)
		}
	}
}

func TestRunSummaryOrdersUnclassifiedSources(t *testing.T) {
	summary := &RunSummary{
		Clients: &transformer.Stats{
			Entity: models.EntityClient,
			AbsentFields: map[string][]string{
				"clients_c.csv": {"tier"},
				"clients_a.csv": {"status"},
				"clients_b.csv": {"start_date"},
			},
		},
	}

	rendered := summary.Render()
	a := strings.Index(rendered, "clients_a.csv")
	b := strings.Index(rendered, "clients_b.csv")
	c := strings.Index(rendered, "clients_c.csv")
	if a == -1 || b == -1 || c == -1 {
		t.Fatalf("summary missing unclassified lines:\n%s", rendered)
	}
	if !(a < b && b < c) {
		t.Errorf("unclassified sources out of order (a=%d, b=%d, c=%d):\n%s", a, b, c, rendered)
	}
}

func TestConfigValidate(t *testing.T) {
	config := &Config{}
	if err := config.Validate(); err == nil {
		t.Error("expected error for empty output directory")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
