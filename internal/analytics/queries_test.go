package analytics

import (
	"testing"

	"github.com/shopspring/decimal"

	"golang-invoice-etl/internal/models"
)

func amount(value float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(value), Valid: true}
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer error: %v", err)
	}
	return a
}

func testClients() []models.CanonicalClient {
	return []models.CanonicalClient{
		{ClientID: "C10001", ClientName: "John Smith", Status: models.StatusActive},
		{ClientID: "C10002", ClientName: "Jane Doe", Status: models.StatusInactive},
	}
}

func testInvoices() []models.CanonicalInvoice {
	return []models.CanonicalInvoice{
		{InvoiceID: "INV-A000001", ClientID: "C10001", StartDate: "2024-01-10", Total: amount(100), ShipmentType: models.ShipmentGround},
		{InvoiceID: "INV-A000002", ClientID: "C10001", StartDate: "2024-02-15", Total: amount(300), ShipmentType: models.ShipmentExpress},
		{InvoiceID: "INV-A000003", ClientID: "C10002", StartDate: "2024-01-20", Total: amount(500), ShipmentType: models.Shipment2Day},
		// Orphan invoice: no such client in the canonical client table
		{InvoiceID: "INV-A000004", ClientID: "C19999", StartDate: "2023-06-01", Total: amount(50), ShipmentType: models.ShipmentFreight},
	}
}

func TestBuildModelLeftJoin(t *testing.T) {
	model := BuildModel(testClients(), testInvoices())

	if len(model) != 4 {
		t.Fatalf("model rows = %d, expected every invoice kept", len(model))
	}

	if model[0].ClientName != "John Smith" {
		t.Errorf("joined client name = '%s', expected 'John Smith'", model[0].ClientName)
	}

	orphan := model[3]
	if orphan.InvoiceID != "INV-A000004" {
		t.Fatalf("unexpected row order: %v", orphan)
	}
	if orphan.ClientName != models.Missing {
		t.Errorf("orphan client name = '%s', expected missing", orphan.ClientName)
	}
}

func TestInvoiceAmountSorted(t *testing.T) {
	a := newTestAnalyzer(t)
	totals := a.InvoiceAmountSorted(BuildModel(testClients(), testInvoices()))

	if len(totals) != 3 {
		t.Fatalf("client totals = %d, expected 3", len(totals))
	}

	// Jane 500, John 100+300=400, orphan 50: descending
	expected := []struct {
		clientID string
		total    float64
	}{
		{"C10002", 500},
		{"C10001", 400},
		{"C19999", 50},
	}
	for i, exp := range expected {
		if totals[i].ClientID != exp.clientID || !totals[i].Total.Equal(decimal.NewFromFloat(exp.total)) {
			t.Errorf("totals[%d] = %s/%s, expected %s/%v",
				i, totals[i].ClientID, totals[i].Total, exp.clientID, exp.total)
		}
	}
}

func TestMonthOverMonthGrowth(t *testing.T) {
	a := newTestAnalyzer(t)

	invoices := []models.CanonicalInvoice{
		{InvoiceID: "INV-A000001", ClientID: "C10001", StartDate: "2024-01-10", Total: amount(100)},
		{InvoiceID: "INV-A000002", ClientID: "C10001", StartDate: "2024-01-25", Total: amount(100)},
		{InvoiceID: "INV-A000003", ClientID: "C10001", StartDate: "2024-02-05", Total: amount(300)},
		{InvoiceID: "INV-A000004", ClientID: "C10002", StartDate: "2024-03-01", Total: amount(500)},
		// Outside the window: ignored
		{InvoiceID: "INV-A000005", ClientID: "C10001", StartDate: "2023-12-31", Total: amount(999)},
		{InvoiceID: "INV-A000006", ClientID: "C10001", StartDate: "2026-01-01", Total: amount(999)},
	}

	growth, err := a.MonthOverMonthGrowth(BuildModel(testClients(), invoices))
	if err != nil {
		t.Fatalf("MonthOverMonthGrowth error: %v", err)
	}

	if len(growth) != 3 {
		t.Fatalf("growth rows = %d, expected 3", len(growth))
	}

	jan := growth[0]
	if jan.YearMonth != "2024-01" || !jan.Total.Equal(decimal.NewFromInt(200)) {
		t.Errorf("first row = %s %s, expected 2024-01 total 200", jan.YearMonth, jan.Total)
	}
	if !jan.Delta.IsZero() || !jan.GrowthPct.IsZero() {
		t.Errorf("first observed month should report zero change, got delta %s pct %s", jan.Delta, jan.GrowthPct)
	}

	feb := growth[1]
	if !feb.Delta.Equal(decimal.NewFromInt(100)) {
		t.Errorf("feb delta = %s, expected 100", feb.Delta)
	}
	if !feb.GrowthPct.Equal(decimal.NewFromInt(50)) {
		t.Errorf("feb growth pct = %s, expected 50", feb.GrowthPct)
	}

	// A new client's first month also reports zero change
	other := growth[2]
	if other.ClientID != "C10002" || !other.Delta.IsZero() || !other.GrowthPct.IsZero() {
		t.Errorf("new client's first month should report zero change, got %v", other)
	}
}

func TestDiscountApplied(t *testing.T) {
	a := newTestAnalyzer(t)

	invoices := []models.CanonicalInvoice{
		{InvoiceID: "INV-A000001", ClientID: "C10001", Total: amount(100), ShipmentType: models.ShipmentGround},
		{InvoiceID: "INV-A000002", ClientID: "C10001", Total: amount(100), ShipmentType: models.ShipmentFreight},
		{InvoiceID: "INV-A000003", ClientID: "C10001", Total: amount(100), ShipmentType: models.Shipment2Day},
		{InvoiceID: "INV-A000004", ClientID: "C10001", Total: amount(100), ShipmentType: models.ShipmentExpress},
		{InvoiceID: "INV-A000005", ClientID: "C10001", Total: amount(100), ShipmentType: models.ShipmentMissing},
	}

	discounted := a.DiscountApplied(BuildModel(testClients(), invoices))
	if len(discounted) != 1 {
		t.Fatalf("discounted totals = %d, expected 1", len(discounted))
	}

	// 80 + 70 + 50 + 100 (express undiscounted) + 100 (missing undiscounted)
	if !discounted[0].Total.Equal(decimal.NewFromInt(400)) {
		t.Errorf("discounted total = %s, expected 400", discounted[0].Total)
	}
}

func TestReclassifyDiscount(t *testing.T) {
	a := newTestAnalyzer(t)

	invoices := []models.CanonicalInvoice{
		// EXPRESS reclassifies to GROUND, so 1000000 becomes 800000
		{InvoiceID: "INV-A000001", ClientID: "C10001", Total: amount(1000000), ShipmentType: models.ShipmentExpress},
		// 2DAY halves: 1000 becomes 500
		{InvoiceID: "INV-A000002", ClientID: "C10002", Total: amount(1000), ShipmentType: models.Shipment2Day},
	}

	savings, over50, over500k := a.ReclassifyDiscount(BuildModel(testClients(), invoices))

	if len(savings) != 2 {
		t.Fatalf("savings rows = %d, expected 2", len(savings))
	}

	// Descending by discounted total: John first
	john := savings[0]
	if john.ClientID != "C10001" {
		t.Fatalf("first savings row = %s, expected C10001", john.ClientID)
	}
	if !john.OldTotal.Equal(decimal.NewFromInt(1000000)) || !john.DiscountedTotal.Equal(decimal.NewFromInt(800000)) {
		t.Errorf("john totals = %s/%s, expected 1000000/800000", john.OldTotal, john.DiscountedTotal)
	}
	if !john.Savings.Equal(decimal.NewFromInt(200000)) || !john.PercentSavings.Equal(decimal.NewFromInt(20)) {
		t.Errorf("john savings = %s (%s%%), expected 200000 (20%%)", john.Savings, john.PercentSavings)
	}

	jane := savings[1]
	if !jane.Savings.Equal(decimal.NewFromInt(500)) || !jane.PercentSavings.Equal(decimal.NewFromInt(50)) {
		t.Errorf("jane savings = %s (%s%%), expected 500 (50%%)", jane.Savings, jane.PercentSavings)
	}

	// Both filters are strict: 50% exactly does not qualify, nor does
	// 200000 absolute
	if len(over50) != 0 {
		t.Errorf("over-50%% rows = %v, expected none", over50)
	}
	if len(over500k) != 0 {
		t.Errorf("over-500k rows = %v, expected none", over500k)
	}
}

func TestReclassifyDiscountFilters(t *testing.T) {
	a := newTestAnalyzer(t)

	invoices := []models.CanonicalInvoice{
		// 2000000 at 2DAY: discounted 1000000, savings 1000000, 50% exactly
		{InvoiceID: "INV-A000001", ClientID: "C10001", Total: amount(2000000), ShipmentType: models.Shipment2Day},
		// 100 at FREIGHT: savings 30, 30%
		{InvoiceID: "INV-A000002", ClientID: "C10002", Total: amount(100), ShipmentType: models.ShipmentFreight},
	}

	_, over50, over500k := a.ReclassifyDiscount(BuildModel(testClients(), invoices))

	if len(over50) != 0 {
		t.Errorf("exactly 50%% should not pass the strict filter, got %v", over50)
	}
	if len(over500k) != 1 || over500k[0].ClientID != "C10001" {
		t.Errorf("over-500k rows = %v, expected only C10001", over500k)
	}
}

func TestRunRejectsEmptyModel(t *testing.T) {
	a := newTestAnalyzer(t)
	if _, err := a.Run(testClients(), nil); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestRunProducesAllResults(t *testing.T) {
	a := newTestAnalyzer(t)

	results, err := a.Run(testClients(), testInvoices())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(results.Model) != 4 {
		t.Errorf("model rows = %d, expected 4", len(results.Model))
	}
	if len(results.TopOutstanding) != 3 {
		t.Errorf("top outstanding = %d, expected all 3 clients (fewer than top-n)", len(results.TopOutstanding))
	}
	if len(results.MonthlyGrowth) == 0 {
		t.Error("expected growth rows inside the window")
	}
	if len(results.Savings) != 3 {
		t.Errorf("savings rows = %d, expected 3", len(results.Savings))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		hasError bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero top-n", func(c *Config) { c.TopN = 0 }, true},
		{"bad start", func(c *Config) { c.WindowStart = "01/01/2024" }, true},
		{"bad end", func(c *Config) { c.WindowEnd = "never" }, true},
		{"inverted window", func(c *Config) { c.WindowStart, c.WindowEnd = c.WindowEnd, c.WindowStart }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.mutate(config)
			err := config.Validate()
			if test.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
