package transformer

import (
	"testing"

	"github.com/shopspring/decimal"

	"golang-invoice-etl/internal/classifier"
	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/internal/patterns"
)

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	tf, err := NewTransformer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewTransformer error: %v", err)
	}
	return tf
}

func TestTransformClientsMergesAcrossFiles(t *testing.T) {
	tf := newTestTransformer(t)

	// Two files describing the same client with complementary coverage:
	// the merged row combines fields from both.
	tables := []*models.RawTable{
		{
			Source:  "clients_2023.csv",
			Columns: []string{"id", "name", "status", "start"},
			Rows: []models.RawRow{
				{"id": "C10001", "name": "", "status": "Y", "start": "01/02/2024"},
				{"id": "C10002", "name": "Ann Brown", "status": "no", "start": "2024-03-01"},
			},
		},
		{
			Source:  "clients_2024.csv",
			Columns: []string{"id", "name", "status", "start"},
			Rows: []models.RawRow{
				{"id": "C10001", "name": "Jane Doe", "status": "", "start": ""},
			},
		},
	}

	clients, stats, err := tf.TransformClients(tables)
	if err != nil {
		t.Fatalf("TransformClients error: %v", err)
	}

	if len(clients) != 2 {
		t.Fatalf("canonical clients = %d, expected 2", len(clients))
	}

	merged := clients[0]
	if merged.ClientID != "C10001" {
		t.Fatalf("first canonical row key = %s, expected C10001", merged.ClientID)
	}
	if merged.ClientName != "Jane Doe" {
		t.Errorf("client_name = %s, expected 'Jane Doe'", merged.ClientName)
	}
	if merged.Status != models.StatusActive {
		t.Errorf("status = %s, expected ACTIVE", merged.Status)
	}
	if merged.StartDate != "2024-01-02" {
		t.Errorf("start_date = %s, expected 2024-01-02", merged.StartDate)
	}
	if merged.Tier != models.Missing {
		t.Errorf("tier = %s, expected missing", merged.Tier)
	}

	// The first file's C10001 row has no usable name but carries the
	// key, so it still contributes status and start date to the group.
	if stats.RowsRead != 3 || stats.RowsRejected != 0 || stats.RowsKept != 3 {
		t.Errorf("stats = %s, expected 3 read / 3 kept / 0 rejected", stats)
	}
	if stats.DuplicatesMerged != 1 {
		t.Errorf("duplicates merged = %d, expected 1", stats.DuplicatesMerged)
	}
}

func TestTransformValidityGating(t *testing.T) {
	tf := newTestTransformer(t)

	tables := []*models.RawTable{
		{
			Source:  "clients_a.csv",
			Columns: []string{"id", "name"},
			Rows: []models.RawRow{
				{"id": "C10001", "name": "John Smith"},
				{"id": "C10002", "name": "Jane Doe"},
				{"id": "C10003", "name": "Tom Hall"},
				{"id": "", "name": "Ghost Entry"},
				{"id": "badkey", "name": "Bad Key"},
				{"id": "C10999", "name": ""},
			},
		},
	}

	clients, stats, err := tf.TransformClients(tables)
	if err != nil {
		t.Fatalf("TransformClients error: %v", err)
	}

	if len(clients) != 3 {
		t.Fatalf("canonical clients = %d, expected 3", len(clients))
	}
	if clients[0].ClientID != "C10001" || clients[1].ClientID != "C10002" || clients[2].ClientID != "C10003" {
		t.Fatalf("unexpected canonical keys: %v", clients)
	}
	for _, client := range clients {
		if client.ClientName == "Ghost Entry" || client.ClientName == "Bad Key" {
			t.Errorf("row without a valid client_id leaked into the canonical table: %s", client.String())
		}
	}
	if stats.RowsRejected != 2 {
		t.Errorf("rejected = %d, expected 2", stats.RowsRejected)
	}
	// C10999 has a key but no name from any file: dropped after merging
	if stats.KeysRejected != 1 {
		t.Errorf("keys rejected = %d, expected 1", stats.KeysRejected)
	}
}

func TestTransformInvoicesOptionalShipment(t *testing.T) {
	tf := newTestTransformer(t)

	tables := []*models.RawTable{
		{
			Source:  "invoices_a.csv",
			Columns: []string{"inv", "cust", "sub", "tax_amt", "grand", "ship"},
			Rows: []models.RawRow{
				{"inv": "INV-A1B2C3D", "cust": "C10001", "sub": "100.00", "tax_amt": "10.00", "grand": "$110.00", "ship": "Two Day"},
				{"inv": "INV-E4F5G6H", "cust": "C10002", "sub": "200.00", "tax_amt": "20.00", "grand": "220.00", "ship": "ground"},
				{"inv": "INV-I7J8K9L", "cust": "C10003", "sub": "300.00", "tax_amt": "30.00", "grand": "330.00", "ship": "freight"},
				{"inv": "INV-M1N2O3P", "cust": "C10004", "sub": "400.00", "tax_amt": "40.00", "grand": "440.00", "ship": "EXPRESS"},
				{"inv": "INV-Q4R5S6T", "cust": "C10005", "sub": "500.00", "tax_amt": "50.00", "grand": "550.00", "ship": "overnight"},
			},
		},
	}

	invoices, stats, err := tf.TransformInvoices(tables)
	if err != nil {
		t.Fatalf("TransformInvoices error: %v", err)
	}
	if len(invoices) != 5 {
		t.Fatalf("canonical invoices = %d, expected 5", len(invoices))
	}

	first := invoices[0]
	if first.InvoiceID != "INV-A1B2C3D" {
		t.Fatalf("first canonical key = %s, expected INV-A1B2C3D", first.InvoiceID)
	}
	if first.ShipmentType != models.Shipment2Day {
		t.Errorf("shipment_type = %s, expected 2DAY", first.ShipmentType)
	}
	if !first.Total.Valid || !first.Total.Decimal.Equal(decimal.NewFromFloat(110)) {
		t.Errorf("total = %v, expected 110", first.Total)
	}
	if !first.Subtotal.Valid || !first.Subtotal.Decimal.Equal(decimal.NewFromFloat(100)) {
		t.Errorf("subtotal = %v, expected 100", first.Subtotal)
	}

	// An unrecognized shipment type is not fatal: the field goes missing
	// but the row survives because all required fields are present.
	last := invoices[4]
	if last.InvoiceID != "INV-Q4R5S6T" {
		t.Fatalf("last canonical key = %s, expected INV-Q4R5S6T", last.InvoiceID)
	}
	if last.ShipmentType != models.ShipmentMissing {
		t.Errorf("shipment_type = %s, expected missing", last.ShipmentType)
	}
	if stats.RowsRejected != 0 || stats.KeysRejected != 0 {
		t.Errorf("stats = %s, expected no rejections", stats)
	}
	// The failed "overnight" cell is the only unrecognized value
	if stats.FieldsUnrecognized != 1 {
		t.Errorf("fields unrecognized = %d, expected 1", stats.FieldsUnrecognized)
	}
}

func TestTransformInvoiceMissingTotalRejected(t *testing.T) {
	tf := newTestTransformer(t)

	tables := []*models.RawTable{
		{
			Source:  "invoices_a.csv",
			Columns: []string{"inv", "cust", "grand"},
			Rows: []models.RawRow{
				{"inv": "INV-A1B2C3D", "cust": "C10001", "grand": "110.00"},
				{"inv": "INV-E4F5G6H", "cust": "C10002", "grand": ""},
			},
		},
	}

	invoices, stats, err := tf.TransformInvoices(tables)
	if err != nil {
		t.Fatalf("TransformInvoices error: %v", err)
	}
	if len(invoices) != 1 || invoices[0].InvoiceID != "INV-A1B2C3D" {
		t.Fatalf("canonical invoices = %v, expected only INV-A1B2C3D", invoices)
	}
	// The keyed row without a total is only dropped after reconciliation
	// confirms no other file supplies the amount.
	if stats.RowsRejected != 0 || stats.KeysRejected != 1 {
		t.Errorf("stats = %s, expected 0 rejected / 1 key dropped", stats)
	}
}

func TestTransformRejectsUnknownEntity(t *testing.T) {
	tf := newTestTransformer(t)
	if _, _, err := tf.Transform(nil, models.EntityKind("vendor")); err == nil {
		t.Error("expected error for unknown entity kind")
	}
}

func TestNormalizeMarksUnrecognizedValuesMissing(t *testing.T) {
	library := patterns.NewLibrary()
	n := NewFieldNormalizer(library)

	mapping := &classifier.ColumnMapping{
		Entity: models.EntityClient,
		Source: "clients_a.csv",
		Assignments: map[models.Field]string{
			models.FieldClientID:   "id",
			models.FieldClientName: "name",
			models.FieldStatus:     "status",
			models.FieldStartDate:  "start",
		},
	}

	row, err := n.Normalize(models.RawRow{
		"id":     "C10001",
		"name":   "John Smith",
		"status": "maybe",
		"start":  "not a date",
	}, models.RowRef{}, mapping)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if !row.Has(models.FieldClientID) || !row.Has(models.FieldClientName) {
		t.Error("recognized fields should be valid")
	}
	if row.Has(models.FieldStatus) || row.Value(models.FieldStatus) != models.Missing {
		t.Error("unrecognized status should be missing")
	}
	if row.Has(models.FieldStartDate) {
		t.Error("unparsable date should be missing")
	}
	// Tier has no mapped column: missing without being an error
	if row.Value(models.FieldTier) != models.Missing {
		t.Error("unmapped tier should be missing")
	}
	// Both failed cells count; empty and unmapped cells do not
	if row.Unrecognized != 2 {
		t.Errorf("unrecognized = %d, expected 2", row.Unrecognized)
	}
}

func TestRowValidatorPhases(t *testing.T) {
	v := NewRowValidator()

	keyed := clientRow(models.RowRef{}, map[models.Field]string{
		models.FieldClientID: "C10001",
	})
	if outcome := v.ValidateKey(keyed); !outcome.Kept {
		t.Errorf("keyed row rejected before reconciliation: %s", outcome.Reason)
	}
	// A keyed row without a name survives the pre-merge phase but not
	// the merged-row check.
	if outcome := v.ValidateMerged(keyed); outcome.Kept {
		t.Error("merged row without client_name should be rejected")
	}

	unkeyed := clientRow(models.RowRef{}, map[models.Field]string{
		models.FieldClientName: "John Smith",
	})
	if outcome := v.ValidateKey(unkeyed); outcome.Kept {
		t.Error("row without client_id should be rejected before reconciliation")
	}

	// Optional fields absent: still valid after merge
	complete := clientRow(models.RowRef{}, map[models.Field]string{
		models.FieldClientID:   "C10001",
		models.FieldClientName: "John Smith",
		models.FieldStatus:     models.Missing,
	})
	if outcome := v.ValidateMerged(complete); !outcome.Kept {
		t.Errorf("row with missing optional fields rejected: %s", outcome.Reason)
	}
}
