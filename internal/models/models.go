// Package models defines the data vocabulary shared by every pipeline stage:
// entity kinds, canonical field names, raw tables as loaded from disk, the
// canonical client/invoice rows produced by reconciliation, and the value
// parsing helpers that turn heterogeneous CSV cells into canonical domains.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Missing is the explicit marker for a field that is present in the schema
// but whose value is absent or could not be recognized. It is distinct from
// a field having no mapped column at all, which is recorded in the column
// mapping, not in row values.
const Missing = ""

// EntityKind identifies which canonical schema a table belongs to
type EntityKind string

const (
	// EntityClient represents client master records
	EntityClient EntityKind = "client"
	// EntityInvoice represents invoice records
	EntityInvoice EntityKind = "invoice"
)

// String returns the string representation of EntityKind
func (k EntityKind) String() string {
	return string(k)
}

// IsValid checks if the entity kind is known
func (k EntityKind) IsValid() bool {
	return k == EntityClient || k == EntityInvoice
}

// Field is a canonical field name used across all input schemas
type Field string

const (
	FieldClientID     Field = "client_id"
	FieldClientName   Field = "client_name"
	FieldStatus       Field = "status"
	FieldStartDate    Field = "start_date"
	FieldTier         Field = "tier"
	FieldInvoiceID    Field = "invoice_id"
	FieldSubtotal     Field = "subtotal"
	FieldTax          Field = "tax"
	FieldTotal        Field = "total"
	FieldShipmentType Field = "shipment_type"
)

// String returns the string representation of Field
func (f Field) String() string {
	return string(f)
}

// ClientFields returns the canonical client schema in output column order
func ClientFields() []Field {
	return []Field{FieldClientID, FieldClientName, FieldStatus, FieldStartDate, FieldTier}
}

// InvoiceFields returns the canonical invoice schema in output column order
func InvoiceFields() []Field {
	return []Field{FieldInvoiceID, FieldClientID, FieldStartDate, FieldSubtotal, FieldTax, FieldTotal, FieldShipmentType}
}

// FieldsFor returns the canonical schema for the given entity kind
func FieldsFor(kind EntityKind) ([]Field, error) {
	switch kind {
	case EntityClient:
		return ClientFields(), nil
	case EntityInvoice:
		return InvoiceFields(), nil
	default:
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}
}

// KeyFieldFor returns the logical key field for the given entity kind
func KeyFieldFor(kind EntityKind) (Field, error) {
	switch kind {
	case EntityClient:
		return FieldClientID, nil
	case EntityInvoice:
		return FieldInvoiceID, nil
	default:
		return "", fmt.Errorf("unknown entity kind: %s", kind)
	}
}

// Identifier shapes for the two logical keys

var (
	// ClientIDPattern matches canonical client identifiers, e.g. "C10001"
	ClientIDPattern = regexp.MustCompile(`^[A-Z][0-9]{5}$`)
	// InvoiceIDPattern matches canonical invoice identifiers, e.g. "INV-A1B2C3D"
	InvoiceIDPattern = regexp.MustCompile(`^INV-[A-Z0-9]{7}$`)
	// NamePattern matches person names of at least two words, allowing
	// apostrophes and hyphens inside words
	NamePattern = regexp.MustCompile(`^[A-Za-z'-]+( [A-Za-z'-]+)+$`)
)

// RowRef locates a row within the ordered sequence of input files. It is
// carried through classification and normalization so reconciliation can
// resolve conflicts in a defined input order instead of relying on
// incidental container ordering.
type RowRef struct {
	FileIndex int `json:"file_index"`
	RowIndex  int `json:"row_index"`
}

// Before reports whether r precedes other in input order
func (r RowRef) Before(other RowRef) bool {
	if r.FileIndex != other.FileIndex {
		return r.FileIndex < other.FileIndex
	}
	return r.RowIndex < other.RowIndex
}

// String returns a compact location string for diagnostics
func (r RowRef) String() string {
	return fmt.Sprintf("file %d row %d", r.FileIndex, r.RowIndex)
}

// RawRow is one record of a raw table, keyed by raw column name.
// Empty string represents a missing cell.
type RawRow map[string]string

// RawTable is an ordered, immutable table as loaded from one input file.
// Every row has the same column set as its source file.
type RawTable struct {
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
	Rows    []RawRow `json:"rows"`
}

// NumRows returns the number of data rows in the table
func (t *RawTable) NumRows() int {
	return len(t.Rows)
}

// ColumnValues returns the values of one raw column in row order
func (t *RawTable) ColumnValues(column string) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[column])
	}
	return values
}

// String returns a short description of the table
func (t *RawTable) String() string {
	return fmt.Sprintf("RawTable{source: %s, columns: %d, rows: %d}", t.Source, len(t.Columns), len(t.Rows))
}

// Status is the canonical client status domain
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusMissing  Status = Missing
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a known canonical value
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// ParseStatus parses a raw status flag into the canonical domain.
// Recognized encodings are case-insensitive boolean-like synonyms.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "a", "y", "yes", "true", "1":
		return StatusActive, nil
	case "inactive", "i", "n", "no", "false", "0":
		return StatusInactive, nil
	default:
		return StatusMissing, fmt.Errorf("unrecognized status value '%s'", s)
	}
}

// ShipmentType is the canonical shipment type domain
type ShipmentType string

const (
	ShipmentGround  ShipmentType = "GROUND"
	ShipmentFreight ShipmentType = "FREIGHT"
	ShipmentExpress ShipmentType = "EXPRESS"
	Shipment2Day    ShipmentType = "2DAY"
	ShipmentMissing ShipmentType = Missing
)

// String returns the string representation of ShipmentType
func (s ShipmentType) String() string {
	return string(s)
}

// IsValid checks if the shipment type is a known canonical value
func (s ShipmentType) IsValid() bool {
	switch s {
	case ShipmentGround, ShipmentFreight, ShipmentExpress, Shipment2Day:
		return true
	default:
		return false
	}
}

// ParseShipmentType parses a raw shipment type string into the canonical
// domain. Hyphens and inner spaces are stripped before matching, so
// "2-Day" and "Two Day" both normalize to 2DAY.
func ParseShipmentType(s string) (ShipmentType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")

	switch normalized {
	case "GROUND":
		return ShipmentGround, nil
	case "FREIGHT":
		return ShipmentFreight, nil
	case "EXPRESS":
		return ShipmentExpress, nil
	case "2DAY", "TWODAY":
		return Shipment2Day, nil
	default:
		return ShipmentMissing, fmt.Errorf("unrecognized shipment type '%s'", s)
	}
}

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// DateLayouts returns the ordered list of layouts tried when parsing raw
// date cells. The first layout that parses the full string wins.
func DateLayouts() []string {
	return []string{
		"2006-01-02",
		"01/02/2006",
		"01/02/06",
		"2006/01/02 15:04:05",
		"2006/01/02",
		"2-Jan-2006",
		"2-Jan-06",
		"Jan 2, 2006",
		"January 2, 2006",
		"02-01-2006",
		time.RFC3339,
	}
}

// ParseDateWithLayouts attempts to parse a date string using the fixed
// ordered layout list
func ParseDateWithLayouts(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	var lastErr error
	for _, layout := range DateLayouts() {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// NormalizeDate parses a raw date cell and renders it in the canonical
// YYYY-MM-DD format
func NormalizeDate(s string) (string, error) {
	t, err := ParseDateWithLayouts(s)
	if err != nil {
		return Missing, err
	}
	return t.Format("2006-01-02"), nil
}

// NormalizeName normalizes a raw name cell: words are title-cased and any
// character outside letters, apostrophe, hyphen and space is removed.
func NormalizeName(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '\'' || r == '-' || r == ' ' {
			return r
		}
		return -1
	}, strings.TrimSpace(s))

	words := strings.Fields(strings.ToLower(cleaned))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// CanonicalClient is one deduplicated, schema-normalized client row.
// ClientID is the logical key; at most one row per ClientID exists in a
// canonical table.
type CanonicalClient struct {
	ClientID   string `json:"client_id" csv:"client_id"`
	ClientName string `json:"client_name" csv:"client_name"`
	Status     Status `json:"status" csv:"status"`
	StartDate  string `json:"start_date" csv:"start_date"`
	Tier       string `json:"tier" csv:"tier"`
}

// Validate performs basic validation on the CanonicalClient
func (c *CanonicalClient) Validate() error {
	if !ClientIDPattern.MatchString(c.ClientID) {
		return fmt.Errorf("invalid client id '%s'", c.ClientID)
	}

	if strings.TrimSpace(c.ClientName) == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	if c.Status != StatusMissing && !c.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", c.Status)
	}

	if c.StartDate != Missing {
		if _, err := time.Parse("2006-01-02", c.StartDate); err != nil {
			return fmt.Errorf("invalid start date '%s': %w", c.StartDate, err)
		}
	}

	return nil
}

// String returns a string representation of the CanonicalClient
func (c *CanonicalClient) String() string {
	return fmt.Sprintf("Client{ID: %s, Name: %s, Status: %s, Start: %s, Tier: %s}",
		c.ClientID, c.ClientName, c.Status, c.StartDate, c.Tier)
}

// CanonicalInvoice is one deduplicated, schema-normalized invoice row.
// InvoiceID is the logical key. ClientID is a reference into the client
// table with no integrity enforcement at this layer: it may point at a
// client absent from the canonical client table.
type CanonicalInvoice struct {
	InvoiceID    string              `json:"invoice_id" csv:"invoice_id"`
	ClientID     string              `json:"client_id" csv:"client_id"`
	StartDate    string              `json:"start_date" csv:"start_date"`
	Subtotal     decimal.NullDecimal `json:"subtotal" csv:"subtotal"`
	Tax          decimal.NullDecimal `json:"tax" csv:"tax"`
	Total        decimal.NullDecimal `json:"total" csv:"total"`
	ShipmentType ShipmentType        `json:"shipment_type" csv:"shipment_type"`
}

// Validate performs basic validation on the CanonicalInvoice
func (inv *CanonicalInvoice) Validate() error {
	if !InvoiceIDPattern.MatchString(inv.InvoiceID) {
		return fmt.Errorf("invalid invoice id '%s'", inv.InvoiceID)
	}

	if !ClientIDPattern.MatchString(inv.ClientID) {
		return fmt.Errorf("invalid client id '%s'", inv.ClientID)
	}

	if !inv.Total.Valid {
		return fmt.Errorf("invoice total is required")
	}

	if inv.ShipmentType != ShipmentMissing && !inv.ShipmentType.IsValid() {
		return fmt.Errorf("invalid shipment type: %s", inv.ShipmentType)
	}

	return nil
}

// String returns a string representation of the CanonicalInvoice
func (inv *CanonicalInvoice) String() string {
	total := Missing
	if inv.Total.Valid {
		total = inv.Total.Decimal.String()
	}
	return fmt.Sprintf("Invoice{ID: %s, Client: %s, Total: %s, Shipment: %s}",
		inv.InvoiceID, inv.ClientID, total, inv.ShipmentType)
}

// FormatNullDecimal renders a nullable decimal for CSV output: plain
// decimal formatting, empty cell when absent
func FormatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return Missing
	}
	return d.Decimal.String()
}
