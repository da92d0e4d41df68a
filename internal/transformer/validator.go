package transformer

import (
	"fmt"

	"golang-invoice-etl/internal/models"
)

// RowOutcome is the tagged result of validating one normalized row.
// Expected, high-frequency rejections are modeled as data, not as errors.
type RowOutcome struct {
	Row    *NormalizedRow
	Kept   bool
	Reason string
}

// RowValidator decides whether rows are structurally valid. Validation is
// two-phase: before reconciliation a row only needs its logical key (an
// unkeyed row cannot be grouped and is dropped), while the remaining
// required fields are enforced on the merged row, so a keyed row with a
// gap can still contribute its other fields to the group.
type RowValidator struct{}

// NewRowValidator creates a RowValidator
func NewRowValidator() *RowValidator {
	return &RowValidator{}
}

// ValidateKey checks that the row carries a well-formed logical key. Rows
// failing this check are dropped before reconciliation.
func (v *RowValidator) ValidateKey(row *NormalizedRow) RowOutcome {
	key, err := models.KeyFieldFor(row.Entity)
	if err != nil {
		return RowOutcome{Row: row, Kept: false, Reason: err.Error()}
	}

	if !row.Has(key) {
		return RowOutcome{
			Row:    row,
			Kept:   false,
			Reason: fmt.Sprintf("logical key %s missing or unrecognized", key),
		}
	}

	return RowOutcome{Row: row, Kept: true}
}

// ValidateMerged checks a reconciled row's required fields. Merged rows
// still missing a required field after resolution across all candidates
// are dropped from the canonical table.
func (v *RowValidator) ValidateMerged(row *NormalizedRow) RowOutcome {
	required, err := RequiredFieldsFor(row.Entity)
	if err != nil {
		return RowOutcome{Row: row, Kept: false, Reason: err.Error()}
	}

	for _, field := range required {
		if !row.Has(field) {
			return RowOutcome{
				Row:    row,
				Kept:   false,
				Reason: fmt.Sprintf("required field %s missing or unrecognized", field),
			}
		}
	}

	return RowOutcome{Row: row, Kept: true}
}

// RequiredFieldsFor returns the fields a canonical row must carry,
// including the logical key
func RequiredFieldsFor(kind models.EntityKind) ([]models.Field, error) {
	switch kind {
	case models.EntityClient:
		return []models.Field{models.FieldClientID, models.FieldClientName}, nil
	case models.EntityInvoice:
		return []models.Field{models.FieldInvoiceID, models.FieldClientID, models.FieldTotal}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}
}
