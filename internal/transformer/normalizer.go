// Package transformer turns classified raw tables into the two canonical
// tables: it normalizes cell values into fixed domains, drops rows missing
// required keys, and collapses all candidate rows per logical key into one
// canonical row with deterministic conflict resolution.
package transformer

import (
	"fmt"
	"strings"

	"golang-invoice-etl/internal/classifier"
	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/internal/patterns"
	"golang-invoice-etl/pkg/logger"
)

// NormalizedRow is one row rewritten into canonical field space. Values
// holds the canonical rendering of each field (the missing marker when
// the value is absent or unrecognized); Valid records which fields passed
// normalization. Ref preserves the row's position in input order for
// reconciliation.
type NormalizedRow struct {
	Entity models.EntityKind
	Ref    models.RowRef
	Values map[models.Field]string
	Valid  map[models.Field]bool

	// Unrecognized counts mapped, non-empty cells whose value failed
	// normalization and was marked missing
	Unrecognized int
}

// Value returns the canonical value of a field, or the missing marker
func (r *NormalizedRow) Value(field models.Field) string {
	return r.Values[field]
}

// Has reports whether the field is present and passed normalization
func (r *NormalizedRow) Has(field models.Field) bool {
	return r.Valid[field] && r.Values[field] != models.Missing
}

// Key returns the row's logical key value
func (r *NormalizedRow) Key() string {
	key, err := models.KeyFieldFor(r.Entity)
	if err != nil {
		return models.Missing
	}
	return r.Values[key]
}

// String returns a compact description of the row for diagnostics
func (r *NormalizedRow) String() string {
	return fmt.Sprintf("NormalizedRow{entity: %s, key: %s, %s}", r.Entity, r.Key(), r.Ref)
}

// FieldNormalizer rewrites raw rows into canonical field space using an
// immutable column mapping produced by the classifier
type FieldNormalizer struct {
	library *patterns.Library
	logger  logger.Logger
}

// NewFieldNormalizer creates a normalizer backed by the given rule
// library
func NewFieldNormalizer(library *patterns.Library) *FieldNormalizer {
	if library == nil {
		library = patterns.NewLibrary()
	}
	return &FieldNormalizer{
		library: library,
		logger:  logger.GetGlobalLogger().WithComponent("normalizer"),
	}
}

// Normalize rewrites one raw row. A value that fails normalization
// becomes the missing marker for that field; the row itself is never
// rejected here. Fields whose column is absent from the mapping are
// missing by construction.
func (n *FieldNormalizer) Normalize(row models.RawRow, ref models.RowRef, mapping *classifier.ColumnMapping) (*NormalizedRow, error) {
	fields, err := models.FieldsFor(mapping.Entity)
	if err != nil {
		return nil, err
	}

	normalized := &NormalizedRow{
		Entity: mapping.Entity,
		Ref:    ref,
		Values: make(map[models.Field]string, len(fields)),
		Valid:  make(map[models.Field]bool, len(fields)),
	}

	for _, field := range fields {
		column, ok := mapping.ColumnFor(field)
		if !ok {
			normalized.Values[field] = models.Missing
			continue
		}

		raw := row[column]
		if strings.TrimSpace(raw) == "" {
			normalized.Values[field] = models.Missing
			continue
		}

		value, err := n.library.Normalize(field, raw)
		if err != nil {
			normalized.Values[field] = models.Missing
			normalized.Unrecognized++
			n.logger.WithFields(logger.Fields{
				"field":  field.String(),
				"value":  raw,
				"source": mapping.Source,
				"row":    ref.RowIndex,
			}).Debug("Value failed normalization, marked missing")
			continue
		}

		normalized.Values[field] = value
		normalized.Valid[field] = true
	}

	return normalized, nil
}
