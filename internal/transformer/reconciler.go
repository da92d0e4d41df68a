package transformer

import (
	"sort"

	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/pkg/logger"
)

// EntityReconciler collapses all valid rows sharing a logical key into a
// single canonical row. Resolution is per field and deterministic: the
// first non-missing candidate in input order wins, except status, where
// ACTIVE beats INACTIVE beats missing regardless of order.
type EntityReconciler struct {
	logger logger.Logger
}

// NewEntityReconciler creates an EntityReconciler
func NewEntityReconciler() *EntityReconciler {
	return &EntityReconciler{
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Reconcile merges rows spanning all input files for one entity. Every
// key present in the input appears exactly once in the output; the output
// is sorted by key. Input rows must already be valid per RowValidator.
func (r *EntityReconciler) Reconcile(rows []*NormalizedRow, kind models.EntityKind) ([]*NormalizedRow, error) {
	fields, err := models.FieldsFor(kind)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*NormalizedRow)
	keys := make([]string, 0)
	for _, row := range rows {
		key := row.Key()
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}
	sort.Strings(keys)

	merged := make([]*NormalizedRow, 0, len(keys))
	for _, key := range keys {
		candidates := groups[key]
		// Defend against callers that shuffled rows: resolution depends
		// on input order, so restore it explicitly.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Ref.Before(candidates[j].Ref)
		})
		merged = append(merged, r.mergeGroup(candidates, kind, fields))

		if len(candidates) > 1 {
			r.logger.WithFields(logger.Fields{
				"entity":     kind.String(),
				"key":        key,
				"candidates": len(candidates),
			}).Debug("Merged duplicate rows for key")
		}
	}

	return merged, nil
}

// mergeGroup resolves each field independently across the group's
// candidates, so the merged row can combine values from different files
func (r *EntityReconciler) mergeGroup(candidates []*NormalizedRow, kind models.EntityKind, fields []models.Field) *NormalizedRow {
	merged := &NormalizedRow{
		Entity: kind,
		Ref:    candidates[0].Ref,
		Values: make(map[models.Field]string, len(fields)),
		Valid:  make(map[models.Field]bool, len(fields)),
	}

	for _, field := range fields {
		var value string
		if field == models.FieldStatus {
			value = resolveStatus(candidates)
		} else {
			value = resolveFirstNonMissing(candidates, field)
		}
		merged.Values[field] = value
		merged.Valid[field] = value != models.Missing
	}

	return merged
}

// resolveFirstNonMissing returns the field value of the earliest
// candidate that carries one
func resolveFirstNonMissing(candidates []*NormalizedRow, field models.Field) string {
	for _, candidate := range candidates {
		if candidate.Has(field) {
			return candidate.Value(field)
		}
	}
	return models.Missing
}

// resolveStatus applies the status precedence rule: any ACTIVE candidate
// makes the merged status ACTIVE, otherwise any INACTIVE makes it
// INACTIVE, otherwise it is missing
func resolveStatus(candidates []*NormalizedRow) string {
	sawInactive := false
	for _, candidate := range candidates {
		switch candidate.Value(models.FieldStatus) {
		case models.StatusActive.String():
			return models.StatusActive.String()
		case models.StatusInactive.String():
			sawInactive = true
		}
	}
	if sawInactive {
		return models.StatusInactive.String()
	}
	return models.Missing
}
