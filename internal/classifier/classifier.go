// Package classifier implements schema inference for raw tables. Given a
// table with arbitrary column names it scores every raw column against
// every candidate canonical field using the pattern library, then runs a
// greedy highest-ratio-first assignment gated by a confidence threshold.
package classifier

import (
	"fmt"
	"sort"
	"strings"

	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/internal/patterns"
	"golang-invoice-etl/pkg/errors"
	"golang-invoice-etl/pkg/logger"
)

// Config holds configuration for the ColumnClassifier
type Config struct {
	// ConfidenceThreshold is the minimum match ratio required to assign a
	// raw column to a canonical field. The comparison is inclusive: a
	// ratio exactly at the threshold is accepted.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// HeaderAliases maps rule-less canonical fields (free-form value
	// domains that cannot be detected by value shape) to the raw header
	// names that claim them
	HeaderAliases map[models.Field][]string `json:"header_aliases"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ConfidenceThreshold: 0.80,
		HeaderAliases: map[models.Field][]string{
			models.FieldTier: {"tier", "client_tier", "membership_tier", "level"},
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %f", c.ConfidenceThreshold)
	}
	return nil
}

// MatchScore is one (raw column, canonical field) candidate pairing with
// its match ratio. Scores are ephemeral: consumed by the assignment pass
// and discarded.
type MatchScore struct {
	Column      string
	ColumnIndex int
	Field       models.Field
	FieldIndex  int
	Ratio       float64
}

// ColumnMapping is the result of classifying one raw table: which raw
// column serves each canonical field, which columns were discarded as
// currency markers, and which columns matched nothing
type ColumnMapping struct {
	Entity      models.EntityKind       `json:"entity"`
	Source      string                  `json:"source"`
	Assignments map[models.Field]string `json:"assignments"`
	Discarded   []string                `json:"discarded"`
	Unassigned  []string                `json:"unassigned"`
}

// ColumnFor returns the raw column assigned to a canonical field, if any
func (m *ColumnMapping) ColumnFor(field models.Field) (string, bool) {
	column, ok := m.Assignments[field]
	return column, ok
}

// AbsentFields returns the canonical fields of the entity that received
// no raw column, in canonical field order
func (m *ColumnMapping) AbsentFields() []models.Field {
	fields, err := models.FieldsFor(m.Entity)
	if err != nil {
		return nil
	}

	absent := make([]models.Field, 0)
	for _, field := range fields {
		if _, ok := m.Assignments[field]; !ok {
			absent = append(absent, field)
		}
	}
	return absent
}

// String returns a compact description of the mapping for diagnostics
func (m *ColumnMapping) String() string {
	return fmt.Sprintf("ColumnMapping{entity: %s, source: %s, assigned: %d, discarded: %d, unassigned: %d}",
		m.Entity, m.Source, len(m.Assignments), len(m.Discarded), len(m.Unassigned))
}

// ColumnClassifier infers the canonical role of every raw column in a
// table
type ColumnClassifier struct {
	config  *Config
	library *patterns.Library
	logger  logger.Logger
}

// NewColumnClassifier creates a classifier with the given configuration
// and rule library
func NewColumnClassifier(config *Config, library *patterns.Library) (*ColumnClassifier, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "classifier", config.ConfidenceThreshold, err)
	}
	if library == nil {
		library = patterns.NewLibrary()
	}

	return &ColumnClassifier{
		config:  config,
		library: library,
		logger:  logger.GetGlobalLogger().WithComponent("classifier"),
	}, nil
}

// Classify maps every raw column of the table to at most one canonical
// field of the entity kind. Assignment is greedy by descending match
// ratio; ties are broken by the raw column's left-to-right position in
// the file, then by canonical field order, so when several amount-shaped
// columns qualify the leftmost becomes subtotal, the next tax, then
// total. Fields with no column at or above the confidence threshold are
// left absent.
func (c *ColumnClassifier) Classify(table *models.RawTable, kind models.EntityKind) (*ColumnMapping, error) {
	if !kind.IsValid() {
		return nil, errors.TransformError(errors.CodeUnknownEntity, "classification",
			fmt.Errorf("entity kind '%s'", kind))
	}

	mapping := &ColumnMapping{
		Entity:      kind,
		Source:      table.Source,
		Assignments: make(map[models.Field]string),
		Discarded:   make([]string, 0),
		Unassigned:  make([]string, 0),
	}

	candidates := c.partitionColumns(table, mapping)
	c.claimByHeader(candidates, kind, mapping)
	scores := c.scoreColumns(table, candidates, kind, mapping)
	c.assign(scores, mapping)

	// Anything still unclaimed matched no field at the threshold
	claimed := make(map[string]bool)
	for _, column := range mapping.Assignments {
		claimed[column] = true
	}
	for _, column := range candidates {
		if !claimed[column] {
			mapping.Unassigned = append(mapping.Unassigned, column)
		}
	}

	for _, field := range mapping.AbsentFields() {
		c.logger.WithFields(logger.Fields{
			"source": table.Source,
			"entity": kind.String(),
			"field":  field.String(),
		}).Warn("No raw column met the confidence threshold for field")
	}

	c.logger.WithFields(logger.Fields{
		"source":     table.Source,
		"entity":     kind.String(),
		"assigned":   len(mapping.Assignments),
		"discarded":  len(mapping.Discarded),
		"unassigned": len(mapping.Unassigned),
	}).Debug("Classified raw table")

	return mapping, nil
}

// partitionColumns separates currency marker columns from assignment
// candidates, preserving the file's column order
func (c *ColumnClassifier) partitionColumns(table *models.RawTable, mapping *ColumnMapping) []string {
	candidates := make([]string, 0, len(table.Columns))
	for _, column := range table.Columns {
		if c.isCurrencyColumn(table, column) {
			mapping.Discarded = append(mapping.Discarded, column)
			continue
		}
		candidates = append(candidates, column)
	}
	return candidates
}

// isCurrencyColumn reports whether the column is dominated by bare
// currency codes. Such columns carry no canonical field.
func (c *ColumnClassifier) isCurrencyColumn(table *models.RawTable, column string) bool {
	ratio := matchRatio(table.ColumnValues(column), patterns.IsCurrencyValue)
	return ratio >= c.config.ConfidenceThreshold
}

// claimByHeader assigns rule-less fields (tier) by header name. Only the
// first column matching an alias, in file order, claims the field; the
// claimed column leaves the candidate pool.
func (c *ColumnClassifier) claimByHeader(candidates []string, kind models.EntityKind, mapping *ColumnMapping) {
	fields, err := models.FieldsFor(kind)
	if err != nil {
		return
	}

	for _, field := range fields {
		if c.library.HasRule(field) {
			continue
		}
		aliases := c.config.HeaderAliases[field]
		for _, column := range candidates {
			if _, taken := mapping.Assignments[field]; taken {
				break
			}
			if columnClaimed(mapping, column) {
				continue
			}
			for _, alias := range aliases {
				if normalizeHeader(column) == alias {
					mapping.Assignments[field] = column
					break
				}
			}
		}
	}
}

// scoreColumns computes the match ratio of every candidate column against
// every ruled field of the entity
func (c *ColumnClassifier) scoreColumns(table *models.RawTable, candidates []string, kind models.EntityKind, mapping *ColumnMapping) []MatchScore {
	ruled, err := c.library.RuledFieldsFor(kind)
	if err != nil {
		return nil
	}

	scores := make([]MatchScore, 0, len(candidates)*len(ruled))
	for columnIndex, column := range candidates {
		if columnClaimed(mapping, column) {
			continue
		}
		values := table.ColumnValues(column)
		for fieldIndex, field := range ruled {
			rule, _ := c.library.RuleFor(field)
			scores = append(scores, MatchScore{
				Column:      column,
				ColumnIndex: columnIndex,
				Field:       field,
				FieldIndex:  fieldIndex,
				Ratio:       matchRatio(values, rule.Matches),
			})
		}
	}
	return scores
}

// assign runs the greedy highest-ratio-first pass over the scores. Each
// column is assigned to at most one field and each field receives at most
// one column; scores below the confidence threshold never assign.
func (c *ColumnClassifier) assign(scores []MatchScore, mapping *ColumnMapping) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Ratio != scores[j].Ratio {
			return scores[i].Ratio > scores[j].Ratio
		}
		if scores[i].ColumnIndex != scores[j].ColumnIndex {
			return scores[i].ColumnIndex < scores[j].ColumnIndex
		}
		return scores[i].FieldIndex < scores[j].FieldIndex
	})

	assignedColumns := make(map[string]bool)
	for _, score := range scores {
		if score.Ratio < c.config.ConfidenceThreshold {
			break
		}
		if assignedColumns[score.Column] {
			continue
		}
		if _, taken := mapping.Assignments[score.Field]; taken {
			continue
		}
		mapping.Assignments[score.Field] = score.Column
		assignedColumns[score.Column] = true

		c.logger.WithFields(logger.Fields{
			"field":  score.Field.String(),
			"column": score.Column,
			"ratio":  score.Ratio,
		}).Debug("Assigned raw column to canonical field")
	}
}

// matchRatio returns the fraction of non-empty values satisfying the
// predicate. A column with no non-empty values scores zero.
func matchRatio(values []string, predicate func(string) bool) float64 {
	nonEmpty := 0
	matched := 0
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		nonEmpty++
		if predicate(value) {
			matched++
		}
	}

	if nonEmpty == 0 {
		return 0
	}
	return float64(matched) / float64(nonEmpty)
}

func columnClaimed(mapping *ColumnMapping, column string) bool {
	for _, assigned := range mapping.Assignments {
		if assigned == column {
			return true
		}
	}
	return false
}

func normalizeHeader(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(header))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return normalized
}
