// Package patterns holds the fixed per-field detection and normalization
// rules used for schema inference. Every rule is a pure function pair: a
// predicate deciding whether one raw cell looks like the field, and a
// normalizer rewriting the cell into the canonical value domain. The rules
// are deliberately explainable regex/enumeration checks, not learned
// weights.
package patterns

import (
	"fmt"
	"strings"

	"golang-invoice-etl/internal/models"
)

// Rule is one canonical field's detection predicate and normalizer.
// Matches reports whether a raw cell plausibly belongs to the field;
// Normalize rewrites the cell into the canonical domain or returns an
// error when the value cannot be recognized.
type Rule struct {
	Field     models.Field
	Matches   func(value string) bool
	Normalize func(value string) (string, error)
}

// Library is the complete, immutable rule set shared by both entity
// transformers
type Library struct {
	rules map[models.Field]Rule
}

// NewLibrary builds the fixed rule set
func NewLibrary() *Library {
	lib := &Library{rules: make(map[models.Field]Rule)}

	for _, rule := range []Rule{
		clientIDRule(),
		clientNameRule(),
		statusRule(),
		dateRule(),
		invoiceIDRule(),
		decimalRule(models.FieldSubtotal),
		decimalRule(models.FieldTax),
		decimalRule(models.FieldTotal),
		shipmentTypeRule(),
	} {
		lib.rules[rule.Field] = rule
	}

	return lib
}

// RuleFor returns the rule for a canonical field, if one exists. Fields
// with free-form domains (tier) carry no rule and are discovered by
// header name instead of value shape.
func (l *Library) RuleFor(field models.Field) (Rule, bool) {
	rule, ok := l.rules[field]
	return rule, ok
}

// HasRule reports whether a canonical field has a detection rule
func (l *Library) HasRule(field models.Field) bool {
	_, ok := l.rules[field]
	return ok
}

// RuledFieldsFor returns the fields of an entity kind that carry a
// detection rule, in canonical field order
func (l *Library) RuledFieldsFor(kind models.EntityKind) ([]models.Field, error) {
	fields, err := models.FieldsFor(kind)
	if err != nil {
		return nil, err
	}

	ruled := make([]models.Field, 0, len(fields))
	for _, field := range fields {
		if l.HasRule(field) {
			ruled = append(ruled, field)
		}
	}
	return ruled, nil
}

// Normalize rewrites one raw cell into the canonical domain of the given
// field. Fields without a rule (tier) pass through trimmed.
func (l *Library) Normalize(field models.Field, value string) (string, error) {
	rule, ok := l.rules[field]
	if !ok {
		return strings.TrimSpace(value), nil
	}
	return rule.Normalize(value)
}

// IsCurrencyValue reports whether a raw cell is a bare currency code.
// Columns dominated by such values carry no canonical field and are
// discarded during classification.
func IsCurrencyValue(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "usd")
}

func clientIDRule() Rule {
	matches := func(value string) bool {
		return models.ClientIDPattern.MatchString(strings.TrimSpace(value))
	}
	return Rule{
		Field:   models.FieldClientID,
		Matches: matches,
		Normalize: func(value string) (string, error) {
			trimmed := strings.TrimSpace(value)
			if !models.ClientIDPattern.MatchString(trimmed) {
				return models.Missing, fmt.Errorf("value '%s' does not match client id pattern", value)
			}
			return trimmed, nil
		},
	}
}

func invoiceIDRule() Rule {
	matches := func(value string) bool {
		return models.InvoiceIDPattern.MatchString(strings.TrimSpace(value))
	}
	return Rule{
		Field:   models.FieldInvoiceID,
		Matches: matches,
		Normalize: func(value string) (string, error) {
			trimmed := strings.TrimSpace(value)
			if !models.InvoiceIDPattern.MatchString(trimmed) {
				return models.Missing, fmt.Errorf("value '%s' does not match invoice id pattern", value)
			}
			return trimmed, nil
		},
	}
}

func clientNameRule() Rule {
	return Rule{
		Field: models.FieldClientName,
		Matches: func(value string) bool {
			return models.NamePattern.MatchString(strings.TrimSpace(value))
		},
		Normalize: func(value string) (string, error) {
			normalized := models.NormalizeName(value)
			if !models.NamePattern.MatchString(normalized) {
				return models.Missing, fmt.Errorf("value '%s' is not a recognizable name", value)
			}
			return normalized, nil
		},
	}
}

func statusRule() Rule {
	return Rule{
		Field: models.FieldStatus,
		Matches: func(value string) bool {
			_, err := models.ParseStatus(value)
			return err == nil
		},
		Normalize: func(value string) (string, error) {
			status, err := models.ParseStatus(value)
			if err != nil {
				return models.Missing, err
			}
			return status.String(), nil
		},
	}
}

func dateRule() Rule {
	return Rule{
		Field: models.FieldStartDate,
		Matches: func(value string) bool {
			_, err := models.ParseDateWithLayouts(value)
			return err == nil
		},
		Normalize: models.NormalizeDate,
	}
}

func shipmentTypeRule() Rule {
	return Rule{
		Field: models.FieldShipmentType,
		Matches: func(value string) bool {
			_, err := models.ParseShipmentType(value)
			return err == nil
		},
		Normalize: func(value string) (string, error) {
			shipment, err := models.ParseShipmentType(value)
			if err != nil {
				return models.Missing, err
			}
			return shipment.String(), nil
		},
	}
}

// decimalRule is shared by subtotal, tax and total. The three fields are
// indistinguishable by value shape; the classifier breaks the tie by
// column position and canonical field order.
func decimalRule(field models.Field) Rule {
	return Rule{
		Field: field,
		Matches: func(value string) bool {
			_, err := models.ParseDecimalFromString(value)
			return err == nil
		},
		Normalize: func(value string) (string, error) {
			d, err := models.ParseDecimalFromString(value)
			if err != nil {
				return models.Missing, err
			}
			return d.String(), nil
		},
	}
}
