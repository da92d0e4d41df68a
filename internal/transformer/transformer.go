package transformer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"golang-invoice-etl/internal/classifier"
	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/internal/patterns"
	"golang-invoice-etl/pkg/errors"
	"golang-invoice-etl/pkg/logger"
)

// Config holds configuration for the Transformer
type Config struct {
	Classifier *classifier.Config `json:"classifier"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{Classifier: classifier.DefaultConfig()}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Classifier == nil {
		return fmt.Errorf("classifier configuration is required")
	}
	return c.Classifier.Validate()
}

// Stats captures row-count diagnostics for one entity's transform. Bad
// data never raises; it only shrinks the canonical table, so these counts
// are the caller's visibility into data quality.
type Stats struct {
	Entity             models.EntityKind   `json:"entity"`
	FilesProcessed     int                 `json:"files_processed"`
	RowsRead           int                 `json:"rows_read"`
	RowsKept           int                 `json:"rows_kept"`
	RowsRejected       int                 `json:"rows_rejected"`
	KeysRejected       int                 `json:"keys_rejected"`
	UniqueKeys         int                 `json:"unique_keys"`
	DuplicatesMerged   int                 `json:"duplicates_merged"`
	FieldsUnrecognized int                 `json:"fields_unrecognized"`
	AbsentFields       map[string][]string `json:"absent_fields"`
	Duration           time.Duration       `json:"duration"`
}

// String returns a human-readable summary of the stats
func (s *Stats) String() string {
	return fmt.Sprintf("%s transform: %d files, %d rows read, %d kept, %d rejected, %d keys dropped after merge, %d canonical rows (%d duplicates merged), %d values unrecognized in %v",
		s.Entity, s.FilesProcessed, s.RowsRead, s.RowsKept, s.RowsRejected, s.KeysRejected, s.UniqueKeys, s.DuplicatesMerged, s.FieldsUnrecognized, s.Duration)
}

// Transformer orchestrates classification, normalization, validation and
// reconciliation for one entity across all its input files
type Transformer struct {
	config     *Config
	classifier *classifier.ColumnClassifier
	normalizer *FieldNormalizer
	validator  *RowValidator
	reconciler *EntityReconciler
	logger     logger.Logger
}

// NewTransformer creates a Transformer with the given configuration
func NewTransformer(config *Config) (*Transformer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "transformer", nil, err)
	}

	library := patterns.NewLibrary()
	columnClassifier, err := classifier.NewColumnClassifier(config.Classifier, library)
	if err != nil {
		return nil, err
	}

	return &Transformer{
		config:     config,
		classifier: columnClassifier,
		normalizer: NewFieldNormalizer(library),
		validator:  NewRowValidator(),
		reconciler: NewEntityReconciler(),
		logger:     logger.GetGlobalLogger().WithComponent("transformer"),
	}, nil
}

// Transform runs the full pipeline for one entity kind over the ordered
// sequence of raw tables and returns the reconciled canonical rows in key
// order. Table order defines input order for conflict resolution, so
// callers must pass tables in file discovery order.
func (t *Transformer) Transform(tables []*models.RawTable, kind models.EntityKind) ([]*NormalizedRow, *Stats, error) {
	if !kind.IsValid() {
		return nil, nil, errors.TransformError(errors.CodeUnknownEntity, "transform",
			fmt.Errorf("entity kind '%s'", kind))
	}

	start := time.Now()
	stats := &Stats{
		Entity:       kind,
		AbsentFields: make(map[string][]string),
	}

	op := logger.NewOperationLogger(fmt.Sprintf("transform %ss", kind), t.logger)

	kept := make([]*NormalizedRow, 0)
	for fileIndex, table := range tables {
		op.Step(fmt.Sprintf("classifying %s (%d rows)", table.Source, table.NumRows()))

		mapping, err := t.classifier.Classify(table, kind)
		if err != nil {
			return nil, nil, err
		}
		for _, field := range mapping.AbsentFields() {
			stats.AbsentFields[table.Source] = append(stats.AbsentFields[table.Source], field.String())
		}

		for rowIndex, raw := range table.Rows {
			ref := models.RowRef{FileIndex: fileIndex, RowIndex: rowIndex}
			row, err := t.normalizer.Normalize(raw, ref, mapping)
			if err != nil {
				return nil, nil, errors.TransformError(errors.CodeFieldUnrecognized,
					fmt.Sprintf("normalizing %s row %d", table.Source, rowIndex), err)
			}

			stats.RowsRead++
			stats.FieldsUnrecognized += row.Unrecognized
			outcome := t.validator.ValidateKey(row)
			if !outcome.Kept {
				stats.RowsRejected++
				continue
			}
			stats.RowsKept++
			kept = append(kept, outcome.Row)
		}

		stats.FilesProcessed++
	}

	merged, err := t.reconciler.Reconcile(kept, kind)
	if err != nil {
		return nil, nil, errors.TransformError(errors.CodeUnknownEntity, "reconciling rows", err)
	}

	// Required non-key fields are enforced on the merged row, so a keyed
	// row with a gap still contributes its other fields to its group.
	canonical := make([]*NormalizedRow, 0, len(merged))
	for _, row := range merged {
		outcome := t.validator.ValidateMerged(row)
		if !outcome.Kept {
			stats.KeysRejected++
			t.logger.WithFields(logger.Fields{
				"entity": kind.String(),
				"key":    row.Key(),
				"reason": outcome.Reason,
			}).Debug("Dropped merged row")
			continue
		}
		canonical = append(canonical, row)
	}

	stats.UniqueKeys = len(canonical)
	stats.DuplicatesMerged = stats.RowsKept - len(merged)
	stats.Duration = time.Since(start)

	op.Success(stats.String())
	return canonical, stats, nil
}

// TransformClients runs the pipeline for client tables and returns typed
// canonical client rows
func (t *Transformer) TransformClients(tables []*models.RawTable) ([]models.CanonicalClient, *Stats, error) {
	rows, stats, err := t.Transform(tables, models.EntityClient)
	if err != nil {
		return nil, nil, err
	}

	clients := make([]models.CanonicalClient, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, models.CanonicalClient{
			ClientID:   row.Value(models.FieldClientID),
			ClientName: row.Value(models.FieldClientName),
			Status:     models.Status(row.Value(models.FieldStatus)),
			StartDate:  row.Value(models.FieldStartDate),
			Tier:       row.Value(models.FieldTier),
		})
	}
	return clients, stats, nil
}

// TransformInvoices runs the pipeline for invoice tables and returns
// typed canonical invoice rows
func (t *Transformer) TransformInvoices(tables []*models.RawTable) ([]models.CanonicalInvoice, *Stats, error) {
	rows, stats, err := t.Transform(tables, models.EntityInvoice)
	if err != nil {
		return nil, nil, err
	}

	invoices := make([]models.CanonicalInvoice, 0, len(rows))
	for _, row := range rows {
		invoice := models.CanonicalInvoice{
			InvoiceID:    row.Value(models.FieldInvoiceID),
			ClientID:     row.Value(models.FieldClientID),
			StartDate:    row.Value(models.FieldStartDate),
			ShipmentType: models.ShipmentType(row.Value(models.FieldShipmentType)),
		}

		var err error
		if invoice.Subtotal, err = nullDecimalFrom(row, models.FieldSubtotal); err != nil {
			return nil, nil, err
		}
		if invoice.Tax, err = nullDecimalFrom(row, models.FieldTax); err != nil {
			return nil, nil, err
		}
		if invoice.Total, err = nullDecimalFrom(row, models.FieldTotal); err != nil {
			return nil, nil, err
		}

		invoices = append(invoices, invoice)
	}
	return invoices, stats, nil
}

// nullDecimalFrom parses an already-normalized decimal field back into a
// nullable decimal. Values reaching this point were rendered by the
// pattern library, so a parse failure is an internal fault, not bad data.
func nullDecimalFrom(row *NormalizedRow, field models.Field) (decimal.NullDecimal, error) {
	if !row.Has(field) {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(row.Value(field))
	if err != nil {
		return decimal.NullDecimal{}, errors.InternalError(errors.CodeUnexpectedError,
			fmt.Sprintf("parsing canonical %s value '%s'", field, row.Value(field)), err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
