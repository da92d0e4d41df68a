// Package analytics builds the joined invoice-client model and answers
// the fixed business queries over it. All arithmetic uses decimals; no
// floats touch money.
package analytics

import (
	"fmt"

	"github.com/shopspring/decimal"

	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/pkg/logger"
)

// ModelRow is one row of the joined invoice-client model: an invoice
// enriched with the name of its client. The join is a left join, so an
// invoice referencing a client absent from the canonical client table
// keeps a missing client name.
type ModelRow struct {
	ClientID     string              `json:"client_id"`
	ClientName   string              `json:"client_name"`
	InvoiceID    string              `json:"invoice_id"`
	StartDate    string              `json:"start_date"`
	Total        decimal.NullDecimal `json:"total"`
	ShipmentType models.ShipmentType `json:"shipment_type"`
}

// BuildModel left-joins canonical invoices to canonical clients on
// client_id. Every invoice appears exactly once, in invoice key order;
// client attributes are missing for orphan invoices.
func BuildModel(clients []models.CanonicalClient, invoices []models.CanonicalInvoice) []ModelRow {
	log := logger.GetGlobalLogger().WithComponent("analytics")

	names := make(map[string]string, len(clients))
	for _, client := range clients {
		names[client.ClientID] = client.ClientName
	}

	orphans := 0
	rows := make([]ModelRow, 0, len(invoices))
	for _, invoice := range invoices {
		name, ok := names[invoice.ClientID]
		if !ok {
			name = models.Missing
			orphans++
		}
		rows = append(rows, ModelRow{
			ClientID:     invoice.ClientID,
			ClientName:   name,
			InvoiceID:    invoice.InvoiceID,
			StartDate:    invoice.StartDate,
			Total:        invoice.Total,
			ShipmentType: invoice.ShipmentType,
		})
	}

	log.WithFields(logger.Fields{
		"invoices": len(invoices),
		"clients":  len(clients),
		"orphans":  orphans,
	}).Debug("Built invoice-client model")

	return rows
}

// totalOf returns the row's total, treating a missing amount as zero.
// Canonical invoices always carry a total; model rows built elsewhere may
// not.
func totalOf(row ModelRow) decimal.Decimal {
	if !row.Total.Valid {
		return decimal.Zero
	}
	return row.Total.Decimal
}

// clientKey groups model rows per client for aggregation
type clientKey struct {
	ClientID   string
	ClientName string
}

func (k clientKey) String() string {
	return fmt.Sprintf("%s/%s", k.ClientID, k.ClientName)
}
