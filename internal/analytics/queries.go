package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/pkg/errors"
	"golang-invoice-etl/pkg/logger"
)

// Config holds configuration for the Analyzer
type Config struct {
	// TopN bounds the top-spender and top-discount views
	TopN int `json:"top_n"`

	// WindowStart and WindowEnd bound the month-over-month growth query
	// (inclusive, YYYY-MM-DD)
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`

	// DiscountRates maps shipment types to price multipliers; types
	// without an entry pay full price
	DiscountRates map[models.ShipmentType]decimal.Decimal `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		TopN:        5,
		WindowStart: "2024-01-01",
		WindowEnd:   "2025-12-31",
		DiscountRates: map[models.ShipmentType]decimal.Decimal{
			models.ShipmentGround:  decimal.NewFromFloat(0.8),
			models.ShipmentFreight: decimal.NewFromFloat(0.7),
			models.Shipment2Day:    decimal.NewFromFloat(0.5),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("top-n must be positive, got %d", c.TopN)
	}

	start, err := time.Parse("2006-01-02", c.WindowStart)
	if err != nil {
		return fmt.Errorf("invalid window start '%s': %w", c.WindowStart, err)
	}
	end, err := time.Parse("2006-01-02", c.WindowEnd)
	if err != nil {
		return fmt.Errorf("invalid window end '%s': %w", c.WindowEnd, err)
	}
	if start.After(end) {
		return fmt.Errorf("window start %s is after window end %s", c.WindowStart, c.WindowEnd)
	}

	return nil
}

// ClientTotal is one client's aggregated invoice amount
type ClientTotal struct {
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name"`
	Total      decimal.Decimal `json:"total"`
}

// GrowthRow is one client-month of the month-over-month growth query
type GrowthRow struct {
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name"`
	YearMonth  string          `json:"year_month"`
	Total      decimal.Decimal `json:"total"`
	Delta      decimal.Decimal `json:"mom_delta"`
	GrowthPct  decimal.Decimal `json:"mom_growth_pct"`
}

// SavingsRow is one client's outcome under the reclassification scenario
type SavingsRow struct {
	ClientID        string          `json:"client_id"`
	ClientName      string          `json:"client_name"`
	OldTotal        decimal.Decimal `json:"old_total"`
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	Savings         decimal.Decimal `json:"savings"`
	PercentSavings  decimal.Decimal `json:"percent_savings"`
}

// Results bundles the joined model and every query output for one run
type Results struct {
	Model            []ModelRow
	ClientTotals     []ClientTotal
	TopOutstanding   []ClientTotal
	MonthlyGrowth    []GrowthRow
	TopDiscounts     []ClientTotal
	Savings          []SavingsRow
	SavingsOver50Pct []SavingsRow
	SavingsOver500K  []SavingsRow
}

// Analyzer runs the fixed business queries over the joined model
type Analyzer struct {
	config *Config
	logger logger.Logger
}

// NewAnalyzer creates an Analyzer with the given configuration
func NewAnalyzer(config *Config) (*Analyzer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.QueryError(errors.CodeInvalidWindow, "analyzer configuration", err)
	}

	return &Analyzer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("analytics"),
	}, nil
}

// Run joins the canonical tables and executes every query. An empty
// model is an error: the canonical tables upstream were silently reduced
// to nothing, which the caller should surface rather than write empty
// reports.
func (a *Analyzer) Run(clients []models.CanonicalClient, invoices []models.CanonicalInvoice) (*Results, error) {
	model := BuildModel(clients, invoices)
	if len(model) == 0 {
		return nil, errors.QueryError(errors.CodeEmptyModel, "analytics run", nil)
	}

	totals := a.InvoiceAmountSorted(model)
	growth, err := a.MonthOverMonthGrowth(model)
	if err != nil {
		return nil, err
	}
	discounts := a.DiscountApplied(model)
	savings, over50, over500k := a.ReclassifyDiscount(model)

	results := &Results{
		Model:            model,
		ClientTotals:     totals,
		TopOutstanding:   topN(totals, a.config.TopN),
		MonthlyGrowth:    growth,
		TopDiscounts:     topN(discounts, a.config.TopN),
		Savings:          savings,
		SavingsOver50Pct: over50,
		SavingsOver500K:  over500k,
	}

	a.logger.WithFields(logger.Fields{
		"model_rows":    len(model),
		"clients":       len(totals),
		"growth_months": len(growth),
	}).Info("Analytics queries complete")

	return results, nil
}

// InvoiceAmountSorted aggregates invoice totals per client, sorted by
// total descending. Ties order by client id for determinism.
func (a *Analyzer) InvoiceAmountSorted(model []ModelRow) []ClientTotal {
	sums := make(map[clientKey]decimal.Decimal)
	keys := make([]clientKey, 0)
	for _, row := range model {
		key := clientKey{ClientID: row.ClientID, ClientName: row.ClientName}
		if _, seen := sums[key]; !seen {
			keys = append(keys, key)
		}
		sums[key] = sums[key].Add(totalOf(row))
	}

	totals := make([]ClientTotal, 0, len(keys))
	for _, key := range keys {
		totals = append(totals, ClientTotal{
			ClientID:   key.ClientID,
			ClientName: key.ClientName,
			Total:      sums[key],
		})
	}

	sort.SliceStable(totals, func(i, j int) bool {
		if !totals[i].Total.Equal(totals[j].Total) {
			return totals[i].Total.GreaterThan(totals[j].Total)
		}
		return totals[i].ClientID < totals[j].ClientID
	})

	return totals
}

// MonthOverMonthGrowth aggregates totals per client per calendar month
// within the configured window and computes each month's absolute and
// percent change against the client's previous observed month. A
// client's first observed month reports zero change.
func (a *Analyzer) MonthOverMonthGrowth(model []ModelRow) ([]GrowthRow, error) {
	windowStart, err := time.Parse("2006-01-02", a.config.WindowStart)
	if err != nil {
		return nil, errors.QueryError(errors.CodeInvalidWindow, "month-over-month growth", err)
	}
	windowEnd, err := time.Parse("2006-01-02", a.config.WindowEnd)
	if err != nil {
		return nil, errors.QueryError(errors.CodeInvalidWindow, "month-over-month growth", err)
	}

	type monthKey struct {
		ClientID   string
		ClientName string
		YearMonth  string
	}

	sums := make(map[monthKey]decimal.Decimal)
	keys := make([]monthKey, 0)
	for _, row := range model {
		date, err := time.Parse("2006-01-02", row.StartDate)
		if err != nil {
			// Rows without a usable date fall outside any window
			continue
		}
		if date.Before(windowStart) || date.After(windowEnd) {
			continue
		}

		key := monthKey{
			ClientID:   row.ClientID,
			ClientName: row.ClientName,
			YearMonth:  date.Format("2006-01"),
		}
		if _, seen := sums[key]; !seen {
			keys = append(keys, key)
		}
		sums[key] = sums[key].Add(totalOf(row))
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ClientID != keys[j].ClientID {
			return keys[i].ClientID < keys[j].ClientID
		}
		return keys[i].YearMonth < keys[j].YearMonth
	})

	hundred := decimal.NewFromInt(100)
	rows := make([]GrowthRow, 0, len(keys))
	var prev *GrowthRow
	for _, key := range keys {
		row := GrowthRow{
			ClientID:   key.ClientID,
			ClientName: key.ClientName,
			YearMonth:  key.YearMonth,
			Total:      sums[key],
		}

		if prev != nil && prev.ClientID == row.ClientID {
			row.Delta = row.Total.Sub(prev.Total)
			if !prev.Total.IsZero() {
				row.GrowthPct = row.Delta.Div(prev.Total).Mul(hundred)
			}
		}

		rows = append(rows, row)
		prev = &rows[len(rows)-1]
	}

	return rows, nil
}

// DiscountApplied multiplies every invoice total by its shipment type's
// discount rate and re-aggregates per client
func (a *Analyzer) DiscountApplied(model []ModelRow) []ClientTotal {
	discounted := make([]ModelRow, 0, len(model))
	for _, row := range model {
		rate, ok := a.config.DiscountRates[row.ShipmentType]
		if !ok {
			rate = decimal.NewFromInt(1)
		}
		row.Total = decimal.NullDecimal{Decimal: totalOf(row).Mul(rate), Valid: true}
		discounted = append(discounted, row)
	}
	return a.InvoiceAmountSorted(discounted)
}

// ReclassifyDiscount reprices the model under the business scenario
// "EXPRESS ships as GROUND, discounts apply", and reports each client's
// savings against the original totals plus the two filtered views:
// percent savings above 50 and absolute savings above 500000.
func (a *Analyzer) ReclassifyDiscount(model []ModelRow) (savings, over50Pct, over500K []SavingsRow) {
	oldTotals := a.InvoiceAmountSorted(model)
	oldByClient := make(map[clientKey]decimal.Decimal, len(oldTotals))
	for _, total := range oldTotals {
		oldByClient[clientKey{ClientID: total.ClientID, ClientName: total.ClientName}] = total.Total
	}

	reclassified := make([]ModelRow, 0, len(model))
	for _, row := range model {
		if row.ShipmentType == models.ShipmentExpress {
			row.ShipmentType = models.ShipmentGround
		}
		reclassified = append(reclassified, row)
	}
	newTotals := a.DiscountApplied(reclassified)

	hundred := decimal.NewFromInt(100)
	percentThreshold := decimal.NewFromInt(50)
	savingsThreshold := decimal.NewFromInt(500000)

	savings = make([]SavingsRow, 0, len(newTotals))
	over50Pct = make([]SavingsRow, 0)
	over500K = make([]SavingsRow, 0)
	for _, total := range newTotals {
		old := oldByClient[clientKey{ClientID: total.ClientID, ClientName: total.ClientName}]
		row := SavingsRow{
			ClientID:        total.ClientID,
			ClientName:      total.ClientName,
			OldTotal:        old,
			DiscountedTotal: total.Total,
			Savings:         old.Sub(total.Total),
		}
		if !old.IsZero() {
			row.PercentSavings = row.Savings.Div(old).Mul(hundred)
		}

		savings = append(savings, row)
		if row.PercentSavings.GreaterThan(percentThreshold) {
			over50Pct = append(over50Pct, row)
		}
		if row.Savings.GreaterThan(savingsThreshold) {
			over500K = append(over500K, row)
		}
	}

	return savings, over50Pct, over500K
}

// topN returns the first n entries of an already-sorted slice
func topN(totals []ClientTotal, n int) []ClientTotal {
	if len(totals) <= n {
		return totals
	}
	return totals[:n]
}
