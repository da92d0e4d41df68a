// Package config assembles the component configurations from CLI flag
// values
package config

import (
	"golang-invoice-etl/internal/analytics"
	"golang-invoice-etl/internal/classifier"
	"golang-invoice-etl/internal/ingest"
	"golang-invoice-etl/internal/models"
	"golang-invoice-etl/internal/reporter"
	"golang-invoice-etl/internal/transformer"
)

// CreateIngestConfig creates the ingest configuration for one input
// directory
func CreateIngestConfig(inputDir string) *ingest.Config {
	config := ingest.DefaultConfig()
	config.InputDir = inputDir
	return config
}

// CreateTransformerConfig creates the transformer configuration with the
// CLI threshold override and the header aliases used for fields that
// cannot be detected by value shape
func CreateTransformerConfig(confidenceThreshold float64) *transformer.Config {
	config := transformer.DefaultConfig()
	config.Classifier.ConfidenceThreshold = confidenceThreshold
	config.Classifier.HeaderAliases = map[models.Field][]string{
		// Common header spellings seen across export versions
		models.FieldTier: {"tier", "client_tier", "membership_tier", "level", "plan"},
	}
	return config
}

// CreateClassifierConfig exposes the classifier configuration on its own,
// for callers that classify without running the full transform
func CreateClassifierConfig(confidenceThreshold float64) *classifier.Config {
	config := classifier.DefaultConfig()
	config.ConfidenceThreshold = confidenceThreshold
	return config
}

// CreateAnalyticsConfig creates the analytics configuration with CLI
// overrides applied
func CreateAnalyticsConfig(topN int, windowStart, windowEnd string) *analytics.Config {
	config := analytics.DefaultConfig()
	config.TopN = topN
	config.WindowStart = windowStart
	config.WindowEnd = windowEnd
	return config
}

// CreateReporterConfig creates the reporter configuration for one output
// directory
func CreateReporterConfig(outputDir string) *reporter.Config {
	config := reporter.DefaultConfig()
	config.OutputDir = outputDir
	return config
}
