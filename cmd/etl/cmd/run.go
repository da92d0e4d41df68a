package cmd

import (
	"fmt"
	"os"
	"time"

	"golang-invoice-etl/cmd/etl/config"
	"golang-invoice-etl/internal/analytics"
	"golang-invoice-etl/internal/ingest"
	"golang-invoice-etl/internal/reporter"
	"golang-invoice-etl/internal/transformer"
	"golang-invoice-etl/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the run command
var (
	inputDir            string
	outputDir           string
	confidenceThreshold float64
	topN                int
	windowStart         string
	windowEnd           string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ingest, reconcile and report pipeline",
	Long: `Run executes the end-to-end pipeline over one input directory:

1. Loads every clients_*.csv and invoices_*.csv file
2. Infers each file's column roles and normalizes its values
3. Reconciles all files into one canonical table per entity
4. Joins invoices to clients and runs the business queries
5. Writes the canonical tables and query results as CSV

Examples:
  # Basic run
  etl run --input-dir ./data --output-dir ./out

  # Custom growth window and top-n size
  etl run --input-dir ./data --output-dir ./out \
    --window-start 2024-01-01 --window-end 2024-12-31 --top-n 10

  # Looser schema inference for dirty files
  etl run --input-dir ./data --output-dir ./out --confidence-threshold 0.6`,

	PreRunE: validateRunFlags,
	RunE:    runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Required flags
	runCmd.Flags().StringVarP(&inputDir, "input-dir", "i", "", "directory containing input CSV files (required)")

	// Output flags
	runCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "directory the Outputs/ and Analysis/ trees are written under")

	// Pipeline tuning flags
	runCmd.Flags().Float64Var(&confidenceThreshold, "confidence-threshold", 0.80, "minimum column match ratio for schema inference (0-1]")
	runCmd.Flags().IntVar(&topN, "top-n", 5, "number of rows in the top-spender and top-discount views")
	runCmd.Flags().StringVar(&windowStart, "window-start", "2024-01-01", "growth query window start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&windowEnd, "window-end", "2025-12-31", "growth query window end (YYYY-MM-DD)")

	runCmd.MarkFlagRequired("input-dir")

	// Bind flags to viper
	viper.BindPFlag("input-dir", runCmd.Flags().Lookup("input-dir"))
	viper.BindPFlag("output-dir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("confidence-threshold", runCmd.Flags().Lookup("confidence-threshold"))
	viper.BindPFlag("top-n", runCmd.Flags().Lookup("top-n"))
	viper.BindPFlag("window-start", runCmd.Flags().Lookup("window-start"))
	viper.BindPFlag("window-end", runCmd.Flags().Lookup("window-end"))
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and env)
	inputDir = viper.GetString("input-dir")
	outputDir = viper.GetString("output-dir")
	confidenceThreshold = viper.GetFloat64("confidence-threshold")
	topN = viper.GetInt("top-n")
	windowStart = viper.GetString("window-start")
	windowEnd = viper.GetString("window-end")

	if inputDir == "" {
		return fmt.Errorf("input-dir is required")
	}

	info, err := os.Stat(inputDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}
	if err != nil {
		return fmt.Errorf("error accessing input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", inputDir)
	}

	if confidenceThreshold <= 0 || confidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %g", confidenceThreshold)
	}
	if topN <= 0 {
		return fmt.Errorf("top-n must be positive, got %d", topN)
	}

	for name, value := range map[string]string{"window-start": windowStart, "window-end": windowEnd} {
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("invalid %s. Use YYYY-MM-DD: %w", name, err)
		}
	}
	start, _ := time.Parse("2006-01-02", windowStart)
	end, _ := time.Parse("2006-01-02", windowEnd)
	if start.After(end) {
		return fmt.Errorf("window start cannot be after window end")
	}

	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	// Errors are rendered by the CLI error handler, not cobra
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := configureLogging(); err != nil {
		return err
	}

	ingestor, err := ingest.NewIngestor(config.CreateIngestConfig(inputDir))
	if err != nil {
		return err
	}
	loaded, ingestStats, err := ingestor.Ingest()
	if err != nil {
		return err
	}

	pipeline, err := transformer.NewTransformer(config.CreateTransformerConfig(confidenceThreshold))
	if err != nil {
		return err
	}
	clients, clientStats, err := pipeline.TransformClients(loaded.ClientTables)
	if err != nil {
		return err
	}
	invoices, invoiceStats, err := pipeline.TransformInvoices(loaded.InvoiceTables)
	if err != nil {
		return err
	}

	analyzer, err := analytics.NewAnalyzer(config.CreateAnalyticsConfig(topN, windowStart, windowEnd))
	if err != nil {
		return err
	}
	results, err := analyzer.Run(clients, invoices)
	if err != nil {
		return err
	}

	writer, err := reporter.NewReporter(config.CreateReporterConfig(outputDir))
	if err != nil {
		return err
	}
	written, err := writer.WriteAll(clients, invoices, results)
	if err != nil {
		return err
	}

	summary := &reporter.RunSummary{
		Ingest:       ingestStats,
		Clients:      clientStats,
		Invoices:     invoiceStats,
		Results:      results,
		WrittenFiles: written,
	}
	fmt.Fprint(os.Stdout, summary.Render())

	return nil
}

// configureLogging applies the verbose flag to the global logger
func configureLogging() error {
	logConfig := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		logConfig = logger.DebugConfig()
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}
