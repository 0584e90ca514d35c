package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/config"
	"github.com/insightcart/demopipe/internal/gcsloader"
	infraBQ "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/pipeline"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(log)
	case "upload":
		runUpload(log)
	case "runs":
		runRuns(log)
	case "inspect":
		runInspect(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Demo Pipeline CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process   Anonymize a raw transaction dataset")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  runs      List recent processing runs")
	fmt.Println("  inspect   Inspect a processing run and its output")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runProcess(log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	input := fs.String("input", "", "Raw dataset path or gs:// URI")
	output := fs.String("output", "processed_transactions.json", "Processed dataset JSON path")
	mapping := fs.String("mapping", "", "Product name mapping table (YAML)")
	seed := fs.Int64("seed", 0, "Random seed for reproducible runs (0 = clock)")
	useBQ := fs.Bool("bigquery", false, "Record the run and sink rows into BigQuery")
	fs.Parse(os.Args[2:])

	if *input == "" {
		log.Fatal().Msg("Error: --input is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var repo infraBQ.RunRepository
	if *useBQ {
		bqRepo, err := infraBQ.NewBigQueryRunRepository(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create run repository")
		}
		defer bqRepo.Close()
		repo = bqRepo
	}

	log.Info().Str("input", *input).Msg("Starting dataset processing")

	state, err := pipeline.Run(ctx, *input, pipeline.Options{
		Output: config.OutputConfig{
			DatasetPath:     *output,
			BigQueryEnabled: *useBQ,
		},
		Anonymizer:  anonymizer.DefaultConfig(),
		MappingPath: *mapping,
		Seed:        *seed,
		Repo:        repo,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}

	fmt.Printf("Processed %d transactions into %s\n",
		state.Stats.Processed.TotalTransactions, *output)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	uri := fs.String("uri", "", "Destination gs:// URI")
	filePath := fs.String("file", "", "Path to local file")
	fs.Parse(os.Args[2:])

	if *uri == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -uri gs://bucket/object -file PATH")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("uri", *uri).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsloader.UploadFile(ctx, *uri, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, *uri)
}

func runRuns(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	fs.Parse(os.Args[2:])

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	runs, err := repo.ListProcessingRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	fmt.Printf("\n=== Processing Runs (%d) ===\n", len(runs))
	for _, run := range runs {
		fmt.Printf("\n%s\n", run.RunID)
		fmt.Printf("   Input:   %s\n", run.InputURI)
		fmt.Printf("   Started: %s\n", run.StartedTS.Format(time.RFC3339))
		fmt.Printf("   Status:  %s\n", run.Status)
		if run.RecordCount.Valid {
			fmt.Printf("   Records: %d\n", run.RecordCount.Int64)
		}
		if run.ErrorMessage != "" {
			fmt.Printf("   Error:   %s\n", run.ErrorMessage)
		}
	}
	fmt.Println()
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	runID := fs.String("run-id", "", "Processing run ID to inspect")
	fs.Parse(os.Args[2:])

	if *runID == "" {
		log.Fatal().Msg("Error: --run-id is required")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	run, err := repo.GetProcessingRun(ctx, *runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get run")
	}
	if run == nil {
		log.Fatal().Msg("Run not found")
	}

	fmt.Println("\n=== Run Details ===")
	fmt.Printf("ID:      %s\n", run.RunID)
	fmt.Printf("Input:   %s\n", run.InputURI)
	fmt.Printf("Started: %s\n", run.StartedTS.Format(time.RFC3339))
	fmt.Printf("Status:  %s\n", run.Status)
	if run.ErrorMessage != "" {
		fmt.Printf("Error:   %s\n", run.ErrorMessage)
	}

	rows, err := repo.QueryTransactionsByRun(ctx, *runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query run transactions")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(rows))
	for i, row := range rows {
		fmt.Printf("\n%d. %s\n", i+1, row.TransactionID)
		fmt.Printf("   Date:    %s\n", row.TransactionDate)
		fmt.Printf("   Amount:  %s %s\n", row.Amount.FloatString(2), row.Currency)
		fmt.Printf("   Payment: %s\n", row.PaymentType)
		if row.Latitude.Valid {
			fmt.Printf("   Location: %.6f, %.6f\n", row.Latitude.Float64, row.Longitude.Float64)
		}
	}
	fmt.Println()
}
