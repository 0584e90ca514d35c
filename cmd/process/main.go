package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/config"
	infraBQ "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/pipeline"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	var (
		configPath = flag.String("config", "", "Path to YAML run configuration")
		input      = flag.String("input", "", "Raw dataset path or gs:// URI (overrides config)")
		output     = flag.String("output", "", "Processed dataset JSON path (overrides config)")
		txCSV      = flag.String("transactions-csv", "", "Transaction-level CSV path")
		prodCSV    = flag.String("products-csv", "", "Product line-item CSV path")
		mapping    = flag.String("mapping", "", "Product name mapping table (YAML)")
		volumeMin  = flag.Float64("volume-min", 0, "Minimum amount multiplier")
		volumeMax  = flag.Float64("volume-max", 0, "Maximum amount multiplier")
		timeShift  = flag.Int("time-shift", 0, "Days to shift timestamps forward")
		seed       = flag.Int64("seed", 0, "Random seed for reproducible runs (0 = clock)")
		useBQ      = flag.Bool("bigquery", false, "Record the run and sink rows into BigQuery")
	)
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		cfg = loaded
	} else {
		anonDefaults := anonymizer.DefaultConfig()
		cfg.Anonymization.VolumeMultiplierMin = anonDefaults.VolumeMultiplierMin
		cfg.Anonymization.VolumeMultiplierMax = anonDefaults.VolumeMultiplierMax
		cfg.Anonymization.TimeShiftDays = anonDefaults.TimeShiftDays
		cfg.Anonymization.SensitiveFields = anonDefaults.SensitiveFields
		cfg.Output.DatasetPath = "processed_transactions.json"
	}

	// Flags override the file configuration.
	if *input != "" {
		cfg.Input.Path = *input
	}
	if *output != "" {
		cfg.Output.DatasetPath = *output
	}
	if *txCSV != "" {
		cfg.Output.TransactionsCSV = *txCSV
	}
	if *prodCSV != "" {
		cfg.Output.ProductsCSV = *prodCSV
	}
	if *mapping != "" {
		cfg.Input.MappingPath = *mapping
	}
	if *volumeMin != 0 {
		cfg.Anonymization.VolumeMultiplierMin = *volumeMin
	}
	if *volumeMax != 0 {
		cfg.Anonymization.VolumeMultiplierMax = *volumeMax
	}
	if *timeShift != 0 {
		cfg.Anonymization.TimeShiftDays = *timeShift
	}
	if *seed != 0 {
		cfg.Anonymization.Seed = *seed
	}
	if *useBQ {
		cfg.Output.BigQueryEnabled = true
	}

	if cfg.Input.Path == "" {
		log.Fatal().Msg("Error: --input (or input.path in the config) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var repo infraBQ.RunRepository
	if cfg.Output.BigQueryEnabled {
		bqRepo, err := infraBQ.NewBigQueryRunRepository(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create run repository")
		}
		defer bqRepo.Close()
		repo = bqRepo
	}

	log.Info().Str("input", cfg.Input.Path).Msg("Starting dataset processing")

	state, err := pipeline.Run(ctx, cfg.Input.Path, pipeline.Options{
		Output:          cfg.Output,
		Anonymizer:      cfg.AnonymizerConfig(),
		SensitiveFields: cfg.Anonymization.SensitiveFields,
		MappingPath:     cfg.Input.MappingPath,
		Seed:            cfg.Anonymization.Seed,
		Repo:            repo,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}

	printStats(state)
	fmt.Println("Processing completed successfully.")
}

func printStats(state *pipeline.PipelineState) {
	fmt.Println("\n=== Processing Summary ===")
	fmt.Printf("Transactions:      %d\n", state.Stats.Processed.TotalTransactions)
	fmt.Printf("Date range:        %s - %s\n",
		state.Stats.Processed.DateMin.Format("2006-01-02"),
		state.Stats.Processed.DateMax.Format("2006-01-02"))
	fmt.Printf("Total amount:      %.2f (was %.2f)\n",
		state.Stats.Processed.TotalAmount, state.Stats.Original.TotalAmount)
	fmt.Printf("Avg transaction:   %.2f (was %.2f)\n",
		state.Stats.Processed.AvgTransaction, state.Stats.Original.AvgTransaction)
	fmt.Printf("Unique locations:  %d (was %d)\n",
		state.Stats.Processed.UniqueLocations, state.Stats.Original.UniqueLocations)
	fmt.Printf("Geohash cells:     %d (was %d)\n",
		state.Stats.Processed.UniqueGeohashCells, state.Stats.Original.UniqueGeohashCells)
	for _, artifact := range state.Artifacts {
		fmt.Printf("Wrote:             %s\n", artifact)
	}
	fmt.Println()
}
