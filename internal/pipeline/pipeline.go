// Package pipeline orchestrates a processing run: fetch a raw dataset,
// canonicalize product names, anonymize, compute statistics and write the
// output artifacts, with run bookkeeping along the way.
package pipeline

import (
	"context"
	"fmt"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/config"
	"github.com/insightcart/demopipe/internal/domain"
	"github.com/insightcart/demopipe/internal/export"
	infra "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/productmap"
)

// PipelineStep represents a single step in the processing pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	InputURI  string
	RunID     string
	Records   []domain.TransactionRecord
	Processed []domain.TransactionRecord
	Stats     domain.ProcessingStats
	Artifacts []string
}

// Deps bundles the collaborators the pipeline steps need. Repo may be nil
// when run bookkeeping is disabled; Mapper may be nil when no product
// mapping table is configured.
type Deps struct {
	Repo            infra.RunRepository
	Source          DatasetSource
	Uploader        Uploader
	Mapper          *productmap.Mapper
	Processor       *anonymizer.Processor
	SensitiveFields []string
	Output          config.OutputConfig
}

// markFailed records a run failure when bookkeeping is enabled.
func markFailed(ctx context.Context, repo infra.RunRepository, runID string, err error) {
	if repo != nil && runID != "" {
		repo.MarkProcessingRunFailed(ctx, runID, err)
	}
}

// Step 1: StartRunStep records a new processing run with status=RUNNING.
type StartRunStep struct {
	Repo infra.RunRepository
}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Repo == nil {
		return nil
	}
	runID, err := s.Repo.StartProcessingRun(ctx, state.InputURI)
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// Step 2: FetchDatasetStep loads and parses the raw dataset.
type FetchDatasetStep struct {
	Repo            infra.RunRepository
	Source          DatasetSource
	SensitiveFields []string
}

func (s *FetchDatasetStep) Execute(ctx context.Context, state *PipelineState) error {
	records, err := s.Source.FetchDataset(ctx, state.InputURI, s.SensitiveFields)
	if err != nil {
		markFailed(ctx, s.Repo, state.RunID, err)
		return err
	}
	state.Records = records

	logger.FromContext(ctx).Info().
		Int("record_count", len(records)).
		Str("input_uri", state.InputURI).
		Msg("dataset loaded")
	return nil
}

// Step 3: CanonicalizeProductsStep maps raw product names onto the
// canonical catalog. Runs only when a mapping table is configured.
type CanonicalizeProductsStep struct {
	Repo   infra.RunRepository
	Mapper *productmap.Mapper
}

func (s *CanonicalizeProductsStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Mapper == nil {
		return nil
	}
	mapped := domain.CloneDataset(state.Records)
	for i := range mapped {
		for j := range mapped[i].Products {
			name, _ := s.Mapper.Canonicalize(mapped[i].Products[j].Name)
			mapped[i].Products[j].Name = name
		}
	}
	state.Records = mapped
	s.Mapper.LogUnmapped()
	return nil
}

// Step 4: AnonymizeStep runs the anonymization stages.
type AnonymizeStep struct {
	Repo      infra.RunRepository
	Processor *anonymizer.Processor
}

func (s *AnonymizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Processed = s.Processor.ProcessTransactions(state.Records)
	return nil
}

// Step 5: ComputeStatsStep compares the dataset before and after.
type ComputeStatsStep struct{}

func (s *ComputeStatsStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Stats = anonymizer.GetProcessingStats(state.Records, state.Processed)

	logger.FromContext(ctx).Info().
		Int("transactions", state.Stats.Processed.TotalTransactions).
		Float64("total_amount", state.Stats.Processed.TotalAmount).
		Int("unique_locations", state.Stats.Processed.UniqueLocations).
		Msg("processing statistics computed")
	return nil
}

// Step 6: ExportStep writes the configured output artifacts.
type ExportStep struct {
	Repo   infra.RunRepository
	Output config.OutputConfig
}

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Output.DatasetPath != "" {
		if err := export.WriteDatasetJSON(s.Output.DatasetPath, state.Processed); err != nil {
			markFailed(ctx, s.Repo, state.RunID, err)
			return err
		}
		state.Artifacts = append(state.Artifacts, s.Output.DatasetPath)
	}
	if s.Output.TransactionsCSV != "" {
		if err := export.WriteTransactionsCSV(s.Output.TransactionsCSV, state.Processed); err != nil {
			markFailed(ctx, s.Repo, state.RunID, err)
			return err
		}
		state.Artifacts = append(state.Artifacts, s.Output.TransactionsCSV)
	}
	if s.Output.ProductsCSV != "" {
		if err := export.WriteProductsCSV(s.Output.ProductsCSV, state.Processed); err != nil {
			markFailed(ctx, s.Repo, state.RunID, err)
			return err
		}
		state.Artifacts = append(state.Artifacts, s.Output.ProductsCSV)
	}
	return nil
}

// Step 7: UploadStep pushes the processed dataset to storage.
type UploadStep struct {
	Repo     infra.RunRepository
	Uploader Uploader
	Output   config.OutputConfig
}

func (s *UploadStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Uploader == nil || s.Output.UploadURI == "" {
		return nil
	}
	if err := s.Uploader.UploadFile(ctx, s.Output.UploadURI, s.Output.DatasetPath); err != nil {
		markFailed(ctx, s.Repo, state.RunID, err)
		return err
	}
	return nil
}

// Step 8: SinkStep inserts the processed records into BigQuery.
type SinkStep struct {
	Repo    infra.RunRepository
	Enabled bool
}

func (s *SinkStep) Execute(ctx context.Context, state *PipelineState) error {
	if !s.Enabled || s.Repo == nil {
		return nil
	}
	rows := make([]*infra.ProcessedTransactionRow, 0, len(state.Processed))
	for _, rec := range state.Processed {
		rows = append(rows, infra.RowFromRecord(rec, state.RunID))
	}
	if err := s.Repo.InsertProcessedTransactions(ctx, rows); err != nil {
		markFailed(ctx, s.Repo, state.RunID, err)
		return err
	}
	return nil
}

// Step 9: MarkSuccessStep marks the run as SUCCESS.
type MarkSuccessStep struct {
	Repo infra.RunRepository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Repo == nil {
		return nil
	}
	return s.Repo.MarkProcessingRunSucceeded(ctx, state.RunID, len(state.Processed))
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewProcessingPipeline creates the standard pipeline for processing a
// raw transaction dataset.
func NewProcessingPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&StartRunStep{Repo: deps.Repo},
		&FetchDatasetStep{Repo: deps.Repo, Source: deps.Source, SensitiveFields: deps.SensitiveFields},
		&CanonicalizeProductsStep{Repo: deps.Repo, Mapper: deps.Mapper},
		&AnonymizeStep{Repo: deps.Repo, Processor: deps.Processor},
		&ComputeStatsStep{},
		&ExportStep{Repo: deps.Repo, Output: deps.Output},
		&UploadStep{Repo: deps.Repo, Uploader: deps.Uploader, Output: deps.Output},
		&SinkStep{Repo: deps.Repo, Enabled: deps.Output.BigQueryEnabled},
		&MarkSuccessStep{Repo: deps.Repo},
	)
}
