package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/config"
	"github.com/insightcart/demopipe/internal/gcsloader"
	infra "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/productmap"
)

// Options configures a dataset processing run.
type Options struct {
	Output          config.OutputConfig
	Anonymizer      anonymizer.Config
	SensitiveFields []string
	MappingPath     string
	// Seed fixes the random source for reproducible runs; 0 uses the clock.
	Seed int64
	// Repo enables run bookkeeping and the BigQuery sink when set.
	Repo infra.RunRepository
}

// Run processes a single raw dataset end to end and returns the final
// pipeline state, including the before/after statistics.
func Run(ctx context.Context, inputURI string, opts Options) (*PipelineState, error) {
	log := logger.FromContext(ctx)

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	processor, err := anonymizer.NewProcessor(opts.Anonymizer, rng, log)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	var mapper *productmap.Mapper
	if opts.MappingPath != "" {
		mapping, err := productmap.LoadMapping(opts.MappingPath)
		if err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}
		mapper = productmap.NewMapper(mapping, log)
	}

	var uploader Uploader
	if strings.HasPrefix(opts.Output.UploadURI, "gs://") {
		uploader = gcsloader.NewGCSStorageService()
	}

	p := NewProcessingPipeline(Deps{
		Repo:            opts.Repo,
		Source:          NewDatasetSource(inputURI),
		Uploader:        uploader,
		Mapper:          mapper,
		Processor:       processor,
		SensitiveFields: opts.SensitiveFields,
		Output:          opts.Output,
	})

	state := &PipelineState{InputURI: inputURI}
	if err := p.Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}
