package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/extract"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/parser"
	"lifegraph/backend/internal/query"
	"lifegraph/backend/internal/record"
	"lifegraph/backend/internal/storage"
	apperrors "lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// Stage names carried by ErrPipelineStageFailed
const (
	StageParse   = "parse"
	StageExtract = "extract"
	StageLoad    = "load"
	StageSave    = "save"
)

// ErrNoSources is returned when a batch ingestion is given no paths
var ErrNoSources = errors.New("no source files")

// Options control a single ingestion run
type Options struct {
	// Merge combines the new fragment with the persisted graph. When false
	// the persisted graph is replaced.
	Merge bool
	// SourceType forces a parser; empty or auto detects from the path
	SourceType parser.Kind
	// FocusPerson selects the subject of a genealogy file
	FocusPerson string
}

// Result describes what an ingestion run saved
type Result struct {
	IngestionID string
	Sources     []string
	Graph       *graph.KnowledgeGraph
	Report      graph.MergeReport
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = log
	}
}

// WithClock overrides the time source for parsing, extraction and merging
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithConcurrency bounds how many files ProcessFiles parses at once
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// Pipeline runs parse, extract, merge and save against one store. Runs are
// serialized so a pipeline is the single writer of its store.
type Pipeline struct {
	store       storage.Store
	engine      *query.Engine
	extractors  *extract.Dispatcher
	logger      *zap.Logger
	clock       func() time.Time
	concurrency int

	mu sync.Mutex
}

// New creates a pipeline over store
func New(store storage.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		logger:      logger.Get(),
		clock:       time.Now,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.extractors = extract.NewDispatcher(extract.WithClock(p.clock), extract.WithLogger(p.logger))
	p.engine = query.NewEngine(store, p.logger)
	return p
}

// Store returns the underlying store
func (p *Pipeline) Store() storage.Store { return p.store }

// ============================================================================
// Ingestion
// ============================================================================

// ProcessSource ingests one file or export directory
func (p *Pipeline) ProcessSource(ctx context.Context, path string, opts Options) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.NewString()
	p.logger.Info("Processing source",
		zap.String("source", path),
		zap.String("ingestion_id", id),
		zap.Bool("merge", opts.Merge),
	)

	rec, err := p.parse(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return p.ingest(ctx, id, []string{path}, []*record.PersonRecord{rec}, opts.Merge)
}

// ProcessFiles parses paths concurrently, then extracts and merges them in
// path order and saves once. With opts.Merge false the first file replaces
// the persisted graph and the rest merge into it.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, opts Options) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoSources
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.NewString()
	p.logger.Info("Processing files",
		zap.Int("files", len(paths)),
		zap.String("ingestion_id", id),
		zap.Int("concurrency", p.concurrency),
	)

	records := make([]*record.PersonRecord, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			rec, err := p.parse(gctx, path, opts)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.ingest(ctx, id, paths, records, opts.Merge)
}

func (p *Pipeline) parse(ctx context.Context, path string, opts Options) (*record.PersonRecord, error) {
	kind := opts.SourceType
	if kind == "" {
		kind = parser.KindAuto
	}

	prs, err := parser.New(kind, path,
		parser.WithLogger(p.logger),
		parser.WithClock(p.clock),
		parser.WithFocusPerson(opts.FocusPerson),
	)
	if err != nil {
		return nil, p.fail(StageParse, path, err)
	}
	rec, err := prs.Parse(ctx, path)
	if err != nil {
		return nil, p.fail(StageParse, path, err)
	}

	p.logger.Debug("Parsed source",
		zap.String("source", path),
		zap.String("parser", string(prs.Kind())),
		zap.String("name", rec.Name),
	)
	return rec, nil
}

// ingest extracts every record and folds the fragments into one graph.
// The store is written only after every fragment merged.
func (p *Pipeline) ingest(ctx context.Context, id string, paths []string, records []*record.PersonRecord, merge bool) (*Result, error) {
	res := &Result{IngestionID: id, Sources: paths}

	var current *graph.KnowledgeGraph
	if merge {
		existing, err := p.store.LoadGraph(ctx)
		if err != nil {
			return nil, p.fail(StageLoad, paths[0], err)
		}
		current = existing
	}

	for i, rec := range records {
		fragment, err := p.extractors.Extract(rec)
		if err != nil {
			return nil, p.fail(StageExtract, paths[i], err)
		}
		fragment.Metadata[constants.MetaIngestionID] = id

		p.logger.Info("Extracted graph fragment",
			zap.String("source", paths[i]),
			zap.String("extractor", p.extractors.For(rec.Source()).Name()),
			zap.Int("entities", fragment.EntityCount()),
			zap.Int("triplets", fragment.TripletCount()),
		)

		if current == nil {
			current = fragment
			res.Report.EntitiesAdded += fragment.EntityCount()
			res.Report.TripletsAdded += fragment.TripletCount()
			continue
		}

		merged, report := graph.Merge(current, fragment, p.clock())
		current = merged
		addReport(&res.Report, report)
	}

	if err := p.store.SaveGraph(ctx, current); err != nil {
		return nil, p.fail(StageSave, paths[len(paths)-1], err)
	}

	res.Graph = current
	p.logger.Info("Ingestion complete",
		zap.String("ingestion_id", id),
		zap.Int("entities", current.EntityCount()),
		zap.Int("triplets", current.TripletCount()),
		zap.Int("entities_matched", res.Report.EntitiesMatched),
		zap.Int("triplets_skipped", res.Report.TripletsSkipped),
	)
	return res, nil
}

func addReport(total *graph.MergeReport, r graph.MergeReport) {
	total.EntitiesAdded += r.EntitiesAdded
	total.EntitiesMatched += r.EntitiesMatched
	total.EntitiesRenamed += r.EntitiesRenamed
	total.TripletsAdded += r.TripletsAdded
	total.TripletsSkipped += r.TripletsSkipped
}

// fail logs a stage failure and wraps it
func (p *Pipeline) fail(stage, source string, err error) error {
	p.logger.Error("Pipeline stage failed",
		zap.String("stage", stage),
		zap.String("source", source),
		zap.Error(err),
	)
	return apperrors.NewPipelineStageFailed(stage, source, err)
}

// ============================================================================
// Reads
// ============================================================================

// Graph loads the persisted graph
func (p *Pipeline) Graph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	return p.store.LoadGraph(ctx)
}

// Statistics summarises the persisted graph. An empty store yields zero counts.
func (p *Pipeline) Statistics(ctx context.Context) (graph.Statistics, error) {
	g, err := p.store.LoadGraph(ctx)
	if err != nil {
		return graph.Statistics{}, err
	}
	return g.Stats(), nil
}

// QueryContext returns the one-hop context of the first entity matching name
func (p *Pipeline) QueryContext(ctx context.Context, name string, maxDepth int) (*query.ContextResult, error) {
	return p.engine.QueryContext(ctx, name, maxDepth)
}
