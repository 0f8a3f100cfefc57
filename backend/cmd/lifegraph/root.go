package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lifegraph/backend/internal/adapter"
	"lifegraph/backend/internal/agent"
	"lifegraph/backend/internal/pipeline"
	"lifegraph/backend/internal/storage"
	"lifegraph/backend/pkg/config"
	"lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// app carries what every command needs. The store is opened lazily so
// commands that never touch it (create-example) work without one.
type app struct {
	stdout io.Writer
	stderr io.Writer

	storageType string
	storagePath string

	log   *zap.Logger
	cfg   *config.Config
	store storage.Store
	pipe  *pipeline.Pipeline
}

// open loads configuration, initialises logging and connects the store
func (a *app) open(ctx context.Context) (*pipeline.Pipeline, error) {
	if a.pipe != nil {
		return a.pipe, nil
	}

	cfg, err := config.Load(config.WithStorage(a.storageType, a.storagePath))
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	if a.log == nil {
		if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.log = logger.Get()
	}

	store, err := storage.New(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.pipe = pipeline.New(store,
		pipeline.WithLogger(a.log),
		pipeline.WithConcurrency(cfg.ParseConcurrency),
	)
	return a.pipe, nil
}

// suggester wires the LLM adapter in when an endpoint is configured
func (a *app) suggester(p *pipeline.Pipeline) *agent.Suggester {
	opts := []agent.Option{agent.WithLogger(a.log)}
	if a.cfg != nil && a.cfg.LLMEnabled() {
		llm := adapter.NewLLMAdapter(a.cfg.LLMURL, a.cfg.LLMAPIKey, a.cfg.ModelID, adapter.WithLogger(a.log))
		opts = append(opts, agent.WithCompleter(llm))
	}
	return agent.NewSuggester(p, opts...)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.Warn("Failed to close store", zap.Error(err))
		}
	}
	logger.Sync()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lifegraph",
		Short:         "Build personal knowledge graphs from memory files and social data",
		Long:          `lifegraph ingests memory files, social-network exports and family trees into a personal knowledge graph and answers context queries for communication support.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.storageType, "storage-type", "", "Storage backend (json, sqlite, neo4j); defaults to STORAGE_TYPE")
	root.PersistentFlags().StringVar(&a.storagePath, "storage-path", "", "Base path for storage files; defaults to STORAGE_PATH")

	root.AddCommand(
		newProcessCmd(a),
		newProcessDirCmd(a),
		newStatsCmd(a),
		newQueryCmd(a),
		newListEntitiesCmd(a),
		newListTripletsCmd(a),
		newSuggestCmd(a),
		newExportCmd(a),
		newCreateExampleCmd(a),
	)
	return root
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	return runApp(&app{stdout: stdout, stderr: stderr}, args)
}

func runApp(a *app, args []string) int {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(a.stderr, "❌ Error: %s\n", describe(err))
		return 1
	}
	return 0
}

// describe prefers the innermost typed message over the wrapped chain
func describe(err error) string {
	var stage *errors.ErrPipelineStageFailed
	if stderrors.As(err, &stage) && stage.Err != nil {
		return fmt.Sprintf("%s: %v", stage.Message, stage.Err)
	}
	return err.Error()
}
