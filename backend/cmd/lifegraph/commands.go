package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/parser"
	"lifegraph/backend/internal/pipeline"
	"lifegraph/backend/internal/storage"
	"lifegraph/backend/pkg/errors"
)

// ============================================================================
// Ingestion
// ============================================================================

func newProcessCmd(a *app) *cobra.Command {
	var (
		noMerge     bool
		sourceType  string
		focusPerson string
	)
	cmd := &cobra.Command{
		Use:   "process <source>",
		Short: "Process a markdown file, Facebook export or GEDCOM file into the knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parser.ParseKind(sourceType)
			if err != nil {
				return err
			}
			source := args[0]
			if _, err := os.Stat(source); err != nil {
				return fmt.Errorf("data source %s: %w", source, err)
			}

			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing data source: %s\n", source)
			if kind != parser.KindAuto {
				fmt.Fprintf(out, "Source type: %s\n", kind)
			}
			if focusPerson != "" {
				fmt.Fprintf(out, "Focus person: %s\n", focusPerson)
			}

			res, err := p.ProcessSource(cmd.Context(), source, pipeline.Options{
				Merge:       !noMerge,
				SourceType:  kind,
				FocusPerson: focusPerson,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "✅ Successfully processed %s\n", source)
			fmt.Fprintf(out, "   Entities: %d\n", res.Graph.EntityCount())
			fmt.Fprintf(out, "   Triplets: %d\n", res.Graph.TripletCount())
			switch res.Graph.Metadata[constants.MetaSource] {
			case constants.SourceFacebook:
				fmt.Fprintln(out, "   📱 Facebook data processed")
			case constants.SourceGenealogy:
				fmt.Fprintln(out, "   🌳 Ancestry/GEDCOM data processed")
				total, ok := res.Graph.Metadata[constants.MetaIndividuals]
				if !ok {
					total = "Unknown"
				}
				fmt.Fprintf(out, "   👥 Total individuals in tree: %v\n", total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "Replace the stored graph instead of merging into it")
	cmd.Flags().StringVar(&sourceType, "source-type", "auto", "Type of data source (auto, markdown, facebook, ancestry)")
	cmd.Flags().StringVar(&focusPerson, "focus-person", "", "For GEDCOM files: name of the person to focus on")
	return cmd
}

func newProcessDirCmd(a *app) *cobra.Command {
	var (
		pattern string
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:   "process-dir <directory>",
		Short: "Process every matching file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("directory %s: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			files, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			sort.Strings(files)

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "No files matching '%s' found in %s\n", pattern, dir)
				return nil
			}
			fmt.Fprintf(out, "Found %d files to process\n", len(files))

			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.ProcessFiles(cmd.Context(), files, pipeline.Options{Merge: !fresh})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "✅ Successfully processed %d files\n", len(files))
			fmt.Fprintf(out, "   Total entities: %d\n", res.Graph.EntityCount())
			fmt.Fprintf(out, "   Total triplets: %d\n", res.Graph.TripletCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "*.md", "File pattern to match")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Replace the stored graph with the first file instead of merging into it")
	return cmd
}

// ============================================================================
// Reads
// ============================================================================

func newStatsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about the current knowledge graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := p.Statistics(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(out, stats)
			}
			printStats(out, stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		depth  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "query <entity-name>",
		Short: "Query contextual information for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			res, err := p.QueryContext(cmd.Context(), args[0], depth)
			if errors.IsErrorType(err, errors.ErrorTypeNotFound) {
				reportNotFound(a, err)
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(out, res)
			}
			printContext(out, res)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", constants.DefaultQueryDepth, "Maximum relationship depth to explore")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}

func newListEntitiesCmd(a *app) *cobra.Command {
	var entityType, namePattern string
	cmd := &cobra.Command{
		Use:   "list-entities",
		Short: "List entities in the knowledge graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.EntityFilter{NamePattern: namePattern}
			if entityType != "" {
				t, err := graph.ParseEntityType(entityType)
				if err != nil {
					return err
				}
				filter.Type = t
			}

			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			entities, err := p.Store().QueryEntities(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printEntities(cmd.OutOrStdout(), entities)
			return nil
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by entity type (Person, Place, Event, ...)")
	cmd.Flags().StringVar(&namePattern, "name-pattern", "", "Filter by case-insensitive name substring")
	return cmd
}

func newListTripletsCmd(a *app) *cobra.Command {
	var subject, predicate, object string
	cmd := &cobra.Command{
		Use:   "list-triplets",
		Short: "List triplets in the knowledge graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.TripletFilter{Subject: subject, Object: object}
			if predicate != "" {
				r, err := graph.ParseRelationType(predicate)
				if err != nil {
					return err
				}
				filter.Predicate = r
			}

			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			triplets, err := p.Store().QueryTriplets(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printTriplets(cmd.OutOrStdout(), triplets)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Filter by subject entity id")
	cmd.Flags().StringVar(&predicate, "predicate", "", "Filter by relationship type")
	cmd.Flags().StringVar(&object, "object", "", "Filter by object entity id or literal")
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "suggest <entity-name>",
		Short: "Suggest sentences about an entity for conversation support",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			res, err := a.suggester(p).Suggest(cmd.Context(), args[0])
			if errors.IsErrorType(err, errors.ErrorTypeNotFound) {
				reportNotFound(a, err)
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "💬 Suggestions for %s (%s):\n", res.Entity, res.Type)
			for i, s := range res.Suggestions {
				fmt.Fprintf(out, "   %d. %s\n", i+1, s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole knowledge graph as a JSON or YAML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "json", "yaml"); err != nil {
				return err
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			g, err := p.Graph(cmd.Context())
			if err != nil {
				return err
			}

			var data []byte
			if format == "yaml" {
				data, err = yaml.Marshal(g)
			} else {
				data, err = json.MarshalIndent(g, "", "  ")
				data = append(data, '\n')
			}
			if err != nil {
				return fmt.Errorf("failed to encode graph: %w", err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Exported %d entities and %d triplets to %s\n",
				g.EntityCount(), g.TripletCount(), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Document format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newCreateExampleCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "create-example",
		Short: "Create an example memory file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Example file already exists at: %s\n", path)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(exampleMemory), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Example memory file created at: %s\n", path)
			fmt.Fprintf(out, "You can now process it with: lifegraph process %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", filepath.Join("examples", "person-memory.md"), "Where to write the example")
	return cmd
}

// ============================================================================
// Helpers
// ============================================================================

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %v)", format, allowed)
}

func reportNotFound(a *app, err error) {
	var notFound *errors.ErrEntityNotFound
	msg := err.Error()
	if stderrors.As(err, &notFound) {
		msg = notFound.Message
	}
	fmt.Fprintf(a.stderr, "❌ %s\n", msg)
}
