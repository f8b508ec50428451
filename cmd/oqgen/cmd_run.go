package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/adapters/loader"
	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
	"github.com/0xcro3dile/oqgen/internal/domain/usecases"
)

var (
	ephemeral  bool
	removeDocs bool

	docLoader ports.DocumentLoader = loader.NewTextLoader()
)

var runCmd = &cobra.Command{
	Use:   "run <urs-file>",
	Short: "Generate an OQ test suite for one URS document",
	Long: `Runs the full pipeline for a URS: categorization, the context, research and
SME agents, batched OQ generation and traceability validation. Artifacts are
written to <output_dir>/<run_id>/.

Exits with status 2 when the categorization confidence is below the threshold
and a human has to confirm the GAMP category.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>...",
	Short: "Add reference documents to the knowledge base",
	Long: `Chunks, embeds and stores GAMP guides, SOPs and regulations so the context
provider can retrieve them. Directories are walked recursively; files with an
unsupported extension are skipped. Re-ingesting a file replaces its chunks.

With --remove the named files are dropped from the knowledge base instead.
They do not have to exist on disk any more.`,
	Args: cobra.MinimumNArgs(1),
	RunE: ingestDocuments,
}

func init() {
	for _, c := range []*cobra.Command{runCmd, ingestCmd, watchCmd, serveCmd} {
		c.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep the knowledge base and embedding cache in memory")
	}
	ingestCmd.Flags().BoolVar(&removeDocs, "remove", false, "Remove the named documents from the knowledge base")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	doc, err := docLoader.Load(ctx, args[0])
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, logger, ephemeral)
	if err != nil {
		return err
	}
	defer app.Close()
	defer app.flushMetrics()

	result, err := app.pipeline.Run(ctx, doc)
	if err != nil {
		var consult *usecases.ConsultationRequiredError
		if errors.As(err, &consult) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Human consultation required for %s\n  %s, confidence %.2f (threshold %.2f)\n  %s\n",
				doc.Name, consult.Categorization.Category, consult.Categorization.Confidence,
				consult.Threshold, consult.Categorization.Justification)
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), result)
	return nil
}

func printSummary(w io.Writer, r *entities.RunResult) {
	fmt.Fprintf(w, "Run %s succeeded\n", r.RunID)
	fmt.Fprintf(w, "  Document:   %s\n", r.Document.Name)
	fmt.Fprintf(w, "  Category:   %s (confidence %.2f)\n", r.Categorization.Category, r.Categorization.Confidence)
	fmt.Fprintf(w, "  Tests:      %d\n", len(r.Suite.Tests))
	fmt.Fprintf(w, "  Coverage:   %.0f%% of %d requirements\n", r.Suite.Coverage.Ratio*100, len(r.Requirements))
	if n := len(r.Suite.Coverage.Uncovered); n > 0 {
		fmt.Fprintf(w, "  Uncovered:  %v\n", r.Suite.Coverage.Uncovered)
	}
	if len(r.Artifacts) > 0 {
		fmt.Fprintf(w, "  Artifacts:  %s\n", filepath.Dir(r.Artifacts[0]))
	}
}

func ingestDocuments(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApplication(ctx, cfg, logger, ephemeral)
	if err != nil {
		return err
	}
	defer app.Close()
	defer app.flushMetrics()

	if removeDocs {
		for _, path := range args {
			if err := app.ingest.Delete(ctx, loader.DocumentID(path)); err != nil {
				return fmt.Errorf("removing %s: %w", path, err)
			}
			logger.Info("Removed document", zap.String("path", path))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d documents\n", len(args))
		return nil
	}

	paths, err := collectDocuments(docLoader, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported documents in %v", args)
	}

	total := 0
	for _, path := range paths {
		doc, err := docLoader.Load(ctx, path)
		if err != nil {
			return err
		}
		n, err := app.ingest.Ingest(ctx, doc)
		if err != nil {
			return err
		}
		logger.Info("Ingested document", zap.String("path", path), zap.Int("chunks", n))
		total += n
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents (%d chunks)\n", len(paths), total)
	return nil
}

// collectDocuments expands directories into the files l supports.
// Files named explicitly are always returned so the loader can reject them.
func collectDocuments(l ports.DocumentLoader, args []string) ([]string, error) {
	exts := l.SupportedExtensions()
	var paths []string
	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == arg || slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
