package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/usecases"
)

func (w *Workflow) categorize(ctx context.Context, st *RunState, ev Event) (Event, error) {
	start := ev.(StartEvent)
	st.Requirements = usecases.ExtractRequirements(start.Document.Content)

	cat, err := w.agents.Categorizer.Categorize(ctx, start.Document)
	var consult *usecases.ConsultationRequiredError
	if errors.As(err, &consult) {
		// Keep the low-confidence verdict for the run record and audit trail.
		st.Categorization = cat
		if aerr := w.audit(context.WithoutCancel(ctx), st, "categorizer", "categorization.consultation_required", map[string]any{
			"category":   int(consult.Categorization.Category),
			"confidence": consult.Categorization.Confidence,
			"threshold":  consult.Threshold,
		}); aerr != nil {
			w.logger.Error("Failed to audit consultation request", zap.String("run_id", st.RunID), zap.Error(aerr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	st.Categorization = cat
	if err := w.audit(ctx, st, "categorizer", "categorization.completed", map[string]any{
		"category":      int(cat.Category),
		"confidence":    cat.Confidence,
		"justification": cat.Justification,
		"model":         cat.Model,
		"requirements":  len(st.Requirements),
	}); err != nil {
		return nil, err
	}
	return CategorizedEvent{Categorization: cat}, nil
}

// gather runs the context, research and SME agents concurrently. The first failure
// cancels the siblings. Each branch writes only its own RunState field.
func (w *Workflow) gather(ctx context.Context, st *RunState, ev Event) (Event, error) {
	cat := ev.(CategorizedEvent).Categorization
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.branch(gctx, st, "context_provider", func(ctx context.Context) (map[string]any, error) {
			bundle, err := w.agents.Context.Retrieve(ctx, st.Document, st.Requirements, cat)
			if err != nil {
				return nil, err
			}
			st.Context = bundle
			return map[string]any{"passages": len(bundle.Passages)}, nil
		})
	})
	g.Go(func() error {
		return w.branch(gctx, st, "research_agent", func(ctx context.Context) (map[string]any, error) {
			findings, err := w.agents.Research.Research(ctx, st.Document, cat)
			if err != nil {
				return nil, err
			}
			st.Research = findings
			return map[string]any{"regulations": findings.Regulations}, nil
		})
	})
	g.Go(func() error {
		return w.branch(gctx, st, "sme_agent", func(ctx context.Context) (map[string]any, error) {
			review, err := w.agents.SME.Review(ctx, st.Document, st.Requirements, cat)
			if err != nil {
				return nil, err
			}
			st.SME = review
			return map[string]any{"risks": len(review.Risks)}, nil
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return AgentsCompletedEvent{}, nil
}

// branch times and audits one parallel agent call.
func (w *Workflow) branch(
	ctx context.Context,
	st *RunState,
	actor string,
	call func(ctx context.Context) (map[string]any, error),
) error {
	start := w.now()
	payload, err := call(ctx)
	w.observeStep(actor, w.now().Sub(start), err)
	if err != nil {
		return fmt.Errorf("%s: %w", actor, err)
	}
	w.logger.Debug("Agent completed", zap.String("run_id", st.RunID), zap.String("agent", actor))
	return w.audit(ctx, st, actor, "agent.completed", payload)
}

func (w *Workflow) generate(ctx context.Context, st *RunState, _ Event) (Event, error) {
	suite, err := w.agents.Generator.Generate(ctx, usecases.GenerationInput{
		RunID:          st.RunID,
		Document:       st.Document,
		Requirements:   st.Requirements,
		Categorization: st.Categorization,
		Context:        st.Context,
		Research:       st.Research,
		SME:            st.SME,
	})
	if err != nil {
		return nil, err
	}
	if err := w.audit(ctx, st, "oq_generator", "suite.generated", map[string]any{
		"suite_id": suite.SuiteID,
		"tests":    len(suite.Tests),
		"model":    suite.Model,
	}); err != nil {
		return nil, err
	}
	return SuiteGeneratedEvent{Suite: suite}, nil
}

// validate checks traceability, then writes the artifacts.
func (w *Workflow) validate(ctx context.Context, st *RunState, ev Event) (Event, error) {
	suite := ev.(SuiteGeneratedEvent).Suite

	cov, err := usecases.TraceRequirements(suite.Tests, st.Requirements)
	if err != nil {
		return nil, err
	}
	suite.Coverage = cov
	st.Suite = suite

	result := &entities.RunResult{
		RunID:          st.RunID,
		Document:       st.Document,
		Requirements:   st.Requirements,
		Categorization: st.Categorization,
		Context:        st.Context,
		Research:       st.Research,
		SME:            st.SME,
		Suite:          suite,
		StartedAt:      st.StartedAt,
		FinishedAt:     w.now().UTC(),
	}

	if w.deps.Writer != nil {
		paths, err := w.deps.Writer.Write(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("writing artifacts: %w", err)
		}
		result.Artifacts = paths
	}

	if err := w.audit(ctx, st, "validator", "suite.validated", map[string]any{
		"coverage":  cov.Ratio,
		"uncovered": cov.Uncovered,
		"artifacts": result.Artifacts,
	}); err != nil {
		return nil, err
	}
	return StopEvent{Result: result}, nil
}

func artifactDir(path string) string {
	return filepath.Dir(path)
}
