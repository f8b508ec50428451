package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
	"github.com/0xcro3dile/oqgen/internal/domain/usecases"
)

// Categorizer assigns the GAMP category.
type Categorizer interface {
	Categorize(ctx context.Context, doc *entities.Document) (*entities.Categorization, error)
}

// ContextProvider retrieves knowledge-base context.
type ContextProvider interface {
	Retrieve(ctx context.Context, doc *entities.Document, reqs []entities.Requirement,
		cat *entities.Categorization) (*entities.ContextBundle, error)
}

// Researcher gathers regulatory findings.
type Researcher interface {
	Research(ctx context.Context, doc *entities.Document, cat *entities.Categorization) (*entities.ResearchFindings, error)
}

// Reviewer produces the SME review.
type Reviewer interface {
	Review(ctx context.Context, doc *entities.Document, reqs []entities.Requirement,
		cat *entities.Categorization) (*entities.SMEReview, error)
}

// Generator writes the OQ suite.
type Generator interface {
	Generate(ctx context.Context, in usecases.GenerationInput) (*entities.OQSuite, error)
}

// Agents are the LLM-backed steps of a run.
type Agents struct {
	Categorizer Categorizer
	Context     ContextProvider
	Research    Researcher
	SME         Reviewer
	Generator   Generator
}

// Deps are the side-effecting collaborators of a run. Audit is mandatory;
// the rest may be nil.
type Deps struct {
	Audit   ports.AuditLog
	Writer  ports.ArtifactWriter
	Runs    ports.RunStore
	Metrics ports.Metrics
	Logger  *zap.Logger
	Timeout time.Duration // Whole-run deadline, 0 for none
}

type step func(ctx context.Context, st *RunState, ev Event) (Event, error)

// Workflow runs the pipeline for one document at a time. It is safe to call
// Run concurrently for different documents.
type Workflow struct {
	agents Agents
	deps   Deps
	logger *zap.Logger
	routes map[string]namedStep
	newID  func() string
	now    func() time.Time
}

type namedStep struct {
	name string
	fn   step
}

// New wires a Workflow.
func New(agents Agents, deps Deps) (*Workflow, error) {
	if agents.Categorizer == nil || agents.Context == nil || agents.Research == nil ||
		agents.SME == nil || agents.Generator == nil {
		return nil, errors.New("workflow: all agents are required")
	}
	if deps.Audit == nil {
		return nil, errors.New("workflow: audit log is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Workflow{
		agents: agents,
		deps:   deps,
		logger: logger.With(zap.String("component", "workflow")),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	w.routes = map[string]namedStep{
		StartEvent{}.Name():           {"categorize", w.categorize},
		CategorizedEvent{}.Name():     {"gather", w.gather},
		AgentsCompletedEvent{}.Name(): {"generate", w.generate},
		SuiteGeneratedEvent{}.Name():  {"validate", w.validate},
	}
	return w, nil
}

// Run executes every step for doc. Any step error halts the run and is returned as
// *StepError; there are no retries. The run is recorded whatever the outcome.
func (w *Workflow) Run(ctx context.Context, doc *entities.Document) (*entities.RunResult, error) {
	st := &RunState{
		RunID:     w.newID(),
		StartedAt: w.now().UTC(),
		Document:  doc,
	}
	log := w.logger.With(zap.String("run_id", st.RunID), zap.String("document", doc.Name))

	if w.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.deps.Timeout)
		defer cancel()
	}

	if err := w.audit(ctx, st, "workflow", "run.started", map[string]any{
		"document":      doc.Name,
		"document_hash": doc.ContentHash,
	}); err != nil {
		return nil, w.finish(ctx, st, nil, &StepError{Step: "start", Err: err})
	}
	log.Info("Run started")

	var ev Event = StartEvent{Document: doc}
	for {
		if stop, ok := ev.(StopEvent); ok {
			log.Info("Run finished",
				zap.Int("tests", len(stop.Result.Suite.Tests)),
				zap.Duration("duration", stop.Result.FinishedAt.Sub(stop.Result.StartedAt)))
			return stop.Result, w.finish(ctx, st, stop.Result, nil)
		}

		route, ok := w.routes[ev.Name()]
		if !ok {
			return nil, w.finish(ctx, st, nil, &StepError{Step: ev.Name(), Err: fmt.Errorf("no step handles event %q", ev.Name())})
		}

		start := w.now()
		next, err := route.fn(ctx, st, ev)
		elapsed := w.now().Sub(start)
		w.observeStep(route.name, elapsed, err)

		if err != nil {
			log.Error("Step failed", zap.String("step", route.name), zap.Duration("duration", elapsed), zap.Error(err))
			if aerr := w.audit(context.WithoutCancel(ctx), st, route.name, "step.failed", map[string]any{"error": err.Error()}); aerr != nil {
				log.Error("Failed to audit step failure", zap.String("step", route.name), zap.Error(aerr))
			}
			return nil, w.finish(ctx, st, nil, &StepError{Step: route.name, Err: err})
		}
		log.Debug("Step completed", zap.String("step", route.name), zap.Duration("duration", elapsed))
		ev = next
	}
}

// finish records the run outcome. Errors while recording are joined to runErr.
func (w *Workflow) finish(ctx context.Context, st *RunState, result *entities.RunResult, runErr error) error {
	status := entities.RunSucceeded
	var consult *usecases.ConsultationRequiredError
	switch {
	case errors.As(runErr, &consult):
		status = entities.RunConsultationRequired
	case runErr != nil:
		status = entities.RunFailed
	}

	rec := entities.RunRecord{
		RunID:      st.RunID,
		Status:     status,
		StartedAt:  st.StartedAt,
		FinishedAt: w.now().UTC(),
	}
	if st.Document != nil {
		rec.DocumentName = st.Document.Name
		rec.DocumentHash = st.Document.ContentHash
	}
	if st.Categorization != nil {
		rec.Category = int(st.Categorization.Category)
		rec.Confidence = st.Categorization.Confidence
	}
	if st.Suite != nil {
		rec.TestCount = len(st.Suite.Tests)
	}
	if result != nil && len(result.Artifacts) > 0 {
		rec.OutputDir = artifactDir(result.Artifacts[0])
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if w.deps.Metrics != nil {
		w.deps.Metrics.ObserveRun(status, rec.TestCount)
	}

	// Recording must outlive a cancelled or timed-out run.
	recordCtx := context.WithoutCancel(ctx)
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := w.audit(recordCtx, st, "workflow", "run."+string(status), map[string]any{
		"tests": rec.TestCount,
		"error": rec.Error,
	}); err != nil {
		errs = append(errs, fmt.Errorf("recording audit: %w", err))
	}
	if w.deps.Runs != nil {
		if err := w.deps.Runs.Save(recordCtx, rec); err != nil {
			errs = append(errs, fmt.Errorf("saving run record: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (w *Workflow) audit(ctx context.Context, st *RunState, actor, action string, payload map[string]any) error {
	return w.deps.Audit.Append(ctx, entities.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: w.now().UTC(),
		Actor:     actor,
		Action:    action,
		RunID:     st.RunID,
		Payload:   payload,
	})
}

func (w *Workflow) observeStep(name string, d time.Duration, err error) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.ObserveStep(name, d, err)
	}
}
