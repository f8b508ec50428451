// Package workflow sequences the agents into a run. Steps are triggered by typed
// events and share a RunState: start -> categorize -> (context | research | SME)
// -> generate -> validate -> stop.
package workflow

import (
	"fmt"
	"time"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// Event triggers the next step of a run.
type Event interface {
	Name() string
}

// StartEvent begins a run for one URS.
type StartEvent struct {
	Document *entities.Document
}

// CategorizedEvent carries an accepted categorization.
type CategorizedEvent struct {
	Categorization *entities.Categorization
}

// AgentsCompletedEvent fires once context, research and SME have all returned.
type AgentsCompletedEvent struct{}

// SuiteGeneratedEvent carries the generated, not yet validated, suite.
type SuiteGeneratedEvent struct {
	Suite *entities.OQSuite
}

// StopEvent ends the run successfully.
type StopEvent struct {
	Result *entities.RunResult
}

func (StartEvent) Name() string           { return "start" }
func (CategorizedEvent) Name() string     { return "categorized" }
func (AgentsCompletedEvent) Name() string { return "agents_completed" }
func (SuiteGeneratedEvent) Name() string  { return "suite_generated" }
func (StopEvent) Name() string            { return "stop" }

// RunState is the shared context object every step reads and writes.
// The three parallel agents each own one of Context, Research and SME.
type RunState struct {
	RunID          string
	StartedAt      time.Time
	Document       *entities.Document
	Requirements   []entities.Requirement
	Categorization *entities.Categorization
	Context        *entities.ContextBundle
	Research       *entities.ResearchFindings
	SME            *entities.SMEReview
	Suite          *entities.OQSuite
}

// StepError names the step that halted a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
