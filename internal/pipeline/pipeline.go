package pipeline

import (
	"context"
	"log/slog"

	"github.com/cricv/devserve/internal/model"
)

// Step defines the interface that all boot steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// launch plan from previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., conditional steps)
type Step interface {
	// Do executes the boot step.
	// It receives the context for cancellation, and the plan to modify.
	// Returns an error if the step fails; boot failures must stop the
	// launch, so errors here are always terminal.
	Do(ctx context.Context, plan *model.LaunchPlan) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple boot steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all boot steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: There is no continue-on-error mode. A launch with a
// half-provisioned workspace or an unresolved interpreter must never
// reach the supervisor, so the first failure is always terminal.
func (p *Pipeline) Execute(ctx context.Context, plan *model.LaunchPlan) error {
	for _, step := range p.steps {
		// Check for cancellation before starting each step
		select {
		case <-ctx.Done():
			p.logger.Warn("boot cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing boot step",
			"step", step.Name(),
			"profile", plan.Profile,
		)

		if err := step.Do(ctx, plan); err != nil {
			p.logger.Error("boot step failed",
				"step", step.Name(),
				"profile", plan.Profile,
				"error", err,
			)
			return err
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
