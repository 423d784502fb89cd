package engine

import (
	"context"
	"fmt"
)

// Convention is one ordered step of the deployment pipeline.
type Convention interface {
	// Name identifies the convention in logs, traces and reports.
	Name() string

	// Install applies the convention to the running deployment.
	Install(ctx context.Context, d *RunningDeployment) error
}

// ConventionFunc adapts a function to the Convention interface.
type ConventionFunc struct {
	ConventionName string
	Fn             func(ctx context.Context, d *RunningDeployment) error
}

// Name implements Convention.
func (c ConventionFunc) Name() string { return c.ConventionName }

// Install implements Convention.
func (c ConventionFunc) Install(ctx context.Context, d *RunningDeployment) error {
	return c.Fn(ctx, d)
}

// PipelineObserver is notified around each convention. BeforeConvention may
// return a derived context that is passed to the convention and to
// AfterConvention.
type PipelineObserver interface {
	BeforeConvention(ctx context.Context, index int, name string) context.Context
	AfterConvention(ctx context.Context, index int, name string, err error)
}

// Pipeline runs conventions strictly in registration order and stops at the
// first failure. Already applied conventions are not rolled back.
type Pipeline struct {
	conventions []Convention
	observers   []PipelineObserver
}

// NewPipeline creates a pipeline from conventions.
func NewPipeline(conventions ...Convention) *Pipeline {
	return &Pipeline{conventions: conventions}
}

// Add appends a convention.
func (p *Pipeline) Add(c Convention) *Pipeline {
	p.conventions = append(p.conventions, c)
	return p
}

// Observe registers an observer. Observers are entered in registration order
// and exited in reverse.
func (p *Pipeline) Observe(o PipelineObserver) *Pipeline {
	p.observers = append(p.observers, o)
	return p
}

// Conventions returns the registered convention names in order.
func (p *Pipeline) Conventions() []string {
	names := make([]string, len(p.conventions))
	for i, c := range p.conventions {
		names[i] = c.Name()
	}
	return names
}

// Run executes every convention against d. The returned error is a
// *ConventionError naming the failing step.
func (p *Pipeline) Run(ctx context.Context, d *RunningDeployment) error {
	for i, c := range p.conventions {
		name := c.Name()
		if err := ctx.Err(); err != nil {
			return &ConventionError{
				Index:      i,
				Convention: name,
				Err:        NewPermanentError("deployment cancelled", err).WithCode(ErrCodeCancelled),
			}
		}

		cctx := ctx
		for _, o := range p.observers {
			cctx = o.BeforeConvention(cctx, i, name)
		}

		err := install(cctx, c, d)

		for j := len(p.observers) - 1; j >= 0; j-- {
			p.observers[j].AfterConvention(cctx, i, name, err)
		}

		if err != nil {
			return &ConventionError{Index: i, Convention: name, Err: err}
		}
	}
	return nil
}

// install runs one convention, converting a panic into an internal error so a
// misbehaving convention still stops the pipeline with a diagnostic.
func install(ctx context.Context, c Convention, d *RunningDeployment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPermanentError(fmt.Sprintf("convention panicked: %v", r), nil).
				WithCode(ErrCodeInternal)
		}
	}()
	return c.Install(ctx, d)
}
