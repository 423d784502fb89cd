package report

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/openfroyo/conveyor/pkg/engine"
)

// Journal reports a deployment through an Encoder. It observes the pipeline to
// emit convention boundaries. Write failures never stop the deployment; the
// first one is kept and returned by Err.
type Journal struct {
	enc          *Encoder
	deploymentID string
	started      time.Time

	mu         sync.Mutex
	convention map[int]time.Time
	err        error
}

// NewJournal creates a journal writing to enc.
func NewJournal(enc *Encoder) *Journal {
	return &Journal{enc: enc, convention: make(map[int]time.Time)}
}

// Start writes the STARTED message for d and the given pipeline.
func (j *Journal) Start(d *engine.RunningDeployment, p *engine.Pipeline) {
	j.deploymentID = d.ID
	j.started = time.Now()
	j.record(j.enc.EncodeStarted(&StartedMessage{
		DeploymentID:     d.ID,
		PackageDirectory: d.PackageDirectory,
		Conventions:      p.Conventions(),
		Platform:         runtime.GOOS,
		PID:              os.Getpid(),
	}))
}

// BeforeConvention implements engine.PipelineObserver.
func (j *Journal) BeforeConvention(ctx context.Context, index int, name string) context.Context {
	j.mu.Lock()
	j.convention[index] = time.Now()
	j.mu.Unlock()

	j.record(j.enc.EncodeConvention(MessageTypeConventionStarted, &ConventionMessage{
		DeploymentID: j.deploymentID,
		Index:        index,
		Name:         name,
	}))
	return ctx
}

// AfterConvention implements engine.PipelineObserver.
func (j *Journal) AfterConvention(_ context.Context, index int, name string, err error) {
	j.mu.Lock()
	start, ok := j.convention[index]
	delete(j.convention, index)
	j.mu.Unlock()

	msg := &ConventionMessage{
		DeploymentID: j.deploymentID,
		Index:        index,
		Name:         name,
		Success:      err == nil,
	}
	if ok {
		msg.Duration = time.Since(start).Seconds()
	}
	if err != nil {
		msg.Error = err.Error()
	}
	j.record(j.enc.EncodeConvention(MessageTypeConventionFinished, msg))
}

// Finish writes the RESULT message for d given the pipeline error.
func (j *Journal) Finish(d *engine.RunningDeployment, err error) {
	var duration time.Duration
	if !j.started.IsZero() {
		duration = time.Since(j.started)
	}
	j.record(j.enc.EncodeResult(NewResult(d, err, duration)))
}

// Err returns the first write failure.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Journal) record(err error) {
	if err == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err == nil {
		j.err = err
	}
}
