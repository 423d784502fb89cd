package filesystem

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/openfroyo/conveyor/pkg/engine"
)

// withRetry runs fn until it succeeds, fails permanently, or the tracker is
// exhausted. The final failure is classified and handled according to opt.
func (p *PhysicalFileSystem) withRetry(operation, path string, opt FailureOption, fn func() error) error {
	tracker := p.newTracker()

	var lastErr error
	exhausted := false
	for tracker.Try() {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// A transient failure is exhaustion however the loop ends, including
		// when the time limit passes during the sleep below.
		exhausted = p.transient(err)
		if !exhausted || !tracker.CanRetry() {
			break
		}
		if tracker.ShouldLogWarning() {
			p.log.Warnf("%s of %s failed on attempt %d, retrying: %v", operation, path, tracker.Attempts(), err)
		}
		p.metrics.RecordFileOperationRetry(operation)
		p.sleep(tracker.Sleep())
	}
	if lastErr == nil {
		// The tracker refused even the first attempt (zero time limit).
		lastErr = fmt.Errorf("no attempt permitted")
		exhausted = true
	}

	return p.fail(operation, path, opt, classify(operation, path, lastErr, exhausted))
}

// fail applies the caller's failure policy to a classified error.
func (p *PhysicalFileSystem) fail(operation, path string, opt FailureOption, err *engine.EngineError) error {
	p.metrics.RecordFileOperationFailure(operation, err.Code)
	if opt == IgnoreFailure {
		p.log.Warnf("ignoring failed %s of %s: %v", operation, path, err)
		return nil
	}
	return err
}

func classify(operation, path string, err error, exhausted bool) *engine.EngineError {
	var e *engine.EngineError
	switch {
	case errors.As(err, &e):
		return e
	case exhausted:
		e = engine.NewPermanentError(fmt.Sprintf("%s did not succeed before retries were exhausted", operation), err).
			WithCode(engine.ErrCodeRetriesExhausted)
	case errors.Is(err, fs.ErrPermission):
		e = engine.NewPermanentError(fmt.Sprintf("%s was denied", operation), err).
			WithCode(engine.ErrCodePermissionDenied)
	case errors.Is(err, fs.ErrNotExist):
		e = engine.NewPermanentError(fmt.Sprintf("%s target does not exist", operation), err).
			WithCode(engine.ErrCodeNotFound)
	default:
		e = engine.NewPermanentError(fmt.Sprintf("%s failed", operation), err).
			WithCode(engine.ErrCodeIOPermanent)
	}
	return e.WithResource(path).WithOperation(operation)
}
