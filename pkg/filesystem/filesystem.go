// Package filesystem implements the retry-hardened file-system gateway used by
// conventions and script engines.
//
// Deletes and copies are wrapped with a retry.Tracker: transient failures such as
// a file locked by another process are retried with backoff, and the caller picks
// whether an exhausted or permanent failure aborts (ThrowOnFailure) or is logged
// and swallowed (IgnoreFailure).
package filesystem

import (
	"context"
	"io/fs"
	"os"
	"time"

	"github.com/openfroyo/conveyor/pkg/retry"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// FailureOption selects what happens when a file operation cannot complete.
type FailureOption int

const (
	// ThrowOnFailure returns the error to the caller.
	ThrowOnFailure FailureOption = iota
	// IgnoreFailure logs the error and continues.
	IgnoreFailure
)

// String implements fmt.Stringer.
func (o FailureOption) String() string {
	if o == IgnoreFailure {
		return "ignore"
	}
	return "throw"
}

// MinimumFreeSpaceBytes is the free-space floor enforced before deployments.
const MinimumFreeSpaceBytes int64 = 500 * 1024 * 1024

// IncludePredicate selects entries for PurgeDirectory. It receives the absolute
// path of the entry and its metadata (not following links).
type IncludePredicate func(path string, info fs.FileInfo) bool

// IncludeAll is a predicate that selects everything.
func IncludeAll(string, fs.FileInfo) bool { return true }

// FileSystem is the file-system surface consumed by conventions and script engines.
type FileSystem interface {
	FileExists(path string) bool
	DirectoryExists(path string) bool
	EnsureDirectoryExists(path string) error

	ReadAllText(path string) (string, error)
	WriteAllText(path, content string, perm fs.FileMode) error
	NewTemporaryFilePath(dir, prefix, extension string) string
	CreateTemporaryDirectory() (string, error)

	EnumerateFiles(dir string, recursive bool, patterns ...string) ([]string, error)
	EnumerateDirectories(dir string) ([]string, error)

	DeleteFile(path string, opt FailureOption) error
	DeleteDirectory(path string, opt FailureOption) error
	CopyFile(src, dst string) error
	CopyDirectory(ctx context.Context, src, dst string) (int, error)
	OverwriteAndDelete(original, replacement string) error
	PurgeDirectory(ctx context.Context, root string, include IncludePredicate, opt FailureOption) error

	EnsureDiskHasEnoughFreeSpace(path string, requiredBytes int64) error
}

// PhysicalFileSystem implements FileSystem against the host operating system.
type PhysicalFileSystem struct {
	log     *telemetry.Logger
	metrics *telemetry.Metrics

	maxRetries int
	timeLimit  time.Duration
	interval   retry.Interval

	sleep     func(time.Duration)
	now       func() time.Time
	freeSpace func(path string) (uint64, error)
	transient func(err error) bool
	removeAll func(path string) error
}

// Option configures a PhysicalFileSystem.
type Option func(*PhysicalFileSystem)

// WithLogger sets the logger used for retry and best-effort diagnostics.
func WithLogger(log *telemetry.Logger) Option {
	return func(p *PhysicalFileSystem) {
		if log != nil {
			p.log = log.NewComponentLogger("filesystem")
		}
	}
}

// WithMetrics records retries and failures.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *PhysicalFileSystem) {
		p.metrics = m
	}
}

// WithRetryPolicy overrides the retry bounds applied to each operation.
func WithRetryPolicy(maxRetries int, timeLimit time.Duration, interval retry.Interval) Option {
	return func(p *PhysicalFileSystem) {
		p.maxRetries = maxRetries
		p.timeLimit = timeLimit
		p.interval = interval
	}
}

// WithSleep overrides how the gateway waits between attempts.
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *PhysicalFileSystem) {
		p.sleep = sleep
	}
}

// WithClock overrides the time source retry limits are measured against.
func WithClock(now func() time.Time) Option {
	return func(p *PhysicalFileSystem) {
		p.now = now
	}
}

// WithFreeSpaceFunc overrides how free space is measured.
func WithFreeSpaceFunc(measure func(path string) (uint64, error)) Option {
	return func(p *PhysicalFileSystem) {
		p.freeSpace = measure
	}
}

// WithTransientClassifier overrides which errors are retried.
func WithTransientClassifier(transient func(err error) bool) Option {
	return func(p *PhysicalFileSystem) {
		p.transient = transient
	}
}

// New creates the file system for the host platform. The platform-specific
// pieces (free-space measurement, transient error classification) are chosen at build
// time; callers never branch on the platform.
func New(opts ...Option) *PhysicalFileSystem {
	p := &PhysicalFileSystem{
		log:        telemetry.NewNopLogger(),
		maxRetries: 100,
		timeLimit:  time.Minute,
		interval:   retry.DefaultInterval(),
		sleep:      time.Sleep,
		now:        time.Now,
		freeSpace:  freeBytes,
		transient:  isTransientError,
		removeAll:  os.RemoveAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PhysicalFileSystem) newTracker() *retry.Tracker {
	return retry.NewTracker(p.maxRetries, p.timeLimit, p.interval, retry.WithClock(p.now))
}

var _ FileSystem = (*PhysicalFileSystem)(nil)
