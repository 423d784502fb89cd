package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/openfroyo/conveyor/pkg/engine"
)

// FileExists reports whether path exists and is not a directory.
func (p *PhysicalFileSystem) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirectoryExists reports whether path exists and is a directory.
func (p *PhysicalFileSystem) DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// EnsureDirectoryExists creates path and any missing parents.
func (p *PhysicalFileSystem) EnsureDirectoryExists(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return classify("create directory", path, err, false)
	}
	return nil
}

// ReadAllText reads a whole file as text.
func (p *PhysicalFileSystem) ReadAllText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", classify("read", path, err, false)
	}
	return string(data), nil
}

// WriteAllText writes content to path, creating parent directories.
func (p *PhysicalFileSystem) WriteAllText(path, content string, perm fs.FileMode) error {
	if err := p.EnsureDirectoryExists(filepath.Dir(path)); err != nil {
		return err
	}
	return p.withRetry("write", path, ThrowOnFailure, func() error {
		return os.WriteFile(path, []byte(content), perm)
	})
}

// NewTemporaryFilePath returns a unique, not yet existing path in dir.
func (p *PhysicalFileSystem) NewTemporaryFilePath(dir, prefix, extension string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s%s", prefix, uuid.NewString(), extension))
}

// CreateTemporaryDirectory creates a fresh private directory under the OS temp dir.
func (p *PhysicalFileSystem) CreateTemporaryDirectory() (string, error) {
	dir := filepath.Join(os.TempDir(), "conveyor-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", classify("create temporary directory", dir, err, false)
	}
	return dir, nil
}

// EnumerateFiles lists files under dir in lexical order. Patterns are globs
// matched against the file name, or against the slash-separated path relative to
// dir when the pattern contains a slash. No patterns selects every file.
func (p *PhysicalFileSystem) EnumerateFiles(dir string, recursive bool, patterns ...string) ([]string, error) {
	matchers, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(matchers, dir, path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, classify("enumerate files", dir, err, false)
	}
	return files, nil
}

// EnumerateDirectories lists the immediate subdirectories of dir in lexical order.
func (p *PhysicalFileSystem) EnumerateDirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classify("enumerate directories", dir, err, false)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

// DeleteFile removes a file, retrying transient failures. A missing file is not an error.
func (p *PhysicalFileSystem) DeleteFile(path string, opt FailureOption) error {
	return p.withRetry("delete file", path, opt, func() error {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
}

// DeleteDirectory removes a directory tree, retrying transient failures, then
// polls until the directory is confirmed gone; some platforms complete removal
// after the call returns.
func (p *PhysicalFileSystem) DeleteDirectory(path string, opt FailureOption) error {
	if !p.DirectoryExists(path) {
		return nil
	}
	failed := false
	if err := p.withRetry("delete directory", path, opt, func() error {
		err := p.removeAll(path)
		failed = err != nil
		return err
	}); err != nil || failed {
		return err
	}

	tracker := p.newTracker()
	for p.DirectoryExists(path) {
		if !tracker.Try() {
			return p.fail("delete directory", path, opt,
				engine.NewPermanentError("directory still exists after deletion", nil).
					WithCode(engine.ErrCodeRetriesExhausted).
					WithResource(path).
					WithOperation("delete directory"))
		}
		p.sleep(tracker.Sleep())
	}
	return nil
}

// CopyFile copies src to dst, creating parent directories and keeping the file mode.
func (p *PhysicalFileSystem) CopyFile(src, dst string) error {
	if err := p.EnsureDirectoryExists(filepath.Dir(dst)); err != nil {
		return err
	}
	return p.withRetry("copy file", src, ThrowOnFailure, func() error {
		return copyFile(src, dst)
	})
}

// CopyDirectory copies the tree at src into dst and returns the number of files
// copied. Cancellation is checked before each file; files already copied stay.
func (p *PhysicalFileSystem) CopyDirectory(ctx context.Context, src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := checkCancelled(ctx, path); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			return os.Symlink(link, target)
		case d.IsDir():
			return p.EnsureDirectoryExists(target)
		default:
			if err := p.CopyFile(path, target); err != nil {
				return err
			}
			copied++
			return nil
		}
	})
	if err != nil {
		return copied, classify("copy directory", src, err, false)
	}
	return copied, nil
}

// OverwriteAndDelete replaces original with the content of replacement. When
// original exists it is first moved to a uniquely named backup so the swap is
// atomic where the platform allows; afterwards only original remains.
func (p *PhysicalFileSystem) OverwriteAndDelete(original, replacement string) error {
	if !p.FileExists(original) {
		if err := p.CopyFile(replacement, original); err != nil {
			return err
		}
		return p.DeleteFile(replacement, IgnoreFailure)
	}

	backup := fmt.Sprintf("%s.%s.bak", original, uuid.NewString())
	if err := p.withRetry("backup file", original, ThrowOnFailure, func() error {
		return os.Rename(original, backup)
	}); err != nil {
		return err
	}

	if err := p.withRetry("replace file", original, ThrowOnFailure, func() error {
		return os.Rename(replacement, original)
	}); err != nil {
		if restoreErr := os.Rename(backup, original); restoreErr != nil {
			p.log.Errorf("failed to restore %s from backup %s: %v", original, backup, restoreErr)
		}
		return err
	}

	if err := p.DeleteFile(backup, ThrowOnFailure); err != nil {
		return err
	}
	return p.DeleteFile(replacement, IgnoreFailure)
}

// PurgeDirectory deletes every file under root selected by include and removes
// subdirectories left empty. Directory links are deleted as a single entry and
// never traversed. Cancellation is checked before each file and subdirectory;
// deletions already made are kept. root itself is not removed.
func (p *PhysicalFileSystem) PurgeDirectory(ctx context.Context, root string, include IncludePredicate, opt FailureOption) error {
	if include == nil {
		include = IncludeAll
	}
	if !p.DirectoryExists(root) {
		return nil
	}
	return p.purge(ctx, root, include, opt)
}

func (p *PhysicalFileSystem) purge(ctx context.Context, dir string, include IncludePredicate, opt FailureOption) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return p.fail("purge directory", dir, opt, classify("purge directory", dir, err, false))
	}

	var subdirs []os.DirEntry
	for _, entry := range entries {
		if entry.IsDir() {
			subdirs = append(subdirs, entry)
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := checkCancelled(ctx, path); err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return p.fail("purge directory", path, opt, classify("purge directory", path, err, false))
		}
		if !include(path, info) {
			continue
		}
		if isLink(info) && p.isDirectoryLink(path) {
			p.log.Debugf("removing directory link %s without traversing it", path)
		}
		if err := p.DeleteFile(path, opt); err != nil {
			return err
		}
	}

	for _, entry := range subdirs {
		path := filepath.Join(dir, entry.Name())
		if err := checkCancelled(ctx, path); err != nil {
			return err
		}
		if err := p.purge(ctx, path, include, opt); err != nil {
			return err
		}
		if empty, _ := isEmptyDir(path); empty {
			if err := p.DeleteDirectory(path, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnsureDiskHasEnoughFreeSpace fails when the volume holding path has less free
// space than max(requiredBytes, MinimumFreeSpaceBytes). When free space cannot be
// determined the check is skipped with a warning.
func (p *PhysicalFileSystem) EnsureDiskHasEnoughFreeSpace(path string, requiredBytes int64) error {
	required := requiredBytes
	if required < MinimumFreeSpaceBytes {
		required = MinimumFreeSpaceBytes
	}

	target := existingAncestor(path)
	free, err := p.freeSpace(target)
	if err != nil {
		p.log.Warnf("unable to determine free disk space for %s, skipping check: %v", target, err)
		return nil
	}

	if free < uint64(required) {
		return engine.NewPermanentError(
			fmt.Sprintf("the drive containing %s does not have enough free disk space available: %s free, %s required",
				target, humanBytes(free), humanBytes(uint64(required))), nil).
			WithCode(engine.ErrCodeInsufficientSpace).
			WithResource(target).
			WithOperation("check free space").
			WithDetail("free_bytes", free).
			WithDetail("required_bytes", required)
	}
	return nil
}

func existingAncestor(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}

func humanBytes(n uint64) string {
	const mb = 1024 * 1024
	return fmt.Sprintf("%.2f MB", float64(n)/mb)
}

func checkCancelled(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return engine.NewPermanentError("operation cancelled", err).
			WithCode(engine.ErrCodeCancelled).
			WithResource(path)
	}
	return nil
}

func isLink(info fs.FileInfo) bool {
	return info.Mode()&(fs.ModeSymlink|fs.ModeIrregular) != 0
}

func (p *PhysicalFileSystem) isDirectoryLink(path string) bool {
	return p.DirectoryExists(path)
}

func isEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	if err := destFile.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode().Perm())
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, engine.NewPermanentError(fmt.Sprintf("invalid file pattern %q", pattern), err).
				WithCode(engine.ErrCodeValidation)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

func matchesAny(matchers []glob.Glob, root, path string) bool {
	if len(matchers) == 0 {
		return true
	}
	name := filepath.Base(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = name
	}
	rel = filepath.ToSlash(rel)
	for _, g := range matchers {
		if g.Match(name) || (strings.Contains(rel, "/") && g.Match(rel)) {
			return true
		}
	}
	return false
}

// ExcludeGlobs returns a predicate keeping every entry under root whose relative
// path or name matches one of patterns.
func ExcludeGlobs(root string, patterns []string) (IncludePredicate, error) {
	matchers, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}
	if len(matchers) == 0 {
		return IncludeAll, nil
	}
	return func(path string, _ fs.FileInfo) bool {
		return !matchesAny(matchers, root, path)
	}, nil
}
