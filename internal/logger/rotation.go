package logger

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rotatedLayout keeps rotated names sortable and unique within a second
const rotatedLayout = "20060102-150405.000000000"

// RotatingWriter appends to a log file and moves it aside once it would exceed
// maxSize. Rotated files are optionally gzipped and removed after maxAge days.
// It is safe for concurrent use.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	maxAge   time.Duration
	compress bool
	file     *os.File
	size     int64
	onError  func(error)

	// background compression and pruning
	bg sync.WaitGroup
}

// NewRotatingWriter opens path for appending, creating its directory.
// maxSizeMB <= 0 rotates before every write; maxAgeDays <= 0 keeps rotated files forever.
func NewRotatingWriter(path string, maxSizeMB int, maxAgeDays int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) << 20,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		compress: compress,
		file:     file,
		size:     size,
	}
	w.background(w.prune)
	return w, nil
}

// OnError sets the handler for failures of background compression and pruning.
// The handler runs outside the writer's lock, so it may log through this writer.
func (w *RotatingWriter) OnError(fn func(error)) {
	w.mu.Lock()
	w.onError = fn
	w.mu.Unlock()
}

// Write appends p, rotating first when p would push the file past maxSize
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(time.Now()); err != nil {
			return 0, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the active file and waits for pending compression and pruning
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	w.mu.Unlock()

	w.bg.Wait()
	return err
}

// rotate moves the active file aside and reopens path; callers hold mu
func (w *RotatingWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return err
	}

	rotated := w.rotatedName(now)
	renameErr := os.Rename(w.path, rotated)

	// Reopen even if the rename failed so logging can continue
	file, size, err := openAppend(w.path)
	if err != nil {
		w.file = nil
		return errors.Join(renameErr, err)
	}
	w.file, w.size = file, size
	if renameErr != nil {
		return renameErr
	}

	if w.compress {
		w.background(func() error { return gzipFile(rotated) })
	}
	w.background(w.prune)
	return nil
}

// rotatedName returns a name no existing file uses
func (w *RotatingWriter) rotatedName(now time.Time) string {
	base := w.path + "." + now.Format(rotatedLayout)
	name := base
	for i := 1; exists(name) || exists(name+".gz"); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return name
}

// prune removes rotated files older than maxAge
func (w *RotatingWriter) prune() error {
	if w.maxAge <= 0 {
		return nil
	}

	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-w.maxAge)
	var errs []error
	for _, name := range matches {
		info, err := os.Stat(name)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *RotatingWriter) background(task func() error) {
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		if err := task(); err != nil {
			w.report(err)
		}
	}()
}

func (w *RotatingWriter) report(err error) {
	w.mu.Lock()
	fn := w.onError
	w.mu.Unlock()

	if fn != nil {
		fn(err)
		return
	}
	fmt.Fprintf(os.Stderr, "relay: log rotation: %v\n", err)
}

// gzipFile replaces name with name.gz. The original is kept if compression fails.
func gzipFile(name string) (err error) {
	src, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(name), err)
	}
	defer src.Close()

	target := name + ".gz"
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(name), err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(target)
		}
	}()

	gz := gzip.NewWriter(dst)
	if _, err = io.Copy(gz, src); err == nil {
		err = gz.Close()
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(name), err)
	}

	src.Close()
	return os.Remove(name)
}

func openAppend(path string) (*os.File, int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	return file, info.Size(), nil
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
