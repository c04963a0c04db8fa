package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"autobattler/arbiter/internal/config"
)

// rotationPolicy bounds the size of the live file and how many backups survive.
type rotationPolicy struct {
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration
	compress   bool
}

func policyFromConfig(cfg config.LoggingConfig) (rotationPolicy, error) {
	var problems []string
	if cfg.MaxSizeMB <= 0 {
		problems = append(problems, "ARBITER_LOG_MAX_SIZE_MB must be positive")
	}
	if cfg.MaxBackups < 0 {
		problems = append(problems, "ARBITER_LOG_MAX_BACKUPS must be non-negative")
	}
	if cfg.MaxAgeDays < 0 {
		problems = append(problems, "ARBITER_LOG_MAX_AGE_DAYS must be non-negative")
	}
	if len(problems) > 0 {
		return rotationPolicy{}, errors.New(strings.Join(problems, "; "))
	}
	return rotationPolicy{
		maxBytes:   int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress:   cfg.Compress,
	}, nil
}

// rotatingWriter appends to one file and moves it aside once it would exceed
// the policy size. Backups are named <path>.<utc stamp>[.gz].
type rotatingWriter struct {
	mu     sync.Mutex
	path   string
	policy rotationPolicy
	now    func() time.Time
	file   *os.File
	size   int64
}

func newRotatingWriter(cfg config.LoggingConfig) (*rotatingWriter, error) {
	policy, err := policyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	writer := &rotatingWriter{path: cfg.Path, policy: policy, now: time.Now}
	if err := writer.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return writer, nil
}

func (w *rotatingWriter) open(mode int) error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file, w.size = file, info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	//1.- A single oversized line still lands in a fresh file rather than looping.
	if w.size > 0 && w.size+int64(len(p)) > w.policy.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *rotatingWriter) rotateLocked() error {
	if w.file == nil {
		return errors.New("log file not initialized")
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	stamp := w.now().UTC().Format("20060102T150405.000")
	backup := fmt.Sprintf("%s.%s", w.path, stamp)
	for i := 1; exists(backup) || exists(backup+".gz"); i++ {
		backup = fmt.Sprintf("%s.%s-%d", w.path, stamp, i)
	}
	if err := os.Rename(w.path, backup); err != nil {
		return err
	}
	if w.policy.compress {
		if err := gzipFile(backup); err != nil {
			return err
		}
	}
	w.pruneLocked()
	return w.open(os.O_TRUNC)
}

// pruneLocked drops backups beyond the count limit, newest first, and any older than maxAge.
func (w *rotatingWriter) pruneLocked() {
	backups, _ := filepath.Glob(w.path + ".*")
	type backup struct {
		path string
		mod  time.Time
	}
	found := make([]backup, 0, len(backups))
	for _, path := range backups {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		found = append(found, backup{path: path, mod: info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	cutoff := time.Time{}
	if w.policy.maxAge > 0 {
		cutoff = w.now().Add(-w.policy.maxAge)
	}
	for i, candidate := range found {
		tooMany := w.policy.maxBackups > 0 && i >= w.policy.maxBackups
		tooOld := !cutoff.IsZero() && candidate.mod.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(candidate.path)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// gzipFile replaces src with src.gz.
func gzipFile(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(src+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	_, copyErr := io.Copy(gz, in)
	closeErr := gz.Close()
	if err := out.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(src + ".gz")
		return errors.Join(copyErr, closeErr)
	}
	return os.Remove(src)
}
