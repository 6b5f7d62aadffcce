package wal

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

const (
	segmentPrefix = "segment-"
	tmpPrefix     = "tmp-"
	filePerm      = 0644
)

// Journal is a file-based domain.UsageJournal. Increments are appended as
// JSON lines to size-bounded segment files and removed once applied.
type Journal struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentPath    string
	currentSize    int64

	drainMu sync.Mutex
}

// NewJournal opens or creates the journal in dir.
func NewJournal(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}

	j := &Journal{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "usage_journal"),
	}

	if err := j.openLatestSegment(); err != nil {
		return nil, err
	}

	return j, nil
}

// Append writes inc to the current segment.
func (j *Journal) Append(ctx context.Context, inc domain.UsageIncrement) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to marshal usage increment: %w", err)
	}
	data = append(data, '\n')

	if j.currentSegment == nil {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	totalSize, err := j.calculateTotalSize()
	if err != nil {
		return fmt.Errorf("could not verify journal disk space: %w", err)
	}
	if totalSize+int64(len(data)) > j.maxTotalSize {
		return fmt.Errorf("journal max total size exceeded (%d > %d)", totalSize, j.maxTotalSize)
	}

	n, err := j.currentSegment.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to journal segment: %w", err)
	}
	j.currentSize += int64(n)

	if j.currentSize >= j.maxSegmentSize {
		if err := j.rotate(); err != nil {
			j.logger.Error("Failed to rotate journal segment", "error", err)
		}
	}

	return nil
}

// Drain applies every journaled increment in order. Fully applied segments
// are deleted; a segment that fails part way is rewritten with the entries
// that are still pending, so nothing is applied twice.
func (j *Journal) Drain(ctx context.Context, apply func(domain.UsageIncrement) error) (int, error) {
	j.drainMu.Lock()
	defer j.drainMu.Unlock()

	segments, err := j.sealSegments()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, path := range segments {
		entries, err := j.readSegment(path)
		if err != nil {
			return applied, err
		}

		for i, inc := range entries {
			if err := ctx.Err(); err != nil {
				return applied, j.keepPending(path, entries[i:], err)
			}
			if err := apply(inc); err != nil {
				return applied, j.keepPending(path, entries[i:], fmt.Errorf("apply journaled increment: %w", err))
			}
			applied++
		}

		if err := os.Remove(path); err != nil {
			return applied, fmt.Errorf("failed to remove drained segment %s: %w", path, err)
		}
	}

	return applied, nil
}

// sealSegments rotates away from a non-empty current segment and returns
// every segment that no longer receives appends.
func (j *Journal) sealSegments() ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment != nil && j.currentSize > 0 {
		if err := j.rotate(); err != nil {
			return nil, err
		}
	}

	all, err := j.getSortedSegments()
	if err != nil {
		return nil, err
	}
	sealed := all[:0]
	for _, path := range all {
		if path != j.currentPath {
			sealed = append(sealed, path)
		}
	}
	return sealed, nil
}

func (j *Journal) readSegment(path string) ([]domain.UsageIncrement, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	defer file.Close()

	var entries []domain.UsageIncrement
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var inc domain.UsageIncrement
		if err := json.Unmarshal(scanner.Bytes(), &inc); err != nil {
			j.logger.Warn("Failed to unmarshal journal entry, skipping", "error", err, "line", scanner.Text())
			continue
		}
		entries = append(entries, inc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return entries, nil
}

// keepPending replaces the segment at path with pending and returns cause.
func (j *Journal) keepPending(path string, pending []domain.UsageIncrement, cause error) error {
	tmp := filepath.Join(j.dir, tmpPrefix+filepath.Base(path))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w (and failed to rewrite segment: %v)", cause, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, inc := range pending {
		if err := enc.Encode(inc); err != nil {
			f.Close()
			return fmt.Errorf("%w (and failed to rewrite segment: %v)", cause, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("%w (and failed to rewrite segment: %v)", cause, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w (and failed to rewrite segment: %v)", cause, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w (and failed to rewrite segment: %v)", cause, err)
	}
	return cause
}

// Pending returns the number of journaled increments not yet applied.
func (j *Journal) Pending() (int, error) {
	j.mu.Lock()
	if j.currentSegment != nil {
		if err := j.currentSegment.Sync(); err != nil {
			j.logger.Warn("Failed to sync journal segment", "error", err)
		}
	}
	segments, err := j.getSortedSegments()
	j.mu.Unlock()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, path := range segments {
		entries, err := j.readSegment(path)
		if err != nil {
			return 0, err
		}
		total += len(entries)
	}
	return total, nil
}

func (j *Journal) rotate() error {
	if j.currentSegment != nil {
		if err := j.currentSegment.Sync(); err != nil {
			j.logger.Error("Failed to sync journal segment before rotating", "error", err)
		}
		if err := j.currentSegment.Close(); err != nil {
			j.logger.Error("Failed to close journal segment before rotating", "error", err)
		}
		j.currentSegment = nil
		j.currentPath = ""
	}

	segmentName := fmt.Sprintf("%s%d.log", segmentPrefix, time.Now().UnixNano())
	path := filepath.Join(j.dir, segmentName)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new journal segment %s: %w", path, err)
	}

	j.currentSegment = f
	j.currentPath = path
	j.currentSize = 0
	j.logger.Debug("Rotated to new journal segment", "path", path)
	return nil
}

func (j *Journal) openLatestSegment() error {
	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return j.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	j.currentSegment = f
	j.currentPath = latestSegmentPath
	j.currentSize = stat.Size()
	j.logger.Info("Opened existing journal segment", "path", latestSegmentPath, "size", j.currentSize)

	if j.currentSize >= j.maxSegmentSize {
		return j.rotate()
	}

	return nil
}

func (j *Journal) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(j.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (j *Journal) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}

// Close closes the current segment.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.currentSegment != nil {
		err := j.currentSegment.Close()
		j.currentSegment = nil
		return err
	}
	return nil
}
