// Package journal keeps an append-only audit trail of task cycles:
// what each cycle decided, what it changed, and what failed. One JSON
// entry per line, one file per process start.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryType classifies a journal entry.
type EntryType string

const (
	EntryCycleCompleted EntryType = "cycle_completed"
	EntryCycleFailed    EntryType = "cycle_failed"
	EntryBootstrap      EntryType = "bootstrap"
)

// Entry is a single journal record. Data carries the task's cycle
// report verbatim.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	Task      string          `json:"task"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Journal appends entries to the current journal file.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens a journal in the directory. Each process start
// gets its own file so rotation is just retention cleanup.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	filename := fmt.Sprintf("lfo-%s.journal", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304 -- path built from config
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Journal{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}, nil
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// RecordCycle journals a completed cycle with its report.
func (j *Journal) RecordCycle(task string, report any) error {
	return j.append(EntryCycleCompleted, task, report, nil)
}

// RecordFailure journals a failed cycle. report may be nil when the
// cycle aborted before producing one.
func (j *Journal) RecordFailure(task string, report any, runErr error) error {
	return j.append(EntryCycleFailed, task, report, runErr)
}

// RecordBootstrap journals the one-shot bootstrap outcome.
func (j *Journal) RecordBootstrap(report any, runErr error) error {
	entryType := EntryBootstrap
	return j.append(entryType, "bootstrap", report, runErr)
}

func (j *Journal) append(entryType EntryType, task string, data any, runErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sequence++

	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  j.sequence,
		Type:      entryType,
		Task:      task,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		entry.Data = raw
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	return j.writeEntry(entry)
}

func (j *Journal) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := j.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush per entry; the journal is the post-incident record.
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return j.file.Sync()
}

// Reader replays a journal file entry by entry.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// OpenReader opens a journal file for replay.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from directory listing
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	return &Reader{file: file, scanner: bufio.NewScanner(file)}, nil
}

// Next returns the next entry, or io.EOF when the file is exhausted.
func (r *Reader) Next() (Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Entry{}, err
		}
		return Entry{}, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return Entry{}, fmt.Errorf("corrupt journal entry: %w", err)
	}
	return entry, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
