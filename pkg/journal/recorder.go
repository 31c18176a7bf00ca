package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder is an interface for recording a structured log of classification
// decisions and the network activity behind them.
type Recorder interface {
	io.Closer

	// Write will add an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder keeps a RunLog in memory and rewrites it to a file after every event.
type FileRecorder struct {
	mu       sync.Mutex
	f        *os.File
	run      RunLog
	requests map[string]int
}

// NewFileRecorder creates a new FileRecorder that writes to the given file.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	now := time.Now()
	recorder := &FileRecorder{
		f: file,
		run: RunLog{
			RunID:       uuid.NewString(),
			StartTime:   now,
			LastUpdated: now,
			Decisions:   []DecisionRecord{},
			Requests:    []RequestRecord{},
		},
		requests: make(map[string]int),
	}

	if err := recorder.flushLocked(); err != nil {
		file.Close()
		return nil, err
	}

	return recorder, nil
}

// Close closes the file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}

	err := r.flushLocked()
	closeErr := r.f.Close()
	r.f = nil
	return errors.Join(err, closeErr)
}

// Snapshot returns a copy of the log recorded so far.
func (r *FileRecorder) Snapshot() RunLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.run
	run.Decisions = append([]DecisionRecord(nil), r.run.Decisions...)
	run.Requests = append([]RequestRecord(nil), r.run.Requests...)
	run.Fallbacks = append([]FallbackRecord(nil), r.run.Fallbacks...)
	return run
}

// Write records an event to the underlying run log and flushes it to disk.
func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return fmt.Errorf("recorder closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	switch event.Action {
	case ActionClassification:
		if d, ok := event.Payload.(DecisionRecord); ok {
			if d.Timestamp.IsZero() {
				d.Timestamp = event.Timestamp
			}
			r.run.Decisions = append(r.run.Decisions, d)
		}
	case ActionHTTPRequest:
		if req, ok := event.Payload.(RequestRecord); ok {
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			if req.Timestamp.IsZero() {
				req.Timestamp = event.Timestamp
			}
			req.Status = "requested"
			r.requests[req.ID] = len(r.run.Requests)
			r.run.Requests = append(r.run.Requests, req)
		}
	case ActionHTTPResponse, ActionHTTPError:
		if res, ok := event.Payload.(RequestRecord); ok {
			r.updateRequest(event.Action, res)
		}
	case ActionCacheFallback:
		if fb, ok := event.Payload.(FallbackRecord); ok {
			if fb.Timestamp.IsZero() {
				fb.Timestamp = event.Timestamp
			}
			r.run.Fallbacks = append(r.run.Fallbacks, fb)
		}
	}

	r.run.LastUpdated = event.Timestamp

	return r.flushLocked()
}

func (r *FileRecorder) updateRequest(action string, res RequestRecord) {
	idx, ok := r.requests[res.ID]
	if !ok {
		r.requests[res.ID] = len(r.run.Requests)
		r.run.Requests = append(r.run.Requests, res)
		idx = len(r.run.Requests) - 1
	}

	dst := &r.run.Requests[idx]
	if res.StatusCode != 0 {
		dst.StatusCode = res.StatusCode
	}
	if res.Bytes != 0 {
		dst.Bytes = res.Bytes
	}
	if res.Duration != 0 {
		dst.Duration = res.Duration
	}
	if res.Error != "" {
		dst.Error = res.Error
	}
	if action == ActionHTTPError {
		dst.Status = "error"
	} else {
		dst.Status = "success"
	}
}

func (r *FileRecorder) flushLocked() error {
	if r.f == nil {
		return fmt.Errorf("recorder closed")
	}

	if _, err := r.f.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking recorder: %w", err)
	}

	if err := r.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating recorder: %w", err)
	}

	encoder := json.NewEncoder(r.f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r.run); err != nil {
		return fmt.Errorf("encoding run log: %w", err)
	}

	return r.f.Sync()
}

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
}

const (
	ActionHTTPRequest  = "http.request"
	ActionHTTPResponse = "http.response"
	ActionHTTPError    = "http.error"

	ActionClassification = "classification"
	ActionCacheFallback  = "cache.fallback"
)

// MultiRecorder fans every event out to a set of recorders.
type MultiRecorder struct {
	recorders []Recorder
}

func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

func (m *MultiRecorder) Write(ctx context.Context, event *Event) error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
