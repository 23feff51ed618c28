// Package audit is the JSONL audit sink wired into runtime.Interceptor as
// a runtime.AuditSink. It is deliberately separate from internal/telemetry:
// this is JadeGate's durable, append-only domain record of verdicts, not
// diagnostic logging (spec.md §4.6 step 9, §2).
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jadegate/jadegate/internal/redact"
	"github.com/jadegate/jadegate/internal/runtime"
)

// maxLogBytes is the file size at which the log is rotated.
const maxLogBytes = 10 * 1024 * 1024

// Event is one line of the JSONL audit trail. Success/Error are filled in
// later by Update once the call completes.
type Event struct {
	CallID    string              `json:"call_id"`
	ToolName  string              `json:"tool_name"`
	ParamKeys []string            `json:"param_keys,omitempty"`
	Verdict   runtime.Verdict     `json:"verdict"`
	Reasons   []string            `json:"reasons,omitempty"`
	Timestamp string              `json:"timestamp"`
	Success   *bool               `json:"success,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Sink is a file-backed, rotating JSONL writer. It implements
// runtime.AuditSink so the interceptor never imports this package directly.
type Sink struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	pending map[string]*Event
}

// Open creates or appends to the JSONL file at path.
func Open(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Sink{path: path, file: f, pending: make(map[string]*Event)}, nil
}

// Append writes an audit entry for a just-evaluated call and keeps it
// addressable so Update can patch in the outcome once AfterCall fires.
func (s *Sink) Append(e runtime.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := &Event{
		CallID:    e.CallID,
		ToolName:  e.ToolName,
		ParamKeys: e.ParamKeys,
		Verdict:   e.Verdict,
		Reasons:   redact.Strings(e.Reasons),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
	s.pending[e.CallID] = ev
	s.writeLocked(ev)
}

// Update patches the outcome of a previously-appended call and writes a
// second JSONL line reflecting the final state — the log is append-only,
// so completion is recorded rather than rewritten in place.
func (s *Sink) Update(callID string, success bool, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.pending[callID]
	if !ok {
		ev = &Event{CallID: callID, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	}
	delete(s.pending, callID)

	done := *ev
	done.Success = &success
	done.Error = redact.Redact(errMsg)
	s.writeLocked(&done)
}

func (s *Sink) writeLocked(ev *Event) {
	if err := s.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "jadegate: audit log rotation failed: %v\n", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = s.file.Write(data)
}

// rotateIfNeeded renames the current log to <path>.1 and opens a fresh
// file once the current one reaches maxLogBytes. Must be called with s.mu
// held.
func (s *Sink) rotateIfNeeded() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}
	if info.Size() < maxLogBytes {
		return nil
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close audit log before rotation: %w", err)
	}
	rotated := s.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(s.path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open fresh audit log: %w", err)
	}
	s.file = f
	return nil
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
