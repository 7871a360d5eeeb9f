// Package audit records security-relevant actions: sign-ins, sign-outs,
// admin provisioning, guard denials. Entries are kept in a bounded in-memory
// ring for the admin API and optionally appended to a JSONL file.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Entry is one audited action.
type Entry struct {
	Time       time.Time `json:"time"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorEmail string    `json:"actor_email,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Tenant     string    `json:"tenant,omitempty"`
	Path       string    `json:"path,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Action names recorded by the gateway.
const (
	ActionSignIn        = "auth.sign_in"
	ActionSignOut       = "auth.sign_out"
	ActionTokenRefresh  = "auth.token_refresh"
	ActionGuardDenied   = "guard.denied"
	ActionUserProvision = "admin.user_provision"
	ActionOrphanSweep   = "admin.orphan_sweep"
	ActionToolsUpdate   = "org.tools_update"
)

// Sink receives every entry as it is recorded.
type Sink interface {
	Write(entry Entry) error
}

// Log is a bounded ring of recent entries with an optional persistent sink.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	sink    Sink
}

func NewLog(max int, sink Sink) *Log {
	if max <= 0 {
		max = 500
	}
	return &Log{max: max, sink: sink}
}

// Record appends an entry, stamping the time when unset.
func (l *Log) Record(entry Entry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; ignore errors to avoid impacting request flow.
		_ = l.sink.Write(entry)
	}
}

// Recent returns the most recent entries, newest last.
func (l *Log) Recent(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > l.max {
		limit = l.max
	}
	n := len(l.entries)
	if n > limit {
		n = limit
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// FileSink appends entries as JSONL.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens path for append. An empty path yields a nil sink, which
// Log treats as no-op persistence.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(entry Entry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
