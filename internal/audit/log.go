// Package audit is an append-only, tamper-evident record of every decision
// the guardrail makes. Entries are JSONL with SHA-256 hash chaining: each
// line's prev_hash is the hash of the previous line, so any edit or
// deletion breaks the chain at a verifiable point.
package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aegischain/aegisd/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Log is the append-only JSONL audit log.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens (or creates) an audit log file for appending.
// If the file already exists, it reads the last line to recover the chain tail.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("audit: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("audit: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
	}, nil
}

// Append writes one entry with hash chaining. It fills in Timestamp and
// EventID when empty, marshals to JSON, writes the line, and syncs.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.PrevHash = l.prevHash

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// Record maps a verdict to an audit entry. Satisfies the engine's Sink
// interface.
func (l *Log) Record(ctx context.Context, c model.Candidate, v model.Verdict) error {
	eventType := EventValidated
	switch v.Decision {
	case model.Blocked:
		eventType = EventBlocked
	case model.Pending:
		eventType = EventPending
	}
	desc := v.BlockReason
	if desc == "" {
		desc = fmt.Sprintf("Transaction approved with risk score %d/100", v.RiskScore)
	}
	return l.Append(Entry{
		EventType:   eventType,
		TxID:        v.TxID,
		Agent:       model.NormalizeAddress(c.AgentAddress),
		Target:      model.NormalizeAddress(c.TargetAddress),
		Value:       c.Value.String(),
		Decision:    string(v.Decision),
		RiskScore:   v.RiskScore,
		Description: desc,
	})
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the log's file path.
func (l *Log) Path() string { return l.path }

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
