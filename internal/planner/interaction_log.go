// internal/planner/interaction_log.go
package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// InteractionRecord is one logged oracle exchange.
type InteractionRecord struct {
	Timestamp       time.Time         `json:"timestamp"`
	SessionID       string            `json:"session_id"`
	InteractionType string            `json:"interaction_type"` // "plan_next" or "plan_recovery"
	Messages        []schemas.Message `json:"messages"`
	Response        string            `json:"response"`
	ParsedResult    *schemas.Action   `json:"parsed_result"`
	DecodeError     string            `json:"decode_error,omitempty"`
}

// InteractionLog is the append-only JSON log of every oracle exchange. The
// backing file holds a single JSON array and is reset when a new planner
// instance starts; record order reflects call order for the process
// lifetime.
//
// Multiple sessions may share one log file, so every append runs the whole
// read-modify-write under the mutex to keep records from interleaving.
type InteractionLog struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewInteractionLog truncates (or creates) the log file at path.
func NewInteractionLog(path string, logger *zap.Logger) (*InteractionLog, error) {
	if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to reset interaction log %q: %w", path, err)
	}
	return &InteractionLog{
		path:   path,
		logger: logger.Named("interaction_log"),
	}, nil
}

// Append adds a record to the log file. Logging is best-effort: failures are
// reported but never interrupt planning.
func (l *InteractionLog) Append(record InteractionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readLocked()
	if err != nil {
		l.logger.Warn("Failed to read interaction log, starting a fresh one.", zap.Error(err))
		records = nil
	}
	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		l.logger.Error("Failed to marshal interaction log records.", zap.Error(err))
		return
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		l.logger.Error("Failed to write interaction log.", zap.String("path", l.path), zap.Error(err))
	}
}

// Records returns the logged exchanges in call order.
func (l *InteractionLog) Records() ([]InteractionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

func (l *InteractionLog) readLocked() ([]InteractionRecord, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []InteractionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("interaction log is not a valid JSON array: %w", err)
	}
	return records, nil
}
