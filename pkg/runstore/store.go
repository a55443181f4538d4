package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/relay/pkg/orchestrator"
)

var (
	// ErrNotFound is returned by Get when no run has the requested ID
	ErrNotFound = errors.New("run not found")
	// ErrInvalidID is returned for IDs that are empty or could escape the store
	ErrInvalidID = errors.New("invalid run id")
)

// RunRecord is the persisted trace of one finished run
type RunRecord struct {
	ID        string          `json:"id"`
	Mode      string          `json:"mode"`
	Input     string          `json:"input"`
	Success   bool            `json:"success"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Result    json.RawMessage `json:"result"`
}

// Store persists run records
type Store interface {
	Save(ctx context.Context, record *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	// List returns the most recent runs first; limit <= 0 returns all of them
	List(ctx context.Context, limit int) ([]*RunRecord, error)
	// Delete removes a run; deleting a missing run returns ErrNotFound
	Delete(ctx context.Context, id string) error
	Close() error
}

// Driver names accepted by Open
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open creates the store for driver rooted at path
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverFile, "":
		return NewFileStore(path)
	case DriverSQLite, "sqlite3":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}

// FromHandoff builds a record from a routing session
func FromHandoff(input string, result orchestrator.HandoffResult) (*RunRecord, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal handoff result: %w", err)
	}
	return &RunRecord{
		ID:        result.RunID,
		Mode:      string(orchestrator.ModeHandoff),
		Input:     input,
		Success:   result.Success,
		ErrorKind: string(result.ErrorKind),
		Error:     result.Error,
		StartedAt: result.StartedAt,
		Duration:  result.TotalDuration,
		Result:    data,
	}, nil
}

// FromOrchestration builds a record from a sequential or parallel run
func FromOrchestration(input string, result orchestrator.OrchestratorResult) (*RunRecord, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal orchestrator result: %w", err)
	}
	return &RunRecord{
		ID:        result.RunID,
		Mode:      string(result.Mode),
		Input:     input,
		Success:   result.Success,
		ErrorKind: string(result.ErrorKind),
		Error:     result.Error,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
		Result:    data,
	}, nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
