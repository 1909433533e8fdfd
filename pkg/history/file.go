package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for history store operations.
var (
	historyEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "appraiser_history_entries",
		Help: "Number of entries in the history store after the last save",
	})

	historyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appraiser_history_errors_total",
		Help: "Total history store errors by operation",
	}, []string{"operation"})
)

// Store is the persistence contract for batch outcomes. Load returns the
// whole mapping; Save rewrites it wholesale. The orchestrator is the sole
// writer; concurrent batches against the same store are not coordinated
// and race last-write-wins.
type Store interface {
	Load(ctx context.Context) (map[string]Record, error)
	Save(ctx context.Context, records map[string]Record) error
}

// FileStore persists the history mapping as a single JSON file.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the full mapping. A missing file is not an error and yields
// an empty mapping; any other failure is returned for the caller to log
// and degrade from.
func (s *FileStore) Load(ctx context.Context) (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("No history file, starting empty")
			return map[string]Record{}, nil
		}
		historyErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		historyErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("parse history file: %w", err)
	}
	if records == nil {
		records = map[string]Record{}
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("entries", len(records)).
		Msg("History loaded")

	return records, nil
}

// Save serializes the full mapping and replaces the previous contents.
// The write goes through a temp file and rename so a crashed save never
// leaves a truncated store behind.
func (s *FileStore) Save(ctx context.Context, records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("close temp history file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("replace history file: %w", err)
	}

	historyEntries.Set(float64(len(records)))
	s.logger.Debug().
		Str("path", s.path).
		Int("entries", len(records)).
		Msg("History saved")

	return nil
}
