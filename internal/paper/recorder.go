// Package paper records the engine's decisions for offline analysis without
// touching a venue.
package paper

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// Record is one JSONL line: an entry or exit decision with the values that
// drove it. Optional fields mirror the snapshot's undefined-ness.
type Record struct {
	Kind      string   `json:"kind"` // "entry" or "exit"
	Mint      string   `json:"mint"`
	Ts        int64    `json:"ts"`
	Price     float64  `json:"price"`
	PoolSol   float64  `json:"pool_sol"`
	Simulated bool     `json:"simulated"`
	Stake     float64  `json:"stake,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	RatePct   float64  `json:"rate_pct,omitempty"`
	Group     *int     `json:"group,omitempty"`
	Payout    *float64 `json:"payout,omitempty"`
}

// JSONLRecorder appends records as JSON lines.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single record to the underlying JSONL file.
func (r *JSONLRecorder) Record(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	_ = r.enc.Encode(rec)
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NopRecorder drops every record. Used when no snapshot path is configured.
type NopRecorder struct{}

func (NopRecorder) Record(Record) {}

// Sink is what the engine writes decisions to.
type Sink interface {
	Record(Record)
}
