package ledger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"storebot-tg-app/internal/models"
)

// Ledger is the only durable state in the system: per-buyer counters
// of completed deals and total spent, kept in one JSON file keyed by
// buyer ID. The whole table is rewritten on every update.
type Ledger struct {
	mu     sync.Mutex
	path   string
	data   map[string]models.ReviewStats
	logger *log.Logger
}

func New(logger *log.Logger, path string) *Ledger {
	return &Ledger{
		path:   path,
		data:   make(map[string]models.ReviewStats),
		logger: logger,
	}
}

// Load reads the persisted counters. A missing file or unparsable
// content yields an empty ledger, never an error that would abort
// startup. Values stored in the legacy bare-integer shape are migrated
// to the structured form with total_spent 0.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Printf("ledger %s unreadable, starting empty: %v", l.path, err)
		}
		l.data = make(map[string]models.ReviewStats)
		return nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.logger.Printf("ledger %s corrupt, starting empty: %v", l.path, err)
		l.data = make(map[string]models.ReviewStats)
		return nil
	}

	data := make(map[string]models.ReviewStats, len(entries))
	for id, entry := range entries {
		var stats models.ReviewStats
		if err := json.Unmarshal(entry, &stats); err == nil {
			data[id] = stats
			continue
		}
		// Legacy shape: a bare deal count.
		var count int
		if err := json.Unmarshal(entry, &count); err == nil {
			data[id] = models.ReviewStats{DealsCompleted: count, TotalSpent: 0.0}
			continue
		}
		l.logger.Printf("ledger entry %s has unknown shape, skipping", id)
	}
	l.data = data
	return nil
}

// Save writes the whole table. Temp file plus rename so a crash mid
// write leaves the previous file intact.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

func (l *Ledger) save() error {
	raw, err := json.MarshalIndent(l.data, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Record adds one completed deal and the amount spent for the buyer,
// creating the entry on first write, and persists synchronously.
func (l *Ledger) Record(buyerID int64, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := strconv.FormatInt(buyerID, 10)
	stats := l.data[key]
	stats.DealsCompleted++
	stats.TotalSpent += amount
	l.data[key] = stats
	return l.save()
}

// Stats returns the counters for one buyer; zero values if absent.
func (l *Ledger) Stats(buyerID int64) models.ReviewStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.data[strconv.FormatInt(buyerID, 10)]
}

// All returns a copy of the full table for the status surface.
func (l *Ledger) All() map[string]models.ReviewStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]models.ReviewStats, len(l.data))
	for k, v := range l.data {
		out[k] = v
	}
	return out
}

// Path returns the backing file location, mostly for logs.
func (l *Ledger) Path() string {
	return filepath.Clean(l.path)
}
