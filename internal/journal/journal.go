// Package journal keeps an append-only log of rental status transitions,
// one JSON object per line.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

// Entry records one executed transition. ActorID is zero for system
// transitions such as the automatic denial of overlapping requests.
type Entry struct {
	RentalID  uint      `json:"rental_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   uint      `json:"actor_id,omitempty"`
	ActorRole string    `json:"actor_role,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder is what the booking service writes transitions to.
type Recorder interface {
	Append(entries ...Entry) error
	ForRental(rentalID uint) ([]Entry, error)
	Prune(rentalIDs []uint) error
}

// Journal is a file backed Recorder.
type Journal struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

func Open(filePath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Journal{
		filePath: filePath,
		file:     file,
	}, nil
}

// Append writes entries and syncs the file.
func (j *Journal) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	buf := make([]byte, 0, 256*len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	if _, err := j.file.Write(buf); err != nil {
		logger.Log.Error("Journal: failed to write entries",
			zap.Int("count", len(entries)),
			zap.Error(err),
		)
		return err
	}
	if err := j.file.Sync(); err != nil {
		logger.Log.Error("Journal: failed to sync to disk", zap.Error(err))
		return err
	}

	logger.Log.Debug("Journal: entries written",
		zap.Int("count", len(entries)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// ForRental returns the transitions of one rental in the order they were written.
func (j *Journal) ForRental(rentalID uint) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAllUnsafe()
	if err != nil {
		return nil, err
	}

	out := []Entry{}
	for _, e := range all {
		if e.RentalID == rentalID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Prune rewrites the journal without the entries of the given rentals.
func (j *Journal) Prune(rentalIDs []uint) error {
	if len(rentalIDs) == 0 {
		return nil
	}
	start := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAllUnsafe()
	if err != nil {
		return err
	}

	drop := make(map[uint]bool, len(rentalIDs))
	for _, id := range rentalIDs {
		drop[id] = true
	}

	tempFile := j.filePath + ".tmp"
	f, err := os.OpenFile(tempFile, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	kept, err := writeEntries(f, all, drop)
	if err == nil {
		err = os.Rename(tempFile, j.filePath)
	}
	if err != nil {
		f.Close()
		os.Remove(tempFile)
		logger.Log.Error("Journal: prune aborted, keeping current file",
			zap.String("temp_file", tempFile),
			zap.Error(err),
		)
		return err
	}

	// f followed the rename; the old descriptor points at the replaced inode.
	if err := j.file.Close(); err != nil {
		logger.Log.Warn("Journal: failed to close replaced file", zap.Error(err))
	}
	j.file = f

	logger.Log.Info("Journal: pruned",
		zap.Int("before_count", len(all)),
		zap.Int("remaining_count", kept),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// writeEntries writes every entry not in drop to f and syncs it.
func writeEntries(f *os.File, all []Entry, drop map[uint]bool) (int, error) {
	w := bufio.NewWriter(f)
	kept := 0
	for _, e := range all {
		if drop[e.RentalID] {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return 0, err
		}
		w.Write(data)
		w.WriteByte('\n')
		kept++
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return kept, f.Sync()
}

func (j *Journal) readAllUnsafe() ([]Entry, error) {
	file, err := os.Open(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Nop discards everything. Used when no journal path is configured.
type Nop struct{}

func (Nop) Append(...Entry) error           { return nil }
func (Nop) ForRental(uint) ([]Entry, error) { return []Entry{}, nil }
func (Nop) Prune([]uint) error              { return nil }
