package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baaaki/car-rental/pkg/logger"
)

func TestJournal_AppendAfterPrune(t *testing.T) {
	logger.Init(false)

	path := filepath.Join(t.TempDir(), "journal", "transitions.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	now := time.Now().UTC()
	err = j.Append(
		Entry{RentalID: 1, From: "pending", To: "approved", ActorID: 2, ActorRole: "staff", Timestamp: now},
		Entry{RentalID: 2, From: "pending", To: "denied", Reason: "overlaps approved rental 1", Timestamp: now},
		Entry{RentalID: 1, From: "approved", To: "rented", ActorID: 5, ActorRole: "customer", Timestamp: now},
	)
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	history, err := j.ForRental(1)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries for rental 1, got %d", len(history))
	}
	if history[0].To != "approved" || history[1].To != "rented" {
		t.Fatalf("Entries out of order: %+v", history)
	}

	if err := j.Prune([]uint{1}); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	history, err = j.ForRental(1)
	if err != nil {
		t.Fatalf("Failed to read history after prune: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("Expected rental 1 to be pruned, got %d entries", len(history))
	}

	// Writes after a prune must land in the replaced file.
	if err := j.Append(Entry{RentalID: 2, From: "denied", To: "denied", Timestamp: now}); err != nil {
		t.Fatalf("Failed to append after prune: %v", err)
	}

	history, err = j.ForRental(2)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries for rental 2, got %d", len(history))
	}
}

func TestJournal_ReopenKeepsEntries(t *testing.T) {
	logger.Init(false)

	path := filepath.Join(t.TempDir(), "transitions.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	if err := j.Append(Entry{RentalID: 7, From: "returned", To: "completed", Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen journal: %v", err)
	}
	defer j.Close()

	history, err := j.ForRental(7)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 1 || history[0].To != "completed" {
		t.Fatalf("Unexpected history after reopen: %+v", history)
	}
}

func TestJournal_EmptyHistoryIsNotNil(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "transitions.log"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	history, err := j.ForRental(99)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if history == nil {
		t.Fatal("Expected empty slice, got nil")
	}
}

func TestJournal_FailedPruneKeepsJournalUsable(t *testing.T) {
	logger.Init(false)

	path := filepath.Join(t.TempDir(), "transitions.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	now := time.Now().UTC()
	if err := j.Append(Entry{RentalID: 1, From: "pending", To: "approved", Timestamp: now}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	// A directory squatting on the temp path makes the rewrite fail
	if err := os.Mkdir(path+".tmp", 0755); err != nil {
		t.Fatalf("Failed to create blocker: %v", err)
	}
	if err := j.Prune([]uint{1}); err == nil {
		t.Fatal("Expected prune to fail")
	}

	if err := j.Append(Entry{RentalID: 1, From: "approved", To: "rented", Timestamp: now}); err != nil {
		t.Fatalf("Append after failed prune: %v", err)
	}
	history, err := j.ForRental(1)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries after failed prune, got %d", len(history))
	}

	if err := os.Remove(path + ".tmp"); err != nil {
		t.Fatalf("Failed to remove blocker: %v", err)
	}
	if err := j.Prune([]uint{1}); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("Temp file left behind: %v", err)
	}
	if err := j.Append(Entry{RentalID: 3, From: "pending", To: "denied", Timestamp: now}); err != nil {
		t.Fatalf("Append after prune: %v", err)
	}
	history, err = j.ForRental(3)
	if err != nil || len(history) != 1 {
		t.Fatalf("Expected 1 entry for rental 3, got %d (%v)", len(history), err)
	}
}
