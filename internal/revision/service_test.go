package revision

import (
	"testing"

	"agora/core/internal/domain"
)

func TestRecordAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Record("doc_1", Snapshot{Title: "Draft", Version: 1}, "0xabc", "Create document")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if first.Hash == "" || first.Author != "0xabc" {
		t.Fatalf("unexpected commit: %+v", first)
	}

	if _, err := svc.Record("doc_1", Snapshot{Title: "Final", Version: 2}, "0xabc", "Update document"); err != nil {
		t.Fatalf("Record() second error = %v", err)
	}

	history, err := svc.History("doc_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if history[0].Message != "Update document" {
		t.Fatalf("expected newest first, got %q", history[0].Message)
	}
}

func TestHistoryLimitAndUnknownDocument(t *testing.T) {
	svc := New(t.TempDir())

	for i := 0; i < 5; i++ {
		if _, err := svc.Record("doc_1", Snapshot{Title: "T", Version: int64(i + 1)}, "0xabc", "rev"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	history, err := svc.History("doc_1", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected limit of 3 commits, got %d", len(history))
	}

	none, err := svc.History("doc_unknown", 3)
	if err != nil {
		t.Fatalf("History() unknown doc error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty history for unknown document, got %d", len(none))
	}
}

func TestSnapshotAtReadsCommittedContent(t *testing.T) {
	svc := New(t.TempDir())

	commit, err := svc.Record("doc_1", Snapshot{
		Title:    "Validator FAQ",
		Content:  "attestation basics",
		Category: domain.CategoryFAQ,
		Tags:     []string{"validator"},
		Version:  1,
	}, "0xabc", "Create document")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	snap, err := svc.SnapshotAt("doc_1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	if snap.Title != "Validator FAQ" || snap.Category != domain.CategoryFAQ || snap.Version != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
