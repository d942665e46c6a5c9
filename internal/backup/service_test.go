package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleTree() []SnapshotChapter {
	return []SnapshotChapter{
		{
			ID:      "ch_1",
			Title:   "Beginnings",
			Summary: "Where it starts",
			Pages: []SnapshotPage{
				{
					ID:    "pg_1",
					Title: "First Page",
					Body:  "Once upon a time.",
					Paragraphs: []SnapshotParagraph{
						{Type: "text", Content: "More prose."},
						{Type: "quote", Content: "Quoted line."},
						{Type: "image", Caption: "A map", MediaURL: "2026/01/img_x.png"},
					},
				},
			},
		},
	}
}

func TestSnapshotCreatesRepoAndCommit(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	info, err := svc.Snapshot(sampleTree(), "Ad Min", "first snapshot")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if info.Hash == "" {
		t.Error("expected commit hash")
	}
	if info.Author != "Ad Min" {
		t.Errorf("expected author Ad Min, got %s", info.Author)
	}

	pagePath := filepath.Join(dir, "chapters", "01-ch_1", "01-pg_1.md")
	data, err := os.ReadFile(pagePath)
	if err != nil {
		t.Fatalf("expected page file: %v", err)
	}
	content := string(data)
	for _, want := range []string{"# First Page", "Once upon a time.", "> Quoted line.", "![A map](2026/01/img_x.png)"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in page markdown", want)
		}
	}
}

func TestSnapshotRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	if _, err := svc.Snapshot(sampleTree(), "Ad Min", "first"); err != nil {
		t.Fatalf("first snapshot failed: %v", err)
	}

	// Second snapshot with the chapter gone
	if _, err := svc.Snapshot([]SnapshotChapter{}, "Ad Min", "emptied"); err != nil {
		t.Fatalf("second snapshot failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "chapters", "01-ch_1")); !os.IsNotExist(err) {
		t.Error("expected stale chapter dir to be removed")
	}
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	if _, err := svc.Snapshot(sampleTree(), "Ad Min", "first"); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := svc.Snapshot(sampleTree(), "Ad Min", "second"); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	// init commit + two snapshots
	if len(history) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(history))
	}
	if history[0].Message != "second" {
		t.Errorf("expected newest first, got %q", history[0].Message)
	}

	limited, err := svc.History(1)
	if err != nil {
		t.Fatalf("History with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 commit with limit, got %d", len(limited))
	}
}

func TestHistoryWithoutRepo(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "missing"))

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d", len(history))
	}
}
