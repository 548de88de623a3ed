package main

import (
	"testing"

	"github.com/giannifer7/azadi/model"
)

func TestGenLogRecordAndLookup(t *testing.T) {
	t.Parallel()
	log := openTestGenLog(t)

	entry := &model.GenEntry{
		Path:        "gen/app/settings.py",
		ChunkName:   "@file app/settings.py",
		ContentHash: "abc123",
		Size:        42,
		RunID:       "run1",
		Sources: []*model.SourceEntry{
			{FilePath: "project.adoc", FileHash: "doc1"},
		},
	}
	if err := log.Record(entry); err != nil {
		t.Fatal(err)
	}

	got, ok, err := log.Lookup("gen/app/settings.py")
	if err != nil || !ok {
		t.Fatalf("Lookup: %v, ok=%v", err, ok)
	}
	if got.ContentHash != "abc123" || got.RunID != "run1" {
		t.Errorf("entry = %+v", got)
	}

	if _, ok, err := log.Lookup("never/written"); err != nil || ok {
		t.Errorf("Lookup(missing) = ok=%v, err=%v; want not found", ok, err)
	}
}

func TestGenLogRecordUpserts(t *testing.T) {
	t.Parallel()
	log := openTestGenLog(t)

	first := &model.GenEntry{
		Path:        "gen/a.txt",
		ContentHash: "v1",
		RunID:       "run1",
		Sources:     []*model.SourceEntry{{FilePath: "one.adoc"}},
	}
	if err := log.Record(first); err != nil {
		t.Fatal(err)
	}
	second := &model.GenEntry{
		Path:        "gen/a.txt",
		ContentHash: "v2",
		RunID:       "run2",
		Sources: []*model.SourceEntry{
			{FilePath: "one.adoc"},
			{FilePath: "two.adoc"},
		},
	}
	if err := log.Record(second); err != nil {
		t.Fatal(err)
	}

	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (upsert, not insert)", len(entries))
	}
	if entries[0].ContentHash != "v2" || len(entries[0].Sources) != 2 {
		t.Errorf("entry = %+v, want v2 with 2 sources", entries[0])
	}
}

func TestGenLogMarkDeletedAndRevive(t *testing.T) {
	t.Parallel()
	log := openTestGenLog(t)

	entry := &model.GenEntry{Path: "gen/a.txt", ContentHash: "v1", RunID: "run1"}
	if err := log.Record(entry); err != nil {
		t.Fatal(err)
	}
	if err := log.MarkDeleted("gen/a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := log.Lookup("gen/a.txt"); err != nil || ok {
		t.Errorf("deleted entry still found: ok=%v, err=%v", ok, err)
	}
	// Deleting an unknown path is not an error.
	if err := log.MarkDeleted("gen/unknown.txt"); err != nil {
		t.Errorf("MarkDeleted(unknown) = %v", err)
	}

	// Re-recording the same path revives the soft-deleted row.
	if err := log.Record(&model.GenEntry{Path: "gen/a.txt", ContentHash: "v2", RunID: "run2"}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := log.Lookup("gen/a.txt")
	if err != nil || !ok {
		t.Fatalf("revived entry not found: %v", err)
	}
	if got.ContentHash != "v2" {
		t.Errorf("hash = %q, want v2", got.ContentHash)
	}

	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after revive, want 1", len(entries))
	}
}

func TestGenLogAllIsPathOrdered(t *testing.T) {
	t.Parallel()
	log := openTestGenLog(t)
	for _, path := range []string{"gen/z.txt", "gen/a.txt", "gen/m.txt"} {
		if err := log.Record(&model.GenEntry{Path: path, RunID: "r"}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, entry := range entries {
		got = append(got, entry.Path)
	}
	want := []string{"gen/a.txt", "gen/m.txt", "gen/z.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
