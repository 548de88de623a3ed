package main

import (
	"testing"

	"github.com/giannifer7/azadi/model"
)

func cleanTestSetup(t *testing.T, paths ...string) (*VirtualDisk, *GenLog) {
	t.Helper()
	disk := NewVirtualDisk()
	log := openTestGenLog(t)
	for _, path := range paths {
		disk.Create(path, "generated")
		entry := &model.GenEntry{Path: path, ChunkName: "@file " + path}
		if err := log.Record(entry); err != nil {
			t.Fatal(err)
		}
	}
	return disk, log
}

func TestCleanAllRemovesLoggedTargets(t *testing.T) {
	t.Parallel()
	disk, log := cleanTestSetup(t, "gen/a.txt", "gen/b.txt")
	disk.Create("gen/a.txt"+backupSuffix, "old copy")
	disk.Create("unrelated.txt", "keep me")

	cleaner := NewCleaner(disk, log, &Config{Quiet: true})
	if status := cleaner.CleanAll(nil); status != 0 {
		t.Fatalf("CleanAll = %d", status)
	}

	if got := disk.Paths(); len(got) != 1 || got[0] != "unrelated.txt" {
		t.Errorf("leftover paths = %v, want only unrelated.txt", got)
	}
	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d live entries after clean, want 0", len(entries))
	}
}

func TestCleanAllWithExplicitPaths(t *testing.T) {
	t.Parallel()
	disk, log := cleanTestSetup(t, "gen/a.txt", "gen/b.txt")

	cleaner := NewCleaner(disk, log, &Config{Quiet: true})
	if status := cleaner.CleanAll([]string{"gen/a.txt"}); status != 0 {
		t.Fatalf("CleanAll = %d", status)
	}

	if _, err := disk.ReadFile("gen/b.txt"); err != nil {
		t.Error("untargeted file was removed")
	}
	if _, err := disk.ReadFile("gen/a.txt"); err == nil {
		t.Error("targeted file survived")
	}
	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "gen/b.txt" {
		t.Errorf("live entries = %+v, want only gen/b.txt", entries)
	}
}

func TestCleanDryRunTouchesNothing(t *testing.T) {
	t.Parallel()
	disk, log := cleanTestSetup(t, "gen/a.txt")

	cleaner := NewCleaner(disk, log, &Config{Quiet: true, DryRun: true})
	if status := cleaner.CleanAll(nil); status != 0 {
		t.Fatalf("CleanAll = %d", status)
	}

	if _, err := disk.ReadFile("gen/a.txt"); err != nil {
		t.Error("dry run removed a file")
	}
	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dry run changed the log: %d live entries", len(entries))
	}
}

func TestCleanMissingFileStillClearsLog(t *testing.T) {
	t.Parallel()
	_, log := cleanTestSetup(t)
	entry := &model.GenEntry{Path: "gone.txt", ChunkName: "@file gone.txt"}
	if err := log.Record(entry); err != nil {
		t.Fatal(err)
	}

	cleaner := NewCleaner(NewVirtualDisk(), log, &Config{Quiet: true})
	if status := cleaner.CleanAll(nil); status != 0 {
		t.Fatalf("CleanAll = %d", status)
	}
	entries, err := log.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entry for vanished file not marked deleted")
	}
}
