package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// stageSuffix names the temporary file a write is staged to before it is
// renamed over the target.
const stageSuffix = ".azadi.tmp"

// backupSuffix names the copy kept when a force overwrite destroys manual
// edits.
const backupSuffix = ".bak"

type WriteOutcome int8

const (
	WroteNew       WriteOutcome = 0
	WroteUpdated   WriteOutcome = 1
	WroteUnchanged WriteOutcome = 2
)

func (o WriteOutcome) String() string {
	switch o {
	case WroteNew:
		return "new"
	case WroteUpdated:
		return "updated"
	case WroteUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// SafeWriter writes generated files without destroying anyone's work: a
// target whose on-disk content no longer matches the hash recorded at the
// previous run was edited by hand and is refused unless force is set.
// Unchanged targets are left untouched so file times stay stable.
type SafeWriter struct {
	disk   DiskInterface
	log    *GenLog
	force  bool
	backup bool
}

func NewSafeWriter(disk DiskInterface, log *GenLog, force, backup bool) *SafeWriter {
	return &SafeWriter{disk: disk, log: log, force: force, backup: backup}
}

type writePlan struct {
	outcome    WriteOutcome
	newHash    string
	old        []byte
	needBackup bool
}

// plan decides what writing data at path would do, without touching disk.
func (w *SafeWriter) plan(path string, data []byte) (*writePlan, error) {
	p := &writePlan{outcome: WroteNew, newHash: hashBytes(data)}

	old, err := w.disk.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		Explain(path, "target does not exist yet")
		return p, nil
	}
	if err != nil {
		return nil, ioErrorf("read", path, err)
	}
	p.old = old
	if bytes.Equal(old, data) {
		Explain(path, "content is already up to date")
		p.outcome = WroteUnchanged
		return p, nil
	}
	p.outcome = WroteUpdated
	if w.isModified(path, old) {
		if !w.force {
			Explain(path, "modified since the last run and -f not given")
			return nil, &ModifiedError{Path: path}
		}
		Explain(path, "modified since the last run, overwriting because of -f")
		p.needBackup = w.backup
	} else {
		Explain(path, "content changed since the last run")
	}
	return p, nil
}

// Check performs every validation Write would perform and reports the
// outcome Write would produce, leaving disk untouched.
func (w *SafeWriter) Check(path string, data []byte) (WriteOutcome, string, error) {
	p, err := w.plan(path, data)
	if err != nil {
		return WroteUnchanged, "", err
	}
	return p.outcome, p.newHash, nil
}

// Write lands data at path, staging to a temporary file and renaming so a
// crash never leaves a half-written target. It returns the outcome and
// the content hash of data.
func (w *SafeWriter) Write(path string, data []byte) (WriteOutcome, string, error) {
	p, err := w.plan(path, data)
	if err != nil {
		return WroteUnchanged, "", err
	}
	if p.outcome == WroteUnchanged {
		return p.outcome, p.newHash, nil
	}
	if p.needBackup {
		if err := w.disk.WriteFile(path+backupSuffix, p.old); err != nil {
			return p.outcome, p.newHash, ioErrorf("backup", path+backupSuffix, err)
		}
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := w.disk.MakeDirs(dir); err != nil {
			return p.outcome, p.newHash, ioErrorf("mkdir", dir, err)
		}
	}
	staged := path + stageSuffix
	if err := w.disk.WriteFile(staged, data); err != nil {
		return p.outcome, p.newHash, ioErrorf("write", staged, err)
	}
	if err := w.disk.Rename(staged, path); err != nil {
		return p.outcome, p.newHash, ioErrorf("rename", path, err)
	}
	return p.outcome, p.newHash, nil
}

// isModified reports whether the existing content at path differs from
// what the generation log says this tool last wrote there. A file the log
// has never seen counts as modified: it is someone else's work.
func (w *SafeWriter) isModified(path string, old []byte) bool {
	if w.log == nil {
		return true
	}
	entry, ok, err := w.log.Lookup(path)
	if err != nil || !ok {
		return true
	}
	return entry.ContentHash != hashBytes(old)
}

func hashBytes(data []byte) string {
	h := blake3.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// hashFile hashes a file's current content through the disk interface.
func hashFile(disk DiskInterface, path string) (string, error) {
	data, err := disk.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}
