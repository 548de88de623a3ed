package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// testStatus records status events so tests can assert on warnings and
// per-target progress without a terminal.
type testStatus struct {
	infos    []string
	warnings []string
	errors   []string
	finished []string
}

func (s *testStatus) RunStarted(totalTargets int) {}

func (s *testStatus) DocumentParsed(path string, defs, blocks int) {}

func (s *testStatus) RunFinished() {}

func (s *testStatus) TargetFinished(path string, outcome WriteOutcome) {
	s.finished = append(s.finished, path)
}

func (s *testStatus) Info(msg string, args ...any) {
	s.infos = append(s.infos, fmt.Sprintf(msg, args...))
}

func (s *testStatus) Warning(msg string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(msg, args...))
}

func (s *testStatus) Error(msg string, args ...any) {
	s.errors = append(s.errors, fmt.Sprintf(msg, args...))
}

func newTestEmitter(t *testing.T, text string, disk *VirtualDisk) (*Emitter, *testStatus) {
	t.Helper()
	store := mustExpand(t, text)
	status := &testStatus{}
	writer := NewSafeWriter(disk, nil, false, false)
	emitter := NewEmitter(store, writer, status)
	emitter.SetOutDir("gen")
	return emitter, status
}

// The demonstration document: a composite macro that creates a package
// initializer and a module assembled from doc, import, and body chunks.
const pythonProjectDoc = `
%def(pypackage, package, %{
<[@file %(package)/__init__.py]>=
$$
%})

%def(pymodule_doc, package, module, %{
<[%(package)/%(module).py doc]>=
"""%(module) module of %(package)."""
$$
%})

%def(pymodule_imports, package, module, %{
<[%(package)/%(module).py imports]>=
import os
$$
%})

%def(pymodule_body, package, module, %{
<[%(package)/%(module).py body]>=
DEBUG = False
$$
%})

%def(pymodule, package, module, %{
%%pypackage(%(package))
%%pymodule_doc(%(package), %(module))
%%pymodule_imports(%(package), %(module))
%%pymodule_body(%(package), %(module))
<[@file %(package)/%(module).py]>=
<[%(package)/%(module).py doc]>

<[%(package)/%(module).py imports]>

<[%(package)/%(module).py body]>
$$
%})

%%pymodule(app, settings)
`

func TestEmitEndToEnd(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, _ := newTestEmitter(t, pythonProjectDoc, disk)

	result, err := emitter.Emit()
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Targets) != 2 || result.Written != 2 {
		t.Fatalf("result = %+v, want 2 new targets", result)
	}

	initPy, err := disk.ReadFile("gen/app/__init__.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(initPy) != 0 {
		t.Errorf("package initializer = %q, want empty", initPy)
	}

	module, err := disk.ReadFile("gen/app/settings.py")
	if err != nil {
		t.Fatal(err)
	}
	want := `"""settings module of app."""

import os

DEBUG = False
`
	if string(module) != want {
		t.Errorf("module content =\n%q\nwant\n%q", module, want)
	}
}

func TestEmitAllOrNothingOnCycle(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, _ := newTestEmitter(t, `
<[@file ok.txt]>=
fine
$$
<[@file bad.txt]>=
<[A]>
$$
<[A]>=
<[B]>
$$
<[B]>=
<[A]>
$$
`, disk)

	_, err := emitter.Emit()
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *CycleError", err, err)
	}
	if paths := disk.Paths(); len(paths) != 0 {
		t.Errorf("cycle still wrote files: %v", paths)
	}
}

func TestEmitAllOrNothingOnUndefinedChunk(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, _ := newTestEmitter(t, `
<[@file ok.txt]>=
fine
$$
<[@file bad.txt]>=
<[never defined]>
$$
`, disk)

	_, err := emitter.Emit()
	var cerr *UndefinedChunkError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *UndefinedChunkError", err, err)
	}
	if paths := disk.Paths(); len(paths) != 0 {
		t.Errorf("failed run still wrote files: %v", paths)
	}
}

func TestEmitPreflightStopsSiblingWrites(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	// b.txt exists with foreign content; without a generation log every
	// differing file counts as hand-edited.
	disk.Create("gen/b.txt", "someone's work")
	emitter, _ := newTestEmitter(t, `
<[@file a.txt]>=
new file
$$
<[@file b.txt]>=
generated
$$
`, disk)

	_, err := emitter.Emit()
	var merr *ModifiedError
	if !errors.As(err, &merr) {
		t.Fatalf("got %T (%v), want *ModifiedError", err, err)
	}
	if _, err := disk.ReadFile("gen/a.txt"); err == nil {
		t.Error("sibling a.txt was written before the preflight failure")
	}
}

func TestEmitDryRunWritesNothing(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, status := newTestEmitter(t, pythonProjectDoc, disk)
	emitter.SetDryRun(true)

	result, err := emitter.Emit()
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Targets) != 2 || result.Written != 2 {
		t.Errorf("dry run result = %+v, want 2 would-be-new targets", result)
	}
	if paths := disk.Paths(); len(paths) != 0 {
		t.Errorf("dry run wrote files: %v", paths)
	}
	if len(status.finished) != 2 {
		t.Errorf("dry run reported %d targets, want 2", len(status.finished))
	}
}

func TestEmitDuplicateTargetPath(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, _ := newTestEmitter(t, `
<[@file a.txt]>=
one
$$
<[@file ./a.txt]>=
two
$$
`, disk)

	_, err := emitter.Emit()
	if err == nil || !strings.Contains(err.Error(), "duplicate file target") {
		t.Fatalf("got %v, want duplicate file target error", err)
	}
}

func TestEmitWarnsAboutUnreferencedChunks(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, status := newTestEmitter(t, `
<[dead]>=
never used
$$
<[@file out.txt]>=
x
$$
`, disk)
	emitter.SetWarnUnreferenced(true)

	if _, err := emitter.Emit(); err != nil {
		t.Fatal(err)
	}
	if len(status.warnings) != 1 || !strings.Contains(status.warnings[0], "dead") {
		t.Errorf("warnings = %v, want one naming 'dead'", status.warnings)
	}
}

func TestEmitReportsWriteFailure(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	disk.WriteErr = map[string]error{
		"gen/a.txt" + stageSuffix: errors.New("disk full"),
	}
	emitter, _ := newTestEmitter(t, `
<[@file a.txt]>=
data
$$
`, disk)

	_, err := emitter.Emit()
	var ioerr *IOError
	if !errors.As(err, &ioerr) {
		t.Fatalf("got %T (%v), want *IOError", err, err)
	}
}

func TestEmitUnchangedOnRerun(t *testing.T) {
	t.Parallel()
	disk := NewVirtualDisk()
	emitter, _ := newTestEmitter(t, pythonProjectDoc, disk)
	if _, err := emitter.Emit(); err != nil {
		t.Fatal(err)
	}

	again, _ := newTestEmitter(t, pythonProjectDoc, disk)
	result, err := again.Emit()
	if err != nil {
		t.Fatal(err)
	}
	if result.Unchanged != 2 || result.Written != 0 {
		t.Errorf("rerun result = %+v, want 2 unchanged", result)
	}
}

// With '-d explain' enabled, the reasons the preflight records must reach
// the status output. Mutates the global collector, so not parallel.
func TestEmitExplainOutcomes(t *testing.T) {
	const doc = "<[@file a.txt]>=\nhello\n$$\n"
	disk := NewVirtualDisk()

	g_explanations = NewExplanations()
	defer func() { g_explanations = nil }()

	emitter, status := newTestEmitter(t, doc, disk)
	if _, err := emitter.Emit(); err != nil {
		t.Fatal(err)
	}
	want := "explain gen/a.txt: target does not exist yet"
	if len(status.infos) != 1 || status.infos[0] != want {
		t.Fatalf("infos = %q, want [%q]", status.infos, want)
	}

	// A rerun over identical content explains the skip.
	g_explanations = NewExplanations()
	emitter, status = newTestEmitter(t, doc, disk)
	if _, err := emitter.Emit(); err != nil {
		t.Fatal(err)
	}
	want = "explain gen/a.txt: content is already up to date"
	if len(status.infos) != 1 || status.infos[0] != want {
		t.Fatalf("rerun infos = %q, want [%q]", status.infos, want)
	}
}
