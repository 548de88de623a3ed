package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/nickwells/location.mod/location"
)

// expandDoc parses text, expands its top-level elements, then runs the
// extra invocations, returning the resulting store.
func expandDoc(t *testing.T, text string, invocations ...string) (*ChunkStore, error) {
	t.Helper()
	doc := parseDoc(t, text)
	table := NewMacroTable()
	for _, def := range doc.Defs {
		if err := table.Define(def); err != nil {
			t.Fatal(err)
		}
	}
	store := NewChunkStore()
	ex := NewExpander(table, store)
	if err := ex.RunDocument(doc); err != nil {
		return store, err
	}
	for _, spec := range invocations {
		name, args, err := parseInvocationSpec(spec)
		if err != nil {
			t.Fatal(err)
		}
		pos := location.New("test")
		pos.Incr()
		if err := ex.Invoke(name, args, pos); err != nil {
			return store, err
		}
	}
	return store, nil
}

func mustExpand(t *testing.T, text string, invocations ...string) *ChunkStore {
	t.Helper()
	store, err := expandDoc(t, text, invocations...)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

const twoParamDoc = `
%def(pair, package, module, %{
<[names]>=
%(package).%(module)
$$
%})
`

func TestExpandSubstitutesEverywhere(t *testing.T) {
	t.Parallel()
	store := mustExpand(t, `
%def(emit, package, module, %{
<[%(package)/%(module) doc]>=
"""%(module) module of %(package)."""
$$
%})
%def(wrap, package, module, %{
%%emit(%(package), %(module))
%})
%%wrap(app, settings)
`)
	c, err := store.Get("app/settings doc", nil)
	if err != nil {
		t.Fatalf("chunk name was not substituted: %v", err)
	}
	want := `"""settings module of app."""`
	if len(c.Fragments) != 1 || c.Fragments[0].Text != want {
		t.Errorf("content = %+v, want one line %q", c.Fragments, want)
	}
}

func TestExpandAppendsInDocumentOrder(t *testing.T) {
	t.Parallel()
	store := mustExpand(t, `
%def(a, %{
<[X]>=
from a
$$
%})
%def(b, %{
<[X]>=
from b
$$
%})
%%a()
%%b()
`)
	c, _ := store.Get("X", nil)
	if len(c.Fragments) != 2 || c.Fragments[0].Text != "from a" || c.Fragments[1].Text != "from b" {
		t.Errorf("fragments = %+v, want from a then from b", c.Fragments)
	}
}

func TestExpandArityMismatch(t *testing.T) {
	t.Parallel()
	_, err := expandDoc(t, twoParamDoc+"%%pair(onlyone)\n")
	var aerr *ArityMismatchError
	if !errors.As(err, &aerr) {
		t.Fatalf("got %T (%v), want *ArityMismatchError", err, err)
	}
	if aerr.Macro != "pair" || aerr.Params != 2 || aerr.Args != 1 {
		t.Errorf("error = %+v, want pair expecting 2 got 1", aerr)
	}
	if aerr.Caller != "top level" {
		t.Errorf("caller = %q, want top level", aerr.Caller)
	}
}

func TestExpandNestedArityMismatchNamesCaller(t *testing.T) {
	t.Parallel()
	_, err := expandDoc(t, twoParamDoc+`
%def(broken, %{
%%pair(justone)
%})
%%broken()
`)
	var aerr *ArityMismatchError
	if !errors.As(err, &aerr) {
		t.Fatalf("got %T (%v), want *ArityMismatchError", err, err)
	}
	if aerr.Caller != "broken" {
		t.Errorf("caller = %q, want broken", aerr.Caller)
	}
}

func TestExpandUndefinedMacro(t *testing.T) {
	t.Parallel()
	_, err := expandDoc(t, "%%nosuch()\n")
	var merr *UndefinedMacroError
	if !errors.As(err, &merr) {
		t.Fatalf("got %T (%v), want *UndefinedMacroError", err, err)
	}
}

func TestExpandSelfInvocationCycle(t *testing.T) {
	t.Parallel()
	_, err := expandDoc(t, `
%def(loop, x, %{
%%loop(%(x))
%})
%%loop(same)
`)
	var cerr *InvocationCycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *InvocationCycleError", err, err)
	}
	if cerr.Overflow {
		t.Error("same-argument self-invocation reported as overflow, want immediate cycle")
	}
	if len(cerr.Stack) < 2 || cerr.Stack[0] != "loop" {
		t.Errorf("cycle stack = %v, want loop appearing twice", cerr.Stack)
	}
}

func TestExpandDepthOverflow(t *testing.T) {
	t.Parallel()
	// Arguments change on every call, so the cycle is only caught by the
	// depth bound.
	_, err := expandDoc(t, `
%def(grow, x, %{
%%grow(%(x)x)
%})
%%grow(seed)
`)
	var cerr *InvocationCycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *InvocationCycleError", err, err)
	}
	if !cerr.Overflow {
		t.Error("depth overflow not flagged")
	}
}

func TestExpandCompositionChain(t *testing.T) {
	t.Parallel()
	// A macro may invoke the same macro several times with different
	// arguments; only re-entry with identical arguments is a cycle.
	store := mustExpand(t, `
%def(step, x, %{
<[trace]>=
step %(x)
$$
%})
%def(run, prefix, %{
%%step(%(prefix)1)
%%step(%(prefix)2)
%%step(%(prefix)3)
%})
%%run(s)
`)
	c, err := store.Get("trace", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Fragments) != 3 {
		t.Fatalf("got %d steps, want 3: %+v", len(c.Fragments), c.Fragments)
	}
	for i, want := range []string{"step s1", "step s2", "step s3"} {
		if c.Fragments[i].Text != want {
			t.Errorf("fragment %d = %q, want %q", i, c.Fragments[i].Text, want)
		}
	}
}

func TestExpandReplaceAnnotation(t *testing.T) {
	t.Parallel()
	store := mustExpand(t, `
<[X]>=
original
$$
<[@replace X]>=
replacement
$$
`)
	c, _ := store.Get("X", nil)
	if len(c.Fragments) != 1 || c.Fragments[0].Text != "replacement" {
		t.Errorf("fragments = %+v, want just the replacement", c.Fragments)
	}
}

func TestExpandRejectsUnsafeTargetPaths(t *testing.T) {
	t.Parallel()
	for _, path := range []string{"/etc/passwd", "../escape.txt", "c:evil.txt"} {
		_, err := expandDoc(t, "<[@file "+path+"]>=\n$$\n")
		var serr *SecurityError
		if !errors.As(err, &serr) {
			t.Errorf("path %q: got %T (%v), want *SecurityError", path, err, err)
		}
	}
}

func TestExpandTopLevelPlaceholderFails(t *testing.T) {
	t.Parallel()
	_, err := expandDoc(t, "<[%(unbound)]>=\nline\n$$\n")
	var perr *UndefinedParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("got %T (%v), want *UndefinedParameterError", err, err)
	}
}

func TestExpandDriverInvocation(t *testing.T) {
	t.Parallel()
	store := mustExpand(t, twoParamDoc, "pair(app, settings)")
	c, err := store.Get("names", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Fragments[0].Text != "app.settings" {
		t.Errorf("content = %q, want app.settings", c.Fragments[0].Text)
	}
}

func TestParseInvocationSpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spec    string
		name    string
		args    []string
		wantErr bool
	}{
		{spec: "m(a, b)", name: "m", args: []string{"a", "b"}},
		{spec: "m()", name: "m"},
		{spec: "bare", name: "bare"},
		{spec: "m(one)", name: "m", args: []string{"one"}},
		{spec: "9bad(x)", wantErr: true},
		{spec: "m(unclosed", wantErr: true},
	}
	for _, tt := range tests {
		name, args, err := parseInvocationSpec(tt.spec)
		if tt.wantErr {
			if err == nil {
				t.Errorf("spec %q: want error", tt.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("spec %q: %v", tt.spec, err)
			continue
		}
		if name != tt.name || strings.Join(args, "|") != strings.Join(tt.args, "|") {
			t.Errorf("spec %q = %q %v, want %q %v", tt.spec, name, args, tt.name, tt.args)
		}
	}
}
