package main

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveLiteralConcatenation(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("X", []Fragment{lit("one"), lit("two")}, nil)
	store.Append("X", []Fragment{lit("three")}, nil)

	text, err := NewResolver(store).Resolve("X", nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "one\ntwo\nthree\n" {
		t.Errorf("text = %q, want exact append-order concatenation", text)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("inner", []Fragment{lit("payload")}, nil)
	store.Append("outer", []Fragment{lit("before"), ref("inner"), lit("after")}, nil)

	r := NewResolver(store)
	first, err := r.Resolve("outer", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve("outer", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("re-resolution differs:\n%q\n%q", first, second)
	}
	if first != "before\npayload\nafter\n" {
		t.Errorf("text = %q", first)
	}
}

func TestResolveSplicesNestedReferences(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("c", []Fragment{lit("bottom")}, nil)
	store.Append("b", []Fragment{ref("c")}, nil)
	store.Append("a", []Fragment{ref("b")}, nil)

	text, err := NewResolver(store).Resolve("a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "bottom\n" {
		t.Errorf("text = %q, want bottom", text)
	}
}

func TestResolveIndentInheritance(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("body", []Fragment{lit("x = 1"), lit("    y = 2")}, nil)
	store.Append("fn", []Fragment{
		lit("def f():"),
		{Ref: true, Text: "body", Indent: "    "},
	}, nil)
	store.Append("cls", []Fragment{
		lit("class C:"),
		{Ref: true, Text: "fn", Indent: "    "},
	}, nil)

	text, err := NewResolver(store).Resolve("cls", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"class C:",
		"    def f():",
		"        x = 1",
		"            y = 2",
		"",
	}, "\n")
	if text != want {
		t.Errorf("text =\n%q\nwant\n%q", text, want)
	}
}

func TestResolveBlankLinesStayBlank(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("body", []Fragment{lit("a"), lit(""), lit("b")}, nil)
	store.Append("out", []Fragment{{Ref: true, Text: "body", Indent: "  "}}, nil)

	text, err := NewResolver(store).Resolve("out", nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "  a\n\n  b\n" {
		t.Errorf("text = %q, want blank line without trailing indent", text)
	}
}

func TestResolveCycle(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("A", []Fragment{ref("B")}, nil)
	store.Append("B", []Fragment{ref("A")}, nil)

	_, err := NewResolver(store).Resolve("A", nil)
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *CycleError", err, err)
	}
	if got := strings.Join(cerr.Path, " -> "); got != "A -> B -> A" {
		t.Errorf("cycle path = %q, want A -> B -> A", got)
	}
}

func TestResolveSelfReference(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("A", []Fragment{lit("line"), ref("A")}, nil)

	_, err := NewResolver(store).Resolve("A", nil)
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *CycleError", err, err)
	}
}

func TestResolveUndefinedReference(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("A", []Fragment{ref("ghost")}, nil)

	_, err := NewResolver(store).Resolve("A", nil)
	var cerr *UndefinedChunkError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *UndefinedChunkError", err, err)
	}
	if cerr.Name != "ghost" {
		t.Errorf("error names %q, want ghost", cerr.Name)
	}
}

func TestResolveUndefinedRoot(t *testing.T) {
	t.Parallel()
	_, err := NewResolver(NewChunkStore()).Resolve("nothing", nil)
	var cerr *UndefinedChunkError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *UndefinedChunkError", err, err)
	}
}

// A diamond (two references to the same chunk) is not a cycle: the
// visiting set tracks the active chain, not everything ever resolved.
func TestResolveDiamond(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("shared", []Fragment{lit("s")}, nil)
	store.Append("left", []Fragment{ref("shared")}, nil)
	store.Append("right", []Fragment{ref("shared")}, nil)
	store.Append("top", []Fragment{ref("left"), ref("right")}, nil)

	text, err := NewResolver(store).Resolve("top", nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "s\ns\n" {
		t.Errorf("text = %q, want s twice", text)
	}
}

func TestResolveObservesReferenceEdges(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("inner", []Fragment{lit("x")}, nil)
	store.Append("outer", []Fragment{ref("inner")}, nil)

	r := NewResolver(store)
	var got []string
	r.onRef = func(parent, child string) { got = append(got, parent+"->"+child) }
	if _, err := r.Resolve("outer", nil); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "outer->inner" {
		t.Errorf("edges = %v, want [outer->inner]", got)
	}
}
