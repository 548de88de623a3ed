package main

import (
	"errors"
	"strings"
	"testing"
)

func lit(text string) Fragment { return Fragment{Text: text} }
func ref(name string) Fragment { return Fragment{Ref: true, Text: name} }

func TestChunkStoreAppendOrder(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("X", []Fragment{lit("first")}, nil)
	store.Append("Y", []Fragment{lit("other")}, nil)
	store.Append("X", []Fragment{lit("second")}, nil)

	c, err := store.Get("X", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Fragments) != 2 || c.Fragments[0].Text != "first" || c.Fragments[1].Text != "second" {
		t.Errorf("fragments = %+v, want first then second", c.Fragments)
	}
	if got := strings.Join(store.Names(), ","); got != "X,Y" {
		t.Errorf("names = %q, want X,Y", got)
	}
}

func TestChunkStoreReplace(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("X", []Fragment{lit("old")}, nil)
	store.Replace("X", []Fragment{lit("new")}, nil)
	store.Append("X", []Fragment{lit("more")}, nil)

	c, _ := store.Get("X", nil)
	if len(c.Fragments) != 2 || c.Fragments[0].Text != "new" {
		t.Errorf("fragments = %+v, want new then more", c.Fragments)
	}
}

func TestChunkStoreGetUndefined(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("header", []Fragment{lit("x")}, nil)
	_, err := store.Get("haeder", nil)
	var cerr *UndefinedChunkError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *UndefinedChunkError", err, err)
	}
	if cerr.Name != "haeder" {
		t.Errorf("error names %q, want haeder", cerr.Name)
	}
	if cerr.Suggestion != "header" {
		t.Errorf("suggestion = %q, want header", cerr.Suggestion)
	}
}

func TestChunkStoreFileTargets(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("plain", []Fragment{lit("x")}, nil)
	store.Append("@file b.txt", nil, nil)
	store.Append("@file a.txt", nil, nil)

	targets := store.FileTargets()
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}
	// First-contribution order, never sorted.
	if targets[0].FilePath != "b.txt" || targets[1].FilePath != "a.txt" {
		t.Errorf("targets = %s, %s; want b.txt, a.txt", targets[0].FilePath, targets[1].FilePath)
	}
	if !targets[0].IsFileTarget {
		t.Error("file-target flag not set")
	}
}

func TestChunkStoreMergeReplaysReplace(t *testing.T) {
	t.Parallel()
	global := NewChunkStore()
	global.Append("X", []Fragment{lit("from doc one")}, nil)

	perDoc := NewChunkStore()
	perDoc.Replace("X", []Fragment{lit("replacement")}, nil)
	perDoc.Append("Y", []Fragment{lit("y")}, nil)

	global.Merge(perDoc)
	x, _ := global.Get("X", nil)
	if len(x.Fragments) != 1 || x.Fragments[0].Text != "replacement" {
		t.Errorf("merge did not replay the replace: %+v", x.Fragments)
	}
	if !global.Has("Y") {
		t.Error("merge dropped chunk Y")
	}
}

func TestChunkStoreUnreferenced(t *testing.T) {
	t.Parallel()
	store := NewChunkStore()
	store.Append("used", []Fragment{lit("x")}, nil)
	store.Append("dead", []Fragment{lit("y")}, nil)
	store.Append("@file out.txt", []Fragment{ref("used")}, nil)

	got := store.Unreferenced()
	if len(got) != 1 || got[0] != "dead" {
		t.Errorf("Unreferenced = %v, want [dead]", got)
	}
}

func TestChunkNameMarkers(t *testing.T) {
	t.Parallel()
	if name, replace := splitReplaceMarker("@replace @file a/b.py"); !replace || name != "@file a/b.py" {
		t.Errorf("splitReplaceMarker = %q, %v", name, replace)
	}
	if name, replace := splitReplaceMarker("plain"); replace || name != "plain" {
		t.Errorf("splitReplaceMarker(plain) = %q, %v", name, replace)
	}
	if path, ok := fileTargetPath("@file  gen/x.py "); !ok || path != "gen/x.py" {
		t.Errorf("fileTargetPath = %q, %v", path, ok)
	}
	if _, ok := fileTargetPath("not a target"); ok {
		t.Error("plain name reported as file target")
	}
}
