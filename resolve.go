package main

import (
	"strings"

	"github.com/nickwells/location.mod/location"
)

// maxResolveDepth bounds reference nesting so degenerate chunk graphs are
// reported as cycles instead of exhausting memory.
const maxResolveDepth = 100

// resolveItem is one open chunk on the resolution stack: a cursor into
// its fragments plus the indentation accumulated along the reference
// chain that reached it.
type resolveItem struct {
	chunk  *Chunk
	next   int
	indent string
}

// Resolver turns a chunk name into final text by splicing referenced
// chunks in place, line by line. It never mutates the store; resolving
// the same name twice yields the same text.
type Resolver struct {
	store    *ChunkStore
	maxDepth int

	// onRef, when set, observes every parent-to-child reference edge in
	// the order it is spliced.
	onRef func(parent, child string)
}

func NewResolver(store *ChunkStore) *Resolver {
	return &Resolver{store: store, maxDepth: maxResolveDepth}
}

// Resolve produces the fully spliced text of the named chunk. Every line
// of a referenced chunk inherits the indentation of the reference that
// pulled it in; blank lines stay blank.
func (r *Resolver) Resolve(name string, pos *location.L) (string, error) {
	root, err := r.store.Get(name, pos)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	stack := []resolveItem{{chunk: root}}
	visiting := map[string]bool{name: true}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.chunk.Fragments) {
			delete(visiting, top.chunk.Name)
			stack = stack[:len(stack)-1]
			continue
		}
		frag := &top.chunk.Fragments[top.next]
		top.next++

		if !frag.Ref {
			if strings.TrimSpace(frag.Text) == "" {
				out.WriteByte('\n')
			} else {
				out.WriteString(top.indent)
				out.WriteString(frag.Text)
				out.WriteByte('\n')
			}
			continue
		}

		child := frag.Text
		if visiting[child] {
			return "", &CycleError{Path: r.cyclePath(stack, child), Pos: frag.Pos}
		}
		if len(stack) >= r.maxDepth {
			return "", &CycleError{Path: r.cyclePath(stack, child), Pos: frag.Pos, Overflow: true}
		}
		cc, err := r.store.Get(child, frag.Pos)
		if err != nil {
			return "", err
		}
		if r.onRef != nil {
			r.onRef(top.chunk.Name, child)
		}
		visiting[child] = true
		stack = append(stack, resolveItem{chunk: cc, indent: top.indent + frag.Indent})
	}
	return out.String(), nil
}

// cyclePath reports the chain of chunk names from the first occurrence of
// next down to the reference that would revisit it.
func (r *Resolver) cyclePath(stack []resolveItem, next string) []string {
	start := 0
	for i := range stack {
		if stack[i].chunk.Name == next {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, it := range stack[start:] {
		path = append(path, it.chunk.Name)
	}
	return append(path, next)
}
