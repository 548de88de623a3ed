package main

import (
	"strings"

	"github.com/nickwells/location.mod/location"
)

// Reserved chunk-name markers. A name beginning with "@file " makes the
// chunk a file target whose path is the remainder of the name; a leading
// "@replace " is an instruction to discard previously accumulated
// fragments before appending.
const (
	fileTargetMarker = "@file"
	replaceMarker    = "@replace"
)

// splitReplaceMarker strips a leading replace marker from a substituted
// chunk name.
func splitReplaceMarker(name string) (string, bool) {
	if rest, ok := strings.CutPrefix(name, replaceMarker+" "); ok {
		return strings.TrimSpace(rest), true
	}
	return name, false
}

// fileTargetPath extracts the output path from a file-target chunk name.
func fileTargetPath(name string) (string, bool) {
	if rest, ok := strings.CutPrefix(name, fileTargetMarker+" "); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// Fragment is one concrete line of accumulated chunk content: a literal
// line, or a whole-line reference to another chunk. Names and text are
// fully substituted before they reach the store.
type Fragment struct {
	Ref    bool
	Text   string
	Indent string
	Pos    *location.L
}

// Chunk accumulates the fragments contributed by every block whose name
// substituted to Name, in document encounter order.
type Chunk struct {
	Name         string
	Fragments    []Fragment
	IsFileTarget bool
	FilePath     string
	Pos          *location.L

	// replaced records whether any contribution to this chunk was a
	// replace. After a replace the fragment list equals the operations
	// that followed it, so document-order merging must replace too.
	replaced bool
}

// ChunkStore maps chunk names to accumulated content. Appends preserve
// global encounter order across all contributing expansions; nothing is
// ever sorted or deduplicated.
type ChunkStore struct {
	chunks map[string]*Chunk
	order  []string
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[string]*Chunk)}
}

func (s *ChunkStore) chunk(name string, pos *location.L) *Chunk {
	if c, ok := s.chunks[name]; ok {
		return c
	}
	c := &Chunk{Name: name, Pos: pos}
	if path, ok := fileTargetPath(name); ok {
		c.IsFileTarget = true
		c.FilePath = path
	}
	s.chunks[name] = c
	s.order = append(s.order, name)
	return c
}

// Append adds fragments to the named chunk, creating it on first use.
func (s *ChunkStore) Append(name string, frags []Fragment, pos *location.L) *Chunk {
	c := s.chunk(name, pos)
	c.Fragments = append(c.Fragments, frags...)
	return c
}

// Replace discards whatever the named chunk accumulated so far, then
// appends. The replace is remembered so merges replay it.
func (s *ChunkStore) Replace(name string, frags []Fragment, pos *location.L) *Chunk {
	c := s.chunk(name, pos)
	c.replaced = true
	c.Fragments = append(c.Fragments[:0:0], frags...)
	return c
}

// Get looks a chunk up by name, suggesting the closest known name when
// there is none. pos is the reference site.
func (s *ChunkStore) Get(name string, pos *location.L) (*Chunk, error) {
	if c, ok := s.chunks[name]; ok {
		return c, nil
	}
	return nil, &UndefinedChunkError{
		Name:       name,
		Pos:        pos,
		Suggestion: spellcheckString(name, s.order),
	}
}

func (s *ChunkStore) Has(name string) bool {
	_, ok := s.chunks[name]
	return ok
}

func (s *ChunkStore) Len() int { return len(s.order) }

// Names returns every chunk name in first-contribution order.
func (s *ChunkStore) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// FileTargets returns the file-target chunks in first-contribution order.
func (s *ChunkStore) FileTargets() []*Chunk {
	var out []*Chunk
	for _, name := range s.order {
		if c := s.chunks[name]; c.IsFileTarget {
			out = append(out, c)
		}
	}
	return out
}

// Merge folds other into s in other's contribution order. A chunk that
// saw a replace in other overrides instead of appending, so merging
// per-document stores in document order reproduces a sequential run
// exactly.
func (s *ChunkStore) Merge(other *ChunkStore) {
	for _, name := range other.order {
		oc := other.chunks[name]
		if oc.replaced {
			s.Replace(name, oc.Fragments, oc.Pos)
			continue
		}
		s.Append(name, oc.Fragments, oc.Pos)
	}
}

// Unreferenced returns non-file chunks no fragment anywhere refers to, in
// contribution order. These are the tangling equivalent of dead code and
// are surfaced as warnings.
func (s *ChunkStore) Unreferenced() []string {
	referenced := make(map[string]bool)
	for _, name := range s.order {
		for _, f := range s.chunks[name].Fragments {
			if f.Ref {
				referenced[f.Text] = true
			}
		}
	}
	var out []string
	for _, name := range s.order {
		c := s.chunks[name]
		if !c.IsFileTarget && !referenced[name] {
			out = append(out, name)
		}
	}
	return out
}
