package main

import (
	"io"
	"os"
	"sync"
	"time"

	loadavg "github.com/mikoim/go-loadavg"
)

// stdinDocName labels the synthetic document read from standard input
// when "-" is given on the command line.
const stdinDocName = "<stdin>"

// loadGuard delays new work while the system 1-minute load average sits
// above the configured limit, the way a polite batch tool should. A zero
// or negative limit disables the guard, as does any platform where the
// load average cannot be read.
type loadGuard struct {
	limit float64
}

func newLoadGuard(limit float64) *loadGuard {
	return &loadGuard{limit: limit}
}

func (g *loadGuard) Wait() {
	if g == nil || g.limit <= 0 {
		return
	}
	for i := 0; i < 20; i++ {
		la, err := loadavg.Parse()
		if err != nil || la.LoadAverage1 < g.limit {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// ParseAll parses documents concurrently, at most jobs at a time, and
// returns them in command-line order together with the hashes of every
// file read, included files after their documents. "-" reads a document
// from standard input. Errors are reported for the earliest failing
// document so a parallel run diagnoses the same file a sequential one
// would.
func ParseAll(paths []string, markers Markers, disk DiskInterface, includeDirs []string, jobs int, guard *loadGuard) ([]*Document, []SourceInput, error) {
	defer MetricRecord("parse")()
	if jobs < 1 {
		jobs = 1
	}
	docs := make([]*Document, len(paths))
	hashes := make([]string, len(paths))
	errs := make([]error, len(paths))

	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			guard.Wait()

			name := path
			var data []byte
			var err error
			if path == "-" {
				name = stdinDocName
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = disk.ReadFile(path)
			}
			if err != nil {
				errs[i] = ioErrorf("read", name, err)
				return
			}
			hashes[i] = hashBytes(data)
			doc, err := NewParser(markers, disk, includeDirs).Parse(name, string(data))
			if err != nil {
				errs[i] = err
				return
			}
			docs[i] = doc
		}(i, path)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	seen := make(map[string]bool, len(paths))
	var sources []SourceInput
	for i, path := range paths {
		name := path
		if path == "-" {
			name = stdinDocName
		}
		if !seen[name] {
			seen[name] = true
			sources = append(sources, SourceInput{Path: name, Hash: hashes[i]})
		}
		for _, inc := range docs[i].Includes {
			if !seen[inc.Path] {
				seen[inc.Path] = true
				sources = append(sources, inc)
			}
		}
	}
	return docs, sources, nil
}

// BuildTable merges every document's definitions into one macro table in
// document order, so a name defined twice across documents is reported
// against the later document.
func BuildTable(docs []*Document) (*MacroTable, error) {
	table := NewMacroTable()
	for _, doc := range docs {
		for _, def := range doc.Defs {
			if err := table.Define(def); err != nil {
				return nil, err
			}
		}
	}
	return table, nil
}

// ExpandAll expands each document against the shared table into its own
// store, concurrently, then merges the stores in document order. The
// merged store is indistinguishable from one produced by a sequential
// run over the same documents.
func ExpandAll(docs []*Document, table *MacroTable, jobs int, guard *loadGuard) (*ChunkStore, error) {
	defer MetricRecord("expand")()
	if jobs < 1 {
		jobs = 1
	}
	stores := make([]*ChunkStore, len(docs))
	errs := make([]error, len(docs))

	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc *Document) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			guard.Wait()

			store := NewChunkStore()
			errs[i] = NewExpander(table, store).RunDocument(doc)
			stores[i] = store
		}(i, doc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	merged := NewChunkStore()
	for _, store := range stores {
		merged.Merge(store)
	}
	return merged, nil
}
