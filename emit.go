package main

import (
	"strconv"
	"time"

	"github.com/ahrtr/gocontainer/set"

	"github.com/giannifer7/azadi/model"
)

// TargetResult describes one file target of a run.
type TargetResult struct {
	Chunk   string       `json:"chunk"`
	Path    string       `json:"path"`
	Content string       `json:"-"`
	Hash    string       `json:"hash"`
	Outcome WriteOutcome `json:"outcome"`
}

// EmitResult summarizes a run.
type EmitResult struct {
	RunID     string          `json:"run_id"`
	Targets   []*TargetResult `json:"targets"`
	Written   int             `json:"written"`
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
}

// SourceInput identifies one input document and its content hash, for
// provenance rows in the generation log.
type SourceInput struct {
	Path string
	Hash string
}

// Emitter turns the chunk store into files. Emission is all or nothing:
// every file target is resolved, then every write is preflighted, and
// only then does the first byte land on disk. A dry run stops after the
// preflight.
type Emitter struct {
	store    *ChunkStore
	resolver *Resolver
	writer   *SafeWriter
	genLog   *GenLog
	xrefLog  *XrefLog
	status   Status

	outDir           string
	dryRun           bool
	warnUnreferenced bool
	sources          []SourceInput
}

func NewEmitter(store *ChunkStore, writer *SafeWriter, status Status) *Emitter {
	return &Emitter{
		store:    store,
		resolver: NewResolver(store),
		writer:   writer,
		status:   status,
	}
}

func (e *Emitter) SetOutDir(dir string)             { e.outDir = dir }
func (e *Emitter) SetDryRun(on bool)                { e.dryRun = on }
func (e *Emitter) SetWarnUnreferenced(on bool)      { e.warnUnreferenced = on }
func (e *Emitter) SetGenLog(l *GenLog)              { e.genLog = l }
func (e *Emitter) SetXrefLog(x *XrefLog)            { e.xrefLog = x }
func (e *Emitter) SetSources(sources []SourceInput) { e.sources = sources }

// Emit resolves and writes every file target in first-definition order.
func (e *Emitter) Emit() (*EmitResult, error) {
	defer MetricRecord("emit")()

	if e.warnUnreferenced {
		for _, name := range e.store.Unreferenced() {
			e.status.Warning("chunk '%s' is defined but never referenced", name)
		}
	}

	var edges []model.XrefEdge
	if e.xrefLog != nil {
		e.resolver.onRef = func(parent, child string) {
			edges = append(edges, model.XrefEdge{Parent: parent, Child: child})
		}
	}

	result := &EmitResult{RunID: newRunID()}

	// Phase 1: resolve everything. Any error here means nothing has been
	// touched on disk.
	seen := set.New()
	for _, c := range e.store.FileTargets() {
		out := targetOutputPath(e.outDir, c.FilePath)
		if seen.Contains(out) {
			return nil, syntaxErrorf(c.Pos, "duplicate file target '%s'", c.FilePath)
		}
		seen.Add(out)
		text, err := e.resolver.Resolve(c.Name, c.Pos)
		if err != nil {
			return nil, err
		}
		result.Targets = append(result.Targets, &TargetResult{
			Chunk:   c.Name,
			Path:    out,
			Content: text,
			Hash:    hashBytes([]byte(text)),
		})
	}

	// Phase 2: preflight every write so a hand-edited target aborts the
	// run before any sibling is overwritten.
	for _, r := range result.Targets {
		outcome, _, err := e.writer.Check(r.Path, []byte(r.Content))
		if err != nil {
			return nil, err
		}
		r.Outcome = outcome
		e.explain(r.Path)
	}

	e.status.RunStarted(len(result.Targets))
	for _, r := range result.Targets {
		if !e.dryRun {
			outcome, _, err := e.writer.Write(r.Path, []byte(r.Content))
			if err != nil {
				return nil, err
			}
			r.Outcome = outcome
		}
		switch r.Outcome {
		case WroteNew:
			result.Written++
		case WroteUpdated:
			result.Updated++
		case WroteUnchanged:
			result.Unchanged++
		}
		e.status.TargetFinished(r.Path, r.Outcome)
	}
	e.status.RunFinished()

	if e.dryRun {
		return result, nil
	}

	if e.genLog != nil {
		for _, r := range result.Targets {
			entry := &model.GenEntry{
				Path:        r.Path,
				ChunkName:   r.Chunk,
				ContentHash: r.Hash,
				Size:        int64(len(r.Content)),
				RunID:       result.RunID,
				Sources:     sourceRows(e.sources),
			}
			if err := e.genLog.Record(entry); err != nil {
				return nil, ioErrorf("log", e.genLog.path, err)
			}
		}
	}
	if e.xrefLog != nil && len(result.Targets) > 0 {
		e.xrefLog.BeginRun(result.RunID)
		for _, edge := range edges {
			if err := e.xrefLog.Record(edge.Parent, edge.Child); err != nil {
				return nil, ioErrorf("xref", "", err)
			}
		}
	}
	return result, nil
}

// explain prints the reasons the preflight recorded for one target when
// running with '-d explain'.
func (e *Emitter) explain(path string) {
	if g_explanations == nil {
		return
	}
	for _, why := range g_explanations.LookupAndAppend(path, nil) {
		e.status.Info("explain %s: %s", path, why)
	}
}

func sourceRows(sources []SourceInput) []*model.SourceEntry {
	rows := make([]*model.SourceEntry, len(sources))
	for i, s := range sources {
		rows[i] = &model.SourceEntry{FilePath: s.Path, FileHash: s.Hash}
	}
	return rows
}

func newRunID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 16)
}
