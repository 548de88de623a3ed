package main

import (
	"slices"
	"strings"

	"github.com/edwingeng/deque"
	"github.com/nickwells/location.mod/location"
	"github.com/segmentio/fasthash/fnv1a"
)

// maxExpandDepth bounds the open-frame stack so runaway self-invocation
// becomes a reported cycle instead of resource exhaustion.
const maxExpandDepth = 100

// frame is one open macro expansion: the definition, its bindings, and a
// cursor into its body.
type frame struct {
	def   *MacroDefinition
	binds *Bindings
	args  []string
	fp    uint64
	next  int
	pos   *location.L
}

// Expander walks invocations and appends substituted chunk fragments to
// the store. Expansion is driven by an explicit queue of top-level
// elements plus an explicit stack of open frames, so deep composition
// never grows the call stack and cycles are detected by inspection.
// The store is its only side effect; no resolution or I/O happens here.
type Expander struct {
	table    *MacroTable
	store    *ChunkStore
	pending  deque.Deque
	open     []*frame
	maxDepth int
}

func NewExpander(table *MacroTable, store *ChunkStore) *Expander {
	return &Expander{
		table:    table,
		store:    store,
		pending:  deque.NewDeque(),
		maxDepth: maxExpandDepth,
	}
}

// RunDocument expands a document's top-level elements in document order.
func (e *Expander) RunDocument(doc *Document) error {
	for _, el := range doc.Elements {
		e.pending.PushBack(el)
	}
	return e.drain()
}

// Invoke runs one driver-requested invocation with concrete argument
// values, after any queued document elements.
func (e *Expander) Invoke(name string, args []string, pos *location.L) error {
	tpls := make([]Template, len(args))
	for i, a := range args {
		tpls[i].AddText(a, pos)
	}
	e.pending.PushBack(&InvocationNode{Name: name, Args: tpls, pos: pos})
	return e.drain()
}

func (e *Expander) drain() error {
	for !e.pending.Empty() {
		el := e.pending.Front().(BodyElement)
		e.pending.PopFront()
		if err := e.element(el, topLevelBindings); err != nil {
			return err
		}
		if err := e.run(); err != nil {
			return err
		}
	}
	return nil
}

// run is the trampoline: process the top frame's remaining body elements,
// pushing a frame per nested invocation and popping exhausted frames.
func (e *Expander) run() error {
	for len(e.open) > 0 {
		fr := e.open[len(e.open)-1]
		if fr.next >= len(fr.def.Body) {
			e.open = e.open[:len(e.open)-1]
			continue
		}
		el := fr.def.Body[fr.next]
		fr.next++
		if err := e.element(el, fr.binds); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) element(el BodyElement, binds *Bindings) error {
	switch n := el.(type) {
	case *LiteralText:
		// Prose between blocks is presentation. Inside a body its
		// placeholders are still validated; at top level nothing is bound
		// and the text was already skipped by the parser.
		_, err := n.Text.Substitute(binds)
		return err
	case *ChunkBlockNode:
		return e.appendChunk(n, binds)
	case *InvocationNode:
		return e.push(n, binds)
	}
	return nil
}

// push substitutes an invocation's argument templates, binds them
// positionally, and opens the invoked macro's frame.
func (e *Expander) push(inv *InvocationNode, binds *Bindings) error {
	def, err := e.table.Lookup(inv.Name, inv.pos)
	if err != nil {
		return err
	}
	args := make([]string, len(inv.Args))
	for i := range inv.Args {
		v, err := inv.Args[i].Substitute(binds)
		if err != nil {
			return err
		}
		args[i] = v
	}
	if len(args) != len(def.Params) {
		return &ArityMismatchError{
			Macro:  def.Name,
			Caller: callerName(binds),
			Params: len(def.Params),
			Args:   len(args),
			Pos:    inv.pos,
		}
	}
	fp := argsFingerprint(def.Name, args)
	for i, open := range e.open {
		if open.def == def && open.fp == fp && slices.Equal(open.args, args) {
			names := make([]string, 0, len(e.open)-i+1)
			for _, f := range e.open[i:] {
				names = append(names, f.def.Name)
			}
			names = append(names, def.Name)
			return &InvocationCycleError{Stack: names, Pos: inv.pos}
		}
	}
	if len(e.open) >= e.maxDepth {
		names := append(e.stackNames(), def.Name)
		return &InvocationCycleError{Stack: names, Pos: inv.pos, Overflow: true}
	}
	e.open = append(e.open, &frame{
		def:   def,
		binds: NewBindings(def.Name, def.Params, args),
		args:  args,
		fp:    fp,
		pos:   inv.pos,
	})
	return nil
}

// appendChunk substitutes a block's name and content and appends the
// concrete fragments to the store. File-target paths are validated here,
// as early as they become known.
func (e *Expander) appendChunk(n *ChunkBlockNode, binds *Bindings) error {
	name, err := n.Name.Substitute(binds)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return syntaxErrorf(n.pos, "chunk name is empty after substitution")
	}
	name, replace := splitReplaceMarker(name)
	if path, ok := fileTargetPath(name); ok {
		if err := checkTargetPath(path, n.pos); err != nil {
			return err
		}
	}
	frags := make([]Fragment, 0, len(n.Content))
	for i := range n.Content {
		cn := &n.Content[i]
		text, err := cn.Text.Substitute(binds)
		if err != nil {
			return err
		}
		if cn.Ref {
			text = strings.TrimSpace(text)
			if text == "" {
				return syntaxErrorf(cn.Pos, "chunk reference is empty after substitution")
			}
		}
		frags = append(frags, Fragment{Ref: cn.Ref, Text: text, Indent: cn.Indent, Pos: cn.Pos})
	}
	if replace {
		e.store.Replace(name, frags, n.pos)
	} else {
		e.store.Append(name, frags, n.pos)
	}
	return nil
}

func (e *Expander) stackNames() []string {
	names := make([]string, len(e.open))
	for i, f := range e.open {
		names[i] = f.def.Name
	}
	return names
}

func callerName(binds *Bindings) string {
	if binds.Macro == "" {
		return "top level"
	}
	return binds.Macro
}

// argsFingerprint hashes an invocation's identity for the fast path of
// cycle detection; matches are confirmed by comparing the argument
// slices.
func argsFingerprint(name string, args []string) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, name)
	for _, a := range args {
		h = fnv1a.AddString64(h, "\x1f")
		h = fnv1a.AddString64(h, a)
	}
	return h
}
