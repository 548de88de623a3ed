package main

import (
	"fmt"
	"strings"
)

// / Writes the chunk reference graph in graphviz dot format. Chunks are
// / nodes and references are edges; file targets get a double border,
// / references to undefined chunks come out dotted.
type GraphViz struct {
	store  *ChunkStore
	outDir string

	visitedNodes map[string]bool
	visitedEdges map[string]bool
}

func NewGraphViz(store *ChunkStore, outDir string) *GraphViz {
	return &GraphViz{
		store:        store,
		outDir:       outDir,
		visitedNodes: make(map[string]bool),
		visitedEdges: make(map[string]bool),
	}
}

func (g *GraphViz) Start() {
	fmt.Printf("digraph azadi {\n")
	fmt.Printf("rankdir=\"LR\"\n")
	fmt.Printf("node [fontsize=10, shape=box, height=0.25]\n")
	fmt.Printf("edge [fontsize=10]\n")
}

func (g *GraphViz) AddChunk(name string) {
	if g.visitedNodes[name] {
		return
	}
	g.visitedNodes[name] = true

	c, err := g.store.Get(name, nil)
	if err != nil {
		fmt.Printf("\"%s\" [style=dotted]\n", graphQuote(name))
		return
	}
	if c.IsFileTarget {
		fmt.Printf("\"%s\" [label=\"%s\", peripheries=2]\n",
			graphQuote(name), graphQuote(targetOutputPath(g.outDir, c.FilePath)))
	} else {
		fmt.Printf("\"%s\"\n", graphQuote(name))
	}

	for _, frag := range c.Fragments {
		if !frag.Ref {
			continue
		}
		key := name + "\x00" + frag.Text
		if !g.visitedEdges[key] {
			g.visitedEdges[key] = true
			fmt.Printf("\"%s\" -> \"%s\"\n", graphQuote(name), graphQuote(frag.Text))
		}
		g.AddChunk(frag.Text)
	}
}

func (g *GraphViz) Finish() {
	fmt.Printf("}\n")
}

func graphQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// / Graph the named chunks, or every file target when no names are
// / given.
func (a *AzadiMain) ToolGraph(options *Options, args []string) int {
	graph := NewGraphViz(a.Store, a.Config.OutDir)
	graph.Start()
	if len(args) > 0 {
		for _, name := range args {
			graph.AddChunk(name)
		}
	} else {
		for _, c := range a.Store.FileTargets() {
			graph.AddChunk(c.Name)
		}
	}
	graph.Finish()
	return 0
}
