package main

import "fmt"

// / Collects explanation strings for the outcome of each file target
// / when running with '-d explain'. Explanations are recorded per output
// / path as the safe writer decides what to do with it, and dumped right
// / before the targets are written.
type Explanations struct {
	byItem map[string][]string
	order  []string
}

func NewExplanations() *Explanations {
	return &Explanations{byItem: make(map[string][]string)}
}

func (e *Explanations) Record(item, format string, args ...interface{}) {
	if _, ok := e.byItem[item]; !ok {
		e.order = append(e.order, item)
	}
	e.byItem[item] = append(e.byItem[item], fmt.Sprintf(format, args...))
}

// / Lookup the explanations recorded for |item|, and append them
// / to |out|, if any.
func (e *Explanations) LookupAndAppend(item string, out []string) []string {
	return append(out, e.byItem[item]...)
}

// / Set by '-d explain'; nil when explanations are off.
var g_explanations *Explanations

// / Record an explanation on the global collector, if one is enabled.
// / Callers never need to check the debug flag themselves.
func Explain(item, format string, args ...interface{}) {
	if g_explanations != nil {
		g_explanations.Record(item, format, args...)
	}
}
