package main

import (
	"strings"

	"github.com/nickwells/location.mod/location"
)

// Bindings is the substitution mapping of one invocation: parameter names
// bound positionally to concrete argument values. Macro is the owning
// macro's name, or "" at top level where nothing is bound.
type Bindings struct {
	Macro string
	vals  map[string]string
}

// topLevelBindings is the empty mapping used for document-level elements.
var topLevelBindings = &Bindings{}

func NewBindings(macro string, params, args []string) *Bindings {
	b := &Bindings{Macro: macro, vals: make(map[string]string, len(params))}
	for i, p := range params {
		b.vals[p] = args[i]
	}
	return b
}

func (b *Bindings) Lookup(name string) (string, bool) {
	v, ok := b.vals[name]
	return v, ok
}

type segmentKind uint8

const (
	segText segmentKind = iota
	segParam
	segCall
)

type segment struct {
	kind segmentKind
	text string // literal text, parameter name, or function name
	args []Template
	pos  *location.L
}

// Template is a parsed run of document text: literal pieces interleaved
// with parameter placeholders and text-function calls. Substitution is
// total: an unbound placeholder is an error, never literal output.
type Template struct {
	segs []segment
}

func (t *Template) AddText(s string, pos *location.L) {
	if s == "" {
		return
	}
	// Coalesce adjacent literal runs so one line is usually one segment.
	if n := len(t.segs); n > 0 && t.segs[n-1].kind == segText {
		t.segs[n-1].text += s
		return
	}
	t.segs = append(t.segs, segment{kind: segText, text: s, pos: pos})
}

func (t *Template) AddParam(name string, pos *location.L) {
	t.segs = append(t.segs, segment{kind: segParam, text: name, pos: pos})
}

func (t *Template) AddCall(fn string, args []Template, pos *location.L) {
	t.segs = append(t.segs, segment{kind: segCall, text: fn, args: args, pos: pos})
}

func (t *Template) Empty() bool { return len(t.segs) == 0 }

// IsLiteral reports whether the template contains no placeholders or
// calls, i.e. substitution is the identity.
func (t *Template) IsLiteral() bool {
	for _, s := range t.segs {
		if s.kind != segText {
			return false
		}
	}
	return true
}

// String reconstructs an approximation of the template's source form.
// Used in diagnostics and tool listings only.
func (t *Template) String() string {
	var sb strings.Builder
	for _, s := range t.segs {
		switch s.kind {
		case segText:
			sb.WriteString(s.text)
		case segParam:
			sb.WriteString("%(")
			sb.WriteString(s.text)
			sb.WriteString(")")
		case segCall:
			sb.WriteString("%")
			sb.WriteString(s.text)
			sb.WriteString("(")
			for i, a := range s.args {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(a.String())
			}
			sb.WriteString(")")
		}
	}
	return sb.String()
}

// Substitute evaluates the template against binds. Placeholders not bound
// in the mapping fail with UndefinedParameterError.
func (t *Template) Substitute(binds *Bindings) (string, error) {
	var sb strings.Builder
	for _, s := range t.segs {
		switch s.kind {
		case segText:
			sb.WriteString(s.text)
		case segParam:
			v, ok := binds.Lookup(s.text)
			if !ok {
				return "", &UndefinedParameterError{Macro: binds.Macro, Param: s.text, Pos: s.pos}
			}
			sb.WriteString(v)
		case segCall:
			v, err := evalTextFunc(s, binds)
			if err != nil {
				return "", err
			}
			sb.WriteString(v)
		}
	}
	return sb.String(), nil
}

// trimSpace removes leading and trailing literal whitespace. Invocation
// arguments are trimmed so that "%%m(a, b)" binds "b", not " b".
func (t *Template) trimSpace() {
	if len(t.segs) == 0 {
		return
	}
	if first := &t.segs[0]; first.kind == segText {
		first.text = strings.TrimLeft(first.text, " \t\r\n")
	}
	if last := &t.segs[len(t.segs)-1]; last.kind == segText {
		last.text = strings.TrimRight(last.text, " \t\r\n")
	}
	// Trimming can empty out a literal-only template.
	trimmed := t.segs[:0]
	for _, s := range t.segs {
		if s.kind == segText && s.text == "" {
			continue
		}
		trimmed = append(trimmed, s)
	}
	t.segs = trimmed
}

// Text functions are the pure, value-producing calls usable inside any
// template. User macros are not callable here; they are invoked with the
// doubled special character and expand into chunk contributions instead
// of values.
var textFuncs = map[string]int{
	"upper": 1,
	"lower": 1,
	"equal": 2,
	"if":    3,
}

// textFuncArity returns the declared argument count, or -1 for unknown
// names. The parser validates call sites against this table.
func textFuncArity(name string) int {
	if n, ok := textFuncs[name]; ok {
		return n
	}
	return -1
}

func evalTextFunc(s segment, binds *Bindings) (string, error) {
	vals := make([]string, len(s.args))
	for i := range s.args {
		v, err := s.args[i].Substitute(binds)
		if err != nil {
			return "", err
		}
		vals[i] = v
	}
	switch s.text {
	case "upper":
		return strings.ToUpper(vals[0]), nil
	case "lower":
		return strings.ToLower(vals[0]), nil
	case "equal":
		if vals[0] == vals[1] {
			return "true", nil
		}
		return "false", nil
	case "if":
		if truthy(vals[0]) {
			return vals[1], nil
		}
		return vals[2], nil
	}
	return "", syntaxErrorf(s.pos, "unknown text function '%s'", s.text)
}

func truthy(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "false" && s != "0"
}
