package main

import (
	"fmt"
	"strings"

	"github.com/nickwells/location.mod/location"
)

// The engine aborts on the first error; nothing below is ever retried.
// Every error type carries the source location when one is known so the
// driver can point the user at the offending line.

// SyntaxError reports a malformed construct found while parsing a document:
// unterminated macro bodies, mismatched chunk delimiters, bad parameter
// lists, include problems.
type SyntaxError struct {
	Pos *location.L
	Msg string
}

func (e *SyntaxError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("syntax error: %s", e.Msg)
}

func syntaxErrorf(pos *location.L, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// UndefinedMacroError reports an invocation of a macro name that was never
// defined. Suggestion, when non-empty, is the closest defined name.
type UndefinedMacroError struct {
	Name       string
	Pos        *location.L
	Suggestion string
}

func (e *UndefinedMacroError) Error() string {
	msg := fmt.Sprintf("macro '%s' is not defined", e.Name)
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean '%s'?", e.Suggestion)
	}
	return msg
}

// ArityMismatchError reports an invocation whose argument count does not
// match the invoked macro's parameter count. Caller names the macro (or
// "top level" / "command line") the invocation appeared in.
type ArityMismatchError struct {
	Macro  string
	Caller string
	Params int
	Args   int
	Pos    *location.L
}

func (e *ArityMismatchError) Error() string {
	msg := fmt.Sprintf("macro '%s' expects %d argument(s), got %d in '%s'",
		e.Macro, e.Params, e.Args, e.Caller)
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// UndefinedParameterError reports a placeholder that is not bound in the
// active parameter mapping.
type UndefinedParameterError struct {
	Macro string
	Param string
	Pos   *location.L
}

func (e *UndefinedParameterError) Error() string {
	msg := fmt.Sprintf("parameter '%s' is not declared by macro '%s'", e.Param, e.Macro)
	if e.Macro == "" {
		msg = fmt.Sprintf("parameter '%s' is not bound at top level", e.Param)
	}
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// UndefinedChunkError reports a reference to a chunk that no expansion ever
// contributed to.
type UndefinedChunkError struct {
	Name       string
	Pos        *location.L
	Suggestion string
}

func (e *UndefinedChunkError) Error() string {
	msg := fmt.Sprintf("chunk '%s' was never defined", e.Name)
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean '%s'?", e.Suggestion)
	}
	return msg
}

// CycleError reports a chunk-reference cycle. Path holds the chain of chunk
// names from the first repeated name back to itself. Depth-limit overflows
// are reported as cycles too, with Overflow set.
type CycleError struct {
	Path     []string
	Pos      *location.L
	Overflow bool
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("chunk reference cycle: %s", strings.Join(e.Path, " -> "))
	if e.Overflow {
		msg = fmt.Sprintf("chunk reference depth limit exceeded: %s", strings.Join(e.Path, " -> "))
	}
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// InvocationCycleError reports a macro that re-invokes itself with the same
// arguments while its own expansion is still open, or an invocation chain
// deeper than the expansion limit.
type InvocationCycleError struct {
	Stack    []string
	Pos      *location.L
	Overflow bool
}

func (e *InvocationCycleError) Error() string {
	msg := fmt.Sprintf("macro invocation cycle: %s", strings.Join(e.Stack, " -> "))
	if e.Overflow {
		msg = fmt.Sprintf("macro invocation depth limit exceeded: %s", strings.Join(e.Stack, " -> "))
	}
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// SecurityError reports a file-target path that escapes the output
// directory: absolute paths, parent traversal, drive or scheme separators.
type SecurityError struct {
	Path   string
	Reason string
	Pos    *location.L
}

func (e *SecurityError) Error() string {
	msg := fmt.Sprintf("unsafe output path '%s': %s", e.Path, e.Reason)
	if e.Pos != nil {
		msg = fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// ModifiedError reports a generated file that changed on disk after the
// run that produced it. Overwriting would destroy someone's edits.
type ModifiedError struct {
	Path string
}

func (e *ModifiedError) Error() string {
	return fmt.Sprintf("'%s' was modified since it was generated; use -f to overwrite", e.Path)
}

// IOError wraps a filesystem failure during emission.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErrorf(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
