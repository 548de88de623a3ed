package main

import (
	"github.com/nickwells/location.mod/location"
)

// MacroDefinition is one parsed macro: a unique name, ordered parameter
// names, and the body elements expansion walks. Definitions are created at
// parse time and never change.
type MacroDefinition struct {
	Name   string
	Params []string
	Body   []BodyElement
	Pos    *location.L
}

// MacroTable maps macro names to definitions. Built during parsing,
// immutable once expansion starts.
type MacroTable struct {
	macros map[string]*MacroDefinition
	order  []string
}

func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*MacroDefinition)}
}

// Define registers a definition. Macro names are unique; a second
// definition of the same name is an error, not a shadow.
func (t *MacroTable) Define(def *MacroDefinition) error {
	if prev, ok := t.macros[def.Name]; ok {
		return syntaxErrorf(def.Pos, "macro '%s' already defined at %s", def.Name, prev.Pos)
	}
	t.macros[def.Name] = def
	t.order = append(t.order, def.Name)
	return nil
}

// Lookup finds a definition by name, suggesting the closest defined name
// when there is none.
func (t *MacroTable) Lookup(name string, pos *location.L) (*MacroDefinition, error) {
	if def, ok := t.macros[name]; ok {
		return def, nil
	}
	return nil, &UndefinedMacroError{
		Name:       name,
		Pos:        pos,
		Suggestion: spellcheckString(name, t.order),
	}
}

// Names returns macro names in definition order.
func (t *MacroTable) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *MacroTable) Len() int { return len(t.order) }

// Merge folds other's definitions into t in other's definition order.
// Cross-document name collisions are errors like any redefinition.
func (t *MacroTable) Merge(other *MacroTable) error {
	for _, name := range other.order {
		if err := t.Define(other.macros[name]); err != nil {
			return err
		}
	}
	return nil
}
