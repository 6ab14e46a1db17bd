package pamedit

import "strings"

// Editor mutates a service file's rule stack in place.
type Editor struct {
	file *ServiceFile
}

// NewEditor creates an editor for a service file.
func NewEditor(file *ServiceFile) *Editor {
	return &Editor{file: file}
}

// RuleFilter selects rules for find and remove operations.
type RuleFilter func(rule Rule) bool

// FilterByModule matches rules whose module field equals module exactly.
func FilterByModule(module string) RuleFilter {
	return func(rule Rule) bool {
		return rule.Module == module
	}
}

// FilterByType matches rules of the given management group, including
// '-'-prefixed variants.
func FilterByType(moduleType ModuleType) RuleFilter {
	return func(rule Rule) bool {
		return ModuleType(strings.TrimPrefix(string(rule.Type), "-")) == moduleType
	}
}

// FilterByControl matches rules with the given control field.
func FilterByControl(control string) RuleFilter {
	return func(rule Rule) bool {
		return strings.EqualFold(rule.Control, control)
	}
}

// CombineFilters combines filters with AND logic.
func CombineFilters(filters ...RuleFilter) RuleFilter {
	return func(rule Rule) bool {
		for _, filter := range filters {
			if !filter(rule) {
				return false
			}
		}
		return true
	}
}

// FindRules returns the rules matching the filter, in stack order.
func (e *Editor) FindRules(filter RuleFilter) []Rule {
	var matched []Rule
	for _, ln := range e.file.Lines {
		if ln.Rule != nil && filter(*ln.Rule) {
			matched = append(matched, *ln.Rule)
		}
	}
	return matched
}

// Append adds a rule at the end of the stack, after all existing lines.
func (e *Editor) Append(rule Rule) {
	e.file.Lines = append(e.file.Lines, Line{Rule: &rule})
}

// Prepend adds a rule at the top of the stack, before all existing lines.
func (e *Editor) Prepend(rule Rule) {
	e.file.Lines = append([]Line{{Rule: &rule}}, e.file.Lines...)
}

// RemoveModule removes every rule whose module field equals module and
// returns the number of rules removed. Raw lines and the relative order
// of the remaining rules are untouched.
func (e *Editor) RemoveModule(module string) int {
	return e.RemoveRules(FilterByModule(module))
}

// RemoveRules removes every rule matching the filter and returns the
// number removed.
func (e *Editor) RemoveRules(filter RuleFilter) int {
	kept := e.file.Lines[:0]
	removed := 0
	for _, ln := range e.file.Lines {
		if ln.Rule != nil && filter(*ln.Rule) {
			removed++
			continue
		}
		kept = append(kept, ln)
	}
	e.file.Lines = kept
	return removed
}
