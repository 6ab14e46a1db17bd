// Package pamedit parses, edits, and writes Linux PAM service files in
// /etc/pam.d format: one rule per line, rule fields separated by
// whitespace, '#' comments and blank lines preserved across rewrites.
package pamedit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ModuleType is the PAM management group a rule belongs to.
type ModuleType string

const (
	ModuleTypeAccount  ModuleType = "account"
	ModuleTypeAuth     ModuleType = "auth"
	ModuleTypePassword ModuleType = "password"
	ModuleTypeSession  ModuleType = "session"
)

// Simple control keywords. Bracketed controls like [success=1 default=bad]
// are carried as opaque strings and never decomposed.
const (
	ControlRequired   = "required"
	ControlRequisite  = "requisite"
	ControlSufficient = "sufficient"
	ControlOptional   = "optional"
	ControlInclude    = "include"
	ControlSubstack   = "substack"
)

// Rule is one line of a service file's stack.
type Rule struct {
	Type    ModuleType
	Control string
	Module  string
	Args    []string
	Comment string // trailing inline comment, without the leading '#'
}

// Line is one physical line of a service file. Rule is non-nil for
// parsed rule lines; for everything else (comments, blank lines,
// directives, skipped content) Rule is nil and Raw holds the line's
// text, possibly empty, verbatim.
type Line struct {
	Raw  string
	Rule *Rule
}

// ParseWarning records a line the parser skipped.
type ParseWarning struct {
	LineNumber int
	Line       string
	Reason     string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("line %d: %s: %q", w.LineNumber, w.Reason, w.Line)
}

// ServiceFile is a parsed PAM service file. Line order is semantic: PAM
// evaluates the stack top to bottom.
type ServiceFile struct {
	Name     string
	Path     string
	Lines    []Line
	Warnings []ParseWarning
}

// Rules returns the parsed rules in stack order.
func (f *ServiceFile) Rules() []Rule {
	var rules []Rule
	for _, ln := range f.Lines {
		if ln.Rule != nil {
			rules = append(rules, *ln.Rule)
		}
	}
	return rules
}

// IsValidModuleType reports whether t is a known management group,
// allowing the '-' prefix used to silence missing-module logging.
func IsValidModuleType(t string) bool {
	s := strings.TrimPrefix(strings.ToLower(t), "-")
	switch ModuleType(s) {
	case ModuleTypeAccount, ModuleTypeAuth, ModuleTypePassword, ModuleTypeSession:
		return true
	default:
		return false
	}
}

// IsValidControl reports whether c is a simple control keyword or an
// opaque bracketed control, allowing the '-' prefix.
func IsValidControl(c string) bool {
	s := strings.TrimPrefix(c, "-")
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && len(s) > 2 {
		return true
	}
	switch strings.ToLower(s) {
	case ControlRequired, ControlRequisite, ControlSufficient, ControlOptional, ControlInclude, ControlSubstack:
		return true
	default:
		return false
	}
}

// Parser parses PAM service files with a skip-and-warn policy: lines it
// cannot understand are kept verbatim and reported as warnings instead of
// failing the whole file.
type Parser struct{}

// NewParser creates a new service file parser.
func NewParser() *Parser {
	return &Parser{}
}

// tokenizeLine splits a line into tokens, keeping bracketed groups like
// [success=1 default=bad] intact. A '#' outside brackets starts a comment
// that is returned as a final token beginning with '#'.
func tokenizeLine(line string) []string {
	var tokens []string
	var current strings.Builder
	inBrackets := false

	for i, r := range line {
		switch r {
		case '[':
			if !inBrackets {
				if current.Len() > 0 {
					tokens = append(tokens, current.String())
					current.Reset()
				}
				inBrackets = true
			}
			current.WriteRune(r)
		case ']':
			current.WriteRune(r)
			if inBrackets {
				tokens = append(tokens, current.String())
				current.Reset()
				inBrackets = false
			}
		case ' ', '\t':
			if inBrackets {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case '#':
			if !inBrackets {
				// Everything from the '#' onward is the trailing
				// comment, emitted as one final token.
				if current.Len() > 0 {
					tokens = append(tokens, current.String())
				}
				tokens = append(tokens, line[i:])
				return tokens
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// parseLine parses one line. It returns a rule, or nil with a non-empty
// reason when the line is malformed. A nil rule with an empty reason
// means the line is a comment, blank, or directive (raw, no warning).
func (p *Parser) parseLine(line string) (*Rule, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, ""
	}
	// Directives such as @include carry no rule fields; keep them as-is.
	if strings.HasPrefix(trimmed, "@") {
		return nil, ""
	}

	tokens := tokenizeLine(trimmed)

	var comment string
	for i, tok := range tokens {
		if strings.HasPrefix(tok, "#") {
			comment = strings.TrimSpace(strings.TrimPrefix(tok, "#"))
			tokens = tokens[:i]
			break
		}
	}

	if len(tokens) < 3 {
		return nil, "fewer than three fields"
	}
	if !IsValidModuleType(tokens[0]) {
		return nil, fmt.Sprintf("unknown module type %q", tokens[0])
	}
	if !IsValidControl(tokens[1]) {
		return nil, fmt.Sprintf("invalid control %q", tokens[1])
	}

	rule := &Rule{
		Type:    ModuleType(strings.ToLower(tokens[0])),
		Control: tokens[1],
		Module:  tokens[2],
		Comment: comment,
	}
	if len(tokens) > 3 {
		rule.Args = append([]string(nil), tokens[3:]...)
	}

	return rule, ""
}

// Parse reads a service file from r. It never fails on malformed rule
// lines; those are kept verbatim and recorded in the result's Warnings.
func (p *Parser) Parse(r io.Reader) (*ServiceFile, error) {
	f := &ServiceFile{}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := scanner.Text()

		rule, reason := p.parseLine(text)
		if rule != nil {
			f.Lines = append(f.Lines, Line{Rule: rule})
			continue
		}
		if reason != "" {
			f.Warnings = append(f.Warnings, ParseWarning{
				LineNumber: lineNum,
				Line:       text,
				Reason:     reason,
			})
		}
		f.Lines = append(f.Lines, Line{Raw: text})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return f, nil
}

// ParseString parses a service file from a string.
func (p *Parser) ParseString(content string) (*ServiceFile, error) {
	return p.Parse(strings.NewReader(content))
}
