// internal/menu/listing.go
package menu

import (
	"strings"
	"unicode"
)

// ParseListing extracts the entries of the listing block titled title.
// The block opens with a line containing "<title>:" and closes with the
// last following selection prompt. Interior lines may contain "Select"
// as part of an entry name. It returns nil when the block is incomplete.
func ParseListing(lines []string, title string) []Entry {
	start, end := -1, -1
	header := title + ":"
	for i, l := range lines {
		if start < 0 {
			if strings.Contains(l, header) {
				start = i
			}
			continue
		}
		if IsSelectPrompt(l) {
			end = i
		}
	}
	if start < 0 || end < 0 {
		return nil
	}

	var entries []Entry
	for _, l := range lines[start+1 : end] {
		if e := ParseListingLine(l); e != nil {
			entries = append(entries, e)
		}
	}
	return entries
}

// IsSelectPrompt reports whether line is the menu's selection prompt,
// "Select: " or "Select [n]: " with a default entry
func IsSelectPrompt(line string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Select")
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, ":")
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return true
	}
	def, ok := strings.CutPrefix(rest, "[")
	if !ok {
		return false
	}
	def, ok = strings.CutSuffix(def, "]")
	return ok && isDigits(def)
}

// ParseListingLine parses one line of a listing block such as
// "3) Sample rate: 100Hz". It returns nil for blank lines.
func ParseListingLine(line string) Entry {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	key, rest := "", line
	if token, after, _ := strings.Cut(line, " "); strings.HasSuffix(token, ")") {
		key = strings.TrimSuffix(token, ")")
		rest = strings.TrimSpace(after)
	}

	if strings.HasSuffix(rest, "...") {
		name := rest
		for strings.HasSuffix(name, "...") {
			name = strings.TrimRightFunc(strings.TrimSuffix(name, "..."), unicode.IsSpace)
		}
		return NewSubmenu(name, key)
	}
	if name, value, ok := strings.Cut(rest, ":"); ok {
		return NewParameter(strings.TrimSpace(name), key, strings.TrimSpace(value))
	}
	return NewAction(rest, key)
}

// ParameterScreen is the firmware's response to selecting a parameter
type ParameterScreen struct {
	DescriptorText string
	SelectionLines []string
}

// ParseParameterScreen locates the parameter header (the first line
// starting with the parameter name) and the input prompt (the first line
// containing "new value" and ending with ":").
func ParseParameterScreen(lines []string, name string) (ParameterScreen, bool) {
	start, end := -1, -1
	lname := strings.ToLower(name)
	for i, l := range lines {
		lower := strings.ToLower(l)
		if start < 0 && strings.HasPrefix(lower, lname) {
			start = i + 1
		} else if end < 0 && strings.Contains(lower, "new value") &&
			strings.HasSuffix(strings.TrimRightFunc(l, unicode.IsSpace), ":") {
			end = i
		}
	}
	if start < 0 || end < 0 || end < start {
		return ParameterScreen{}, false
	}
	return ParameterScreen{
		DescriptorText: descriptorText(lines[end]),
		SelectionLines: lines[start:end],
	}, true
}

func descriptorText(prompt string) string {
	i := strings.Index(strings.ToLower(prompt), "new value")
	rest := prompt[i:]
	open := strings.Index(rest, "(")
	if open < 0 {
		return ""
	}
	rest = rest[open+1:]
	if end := strings.LastIndex(rest, "):"); end >= 0 {
		return rest[:end]
	}
	return strings.TrimSuffix(strings.TrimRightFunc(rest, unicode.IsSpace), ":")
}

// Choice is one entry of a parameter's selection list. ID is empty when
// the firmware does not number the entry.
type Choice struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
}

// ParseSelection parses lines of the form "  - 1) label" or "  - label"
func ParseSelection(lines []string) []Choice {
	var choices []Choice
	for _, l := range lines {
		s := strings.TrimSpace(l)
		if s == "" {
			continue
		}
		s = strings.TrimPrefix(s, "- ")
		if id, label, ok := strings.Cut(s, ") "); ok && isDigits(id) {
			choices = append(choices, Choice{ID: id, Label: label})
			continue
		}
		choices = append(choices, Choice{Label: s})
	}
	return choices
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
