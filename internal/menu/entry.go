// internal/menu/entry.go
package menu

import "strings"

// Kind identifies the variant of a menu entry
type Kind int

const (
	KindSubmenu Kind = iota
	KindParameter
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindSubmenu:
		return "submenu"
	case KindParameter:
		return "parameter"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Entry is a node of the menu tree. Concrete types are *Submenu,
// *Parameter and *Action.
type Entry interface {
	Name() string
	Key() string
	Kind() Kind
}

// Submenu is an entry whose children are listed in firmware order
type Submenu struct {
	name     string
	key      string
	children []Entry
}

// NewSubmenu creates an empty submenu
func NewSubmenu(name, key string) *Submenu {
	return &Submenu{name: name, key: key}
}

func (s *Submenu) Name() string { return s.name }
func (s *Submenu) Key() string  { return s.key }
func (s *Submenu) Kind() Kind   { return KindSubmenu }

// Children returns the children in listing order
func (s *Submenu) Children() []Entry {
	out := make([]Entry, len(s.children))
	copy(out, s.children)
	return out
}

// ChildAt returns the i-th child in listing order
func (s *Submenu) ChildAt(i int) Entry { return s.children[i] }

// Len returns the number of children
func (s *Submenu) Len() int { return len(s.children) }

// Child returns the child with the exact name, or nil
func (s *Submenu) Child(name string) Entry {
	if i := s.indexOf(name); i >= 0 {
		return s.children[i]
	}
	return nil
}

// Set replaces the child with the same name in place, or appends it
func (s *Submenu) Set(e Entry) {
	if i := s.indexOf(e.Name()); i >= 0 {
		s.children[i] = e
		return
	}
	s.children = append(s.children, e)
}

// Merge sets every entry in order
func (s *Submenu) Merge(entries []Entry) {
	for _, e := range entries {
		s.Set(e)
	}
}

// Remove deletes the child with the exact name
func (s *Submenu) Remove(name string) bool {
	i := s.indexOf(name)
	if i < 0 {
		return false
	}
	s.children = append(s.children[:i], s.children[i+1:]...)
	return true
}

func (s *Submenu) indexOf(name string) int {
	for i, c := range s.children {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// Parameter is a settable value. An empty key marks a constant the
// firmware shows but does not allow to edit.
type Parameter struct {
	name       string
	key        string
	RawValue   string
	Descriptor *Descriptor
	Selection  []Choice
	Verified   bool
}

// NewParameter creates a parameter with the value shown in its listing
func NewParameter(name, key, raw string) *Parameter {
	return &Parameter{name: name, key: key, RawValue: raw}
}

func (p *Parameter) Name() string { return p.name }
func (p *Parameter) Key() string  { return p.key }
func (p *Parameter) Kind() Kind   { return KindParameter }

// IsConstant reports whether the parameter has no keystroke
func (p *Parameter) IsConstant() bool { return p.key == "" }

// Choice returns the selection entry whose label matches case-insensitively
func (p *Parameter) Choice(label string) (Choice, bool) {
	label = strings.TrimSpace(strings.ToLower(label))
	for _, c := range p.Selection {
		if strings.ToLower(c.Label) == label {
			return c, true
		}
	}
	return Choice{}, false
}

// Matches reports whether value is the parameter's current value
func (p *Parameter) Matches(value string) bool {
	return p.Descriptor.Equal(p.RawValue, value)
}

// Action is an executable entry
type Action struct {
	name string
	key  string
}

// NewAction creates an action entry
func NewAction(name, key string) *Action {
	return &Action{name: name, key: key}
}

func (a *Action) Name() string { return a.name }
func (a *Action) Key() string  { return a.key }
func (a *Action) Kind() Kind   { return KindAction }
