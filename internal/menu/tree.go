// internal/menu/tree.go
package menu

import "strings"

// PathSeparator separates the levels of a menu path such as "Setup>Sample rate"
const PathSeparator = ">"

// Tree is the discovered menu hierarchy
type Tree struct {
	Root *Submenu
}

// NewTree creates a tree whose root carries the firmware's main menu title
func NewTree(title string) *Tree {
	return &Tree{Root: NewSubmenu(title, "")}
}

// SplitPath lowercases a menu path and splits it into its non-empty levels
func SplitPath(path string) []string {
	var keys []string
	for _, k := range strings.Split(strings.ToLower(path), PathSeparator) {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Prune removes a top-level entry by case-insensitive name
func (t *Tree) Prune(name string) bool {
	for _, c := range t.Root.children {
		if strings.EqualFold(c.Name(), name) {
			return t.Root.Remove(c.Name())
		}
	}
	return false
}

// Walk visits every entry depth-first in listing order. keys holds the
// keystrokes leading to the entry, names its path.
func (t *Tree) Walk(fn func(e Entry, names, keys []string)) {
	walk(t.Root, nil, nil, fn)
}

func walk(s *Submenu, names, keys []string, fn func(Entry, []string, []string)) {
	for _, c := range s.children {
		n := append(append([]string(nil), names...), c.Name())
		k := append(append([]string(nil), keys...), c.Key())
		fn(c, n, k)
		if sub, ok := c.(*Submenu); ok {
			walk(sub, n, k, fn)
		}
	}
}

// Clone returns a deep copy of the tree structure. Parameters are copied
// by value so the clone can be consumed without touching the original.
func (t *Tree) Clone() *Tree {
	return &Tree{Root: cloneSubmenu(t.Root)}
}

func cloneSubmenu(s *Submenu) *Submenu {
	out := NewSubmenu(s.name, s.key)
	for _, c := range s.children {
		switch v := c.(type) {
		case *Submenu:
			out.children = append(out.children, cloneSubmenu(v))
		case *Parameter:
			p := *v
			p.Selection = append([]Choice(nil), v.Selection...)
			out.children = append(out.children, &p)
		case *Action:
			a := *v
			out.children = append(out.children, &a)
		}
	}
	return out
}

// Retrieve searches the tree for path and returns the keystrokes that
// select the entry. Each level matches the first child whose lowercase
// name contains the level; if the first level is not found, every submenu
// is searched in turn. The matched entry is removed from the tree, as is
// every submenu the removal leaves empty.
func (t *Tree) Retrieve(path string) ([]string, bool) {
	keys := SplitPath(path)
	if len(keys) == 0 {
		return nil, false
	}
	return retrieve(t.Root, keys, nil)
}

func retrieve(s *Submenu, keys, ids []string) ([]string, bool) {
	for _, c := range s.children {
		if !strings.Contains(strings.ToLower(c.Name()), keys[0]) {
			continue
		}
		if len(keys) == 1 {
			s.Remove(c.Name())
			return append(ids, c.Key()), true
		}
		sub, ok := c.(*Submenu)
		if !ok {
			return nil, false
		}
		found, ok := retrieve(sub, keys[1:], append(ids, c.Key()))
		if !ok {
			return nil, false
		}
		if sub.Len() == 0 {
			s.Remove(sub.Name())
		}
		return found, true
	}

	for _, c := range s.children {
		sub, ok := c.(*Submenu)
		if !ok {
			continue
		}
		if found, ok := retrieve(sub, keys, append(ids, c.Key())); ok {
			if sub.Len() == 0 {
				s.Remove(sub.Name())
			}
			return found, true
		}
	}
	return nil, false
}
