// internal/menu/index.go
package menu

import "strings"

// Indexed is an entry together with its location in the tree
type Indexed struct {
	Path  string
	Names []string
	Keys  []string
	Entry Entry
}

// Index is a flat, case-insensitive path lookup built once after discovery
type Index struct {
	order  []*Indexed
	byPath map[string]*Indexed
}

// NewIndex indexes every entry of the tree. When two entries share a
// path the first one in listing order wins.
func NewIndex(t *Tree) *Index {
	idx := &Index{byPath: make(map[string]*Indexed)}
	t.Walk(func(e Entry, names, keys []string) {
		item := &Indexed{
			Path:  strings.Join(names, PathSeparator),
			Names: names,
			Keys:  keys,
			Entry: e,
		}
		idx.order = append(idx.order, item)
		lower := strings.ToLower(item.Path)
		if _, ok := idx.byPath[lower]; !ok {
			idx.byPath[lower] = item
		}
	})
	return idx
}

// Find looks up a path such as "Setup>Sample rate". Levels are compared
// case-insensitively. If the full path is unknown, the first entry whose
// path ends with the given levels is returned.
func (idx *Index) Find(path string) (*Indexed, bool) {
	keys := SplitPath(path)
	if len(keys) == 0 {
		return nil, false
	}
	if item, ok := idx.byPath[strings.Join(keys, PathSeparator)]; ok {
		return item, true
	}
	for _, item := range idx.order {
		if hasSuffixPath(item.Names, keys) {
			return item, true
		}
	}
	return nil, false
}

// Parameters returns every indexed parameter in listing order
func (idx *Index) Parameters() []*Indexed {
	var out []*Indexed
	for _, item := range idx.order {
		if item.Entry.Kind() == KindParameter {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of indexed entries
func (idx *Index) Len() int { return len(idx.order) }

func hasSuffixPath(names, keys []string) bool {
	if len(keys) > len(names) {
		return false
	}
	off := len(names) - len(keys)
	for i, k := range keys {
		if strings.ToLower(strings.TrimSpace(names[off+i])) != k {
			return false
		}
	}
	return true
}
