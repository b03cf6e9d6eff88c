// internal/menu/view.go
package menu

// View is the JSON representation of an entry and its children
type View struct {
	Name       string      `json:"name"`
	Key        string      `json:"key"`
	Kind       string      `json:"kind"`
	Value      string      `json:"value,omitempty"`
	Constant   bool        `json:"constant,omitempty"`
	Verified   bool        `json:"verified,omitempty"`
	Descriptor *Descriptor `json:"descriptor,omitempty"`
	Selection  []Choice    `json:"selection,omitempty"`
	Children   []View      `json:"children,omitempty"`
}

// Describe builds the view of an entry
func Describe(e Entry) View {
	v := View{Name: e.Name(), Key: e.Key(), Kind: e.Kind().String()}
	switch x := e.(type) {
	case *Submenu:
		for _, c := range x.children {
			v.Children = append(v.Children, Describe(c))
		}
	case *Parameter:
		v.Value = x.RawValue
		v.Constant = x.IsConstant()
		v.Verified = x.Verified
		v.Descriptor = x.Descriptor
		v.Selection = x.Selection
	}
	return v
}
