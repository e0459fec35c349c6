package nn

import (
	"sort"
	"strings"

	"github.com/menphim/primitiv/internal/tensor"
)

// Model groups named parameters and named submodels into a tree.
//
// Names are unique within one model across parameters and submodels.
// A model cannot contain itself, directly or through its submodels.
type Model struct {
	params map[string]*Parameter
	subs   map[string]*Model
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{params: make(map[string]*Parameter), subs: make(map[string]*Model)}
}

func (m *Model) checkName(op, name string) error {
	if name == "" || strings.Contains(name, ".") {
		return tensor.Validationf("%s: invalid name %q", op, name)
	}
	if _, ok := m.params[name]; ok {
		return tensor.Validationf("%s: name %q already used by a parameter", op, name)
	}
	if _, ok := m.subs[name]; ok {
		return tensor.Validationf("%s: name %q already used by a submodel", op, name)
	}
	return nil
}

// AddParameter registers p under name.
func (m *Model) AddParameter(name string, p *Parameter) error {
	if err := m.checkName("add parameter", name); err != nil {
		return err
	}
	if !p.Valid() {
		return tensor.InvalidObjectf("add parameter: %q is invalid", name)
	}
	for other, q := range m.params {
		if q == p {
			return tensor.Validationf("add parameter: already registered as %q", other)
		}
	}
	m.params[name] = p
	return nil
}

// AddSubmodel registers sub under name.
func (m *Model) AddSubmodel(name string, sub *Model) error {
	if err := m.checkName("add submodel", name); err != nil {
		return err
	}
	if sub == nil {
		return tensor.InvalidObjectf("add submodel: %q is nil", name)
	}
	if sub.contains(m) {
		return tensor.Validationf("add submodel: %q would create a cycle", name)
	}
	for other, s := range m.subs {
		if s == sub {
			return tensor.Validationf("add submodel: already registered as %q", other)
		}
	}
	m.subs[name] = sub
	return nil
}

// contains reports whether target is m or one of its descendants.
func (m *Model) contains(target *Model) bool {
	if m == target {
		return true
	}
	for _, s := range m.subs {
		if s.contains(target) {
			return true
		}
	}
	return false
}

// Parameter returns the direct parameter called name.
func (m *Model) Parameter(name string) (*Parameter, error) {
	p, ok := m.params[name]
	if !ok {
		return nil, tensor.InvalidObjectf("parameter: no entry %q", name)
	}
	return p, nil
}

// Submodel returns the direct submodel called name.
func (m *Model) Submodel(name string) (*Model, error) {
	s, ok := m.subs[name]
	if !ok {
		return nil, tensor.InvalidObjectf("submodel: no entry %q", name)
	}
	return s, nil
}

// FindParameter follows path through submodels to a parameter, e.g.
// FindParameter("encoder", "w").
func (m *Model) FindParameter(path ...string) (*Parameter, error) {
	if len(path) == 0 {
		return nil, tensor.Validationf("find parameter: empty path")
	}
	cur := m
	for _, name := range path[:len(path)-1] {
		s, err := cur.Submodel(name)
		if err != nil {
			return nil, err
		}
		cur = s
	}
	return cur.Parameter(path[len(path)-1])
}

// AllParameters returns every parameter in the tree keyed by its
// dot-separated path.
func (m *Model) AllParameters() map[string]*Parameter {
	out := make(map[string]*Parameter)
	m.collect("", out)
	return out
}

func (m *Model) collect(prefix string, out map[string]*Parameter) {
	for name, p := range m.params {
		out[prefix+name] = p
	}
	for name, s := range m.subs {
		s.collect(prefix+name+".", out)
	}
}

// Parameters returns the distinct parameters of the tree ordered by path.
func (m *Model) Parameters() []*Parameter {
	all := m.AllParameters()
	paths := make([]string, 0, len(all))
	for path := range all {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	seen := make(map[*Parameter]struct{}, len(paths))
	out := make([]*Parameter, 0, len(paths))
	for _, path := range paths {
		p := all[path]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
