package backend

import (
	"sort"

	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/resource"
)

// Kind classifies a field of a concrete type.
type Kind int

const (
	Scalar Kind = iota
	SingleRef
	ManyRef
)

func (k Kind) String() string {
	switch k {
	case SingleRef:
		return "single_ref"
	case ManyRef:
		return "many_ref"
	default:
		return "scalar"
	}
}

// ValueType is the Go type a scalar field converts into.
type ValueType int

const (
	String ValueType = iota
	Int
	NullInt
	Float
	NullFloat
	Bool
	NullBool
	Time
	NullTime
	JSON
)

// Field describes one entry of a concrete type's schema table.
type Field struct {
	Name   string
	Column string
	Kind   Kind
	Type   ValueType
	// Target is the related resource for SingleRef and ManyRef fields.
	Target    resource.Resource
	Required  bool
	Unique    bool
	MaxLength int
	// Label is the human name used in validation messages ("ASN").
	Label string
}

// Related reports whether f points at another resource.
func (f Field) Related() bool { return f.Kind != Scalar }

// Multiple reports whether f is a many-relation.
func (f Field) Multiple() bool { return f.Kind == ManyRef }

// DisplayLabel returns Label or a capitalized Name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	if f.Name == "" {
		return ""
	}
	b := []byte(f.Name)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	for i := range b {
		if b[i] == '_' {
			b[i] = ' '
		}
	}
	return string(b)
}

// Concrete is the local storage type bound to a resource.
type Concrete struct {
	Resource resource.Resource
	Fields   []Field
	New      func() Object
}

// Name is the model name used in messages, e.g. "Network".
func (c *Concrete) Name() string {
	if c == nil {
		return ""
	}
	return c.Resource.Name()
}

// Field finds a field by name, falling back to its storage column.
func (c *Concrete) Field(name string) (Field, bool) {
	if c == nil {
		return Field{}, false
	}
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range c.Fields {
		if f.Column == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry maps resources to their concrete types.
type Registry struct {
	byRes map[resource.Resource]*Concrete
}

// NewRegistry builds a registry from concrete types.
func NewRegistry(cs ...*Concrete) *Registry {
	r := &Registry{byRes: make(map[resource.Resource]*Concrete, len(cs))}
	for _, c := range cs {
		r.byRes[c.Resource] = c
	}
	return r
}

// Concrete returns the concrete type bound to res.
func (r *Registry) Concrete(res resource.Resource) (*Concrete, error) {
	c, ok := r.byRes[res]
	if !ok {
		return nil, errors.NotFoundf("concrete type for resource %q", res.Tag())
	}
	return c, nil
}

// All returns the registered concrete types in canonical resource order,
// followed by any others sorted by tag.
func (r *Registry) All() []*Concrete {
	out := make([]*Concrete, 0, len(r.byRes))
	seen := make(map[resource.Resource]bool, len(r.byRes))
	for _, res := range resource.All() {
		if c, ok := r.byRes[res]; ok {
			out = append(out, c)
			seen[res] = true
		}
	}
	var rest []*Concrete
	for res, c := range r.byRes {
		if !seen[res] {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Resource.Tag() < rest[j].Resource.Tag() })
	return append(out, rest...)
}
