package sync

import (
	"github.com/xelth-com/pdbsync/internal/backend"
)

// FieldGroups partitions the fields of a concrete type by relation kind.
type FieldGroups struct {
	Scalars    []backend.Field
	SingleRefs []backend.Field
	ManyRefs   []backend.Field
}

// GroupFields classifies every field of c by asking the backend whether it
// is related and whether it is multiple. Field order is preserved.
func GroupFields(b backend.Backend, c *backend.Concrete) (FieldGroups, error) {
	var g FieldGroups
	for _, f := range b.Fields(c) {
		related, multiple, err := b.IsFieldRelated(c, f.Name)
		if err != nil {
			return FieldGroups{}, err
		}
		switch {
		case related && multiple:
			g.ManyRefs = append(g.ManyRefs, f)
		case related:
			g.SingleRefs = append(g.SingleRefs, f)
		default:
			g.Scalars = append(g.Scalars, f)
		}
	}
	return g, nil
}

// Names returns the field names of every group, scalars first.
func (g FieldGroups) Names() []string {
	names := make([]string, 0, len(g.Scalars)+len(g.SingleRefs)+len(g.ManyRefs))
	for _, group := range [][]backend.Field{g.Scalars, g.SingleRefs, g.ManyRefs} {
		for _, f := range group {
			names = append(names, f.Name)
		}
	}
	return names
}
