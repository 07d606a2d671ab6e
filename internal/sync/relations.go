package sync

import (
	"context"
	"sort"

	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// Fetched holds related objects whose full payload arrived inline.
type Fetched map[resource.Resource]map[int64]resource.Row

// Dangling holds related objects given only by id.
type Dangling map[resource.Resource]map[int64]struct{}

// PKs returns the dangling ids of res in ascending order.
func (d Dangling) PKs(res resource.Resource) []int64 {
	pks := make([]int64, 0, len(d[res]))
	for pk := range d[res] {
		pks = append(pks, pk)
	}
	sort.Slice(pks, func(i, j int) bool { return pks[i] < pks[j] })
	return pks
}

// Has reports whether res/pk is dangling.
func (d Dangling) Has(res resource.Resource, pk int64) bool {
	_, ok := d[res][pk]
	return ok
}

// subrow resolves the value of a single relation: the storage column
// (e.g. "org_id") is preferred, the field name ("org") is the fallback.
func subrow(row resource.Row, f backend.Field) (string, any) {
	if v, ok := row[f.Column]; ok && v != nil {
		return f.Column, v
	}
	return f.Name, row[f.Name]
}

type relations struct {
	fetched  Fetched
	dangling Dangling
}

func (r *relations) add(res resource.Resource, v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	if sub, ok := resource.AsRow(v); ok {
		pk, ok := sub.ID()
		if !ok {
			return 0, errors.NotValidf("nested %s without id", res.Tag())
		}
		if r.fetched[res] == nil {
			r.fetched[res] = map[int64]resource.Row{}
		}
		r.fetched[res][pk] = sub
		delete(r.dangling[res], pk)
		return pk, nil
	}
	pk, ok := resource.AsID(v)
	if !ok {
		return 0, errors.NotValidf("%s reference %v", res.Tag(), v)
	}
	if _, done := r.fetched[res][pk]; done {
		return pk, nil
	}
	if r.dangling[res] == nil {
		r.dangling[res] = map[int64]struct{}{}
	}
	r.dangling[res][pk] = struct{}{}
	return pk, nil
}

// ExtractRelations splits the related objects referenced by row into those
// delivered inline and those given as bare ids. A (resource, pk) pair ends
// up in at most one of the two maps.
func ExtractRelations(b backend.Backend, res resource.Resource, row resource.Row) (Fetched, Dangling, error) {
	c, err := b.Concrete(res)
	if err != nil {
		return nil, nil, err
	}
	groups, err := GroupFields(b, c)
	if err != nil {
		return nil, nil, err
	}
	rel := &relations{fetched: Fetched{}, dangling: Dangling{}}

	for _, f := range groups.SingleRefs {
		target, err := fieldResource(b, c, f)
		if err != nil {
			return nil, nil, err
		}
		_, v := subrow(row, f)
		if _, err := rel.add(target, v); err != nil {
			return nil, nil, errors.Annotatef(err, "%s.%s", res.Tag(), f.Name)
		}
	}

	for _, f := range groups.ManyRefs {
		target, err := fieldResource(b, c, f)
		if err != nil {
			return nil, nil, err
		}
		items, _ := row[f.Name].([]any)
		for _, v := range items {
			if _, err := rel.add(target, v); err != nil {
				return nil, nil, errors.Annotatef(err, "%s.%s", res.Tag(), f.Name)
			}
		}
	}
	return rel.fetched, rel.dangling, nil
}

func fieldResource(b backend.Backend, c *backend.Concrete, f backend.Field) (resource.Resource, error) {
	target, err := b.FieldConcrete(c, f.Name)
	if err != nil {
		return resource.Resource{}, err
	}
	return b.Resource(target), nil
}

// setSingleRelations assigns foreign keys by id.
func setSingleRelations(b backend.Backend, obj backend.Object, row resource.Row, groups FieldGroups) error {
	for _, f := range groups.SingleRefs {
		key, v := subrow(row, f)
		if sub, ok := resource.AsRow(v); ok {
			v = sub["id"]
		}
		if err := b.SetField(obj, key, v); err != nil {
			return err
		}
	}
	return nil
}

// setManyRelations replaces many-relations listed in row with the stored
// objects they name. Relations absent from the row are left alone.
func setManyRelations(ctx context.Context, b backend.Backend, c *backend.Concrete, obj backend.Object, row resource.Row, groups FieldGroups) error {
	for _, f := range groups.ManyRefs {
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		items, _ := v.([]any)
		pks := make([]int64, 0, len(items))
		seen := map[int64]bool{}
		for _, item := range items {
			if sub, ok := resource.AsRow(item); ok {
				item = sub["id"]
			}
			pk, ok := resource.AsID(item)
			if !ok {
				return errors.NotValidf("%s.%s reference %v", c.Name(), f.Name, item)
			}
			if !seen[pk] {
				seen[pk] = true
				pks = append(pks, pk)
			}
		}

		target, err := b.FieldConcrete(c, f.Name)
		if err != nil {
			return err
		}
		var objs []backend.Object
		if len(pks) > 0 {
			if objs, err = b.Objects(ctx, target, pks...); err != nil {
				return err
			}
			if len(objs) != len(pks) {
				return errors.NotFoundf("%d of %d %s for %s.%s", len(pks)-len(objs), len(pks), target.Name(), c.Name(), f.Name)
			}
		}
		if err := b.SetManyToMany(obj, f.Name, objs); err != nil {
			return err
		}
	}
	return nil
}
