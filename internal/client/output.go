package client

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/juju/errors"
	"gorm.io/datatypes"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/sync"
)

// AsRow renders obj in the API's row shape. Single relations are expanded
// into nested rows while depth > 0, else given as ids. Many relations are
// omitted at depth 0, listed as ids at depth 1 and expanded beyond.
func AsRow(ctx context.Context, b backend.Backend, obj backend.Object, depth int) (resource.Row, error) {
	c, err := b.ConcreteOf(obj)
	if err != nil {
		return nil, err
	}
	groups, err := sync.GroupFields(b, c)
	if err != nil {
		return nil, err
	}

	row := resource.Row{}
	for _, f := range groups.Scalars {
		v, err := b.GetField(obj, f.Name)
		if err != nil {
			return nil, err
		}
		if row[f.Name], err = plain(v); err != nil {
			return nil, errors.Annotatef(err, "%s.%s", c.Name(), f.Name)
		}
	}

	for _, f := range groups.SingleRefs {
		v, err := b.GetField(obj, f.Name)
		if err != nil {
			return nil, err
		}
		id, ok := refID(v)
		if !ok {
			row[f.Name] = nil
			continue
		}
		row[f.Name] = id
		if depth == 0 {
			continue
		}
		target, err := b.FieldConcrete(c, f.Name)
		if err != nil {
			return nil, err
		}
		rel, err := b.Object(ctx, target, id)
		if errors.Is(err, errors.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if row[f.Name], err = AsRow(ctx, b, rel, depth-1); err != nil {
			return nil, err
		}
	}

	if depth == 0 {
		return row, nil
	}
	for _, f := range groups.ManyRefs {
		v, err := b.GetField(obj, f.Name)
		if err != nil {
			return nil, err
		}
		objs, _ := v.([]backend.Object)
		items := make([]any, 0, len(objs))
		for _, o := range objs {
			if depth == 1 {
				items = append(items, o.GetID())
				continue
			}
			sub, err := AsRow(ctx, b, o, depth-1)
			if err != nil {
				return nil, err
			}
			items = append(items, sub)
		}
		row[f.Name] = items
	}
	return row, nil
}

// AsRow renders obj using the client's backend.
func (c *Client) AsRow(ctx context.Context, obj backend.Object, depth int) (resource.Row, error) {
	return AsRow(ctx, c.backend, obj, depth)
}

func refID(v any) (int64, bool) {
	if p, ok := v.(*int64); ok {
		if p == nil {
			return 0, false
		}
		v = *p
	}
	id, ok := resource.AsID(v)
	return id, ok && id != 0
}

// plain converts a stored field value to a JSON/YAML friendly value.
func plain(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil, nil
		}
		return t.UTC().Format(time.RFC3339), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return plain(*t)
	case *int64:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case *float64:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case *bool:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case datatypes.JSON:
		if len(t) == 0 {
			return nil, nil
		}
		var out any
		if err := gojson.Unmarshal(t, &out); err != nil {
			return nil, errors.Trace(err)
		}
		return out, nil
	}
	return v, nil
}
