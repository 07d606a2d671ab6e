package sync

import (
	"context"

	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// ErrReferenceCycle is returned when materializing an object requires
// materializing itself first, e.g. when two objects swap a unique value.
// It fails the row being synced, not the whole run.
const ErrReferenceCycle = errors.ConstError("reference cycle")

// CreateObject builds an unsaved object from row. Related objects missing
// locally are fetched and stored first. The object is validated; when it
// collides with stored objects on unique fields, the colliding objects are
// refreshed from the API and needsRetry is set so that the caller saves obj
// after the objects it collided with.
func (u *Updater) CreateObject(ctx context.Context, res resource.Resource, row resource.Row) (obj backend.Object, needsRetry bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	pk, ok := row.ID()
	if !ok {
		return nil, false, errors.NotValidf("%s row without id", res.Tag())
	}
	key := objectKey{tag: res.Tag(), pk: pk}
	if !u.pending.enter(key) {
		return nil, false, errors.Annotatef(ErrReferenceCycle, "%s %d", res.Tag(), pk)
	}
	defer u.pending.leave(key)

	c, err := u.backend.Concrete(res)
	if err != nil {
		return nil, false, err
	}
	groups, err := GroupFields(u.backend, c)
	if err != nil {
		return nil, false, err
	}
	fetched, dangling, err := ExtractRelations(u.backend, res, row)
	if err != nil {
		return nil, false, err
	}
	if err := u.resolveRelated(ctx, fetched, dangling); err != nil {
		return nil, false, err
	}

	obj, err = u.backend.Object(ctx, c, pk)
	if errors.Is(err, errors.NotFound) {
		obj, err = u.backend.New(c), nil
	}
	if err != nil {
		return nil, false, err
	}

	for _, f := range groups.Scalars {
		v, ok := row[f.Name]
		if !ok {
			if v, err = u.backend.GetField(obj, f.Name); err != nil {
				return nil, false, err
			}
		}
		v, err = u.backend.ConvertField(c, f.Name, v)
		if err != nil {
			return nil, false, err
		}
		if err := u.backend.SetField(obj, f.Name, v); err != nil {
			return nil, false, err
		}
	}
	if err := setSingleRelations(u.backend, obj, row, groups); err != nil {
		return nil, false, err
	}
	if err := setManyRelations(ctx, u.backend, c, obj, row, groups); err != nil {
		return nil, false, err
	}

	err = u.backend.Clean(ctx, obj)
	if err == nil {
		return obj, false, nil
	}
	verr, ok := backend.AsValidationError(err)
	switch {
	case !ok:
		return nil, false, err
	case verr.OnlyBlank():
		return obj, false, nil
	case len(verr.Uniqueness()) == 0:
		return nil, false, err
	}

	u.log.Debug().Str("resource", res.Tag()).Int64("pk", pk).Strs("fields", verr.Uniqueness()).Msg("Resolving collision")
	if err := u.UpdateCollision(ctx, res, row, verr); err != nil {
		return nil, false, err
	}
	if err := u.CleanObject(ctx, obj); err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// resolveRelated stores the related objects that are missing locally,
// fetching the bare-id ones first.
func (u *Updater) resolveRelated(ctx context.Context, fetched Fetched, dangling Dangling) error {
	for _, res := range resource.All() {
		for _, pk := range dangling.PKs(res) {
			missing, err := u.missing(ctx, res, pk)
			if err != nil {
				return err
			}
			if !missing {
				continue
			}
			row, err := u.fetcher.Get(ctx, res.Tag(), pk, 0, false)
			if err != nil {
				return errors.Annotatef(err, "fetching %s %d", res.Tag(), pk)
			}
			if err := u.storeRelated(ctx, res, row); err != nil {
				return err
			}
		}
	}

	for _, res := range resource.All() {
		for pk, row := range fetched[res] {
			missing, err := u.missing(ctx, res, pk)
			if err != nil {
				return err
			}
			if !missing {
				continue
			}
			if err := u.storeRelated(ctx, res, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *Updater) missing(ctx context.Context, res resource.Resource, pk int64) (bool, error) {
	c, err := u.backend.Concrete(res)
	if err != nil {
		return false, err
	}
	_, err = u.backend.Object(ctx, c, pk)
	if errors.Is(err, errors.NotFound) {
		return true, nil
	}
	return false, err
}

func (u *Updater) storeRelated(ctx context.Context, res resource.Resource, row resource.Row) error {
	pk, _ := row.ID()
	obj, _, err := u.CreateObject(ctx, res, row)
	if err != nil {
		return errors.Annotatef(err, "related %s %d", res.Tag(), pk)
	}
	u.log.Debug().Str("resource", res.Tag()).Int64("pk", pk).Msg("Storing related object")
	return errors.Annotatef(u.backend.Save(ctx, obj), "saving related %s %d", res.Tag(), pk)
}
