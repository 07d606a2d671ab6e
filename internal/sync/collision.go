package sync

import (
	"context"

	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// UpdateCollision refreshes, from the API, every stored object that holds
// one of row's values on a field verr reports as already taken. A renamed
// remote object then frees the value before row is saved.
func (u *Updater) UpdateCollision(ctx context.Context, res resource.Resource, row resource.Row, verr *backend.ValidationError) error {
	c, err := u.backend.Concrete(res)
	if err != nil {
		return err
	}
	pk, _ := row.ID()
	for _, field := range verr.Uniqueness() {
		collision, err := u.backend.ObjectBy(ctx, c, field, row[field])
		if errors.Is(err, errors.NotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if collision.GetID() == pk {
			continue
		}
		u.log.Info().
			Str("resource", res.Tag()).
			Int64("pk", pk).
			Int64("collision", collision.GetID()).
			Str("field", field).
			Msg("Refreshing colliding object")
		if err := u.UpdateOne(ctx, res, collision.GetID(), 0); err != nil {
			return errors.Annotatef(err, "refreshing %s %d", res.Tag(), collision.GetID())
		}
	}
	return nil
}
