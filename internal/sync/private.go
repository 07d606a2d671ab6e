package sync

import (
	"context"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// PrivateDataFetched reports whether the local store already holds private
// data for res: a contact visible to users only, or an IX-F member list URL
// marked private.
func PrivateDataFetched(ctx context.Context, b backend.Backend, res resource.Resource) (bool, error) {
	if !resource.IsPrivate(res.Tag()) {
		return false, nil
	}
	c, err := b.Concrete(res)
	if err != nil {
		return false, err
	}

	switch res {
	case resource.NetworkContact:
		objs, err := b.ObjectsBy(ctx, c, "visible", "Users")
		if err != nil {
			return false, err
		}
		return len(objs) > 0, nil

	case resource.InternetExchangeLan:
		objs, err := b.ObjectsBy(ctx, c, "ixf_ixp_member_list_url_visible", "Private")
		if err != nil {
			return false, err
		}
		for _, obj := range objs {
			v, err := b.GetField(obj, "ixf_ixp_member_list_url")
			if err != nil {
				return false, err
			}
			if s, _ := v.(string); s != "" {
				return true, nil
			}
		}
	}
	return false, nil
}
