package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/config"
	"github.com/xelth-com/pdbsync/internal/models"
	"github.com/xelth-com/pdbsync/internal/resource"
)

func newTestBackend(t *testing.T, reg *backend.Registry) *Backend {
	t.Helper()
	db, err := Connect(config.DatabaseConfig{
		Engine:   config.EngineSQLite,
		Database: filepath.Join(t.TempDir(), "peeringdb.sqlite3"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b := NewBackend(db, reg)
	require.NoError(t, b.Migrate(context.Background()))
	return b
}

func concrete(t *testing.T, b backend.Backend, res resource.Resource) *backend.Concrete {
	t.Helper()
	c, err := b.Concrete(res)
	require.NoError(t, err)
	return c
}

func saveOrg(t *testing.T, b *Backend, id int64, name string) *models.Organization {
	t.Helper()
	org := &models.Organization{Base: models.Base{ID: id, Status: "ok", Updated: time.Unix(1000+id, 0).UTC()}, Name: name}
	require.NoError(t, b.Save(context.Background(), org))
	return org
}

func TestObjectMissing(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()

	_, err := b.Object(ctx, concrete(t, b, resource.Network), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = b.ObjectBy(ctx, concrete(t, b, resource.Network), "asn", 65000)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestSetFieldAndSave(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()
	saveOrg(t, b, 5, "Org Five")

	netC := concrete(t, b, resource.Network)
	obj := b.New(netC)
	require.NoError(t, b.SetField(obj, "id", float64(1)))
	require.NoError(t, b.SetField(obj, "name", "Net One"))
	require.NoError(t, b.SetField(obj, "asn", float64(65001)))
	require.NoError(t, b.SetField(obj, "org_id", float64(5)))
	require.NoError(t, b.SetField(obj, "info_prefixes4", nil))
	require.NoError(t, b.SetField(obj, "social_media", []any{map[string]any{"service": "website", "identifier": "x"}}))
	require.NoError(t, b.SetField(obj, "updated", "2024-03-01T10:00:00Z"))
	require.NoError(t, b.Clean(ctx, obj))
	require.NoError(t, b.Save(ctx, obj))

	got, err := b.Object(ctx, netC, 1)
	require.NoError(t, err)
	net := got.(*models.Network)
	assert.Equal(t, "Net One", net.Name)
	assert.EqualValues(t, 5, net.OrgID)
	assert.EqualValues(t, 65001, net.ASN)
	assert.Nil(t, net.InfoPrefixes4)
	assert.JSONEq(t, `[{"service":"website","identifier":"x"}]`, string(net.SocialMedia))

	org, err := b.GetField(got, "org")
	require.NoError(t, err)
	assert.EqualValues(t, 5, org)

	byASN, err := b.ObjectBy(ctx, netC, "asn", float64(65001))
	require.NoError(t, err)
	assert.EqualValues(t, 1, byASN.GetID())
}

func TestConvertField(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	netC := concrete(t, b, resource.Network)

	v, err := b.ConvertField(netC, "updated", "2024-03-01T10:00:00+02:00")
	require.NoError(t, err)
	ts := v.(time.Time)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, 10, ts.Hour(), "wall clock is kept")

	v, err = b.ConvertField(netC, "rir_status_updated", nil)
	require.NoError(t, err)
	assert.Nil(t, v.(*time.Time))

	v, err = b.ConvertField(netC, "info_prefixes6", float64(12))
	require.NoError(t, err)
	assert.EqualValues(t, 12, *v.(*int64))

	v, err = b.ConvertField(netC, "info_ipv6", nil)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = b.ConvertField(netC, "info_types", []any{"NSP"})
	require.NoError(t, err)
	assert.Equal(t, datatypes.JSON(`["NSP"]`), v)

	_, err = b.ConvertField(netC, "asn", "not a number")
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = b.ConvertField(netC, "nope", 1)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestClean(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()
	saveOrg(t, b, 1, "Taken")

	t.Run("blank only", func(t *testing.T) {
		err := b.Clean(ctx, &models.Organization{Base: models.Base{ID: 2}})
		verr, ok := backend.AsValidationError(err)
		require.True(t, ok)
		assert.True(t, verr.OnlyBlank())
	})

	t.Run("too long", func(t *testing.T) {
		err := b.Clean(ctx, &models.Organization{Base: models.Base{ID: 2}, Name: strings.Repeat("x", 300)})
		verr, ok := backend.AsValidationError(err)
		require.True(t, ok)
		assert.False(t, verr.OnlyBlank())
		assert.Empty(t, verr.Uniqueness())
	})

	t.Run("uniqueness", func(t *testing.T) {
		err := b.Clean(ctx, &models.Organization{Base: models.Base{ID: 2}, Name: "Taken"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.AlreadyExists))
		verr, _ := backend.AsValidationError(err)
		assert.Equal(t, []string{"name"}, verr.Uniqueness())
		assert.Contains(t, verr.Fields["name"][0], "Organization with this Name already exists.")
	})

	t.Run("same object keeps its name", func(t *testing.T) {
		assert.NoError(t, b.Clean(ctx, &models.Organization{Base: models.Base{ID: 1}, Name: "Taken"}))
	})

	t.Run("missing relation", func(t *testing.T) {
		err := b.Clean(ctx, &models.Network{Base: models.Base{ID: 9}, Name: "N", ASN: 9, OrgID: 77})
		verr, ok := backend.AsValidationError(err)
		require.True(t, ok)
		assert.Contains(t, verr.Fields["org"][0], "does not exist")
	})

	t.Run("null relation", func(t *testing.T) {
		err := b.Clean(ctx, &models.Network{Base: models.Base{ID: 9}, Name: "N", ASN: 9})
		verr, ok := backend.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, []string{"This field cannot be null."}, verr.Fields["org"])
	})

	t.Run("optional relation", func(t *testing.T) {
		assert.NoError(t, b.Clean(ctx, &models.Facility{Base: models.Base{ID: 3}, Name: "Fac", OrgID: 1}))
	})
}

func TestBulkCreateUpserts(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()
	orgC := concrete(t, b, resource.Organization)

	objs := []backend.Object{
		&models.Organization{Base: models.Base{ID: 1}, Name: "One"},
		&models.Organization{Base: models.Base{ID: 2}, Name: "Two"},
	}
	require.NoError(t, b.BulkCreate(ctx, orgC, objs))
	require.NoError(t, b.BulkCreate(ctx, orgC, []backend.Object{
		&models.Organization{Base: models.Base{ID: 2}, Name: "Two Renamed"},
	}))

	all, err := b.Objects(ctx, orgC)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Two Renamed", all[1].(*models.Organization).Name)

	some, err := b.Objects(ctx, orgC, 1)
	require.NoError(t, err)
	require.Len(t, some, 1)

	byName, err := b.ObjectsBy(ctx, orgC, "name", "One")
	require.NoError(t, err)
	require.Len(t, byName, 1)

	n, err := b.Count(ctx, orgC)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestLastChange(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()
	orgC := concrete(t, b, resource.Organization)

	ts, err := b.LastChange(ctx, orgC)
	require.NoError(t, err)
	assert.Zero(t, ts)

	saveOrg(t, b, 1, "One")
	saveOrg(t, b, 7, "Seven")
	saveOrg(t, b, 3, "Three")

	ts, err = b.LastChange(ctx, orgC)
	require.NoError(t, err)
	assert.EqualValues(t, 1007, ts)
}

func TestAtomicRollback(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()
	orgC := concrete(t, b, resource.Organization)
	rollback := errors.New("rollback")

	err := b.Atomic(ctx, func(tx backend.Backend) error {
		require.NoError(t, tx.Save(ctx, &models.Organization{Base: models.Base{ID: 1}, Name: "Gone"}))
		_, err := tx.Object(ctx, orgC, 1)
		require.NoError(t, err)
		return rollback
	})
	assert.ErrorIs(t, err, rollback)

	_, err = b.Object(ctx, orgC, 1)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestDeleteAll(t *testing.T) {
	b := newTestBackend(t, models.Registry())
	ctx := context.Background()
	saveOrg(t, b, 1, "One")
	require.NoError(t, b.Save(ctx, &models.Network{Base: models.Base{ID: 1}, OrgID: 1, Name: "N", ASN: 1}))

	require.NoError(t, b.DeleteAll(ctx))
	for _, res := range []resource.Resource{resource.Organization, resource.Network} {
		n, err := b.Count(ctx, concrete(t, b, res))
		require.NoError(t, err)
		assert.Zero(t, n, res.Tag())
	}
}

// peeredNetwork carries a many-relation so the link-table path is covered.
type peeredNetwork struct {
	models.Base
	OrgID      int64             `gorm:"column:org_id"`
	Name       string            `gorm:"size:255;column:name"`
	Facilities []models.Facility `gorm:"many2many:test_network_facilities"`
}

func (peeredNetwork) TableName() string { return "test_network" }

func m2mRegistry() *backend.Registry {
	base := models.Registry()
	org, _ := base.Concrete(resource.Organization)
	fac, _ := base.Concrete(resource.Facility)
	net := &backend.Concrete{
		Resource: resource.Network,
		Fields: []backend.Field{
			{Name: "id", Column: "id", Type: backend.Int},
			{Name: "status", Column: "status", Type: backend.String},
			{Name: "created", Column: "created", Type: backend.Time},
			{Name: "updated", Column: "updated", Type: backend.Time},
			{Name: "org", Column: "org_id", Kind: backend.SingleRef, Type: backend.Int, Target: resource.Organization, Required: true},
			{Name: "name", Column: "name", Type: backend.String},
			{Name: "facilities", Column: "Facilities", Kind: backend.ManyRef, Target: resource.Facility},
		},
		New: func() backend.Object { return &peeredNetwork{} },
	}
	return backend.NewRegistry(org, fac, net)
}

func TestManyToMany(t *testing.T) {
	b := newTestBackend(t, m2mRegistry())
	ctx := context.Background()
	saveOrg(t, b, 1, "Org")
	facC := concrete(t, b, resource.Facility)
	netC := concrete(t, b, resource.Network)
	for _, id := range []int64{10, 11, 12} {
		require.NoError(t, b.Save(ctx, &models.Facility{Base: models.Base{ID: id}, OrgID: 1, Name: "Fac " + string(rune('A'+id-10))}))
	}

	related, multiple, err := b.IsFieldRelated(netC, "facilities")
	require.NoError(t, err)
	assert.True(t, related)
	assert.True(t, multiple)

	target, err := b.FieldConcrete(netC, "facilities")
	require.NoError(t, err)
	assert.Same(t, facC, target)

	net := &peeredNetwork{Base: models.Base{ID: 1}, OrgID: 1, Name: "Net"}
	err = b.SetField(net, "facilities", []any{10})
	assert.True(t, errors.Is(err, backend.ErrDirectAssignment))

	facs, err := b.Objects(ctx, facC, 10, 11)
	require.NoError(t, err)
	require.NoError(t, b.SetManyToMany(net, "facilities", facs))
	require.NoError(t, b.Save(ctx, net))

	count := func() int64 {
		return b.DB().Model(&peeredNetwork{Base: models.Base{ID: 1}}).Association("Facilities").Count()
	}
	assert.EqualValues(t, 2, count())

	// full replacement, not incremental
	facs, err = b.Objects(ctx, facC, 12)
	require.NoError(t, err)
	require.NoError(t, b.SetManyToMany(net, "facilities", facs))
	require.NoError(t, b.Save(ctx, net))
	assert.EqualValues(t, 1, count())

	// a save without a new assignment leaves the links alone
	loaded, err := b.Object(ctx, netC, 1)
	require.NoError(t, err)
	require.NoError(t, b.SetField(loaded, "name", "Renamed"))
	require.NoError(t, b.Save(ctx, loaded))
	assert.EqualValues(t, 1, count())

	got, err := b.GetField(net, "facilities")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 12, got.([]backend.Object)[0].GetID())

	require.NoError(t, b.DeleteAll(ctx))
	assert.EqualValues(t, 0, count())
}

func TestManyToManyFollowsIdentity(t *testing.T) {
	b := newTestBackend(t, m2mRegistry())
	ctx := context.Background()
	saveOrg(t, b, 1, "Org")
	facC := concrete(t, b, resource.Facility)
	require.NoError(t, b.Save(ctx, &models.Facility{Base: models.Base{ID: 10}, OrgID: 1, Name: "Fac"}))
	stored := &peeredNetwork{Base: models.Base{ID: 1}, OrgID: 1, Name: "Net"}
	require.NoError(t, b.Save(ctx, stored))

	// links set on a fresh copy are written when the stored instance is saved
	fresh := &peeredNetwork{Base: models.Base{ID: 1}, OrgID: 1, Name: "Net"}
	facs, err := b.Objects(ctx, facC, 10)
	require.NoError(t, err)
	require.NoError(t, b.SetManyToMany(fresh, "facilities", facs))
	require.NoError(t, b.Save(ctx, stored))

	n := b.DB().Model(stored).Association("Facilities").Count()
	assert.EqualValues(t, 1, n)
}
