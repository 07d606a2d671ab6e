package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

func TestRegistryCoversAllResources(t *testing.T) {
	reg := Registry()
	for _, res := range resource.All() {
		c, err := reg.Concrete(res)
		require.NoError(t, err, res.Tag())
		assert.Equal(t, res, c.Resource)
	}
	assert.Len(t, All(), len(resource.All()))
}

func TestFieldTablesMatchModels(t *testing.T) {
	cache := &sync.Map{}
	for _, c := range Concretes() {
		obj := c.New()
		sch, err := schema.Parse(obj, cache, schema.NamingStrategy{})
		require.NoError(t, err, c.Name())
		assert.Equal(t, obj.TableName(), sch.Table)

		seen := map[string]bool{}
		for _, f := range c.Fields {
			assert.False(t, seen[f.Name], "%s.%s declared twice", c.Name(), f.Name)
			seen[f.Name] = true

			if f.Kind == backend.ManyRef {
				continue
			}
			assert.NotNil(t, sch.LookUpField(f.Column), "%s has no column %s", c.Name(), f.Column)
			if f.Related() {
				assert.False(t, f.Target.IsZero(), "%s.%s has no target", c.Name(), f.Name)
			}
		}
		// every persisted column is described by the table
		for _, dbName := range sch.DBNames {
			_, ok := c.Field(dbName)
			assert.True(t, ok, "%s column %s missing from field table", c.Name(), dbName)
		}
	}
}

func TestNetworkUniqueFields(t *testing.T) {
	var uniq []string
	for _, f := range networkConcrete.Fields {
		if f.Unique {
			uniq = append(uniq, f.Name)
		}
	}
	assert.ElementsMatch(t, []string{"name", "asn"}, uniq)

	org, ok := networkConcrete.Field("org_id")
	require.True(t, ok)
	assert.Equal(t, backend.SingleRef, org.Kind)
	assert.Equal(t, resource.Organization, org.Target)
}

func TestBaseGetID(t *testing.T) {
	n := &Network{Base: Base{ID: 20}}
	var obj backend.Object = n
	assert.EqualValues(t, 20, obj.GetID())
	assert.Equal(t, "peeringdb_network", obj.TableName())
}
