// Package backend defines the storage contract consumed by the sync engine.
//
// A Backend owns the local object store. The sync engine never touches
// storage directly: it asks the backend for the concrete type of a
// resource, introspects its field table, reads and writes field values,
// validates and persists objects. Lookups that miss return an error
// satisfying errors.Is(err, errors.NotFound) (github.com/juju/errors).
package backend

import (
	"context"

	"github.com/xelth-com/pdbsync/internal/resource"
)

// Object is an instance of a concrete storage type.
type Object interface {
	TableName() string
	GetID() int64
}

// Backend is the storage contract used by the sync engine.
type Backend interface {
	// Name identifies the adapter (used in the User-Agent header).
	Name() string

	Concrete(res resource.Resource) (*Concrete, error)
	Resource(c *Concrete) resource.Resource
	ConcreteOf(obj Object) (*Concrete, error)
	Fields(c *Concrete) []Field
	IsFieldRelated(c *Concrete, name string) (related, multiple bool, err error)
	FieldConcrete(c *Concrete, name string) (*Concrete, error)
	ConvertField(c *Concrete, name string, value any) (any, error)

	New(c *Concrete) Object
	GetField(obj Object, name string) (any, error)
	// SetField assigns a field by name or storage column. Many-relations
	// refuse direct assignment with ErrDirectAssignment.
	SetField(obj Object, name string, value any) error
	SetManyToMany(obj Object, name string, objs []Object) error

	Object(ctx context.Context, c *Concrete, id int64) (Object, error)
	ObjectBy(ctx context.Context, c *Concrete, field string, value any) (Object, error)
	Objects(ctx context.Context, c *Concrete, ids ...int64) ([]Object, error)
	ObjectsBy(ctx context.Context, c *Concrete, field string, value any) ([]Object, error)

	// Clean validates obj, returning *ValidationError on failure.
	Clean(ctx context.Context, obj Object) error
	Save(ctx context.Context, obj Object) error
	BulkCreate(ctx context.Context, c *Concrete, objs []Object) error
	DeleteAll(ctx context.Context) error

	// Atomic runs fn against a transactional backend. Returning an error
	// from fn rolls the transaction back.
	Atomic(ctx context.Context, fn func(Backend) error) error

	// LastChange returns the unix time of the newest "updated" value for
	// c, or 0 when the table is empty.
	LastChange(ctx context.Context, c *Concrete) (int64, error)
}
