package database

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

const bulkBatchSize = 100

// Backend implements backend.Backend on top of gorm. Field values are read
// and written through gorm's parsed schema; classification comes from the
// static field tables of the registry.
type Backend struct {
	db       *gorm.DB
	engine   string
	registry *backend.Registry
	byType   map[reflect.Type]*backend.Concrete
	stripTZ  bool
	m2m      *m2mTracker
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithStripTZ makes timestamp conversion keep wall clock time in UTC.
func WithStripTZ(strip bool) Option {
	return func(b *Backend) { b.stripTZ = strip }
}

// NewBackend wraps db with the given registry.
func NewBackend(db *DB, reg *backend.Registry, opts ...Option) *Backend {
	b := &Backend{
		db:       db.DB,
		engine:   db.Engine,
		registry: reg,
		byType:   map[reflect.Type]*backend.Concrete{},
		stripTZ:  true,
		m2m:      &m2mTracker{pending: map[m2mKey]map[string][]backend.Object{}},
	}
	for _, c := range reg.All() {
		b.byType[reflect.TypeOf(c.New())] = c
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// m2mTracker holds many-relation assignments until an object with the same
// table and id is saved, which need not be the instance they were set on.
type m2mTracker struct {
	mu      sync.Mutex
	pending map[m2mKey]map[string][]backend.Object
}

type m2mKey struct {
	table string
	id    int64
}

func keyOf(obj backend.Object) m2mKey {
	return m2mKey{table: obj.TableName(), id: obj.GetID()}
}

func (t *m2mTracker) set(obj backend.Object, field string, objs []backend.Object) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := keyOf(obj)
	if t.pending[k] == nil {
		t.pending[k] = map[string][]backend.Object{}
	}
	t.pending[k][field] = objs
}

func (t *m2mTracker) take(obj backend.Object) map[string][]backend.Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := keyOf(obj)
	out := t.pending[k]
	delete(t.pending, k)
	return out
}

func (b *Backend) with(tx *gorm.DB) *Backend {
	clone := *b
	clone.db = tx
	return &clone
}

// DB exposes the underlying gorm handle.
func (b *Backend) DB() *gorm.DB { return b.db }

// Registry returns the registry the backend was built with.
func (b *Backend) Registry() *backend.Registry { return b.registry }

func (b *Backend) Name() string { return "gorm/" + b.engine }

func (b *Backend) Concrete(res resource.Resource) (*backend.Concrete, error) {
	return b.registry.Concrete(res)
}

func (b *Backend) Resource(c *backend.Concrete) resource.Resource {
	if c == nil {
		return resource.Resource{}
	}
	return c.Resource
}

func (b *Backend) ConcreteOf(obj backend.Object) (*backend.Concrete, error) {
	c, ok := b.byType[reflect.TypeOf(obj)]
	if !ok {
		return nil, errors.NotFoundf("concrete type for %T", obj)
	}
	return c, nil
}

func (b *Backend) Fields(c *backend.Concrete) []backend.Field {
	if c == nil {
		return nil
	}
	return c.Fields
}

func (b *Backend) field(c *backend.Concrete, name string) (backend.Field, error) {
	f, ok := c.Field(name)
	if !ok {
		return backend.Field{}, errors.NotFoundf("field %q on %s", name, c.Name())
	}
	return f, nil
}

func (b *Backend) IsFieldRelated(c *backend.Concrete, name string) (bool, bool, error) {
	f, err := b.field(c, name)
	if err != nil {
		return false, false, err
	}
	return f.Related(), f.Multiple(), nil
}

func (b *Backend) FieldConcrete(c *backend.Concrete, name string) (*backend.Concrete, error) {
	f, err := b.field(c, name)
	if err != nil {
		return nil, err
	}
	if !f.Related() {
		return nil, errors.NotValidf("%s.%s is not a relation", c.Name(), name)
	}
	return b.registry.Concrete(f.Target)
}

func (b *Backend) ConvertField(c *backend.Concrete, name string, value any) (any, error) {
	f, err := b.field(c, name)
	if err != nil {
		return nil, err
	}
	v, err := convertValue(f, value, b.stripTZ)
	return v, errors.Annotatef(err, "%s.%s", c.Name(), name)
}

func (b *Backend) New(c *backend.Concrete) backend.Object {
	return c.New()
}

// schemaOf parses obj's gorm schema (cached by gorm per type).
func (b *Backend) schemaOf(obj backend.Object) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: b.db}
	if err := stmt.Parse(obj); err != nil {
		return nil, errors.Annotatef(err, "parsing schema of %T", obj)
	}
	return stmt.Schema, nil
}

// lookup resolves a field name or column of obj to its table entry and
// gorm field.
func (b *Backend) lookup(obj backend.Object, name string) (backend.Field, *schema.Field, error) {
	c, err := b.ConcreteOf(obj)
	if err != nil {
		return backend.Field{}, nil, err
	}
	f, err := b.field(c, name)
	if err != nil {
		return backend.Field{}, nil, err
	}
	sch, err := b.schemaOf(obj)
	if err != nil {
		return f, nil, err
	}
	gf := sch.LookUpField(f.Column)
	if gf == nil {
		return f, nil, errors.NotFoundf("column %q on %s", f.Column, c.Name())
	}
	return f, gf, nil
}

func (b *Backend) GetField(obj backend.Object, name string) (any, error) {
	f, gf, err := b.lookup(obj, name)
	if err != nil {
		return nil, err
	}
	rv := gf.ReflectValueOf(context.Background(), reflect.ValueOf(obj))
	if f.Kind != backend.ManyRef {
		return rv.Interface(), nil
	}
	out := make([]backend.Object, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		if item.Kind() != reflect.Ptr {
			item = item.Addr()
		}
		if o, ok := item.Interface().(backend.Object); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *Backend) SetField(obj backend.Object, name string, value any) error {
	f, gf, err := b.lookup(obj, name)
	if err != nil {
		return err
	}
	if f.Kind == backend.ManyRef {
		return errors.Annotatef(backend.ErrDirectAssignment, "%s: use SetManyToMany", f.Name)
	}
	v, err := convertValue(f, value, b.stripTZ)
	if err != nil {
		return errors.Annotatef(err, "%T.%s", obj, f.Name)
	}
	return assign(gf.ReflectValueOf(context.Background(), reflect.ValueOf(obj)), v)
}

func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return errors.NotValidf("cannot assign %T to %s", v, dst.Type())
	}
	return nil
}

func (b *Backend) SetManyToMany(obj backend.Object, name string, objs []backend.Object) error {
	f, gf, err := b.lookup(obj, name)
	if err != nil {
		return err
	}
	if f.Kind != backend.ManyRef {
		return errors.NotValidf("%s is not a many-relation", f.Name)
	}
	if err := fill(gf.ReflectValueOf(context.Background(), reflect.ValueOf(obj)), objs); err != nil {
		return errors.Annotate(err, f.Name)
	}
	b.m2m.set(obj, f.Column, objs)
	return nil
}

// fill replaces the slice dst with objs.
func fill(dst reflect.Value, objs []backend.Object) error {
	elem := dst.Type().Elem()
	slice := reflect.MakeSlice(dst.Type(), 0, len(objs))
	for _, o := range objs {
		v := reflect.ValueOf(o)
		if elem.Kind() != reflect.Ptr {
			v = v.Elem()
		}
		if !v.Type().AssignableTo(elem) {
			return errors.NotValidf("cannot add %T", o)
		}
		slice = reflect.Append(slice, v)
	}
	dst.Set(slice)
	return nil
}

func (b *Backend) notFound(c *backend.Concrete, err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFoundf("%s %s", c.Name(), fmt.Sprintf(format, args...))
	}
	return errors.Trace(err)
}

func (b *Backend) Object(ctx context.Context, c *backend.Concrete, id int64) (backend.Object, error) {
	obj := c.New()
	if err := b.db.WithContext(ctx).Take(obj, "id = ?", id).Error; err != nil {
		return nil, b.notFound(c, err, "with id %d", id)
	}
	return obj, nil
}

func (b *Backend) ObjectBy(ctx context.Context, c *backend.Concrete, field string, value any) (backend.Object, error) {
	f, err := b.field(c, field)
	if err != nil {
		return nil, err
	}
	if cv, err := convertValue(f, value, b.stripTZ); err == nil {
		value = cv
	}
	obj := c.New()
	err = b.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: value}).Take(obj).Error
	if err != nil {
		return nil, b.notFound(c, err, "with %s=%v", f.Name, value)
	}
	return obj, nil
}

func (b *Backend) find(ctx context.Context, c *backend.Concrete, scope func(*gorm.DB) *gorm.DB) ([]backend.Object, error) {
	ptrType := reflect.TypeOf(c.New())
	slice := reflect.New(reflect.SliceOf(ptrType))
	if err := scope(b.db.WithContext(ctx)).Order("id").Find(slice.Interface()).Error; err != nil {
		return nil, errors.Trace(err)
	}
	rows := slice.Elem()
	out := make([]backend.Object, rows.Len())
	for i := range out {
		out[i] = rows.Index(i).Interface().(backend.Object)
	}
	return out, nil
}

func (b *Backend) Objects(ctx context.Context, c *backend.Concrete, ids ...int64) ([]backend.Object, error) {
	return b.find(ctx, c, func(db *gorm.DB) *gorm.DB {
		if len(ids) > 0 {
			return db.Where("id IN ?", ids)
		}
		return db
	})
}

func (b *Backend) ObjectsBy(ctx context.Context, c *backend.Concrete, field string, value any) ([]backend.Object, error) {
	f, err := b.field(c, field)
	if err != nil {
		return nil, err
	}
	return b.find(ctx, c, func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: value})
	})
}

// Count returns the number of rows stored for c.
func (b *Backend) Count(ctx context.Context, c *backend.Concrete) (int64, error) {
	var n int64
	err := b.db.WithContext(ctx).Model(c.New()).Count(&n).Error
	return n, errors.Trace(err)
}

func (b *Backend) exists(ctx context.Context, c *backend.Concrete, where clause.Expression) (bool, error) {
	var n int64
	err := b.db.WithContext(ctx).Model(c.New()).Where(where).Limit(1).Count(&n).Error
	return n > 0, err
}

// Clean validates obj the way the upstream registry does: required values,
// maximum lengths, existing relation targets and unique fields.
func (b *Backend) Clean(ctx context.Context, obj backend.Object) error {
	c, err := b.ConcreteOf(obj)
	if err != nil {
		return err
	}
	sch, err := b.schemaOf(obj)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(obj)
	verr := backend.NewValidationError(c.Name())

	for _, f := range c.Fields {
		if f.Kind == backend.ManyRef {
			continue
		}
		gf := sch.LookUpField(f.Column)
		if gf == nil {
			return errors.NotFoundf("column %q on %s", f.Column, c.Name())
		}
		value, zero := gf.ValueOf(ctx, rv)

		if f.Kind == backend.SingleRef {
			id, ok := refID(value)
			if !ok {
				if f.Required {
					verr.Add(f.Name, "This field cannot be null.")
				}
				continue
			}
			target, err := b.registry.Concrete(f.Target)
			if err != nil {
				return err
			}
			found, err := b.exists(ctx, target, clause.Eq{Column: clause.Column{Name: "id"}, Value: id})
			if err != nil {
				return errors.Trace(err)
			}
			if !found {
				verr.Add(f.Name, fmt.Sprintf("%s instance with id %d does not exist.", target.Name(), id))
			}
			continue
		}

		if s, ok := value.(string); ok {
			if f.Required && s == "" {
				verr.Add(f.Name, backend.BlankMessage)
			}
			if n := utf8.RuneCountInString(s); f.MaxLength > 0 && n > f.MaxLength {
				verr.Add(f.Name, fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", f.MaxLength, n))
			}
		}

		if f.Unique && !zero {
			taken, err := b.exists(ctx, c, clause.And(
				clause.Eq{Column: clause.Column{Name: f.Column}, Value: value},
				clause.Neq{Column: clause.Column{Name: "id"}, Value: obj.GetID()},
			))
			if err != nil {
				return errors.Trace(err)
			}
			if taken {
				verr.Add(f.Name, backend.UniqueMessage(c.Name(), f))
			}
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func refID(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, t != 0
	case *int64:
		if t == nil {
			return 0, false
		}
		return *t, true
	}
	return 0, false
}

func (b *Backend) saveM2M(ctx context.Context, tx *gorm.DB, obj backend.Object) error {
	pending := b.m2m.take(obj)
	if len(pending) == 0 {
		return nil
	}
	sch, err := b.schemaOf(obj)
	if err != nil {
		return err
	}
	for name, objs := range pending {
		gf := sch.LookUpField(name)
		if gf == nil {
			return errors.NotFoundf("relation %q on %T", name, obj)
		}
		dst := gf.ReflectValueOf(ctx, reflect.ValueOf(obj))
		if err := fill(dst, objs); err != nil {
			return errors.Annotate(err, name)
		}
		if err := tx.Model(obj).Association(gf.Name).Replace(dst.Interface()); err != nil {
			return errors.Annotatef(err, "replacing %s of %T %d", name, obj, obj.GetID())
		}
	}
	return nil
}

func (b *Backend) Save(ctx context.Context, obj backend.Object) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(obj).Error; err != nil {
			return errors.Annotatef(err, "saving %T %d", obj, obj.GetID())
		}
		return b.saveM2M(ctx, tx, obj)
	})
}

// BulkCreate inserts objs in batches, updating rows whose id already exists.
func (b *Backend) BulkCreate(ctx context.Context, c *backend.Concrete, objs []backend.Object) error {
	if len(objs) == 0 {
		return nil
	}
	slice := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(c.New())), 0, len(objs))
	for _, o := range objs {
		slice = reflect.Append(slice, reflect.ValueOf(o))
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Omit(clause.Associations).CreateInBatches(slice.Interface(), bulkBatchSize).Error
		if err != nil {
			return errors.Annotatef(err, "bulk creating %d %s", len(objs), c.Name())
		}
		for _, o := range objs {
			if err := b.saveM2M(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAll empties every registered table, children first.
func (b *Backend) DeleteAll(ctx context.Context) error {
	all := b.registry.All()
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(all) - 1; i >= 0; i-- {
			obj := all[i].New()
			sch, err := b.schemaOf(obj)
			if err != nil {
				return err
			}
			for _, rel := range sch.Relationships.Many2Many {
				if rel.JoinTable == nil {
					continue
				}
				if err := tx.Exec("DELETE FROM " + tx.Statement.Quote(rel.JoinTable.Table)).Error; err != nil {
					return errors.Trace(err)
				}
			}
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(obj).Error; err != nil {
				return errors.Annotatef(err, "deleting %s", all[i].Name())
			}
		}
		return nil
	})
}

// Atomic runs fn inside a database transaction.
func (b *Backend) Atomic(ctx context.Context, fn func(backend.Backend) error) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(b.with(tx))
	})
}

// LastChange returns the newest "updated" unix time for c, 0 when empty.
func (b *Backend) LastChange(ctx context.Context, c *backend.Concrete) (int64, error) {
	obj := c.New()
	err := b.db.WithContext(ctx).Order("updated DESC").Take(obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Trace(err)
	}
	v, err := b.GetField(obj, "updated")
	if err != nil {
		return 0, err
	}
	if t, ok := v.(time.Time); ok && !t.IsZero() {
		return t.Unix(), nil
	}
	return 0, nil
}

// Migrate creates or updates the tables of every registered model.
func (b *Backend) Migrate(ctx context.Context) error {
	var models []interface{}
	for _, c := range b.registry.All() {
		models = append(models, c.New())
	}
	return errors.Trace(b.db.WithContext(ctx).AutoMigrate(models...))
}

// DropTables removes the tables of every registered model.
func (b *Backend) DropTables(ctx context.Context) error {
	var models []interface{}
	for _, c := range b.registry.All() {
		models = append(models, c.New())
	}
	return errors.Trace(b.db.WithContext(ctx).Migrator().DropTable(models...))
}
