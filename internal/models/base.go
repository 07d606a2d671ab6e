// Package models holds the gorm models of the PeeringDB mirror together
// with the static field tables the sync engine classifies.
package models

import (
	"time"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// Base carries the columns shared by every PeeringDB object.
type Base struct {
	ID      int64     `gorm:"primaryKey;autoIncrement:false;column:id" json:"id"`
	Status  string    `gorm:"size:255;column:status" json:"status"`
	Created time.Time `gorm:"column:created" json:"created"`
	Updated time.Time `gorm:"index;column:updated" json:"updated"`
}

func (b Base) GetID() int64 { return b.ID }

// Address is embedded by objects with a postal address.
type Address struct {
	Address1  string   `gorm:"size:255;column:address1" json:"address1"`
	Address2  string   `gorm:"size:255;column:address2" json:"address2"`
	City      string   `gorm:"size:255;column:city" json:"city"`
	State     string   `gorm:"size:255;column:state" json:"state"`
	Country   string   `gorm:"size:7;column:country" json:"country"`
	Zipcode   string   `gorm:"size:48;column:zipcode" json:"zipcode"`
	Suite     string   `gorm:"size:255;column:suite" json:"suite"`
	Floor     string   `gorm:"size:255;column:floor" json:"floor"`
	Latitude  *float64 `gorm:"column:latitude" json:"latitude"`
	Longitude *float64 `gorm:"column:longitude" json:"longitude"`
}

func baseFields() []backend.Field {
	return []backend.Field{
		scalar("id", backend.Int),
		text("status", 255),
		scalar("created", backend.Time),
		scalar("updated", backend.Time),
	}
}

func addressFields() []backend.Field {
	return []backend.Field{
		text("address1", 255),
		text("address2", 255),
		text("city", 255),
		text("state", 255),
		text("country", 7),
		text("zipcode", 48),
		text("suite", 255),
		text("floor", 255),
		scalar("latitude", backend.NullFloat),
		scalar("longitude", backend.NullFloat),
	}
}

func scalar(name string, t backend.ValueType) backend.Field {
	return backend.Field{Name: name, Column: name, Kind: backend.Scalar, Type: t}
}

func text(name string, max int) backend.Field {
	f := scalar(name, backend.String)
	f.MaxLength = max
	return f
}

func required(f backend.Field) backend.Field {
	f.Required = true
	return f
}

func unique(f backend.Field) backend.Field {
	f.Unique = true
	return f
}

func labeled(f backend.Field, label string) backend.Field {
	f.Label = label
	return f
}

// name is the unique, required display name most objects carry.
func name() backend.Field {
	return unique(required(text("name", 255)))
}

func ref(name string, target resource.Resource) backend.Field {
	return backend.Field{
		Name:     name,
		Column:   name + "_id",
		Kind:     backend.SingleRef,
		Type:     backend.Int,
		Target:   target,
		Required: true,
	}
}

func optionalRef(name string, target resource.Resource) backend.Field {
	f := ref(name, target)
	f.Type = backend.NullInt
	f.Required = false
	return f
}

func fields(groups ...[]backend.Field) []backend.Field {
	var out []backend.Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
