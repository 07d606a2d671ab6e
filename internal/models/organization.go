package models

import (
	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// Organization owns networks, exchanges, facilities, campuses and carriers (org)
type Organization struct {
	Base
	Name     string `gorm:"size:255;uniqueIndex;column:name" json:"name"`
	Aka      string `gorm:"size:255;column:aka" json:"aka"`
	NameLong string `gorm:"size:255;column:name_long" json:"name_long"`
	Website  string `gorm:"size:255;column:website" json:"website"`
	Notes    string `gorm:"type:text;column:notes" json:"notes"`
	Address
}

func (Organization) TableName() string { return "peeringdb_organization" }

var organizationConcrete = &backend.Concrete{
	Resource: resource.Organization,
	Fields: fields(baseFields(), []backend.Field{
		name(),
		text("aka", 255),
		text("name_long", 255),
		text("website", 255),
		scalar("notes", backend.String),
	}, addressFields()),
	New: func() backend.Object { return &Organization{} },
}

// Campus groups facilities of one organization (campus)
type Campus struct {
	Base
	OrgID    int64  `gorm:"index;column:org_id" json:"org_id"`
	Name     string `gorm:"size:255;uniqueIndex;column:name" json:"name"`
	NameLong string `gorm:"size:255;column:name_long" json:"name_long"`
	Aka      string `gorm:"size:255;column:aka" json:"aka"`
	Website  string `gorm:"size:255;column:website" json:"website"`
	Notes    string `gorm:"type:text;column:notes" json:"notes"`
	City     string `gorm:"size:255;column:city" json:"city"`
	State    string `gorm:"size:255;column:state" json:"state"`
	Country  string `gorm:"size:7;column:country" json:"country"`
	Zipcode  string `gorm:"size:48;column:zipcode" json:"zipcode"`
}

func (Campus) TableName() string { return "peeringdb_campus" }

var campusConcrete = &backend.Concrete{
	Resource: resource.Campus,
	Fields: fields(baseFields(), []backend.Field{
		ref("org", resource.Organization),
		name(),
		text("name_long", 255),
		text("aka", 255),
		text("website", 255),
		scalar("notes", backend.String),
		text("city", 255),
		text("state", 255),
		text("country", 7),
		text("zipcode", 48),
	}),
	New: func() backend.Object { return &Campus{} },
}

// Carrier is a transport provider present at facilities (carrier)
type Carrier struct {
	Base
	OrgID    int64  `gorm:"index;column:org_id" json:"org_id"`
	Name     string `gorm:"size:255;uniqueIndex;column:name" json:"name"`
	Aka      string `gorm:"size:255;column:aka" json:"aka"`
	NameLong string `gorm:"size:255;column:name_long" json:"name_long"`
	Website  string `gorm:"size:255;column:website" json:"website"`
	Notes    string `gorm:"type:text;column:notes" json:"notes"`
}

func (Carrier) TableName() string { return "peeringdb_carrier" }

var carrierConcrete = &backend.Concrete{
	Resource: resource.Carrier,
	Fields: fields(baseFields(), []backend.Field{
		ref("org", resource.Organization),
		name(),
		text("aka", 255),
		text("name_long", 255),
		text("website", 255),
		scalar("notes", backend.String),
	}),
	New: func() backend.Object { return &Carrier{} },
}

// CarrierFacility links a carrier to a facility (carrierfac)
type CarrierFacility struct {
	Base
	CarrierID  int64 `gorm:"index;column:carrier_id" json:"carrier_id"`
	FacilityID int64 `gorm:"index;column:fac_id" json:"fac_id"`
}

func (CarrierFacility) TableName() string { return "peeringdb_carrier_facility" }

var carrierFacilityConcrete = &backend.Concrete{
	Resource: resource.CarrierFacility,
	Fields: fields(baseFields(), []backend.Field{
		ref("carrier", resource.Carrier),
		ref("fac", resource.Facility),
	}),
	New: func() backend.Object { return &CarrierFacility{} },
}
