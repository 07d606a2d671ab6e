package models

import (
	"gorm.io/datatypes"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// Facility is a colocation site (fac)
type Facility struct {
	Base
	OrgID                    int64          `gorm:"index;column:org_id" json:"org_id"`
	CampusID                 *int64         `gorm:"index;column:campus_id" json:"campus_id"`
	Name                     string         `gorm:"size:255;uniqueIndex;column:name" json:"name"`
	Aka                      string         `gorm:"size:255;column:aka" json:"aka"`
	NameLong                 string         `gorm:"size:255;column:name_long" json:"name_long"`
	Website                  string         `gorm:"size:255;column:website" json:"website"`
	CLLI                     string         `gorm:"size:18;column:clli" json:"clli"`
	Rencode                  string         `gorm:"size:18;column:rencode" json:"rencode"`
	Npanxx                   string         `gorm:"size:21;column:npanxx" json:"npanxx"`
	TechEmail                string         `gorm:"size:254;column:tech_email" json:"tech_email"`
	TechPhone                string         `gorm:"size:192;column:tech_phone" json:"tech_phone"`
	SalesEmail               string         `gorm:"size:254;column:sales_email" json:"sales_email"`
	SalesPhone               string         `gorm:"size:192;column:sales_phone" json:"sales_phone"`
	Property                 string         `gorm:"size:27;column:property" json:"property"`
	DiverseServingSubstation *bool          `gorm:"column:diverse_serving_substations" json:"diverse_serving_substations"`
	AvailableVoltageServices datatypes.JSON `gorm:"column:available_voltage_services" json:"available_voltage_services"`
	RegionContinent          string         `gorm:"size:255;column:region_continent" json:"region_continent"`
	StatusDashboard          string         `gorm:"size:255;column:status_dashboard" json:"status_dashboard"`
	Notes                    string         `gorm:"type:text;column:notes" json:"notes"`
	Address
}

func (Facility) TableName() string { return "peeringdb_facility" }

var facilityConcrete = &backend.Concrete{
	Resource: resource.Facility,
	Fields: fields(baseFields(), []backend.Field{
		ref("org", resource.Organization),
		optionalRef("campus", resource.Campus),
		name(),
		text("aka", 255),
		text("name_long", 255),
		text("website", 255),
		labeled(text("clli", 18), "CLLI"),
		text("rencode", 18),
		text("npanxx", 21),
		text("tech_email", 254),
		text("tech_phone", 192),
		text("sales_email", 254),
		text("sales_phone", 192),
		text("property", 27),
		scalar("diverse_serving_substations", backend.NullBool),
		scalar("available_voltage_services", backend.JSON),
		text("region_continent", 255),
		text("status_dashboard", 255),
		scalar("notes", backend.String),
	}, addressFields()),
	New: func() backend.Object { return &Facility{} },
}

// InternetExchange is an IXP (ix)
type InternetExchange struct {
	Base
	OrgID           int64  `gorm:"index;column:org_id" json:"org_id"`
	Name            string `gorm:"size:64;uniqueIndex;column:name" json:"name"`
	Aka             string `gorm:"size:255;column:aka" json:"aka"`
	NameLong        string `gorm:"size:254;column:name_long" json:"name_long"`
	City            string `gorm:"size:192;column:city" json:"city"`
	Country         string `gorm:"size:7;column:country" json:"country"`
	RegionContinent string `gorm:"size:255;column:region_continent" json:"region_continent"`
	Media           string `gorm:"size:128;column:media" json:"media"`
	Notes           string `gorm:"type:text;column:notes" json:"notes"`
	ProtoUnicast    bool   `gorm:"column:proto_unicast" json:"proto_unicast"`
	ProtoMulticast  bool   `gorm:"column:proto_multicast" json:"proto_multicast"`
	ProtoIPv6       bool   `gorm:"column:proto_ipv6" json:"proto_ipv6"`
	Website         string `gorm:"size:255;column:website" json:"website"`
	URLStats        string `gorm:"size:255;column:url_stats" json:"url_stats"`
	TechEmail       string `gorm:"size:254;column:tech_email" json:"tech_email"`
	TechPhone       string `gorm:"size:192;column:tech_phone" json:"tech_phone"`
	PolicyEmail     string `gorm:"size:254;column:policy_email" json:"policy_email"`
	PolicyPhone     string `gorm:"size:192;column:policy_phone" json:"policy_phone"`
	SalesEmail      string `gorm:"size:254;column:sales_email" json:"sales_email"`
	SalesPhone      string `gorm:"size:192;column:sales_phone" json:"sales_phone"`
	ServiceLevel    string `gorm:"size:60;column:service_level" json:"service_level"`
	Terms           string `gorm:"size:60;column:terms" json:"terms"`
	StatusDashboard string `gorm:"size:255;column:status_dashboard" json:"status_dashboard"`
}

func (InternetExchange) TableName() string { return "peeringdb_ix" }

var internetExchangeConcrete = &backend.Concrete{
	Resource: resource.InternetExchange,
	Fields: fields(baseFields(), []backend.Field{
		ref("org", resource.Organization),
		unique(required(text("name", 64))),
		text("aka", 255),
		text("name_long", 254),
		text("city", 192),
		text("country", 7),
		text("region_continent", 255),
		text("media", 128),
		scalar("notes", backend.String),
		scalar("proto_unicast", backend.Bool),
		scalar("proto_multicast", backend.Bool),
		scalar("proto_ipv6", backend.Bool),
		text("website", 255),
		text("url_stats", 255),
		text("tech_email", 254),
		text("tech_phone", 192),
		text("policy_email", 254),
		text("policy_phone", 192),
		text("sales_email", 254),
		text("sales_phone", 192),
		text("service_level", 60),
		text("terms", 60),
		text("status_dashboard", 255),
	}),
	New: func() backend.Object { return &InternetExchange{} },
}

// InternetExchangeFacility links an exchange to a facility (ixfac)
type InternetExchangeFacility struct {
	Base
	IXID       int64 `gorm:"index;column:ix_id" json:"ix_id"`
	FacilityID int64 `gorm:"index;column:fac_id" json:"fac_id"`
}

func (InternetExchangeFacility) TableName() string { return "peeringdb_ix_facility" }

var internetExchangeFacilityConcrete = &backend.Concrete{
	Resource: resource.InternetExchangeFacility,
	Fields: fields(baseFields(), []backend.Field{
		ref("ix", resource.InternetExchange),
		ref("fac", resource.Facility),
	}),
	New: func() backend.Object { return &InternetExchangeFacility{} },
}

// InternetExchangeLan is the peering LAN of an exchange (ixlan)
type InternetExchangeLan struct {
	Base
	IXID                       int64  `gorm:"index;column:ix_id" json:"ix_id"`
	Name                       string `gorm:"size:255;column:name" json:"name"`
	Descr                      string `gorm:"type:text;column:descr" json:"descr"`
	MTU                        *int64 `gorm:"column:mtu" json:"mtu"`
	Dot1QSupport               bool   `gorm:"column:dot1q_support" json:"dot1q_support"`
	RSASN                      *int64 `gorm:"column:rs_asn" json:"rs_asn"`
	ARPSponge                  string `gorm:"size:17;column:arp_sponge" json:"arp_sponge"`
	IXFIXPMemberListURL        string `gorm:"size:255;column:ixf_ixp_member_list_url" json:"ixf_ixp_member_list_url"`
	IXFIXPMemberListURLVisible string `gorm:"size:64;column:ixf_ixp_member_list_url_visible" json:"ixf_ixp_member_list_url_visible"`
	IXFIXPImportEnabled        bool   `gorm:"column:ixf_ixp_import_enabled" json:"ixf_ixp_import_enabled"`
}

func (InternetExchangeLan) TableName() string { return "peeringdb_ixlan" }

var internetExchangeLanConcrete = &backend.Concrete{
	Resource: resource.InternetExchangeLan,
	Fields: fields(baseFields(), []backend.Field{
		ref("ix", resource.InternetExchange),
		text("name", 255),
		scalar("descr", backend.String),
		labeled(scalar("mtu", backend.NullInt), "MTU"),
		scalar("dot1q_support", backend.Bool),
		labeled(scalar("rs_asn", backend.NullInt), "RS ASN"),
		text("arp_sponge", 17),
		text("ixf_ixp_member_list_url", 255),
		text("ixf_ixp_member_list_url_visible", 64),
		scalar("ixf_ixp_import_enabled", backend.Bool),
	}),
	New: func() backend.Object { return &InternetExchangeLan{} },
}

// InternetExchangeLanPrefix is an address block of a peering LAN (ixpfx)
type InternetExchangeLanPrefix struct {
	Base
	IXLanID  int64  `gorm:"index;column:ixlan_id" json:"ixlan_id"`
	Protocol string `gorm:"size:64;column:protocol" json:"protocol"`
	Prefix   string `gorm:"size:43;uniqueIndex;column:prefix" json:"prefix"`
	InDFZ    bool   `gorm:"column:in_dfz" json:"in_dfz"`
}

func (InternetExchangeLanPrefix) TableName() string { return "peeringdb_ixlan_prefix" }

var internetExchangeLanPrefixConcrete = &backend.Concrete{
	Resource: resource.InternetExchangeLanPrefix,
	Fields: fields(baseFields(), []backend.Field{
		ref("ixlan", resource.InternetExchangeLan),
		text("protocol", 64),
		unique(required(text("prefix", 43))),
		labeled(scalar("in_dfz", backend.Bool), "In DFZ"),
	}),
	New: func() backend.Object { return &InternetExchangeLanPrefix{} },
}
