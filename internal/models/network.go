package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

// Network is an autonomous system (net)
type Network struct {
	Base
	OrgID                    int64          `gorm:"index;column:org_id" json:"org_id"`
	Name                     string         `gorm:"size:255;uniqueIndex;column:name" json:"name"`
	Aka                      string         `gorm:"size:255;column:aka" json:"aka"`
	NameLong                 string         `gorm:"size:255;column:name_long" json:"name_long"`
	Website                  string         `gorm:"size:255;column:website" json:"website"`
	SocialMedia              datatypes.JSON `gorm:"column:social_media" json:"social_media"`
	ASN                      int64          `gorm:"uniqueIndex;column:asn" json:"asn"`
	LookingGlass             string         `gorm:"size:255;column:looking_glass" json:"looking_glass"`
	RouteServer              string         `gorm:"size:255;column:route_server" json:"route_server"`
	IRRASSet                 string         `gorm:"size:255;column:irr_as_set" json:"irr_as_set"`
	InfoType                 string         `gorm:"size:60;column:info_type" json:"info_type"`
	InfoTypes                datatypes.JSON `gorm:"column:info_types" json:"info_types"`
	InfoPrefixes4            *int64         `gorm:"column:info_prefixes4" json:"info_prefixes4"`
	InfoPrefixes6            *int64         `gorm:"column:info_prefixes6" json:"info_prefixes6"`
	InfoTraffic              string         `gorm:"size:39;column:info_traffic" json:"info_traffic"`
	InfoRatio                string         `gorm:"size:45;column:info_ratio" json:"info_ratio"`
	InfoScope                string         `gorm:"size:39;column:info_scope" json:"info_scope"`
	InfoUnicast              bool           `gorm:"column:info_unicast" json:"info_unicast"`
	InfoMulticast            bool           `gorm:"column:info_multicast" json:"info_multicast"`
	InfoIPv6                 bool           `gorm:"column:info_ipv6" json:"info_ipv6"`
	InfoNeverViaRouteServers bool           `gorm:"column:info_never_via_route_servers" json:"info_never_via_route_servers"`
	Notes                    string         `gorm:"type:text;column:notes" json:"notes"`
	PolicyURL                string         `gorm:"size:255;column:policy_url" json:"policy_url"`
	PolicyGeneral            string         `gorm:"size:72;column:policy_general" json:"policy_general"`
	PolicyLocations          string         `gorm:"size:72;column:policy_locations" json:"policy_locations"`
	PolicyRatio              bool           `gorm:"column:policy_ratio" json:"policy_ratio"`
	PolicyContracts          string         `gorm:"size:36;column:policy_contracts" json:"policy_contracts"`
	AllowIXPUpdate           bool           `gorm:"column:allow_ixp_update" json:"allow_ixp_update"`
	StatusDashboard          string         `gorm:"size:255;column:status_dashboard" json:"status_dashboard"`
	RIRStatus                string         `gorm:"size:255;column:rir_status" json:"rir_status"`
	RIRStatusUpdated         *time.Time     `gorm:"column:rir_status_updated" json:"rir_status_updated"`
}

func (Network) TableName() string { return "peeringdb_network" }

var networkConcrete = &backend.Concrete{
	Resource: resource.Network,
	Fields: fields(baseFields(), []backend.Field{
		ref("org", resource.Organization),
		name(),
		text("aka", 255),
		text("name_long", 255),
		text("website", 255),
		scalar("social_media", backend.JSON),
		labeled(unique(required(scalar("asn", backend.Int))), "ASN"),
		text("looking_glass", 255),
		text("route_server", 255),
		labeled(text("irr_as_set", 255), "IRR as-set/route-set"),
		text("info_type", 60),
		scalar("info_types", backend.JSON),
		scalar("info_prefixes4", backend.NullInt),
		scalar("info_prefixes6", backend.NullInt),
		text("info_traffic", 39),
		text("info_ratio", 45),
		text("info_scope", 39),
		scalar("info_unicast", backend.Bool),
		scalar("info_multicast", backend.Bool),
		scalar("info_ipv6", backend.Bool),
		scalar("info_never_via_route_servers", backend.Bool),
		scalar("notes", backend.String),
		text("policy_url", 255),
		text("policy_general", 72),
		text("policy_locations", 72),
		scalar("policy_ratio", backend.Bool),
		text("policy_contracts", 36),
		scalar("allow_ixp_update", backend.Bool),
		text("status_dashboard", 255),
		text("rir_status", 255),
		scalar("rir_status_updated", backend.NullTime),
	}),
	New: func() backend.Object { return &Network{} },
}

// NetworkFacility is a network's presence at a facility (netfac)
type NetworkFacility struct {
	Base
	NetworkID  int64 `gorm:"index;column:net_id" json:"net_id"`
	FacilityID int64 `gorm:"index;column:fac_id" json:"fac_id"`
	LocalASN   int64 `gorm:"column:local_asn" json:"local_asn"`
}

func (NetworkFacility) TableName() string { return "peeringdb_network_facility" }

var networkFacilityConcrete = &backend.Concrete{
	Resource: resource.NetworkFacility,
	Fields: fields(baseFields(), []backend.Field{
		ref("net", resource.Network),
		ref("fac", resource.Facility),
		labeled(scalar("local_asn", backend.Int), "Local ASN"),
	}),
	New: func() backend.Object { return &NetworkFacility{} },
}

// NetworkIXLan is a network's port on a peering LAN (netixlan)
type NetworkIXLan struct {
	Base
	NetworkID   int64  `gorm:"index;column:net_id" json:"net_id"`
	IXLanID     int64  `gorm:"index;column:ixlan_id" json:"ixlan_id"`
	NetSideID   *int64 `gorm:"column:net_side_id" json:"net_side_id"`
	IXSideID    *int64 `gorm:"column:ix_side_id" json:"ix_side_id"`
	Notes       string `gorm:"size:255;column:notes" json:"notes"`
	Speed       int64  `gorm:"column:speed" json:"speed"`
	ASN         int64  `gorm:"column:asn" json:"asn"`
	IPAddr4     string `gorm:"size:39;column:ipaddr4" json:"ipaddr4"`
	IPAddr6     string `gorm:"size:39;column:ipaddr6" json:"ipaddr6"`
	IsRSPeer    bool   `gorm:"column:is_rs_peer" json:"is_rs_peer"`
	BFDSupport  bool   `gorm:"column:bfd_support" json:"bfd_support"`
	Operational bool   `gorm:"column:operational" json:"operational"`
}

func (NetworkIXLan) TableName() string { return "peeringdb_network_ixlan" }

var networkIXLanConcrete = &backend.Concrete{
	Resource: resource.NetworkIXLan,
	Fields: fields(baseFields(), []backend.Field{
		ref("net", resource.Network),
		ref("ixlan", resource.InternetExchangeLan),
		optionalRef("net_side", resource.Facility),
		optionalRef("ix_side", resource.Facility),
		text("notes", 255),
		scalar("speed", backend.Int),
		labeled(scalar("asn", backend.Int), "ASN"),
		labeled(text("ipaddr4", 39), "IPv4"),
		labeled(text("ipaddr6", 39), "IPv6"),
		labeled(scalar("is_rs_peer", backend.Bool), "RS peer"),
		labeled(scalar("bfd_support", backend.Bool), "BFD support"),
		scalar("operational", backend.Bool),
	}),
	New: func() backend.Object { return &NetworkIXLan{} },
}

// NetworkContact is a point of contact of a network (poc)
type NetworkContact struct {
	Base
	NetworkID int64  `gorm:"index;column:net_id" json:"net_id"`
	Role      string `gorm:"size:27;column:role" json:"role"`
	Visible   string `gorm:"size:64;column:visible" json:"visible"`
	Name      string `gorm:"size:254;column:name" json:"name"`
	Phone     string `gorm:"size:100;column:phone" json:"phone"`
	Email     string `gorm:"size:254;column:email" json:"email"`
	URL       string `gorm:"size:255;column:url" json:"url"`
}

func (NetworkContact) TableName() string { return "peeringdb_network_contact" }

var networkContactConcrete = &backend.Concrete{
	Resource: resource.NetworkContact,
	Fields: fields(baseFields(), []backend.Field{
		ref("net", resource.Network),
		required(text("role", 27)),
		text("visible", 64),
		text("name", 254),
		text("phone", 100),
		text("email", 254),
		labeled(text("url", 255), "URL"),
	}),
	New: func() backend.Object { return &NetworkContact{} },
}
