// Package resource defines the fixed catalog of PeeringDB object classes.
package resource

import "fmt"

// Resource identifies a class of PeeringDB entity by its short tag.
type Resource struct {
	tag  string
	name string
}

// Tag returns the wire/CLI identifier (e.g. "net").
func (r Resource) Tag() string { return r.tag }

// Name returns the display name (e.g. "Network").
func (r Resource) Name() string { return r.name }

// IsZero reports whether r is the absent resource.
func (r Resource) IsZero() bool { return r.tag == "" }

func (r Resource) String() string { return r.name }

var (
	Organization              = Resource{"org", "Organization"}
	Campus                    = Resource{"campus", "Campus"}
	Facility                  = Resource{"fac", "Facility"}
	Network                   = Resource{"net", "Network"}
	InternetExchange          = Resource{"ix", "InternetExchange"}
	Carrier                   = Resource{"carrier", "Carrier"}
	CarrierFacility           = Resource{"carrierfac", "CarrierFacility"}
	InternetExchangeFacility  = Resource{"ixfac", "InternetExchangeFacility"}
	InternetExchangeLan       = Resource{"ixlan", "InternetExchangeLan"}
	InternetExchangeLanPrefix = Resource{"ixpfx", "InternetExchangeLanPrefix"}
	NetworkFacility           = Resource{"netfac", "NetworkFacility"}
	NetworkIXLan              = Resource{"netixlan", "NetworkIXLan"}
	NetworkContact            = Resource{"poc", "NetworkContact"}
)

// ordered is the canonical resource order; parents come before children.
var ordered = []Resource{
	Organization,
	Campus,
	Facility,
	Network,
	InternetExchange,
	Carrier,
	CarrierFacility,
	InternetExchangeFacility,
	InternetExchangeLan,
	InternetExchangeLanPrefix,
	NetworkFacility,
	NetworkIXLan,
	NetworkContact,
}

var byTag = func() map[string]Resource {
	m := make(map[string]Resource, len(ordered))
	for _, r := range ordered {
		m[r.tag] = r
	}
	return m
}()

// All returns every resource in canonical order. The slice is a copy.
func All() []Resource {
	out := make([]Resource, len(ordered))
	copy(out, ordered)
	return out
}

// Tags returns the tags of every resource in canonical order.
func Tags() []string {
	out := make([]string, len(ordered))
	for i, r := range ordered {
		out[i] = r.tag
	}
	return out
}

// IsTag reports whether tag names a known resource.
func IsTag(tag string) bool {
	_, ok := byTag[tag]
	return ok
}

// Get looks up a resource by tag.
func Get(tag string) (Resource, error) {
	r, ok := byTag[tag]
	if !ok {
		return Resource{}, fmt.Errorf("unknown resource tag %q", tag)
	}
	return r, nil
}

// MustGet is like Get but panics on an unknown tag.
func MustGet(tag string) Resource {
	r, err := Get(tag)
	if err != nil {
		panic(err)
	}
	return r
}

// Reversed returns the resources in reverse canonical order.
func Reversed() []Resource {
	out := All()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// private lists the resources carrying fields that only authenticated
// requests receive.
var private = map[string]bool{
	NetworkContact.tag:      true,
	InternetExchangeLan.tag: true,
}

// IsPrivate reports whether objects tagged tag may hold private data.
func IsPrivate(tag string) bool { return private[tag] }
