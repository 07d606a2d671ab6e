package models

import "github.com/xelth-com/pdbsync/internal/backend"

// Concretes returns the concrete types of all resources in canonical order.
func Concretes() []*backend.Concrete {
	return []*backend.Concrete{
		organizationConcrete,
		campusConcrete,
		facilityConcrete,
		networkConcrete,
		internetExchangeConcrete,
		carrierConcrete,
		carrierFacilityConcrete,
		internetExchangeFacilityConcrete,
		internetExchangeLanConcrete,
		internetExchangeLanPrefixConcrete,
		networkFacilityConcrete,
		networkIXLanConcrete,
		networkContactConcrete,
	}
}

// Registry binds every PeeringDB resource to its model.
func Registry() *backend.Registry {
	return backend.NewRegistry(Concretes()...)
}

// All returns a zero value of every model, for AutoMigrate.
func All() []interface{} {
	cs := Concretes()
	out := make([]interface{}, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.New())
	}
	return out
}
