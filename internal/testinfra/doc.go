// Package testinfra provides shared fixtures for tests: a mock PeeringDB
// server and a migrated SQLite backend.
//
//	func TestSync(t *testing.T) {
//	    pdb := testinfra.NewMockPeeringDB(t)
//	    pdb.Add("org", resource.Row{"id": 1, "name": "Org One"})
//
//	    b := testinfra.NewBackend(t)
//	    client := peeringdb.NewClient(peeringdb.Config{URL: pdb.APIURL()})
//	    // ...
//	}
package testinfra
