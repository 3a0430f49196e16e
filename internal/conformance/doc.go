// Package conformance holds the property suite every backend must pass.
//
// The same where and sort clauses must select and order the same records
// on every backend. Run exercises the repository, collection and migration
// contracts with fixed datasets; Agree generates random datasets and
// clauses and compares a backend against the in-process reference store.
//
// Usage from a backend's tests:
//
//	func TestConformance(t *testing.T) {
//		conformance.Run(t, func(t *testing.T) backend.Store { return openStore(t) })
//	}
package conformance
