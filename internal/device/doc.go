// Package device holds the indicator's state model.
//
// State carries the two light mode flags and the water tank level. Store
// owns the single live State and serialises every write; callers read
// consistent snapshots and mutate only through Store.Write. The mode
// package is the only production caller of Write.
//
// The package also provides the SQLite-backed state history used as an
// audit trail. History is never read back into the Store.
package device
