// Package medium provides the persistent key-value medium backing the
// local cache and sync queue. Reads and writes are best-effort by
// contract: failures are reported through return values, never panics
// or errors, so callers can degrade gracefully.
package medium

// Medium is the narrow key-value contract shared by the cache and the
// sync queue. A failed read reports ok=false; a failed write reports
// false and leaves the previous value intact.
type Medium interface {
	// ReadKey returns the stored value and whether it exists.
	ReadKey(key string) (string, bool)

	// WriteKey stores value under key, reporting success.
	WriteKey(key, value string) bool

	// DeleteKey removes key, reporting success. Deleting a missing key
	// succeeds.
	DeleteKey(key string) bool

	// Keys returns all stored keys with the given prefix, in
	// lexicographic order.
	Keys(prefix string) []string
}
