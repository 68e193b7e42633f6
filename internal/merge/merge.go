// Package merge combines record lists without duplicating entries.
package merge

// Result is the outcome of ByNaturalKey.
type Result[T any] struct {
	Merged   []T
	Inserted int
	Skipped  int
}

// ByNaturalKey appends the incoming items whose key is not already present.
// Existing items keep their position and win every conflict; incoming items
// keep their relative order. Duplicates inside incoming collapse to the first
// occurrence. Neither input slice is modified.
func ByNaturalKey[T any, K comparable](existing, incoming []T, keyOf func(T) K) Result[T] {
	seen := make(map[K]struct{}, len(existing)+len(incoming))
	merged := make([]T, 0, len(existing)+len(incoming))
	for _, item := range existing {
		seen[keyOf(item)] = struct{}{}
		merged = append(merged, item)
	}

	res := Result[T]{}
	for _, item := range incoming {
		k := keyOf(item)
		if _, dup := seen[k]; dup {
			res.Skipped++
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, item)
		res.Inserted++
	}
	res.Merged = merged
	return res
}
