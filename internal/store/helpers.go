package store

// maxListLimit caps a single unsynced batch.
const maxListLimit = 1000

// clampLimit bounds limit to [1, maxListLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
