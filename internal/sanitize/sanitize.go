// Package sanitize strips denylisted keys from captured payloads.
package sanitize

// RemoveKeys returns a copy of data without the top-level keys in denylist.
// Matching is exact and case-sensitive. Nested maps are copied by reference
// and never descended into. data is not modified.
func RemoveKeys(data map[string]any, denylist []string) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	for _, k := range denylist {
		delete(out, k)
	}

	return out
}
