package bucketsync

import "strings"

// MatchesFilter reports whether name passes filter. An empty filter matches
// everything; otherwise name must contain filter verbatim (case-sensitive,
// no wildcards).
func MatchesFilter(filter, name string) bool {
	return filter == "" || strings.Contains(name, filter)
}
