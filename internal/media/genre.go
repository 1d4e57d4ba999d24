package media

import "strings"

// NormalizeGenre accepts the genre field either as a list of values or as a
// single comma separated string, and returns trimmed non-empty entries in order.
func NormalizeGenre(values []string) []string {
	if len(values) == 1 {
		values = strings.Split(values[0], ",")
	}

	genre := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			genre = append(genre, v)
		}
	}
	return genre
}
