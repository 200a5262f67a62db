package suggest

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// WordSet is an immutable set of words built once from a comma-separated setting, such as
// the bad-query list or the default popular-words excludes. Reads need no locking.
type WordSet map[string]struct{}

// ParseWordSet splits a comma-separated list, skipping empty entries
func ParseWordSet(value string) WordSet {
	set := WordSet{}
	if value == "" {
		return set
	}
	for _, w := range strings.Split(value, ",") {
		if len(w) == 0 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func (s WordSet) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Words returns the set members in sorted order
func (s WordSet) Words() []string {
	words := maps.Keys(s)
	slices.Sort(words)
	return words
}
