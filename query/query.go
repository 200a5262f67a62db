package query

import "fmt"

// Kind discriminates the three request variants a suggester answers
type Kind int

const (
	// KindSuggest: prefix completion of a query text
	KindSuggest Kind = iota

	// KindPopularWords: randomized sample of the most searched words
	KindPopularWords

	// KindFamousKeys: the most searched words, deterministic
	KindFamousKeys
)

func (k Kind) String() string {
	switch k {
	case KindSuggest:
		return "suggest"
	case KindPopularWords:
		return "popular_words"
	case KindFamousKeys:
		return "famous_keys"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const (
	DefaultSize       = 10
	DefaultWindowSize = 20
)

// Query is a single suggestion request and all its filters. Filters are additive,
// a value added twice is kept once.
type Query struct {
	Kind  Kind
	Index string
	Term  string
	Size  int

	Tags   []string
	Roles  []string
	Fields []string

	// Suggest only
	PrefixMatchWeight float64

	// PopularWords only (WindowSize is also honoured by FamousKeys)
	WindowSize   int
	Seed         string
	ExcludeWords []string
}

// NewQuery creates a new query of the given kind against an index, with default sizes
func NewQuery(kind Kind, index string) *Query {
	return &Query{
		Kind:       kind,
		Index:      index,
		Size:       DefaultSize,
		WindowSize: DefaultWindowSize,
	}
}

// Limit sets the maximum number of returned items
func (q *Query) Limit(num int) *Query {
	q.Size = num
	return q
}

// SetTerm sets the query text
func (q *Query) SetTerm(term string) *Query {
	q.Term = term
	return q
}

func (q *Query) AddTag(tag string) *Query {
	q.Tags = appendUnique(q.Tags, tag)
	return q
}

func (q *Query) AddRole(role string) *Query {
	q.Roles = appendUnique(q.Roles, role)
	return q
}

func (q *Query) AddField(field string) *Query {
	q.Fields = appendUnique(q.Fields, field)
	return q
}

func (q *Query) AddExcludeWord(word string) *Query {
	q.ExcludeWords = appendUnique(q.ExcludeWords, word)
	return q
}

func (q *Query) SetWindowSize(n int) *Query {
	q.WindowSize = n
	return q
}

func (q *Query) SetSeed(seed string) *Query {
	q.Seed = seed
	return q
}

func (q *Query) SetPrefixMatchWeight(w float64) *Query {
	q.PrefixMatchWeight = w
	return q
}

// Clone returns a deep copy so the result can be handed to another goroutine
func (q Query) Clone() Query {
	q.Tags = append([]string(nil), q.Tags...)
	q.Roles = append([]string(nil), q.Roles...)
	q.Fields = append([]string(nil), q.Fields...)
	q.ExcludeWords = append([]string(nil), q.ExcludeWords...)
	return q
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
