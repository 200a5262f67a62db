package index

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/RediSearch/suggestd/query"
	"golang.org/x/exp/slices"
)

// DefaultPrefixMatchWeight is the boost applied to items whose whole text starts with the
// query, used when the index has no configured weight.
const DefaultPrefixMatchWeight = 2.0

// docFreqWeight scales how much a document occurrence counts against a search occurrence
const docFreqWeight = 0.5

// MatchFacets reports whether an item passes the tag/role/field filters of a query.
// An empty filter list accepts everything, otherwise any shared label is a match.
func MatchFacets(it Item, q query.Query) bool {
	return anyOf(it.Tags, q.Tags) && anyOf(it.Roles, q.Roles) && anyOf(it.Fields, q.Fields)
}

func anyOf(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// BaseScore is the query-independent popularity of an item
func BaseScore(it Item) float64 {
	return float64(it.QueryFreq) + float64(it.DocFreq)*docFreqWeight
}

// MatchesPrefix reports whether the normalized query is a prefix of one of the item's
// token-aligned suffixes
func MatchesPrefix(it Item, term string) bool {
	term = Normalize(term)
	for _, s := range Suffixes(it.Text) {
		if strings.HasPrefix(s, term) {
			return true
		}
	}
	return false
}

// RankSuggest filters candidate items by facets, scores them against the query term and
// returns the total number of matches together with the top q.Size items. A term that
// normalizes to nothing matches nothing.
func RankSuggest(candidates []Item, q query.Query) (int64, []Item) {
	term := Normalize(q.Term)
	if term == "" {
		return 0, nil
	}
	weight := q.PrefixMatchWeight
	if weight <= 0 {
		weight = DefaultPrefixMatchWeight
	}

	matched := make(ItemList, 0, len(candidates))
	for _, it := range candidates {
		if !MatchFacets(it, q) || !MatchesPrefix(it, term) {
			continue
		}
		it.Score = BaseScore(it)
		if strings.HasPrefix(Normalize(it.Text), term) {
			it.Score *= weight
		}
		matched = append(matched, it)
	}
	matched.Sort()
	return int64(len(matched)), truncate(matched, q.Size)
}

// RankPopular implements both popular words and famous keys: search-word items passing the
// facet filters and not excluded are ordered by search frequency and cut to the window.
// Popular words are then shuffled with the query seed.
func RankPopular(candidates []Item, q query.Query) (int64, []Item) {
	excluded := make(map[string]struct{}, len(q.ExcludeWords))
	for _, w := range q.ExcludeWords {
		excluded[Normalize(w)] = struct{}{}
	}

	matched := make(ItemList, 0, len(candidates))
	for _, it := range candidates {
		if it.QueryFreq <= 0 || !MatchFacets(it, q) {
			continue
		}
		if _, ok := excluded[Normalize(it.Text)]; ok {
			continue
		}
		it.Score = float64(it.QueryFreq)
		matched = append(matched, it)
	}
	matched.Sort()
	total := int64(len(matched))

	window := truncate(matched, q.WindowSize)
	if q.Kind == query.KindPopularWords {
		rng := rand.New(rand.NewSource(seedValue(q.Seed)))
		rng.Shuffle(len(window), func(i, j int) { window[i], window[j] = window[j], window[i] })
	}
	return total, truncate(window, q.Size)
}

func truncate(l []Item, n int) []Item {
	if n >= 0 && len(l) > n {
		l = l[:n]
	}
	return l
}

func seedValue(seed string) int64 {
	if seed == "" {
		return time.Now().UnixNano()
	}
	h := fnv.New64a()
	h.Write([]byte(seed))
	return int64(h.Sum64())
}

// MergeItem folds an observation into an existing item, unioning facets and adding
// frequencies
func MergeItem(dst *Item, src Item) {
	dst.Tags = union(dst.Tags, src.Tags)
	dst.Roles = union(dst.Roles, src.Roles)
	dst.Fields = union(dst.Fields, src.Fields)
	dst.Kinds = union(dst.Kinds, src.Kinds)
	dst.QueryFreq += src.QueryFreq
	dst.DocFreq += src.DocFreq
}

func union(a, b []string) []string {
	for _, v := range b {
		if !slices.Contains(a, v) {
			a = append(a, v)
		}
	}
	return a
}

// ItemsFromObservation converts one observation into the items it contributes: the keyword
// for a search word, or every word of every supported field's content for a document.
func ItemsFromObservation(o query.Observation) []Item {
	weight := int64(o.Weight)
	if weight <= 0 {
		weight = 1
	}
	if !o.IsDocument() {
		text := Normalize(o.Keyword)
		if text == "" {
			return nil
		}
		return []Item{{
			Text:      text,
			Tags:      union(nil, o.Tags),
			Roles:     union(nil, o.Roles),
			Fields:    union(nil, o.Fields),
			Kinds:     []string{KindSearchWord},
			QueryFreq: weight,
		}}
	}

	byText := map[string]*Item{}
	order := []string{}
	for field, content := range o.Document {
		for _, w := range Words(content) {
			it, ok := byText[w]
			if !ok {
				it = &Item{Text: w, Kinds: []string{KindDocument}}
				byText[w] = it
				order = append(order, w)
			}
			it.Fields = union(it.Fields, []string{field})
			it.DocFreq += weight
		}
	}
	slices.Sort(order)
	ret := make([]Item, 0, len(order))
	for _, w := range order {
		ret = append(ret, *byText[w])
	}
	return ret
}
