package index

import (
	"sort"
	"time"
)

const (
	// KindSearchWord marks an item learned from a search keyword
	KindSearchWord = "query"
	// KindDocument marks an item learned from document content
	KindDocument = "document"
)

// Item is a single suggestion candidate stored by a suggester engine
type Item struct {
	Text   string
	Tags   []string
	Roles  []string
	Fields []string
	Kinds  []string

	QueryFreq int64
	DocFreq   int64

	// Score is computed per request, it is not stored
	Score float64
}

// Result is what a suggester returns for any query kind. Items are in relevance order.
type Result struct {
	Index string
	Took  time.Duration
	Total int64
	Num   int
	Items []Item
}

// NewResult creates a result over the given items, with Num set from them
func NewResult(idx string, total int64, items []Item, took time.Duration) *Result {
	return &Result{
		Index: idx,
		Took:  took,
		Total: total,
		Num:   len(items),
		Items: items,
	}
}

// IndexResponse is returned by suggester indexing operations
type IndexResponse struct {
	Took    time.Duration
	NumDocs int
}

// ItemList is used to sort items by descending score, ties broken by text
type ItemList []Item

func (l ItemList) Len() int      { return len(l) }
func (l ItemList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }
func (l ItemList) Less(i, j int) bool {
	if l[i].Score != l[j].Score {
		return l[i].Score > l[j].Score //reverse sorting
	}
	return l[i].Text < l[j].Text
}

// Sort the ItemList
func (l ItemList) Sort() {
	sort.Sort(l)
}
