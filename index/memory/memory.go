// Package memory is an in-process suggester engine. Suggestions are looked up through a
// patricia trie holding every token-aligned suffix of every item text.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Engine owns the backing stores of every index. Suggester handles are cheap views over a
// store, a store outlives the handles built on it.
type Engine struct {
	sync.Mutex
	stores        map[string]*store
	defaultFields []string
}

type store struct {
	mu    sync.RWMutex
	items map[string]*index.Item
	trie  *patricia.Trie
	md    *index.Metadata
}

func NewEngine(defaultFields ...string) *Engine {
	return &Engine{
		stores:        map[string]*store{},
		defaultFields: defaultFields,
	}
}

// Open returns a new suggester handle for an index
func (e *Engine) Open(_ context.Context, name string) (*Suggester, error) {
	if name == "" {
		return nil, errors.New("empty index name")
	}
	return &Suggester{engine: e, name: name}, nil
}

func (e *Engine) lookup(name string) *store {
	e.Lock()
	defer e.Unlock()
	return e.stores[name]
}

// getOrCreate returns the store of an index, and whether this call created it
func (e *Engine) getOrCreate(name string) (*store, bool) {
	e.Lock()
	defer e.Unlock()
	if s, ok := e.stores[name]; ok {
		return s, false
	}
	s := &store{
		items: map[string]*index.Item{},
		trie:  patricia.NewTrie(),
		md:    index.NewMetadata(e.defaultFields...),
	}
	e.stores[name] = s
	return s, true
}

// Suggester is a handle on one index of an Engine
type Suggester struct {
	engine *Engine
	name   string
}

func (s *Suggester) Index() string {
	return s.name
}

func (s *Suggester) CreateIndexIfNothing(_ context.Context) (bool, error) {
	_, created := s.engine.getOrCreate(s.name)
	return created, nil
}

func (s *Suggester) Query(ctx context.Context, q query.Query) (*index.Result, error) {
	st := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sto := s.engine.lookup(s.name)
	if sto == nil {
		return index.NewResult(s.name, 0, nil, time.Since(st)), nil
	}

	var total int64
	var items []index.Item
	switch q.Kind {
	case query.KindSuggest:
		if index.Normalize(q.Term) == "" {
			break
		}
		total, items = index.RankSuggest(sto.candidates(q.Term), q)
	case query.KindPopularWords, query.KindFamousKeys:
		total, items = index.RankPopular(sto.all(), q)
	default:
		return nil, errors.New("unsupported query kind " + q.Kind.String())
	}
	return index.NewResult(s.name, total, items, time.Since(st)), nil
}

func (s *Suggester) IndexObservation(ctx context.Context, o query.Observation) (*index.IndexResponse, error) {
	st := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sto, _ := s.engine.getOrCreate(s.name)
	items := index.ItemsFromObservation(o)
	sto.add(items)
	return &index.IndexResponse{Took: time.Since(st), NumDocs: len(items)}, nil
}

func (s *Suggester) SupportedFields(_ context.Context) ([]string, error) {
	sto, _ := s.engine.getOrCreate(s.name)
	return sto.md.Fields(), nil
}

func (s *Suggester) AddSupportedField(_ context.Context, field string) error {
	sto, _ := s.engine.getOrCreate(s.name)
	sto.md.AddField(field)
	return nil
}

func (sto *store) add(items []index.Item) {
	sto.mu.Lock()
	defer sto.mu.Unlock()
	for _, it := range items {
		if cur, ok := sto.items[it.Text]; ok {
			index.MergeItem(cur, it)
			continue
		}
		cp := it
		sto.items[it.Text] = &cp
		for _, suffix := range index.Suffixes(it.Text) {
			key := patricia.Prefix(suffix)
			if texts, ok := sto.trie.Get(key).(map[string]struct{}); ok {
				texts[it.Text] = struct{}{}
				continue
			}
			sto.trie.Insert(key, map[string]struct{}{it.Text: {}})
		}
	}
}

// candidates returns copies of the items having a suffix starting with term
func (sto *store) candidates(term string) []index.Item {
	sto.mu.RLock()
	defer sto.mu.RUnlock()

	seen := map[string]struct{}{}
	ret := []index.Item{}
	sto.trie.VisitSubtree(patricia.Prefix(index.Normalize(term)), func(_ patricia.Prefix, item patricia.Item) error {
		for text := range item.(map[string]struct{}) {
			if _, ok := seen[text]; ok {
				continue
			}
			seen[text] = struct{}{}
			ret = append(ret, copyItem(sto.items[text]))
		}
		return nil
	})
	return ret
}

func (sto *store) all() []index.Item {
	sto.mu.RLock()
	defer sto.mu.RUnlock()
	ret := make([]index.Item, 0, len(sto.items))
	for _, it := range sto.items {
		ret = append(ret, copyItem(it))
	}
	return ret
}

func copyItem(it *index.Item) index.Item {
	cp := *it
	cp.Tags = append([]string{}, it.Tags...)
	cp.Roles = append([]string{}, it.Roles...)
	cp.Fields = append([]string{}, it.Fields...)
	cp.Kinds = append([]string{}, it.Kinds...)
	return cp
}
