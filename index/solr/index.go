// Package solr is a suggester engine storing one document per suggest item in a solr core.
// Scoring is done in process over the candidates solr returns.
package solr

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/cenkalti/backoff/v4"
	"github.com/vanng822/go-solr/solr"
)

const (
	supportedFieldsID = "_supported_fields"
	propSuffixes      = "suffixes"
	propSupported     = "supported_fields"
	maxCandidates     = 10000
)

// Options configures an Engine
type Options struct {
	URL            string
	Suffix         string
	ConfigSet      string
	DefaultFields  []string
	ConnectRetries uint64
}

// Engine opens suggesters backed by solr cores, one per index id
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.Suffix == "" {
		opts.Suffix = "_suggest"
	}
	if opts.ConfigSet == "" {
		opts.ConfigSet = "_default"
	}
	return &Engine{opts: opts}
}

func (e *Engine) Open(ctx context.Context, name string) (*Index, error) {
	core := name + e.opts.Suffix
	si, err := solr.NewSolrInterface(e.opts.URL, core)
	if err != nil {
		return nil, err
	}
	i := &Index{si: si, name: name, core: core, opts: e.opts}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.opts.ConnectRetries), ctx)
	if err := backoff.Retry(func() error {
		_, err := i.coreExists()
		return err
	}, b); err != nil {
		return nil, err
	}
	return i, nil
}

// Index is a suggester bound to one index id
type Index struct {
	si   *solr.SolrInterface
	name string
	core string
	opts Options
}

func (i *Index) Index() string {
	return i.name
}

func (i *Index) coreAction(action string, params url.Values) (*solr.SolrResponse, error) {
	ca, err := i.si.CoreAdmin()
	if err != nil {
		return nil, err
	}
	return ca.Action(action, &params)
}

func (i *Index) coreExists() (bool, error) {
	res, err := i.coreAction("STATUS", url.Values{"core": []string{i.core}})
	if err != nil {
		return false, err
	}
	return coreInStatus(res.Response, i.core), nil
}

// coreInStatus reads a CoreAdmin STATUS response, missing cores answer an empty object
func coreInStatus(resp map[string]interface{}, core string) bool {
	status, ok := resp["status"].(map[string]interface{})
	if !ok {
		return false
	}
	c, ok := status[core].(map[string]interface{})
	return ok && len(c) > 0
}

func (i *Index) CreateIndexIfNothing(ctx context.Context) (bool, error) {
	exists, err := i.coreExists()
	if err != nil || exists {
		return false, err
	}
	params := url.Values{}
	params.Set("name", i.core)
	params.Set("instanceDir", i.core)
	params.Set("configSet", i.opts.ConfigSet)
	res, err := i.coreAction("CREATE", params)
	if err != nil {
		return false, err
	}
	if res.Status != 0 {
		// lost a race with another creator
		if exists, _ := i.coreExists(); exists {
			return false, nil
		}
		return false, fmt.Errorf("solr: creating core %s failed with status %d", i.core, res.Status)
	}
	return true, nil
}

func (i *Index) Drop(ctx context.Context) error {
	_, err := i.si.DeleteAll()
	return err
}

func (i *Index) Query(ctx context.Context, q query.Query) (*index.Result, error) {
	st := time.Now()
	sq := solr.NewQuery()
	switch q.Kind {
	case query.KindSuggest:
		term := index.Normalize(q.Term)
		if term == "" {
			return index.NewResult(i.name, 0, nil, time.Since(st)), nil
		}
		sq.Q(fmt.Sprintf("%s:%s*", propSuffixes, escape(term)))
	case query.KindPopularWords, query.KindFamousKeys:
		sq.Q(index.PropQueryFreq + ":[1 TO *]")
		sq.Sort(index.PropQueryFreq + " desc")
	default:
		return nil, fmt.Errorf("unsupported query kind %s", q.Kind)
	}
	for _, fq := range facetFilters(q) {
		sq.FilterQuery(fq)
	}
	sq.Rows(maxCandidates)
	sq.AddParam("cache", "false")

	r, err := i.si.Search(sq).Result(nil)
	if err != nil {
		return nil, err
	}
	candidates := make([]index.Item, 0, len(r.Results.Docs))
	for _, d := range r.Results.Docs {
		candidates = append(candidates, itemFromDocument(d))
	}

	var total int64
	var items []index.Item
	if q.Kind == query.KindSuggest {
		total, items = index.RankSuggest(candidates, q)
	} else {
		total, items = index.RankPopular(candidates, q)
	}
	return index.NewResult(i.name, total, items, time.Since(st)), nil
}

func facetFilters(q query.Query) []string {
	var ret []string
	for _, f := range []struct {
		prop   string
		values []string
	}{{index.PropTags, q.Tags}, {index.PropRoles, q.Roles}, {index.PropFields, q.Fields}} {
		if len(f.values) == 0 {
			continue
		}
		quoted := make([]string, 0, len(f.values))
		for _, v := range f.values {
			quoted = append(quoted, `"`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
		}
		ret = append(ret, fmt.Sprintf("%s:(%s)", f.prop, strings.Join(quoted, " OR ")))
	}
	return ret
}

var escaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `!`, `\!`, `(`, `\(`, `)`, `\)`, `:`, `\:`,
	`^`, `\^`, `[`, `\[`, `]`, `\]`, `"`, `\"`, `{`, `\{`, `}`, `\}`, `~`, `\~`,
	`*`, `\*`, `?`, `\?`, `|`, `\|`, `&`, `\&`, `/`, `\/`, ` `, `\ `,
)

// escape quotes the lucene syntax characters of a term
func escape(term string) string {
	return escaper.Replace(term)
}

// itemFromDocument reads an item back, schemaless cores store single values as lists
func itemFromDocument(d solr.Document) index.Item {
	props := map[string]interface{}(d)
	if l, ok := props[index.PropText].([]interface{}); ok && len(l) > 0 {
		props[index.PropText] = l[0]
	}
	return index.ItemFromProperties(props)
}

// itemDocument is the atomic update merging an item into its stored document
func itemDocument(it index.Item) solr.Document {
	doc := solr.Document{
		"id":                index.ItemID(it.Text),
		index.PropText:      map[string]interface{}{"set": it.Text},
		propSuffixes:        map[string]interface{}{"set": index.Suffixes(it.Text)},
		index.PropQueryFreq: map[string]interface{}{"inc": it.QueryFreq},
		index.PropDocFreq:   map[string]interface{}{"inc": it.DocFreq},
	}
	for prop, values := range map[string][]string{
		index.PropTags:   it.Tags,
		index.PropRoles:  it.Roles,
		index.PropFields: it.Fields,
		index.PropKinds:  it.Kinds,
	} {
		if len(values) > 0 {
			doc[prop] = map[string]interface{}{"add-distinct": values}
		}
	}
	return doc
}

func (i *Index) IndexObservation(ctx context.Context, o query.Observation) (*index.IndexResponse, error) {
	st := time.Now()
	items := index.ItemsFromObservation(o)
	if len(items) == 0 {
		return &index.IndexResponse{Took: time.Since(st)}, nil
	}
	docs := make([]solr.Document, 0, len(items))
	for _, it := range items {
		docs = append(docs, itemDocument(it))
	}
	params := url.Values{"commit": []string{"true"}}
	if _, err := i.si.Add(docs, len(docs), &params); err != nil {
		return nil, err
	}
	return &index.IndexResponse{Took: time.Since(st), NumDocs: len(items)}, nil
}

func (i *Index) SupportedFields(ctx context.Context) ([]string, error) {
	sq := solr.NewQuery()
	sq.Q("id:" + supportedFieldsID)
	sq.Rows(1)
	r, err := i.si.Search(sq).Result(nil)
	if err != nil {
		return nil, err
	}
	if len(r.Results.Docs) == 0 {
		return append([]string(nil), i.opts.DefaultFields...), nil
	}
	return index.ItemFromProperties(map[string]interface{}{
		index.PropFields: r.Results.Docs[0].Get(propSupported),
	}).Fields, nil
}

func (i *Index) AddSupportedField(ctx context.Context, field string) error {
	values := append(append([]string{}, i.opts.DefaultFields...), field)
	doc := solr.Document{
		"id":          supportedFieldsID,
		propSupported: map[string]interface{}{"add-distinct": values},
	}
	params := url.Values{"commit": []string{"true"}}
	_, err := i.si.Add([]solr.Document{doc}, 1, &params)
	return err
}
