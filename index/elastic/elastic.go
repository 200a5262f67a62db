// Package elastic is a suggester engine storing suggest items in Elasticsearch. Each suggester
// owns two indices: <name><suffix> for items and <name><suffix>.settings for its schema.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

const (
	supportedFieldsID = "supported_fields"
	settingsSuffix    = ".settings"
)

// Options configures an Engine
type Options struct {
	Addresses     []string
	Username      string
	Password      string
	Suffix        string
	DefaultFields []string
	// Refresh is passed to write requests: "true", "false" or "wait_for"
	Refresh string
	// ConnectRetries bounds the pings done before a suggester is considered unreachable
	ConnectRetries uint64
}

// Engine opens Elasticsearch backed suggesters and reads index metadata
type Engine struct {
	es   *elasticsearch.Client
	opts Options
}

func NewEngine(opts Options) (*Engine, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
	})
	if err != nil {
		return nil, err
	}
	if opts.Suffix == "" {
		opts.Suffix = ".suggest"
	}
	if opts.Refresh == "" {
		opts.Refresh = "false"
	}
	return &Engine{es: es, opts: opts}, nil
}

// Ping checks the cluster is reachable, retrying with exponential backoff
func (e *Engine) Ping(ctx context.Context) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.opts.ConnectRetries), ctx)
	return backoff.Retry(func() error {
		res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("ping: %s", res.Status())
		}
		return nil
	}, b)
}

// Open returns a suggester for an index, failing if the cluster cannot be reached
func (e *Engine) Open(ctx context.Context, name string) (*Index, error) {
	if err := e.Ping(ctx); err != nil {
		return nil, err
	}
	return &Index{
		es:       e.es,
		name:     name,
		items:    name + e.opts.Suffix,
		settings: name + e.opts.Suffix + settingsSuffix,
		opts:     e.opts,
	}, nil
}

// Index is a suggester bound to one index id
type Index struct {
	es       *elasticsearch.Client
	name     string
	items    string
	settings string
	opts     Options
}

func (i *Index) Index() string {
	return i.name
}

func (i *Index) CreateIndexIfNothing(ctx context.Context) (bool, error) {
	res, err := i.es.Indices.Exists([]string{i.items}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return false, nil
	}

	res, err = i.es.Indices.Create(i.items,
		i.es.Indices.Create.WithBody(esutil.NewJSONReader(itemMapping)),
		i.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.IsError() {
		rerr := responseError(res)
		if rerr.Type == "resource_already_exists_exception" {
			return false, nil
		}
		return false, rerr
	}
	return true, nil
}

// Drop deletes the item and settings indices
func (i *Index) Drop(ctx context.Context) error {
	res, err := i.es.Indices.Delete([]string{i.items, i.settings},
		i.es.Indices.Delete.WithIgnoreUnavailable(true),
		i.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError(res)
	}
	return nil
}

// Refresh makes every indexed observation visible to queries
func (i *Index) Refresh(ctx context.Context) error {
	res, err := i.es.Indices.Refresh(i.es.Indices.Refresh.WithIndex(i.items), i.es.Indices.Refresh.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func (i *Index) Query(ctx context.Context, q query.Query) (*index.Result, error) {
	st := time.Now()

	var body map[string]interface{}
	switch q.Kind {
	case query.KindSuggest:
		if index.Normalize(q.Term) == "" {
			return index.NewResult(i.name, 0, nil, time.Since(st)), nil
		}
		body = suggestBody(q)
	case query.KindPopularWords, query.KindFamousKeys:
		body = popularBody(q)
	default:
		return nil, fmt.Errorf("unsupported query kind %s", q.Kind)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.items),
		i.es.Search.WithBody(esutil.NewJSONReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return index.NewResult(i.name, 0, nil, time.Since(st)), nil
	}
	if res.IsError() {
		return nil, responseError(res)
	}

	total, items, err := parseSearchResponse(res.Body)
	if err != nil {
		return nil, err
	}
	if q.Kind != query.KindSuggest {
		_, items = index.RankPopular(items, q)
	}
	return index.NewResult(i.name, total, items, time.Since(st)), nil
}

// IndexObservation upserts every item of the observation in one bulk request
func (i *Index) IndexObservation(ctx context.Context, o query.Observation) (*index.IndexResponse, error) {
	st := time.Now()
	items := index.ItemsFromObservation(o)
	if len(items) == 0 {
		return &index.IndexResponse{Took: time.Since(st)}, nil
	}

	body, err := bulkUpsertBody(items)
	if err != nil {
		return nil, err
	}
	res, err := i.es.Bulk(bytes.NewReader(body),
		i.es.Bulk.WithIndex(i.items),
		i.es.Bulk.WithRefresh(i.opts.Refresh),
		i.es.Bulk.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}
	var br struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return nil, err
	}
	if br.Errors {
		for _, it := range br.Items {
			for _, r := range it {
				if len(r.Error) > 0 {
					return nil, fmt.Errorf("bulk update failed with status %d: %s", r.Status, r.Error)
				}
			}
		}
	}
	return &index.IndexResponse{Took: time.Since(st), NumDocs: len(items)}, nil
}

func (i *Index) SupportedFields(ctx context.Context) ([]string, error) {
	res, err := i.es.Get(i.settings, supportedFieldsID, i.es.Get.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return append([]string(nil), i.opts.DefaultFields...), nil
	}
	if res.IsError() {
		return nil, responseError(res)
	}
	var doc struct {
		Source struct {
			Values []string `json:"values"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Source.Values, nil
}

func (i *Index) AddSupportedField(ctx context.Context, field string) error {
	upsert := append(append([]string{}, i.opts.DefaultFields...), field)
	body := map[string]interface{}{
		"script": map[string]interface{}{
			"source": "if (!ctx._source.values.contains(params.field)) { ctx._source.values.add(params.field) } else { ctx.op = 'none' }",
			"params": map[string]interface{}{"field": field},
		},
		"upsert": map[string]interface{}{"values": upsert},
	}
	res, err := i.es.Update(i.settings, supportedFieldsID, esutil.NewJSONReader(body),
		i.es.Update.WithRefresh("true"),
		i.es.Update.WithRetryOnConflict(3),
		i.es.Update.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// ResponseError is an error answered by Elasticsearch
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("elasticsearch: [%d] %s: %s", e.Status, e.Type, e.Reason)
}

func responseError(res *esapi.Response) *ResponseError {
	rerr := &ResponseError{Status: res.StatusCode, Type: http.StatusText(res.StatusCode)}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return rerr
	}
	var e struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &e); err != nil || len(e.Error) == 0 {
		rerr.Reason = string(data)
		return rerr
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(e.Error, &detail); err == nil {
		rerr.Type, rerr.Reason = detail.Type, detail.Reason
	} else {
		rerr.Reason = string(e.Error)
	}
	return rerr
}
