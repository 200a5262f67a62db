package elastic

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
)

var itemMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			index.PropText: map[string]interface{}{
				"type":   "text",
				"fields": map[string]interface{}{"raw": map[string]interface{}{"type": "keyword"}},
			},
			index.PropTags:      map[string]interface{}{"type": "keyword"},
			index.PropRoles:     map[string]interface{}{"type": "keyword"},
			index.PropFields:    map[string]interface{}{"type": "keyword"},
			index.PropKinds:     map[string]interface{}{"type": "keyword"},
			index.PropQueryFreq: map[string]interface{}{"type": "long"},
			index.PropDocFreq:   map[string]interface{}{"type": "long"},
		},
	},
}

// upsertScript folds an observation into a stored item
const upsertScript = `ctx._source.query_freq += params.query_freq;
ctx._source.doc_freq += params.doc_freq;
for (String k : ['tags', 'roles', 'fields', 'kinds']) {
  if (ctx._source[k] == null) { ctx._source[k] = []; }
  for (def v : params[k]) { if (!ctx._source[k].contains(v)) { ctx._source[k].add(v); } }
}`

func facetFilters(q query.Query) []interface{} {
	filters := []interface{}{}
	for _, f := range []struct {
		prop   string
		values []string
	}{{index.PropTags, q.Tags}, {index.PropRoles, q.Roles}, {index.PropFields, q.Fields}} {
		if len(f.values) > 0 {
			filters = append(filters, map[string]interface{}{"terms": map[string]interface{}{f.prop: f.values}})
		}
	}
	return filters
}

// suggestBody matches items having a phrase starting with the query, scored by frequencies
// and boosted when the whole text starts with it
func suggestBody(q query.Query) map[string]interface{} {
	term := index.Normalize(q.Term)
	weight := q.PrefixMatchWeight
	if weight <= 0 {
		weight = index.DefaultPrefixMatchWeight
	}
	return map[string]interface{}{
		"size":             q.Size,
		"track_total_hits": true,
		"query": map[string]interface{}{
			"function_score": map[string]interface{}{
				"query": map[string]interface{}{
					"bool": map[string]interface{}{
						"must": []interface{}{
							map[string]interface{}{"match_phrase_prefix": map[string]interface{}{index.PropText: term}},
						},
						"filter": facetFilters(q),
						"should": []interface{}{
							map[string]interface{}{"prefix": map[string]interface{}{
								index.PropText + ".raw": map[string]interface{}{"value": term, "boost": weight},
							}},
						},
					},
				},
				"functions": []interface{}{
					map[string]interface{}{"field_value_factor": map[string]interface{}{
						"field": index.PropQueryFreq, "modifier": "log1p", "missing": 0,
					}},
					map[string]interface{}{"field_value_factor": map[string]interface{}{
						"field": index.PropDocFreq, "modifier": "log1p", "factor": 0.5, "missing": 0,
					}},
				},
				"score_mode": "sum",
				"boost_mode": "multiply",
			},
		},
	}
}

// popularBody fetches the window of most searched items, sampling is done by the caller
func popularBody(q query.Query) map[string]interface{} {
	filters := append(facetFilters(q),
		map[string]interface{}{"range": map[string]interface{}{index.PropQueryFreq: map[string]interface{}{"gt": 0}}})
	boolQuery := map[string]interface{}{"filter": filters}
	if len(q.ExcludeWords) > 0 {
		excludes := make([]string, 0, len(q.ExcludeWords))
		for _, w := range q.ExcludeWords {
			excludes = append(excludes, index.Normalize(w))
		}
		boolQuery["must_not"] = []interface{}{
			map[string]interface{}{"terms": map[string]interface{}{index.PropText + ".raw": excludes}},
		}
	}
	return map[string]interface{}{
		"size":             q.WindowSize,
		"track_total_hits": true,
		"query":            map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{index.PropQueryFreq: "desc"},
			map[string]interface{}{index.PropText + ".raw": "asc"},
		},
	}
}

// bulkUpsertBody builds the NDJSON body of a bulk request upserting items
func bulkUpsertBody(items []index.Item) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, it := range items {
		params := map[string]interface{}{
			index.PropTags:      nonNil(it.Tags),
			index.PropRoles:     nonNil(it.Roles),
			index.PropFields:    nonNil(it.Fields),
			index.PropKinds:     nonNil(it.Kinds),
			index.PropQueryFreq: it.QueryFreq,
			index.PropDocFreq:   it.DocFreq,
		}
		upsert := map[string]interface{}{index.PropText: it.Text}
		for k, v := range params {
			upsert[k] = v
		}
		if err := enc.Encode(map[string]interface{}{
			"update": map[string]interface{}{"_id": index.ItemID(it.Text), "retry_on_conflict": 3},
		}); err != nil {
			return nil, err
		}
		if err := enc.Encode(map[string]interface{}{
			"script": map[string]interface{}{"source": upsertScript, "lang": "painless", "params": params},
			"upsert": upsert,
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func nonNil(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  float64                `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseSearchResponse(r io.Reader) (int64, []index.Item, error) {
	var sr searchResponse
	if err := json.NewDecoder(r).Decode(&sr); err != nil {
		return 0, nil, err
	}
	items := make([]index.Item, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		it := index.ItemFromProperties(h.Source)
		it.Score = h.Score
		items = append(items, it)
	}
	return sr.Hits.Total.Value, items, nil
}

// metaWeight reads the prefix-match weight out of a mapping _meta, either nested
// ({"suggest": {"prefix_match_weight": 2}}) or flat ({"index.suggest.prefix_match_weight": "2"})
func metaWeight(meta map[string]interface{}) float64 {
	if meta == nil {
		return 0
	}
	if v, ok := meta[PrefixMatchWeightSetting]; ok {
		return number(v)
	}
	if s, ok := meta["suggest"].(map[string]interface{}); ok {
		return number(s["prefix_match_weight"])
	}
	return 0
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f
		}
	}
	return 0
}
