package elastic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, body map[string]interface{}) map[string]interface{} {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSuggestBody(t *testing.T) {
	q := query.NewQuery(query.KindSuggest, "shop").SetTerm("Phone ").Limit(5).AddRole("admin")

	body := roundTrip(t, suggestBody(*q))
	assert.EqualValues(t, 5, body["size"])
	assert.Equal(t, true, body["track_total_hits"])

	fs := body["query"].(map[string]interface{})["function_score"].(map[string]interface{})
	b := fs["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := b["must"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "phone", must["match_phrase_prefix"].(map[string]interface{})[index.PropText])

	filter := b["filter"].([]interface{})
	require.Len(t, filter, 1)
	assert.Equal(t, []interface{}{"admin"}, filter[0].(map[string]interface{})["terms"].(map[string]interface{})[index.PropRoles])

	prefix := b["should"].([]interface{})[0].(map[string]interface{})["prefix"].(map[string]interface{})
	assert.EqualValues(t, index.DefaultPrefixMatchWeight, prefix["text.raw"].(map[string]interface{})["boost"])

	q.SetPrefixMatchWeight(4)
	body = roundTrip(t, suggestBody(*q))
	fs = body["query"].(map[string]interface{})["function_score"].(map[string]interface{})
	b = fs["query"].(map[string]interface{})["bool"].(map[string]interface{})
	prefix = b["should"].([]interface{})[0].(map[string]interface{})["prefix"].(map[string]interface{})
	assert.EqualValues(t, 4, prefix["text.raw"].(map[string]interface{})["boost"])
}

func TestPopularBody(t *testing.T) {
	q := query.NewQuery(query.KindPopularWords, "shop").SetWindowSize(30).AddExcludeWord("Spam").AddTag("t1")

	body := roundTrip(t, popularBody(*q))
	assert.EqualValues(t, 30, body["size"])
	b := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, b["filter"], 2)
	mustNot := b["must_not"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{"spam"}, mustNot["terms"].(map[string]interface{})["text.raw"])

	q = query.NewQuery(query.KindFamousKeys, "shop")
	b = roundTrip(t, popularBody(*q))["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.NotContains(t, b, "must_not")
	assert.Len(t, b["filter"], 1)
}

func TestBulkUpsertBody(t *testing.T) {
	items := []index.Item{
		{Text: "phone", Kinds: []string{index.KindSearchWord}, QueryFreq: 2},
		{Text: "case", Fields: []string{"title"}, Kinds: []string{index.KindDocument}, DocFreq: 1},
	}
	data, err := bulkUpsertBody(items)
	require.NoError(t, err)

	var lines []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, index.ItemID("phone"), lines[0]["update"].(map[string]interface{})["_id"])
	upsert := lines[1]["upsert"].(map[string]interface{})
	assert.Equal(t, "phone", upsert["text"])
	assert.EqualValues(t, 2, upsert["query_freq"])
	assert.Equal(t, []interface{}{}, upsert["tags"])
	params := lines[3]["script"].(map[string]interface{})["params"].(map[string]interface{})
	assert.Equal(t, []interface{}{"title"}, params["fields"])
	assert.EqualValues(t, 1, params["doc_freq"])
}

func TestParseSearchResponse(t *testing.T) {
	body := `{"took":1,"hits":{"total":{"value":12,"relation":"eq"},"hits":[
		{"_id":"a","_score":3.5,"_source":{"text":"phone model1","tags":["t"],"query_freq":4,"doc_freq":0}},
		{"_id":"b","_score":1.0,"_source":{"text":"phone case","fields":["title"],"doc_freq":2}}]}}`
	total, items, err := parseSearchResponse(strings.NewReader(body))
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
	require.Len(t, items, 2)
	assert.Equal(t, "phone model1", items[0].Text)
	assert.Equal(t, 3.5, items[0].Score)
	assert.EqualValues(t, 4, items[0].QueryFreq)
	assert.Equal(t, []string{"title"}, items[1].Fields)

	_, _, err = parseSearchResponse(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestMetaWeight(t *testing.T) {
	assert.Equal(t, 0.0, metaWeight(nil))
	assert.Equal(t, 3.0, metaWeight(map[string]interface{}{PrefixMatchWeightSetting: "3"}))
	assert.Equal(t, 2.5, metaWeight(map[string]interface{}{
		"suggest": map[string]interface{}{"prefix_match_weight": 2.5},
	}))
	assert.Equal(t, 0.0, metaWeight(map[string]interface{}{PrefixMatchWeightSetting: "abc"}))
}

// mappingServer answers every request with status and body, the way a cluster does
func mappingServer(t *testing.T, status int, body string) *Engine {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/_mapping"), r.URL.Path)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	e, err := NewEngine(Options{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return e
}

func TestPrefixMatchWeight(t *testing.T) {
	ctx := context.Background()

	e := mappingServer(t, http.StatusOK, `{
		"shop-2023": {"mappings": {"_meta": {"index.suggest.prefix_match_weight": 1.5}}},
		"shop-2024": {"mappings": {"_meta": {"suggest": {"prefix_match_weight": "3"}}}},
		"shop-old": {"mappings": {}}
	}`)
	w, err := e.PrefixMatchWeight(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 3.0, w)

	e = mappingServer(t, http.StatusNotFound,
		`{"error":{"type":"index_not_found_exception","reason":"no such index [shop]"},"status":404}`)
	w, err = e.PrefixMatchWeight(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 0.0, w)

	e = mappingServer(t, http.StatusInternalServerError,
		`{"error":{"type":"exception","reason":"boom"},"status":500}`)
	_, err = e.PrefixMatchWeight(ctx, "shop")
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	url := os.Getenv("ELASTIC_URL")
	if url == "" {
		t.Skip("ELASTIC_URL not set")
	}
	ctx := context.Background()
	e, err := NewEngine(Options{Addresses: []string{url}, DefaultFields: []string{"content"}, ConnectRetries: 2})
	require.NoError(t, err)
	idx, err := e.Open(ctx, "suggestd_test")
	require.NoError(t, err)
	require.NoError(t, idx.Drop(ctx))

	created, err := idx.CreateIndexIfNothing(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = idx.CreateIndexIfNothing(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	for i := 0; i < 10; i++ {
		o := query.NewSearchWord(fmt.Sprintf("phone model%d", i), nil, nil, nil)
		_, err := idx.IndexObservation(ctx, o)
		require.NoError(t, err)
	}
	require.NoError(t, idx.Refresh(ctx))
	res, err := idx.Query(ctx, *query.NewQuery(query.KindSuggest, "suggestd_test").SetTerm("phone"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.Total)
	assert.Len(t, res.Items, 10)

	fields, err := idx.SupportedFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"content"}, fields)
	require.NoError(t, idx.AddSupportedField(ctx, "title"))
	fields, err = idx.SupportedFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"content", "title"}, fields)

	w, err := e.PrefixMatchWeight(ctx, "suggestd_test.suggest")
	require.NoError(t, err)
	assert.Equal(t, 0.0, w)

	assert.NoError(t, idx.Drop(ctx))
}
