package solr

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vanng822/go-solr/solr"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, `phone\ model`, escape("phone model"))
	assert.Equal(t, `a\:b\*`, escape("a:b*"))
	assert.Equal(t, "検索", escape("検索"))
}

func TestFacetFilters(t *testing.T) {
	q := query.NewQuery(query.KindSuggest, "shop").AddTag("a").AddTag(`b"c`).AddField("title")
	assert.Equal(t, []string{`tags:("a" OR "b\"c")`, `fields:("title")`}, facetFilters(*q))
	assert.Empty(t, facetFilters(*query.NewQuery(query.KindSuggest, "shop")))
}

func TestItemDocument(t *testing.T) {
	doc := itemDocument(index.Item{Text: "phone case", Tags: []string{"t"}, QueryFreq: 2})
	assert.Equal(t, index.ItemID("phone case"), doc["id"])
	assert.Equal(t, map[string]interface{}{"inc": int64(2)}, doc[index.PropQueryFreq])
	assert.Equal(t, map[string]interface{}{"set": []string{"phone case", "case"}}, doc[propSuffixes])
	assert.Equal(t, map[string]interface{}{"add-distinct": []string{"t"}}, doc[index.PropTags])
	assert.NotContains(t, doc, index.PropRoles)
}

func TestItemFromDocument(t *testing.T) {
	it := itemFromDocument(solr.Document{
		"id":         "x",
		"text":       []interface{}{"phone case"},
		"query_freq": []interface{}{float64(3)},
		"tags":       []interface{}{"a", "b"},
	})
	assert.Equal(t, "phone case", it.Text)
	assert.EqualValues(t, 3, it.QueryFreq)
	assert.Equal(t, []string{"a", "b"}, it.Tags)
}

func TestCoreInStatus(t *testing.T) {
	assert.True(t, coreInStatus(map[string]interface{}{
		"status": map[string]interface{}{"shop_suggest": map[string]interface{}{"name": "shop_suggest"}},
	}, "shop_suggest"))
	assert.False(t, coreInStatus(map[string]interface{}{
		"status": map[string]interface{}{"shop_suggest": map[string]interface{}{}},
	}, "shop_suggest"))
	assert.False(t, coreInStatus(map[string]interface{}{}, "shop_suggest"))
}

func TestIndex(t *testing.T) {
	u := os.Getenv("SOLR_URL")
	if u == "" {
		t.Skip("SOLR_URL not set")
	}
	ctx := context.Background()
	e := NewEngine(Options{URL: u, DefaultFields: []string{"content"}, ConnectRetries: 2})
	idx, err := e.Open(ctx, "suggestd_test")
	require.NoError(t, err)
	_, err = idx.CreateIndexIfNothing(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Drop(ctx))

	created, err := idx.CreateIndexIfNothing(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	for n := 0; n < 10; n++ {
		_, err := idx.IndexObservation(ctx, query.NewSearchWord(fmt.Sprintf("phone model%d", n), nil, nil, nil))
		require.NoError(t, err)
	}
	res, err := idx.Query(ctx, *query.NewQuery(query.KindSuggest, "suggestd_test").SetTerm("phone"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.Total)
	assert.Len(t, res.Items, 10)

	require.NoError(t, idx.AddSupportedField(ctx, "title"))
	fields, err := idx.SupportedFields(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"content", "title"}, fields)
}
