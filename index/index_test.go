package index

import (
	"fmt"
	"testing"

	"github.com/RediSearch/suggestd/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello   WORLD "))
	assert.Equal(t, []string{"red phone case", "phone case", "case"}, Suffixes("Red Phone  case"))
	assert.Equal(t, []string{"a", "b", "c"}, Words("a, b. a c!"))
}

func TestMatchesPrefix(t *testing.T) {
	it := Item{Text: "検索1 エンジン"}
	assert.True(t, MatchesPrefix(it, "検索"))
	assert.True(t, MatchesPrefix(it, "検索1 エンジ"))
	assert.True(t, MatchesPrefix(it, "エンジ"))
	assert.False(t, MatchesPrefix(it, "検索 エンジ"))
}

func TestRankSuggest(t *testing.T) {
	items := []Item{
		{Text: "red phone", QueryFreq: 5, Roles: []string{"r1"}},
		{Text: "phone case", QueryFreq: 3, Roles: []string{"r1"}},
		{Text: "phone", QueryFreq: 1, Roles: []string{"r2"}},
	}

	q := query.NewQuery(query.KindSuggest, "shop").SetTerm("phone").Limit(2)
	total, got := RankSuggest(items, *q)
	assert.EqualValues(t, 3, total)
	require.Len(t, got, 2)
	// prefix matches are boosted: 3*2 > 5
	assert.Equal(t, "phone case", got[0].Text)
	assert.Equal(t, "red phone", got[1].Text)

	q = query.NewQuery(query.KindSuggest, "shop").SetTerm("phone").SetPrefixMatchWeight(10)
	_, got = RankSuggest(items, *q)
	assert.Equal(t, "phone case", got[0].Text)
	assert.Equal(t, "phone", got[1].Text)

	q = query.NewQuery(query.KindSuggest, "shop").SetTerm("phone").AddRole("r2")
	total, got = RankSuggest(items, *q)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "phone", got[0].Text)

	q = query.NewQuery(query.KindSuggest, "shop").SetTerm("   ")
	total, got = RankSuggest(items, *q)
	assert.Zero(t, total)
	assert.Empty(t, got)
}

func TestRankPopular(t *testing.T) {
	items := []Item{}
	for i := 0; i < 30; i++ {
		items = append(items, Item{Text: fmt.Sprintf("word%02d", i), QueryFreq: int64(i + 1)})
	}
	items = append(items, Item{Text: "docword", DocFreq: 100})

	q := query.NewQuery(query.KindFamousKeys, "shop").Limit(3)
	total, got := RankPopular(items, *q)
	assert.EqualValues(t, 30, total)
	require.Len(t, got, 3)
	assert.Equal(t, "word29", got[0].Text)
	assert.Equal(t, "word27", got[2].Text)

	q = query.NewQuery(query.KindPopularWords, "shop").Limit(5).SetWindowSize(10).SetSeed("abc").AddExcludeWord("WORD29")
	total, got = RankPopular(items, *q)
	assert.EqualValues(t, 29, total)
	require.Len(t, got, 5)
	for _, it := range got {
		assert.NotEqual(t, "word29", it.Text)
		assert.GreaterOrEqual(t, it.QueryFreq, int64(20))
	}

	_, again := RankPopular(items, *q)
	assert.Equal(t, got, again, "same seed gives the same sample")
}

func TestItemsFromObservation(t *testing.T) {
	its := ItemsFromObservation(query.NewSearchWord(" Phone Case ", []string{"f"}, []string{"t"}, []string{"r"}))
	require.Len(t, its, 1)
	assert.Equal(t, "phone case", its[0].Text)
	assert.EqualValues(t, 1, its[0].QueryFreq)
	assert.Equal(t, []string{KindSearchWord}, its[0].Kinds)

	its = ItemsFromObservation(query.NewDocument("alpha beta alpha", []string{"body"}))
	require.Len(t, its, 2)
	assert.Equal(t, "alpha", its[0].Text)
	assert.Equal(t, []string{"body"}, its[0].Fields)
	assert.EqualValues(t, 1, its[0].DocFreq)

	assert.Nil(t, ItemsFromObservation(query.NewSearchWord("  ", nil, nil, nil)))
}

func TestMergeItem(t *testing.T) {
	it := Item{Text: "a", Tags: []string{"x"}, QueryFreq: 1}
	MergeItem(&it, Item{Tags: []string{"x", "y"}, QueryFreq: 2, DocFreq: 1})
	assert.Equal(t, []string{"x", "y"}, it.Tags)
	assert.EqualValues(t, 3, it.QueryFreq)
	assert.EqualValues(t, 1, it.DocFreq)
}

func TestItemFromProperties(t *testing.T) {
	doc := NewDocument(ItemID("phone"), 1).
		Set(PropText, "phone").
		Set(PropTags, []interface{}{"a", "b"}).
		Set(PropQueryFreq, float64(3))
	it := ItemFromProperties(doc.Properties)
	assert.Equal(t, "phone", it.Text)
	assert.Equal(t, []string{"a", "b"}, it.Tags)
	assert.Equal(t, []string{}, it.Roles)
	assert.EqualValues(t, 3, it.QueryFreq)
	assert.Equal(t, ItemID("phone"), ItemID("phone"))
	assert.NotEqual(t, ItemID("phone"), ItemID("phones"))
}

func TestMetadata(t *testing.T) {
	md := NewMetadata("content")
	assert.True(t, md.Has("content"))
	assert.True(t, md.AddField("title"))
	assert.False(t, md.AddField("title"))
	assert.Equal(t, []string{"content", "title"}, md.Fields())
}
