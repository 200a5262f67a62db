package redisearch

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/RediSearch/suggestd/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexMember(t *testing.T) {
	m := lexMember("model1", "phone model1")
	assert.Equal(t, "phone model1", lexText(m))
	assert.Equal(t, "plain", lexText("plain"))

	min, max := lexRange("pho")
	assert.Equal(t, "[pho", min)
	assert.True(t, max[1:] > lexMember("phone", "phone"))
	assert.True(t, min[1:] < lexMember("phone", "phone"))
	assert.True(t, min[1:] > lexMember("ph", "ph"))
}

func TestPartitioner(t *testing.T) {
	p := ModuloPartitioner{3}
	for _, id := range []string{"shop", "blog", "検索"} {
		n := p.PartitionFor(id)
		assert.True(t, n < 3)
		assert.Equal(t, n, p.PartitionFor(id))
	}
	assert.Equal(t, uint32(0), ModuloPartitioner{1}.PartitionFor("anything"))
}

func TestKeys(t *testing.T) {
	i := &Index{name: "shop"}
	assert.Equal(t, "{shop}:lex", i.key("lex"))
	assert.Equal(t, "{shop}:item:phone case", i.itemKey("phone case"))
	assert.Equal(t, "{shop}:item:phone case:tags", i.itemKey("phone case", "tags"))
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(Options{})
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	e, err := NewEngine(Options{Hosts: []string{addr}, DefaultFields: []string{"content"}, ConnectRetries: 2})
	require.NoError(t, err)
	defer e.Close()

	idx, err := e.Open(ctx, "suggestd_test")
	require.NoError(t, err)
	require.NoError(t, idx.Drop(ctx))

	created, err := idx.CreateIndexIfNothing(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = idx.CreateIndexIfNothing(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	for n := 0; n < 10; n++ {
		_, err := idx.IndexObservation(ctx, query.NewSearchWord(fmt.Sprintf("phone model%d", n), nil, []string{"t1"}, nil))
		require.NoError(t, err)
	}

	res, err := idx.Query(ctx, *query.NewQuery(query.KindSuggest, "suggestd_test").SetTerm("phone"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.Total)
	assert.Len(t, res.Items, 10)

	res, err = idx.Query(ctx, *query.NewQuery(query.KindSuggest, "suggestd_test").SetTerm("model3"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
	assert.Equal(t, []string{"t1"}, res.Items[0].Tags)

	res, err = idx.Query(ctx, *query.NewQuery(query.KindFamousKeys, "suggestd_test").Limit(3))
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.Total)
	assert.Len(t, res.Items, 3)

	_, err = idx.IndexObservation(ctx, query.NewDocument("red case", []string{"title"}))
	require.NoError(t, err)
	require.NoError(t, idx.AddSupportedField(ctx, "title"))
	fields, err := idx.SupportedFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"content", "title"}, fields)

	assert.NoError(t, idx.Drop(ctx))
}
