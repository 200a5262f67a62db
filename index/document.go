package index

import (
	"github.com/google/uuid"
)

// itemNamespace seeds the deterministic ids of stored items
var itemNamespace = uuid.MustParse("6f1c2a4e-3b1d-4c55-9a0e-5b7d2f8e9c10")

// Document represents a single item as stored by a document engine (elastic, solr).
// Besides a score and id, the Properties are completely arbitrary
type Document struct {
	Id         string
	Score      float32
	Properties map[string]interface{}
}

// NewDocument creates a document with the specific id and score
func NewDocument(id string, score float32) Document {
	return Document{
		Id:         id,
		Score:      score,
		Properties: make(map[string]interface{}),
	}
}

// Set sets a property and its value in the document
func (d Document) Set(name string, value interface{}) Document {
	d.Properties[name] = value
	return d
}

// ItemID returns the stable document id of an item text, the same on every node
func ItemID(text string) string {
	return uuid.NewSHA1(itemNamespace, []byte(text)).String()
}

// ItemFromProperties rebuilds an item from stored document properties. Unknown
// property shapes are ignored.
func ItemFromProperties(props map[string]interface{}) Item {
	it := Item{}
	if s, ok := props[PropText].(string); ok {
		it.Text = s
	}
	it.Tags = stringList(props[PropTags])
	it.Roles = stringList(props[PropRoles])
	it.Fields = stringList(props[PropFields])
	it.Kinds = stringList(props[PropKinds])
	it.QueryFreq = int64Value(props[PropQueryFreq])
	it.DocFreq = int64Value(props[PropDocFreq])
	return it
}

// stored property names
const (
	PropText      = "text"
	PropTags      = "tags"
	PropRoles     = "roles"
	PropFields    = "fields"
	PropKinds     = "kinds"
	PropQueryFreq = "query_freq"
	PropDocFreq   = "doc_freq"
)

func stringList(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		ret := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				ret = append(ret, s)
			}
		}
		return ret
	case string:
		return []string{vv}
	}
	return []string{}
}

func int64Value(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case []interface{}:
		if len(n) > 0 {
			return int64Value(n[0])
		}
	}
	return 0
}
