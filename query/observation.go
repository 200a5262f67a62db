package query

// Observation is a single search-word or document observation to be indexed by a suggester.
// It is created, submitted and discarded; nothing here keeps it.
type Observation struct {
	Keyword string
	Fields  []string
	Tags    []string
	Roles   []string
	Weight  int

	// Document maps a field name to the raw document content. Set only for document observations.
	Document map[string]string
}

// IsDocument reports whether the observation carries document content instead of a keyword
func (o Observation) IsDocument() bool {
	return len(o.Document) > 0
}

// NewSearchWord creates a keyword observation with an occurrence weight of 1
func NewSearchWord(keyword string, fields, tags, roles []string) Observation {
	return Observation{
		Keyword: keyword,
		Fields:  fields,
		Tags:    tags,
		Roles:   roles,
		Weight:  1,
	}
}

// NewDocument creates a document observation, mapping every field to the same content
func NewDocument(content string, fields []string) Observation {
	doc := make(map[string]string, len(fields))
	for _, f := range fields {
		doc[f] = content
	}
	return Observation{
		Fields:   fields,
		Document: doc,
		Weight:   1,
	}
}
