package rest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/RediSearch/suggestd/suggest"
	"github.com/gorilla/schema"
)

// params are the query-string parameters of the read routes; each route uses its own subset
type params struct {
	Q          string `schema:"q"`
	Size       *int   `schema:"size"`
	WindowSize *int   `schema:"window_size"`
	Tags       string `schema:"tags"`
	Roles      string `schema:"roles"`
	Fields     string `schema:"fields"`
	Seed       string `schema:"seed"`
	Excludes   string `schema:"excludes"`
}

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

func decodeParams(values url.Values) (params, error) {
	var p params
	if err := decoder.Decode(&p, values); err != nil {
		return p, fmt.Errorf("%w: %v", suggest.ErrInvalidParameter, err)
	}
	if p.Size != nil && *p.Size < 0 {
		return p, fmt.Errorf("%w: size must not be negative", suggest.ErrInvalidParameter)
	}
	if p.WindowSize != nil && *p.WindowSize <= 0 {
		return p, fmt.Errorf("%w: window_size must be positive", suggest.ErrInvalidParameter)
	}
	return p, nil
}

// splitParam splits a comma separated parameter, dropping blank entries
func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	ret := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}

// applyFilters copies the parameters shared by every read route
func (p params) applyFilters(b *suggest.RequestBuilder) *suggest.RequestBuilder {
	if p.Size != nil {
		b.SetSize(*p.Size)
	}
	for _, tag := range splitParam(p.Tags) {
		b.AddTag(tag)
	}
	for _, role := range splitParam(p.Roles) {
		b.AddRole(role)
	}
	for _, field := range splitParam(p.Fields) {
		b.AddField(field)
	}
	return b
}

func (p params) suggest(b *suggest.RequestBuilder) *suggest.RequestBuilder {
	return p.applyFilters(b).SetQuery(p.Q)
}

func (p params) popularWords(b *suggest.RequestBuilder) *suggest.RequestBuilder {
	p.applyFilters(b)
	if p.WindowSize != nil {
		b.SetWindowSize(*p.WindowSize)
	}
	if p.Seed != "" {
		b.SetSeed(p.Seed)
	}
	for _, w := range splitParam(p.Excludes) {
		b.AddExcludeWord(w)
	}
	return b
}

func (p params) famousKeys(b *suggest.RequestBuilder) *suggest.RequestBuilder {
	p.applyFilters(b)
	if p.WindowSize != nil {
		b.SetWindowSize(*p.WindowSize)
	}
	return b
}
