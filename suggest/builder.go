package suggest

import (
	"context"
	"fmt"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
)

// RequestBuilder accumulates the filters of one suggest, popular words or famous keys request.
// It is owned by a single caller and is finalized by Execute; it cannot be reused.
type RequestBuilder struct {
	svc      *Service
	q        *query.Query
	executed bool
	err      error
}

func newRequestBuilder(svc *Service, kind query.Kind, indexID string) *RequestBuilder {
	q := query.NewQuery(kind, indexID)
	if kind != query.KindSuggest && svc.windowSize > 0 {
		q.SetWindowSize(svc.windowSize)
	}
	return &RequestBuilder{svc: svc, q: q}
}

// mutable returns false, and records why, when the builder cannot be changed any more
func (b *RequestBuilder) mutable(only ...query.Kind) bool {
	if b.executed {
		b.fail(ErrBuilderFinalized)
		return false
	}
	if len(only) == 0 {
		return true
	}
	for _, k := range only {
		if b.q.Kind == k {
			return true
		}
	}
	b.fail(fmt.Errorf("%w: not applicable to %s requests", ErrInvalidParameter, b.q.Kind))
	return false
}

func (b *RequestBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *RequestBuilder) SetSize(n int) *RequestBuilder {
	if b.mutable() {
		b.q.Limit(n)
	}
	return b
}

func (b *RequestBuilder) AddTag(tag string) *RequestBuilder {
	if b.mutable() {
		b.q.AddTag(tag)
	}
	return b
}

func (b *RequestBuilder) AddRole(role string) *RequestBuilder {
	if b.mutable() {
		b.q.AddRole(role)
	}
	return b
}

func (b *RequestBuilder) AddField(field string) *RequestBuilder {
	if b.mutable() {
		b.q.AddField(field)
	}
	return b
}

// SetQuery sets the text to complete. Suggest only.
func (b *RequestBuilder) SetQuery(text string) *RequestBuilder {
	if b.mutable(query.KindSuggest) {
		b.q.SetTerm(text)
	}
	return b
}

// SetPrefixMatchWeight overrides the weight read from the index settings. Suggest only.
func (b *RequestBuilder) SetPrefixMatchWeight(w float64) *RequestBuilder {
	if b.mutable(query.KindSuggest) {
		b.q.SetPrefixMatchWeight(w)
	}
	return b
}

func (b *RequestBuilder) SetWindowSize(n int) *RequestBuilder {
	if b.mutable(query.KindPopularWords, query.KindFamousKeys) {
		b.q.SetWindowSize(n)
	}
	return b
}

// SetSeed fixes the sampling of popular words
func (b *RequestBuilder) SetSeed(seed string) *RequestBuilder {
	if b.mutable(query.KindPopularWords) {
		b.q.SetSeed(seed)
	}
	return b
}

func (b *RequestBuilder) AddExcludeWord(word string) *RequestBuilder {
	if b.mutable(query.KindPopularWords) {
		b.q.AddExcludeWord(word)
	}
	return b
}

// Err returns the first error recorded by a setter
func (b *RequestBuilder) Err() error {
	return b.err
}

// Request returns a copy of the request as it would be executed now
func (b *RequestBuilder) Request() query.Query {
	return b.finalize()
}

func (b *RequestBuilder) finalize() query.Query {
	q := b.q.Clone()
	if q.Kind == query.KindPopularWords {
		for _, w := range b.svc.excludeWords.Words() {
			q.AddExcludeWord(w)
		}
	}
	return q
}

// Execute finalizes the request and hands it to the dispatcher. A suggest request with an empty
// or bad query text never reaches the engine: it completes at once with an empty result.
func (b *RequestBuilder) Execute(ctx context.Context) *Future[*index.Result] {
	if b.executed {
		return Failed[*index.Result](ErrBuilderFinalized)
	}
	b.executed = true
	if b.err != nil {
		return Failed[*index.Result](b.err)
	}

	q := b.finalize()
	if q.Kind == query.KindSuggest && (q.Term == "" || b.svc.badQueries.Contains(q.Term)) {
		return Completed(index.NewResult(q.Index, 0, nil, 0))
	}

	svc := b.svc
	return Submit(svc.dispatcher, ctx, func(ctx context.Context) (*index.Result, error) {
		s, err := svc.registry.Get(ctx, q.Index)
		if err != nil {
			return nil, err
		}
		if q.Kind == query.KindSuggest && q.PrefixMatchWeight == 0 {
			q.PrefixMatchWeight = svc.prefixMatchWeight(ctx, q.Index)
		}
		res, err := s.Query(ctx, q)
		if err != nil {
			return nil, engineError(q.Index, q.Kind.String(), err)
		}
		return res, nil
	})
}
