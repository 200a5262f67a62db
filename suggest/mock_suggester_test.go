package suggest

import (
	"context"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/stretchr/testify/mock"
)

type MockSuggester struct {
	mock.Mock
	name string
}

func newMockSuggester(name string) *MockSuggester {
	return &MockSuggester{name: name}
}

func (m *MockSuggester) Index() string {
	return m.name
}

func (m *MockSuggester) CreateIndexIfNothing(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockSuggester) Query(ctx context.Context, q query.Query) (*index.Result, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.Result), args.Error(1)
}

func (m *MockSuggester) IndexObservation(ctx context.Context, o query.Observation) (*index.IndexResponse, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.IndexResponse), args.Error(1)
}

func (m *MockSuggester) SupportedFields(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(context.Context) []string); ok {
		return fn(ctx), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSuggester) AddSupportedField(ctx context.Context, field string) error {
	args := m.Called(ctx, field)
	return args.Error(0)
}

// staticFactory always returns the same suggester
func staticFactory(s Suggester) Factory {
	return func(context.Context, string) (Suggester, error) {
		return s, nil
	}
}
