package suggest

import (
	"context"
	"time"

	"github.com/RediSearch/suggestd/query"
	"github.com/charmbracelet/log"
)

// Options configures a Service
type Options struct {
	// BadQueries are query texts answered with an empty result without asking the engine
	BadQueries WordSet
	// ExcludeWords are added to every popular words request
	ExcludeWords WordSet
	// WindowSize is the default popular words and famous keys window, query.DefaultWindowSize if 0
	WindowSize int
	// DefaultFields are used by document updates that name no field
	DefaultFields []string
	// Settings resolves per-index prefix-match weights, may be nil
	Settings SettingsLookup
}

// Service ties the registry, the dispatcher and the filters together. Every operation returns
// a future; the caller's goroutine never does engine I/O.
type Service struct {
	registry   *Registry
	dispatcher *Dispatcher
	updater    *Updater
	settings   SettingsLookup
	logger     *log.Logger

	badQueries   WordSet
	excludeWords WordSet
	windowSize   int
}

// CreateResponse tells whether a create call built the backing index
type CreateResponse struct {
	Index string
	// Acknowledged is true only if the index did not exist and was just created
	Acknowledged bool
	Took         time.Duration
}

// Stats is an operator snapshot of the service
type Stats struct {
	Suggesters int             `json:"suggesters"`
	Builds     uint64          `json:"builds"`
	BuildFails uint64          `json:"build_failures"`
	Pool       DispatcherStats `json:"pool"`
}

func NewService(registry *Registry, dispatcher *Dispatcher, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if opts.BadQueries == nil {
		opts.BadQueries = WordSet{}
	}
	if opts.ExcludeWords == nil {
		opts.ExcludeWords = WordSet{}
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = query.DefaultWindowSize
	}
	return &Service{
		registry:     registry,
		dispatcher:   dispatcher,
		updater:      NewUpdater(opts.DefaultFields, logger),
		settings:     opts.Settings,
		logger:       logger.WithPrefix("service"),
		badQueries:   opts.BadQueries,
		excludeWords: opts.ExcludeWords,
		windowSize:   opts.WindowSize,
	}
}

func (s *Service) Suggest(indexID string) *RequestBuilder {
	return newRequestBuilder(s, query.KindSuggest, indexID)
}

func (s *Service) PopularWords(indexID string) *RequestBuilder {
	return newRequestBuilder(s, query.KindPopularWords, indexID)
}

func (s *Service) FamousKeys(indexID string) *RequestBuilder {
	return newRequestBuilder(s, query.KindFamousKeys, indexID)
}

// Create drops any cached suggester of the index, builds a fresh one and asks it to create its
// backing index if missing
func (s *Service) Create(ctx context.Context, indexID string) *Future[*CreateResponse] {
	if indexID == "" {
		return Failed[*CreateResponse](ErrEmptyIndex)
	}
	s.registry.Invalidate(indexID)
	return Submit(s.dispatcher, ctx, func(ctx context.Context) (*CreateResponse, error) {
		st := time.Now()
		sg, err := s.registry.Get(ctx, indexID)
		if err != nil {
			return nil, err
		}
		created, err := sg.CreateIndexIfNothing(ctx)
		if err != nil {
			return nil, engineError(indexID, "create", err)
		}
		if created {
			s.logger.Info("suggest index created", "index", indexID)
		}
		return &CreateResponse{Index: indexID, Acknowledged: created, Took: time.Since(st)}, nil
	})
}

// Update validates the request synchronously, a bad mode or an empty keyword or document
// fails without touching the engine, then indexes the observation on the pool
func (s *Service) Update(ctx context.Context, indexID, mode string, req UpdateRequest) *Future[*UpdateResponse] {
	if indexID == "" {
		return Failed[*UpdateResponse](ErrEmptyIndex)
	}
	m, err := ParseMode(mode)
	if err != nil {
		return Failed[*UpdateResponse](err)
	}
	o, err := s.updater.Observation(m, req)
	if err != nil {
		return Failed[*UpdateResponse](err)
	}
	return Submit(s.dispatcher, ctx, func(ctx context.Context) (*UpdateResponse, error) {
		sg, err := s.registry.Get(ctx, indexID)
		if err != nil {
			return nil, err
		}
		return s.updater.Apply(ctx, sg, o)
	})
}

// Invalidate forgets the cached suggester of an index
func (s *Service) Invalidate(indexID string) {
	s.registry.Invalidate(indexID)
}

func (s *Service) Stats() Stats {
	ok, failed := s.registry.Builds()
	return Stats{
		Suggesters: s.registry.Len(),
		Builds:     ok,
		BuildFails: failed,
		Pool:       s.dispatcher.Stats(),
	}
}

// prefixMatchWeight looks up the index setting, a failed lookup means no weight
func (s *Service) prefixMatchWeight(ctx context.Context, indexID string) float64 {
	if s.settings == nil {
		return 0
	}
	w, err := s.settings.PrefixMatchWeight(ctx, indexID)
	if err != nil {
		s.logger.Warn("could not read prefix match weight", "index", indexID, "err", err)
		return 0
	}
	if w < 0 {
		return 0
	}
	return w
}
