package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RediSearch/suggestd/query"
	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
)

// Mode selects how an update body is learned
type Mode string

const (
	ModeSearchWord Mode = "searchword"
	ModeDocument   Mode = "document"
)

// ParseMode validates an update mode token
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSearchWord, ModeDocument:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: [%s]", ErrUnknownMode, s)
}

// UpdateRequest is the body of an update call
type UpdateRequest struct {
	Keyword  string   `json:"keyword"`
	Document string   `json:"document"`
	Fields   []string `json:"fields"`
	Tags     []string `json:"tags"`
	Roles    []string `json:"roles"`
	Weight   int      `json:"weight"`
}

// UpdateResponse acknowledges an indexed observation
type UpdateResponse struct {
	Took         time.Duration
	Acknowledged bool
	// NewFields lists the fields registered as supported by this update
	NewFields []string
}

// Updater turns update requests into observations and submits them to a suggester
type Updater struct {
	defaultFields []string
	logger        *log.Logger

	// serializes supported-field registration per index
	locks sync.Map
}

func NewUpdater(defaultFields []string, logger *log.Logger) *Updater {
	if logger == nil {
		logger = log.Default()
	}
	return &Updater{
		defaultFields: defaultFields,
		logger:        logger.WithPrefix("update"),
	}
}

// Observation validates a request and builds the observation to index. It does no I/O.
// Tags and roles of a document update are not carried over.
func (u *Updater) Observation(mode Mode, req UpdateRequest) (query.Observation, error) {
	switch mode {
	case ModeSearchWord:
		if strings.TrimSpace(req.Keyword) == "" {
			return query.Observation{}, ErrEmptyKeyword
		}
		if req.Weight < 0 {
			return query.Observation{}, fmt.Errorf("%w: negative weight %d", ErrInvalidParameter, req.Weight)
		}
		o := query.NewSearchWord(req.Keyword, nonNil(req.Fields), nonNil(req.Tags), nonNil(req.Roles))
		if req.Weight > 0 {
			o.Weight = req.Weight
		}
		return o, nil
	case ModeDocument:
		if strings.TrimSpace(req.Document) == "" {
			return query.Observation{}, ErrEmptyDocument
		}
		fields := req.Fields
		if len(fields) == 0 {
			fields = u.defaultFields
		}
		if len(fields) == 0 {
			return query.Observation{}, fmt.Errorf("%w: no field to index the document under", ErrInvalidParameter)
		}
		return query.NewDocument(req.Document, fields), nil
	}
	return query.Observation{}, fmt.Errorf("%w: [%s]", ErrUnknownMode, mode)
}

// Apply indexes an observation. For documents, fields the suggester does not support yet are
// registered first, each one once.
func (u *Updater) Apply(ctx context.Context, s Suggester, o query.Observation) (*UpdateResponse, error) {
	st := time.Now()
	resp := &UpdateResponse{}

	if o.IsDocument() {
		added, err := u.registerFields(ctx, s, o.Fields)
		if err != nil {
			return nil, engineError(s.Index(), "register_fields", err)
		}
		resp.NewFields = added
	}

	ir, err := s.IndexObservation(ctx, o)
	if err != nil {
		return nil, engineError(s.Index(), "index", err)
	}
	resp.Took = ir.Took
	if resp.Took == 0 {
		resp.Took = time.Since(st)
	}
	resp.Acknowledged = true
	return resp, nil
}

func (u *Updater) registerFields(ctx context.Context, s Suggester, fields []string) ([]string, error) {
	l, _ := u.locks.LoadOrStore(s.Index(), &sync.Mutex{})
	mu := l.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	supported, err := s.SupportedFields(ctx)
	if err != nil {
		return nil, err
	}
	var added []string
	for _, f := range fields {
		if slices.Contains(supported, f) || slices.Contains(added, f) {
			continue
		}
		if err := s.AddSupportedField(ctx, f); err != nil {
			return added, err
		}
		u.logger.Info("field registered as supported", "index", s.Index(), "field", f)
		added = append(added, f)
	}
	return added, nil
}

func nonNil(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
