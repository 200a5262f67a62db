package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/suggest"
)

type hit struct {
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Roles  []string `json:"roles"`
	Fields []string `json:"fields"`
}

// ResultResponse is the wire form of a suggest, popular words or famous keys result
type ResultResponse struct {
	Index string `json:"index"`
	Took  int64  `json:"took"`
	Total int64  `json:"total"`
	Num   int    `json:"num"`
	Hits  []hit  `json:"hits,omitempty"`
}

type createResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

type updateResponse struct {
	Took         int64 `json:"took"`
	Acknowledged bool  `json:"acknowledged"`
}

// ErrorResponse mirrors the search engine error envelope
type ErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

func translate(res *index.Result) ResultResponse {
	out := ResultResponse{
		Index: res.Index,
		Took:  res.Took.Milliseconds(),
		Total: res.Total,
		Num:   res.Num,
	}
	for _, it := range res.Items {
		out.Hits = append(out.Hits, hit{
			Text:   it.Text,
			Tags:   nonNil(it.Tags),
			Roles:  nonNil(it.Roles),
			Fields: nonNil(it.Fields),
		})
	}
	return out
}

func nonNil(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

// errorStatus maps an error to its HTTP status and envelope type
func errorStatus(err error) (int, string) {
	var ee *suggest.EngineError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "request_entity_too_large"
	case suggest.IsClientError(err):
		return http.StatusBadRequest, "illegal_argument_exception"
	case errors.Is(err, suggest.ErrQueueFull):
		return http.StatusTooManyRequests, "rejected_execution_exception"
	case errors.Is(err, suggest.ErrPoolClosed):
		return http.StatusServiceUnavailable, "rejected_execution_exception"
	case errors.As(err, &ee):
		return http.StatusInternalServerError, "suggester_exception"
	}
	return http.StatusInternalServerError, "exception"
}

// pretty tells whether the caller asked for indented output; any value but "false" does
func pretty(r *http.Request) bool {
	q := r.URL.Query()
	return q.Has("pretty") && !strings.EqualFold(q.Get("pretty"), "false")
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty(r) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.logger.Error("Failed to send a response.", "err", err, "request_id", requestID(r.Context()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := errorStatus(err)
	h.logger.Debug("Failed to process the request.", "err", err, "status", status,
		"request_id", requestID(r.Context()))
	var body ErrorResponse
	body.Error.Type = typ
	body.Error.Reason = err.Error()
	body.Status = status
	h.writeJSON(w, r, status, body)
}
