package ingest

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/RediSearch/suggestd/suggest"
)

type timestamp int64

func (t *timestamp) UnmarshalJSON(b []byte) (err error) {
	s := strings.Trim(string(b), "\"")
	var i int64
	if i, err = strconv.ParseInt(s, 10, 64); err == nil {
		*t = timestamp(i)
	}
	return err
}

type redditDocument struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Created   timestamp `json:"created_utc"`
	Id        string    `json:"id"`
	Score     int64     `json:"score"`
	Subreddit string    `json:"subreddit"`
}

// RedditReader reads a reddit comments dump. Each comment body is learned as a document
// under the "body" field; deleted comments are skipped.
type RedditReader struct{}

func (rr *RedditReader) Read(r io.Reader, ch chan<- Record) error {
	jr := json.NewDecoder(r)
	for {
		var rd redditDocument
		if err := jr.Decode(&rd); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if rd.Body == "" || rd.Body == "[deleted]" || rd.Body == "[removed]" {
			continue
		}
		ch <- Record{
			Mode:    suggest.ModeDocument,
			Request: suggest.UpdateRequest{Document: rd.Body, Fields: []string{"body"}},
		}
	}
}
