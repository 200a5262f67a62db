package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/RediSearch/suggestd/suggest"
)

const maxLineSize = 1024 * 1024

// KeywordReader reads a plain search log, one keyword per line
type KeywordReader struct {
	Fields []string
	Tags   []string
	Roles  []string
}

func (kr *KeywordReader) Read(r io.Reader, ch chan<- Record) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		kw := strings.TrimSpace(sc.Text())
		if kw == "" {
			continue
		}
		ch <- Record{
			Mode:    suggest.ModeSearchWord,
			Request: suggest.UpdateRequest{Keyword: kw, Fields: kr.Fields, Tags: kr.Tags, Roles: kr.Roles},
		}
	}
	return sc.Err()
}

// JSONReader reads JSON lines shaped like update bodies, all learned in one mode
type JSONReader struct {
	Mode suggest.Mode
}

func (jr *JSONReader) Read(r io.Reader, ch chan<- Record) error {
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var req suggest.UpdateRequest
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("record %d: %w", line, err)
		}
		ch <- Record{Mode: jr.Mode, Request: req}
	}
}

// NewReader returns the reader of a named input format
func NewReader(format string) (RecordReader, error) {
	switch format {
	case "keywords":
		return &KeywordReader{}, nil
	case "searchwords":
		return &JSONReader{Mode: suggest.ModeSearchWord}, nil
	case "documents":
		return &JSONReader{Mode: suggest.ModeDocument}, nil
	case "reddit":
		return &RedditReader{}, nil
	case "wikipedia":
		return &WikipediaAbstractsReader{}, nil
	}
	return nil, fmt.Errorf("unknown input format %q", format)
}
