package ingest

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/RediSearch/suggestd/suggest"
)

func filter(title, body string) bool {
	if strings.HasPrefix(title, "List of") || strings.HasPrefix(body, "#REDIRECT") || strings.HasPrefix(body, "#redirect") ||
		strings.Contains(title, "(disambiguation)") {
		return false
	}
	return true
}

// WikipediaAbstractsReader reads a wikipedia abstracts XML dump. Every article title is learned
// as a search word, its abstract as a document under the "abstract" field.
type WikipediaAbstractsReader struct {
	// Tags are attached to the title search words
	Tags []string
}

func (wr *WikipediaAbstractsReader) Read(r io.Reader, ch chan<- Record) error {
	dec := xml.NewDecoder(r)
	props := map[string]string{}
	var currentText string
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.CharData:
			currentText += string(t)
		case xml.EndElement:
			name := t.Name.Local
			if name == "title" || name == "abstract" {
				props[name] = currentText
			} else if name == "doc" {
				title := strings.TrimPrefix(strings.TrimSpace(props["title"]), "Wikipedia: ")
				body := strings.TrimSpace(props["abstract"])
				if title != "" && filter(title, body) {
					ch <- Record{
						Mode:    suggest.ModeSearchWord,
						Request: suggest.UpdateRequest{Keyword: title, Tags: wr.Tags},
					}
					if body != "" {
						ch <- Record{
							Mode:    suggest.ModeDocument,
							Request: suggest.UpdateRequest{Document: body, Fields: []string{"abstract"}},
						}
					}
				}
				props = map[string]string{}
			}
			currentText = ""
		}
	}
}
