// Package synth generates synthetic search words and documents for benchmarking. Words are
// drawn from a zipf distribution so a few keys are hot, like real search logs.
package synth

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/RediSearch/suggestd/index"
)

// DocumentGenerator generates synthetic documents for benchmarking. It is not safe for
// concurrent use.
type DocumentGenerator struct {
	// mapping of field names and min/max tokens per field
	fields map[string][2]int

	vocabSize int

	maxDocId int

	rnd *rand.Rand
	rng *rand.Zipf
}

func NewDocumentGenerator(seed int64, vocabSize int, fields map[string][2]int) *DocumentGenerator {
	rnd := rand.New(rand.NewSource(seed))
	return &DocumentGenerator{
		fields:    fields,
		vocabSize: vocabSize,
		maxDocId:  1,
		rnd:       rnd,
		rng:       rand.NewZipf(rnd, 1.0001, 20, uint64(vocabSize-1)),
	}
}

func (g *DocumentGenerator) term() string {
	return fmt.Sprintf("term%d", g.rng.Uint64())
}

// Generate generates a synthetic document with a given id. If id is 0, we select an incremental id
func (g *DocumentGenerator) Generate(docId int) index.Document {
	if docId == 0 {
		docId = g.maxDocId
		g.maxDocId++
	}
	doc := index.NewDocument(fmt.Sprintf("doc%d", docId), 1.0)
	for f, tokrange := range g.fields {
		ntoks := tokrange[0]
		if tokrange[1] > tokrange[0] {
			ntoks += g.rnd.Intn(tokrange[1] - tokrange[0])
		}
		toks := make([]string, ntoks)
		for i := range toks {
			toks[i] = g.term()
		}
		doc.Set(f, strings.Join(toks, " "))
	}
	return doc
}

// KeywordGenerator draws search keywords of one to maxWords words, and prefixes of them as a
// user typing would send. It is not safe for concurrent use.
type KeywordGenerator struct {
	maxWords int
	rnd      *rand.Rand
	keys     *rand.Zipf
	vocab    []string
}

// NewKeywordGenerator builds numKeys distinct keywords, the lower the rank the hotter the key
func NewKeywordGenerator(seed int64, numKeys, maxWords int) *KeywordGenerator {
	if maxWords <= 0 {
		maxWords = 1
	}
	rnd := rand.New(rand.NewSource(seed))
	g := &KeywordGenerator{
		maxWords: maxWords,
		rnd:      rnd,
		keys:     rand.NewZipf(rnd, 1.1, 1, uint64(numKeys-1)),
		vocab:    make([]string, 0, numKeys),
	}
	seen := make(map[string]struct{}, numKeys)
	for len(g.vocab) < numKeys {
		n := 1 + rnd.Intn(maxWords)
		words := make([]string, n)
		for i := range words {
			words[i] = fmt.Sprintf("term%d", rnd.Intn(numKeys*4))
		}
		kw := strings.Join(words, " ")
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		g.vocab = append(g.vocab, kw)
	}
	return g
}

// Keywords returns every keyword, hottest first
func (g *KeywordGenerator) Keywords() []string {
	return append([]string(nil), g.vocab...)
}

// Keyword draws a keyword
func (g *KeywordGenerator) Keyword() string {
	return g.vocab[g.keys.Uint64()]
}

// Prefix draws a keyword and cuts it after at least minLen bytes
func (g *KeywordGenerator) Prefix(minLen int) string {
	kw := g.Keyword()
	if minLen <= 0 {
		minLen = 1
	}
	if len(kw) <= minLen {
		return kw
	}
	return kw[:minLen+g.rnd.Intn(len(kw)-minLen+1)]
}
