package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/RediSearch/suggestd/config"
	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/logging"
	"github.com/RediSearch/suggestd/rest"
	"github.com/RediSearch/suggestd/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestServer(t *testing.T) *httptest.Server {
	logging.SetOutput(io.Discard)
	cfg := config.DefaultConfig()
	eng, err := selectEngine(cfg)
	require.NoError(t, err)
	svc, d := newService(cfg, eng)
	t.Cleanup(d.Close)

	mux := http.NewServeMux()
	rest.NewHandler(svc, 0, logging.New("")).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSelectEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	eng, err := selectEngine(cfg)
	require.NoError(t, err)
	assert.NotNil(t, eng.factory)
	assert.NoError(t, eng.close())

	w, err := eng.settings.PrefixMatchWeight(context.Background(), "shop")
	require.NoError(t, err)
	assert.Zero(t, w)

	cfg.Engine.Type = "mongo"
	_, err = selectEngine(cfg)
	assert.Error(t, err)
}

func TestSeedAndSuggest(t *testing.T) {
	srv := createTestServer(t)
	ctx := context.Background()

	require.NoError(t, createIndex(ctx, srv.Client(), srv.URL, "bench"))
	n, err := seedKeywords(ctx, srv.Client(), srv.URL, "bench", []string{"phone case", "phone"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := srv.Client().Get(srv.URL + "/bench/_fsuggest?q=pho")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `"phone"`)
}

func TestSeedDocuments(t *testing.T) {
	srv := createTestServer(t)
	gen := synth.NewDocumentGenerator(1, 100, map[string][2]int{"title": {2, 4}, "body": {3, 6}})
	n, err := seedDocuments(context.Background(), srv.Client(), srv.URL, "docs", gen, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestDocumentUpdates(t *testing.T) {
	doc := index.NewDocument("doc1", 1).Set("title", "red phone").Set("body", "a red phone case").
		Set("score", 3).Set("empty", "")
	reqs := documentUpdates(doc)
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"body"}, reqs[0].Fields)
	assert.Equal(t, "a red phone case", reqs[0].Document)
	assert.Equal(t, []string{"title"}, reqs[1].Fields)
}

func TestBenchmark(t *testing.T) {
	srv := createTestServer(t)
	ctx := context.Background()
	gen := synth.NewKeywordGenerator(1, 200, 2)
	_, err := seedKeywords(ctx, srv.Client(), srv.URL, "bench", gen.Keywords())
	require.NoError(t, err)

	opts := benchOptions{url: srv.URL, index: "bench", benchmark: "suggest", keys: 200, maxWords: 2, minPrefix: 2, seed: 1}
	newWorker, err := benchmarkFor(opts, srv.Client())
	require.NoError(t, err)

	rec := newRecorder()
	var progress bytes.Buffer
	res := Benchmark(ctx, rec, 2, 300*time.Millisecond, 50*time.Millisecond, &progress, newWorker)

	assert.Greater(t, rec.totalOps.Load(), uint64(0))
	assert.Zero(t, rec.errors.Load())
	assert.Equal(t, CurrentResultFormatVersion, res.ResultFormatVersion)
	assert.Equal(t, uint(2), res.Workers)
	assert.GreaterOrEqual(t, res.DurationMillis, int64(300))
	assert.Contains(t, res.OverallQuantiles, "allCommands")
	assert.Contains(t, progress.String(), "Suggest Rate")

	var csv bytes.Buffer
	require.NoError(t, writeCSV(&csv, "bench", "suggest", 2, rec, time.Duration(res.DurationMillis)*time.Millisecond))
	fields := strings.Split(strings.TrimSpace(csv.String()), ",")
	require.Len(t, fields, 9)
	assert.Equal(t, []string{"bench", "suggest", "2"}, fields[:3])
	assert.Equal(t, "0", fields[8])
}

func TestBenchmarkCountsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	newWorker, err := benchmarkFor(benchOptions{url: srv.URL, index: "bench", benchmark: "pwords"}, srv.Client())
	require.NoError(t, err)
	rec := newRecorder()
	Benchmark(context.Background(), rec, 1, 100*time.Millisecond, 0, io.Discard, newWorker)

	assert.Greater(t, rec.totalOps.Load(), uint64(0))
	assert.Equal(t, rec.totalOps.Load(), rec.errors.Load())
}

func TestBenchmarkForUnknown(t *testing.T) {
	_, err := benchmarkFor(benchOptions{benchmark: "search"}, http.DefaultClient)
	assert.Error(t, err)
}

func TestGenerateQuantileMap(t *testing.T) {
	h := hdrhistogram.New(minLatency, maxLatency, 3)
	ops, mp := generateQuantileMap(h)
	assert.Zero(t, ops)
	assert.Zero(t, mp["q50"])

	for i := int64(1); i <= 100; i++ {
		require.NoError(t, h.RecordValue(i*1000))
	}
	ops, mp = generateQuantileMap(h)
	assert.Equal(t, int64(100), ops)
	assert.InDelta(t, 50.0, mp["q50"], 0.1)
	assert.InDelta(t, 100.0, mp["q100"], 0.1)
	assert.InDelta(t, 1.0, mp["q0"], 0.01)
}

func TestCalculateRateMetrics(t *testing.T) {
	assert.Equal(t, 50.0, calculateRateMetrics(150, 50, 2*time.Second))
	assert.Zero(t, calculateRateMetrics(10, 0, 0))
}

func TestWriteResult(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, writeResult(fileName, TestResult{ResultFormatVersion: CurrentResultFormatVersion, Workers: 4}))
	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Workers": 4`)
}
