package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/logging"
	"github.com/RediSearch/suggestd/suggest"
	"github.com/RediSearch/suggestd/synth"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	url             string
	index           string
	benchmark       string
	workers         int
	duration        time.Duration
	reportingPeriod time.Duration
	keys            int
	maxWords        int
	minPrefix       int
	seed            int64
	seedKeys        bool
	seedDocs        int
	outfile         string
	jsonOut         string
	metadata        string
}

var bench benchOptions

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load a running suggestd with synthetic suggest requests",
	Long: `Load a running suggestd with synthetic requests for a given duration and report throughput
and latency quantiles. Keywords are drawn from a zipf distribution; suggest requests send
prefixes of them as a user typing would.

Benchmarks:
  suggest  GET /{index}/_fsuggest?q=<prefix>
  pwords   GET /{index}/_fsuggest/pwords
  famous   GET /{index}/_famouskeys`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.StringVar(&bench.url, "url", "http://localhost:8080", "suggestd base url")
	f.StringVarP(&bench.index, "index", "i", "bench", "index id to query")
	f.StringVarP(&bench.benchmark, "benchmark", "b", "suggest", "benchmark to run: suggest, pwords or famous")
	f.IntVarP(&bench.workers, "workers", "w", 8, "concurrent clients")
	f.DurationVarP(&bench.duration, "duration", "d", 10*time.Second, "run time")
	f.DurationVar(&bench.reportingPeriod, "reporting-period", time.Second, "progress report period, 0 disables it")
	f.IntVar(&bench.keys, "keys", 10000, "distinct synthetic keywords")
	f.IntVar(&bench.maxWords, "max-words", 3, "max words per keyword")
	f.IntVar(&bench.minPrefix, "min-prefix", 2, "min prefix length of suggest queries")
	f.Int64Var(&bench.seed, "seed", 1, "random seed")
	f.BoolVar(&bench.seedKeys, "seed-keys", false, "create the index and learn the synthetic keywords first")
	f.IntVar(&bench.seedDocs, "seed-docs", 0, "synthetic documents to learn first")
	f.StringVarP(&bench.outfile, "out", "o", "-", "csv output file, - for stdout")
	f.StringVar(&bench.jsonOut, "json-out", "", "write the full result as JSON to that file")
	f.StringVar(&bench.metadata, "metadata", "", "free text saved in the JSON result")
}

func runBench(cmd *cobra.Command, _ []string) error {
	if err := logging.Setup("info", "text", false); err != nil {
		return err
	}
	logger := logging.New("bench")
	client := &http.Client{Timeout: 30 * time.Second}
	ctx := cmd.Context()

	if bench.seedKeys || bench.seedDocs > 0 {
		st := time.Now()
		if err := createIndex(ctx, client, bench.url, bench.index); err != nil {
			return err
		}
		n := 0
		if bench.seedKeys {
			gen := synth.NewKeywordGenerator(bench.seed, bench.keys, bench.maxWords)
			c, err := seedKeywords(ctx, client, bench.url, bench.index, gen.Keywords())
			if err != nil {
				return err
			}
			n += c
		}
		if bench.seedDocs > 0 {
			gen := synth.NewDocumentGenerator(bench.seed, bench.keys, map[string][2]int{"title": {2, 6}, "body": {10, 30}})
			c, err := seedDocuments(ctx, client, bench.url, bench.index, gen, bench.seedDocs)
			if err != nil {
				return err
			}
			n += c
		}
		logger.Info("seeded", "index", bench.index, "updates", n, "took", time.Since(st).Round(time.Millisecond))
	}

	newWorker, err := benchmarkFor(bench, client)
	if err != nil {
		return err
	}
	rec := newRecorder()
	res := Benchmark(ctx, rec, bench.workers, bench.duration, bench.reportingPeriod, cmd.ErrOrStderr(), newWorker)
	res.Metadata = bench.metadata
	res.Benchmark = bench.benchmark
	res.ServiceConfigs = map[string]interface{}{"url": bench.url, "index": bench.index, "keys": bench.keys,
		"maxWords": bench.maxWords, "minPrefix": bench.minPrefix}

	var out io.Writer = cmd.OutOrStdout()
	if bench.outfile != "-" {
		fp, err := os.OpenFile(bench.outfile, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0665)
		if err != nil {
			return err
		}
		defer fp.Close()
		out = fp
	}
	if err := writeCSV(out, bench.index, bench.benchmark, bench.workers, rec, time.Duration(res.DurationMillis)*time.Millisecond); err != nil {
		return err
	}
	if bench.jsonOut != "" {
		if err := writeResult(bench.jsonOut, res); err != nil {
			return err
		}
	}
	logger.Info("Done!", "requests", rec.totalOps.Load(), "errors", rec.errors.Load())
	return nil
}

// benchmarkFor returns the constructor of the per-worker request closures
func benchmarkFor(o benchOptions, client *http.Client) (func(worker int) func(context.Context) error, error) {
	switch o.benchmark {
	case "suggest":
		return func(worker int) func(context.Context) error {
			gen := synth.NewKeywordGenerator(o.seed+int64(worker), o.keys, o.maxWords)
			return SuggestBenchmark(client, o.url, o.index, gen, o.minPrefix)
		}, nil
	case "pwords":
		return func(int) func(context.Context) error {
			return getBenchmark(client, o.url+"/"+url.PathEscape(o.index)+"/_fsuggest/pwords")
		}, nil
	case "famous":
		return func(int) func(context.Context) error {
			return getBenchmark(client, o.url+"/"+url.PathEscape(o.index)+"/_famouskeys")
		}, nil
	}
	return nil, fmt.Errorf("unknown benchmark %s", o.benchmark)
}

// SuggestBenchmark returns a closure of a function for the benchmarker to run, sending suggest
// requests for prefixes of the generated keywords. The closure owns gen.
func SuggestBenchmark(client *http.Client, baseURL, indexID string, gen *synth.KeywordGenerator, minPrefix int) func(context.Context) error {
	endpoint := baseURL + "/" + url.PathEscape(indexID) + "/_fsuggest?q="
	return func(ctx context.Context) error {
		return get(ctx, client, endpoint+url.QueryEscape(gen.Prefix(minPrefix)))
	}
}

func getBenchmark(client *http.Client, endpoint string) func(context.Context) error {
	return func(ctx context.Context) error {
		return get(ctx, client, endpoint)
	}
}

func get(ctx context.Context, client *http.Client, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return do(client, req)
}

func post(ctx context.Context, client *http.Client, u string, body interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req)
}

// do sends req and drains the body so the connection is reused
func do(client *http.Client, req *http.Request) error {
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, res.Status)
	}
	return nil
}

func createIndex(ctx context.Context, client *http.Client, baseURL, indexID string) error {
	return post(ctx, client, baseURL+"/"+url.PathEscape(indexID)+"/_fsuggest/create", nil)
}

// seedKeywords learns every keyword, the hottest ones with the highest weight
func seedKeywords(ctx context.Context, client *http.Client, baseURL, indexID string, keywords []string) (int, error) {
	endpoint := baseURL + "/" + url.PathEscape(indexID) + "/_fsuggest/update/" + string(suggest.ModeSearchWord)
	for n, kw := range keywords {
		req := suggest.UpdateRequest{Keyword: kw, Weight: len(keywords)/(n+1) + 1}
		if err := post(ctx, client, endpoint, req); err != nil {
			return n, err
		}
	}
	return len(keywords), nil
}

// seedDocuments learns num generated documents, one update per document field
func seedDocuments(ctx context.Context, client *http.Client, baseURL, indexID string, gen *synth.DocumentGenerator, num int) (int, error) {
	endpoint := baseURL + "/" + url.PathEscape(indexID) + "/_fsuggest/update/" + string(suggest.ModeDocument)
	n := 0
	for i := 0; i < num; i++ {
		for _, req := range documentUpdates(gen.Generate(0)) {
			if err := post(ctx, client, endpoint, req); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// documentUpdates turns the text properties of a document into document updates, in field order
func documentUpdates(doc index.Document) []suggest.UpdateRequest {
	fields := make([]string, 0, len(doc.Properties))
	for f := range doc.Properties {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	ret := make([]suggest.UpdateRequest, 0, len(fields))
	for _, f := range fields {
		if s, ok := doc.Properties[f].(string); ok && s != "" {
			ret = append(ret, suggest.UpdateRequest{Document: s, Fields: []string{f}})
		}
	}
	return ret
}

// Benchmark runs the closures built by newWorker on concurrency workers for the given
// duration, recording every request in rec. Failed requests are counted, not fatal.
func Benchmark(ctx context.Context, rec *recorder, concurrency int, duration, reportingPeriod time.Duration,
	progress io.Writer, newWorker func(worker int) func(context.Context) error) TestResult {

	startTime := time.Now()
	endTime := startTime.Add(duration)
	ctx, cancel := context.WithDeadline(ctx, endTime)
	defer cancel()

	done := make(chan struct{})
	var reportWg sync.WaitGroup
	if reportingPeriod > 0 {
		reportWg.Add(1)
		go func() {
			defer reportWg.Done()
			report(progress, rec, reportingPeriod, startTime, endTime, done)
		}()
	}

	wg := sync.WaitGroup{}
	for i := 0; i < concurrency; i++ {
		f := newWorker(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				tst := time.Now()
				err := f(ctx)
				if ctx.Err() != nil {
					// cut by the deadline, not a server failure
					return
				}
				rec.record(time.Since(tst), err)
			}
		}()
	}
	wg.Wait()
	close(done)
	reportWg.Wait()

	took := time.Since(startTime)
	return TestResult{
		ResultFormatVersion: CurrentResultFormatVersion,
		Workers:             uint(concurrency),
		StartTime:           startTime.UnixMilli(),
		EndTime:             startTime.Add(took).UnixMilli(),
		DurationMillis:      took.Milliseconds(),
		Totals:              rec.totals(),
		OverallRates:        rec.overallRates(took),
		OverallQuantiles:    rec.overallQuantiles(),
	}
}

// writeCSV outputs one line: index, benchmark, workers, rate, avg/p50/p95/p99 latency and errors
func writeCSV(out io.Writer, indexID, title string, concurrency int, rec *recorder, took time.Duration) error {
	w := csv.NewWriter(out)
	err := w.Write([]string{indexID, title,
		strconv.Itoa(concurrency),
		fmt.Sprintf("%.02f", calculateRateMetrics(rec.totalOps.Load(), 0, took)),
		fmt.Sprintf("%.02f", rec.avgLatency()),
		fmt.Sprintf("%.03f", rec.quantile(50)),
		fmt.Sprintf("%.03f", rec.quantile(95)),
		fmt.Sprintf("%.03f", rec.quantile(99)),
		strconv.FormatUint(rec.errors.Load(), 10)})
	if err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
