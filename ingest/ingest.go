// Package ingest feeds search-word logs and document dumps into a suggester.
package ingest

import (
	"bufio"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/RediSearch/suggestd/suggest"
	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// Record is one update read from a data source
type Record struct {
	Mode    suggest.Mode
	Request suggest.UpdateRequest
}

// size approximates the bytes a record carries
func (r Record) size() int {
	n := len(r.Request.Keyword) + len(r.Request.Document)
	for _, l := range [][]string{r.Request.Fields, r.Request.Tags, r.Request.Roles} {
		for _, s := range l {
			n += len(s)
		}
	}
	return n
}

// RecordReader implements parsing a data source and yielding records
type RecordReader interface {
	Read(io.Reader, chan<- Record) error
}

// Sink receives the records, *suggest.Service is one
type Sink interface {
	Update(ctx context.Context, indexID, mode string, req suggest.UpdateRequest) *suggest.Future[*suggest.UpdateResponse]
}

// Options tunes an Ingester
type Options struct {
	Workers int
	// Chunk is the number of records between two progress reports
	Chunk int
	// Retries bounds the attempts of a record rejected by a full pool
	Retries uint64
	// MaxRecords stops reading after that many records, 0 reads everything
	MaxRecords int
}

// Stats sums up an ingestion
type Stats struct {
	Records int64
	Failed  int64
	Bytes   int64
	Took    time.Duration
}

func (s Stats) String() string {
	secs := s.Took.Seconds()
	if secs == 0 {
		secs = 1
	}
	return fmt.Sprintf("%d records (%d failed), %s in %v: %.1f r/s, %s/s", s.Records, s.Failed,
		bytefmt.ByteSize(uint64(s.Bytes)), s.Took.Round(time.Millisecond),
		float64(s.Records)/secs, bytefmt.ByteSize(uint64(float64(s.Bytes)/secs)))
}

type Ingester struct {
	sink   Sink
	index  string
	opts   Options
	logger *log.Logger
}

func NewIngester(sink Sink, indexID string, opts Options, logger *log.Logger) *Ingester {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Chunk <= 0 {
		opts.Chunk = 10000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ingester{sink: sink, index: indexID, opts: opts, logger: logger.WithPrefix("ingest")}
}

// Ingest reads every record of r and sends it to the sink
func (in *Ingester) Ingest(ctx context.Context, r io.Reader, rr RecordReader) (Stats, error) {
	st := time.Now()
	src := make(chan Record, in.opts.Chunk)
	var readErr error
	go func() {
		defer close(src)
		readErr = rr.Read(r, src)
	}()
	ch := limit(ctx, src, in.opts.MaxRecords)

	var records, failed, size atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < in.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range ch {
				if err := in.send(ctx, rec); err != nil {
					failed.Add(1)
					in.logger.Debug("record rejected", "err", err)
				}
				size.Add(int64(rec.size()))
				if n := records.Add(1); n%int64(in.opts.Chunk) == 0 {
					in.logger.Info("progress", "stats", Stats{Records: n, Failed: failed.Load(),
						Bytes: size.Load(), Took: time.Since(st)})
				}
			}
		}()
	}
	wg.Wait()

	stats := Stats{Records: records.Load(), Failed: failed.Load(), Bytes: size.Load(), Took: time.Since(st)}
	if readErr != nil {
		return stats, readErr
	}
	return stats, ctx.Err()
}

// limit forwards at most max records, 0 means no limit, and drops the rest once ctx is done
func limit(ctx context.Context, src <-chan Record, max int) <-chan Record {
	out := make(chan Record)
	go func() {
		defer close(out)
		n := 0
		for rec := range src {
			if ctx.Err() != nil || (max > 0 && n >= max) {
				continue
			}
			out <- rec
			n++
		}
	}()
	return out
}

// send updates one record, retrying while the pool is full
func (in *Ingester) send(ctx context.Context, rec Record) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), in.opts.Retries), ctx)
	return backoff.Retry(func() error {
		_, err := in.sink.Update(ctx, in.index, string(rec.Mode), rec.Request).Wait(ctx)
		if err != nil && !errors.Is(err, suggest.ErrQueueFull) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// IngestFile ingests one file, bzip2 compressed if it ends with .bz2
func (in *Ingester) IngestFile(ctx context.Context, fileName string, rr RecordReader) (Stats, error) {
	fp, err := os.Open(fileName)
	if err != nil {
		return Stats{}, err
	}
	defer fp.Close()
	in.logger.Info("Reading", "file", fileName)
	var r io.Reader = bufio.NewReader(fp)
	if strings.HasSuffix(fileName, ".bz2") {
		r = bzip2.NewReader(r)
	}
	return in.Ingest(ctx, r, rr)
}

// IngestDir ingests every file under dirName whose name matches pattern
func (in *Ingester) IngestDir(ctx context.Context, dirName, pattern string, rr RecordReader) (Stats, error) {
	var total Stats
	err := filepath.WalkDir(dirName, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		match, err := filepath.Match(pattern, d.Name())
		if err != nil || !match {
			return err
		}
		st, err := in.IngestFile(ctx, path, rr)
		total.Records += st.Records
		total.Failed += st.Failed
		total.Bytes += st.Bytes
		total.Took += st.Took
		return err
	})
	return total, err
}
