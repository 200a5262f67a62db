package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/RediSearch/suggestd/ingest"
	"github.com/RediSearch/suggestd/logging"
	"github.com/spf13/cobra"
)

var (
	ingestIndex      string
	ingestFormat     string
	ingestPattern    string
	ingestWorkers    int
	ingestChunk      int
	ingestMaxRecords int
	ingestRetries    uint64
	ingestTags       string
	ingestCreate     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file or dir>",
	Short: "Feed search words or documents into a suggester",
	Long: `Feed search words or documents into a suggester through the configured engine.

Formats:
  keywords     plain text, one search keyword per line
  searchwords  JSON lines {"keyword", "fields", "tags", "roles", "weight"}
  documents    JSON lines {"document", "fields"}
  reddit       reddit comments dump, bodies learned as documents
  wikipedia    wikipedia abstracts XML, titles as search words, abstracts as documents

Files ending with .bz2 are decompressed.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestIndex, "index", "i", "", "index id to feed")
	ingestCmd.Flags().StringVarP(&ingestFormat, "format", "f", "keywords", "input format")
	ingestCmd.Flags().StringVar(&ingestPattern, "pattern", "*", "file name pattern when reading a directory")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 8, "concurrent updates")
	ingestCmd.Flags().IntVar(&ingestChunk, "chunk", 10000, "records between progress reports")
	ingestCmd.Flags().IntVar(&ingestMaxRecords, "max", 0, "stop after that many records, 0 reads everything")
	ingestCmd.Flags().Uint64Var(&ingestRetries, "retries", 10, "attempts of a record rejected by a full pool")
	ingestCmd.Flags().StringVar(&ingestTags, "tags", "", "comma separated tags of keyword records")
	ingestCmd.Flags().BoolVar(&ingestCreate, "create", true, "create the suggest index first")
	_ = ingestCmd.MarkFlagRequired("index")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rr, err := ingest.NewReader(ingestFormat)
	if err != nil {
		return err
	}
	if kr, ok := rr.(*ingest.KeywordReader); ok && ingestTags != "" {
		kr.Tags = strings.Split(ingestTags, ",")
	}

	eng, err := selectEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()
	svc, dispatcher := newService(cfg, eng)
	defer dispatcher.Close()

	ctx := cmd.Context()
	if ingestCreate {
		res, err := svc.Create(ctx, ingestIndex).Wait(ctx)
		if err != nil {
			return err
		}
		logging.New("ingest").Info("index ready", "index", ingestIndex, "created", res.Acknowledged)
	}

	in := ingest.NewIngester(svc, ingestIndex, ingest.Options{
		Workers:    ingestWorkers,
		Chunk:      ingestChunk,
		Retries:    ingestRetries,
		MaxRecords: ingestMaxRecords,
	}, logging.New(""))

	var stats ingest.Stats
	if fi, statErr := os.Stat(args[0]); statErr == nil && fi.IsDir() {
		stats, err = in.IngestDir(ctx, args[0], ingestPattern, rr)
	} else {
		stats, err = in.IngestFile(ctx, args[0], rr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Done!", stats)
	return err
}
