package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RediSearch/suggestd/config"
	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/index/elastic"
	"github.com/RediSearch/suggestd/index/memory"
	"github.com/RediSearch/suggestd/index/redisearch"
	"github.com/RediSearch/suggestd/index/solr"
	"github.com/RediSearch/suggestd/logging"
	"github.com/RediSearch/suggestd/suggest"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "suggestd",
	Short: "search suggestion service",
	Long: `suggestd serves autocomplete suggestions, popular words and famous keys per index,
learned from search keywords and documents, on top of memory, elasticsearch, redis or solr.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(benchCmd)
}

// loadConfig reads the configuration and sets the loggers up
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.Caller); err != nil {
		return nil, err
	}
	return cfg, nil
}

// engine is the configured backend: how to open a suggester and where prefix-match weights
// come from
type engine struct {
	factory  suggest.Factory
	settings suggest.SettingsLookup
	close    func() error
}

func selectEngine(cfg *config.Config) (*engine, error) {
	ec := cfg.Engine
	static := index.StaticSettings(ec.PrefixMatchWeights)
	nop := func() error { return nil }

	switch ec.Type {
	case config.EngineMemory:
		e := memory.NewEngine(cfg.FSuggest.DefaultFields...)
		return &engine{
			factory: func(ctx context.Context, id string) (suggest.Suggester, error) {
				return e.Open(ctx, id)
			},
			settings: static,
			close:    nop,
		}, nil
	case config.EngineElastic:
		e, err := elastic.NewEngine(elastic.Options{
			Addresses:      ec.Hosts,
			Username:       ec.Username,
			Password:       ec.Password,
			Suffix:         ec.IndexSuffix,
			DefaultFields:  cfg.FSuggest.DefaultFields,
			Refresh:        ec.Refresh,
			ConnectRetries: ec.ConnectRetries,
		})
		if err != nil {
			return nil, err
		}
		return &engine{
			factory: func(ctx context.Context, id string) (suggest.Suggester, error) {
				return e.Open(ctx, id)
			},
			settings: e,
			close:    nop,
		}, nil
	case config.EngineRedis:
		e, err := redisearch.NewEngine(redisearch.Options{
			Hosts:          ec.Hosts,
			Password:       ec.Password,
			DefaultFields:  cfg.FSuggest.DefaultFields,
			ConnectRetries: ec.ConnectRetries,
		})
		if err != nil {
			return nil, err
		}
		return &engine{
			factory: func(ctx context.Context, id string) (suggest.Suggester, error) {
				return e.Open(ctx, id)
			},
			settings: static,
			close:    e.Close,
		}, nil
	case config.EngineSolr:
		e := solr.NewEngine(solr.Options{
			URL:            ec.Hosts[0],
			DefaultFields:  cfg.FSuggest.DefaultFields,
			ConnectRetries: ec.ConnectRetries,
		})
		return &engine{
			factory: func(ctx context.Context, id string) (suggest.Suggester, error) {
				return e.Open(ctx, id)
			},
			settings: static,
			close:    nop,
		}, nil
	}
	return nil, fmt.Errorf("could not find engine type %s", ec.Type)
}

// newService wires the registry, the suggest pool and the filters of cfg over an engine
func newService(cfg *config.Config, eng *engine) (*suggest.Service, *suggest.Dispatcher) {
	logger := logging.New("suggestd")
	registry := suggest.NewRegistry(eng.factory, logger)
	dispatcher := suggest.NewDispatcher(cfg.Pool.Name, cfg.Pool.Size, cfg.Pool.QueueSize, logger)
	svc := suggest.NewService(registry, dispatcher, suggest.Options{
		BadQueries:    suggest.ParseWordSet(cfg.FSuggest.NGQuery),
		ExcludeWords:  suggest.ParseWordSet(cfg.FSuggest.PopularWords.Excludes),
		WindowSize:    cfg.FSuggest.PopularWords.WindowSize,
		DefaultFields: cfg.FSuggest.DefaultFields,
		Settings:      eng.settings,
	}, logger)
	return svc, dispatcher
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("suggestd failed", "err", err)
		os.Exit(1)
	}
}
