// Package redisearch is a suggester engine storing suggest items in plain redis structures.
// Every key of a suggester shares the {name} hash tag, so one suggester lives on one node.
//
// Layout for a suggester "name":
//
//	{name}:meta              creation marker
//	{name}:lex               sorted set of "suffix\x00text" members, all scored 0
//	{name}:qfreq             sorted set of texts scored by query frequency
//	{name}:item:<text>       hash with text, query_freq and doc_freq
//	{name}:item:<text>:tags  set, same for roles, fields and kinds
//	{name}:supported_fields  set of the fields documents may be indexed under
package redisearch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
	"github.com/cenkalti/backoff/v4"
	"github.com/garyburd/redigo/redis"
)

// maxCandidates bounds the number of items loaded to answer one query
const maxCandidates = 10000

var facets = []string{index.PropTags, index.PropRoles, index.PropFields, index.PropKinds}

// Options configures an Engine
type Options struct {
	Hosts          []string
	Password       string
	MaxConns       int
	DefaultFields  []string
	ConnectRetries uint64
}

// Engine opens suggesters spread over a set of redis hosts
type Engine struct {
	pool *ConnectionPool
	part Partitioner
	opts Options
}

func NewEngine(opts Options) (*Engine, error) {
	if len(opts.Hosts) == 0 {
		return nil, errors.New("redisearch: no hosts configured")
	}
	return &Engine{
		pool: NewConnectionPool(opts.Password, opts.MaxConns),
		part: ModuloPartitioner{len(opts.Hosts)},
		opts: opts,
	}, nil
}

// Close releases every pooled connection
func (e *Engine) Close() error {
	return e.pool.Close()
}

// Open returns the suggester of an index, placed on its host by name
func (e *Engine) Open(ctx context.Context, name string) (*Index, error) {
	host := e.opts.Hosts[e.part.PartitionFor(name)]
	i := &Index{
		pool:          e.pool,
		host:          host,
		name:          name,
		defaultFields: e.opts.DefaultFields,
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.opts.ConnectRetries), ctx)
	if err := backoff.Retry(i.ping, b); err != nil {
		return nil, fmt.Errorf("redisearch: %s unreachable: %w", host, err)
	}
	return i, nil
}

// Index is a suggester bound to one index id
type Index struct {
	pool          *ConnectionPool
	host          string
	name          string
	defaultFields []string
}

func (i *Index) getConn() redis.Conn {
	return i.pool.getConn(i.host)
}

func (i *Index) key(parts ...string) string {
	return "{" + i.name + "}:" + strings.Join(parts, ":")
}

func (i *Index) itemKey(text string, facet ...string) string {
	return i.key(append([]string{"item", text}, facet...)...)
}

func (i *Index) ping() error {
	conn := i.getConn()
	defer conn.Close()
	_, err := conn.Do("PING")
	return err
}

func (i *Index) Index() string {
	return i.name
}

// CreateIndexIfNothing sets the creation marker, only the first caller sees true
func (i *Index) CreateIndexIfNothing(ctx context.Context) (bool, error) {
	conn := i.getConn()
	defer conn.Close()
	return redis.Bool(conn.Do("SETNX", i.key("meta"), time.Now().Unix()))
}

// Drop deletes every key of the suggester
func (i *Index) Drop(ctx context.Context) error {
	conn := i.getConn()
	defer conn.Close()

	texts, err := redis.Strings(conn.Do("ZRANGE", i.key("qfreq"), 0, -1))
	if err != nil {
		return err
	}
	lex, err := redis.Strings(conn.Do("ZRANGE", i.key("lex"), 0, -1))
	if err != nil {
		return err
	}
	for _, m := range lex {
		texts = append(texts, lexText(m))
	}
	args := redis.Args{i.key("meta"), i.key("lex"), i.key("qfreq"), i.key("supported_fields")}
	seen := map[string]struct{}{}
	for _, t := range texts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		args = append(args, i.itemKey(t))
		for _, f := range facets {
			args = append(args, i.itemKey(t, f))
		}
	}
	_, err = conn.Do("DEL", args...)
	return err
}

func lexMember(suffix, text string) string {
	return suffix + "\x00" + text
}

func lexText(member string) string {
	if n := strings.IndexByte(member, 0); n >= 0 {
		return member[n+1:]
	}
	return member
}

// lexRange returns the ZRANGEBYLEX bounds covering every member starting with prefix
func lexRange(prefix string) (string, string) {
	return "[" + prefix, "[" + prefix + "\xff"
}

func (i *Index) Query(ctx context.Context, q query.Query) (*index.Result, error) {
	st := time.Now()
	conn := i.getConn()
	defer conn.Close()

	var texts []string
	var err error
	switch q.Kind {
	case query.KindSuggest:
		texts, err = i.suggestTexts(conn, q.Term)
	case query.KindPopularWords, query.KindFamousKeys:
		texts, err = redis.Strings(conn.Do("ZREVRANGEBYSCORE", i.key("qfreq"), "+inf", "(0", "LIMIT", 0, maxCandidates))
	default:
		return nil, fmt.Errorf("unsupported query kind %s", q.Kind)
	}
	if err != nil {
		return nil, err
	}

	candidates, err := i.loadItems(conn, texts)
	if err != nil {
		return nil, err
	}
	var total int64
	var items []index.Item
	if q.Kind == query.KindSuggest {
		total, items = index.RankSuggest(candidates, q)
	} else {
		total, items = index.RankPopular(candidates, q)
	}
	return index.NewResult(i.name, total, items, time.Since(st)), nil
}

func (i *Index) suggestTexts(conn redis.Conn, term string) ([]string, error) {
	term = index.Normalize(term)
	if term == "" {
		return nil, nil
	}
	min, max := lexRange(term)
	members, err := redis.Strings(conn.Do("ZRANGEBYLEX", i.key("lex"), min, max, "LIMIT", 0, maxCandidates))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(members))
	texts := make([]string, 0, len(members))
	for _, m := range members {
		t := lexText(m)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		texts = append(texts, t)
	}
	return texts, nil
}

// loadItems fetches the hashes and facet sets of texts in one pipeline
func (i *Index) loadItems(conn redis.Conn, texts []string) ([]index.Item, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if err := conn.Send("HMGET", i.itemKey(t), index.PropQueryFreq, index.PropDocFreq); err != nil {
			return nil, err
		}
		for _, f := range facets {
			if err := conn.Send("SMEMBERS", i.itemKey(t, f)); err != nil {
				return nil, err
			}
		}
	}
	if err := conn.Flush(); err != nil {
		return nil, err
	}

	items := make([]index.Item, 0, len(texts))
	for _, t := range texts {
		freqs, err := redis.Int64s(conn.Receive())
		if err != nil && err != redis.ErrNil {
			return nil, err
		}
		it := index.Item{Text: t}
		if len(freqs) == 2 {
			it.QueryFreq, it.DocFreq = freqs[0], freqs[1]
		}
		lists := make([][]string, len(facets))
		for n := range facets {
			if lists[n], err = redis.Strings(conn.Receive()); err != nil {
				return nil, err
			}
			sort.Strings(lists[n])
		}
		it.Tags, it.Roles, it.Fields, it.Kinds = lists[0], lists[1], lists[2], lists[3]
		items = append(items, it)
	}
	return items, nil
}

// IndexObservation merges the items of an observation inside one MULTI/EXEC transaction
func (i *Index) IndexObservation(ctx context.Context, o query.Observation) (*index.IndexResponse, error) {
	st := time.Now()
	items := index.ItemsFromObservation(o)
	if len(items) == 0 {
		return &index.IndexResponse{Took: time.Since(st)}, nil
	}

	conn := i.getConn()
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := i.sendItem(conn, it); err != nil {
			return nil, err
		}
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return nil, err
	}
	return &index.IndexResponse{Took: time.Since(st), NumDocs: len(items)}, nil
}

func (i *Index) sendItem(conn redis.Conn, it index.Item) error {
	lex := redis.Args{i.key("lex")}
	for _, s := range index.Suffixes(it.Text) {
		lex = lex.Add(0, lexMember(s, it.Text))
	}
	if err := conn.Send("ZADD", lex...); err != nil {
		return err
	}
	if err := conn.Send("HSET", i.itemKey(it.Text), index.PropText, it.Text); err != nil {
		return err
	}
	if err := conn.Send("HINCRBY", i.itemKey(it.Text), index.PropQueryFreq, it.QueryFreq); err != nil {
		return err
	}
	if err := conn.Send("HINCRBY", i.itemKey(it.Text), index.PropDocFreq, it.DocFreq); err != nil {
		return err
	}
	if it.QueryFreq > 0 {
		if err := conn.Send("ZINCRBY", i.key("qfreq"), it.QueryFreq, it.Text); err != nil {
			return err
		}
	}
	for n, values := range [][]string{it.Tags, it.Roles, it.Fields, it.Kinds} {
		if len(values) == 0 {
			continue
		}
		if err := conn.Send("SADD", redis.Args{i.itemKey(it.Text, facets[n])}.AddFlat(values)...); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) SupportedFields(ctx context.Context) ([]string, error) {
	conn := i.getConn()
	defer conn.Close()
	fields, err := redis.Strings(conn.Do("SMEMBERS", i.key("supported_fields")))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return append([]string(nil), i.defaultFields...), nil
	}
	sort.Strings(fields)
	return fields, nil
}

func (i *Index) AddSupportedField(ctx context.Context, field string) error {
	conn := i.getConn()
	defer conn.Close()
	_, err := conn.Do("SADD", redis.Args{i.key("supported_fields")}.AddFlat(i.defaultFields).Add(field)...)
	return err
}
