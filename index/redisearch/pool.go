package redisearch

import (
	"hash/crc32"
	"sync"
	"time"

	"github.com/garyburd/redigo/redis"
)

// ConnectionPool keeps one redis pool per host, shared by every suggester on that host
type ConnectionPool struct {
	sync.Mutex
	pools    map[string]*redis.Pool
	password string
	maxConns int
}

func NewConnectionPool(password string, maxConns int) *ConnectionPool {
	if maxConns <= 0 {
		maxConns = 500
	}
	return &ConnectionPool{
		pools:    map[string]*redis.Pool{},
		password: password,
		maxConns: maxConns,
	}
}

func (p *ConnectionPool) getConn(host string) redis.Conn {
	p.Lock()
	defer p.Unlock()
	pool, found := p.pools[host]
	if !found {
		pool = redis.NewPool(func() (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialConnectTimeout(5 * time.Second),
				redis.DialReadTimeout(10 * time.Second),
				redis.DialWriteTimeout(10 * time.Second),
			}
			if p.password != "" {
				opts = append(opts, redis.DialPassword(p.password))
			}
			return redis.Dial("tcp", host, opts...)
		}, p.maxConns)
		pool.TestOnBorrow = func(c redis.Conn, t time.Time) error {
			if time.Since(t).Seconds() > 3 {
				_, err := c.Do("PING")
				return err
			}
			return nil
		}

		p.pools[host] = pool
	}
	return pool.Get()
}

// Close closes the pools of every host
func (p *ConnectionPool) Close() error {
	p.Lock()
	defer p.Unlock()
	var err error
	for host, pool := range p.pools {
		if e := pool.Close(); e != nil && err == nil {
			err = e
		}
		delete(p.pools, host)
	}
	return err
}

// Partitioner is the interface that generates partition keys for index keys
type Partitioner interface {
	PartitionFor(id string) uint32
}

// ModuloPartitioner partitions keys based on simple static modulo based hashing function (using crc32)
type ModuloPartitioner struct {
	n int
}

// PartitionFor returns a partition number of a given key
func (m ModuloPartitioner) PartitionFor(id string) uint32 {
	return crc32.ChecksumIEEE([]byte(id)) % uint32(m.n)
}
