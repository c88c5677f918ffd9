package genai

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
)

// RedisCache stores embedding vectors in Redis so identical summaries are
// not re-embedded across runs. All operations are best-effort: any Redis
// error degrades to a cache miss.
type RedisCache struct {
	pool *redis.Pool
	ttl  time.Duration
}

// NewRedisCache connects a cache to the given Redis address. A zero ttl
// means entries never expire.
func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 2 * time.Minute,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr)
			},
		},
		ttl: ttl,
	}
}

// Get returns a cached vector for (model, text), if present.
func (c *RedisCache) Get(model, text string) ([]float64, bool) {
	conn := c.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", cacheKey(model, text)))
	if err != nil {
		if err != redis.ErrNil {
			log.Debug().Err(err).Msg("Embedding cache read failed")
		}
		return nil, false
	}
	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		log.Debug().Err(err).Msg("Embedding cache entry corrupt")
		return nil, false
	}
	return vector, true
}

// Set stores a vector for (model, text).
func (c *RedisCache) Set(model, text string, vector []float64) {
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}

	conn := c.pool.Get()
	defer conn.Close()

	key := cacheKey(model, text)
	if c.ttl > 0 {
		_, err = conn.Do("SET", key, data, "EX", int64(c.ttl.Seconds()))
	} else {
		_, err = conn.Do("SET", key, data)
	}
	if err != nil {
		log.Debug().Err(err).Msg("Embedding cache write failed")
	}
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.pool.Close()
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return "prism:emb:" + hex.EncodeToString(sum[:])
}
