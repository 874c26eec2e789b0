package rdb

import (
	"encoding/json"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/models"

	"github.com/mediocregopher/radix/v3"
)

// ResultsCache 结果缓存存放在 Redis，所有副本共享同一份
// Redis 出错时按未命中处理
type ResultsCache struct {
	client radix.Client
}

func NewResultsCache(client radix.Client) *ResultsCache {
	return &ResultsCache{client: client}
}

func (c *ResultsCache) Get(sessionID string) (*models.SessionResults, bool) {
	var raw []byte
	mn := radix.MaybeNil{Rcv: &raw}
	if err := c.client.Do(radix.Cmd(&mn, "GET", CacheKey(sessionID))); err != nil {
		logger.For("results-cache").WithError(err).Warn("Failed to read cached results")
		return nil, false
	}
	if mn.Nil {
		return nil, false
	}

	var results models.SessionResults
	if err := json.Unmarshal(raw, &results); err != nil {
		logger.For("results-cache").WithError(err).Warn("Discarding undecodable cached results")
		return nil, false
	}
	return &results, true
}

func (c *ResultsCache) Set(sessionID string, results *models.SessionResults, ttl time.Duration) {
	data, err := json.Marshal(results)
	if err != nil {
		logger.For("results-cache").WithError(err).Error("Failed to encode results")
		return
	}
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	if err := c.client.Do(radix.FlatCmd(nil, "PSETEX", CacheKey(sessionID), ms, data)); err != nil {
		logger.For("results-cache").WithError(err).Warn("Failed to cache results")
	}
}

func (c *ResultsCache) Delete(sessionID string) {
	if err := c.client.Do(radix.Cmd(nil, "DEL", CacheKey(sessionID))); err != nil {
		logger.For("results-cache").WithError(err).Warn("Failed to invalidate cached results")
	}
}
