package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	netUrl "net/url"
	"os"
	"sync"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal"
)

type CachedClient interface {
	MarkCrawled(url string, s3Key string)
	DecrementThreshold(url string)
	Close()
}

type MemcachedClient struct {
	client *memcache.Client
	cfg    *config.CacheConfig
	mu     sync.Mutex
}

func NewMemcachedClient(cacheConfig *config.CacheConfig) *MemcachedClient {
	slog.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	err := ss.SetServers(cacheConfig.Servers...)
	if err != nil {
		slog.Error("failed to set memcached servers.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := &MemcachedClient{
		client: memcache.NewFromSelector(ss),
		cfg:    cacheConfig,
	}
	slog.Info("pinging the memcached.")
	err = c.client.Ping()
	if err != nil {
		slog.Error("connection to the memcached is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to memcached!")

	return c
}

// MarkCrawled records that the site was audited recently so other instances
// can skip duplicate jobs until the TTL expires.
func (mc *MemcachedClient) MarkCrawled(url string, s3Key string) {
	key := internal.HashURL(url)
	if err := mc.set(key, s3Key, int32(mc.cfg.TtlForSite.Seconds())); err != nil {
		slog.Error("failed to save crawl mark to cache.", slog.String("key", key),
			slog.String("err", err.Error()))
		return
	}
	slog.Debug("crawl mark saved to cache.", slog.String("key", key), slog.Any("url", url))
}

// DecrementThreshold lowers the remaining per-domain crawl allowance.
func (mc *MemcachedClient) DecrementThreshold(url string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	slog.Debug("decrementing the threshold.")
	key := mc.generateDomainHash(url)
	_, err := mc.client.Decrement(key, 1)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			slog.Debug("cache expired.", slog.String("key", key))
		} else {
			slog.Warn("failed to decrement the threshold.", slog.String("key", key),
				slog.String("err", err.Error()))
		}
	}
}

func (mc *MemcachedClient) Close() {
	slog.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		slog.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}

func (mc *MemcachedClient) set(key string, value any, expiration int32) error {
	byteValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item := &memcache.Item{
		Key:        key,
		Value:      byteValue,
		Expiration: expiration,
	}

	return mc.client.Set(item)
}

func (mc *MemcachedClient) generateDomainHash(url string) string {
	u, err := netUrl.Parse(url)
	var key string
	if err != nil {
		slog.Error("failed to parse url. Use full url as a key.", slog.String("url", url),
			slog.String("err", err.Error()))
		key = fmt.Sprintf("%s-1m-crawl", internal.HashURL(url))
	} else {
		key = fmt.Sprintf("%s-1m-crawl", internal.HashURL(u.Host))
		slog.Debug(url, slog.String("key:", key))
	}

	return key
}
