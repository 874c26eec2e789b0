// Package rdb 创建 radix Redis 客户端，供队列、变更事件频道和共享结果缓存使用
package rdb

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
)

const (
	queueKeyPrefix   = "vote_queue:"
	cacheKeyPrefix   = "results_cache:"
	channelPrefix    = "results:"
	QueueIndexKey    = "vote_queues"
	ResultsPattern   = channelPrefix + "*"
	dialTimeout      = 5 * time.Second
	defaultPoolConns = 10
)

type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func (o Options) connFunc() radix.ConnFunc {
	return func(network, addr string) (radix.Conn, error) {
		opts := []radix.DialOpt{radix.DialTimeout(dialTimeout)}
		if o.Password != "" {
			opts = append(opts, radix.DialAuthPass(o.Password))
		}
		if o.DB != 0 {
			opts = append(opts, radix.DialSelectDB(o.DB))
		}
		return radix.Dial(network, addr, opts...)
	}
}

// NewPool 创建执行普通命令的连接池
func NewPool(o Options) (*radix.Pool, error) {
	size := o.PoolSize
	if size <= 0 {
		size = defaultPoolConns
	}
	pool, err := radix.NewPool("tcp", o.Addr, size, radix.PoolConnFunc(o.connFunc()))
	if err != nil {
		return nil, errors.WrapIf(err, "failed to connect to redis")
	}
	return pool, nil
}

// NewPubSub 创建独立的、断线自动重连的订阅连接
func NewPubSub(o Options) (radix.PubSubConn, error) {
	conn, err := radix.PersistentPubSubWithOpts("tcp", o.Addr, radix.PersistentPubSubConnFunc(o.connFunc()))
	if err != nil {
		return nil, errors.WrapIf(err, "failed to open redis pubsub connection")
	}
	return conn, nil
}

func QueueKey(sessionID string) string {
	return queueKeyPrefix + sessionID
}

func CacheKey(sessionID string) string {
	return cacheKeyPrefix + sessionID
}

func ResultsChannel(sessionID string) string {
	return channelPrefix + sessionID
}

// SessionFromChannel 从 results:<id> 频道名中取出会话 ID
func SessionFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, channelPrefix)
	return id, id != ""
}
