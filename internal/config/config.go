package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	Host    string
	Port    int
	GinMode string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	VoteBatchSize       int
	VoteProcessInterval time.Duration
	WorkerEnabled       bool

	ResultsCacheTTL           time.Duration
	ResultsCacheBackend       string
	ResultsCacheSize          int
	ResultsInvalidateOnChange bool

	KeepAliveInterval time.Duration
	StreamBufferSize  int

	AdminToken     string
	VoteRateLimit  int
	APIRateLimit   int
	JoinCodeLength int

	LogLevel  string
	LogFormat string
}

const (
	CacheBackendRedis = "redis"
	CacheBackendLocal = "local"
)

// Load 先读取可选的 .env 文件，再读取进程环境变量
func Load() (*Config, error) {
	// 非本地开发环境没有 .env 是正常的
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv 只从当前环境变量构建配置
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Host:    getString("HOST", "0.0.0.0"),
		Port:    p.int("PORT", 8080),
		GinMode: getString("GIN_MODE", "release"),

		DatabaseURL: getString("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=livepoll port=5432 sslmode=disable"),

		RedisAddr:     getString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getString("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),
		RedisPoolSize: p.int("REDIS_POOL_SIZE", 10),

		VoteBatchSize:       p.int("VOTE_QUEUE_BATCH_SIZE", 10),
		VoteProcessInterval: p.duration("VOTE_PROCESS_INTERVAL", time.Second),
		WorkerEnabled:       p.bool("WORKER_ENABLED", true),

		ResultsCacheTTL:           p.duration("RESULTS_CACHE_TTL", 5*time.Second),
		ResultsCacheBackend:       strings.ToLower(getString("RESULTS_CACHE_BACKEND", CacheBackendRedis)),
		ResultsCacheSize:          p.int("RESULTS_CACHE_SIZE", 500),
		ResultsInvalidateOnChange: p.bool("RESULTS_INVALIDATE_ON_CHANGE", false),

		KeepAliveInterval: p.duration("SSE_KEEPALIVE_INTERVAL", 30*time.Second),
		StreamBufferSize:  p.int("SSE_BUFFER_SIZE", 16),

		AdminToken:     getString("ADMIN_TOKEN", ""),
		VoteRateLimit:  p.int("VOTE_RATE_LIMIT", 20),
		APIRateLimit:   p.int("API_RATE_LIMIT", 100),
		JoinCodeLength: p.int("JOIN_CODE_LENGTH", 8),

		LogLevel:  strings.ToLower(getString("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getString("LOG_FORMAT", "text")),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.VoteBatchSize <= 0 {
		errs = append(errs, errors.New("VOTE_QUEUE_BATCH_SIZE must be positive"))
	}
	if c.VoteProcessInterval <= 0 {
		errs = append(errs, errors.New("VOTE_PROCESS_INTERVAL must be positive"))
	}
	if c.KeepAliveInterval <= 0 {
		errs = append(errs, errors.New("SSE_KEEPALIVE_INTERVAL must be positive"))
	}
	if c.StreamBufferSize <= 0 {
		errs = append(errs, errors.New("SSE_BUFFER_SIZE must be positive"))
	}
	if c.ResultsCacheBackend != CacheBackendRedis && c.ResultsCacheBackend != CacheBackendLocal {
		errs = append(errs, errors.Errorf("RESULTS_CACHE_BACKEND must be %q or %q", CacheBackendRedis, CacheBackendLocal))
	}
	if c.JoinCodeLength < 4 || c.JoinCodeLength > 8 {
		errs = append(errs, errors.New("JOIN_CODE_LENGTH must be between 4 and 8"))
	}
	return errors.Combine(errs...)
}

// Addr HTTP 服务监听地址
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// parser 只保留第一个转换错误，由 FromEnv 统一返回
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = errors.WrapIff(err, "invalid value %q for %s", value, key)
	}
}

func (p *parser) int(key string, fallback int) int {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

// duration 支持 Go 时长字符串（"1s"、"500ms"）或纯毫秒数
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := getString(key, "")
	if v == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
