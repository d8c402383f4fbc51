// Package redis 封装 go-redis 客户端。
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	redisopts "github.com/kart-io/eurodetective/pkg/options/redis"
)

// Client Redis 客户端，键统一带上配置的前缀。
type Client struct {
	client *goredis.Client
	opts   *redisopts.Options
}

// New 使用后台 context 建立连接。
func New(opts *redisopts.Options) (*Client, error) {
	return NewWithContext(context.Background(), opts)
}

// NewWithContext 建立连接并 Ping 验证，失败时关闭连接。
func NewWithContext(ctx context.Context, opts *redisopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if err := opts.Complete(); err != nil {
		return nil, err
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr(), err)
	}

	return Wrap(rdb, opts), nil
}

// Wrap 包装已有的 go-redis 客户端。
func Wrap(rdb *goredis.Client, opts *redisopts.Options) *Client {
	if opts == nil {
		opts = redisopts.NewOptions()
	}
	return &Client{client: rdb, opts: opts}
}

// Key 拼接带前缀的键。
func (c *Client) Key(parts ...string) string {
	key := c.opts.KeyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// Ping 检查连接。
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接，可重复调用。
func (c *Client) Close() error {
	return c.client.Close()
}

// Client 返回底层 go-redis 客户端。
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Options 返回客户端配置。
func (c *Client) Options() *redisopts.Options {
	return c.opts
}
