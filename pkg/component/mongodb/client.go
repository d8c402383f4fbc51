// Package mongodb 封装 MongoDB 官方驱动。
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoopts "github.com/kart-io/eurodetective/pkg/options/mongodb"
)

// Client MongoDB 客户端，绑定配置中的数据库。
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	opts     *mongoopts.Options
}

// NewWithContext 建立连接并 Ping 验证。
func NewWithContext(ctx context.Context, opts *mongoopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mongodb options cannot be nil")
	}
	if err := opts.Complete(); err != nil {
		return nil, err
	}

	clientOpts := options.Client().ApplyURI(opts.BuildURI())
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(opts.Database),
		opts:     opts,
	}, nil
}

// Ping 检查连接。
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close 断开连接。
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Database 返回配置的数据库。
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Collection 返回配置数据库中的集合。
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Options 返回客户端配置。
func (c *Client) Options() *mongoopts.Options {
	return c.opts
}
