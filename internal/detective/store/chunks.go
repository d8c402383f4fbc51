package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/component/redis"
)

// Chunk 分块全文记录。
type Chunk struct {
	ID   string `bson:"chunk_id" json:"chunk_id"`
	Text string `bson:"text" json:"text"`
}

// ChunkWriter 批量写入分块全文，入库流程使用。
type ChunkWriter interface {
	PutMany(ctx context.Context, chunks []Chunk) error
}

var (
	_ tool.ChunkStore = (*MongoChunkStore)(nil)
	_ tool.ChunkStore = (*RedisChunkStore)(nil)
	_ tool.ChunkStore = (*MemoryChunkStore)(nil)
	_ ChunkWriter     = (*MongoChunkStore)(nil)
	_ ChunkWriter     = (*RedisChunkStore)(nil)
	_ ChunkWriter     = (*MemoryChunkStore)(nil)
)

// MongoChunkStore 以 {chunk_id, text} 文档保存分块全文。
type MongoChunkStore struct {
	coll *mongo.Collection
}

// NewMongoChunkStore 创建 MongoDB 分块存储。
func NewMongoChunkStore(coll *mongo.Collection) *MongoChunkStore {
	return &MongoChunkStore{coll: coll}
}

// EnsureIndex 在 chunk_id 上创建唯一索引。
func (s *MongoChunkStore) EnsureIndex(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chunk_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create chunk_id index: %w", err)
	}
	return nil
}

// Get 按 chunk_id 读取全文。
func (s *MongoChunkStore) Get(ctx context.Context, chunkID string) (string, bool, error) {
	var c Chunk
	err := s.coll.FindOne(ctx, bson.M{"chunk_id": chunkID}).Decode(&c)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find chunk %s: %w", chunkID, err)
	}
	return c.Text, true, nil
}

// PutMany 按 chunk_id 覆盖写入，重复入库是幂等的。
func (s *MongoChunkStore) PutMany(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(chunks))
	for i, c := range chunks {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"chunk_id": c.ID}).
			SetReplacement(c).
			SetUpsert(true)
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to write %d chunks: %w", len(chunks), err)
	}
	return nil
}

// RedisChunkStore 以字符串键保存分块全文，可作为 MongoDB 前的读缓存。
type RedisChunkStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChunkStore 创建 Redis 分块存储，ttl 为 0 表示不过期。
func NewRedisChunkStore(client *redis.Client, ttl time.Duration) *RedisChunkStore {
	return &RedisChunkStore{client: client, ttl: ttl}
}

func (s *RedisChunkStore) key(id string) string {
	return s.client.Key("chunk", id)
}

// Get 读取分块全文。
func (s *RedisChunkStore) Get(ctx context.Context, chunkID string) (string, bool, error) {
	text, err := s.client.Client().Get(ctx, s.key(chunkID)).Result()
	if stderrors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get chunk %s: %w", chunkID, err)
	}
	return text, true, nil
}

// PutMany 通过 pipeline 批量写入。
func (s *RedisChunkStore) PutMany(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	_, err := s.client.Client().Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, c := range chunks {
			p.Set(ctx, s.key(c.ID), c.Text, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %d chunks: %w", len(chunks), err)
	}
	return nil
}

// MemoryChunkStore 进程内分块存储，用于本地运行和测试。
type MemoryChunkStore struct {
	cache *gocache.Cache
}

// NewMemoryChunkStore 创建内存分块存储。
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Get 读取分块全文。
func (s *MemoryChunkStore) Get(_ context.Context, chunkID string) (string, bool, error) {
	v, ok := s.cache.Get(chunkID)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

// PutMany 写入分块。
func (s *MemoryChunkStore) PutMany(_ context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		s.cache.Set(c.ID, c.Text, gocache.NoExpiration)
	}
	return nil
}

// Len 返回分块数量。
func (s *MemoryChunkStore) Len() int {
	return s.cache.ItemCount()
}

// CachedChunkStore 先查缓存，未命中时回源并回填缓存。
type CachedChunkStore struct {
	cache  *gocache.Cache
	origin tool.ChunkStore
}

// NewCachedChunkStore 创建带进程内缓存的分块存储，ttl 为缓存有效期。
func NewCachedChunkStore(origin tool.ChunkStore, ttl time.Duration) *CachedChunkStore {
	return &CachedChunkStore{cache: gocache.New(ttl, 2*ttl), origin: origin}
}

// Get 读取分块全文，回源结果为未命中时不缓存。
func (s *CachedChunkStore) Get(ctx context.Context, chunkID string) (string, bool, error) {
	if v, ok := s.cache.Get(chunkID); ok {
		return v.(string), true, nil
	}
	text, ok, err := s.origin.Get(ctx, chunkID)
	if err != nil || !ok {
		return text, ok, err
	}
	s.cache.SetDefault(chunkID, text)
	return text, true, nil
}
