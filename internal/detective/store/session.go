package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/eurodetective/pkg/component/redis"
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/json"
)

// MemorySessionStore 进程内会话存储，进程退出后历史丢失。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]llm.Message
}

// NewMemorySessionStore 创建内存会话存储。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]llm.Message)}
}

// Load 返回会话历史的副本，会话不存在时返回空切片。
func (s *MemorySessionStore) Load(_ context.Context, threadID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.sessions[threadID]), nil
}

// Append 追加消息。
func (s *MemorySessionStore) Append(_ context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[threadID] = append(s.sessions[threadID], cloneMessages(msgs)...)
	return nil
}

func cloneMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]llm.ToolCall(nil), m.ToolCalls...)
		}
	}
	return out
}

// RedisSessionStore 将会话历史保存为 Redis 列表，每个元素是一条 JSON 消息。
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore 创建 Redis 会话存储。ttl 大于 0 时每次追加后刷新过期时间。
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) key(threadID string) string {
	return s.client.Key("session", threadID)
}

// Load 读取完整会话历史。
func (s *RedisSessionStore) Load(ctx context.Context, threadID string) ([]llm.Message, error) {
	items, err := s.client.Client().LRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", threadID, err)
	}
	msgs := make([]llm.Message, len(items))
	for i, item := range items {
		if err := json.Unmarshal([]byte(item), &msgs[i]); err != nil {
			return nil, fmt.Errorf("session %s: corrupt message at %d: %w", threadID, i, err)
		}
	}
	return msgs, nil
}

// Append 原子地追加一批消息。
func (s *RedisSessionStore) Append(ctx context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, len(msgs))
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		values[i] = string(data)
	}

	key := s.key(threadID)
	_, err := s.client.Client().TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to session %s: %w", threadID, err)
	}
	return nil
}
