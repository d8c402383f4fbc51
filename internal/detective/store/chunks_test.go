package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/kart-io/eurodetective/pkg/component/redis"
	redisopts "github.com/kart-io/eurodetective/pkg/options/redis"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), redisopts.NewOptions())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestMemoryChunkStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryChunkStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutMany(ctx, []Chunk{{ID: "a", Text: "alpha"}, {ID: "b", Text: "beta"}}))
	text, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "beta", text)
	assert.Equal(t, 2, s.Len())
}

func TestRedisChunkStore(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	s := NewRedisChunkStore(client, time.Hour)

	require.NoError(t, s.PutMany(ctx, []Chunk{{ID: "DEU_B1C0", Text: "Bundestag vote."}}))
	assert.True(t, mr.Exists("eurodetective:chunk:DEU_B1C0"))
	assert.Equal(t, time.Hour, mr.TTL("eurodetective:chunk:DEU_B1C0"))

	text, ok, err := s.Get(ctx, "DEU_B1C0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bundestag vote.", text)

	_, ok, err = s.Get(ctx, "DEU_B1C9")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.SetError("server down")
	_, _, err = s.Get(ctx, "DEU_B1C0")
	assert.Error(t, err)
}

type countingStore struct {
	texts map[string]string
	calls int
	err   error
}

func (c *countingStore) Get(_ context.Context, id string) (string, bool, error) {
	c.calls++
	if c.err != nil {
		return "", false, c.err
	}
	text, ok := c.texts[id]
	return text, ok, nil
}

func TestCachedChunkStore(t *testing.T) {
	ctx := context.Background()
	origin := &countingStore{texts: map[string]string{"a": "alpha"}}
	s := NewCachedChunkStore(origin, time.Minute)

	for i := 0; i < 3; i++ {
		text, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "alpha", text)
	}
	assert.Equal(t, 1, origin.calls)

	_, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, _ = s.Get(ctx, "b")
	assert.Equal(t, 3, origin.calls)

	origin.err = errors.New("boom")
	_, _, err = s.Get(ctx, "c")
	assert.Error(t, err)
}

func TestMongoChunkStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "eurodetective.chunks", mtest.FirstBatch,
			bson.D{{Key: "chunk_id", Value: "POL_B1C0"}, {Key: "text", Value: "Tribunal ruling."}}))

		text, ok, err := NewMongoChunkStore(mt.Coll).Get(context.Background(), "POL_B1C0")
		require.NoError(mt, err)
		assert.True(mt, ok)
		assert.Equal(mt, "Tribunal ruling.", text)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "eurodetective.chunks", mtest.FirstBatch))

		_, ok, err := NewMongoChunkStore(mt.Coll).Get(context.Background(), "POL_B1C9")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query", Name: "BadValue"}))

		_, _, err := NewMongoChunkStore(mt.Coll).Get(context.Background(), "x")
		assert.Error(mt, err)
	})

	mt.Run("put many", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := NewMongoChunkStore(mt.Coll).PutMany(context.Background(), []Chunk{
			{ID: "POL_B1C0", Text: "one"},
			{ID: "POL_B1C1", Text: "two"},
		})
		require.NoError(mt, err)
		assert.NoError(mt, NewMongoChunkStore(mt.Coll).PutMany(context.Background(), nil))
	})
}
