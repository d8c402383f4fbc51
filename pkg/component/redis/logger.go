package redis

import (
	"context"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// loggingAdapter 将 go-redis 内部日志转发到统一日志。
type loggingAdapter struct{}

func (l *loggingAdapter) Printf(_ context.Context, format string, v ...any) {
	logger.Debugf("redis: "+format, v...)
}

func init() {
	goredis.SetLogger(&loggingAdapter{})
}
