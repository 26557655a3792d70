package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher fans out reseller account status changes to connected dashboard
// sessions. Delivery is best-effort: a failed publish is logged and never
// surfaces to the admin operation that triggered it.
type Publisher interface {
	StatusChanged(ctx context.Context, resellerID snowflake.ID, active bool)
}

const statusChannel = "reseller:%d:status"

type statusEvent struct {
	ResellerID snowflake.ID `json:"reseller_id"`
	Active     bool         `json:"active"`
	At         time.Time    `json:"at"`
}

type redisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

type noopPublisher struct{}

func (noopPublisher) StatusChanged(context.Context, snowflake.ID, bool) {}

// New builds the status publisher. Without a redis address the no-op
// publisher is returned and status changes are silently dropped.
func New(cfg config.Config, log *zap.Logger) Publisher {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return noopPublisher{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &redisPublisher{
		client: client,
		log:    log.Named("notify"),
	}
}

func (p *redisPublisher) StatusChanged(ctx context.Context, resellerID snowflake.ID, active bool) {
	payload, err := json.Marshal(statusEvent{
		ResellerID: resellerID,
		Active:     active,
		At:         time.Now().UTC(),
	})
	if err != nil {
		p.log.Warn("marshal status event", zap.Error(err))
		return
	}

	channel := fmt.Sprintf(statusChannel, resellerID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn("publish status change",
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}
