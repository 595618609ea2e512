package bootstrap

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/sms-dispatch-gateway/internal/config"
	"github.com/wolfman30/sms-dispatch-gateway/internal/dedup"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// BuildDedupStore picks the sent-key backend named by DEDUP_BACKEND. The
// redis and postgres backends need their client to be connected.
func BuildDedupStore(cfg *appconfig.Config, redisClient *redis.Client, db *sql.DB, logger *logging.Logger) (dedup.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.DedupBackend {
	case "", "file":
		return dedup.NewFileStore(cfg.DedupFile, logger), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: DEDUP_BACKEND=redis requires a reachable REDIS_ADDR")
		}
		return dedup.NewRedisStore(redisClient, cfg.DedupRedisKey), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("bootstrap: DEDUP_BACKEND=postgres requires a reachable DATABASE_URL")
		}
		return dedup.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown DEDUP_BACKEND %q", cfg.DedupBackend)
	}
}
