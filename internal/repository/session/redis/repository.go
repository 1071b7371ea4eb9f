package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const expireDuration = 14 * 24 * time.Hour

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
	}
}
