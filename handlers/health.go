package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/classboard/classboard-api/database"
	"github.com/classboard/classboard-api/utils/cache"
)

// HealthHandler reports service liveness and dependency status
type HealthHandler struct {
	store *database.GORMStore
	cache *cache.RedisCache
}

// NewHealthHandler creates a health handler
func NewHealthHandler(store *database.GORMStore, redisCache *cache.RedisCache) *HealthHandler {
	return &HealthHandler{store: store, cache: redisCache}
}

// Check handles GET /ping
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	if err := h.store.HealthCheck(); err != nil {
		status["status"] = "degraded"
		status["database"] = "down"
	} else {
		status["database"] = "up"
	}

	if h.cache != nil {
		if err := h.cache.GetClient().Ping(c.Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}

	return c.JSON(status)
}
