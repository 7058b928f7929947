package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"ragagent/types"
)

// IndexStater reports the size of the chunk collections.
type IndexStater interface {
	Stats(ctx context.Context) (types.IndexStats, error)
}

type CheckHandler struct {
	index IndexStater
}

func NewCheckHandler(index IndexStater) *CheckHandler {
	return &CheckHandler{index: index}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

func (h CheckHandler) HandleIndex(c *fiber.Ctx) error {
	stats, err := h.index.Stats(c.UserContext())
	if err != nil {
		return NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{
		"parent_count": stats.Parents,
		"child_count":  stats.Children,
		"ready":        stats.Exists(),
	})
}
