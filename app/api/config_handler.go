package api

import (
	"github.com/gofiber/fiber/v2"

	"ragagent/config"
	"ragagent/types"
)

type ConfigHandler struct {
	resp types.ConfigResponse
}

func NewConfigHandler(cfg *config.Config, tools []string) *ConfigHandler {
	return &ConfigHandler{
		resp: types.ConfigResponse{
			Mode:          string(cfg.Mode),
			Tools:         tools,
			MaxIterations: cfg.MaxIterations,
			LLMModel:      cfg.LLMModel,
			EmbedModel:    cfg.EmbeddingModel,
		},
	}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(h.resp)
}
