package handler

import (
	"doc-rag-go/internal/config"
	"doc-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConfigHandler 处理运行时模型配置的更新。
type ConfigHandler struct {
	settings *config.ModelSettings
}

// NewConfigHandler 创建一个新的 ConfigHandler。
func NewConfigHandler(settings *config.ModelSettings) *ConfigHandler {
	return &ConfigHandler{settings: settings}
}

type configRequest struct {
	APIKey    string `json:"api_key" binding:"required"`
	ModelName string `json:"model_name"`
}

// Update 更新 API 凭证和模型名，model_name 为空时保持当前模型。
func (h *ConfigHandler) Update(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "api_key 不能为空")
		return
	}
	h.settings.Update(req.APIKey, req.ModelName)
	_, model := h.settings.Snapshot()
	log.Infof("[ConfigHandler] 模型配置已更新, model: %s", model)
	respondOK(c, "配置已更新", gin.H{"model_name": model})
}
