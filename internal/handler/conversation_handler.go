package handler

import (
	"strconv"

	"doc-rag-go/internal/service"
	"doc-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理会话的增删查请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) CreateChat(c *gin.Context) {
	chat, err := h.service.CreateChat(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "会话已创建", chat)
}

func (h *ConversationHandler) ListChats(c *gin.Context) {
	chats, err := h.service.ListChats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", chats)
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messages, err := h.service.GetMessages(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", messages)
}

func (h *ConversationHandler) DeleteChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteChat(c.Request.Context(), chatID); err != nil {
		log.Warnf("[ConversationHandler] 删除会话失败, id: %d, error: %v", chatID, err)
		respondError(c, err)
		return
	}
	respondOK(c, "会话已删除", nil)
}

func chatIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "无效的会话 id")
		return 0, false
	}
	return uint(id), true
}
