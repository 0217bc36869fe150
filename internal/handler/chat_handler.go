package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"doc-rag-go/internal/service"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责问答请求：普通 JSON、SSE 流以及 WebSocket。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type askRequest struct {
	ChatID    uint     `json:"chat_id" binding:"required"`
	Query     string   `json:"query" binding:"required"`
	FileNames []string `json:"file_names"`
}

// Ask 等待完整回复后一次性返回。
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "chat_id 和 query 不能为空")
		return
	}
	answer, err := h.chatService.Run(c.Request.Context(), req.ChatID, req.Query, req.FileNames)
	if err != nil {
		log.Errorf("[ChatHandler] 问答失败, chatID: %d, error: %v", req.ChatID, err)
		respondError(c, err)
		return
	}
	respondOK(c, "success", gin.H{"answer": answer})
}

// AskStream 以 SSE 的形式逐段返回回复。
// 每段为 data: {"content": ...}，持久化完成后发送 data: {"done": true}，失败时发送 data: {"error": ...}。
func (h *ChatHandler) AskStream(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "chat_id 和 query 不能为空")
		return
	}
	out, err := h.chatService.RouteAndExecute(c.Request.Context(), req.ChatID, req.Query, req.FileNames)
	if err != nil {
		respondError(c, err)
		return
	}
	defer out.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for ev := range out.Events() {
		var frame gin.H
		switch ev.Kind {
		case stream.KindToken:
			frame = gin.H{"content": ev.Text}
		case stream.KindDone:
			frame = gin.H{"done": true}
		default:
			log.Errorf("[ChatHandler] 流式问答失败, chatID: %d, error: %v", req.ChatID, ev.Err)
			frame = gin.H{"error": publicMessage(ev.Err)}
		}
		if err := writeSSE(c, frame); err != nil {
			log.Warnf("[ChatHandler] 客户端已断开, chatID: %d, error: %v", req.ChatID, err)
			return
		}
	}
}

func writeSSE(c *gin.Context, frame gin.H) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// Handle 处理一个传入的 WebSocket 连接，每条消息是一次问答请求。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("[ChatHandler] WebSocket 连接已建立, remote: %s", conn.RemoteAddr())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[ChatHandler] 从 WebSocket 读取消息失败: %v", err)
			return
		}

		var req askRequest
		if err := json.Unmarshal(message, &req); err != nil || req.ChatID == 0 || req.Query == "" {
			if !writeWSError(conn, "消息格式应为 {chat_id, query, file_names}") {
				return
			}
			continue
		}

		if !h.streamOverWebsocket(c, conn, req) {
			return
		}
	}
}

// streamOverWebsocket 转发一次问答的全部片段，连接不可写时返回 false。
func (h *ChatHandler) streamOverWebsocket(c *gin.Context, conn *websocket.Conn, req askRequest) bool {
	out, err := h.chatService.RouteAndExecute(c.Request.Context(), req.ChatID, req.Query, req.FileNames)
	if err != nil {
		return writeWSError(conn, publicMessage(err))
	}
	defer out.Close()

	for ev := range out.Events() {
		switch ev.Kind {
		case stream.KindToken:
			if err := conn.WriteJSON(gin.H{"chunk": ev.Text}); err != nil {
				log.Warnf("[ChatHandler] 写入 WebSocket 失败: %v", err)
				return false
			}
		case stream.KindDone:
			return writeWSFrame(conn, completionFrame())
		default:
			log.Errorf("[ChatHandler] WebSocket 问答失败, chatID: %d, error: %v", req.ChatID, ev.Err)
			return writeWSError(conn, publicMessage(ev.Err))
		}
	}
	return true
}

func completionFrame() gin.H {
	now := time.Now()
	return gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
}

func writeWSError(conn *websocket.Conn, message string) bool {
	return writeWSFrame(conn, gin.H{
		"type":      "error",
		"error":     message,
		"timestamp": time.Now().UnixMilli(),
	})
}

func writeWSFrame(conn *websocket.Conn, frame gin.H) bool {
	if err := conn.WriteJSON(frame); err != nil {
		log.Warnf("[ChatHandler] 写入 WebSocket 失败: %v", err)
		return false
	}
	return true
}
