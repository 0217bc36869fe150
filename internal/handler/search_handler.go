package handler

import (
	"doc-rag-go/internal/model"
	"doc-rag-go/internal/service"
	"doc-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	retrieval service.RetrievalService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(retrieval service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// KeywordSearch 在关键词库上执行 BM25 搜索。
func (h *SearchHandler) KeywordSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的查询参数")
		return
	}
	log.Infof("[SearchHandler] 收到关键词搜索请求, query: %s, topK: %d", req.Query, req.TopK)
	results, err := h.retrieval.KeywordSearch(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", gin.H{"results": results})
}

// HybridSearch 返回语义库上的融合检索结果及得分。
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的查询参数")
		return
	}
	log.Infof("[SearchHandler] 收到混合搜索请求, query: %s, topK: %d", req.Query, req.TopK)
	results, err := h.retrieval.HybridRetrieve(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		log.Errorf("[SearchHandler] 混合搜索失败, error: %v", err)
		respondError(c, err)
		return
	}
	if results == nil {
		results = []model.ScoredChunk{}
	}
	respondOK(c, "success", gin.H{"results": results})
}
