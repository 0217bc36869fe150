package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	"doc-rag-go/internal/model"
	"doc-rag-go/internal/service"
	"doc-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责文档上传与已索引文档列表。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// UploadRAG 上传文件到语义库。
func (h *DocumentHandler) UploadRAG(c *gin.Context) {
	h.upload(c, model.CollectionRAG)
}

// UploadBM25 上传文件到关键词库。
func (h *DocumentHandler) UploadBM25(c *gin.Context) {
	h.upload(c, model.CollectionBM25)
}

func (h *DocumentHandler) upload(c *gin.Context, collection model.Collection) {
	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "无效的 multipart 请求")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respondBadRequest(c, "缺少文件字段 files")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			log.Errorf("[DocumentHandler] 读取上传文件失败, FileName: %s, Error: %v", fh.Filename, err)
			respondBadRequest(c, fmt.Sprintf("读取文件 %s 失败", fh.Filename))
			return
		}
		files = append(files, service.UploadFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	results, err := h.docService.Upload(c.Request.Context(), collection, files)
	if err != nil {
		log.Errorf("[DocumentHandler] 上传失败, collection: %s, Error: %v", collection, err)
		respondError(c, err)
		return
	}
	respondOK(c, "上传完成", results)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// List 返回已索引文档，collection 参数为空时返回全部。
func (h *DocumentHandler) List(c *gin.Context) {
	collection := model.Collection(c.Query("collection"))
	docs, err := h.docService.ListDocuments(c.Request.Context(), collection)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", docs)
}
