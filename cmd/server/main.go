// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/handler"
	"doc-rag-go/internal/metrics"
	"doc-rag-go/internal/middleware"
	"doc-rag-go/internal/model"
	"doc-rag-go/internal/pipeline"
	"doc-rag-go/internal/repository"
	"doc-rag-go/internal/service"
	"doc-rag-go/internal/store"
	"doc-rag-go/pkg/database"
	"doc-rag-go/pkg/embedding"
	"doc-rag-go/pkg/es"
	"doc-rag-go/pkg/kafka"
	"doc-rag-go/pkg/llm"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/resilience"
	"doc-rag-go/pkg/storage"
	"doc-rag-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// 3. 初始化数据库和 Redis
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("连接 MySQL 失败", err)
	}
	if err := database.Migrate(db, &model.Chat{}, &model.Message{}, &model.IndexedDocument{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("连接 Redis 失败", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// 4. 初始化模型客户端
	settings := config.NewModelSettings(cfg.LLM.APIKey, cfg.LLM.Model)
	executor := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:      cfg.LLM.Breaker.Enabled,
		BreakerMinRequests:  cfg.LLM.Breaker.MinRequests,
		BreakerFailureRatio: cfg.LLM.Breaker.FailureRatio,
		BreakerOpenTimeout:  time.Duration(cfg.LLM.Breaker.OpenTimeoutSeconds) * time.Second,
	})
	llmClient := llm.NewClient(cfg.LLM, settings, executor, m)
	embeddingClient := embedding.NewClient(cfg.Embedding, settings, executor, m)

	// 5. 初始化文档库与对象存储
	semanticStore, keywordStore, err := newStores(ctx, cfg)
	if err != nil {
		log.Fatal("初始化文档库失败", err)
	}
	objects, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("初始化对象存储失败", err)
	}

	// 6. 初始化文件处理管道
	var fallback pipeline.TextExtractor
	if tikaClient := tika.NewClient(cfg.Tika); tikaClient != nil {
		fallback = tikaClient
	}
	extractor := pipeline.NewExtractor(fallback)
	indexer := pipeline.NewIndexer(extractor, embeddingClient, cfg.RAG.RetrievalChunkWords)
	loader := pipeline.NewLoader(objects, extractor, model.CollectionRAG)

	// 7. 初始化 Repository
	chatRepo := repository.NewCachedChatRepository(
		repository.NewChatRepository(db), rdb, time.Duration(cfg.Database.Redis.CacheTTL)*time.Minute)
	documentRepo := repository.NewDocumentRepository(db)

	// 8. 初始化 Service (依赖注入)
	var publisher service.TaskPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
	}
	retrievalService := service.NewRetrievalService(semanticStore, keywordStore, embeddingClient)
	routerService := service.NewRouterService(llmClient)
	summaryService := service.NewSummaryService(llmClient, loader, cfg.RAG.SummaryChunkWords, cfg.RAG.MapWorkers, m)
	answerService := service.NewAnswerService(llmClient, retrievalService, cfg.RAG.TopK, cfg.RAG.ContextMaxChars)
	chatService := service.NewChatService(routerService, summaryService, answerService, chatRepo, settings, m)
	conversationService := service.NewConversationService(chatRepo)
	documentService := service.NewDocumentService(indexer, semanticStore, keywordStore, objects, documentRepo, publisher, settings, m)

	// 9. 启动后台 Kafka 消费者
	var background sync.WaitGroup
	if cfg.Kafka.Enabled {
		var attempts kafka.AttemptCounter
		if rdb != nil {
			attempts = repository.NewTaskAttemptRepository(rdb)
		}
		consumer := kafka.NewConsumer(cfg.Kafka, documentService, attempts)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Error("[Kafka] 消费者退出", err)
			}
		}()
	}

	// 9.1 导入初始文档目录，已导入的文件跳过
	background.Add(1)
	go func() {
		defer background.Done()
		seedDocuments(ctx, cfg.Seed, documentService)
	}()

	// 10. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(m), gin.Recovery())
	registerRoutes(r, cfg, m, routes{
		config:        handler.NewConfigHandler(settings),
		documents:     handler.NewDocumentHandler(documentService),
		conversations: handler.NewConversationHandler(conversationService),
		chat:          handler.NewChatHandler(chatService),
		search:        handler.NewSearchHandler(retrievalService),
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	background.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("[Kafka] 关闭生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

type routes struct {
	config        *handler.ConfigHandler
	documents     *handler.DocumentHandler
	conversations *handler.ConversationHandler
	chat          *handler.ChatHandler
	search        *handler.SearchHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, m *metrics.Metrics, h routes) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/config", h.config.Update)

		apiV1.POST("/rag/upload", h.documents.UploadRAG)
		apiV1.POST("/bm25/upload", h.documents.UploadBM25)
		apiV1.GET("/documents", h.documents.List)

		apiV1.POST("/chats", h.conversations.CreateChat)
		apiV1.GET("/chats", h.conversations.ListChats)
		apiV1.GET("/chats/:id/messages", h.conversations.GetMessages)
		apiV1.DELETE("/chats/:id", h.conversations.DeleteChat)

		apiV1.POST("/rag/ask", h.chat.Ask)
		apiV1.POST("/rag/ask-stream", h.chat.AskStream)

		apiV1.POST("/bm25/search", h.search.KeywordSearch)
		apiV1.POST("/rag/search", h.search.HybridSearch)
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/ws", h.chat.Handle)
}

// newStores 按配置创建语义库和关键词库。
func newStores(ctx context.Context, cfg *config.Config) (store.Store, store.Store, error) {
	if cfg.Store.Backend != "elasticsearch" {
		log.Info("[Store] 使用内存文档库")
		return store.NewMemory(cfg.Store.SemanticIndex, true), store.NewMemory(cfg.Store.KeywordIndex, false), nil
	}

	client, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return nil, nil, err
	}
	dims := cfg.Embedding.Dimensions
	if err := es.EnsureIndex(ctx, client, cfg.Store.SemanticIndex, dims); err != nil {
		return nil, nil, err
	}
	if err := es.EnsureIndex(ctx, client, cfg.Store.KeywordIndex, 0); err != nil {
		return nil, nil, err
	}
	log.Infof("[Store] 使用 Elasticsearch 文档库, 索引: %s, %s", cfg.Store.SemanticIndex, cfg.Store.KeywordIndex)
	return store.NewElastic(client, cfg.Store.SemanticIndex, true, dims),
		store.NewElastic(client, cfg.Store.KeywordIndex, false, 0), nil
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.Backend == "minio" {
		return storage.NewMinioStore(ctx, cfg.MinIO)
	}
	return storage.NewLocalStore(cfg.LocalDir)
}

// seedDocuments 扫描目录下的文件并通过标准上传流程导入（幂等）。
// ListDocuments 会把分块已不在文档库中的记录标记为 DocumentMissing，这些文件会被重新导入。
func seedDocuments(ctx context.Context, cfg config.SeedConfig, docs service.DocumentService) {
	info, err := os.Stat(cfg.Dir)
	if err != nil || !info.IsDir() {
		log.Infof("seedDocuments: 目录 '%s' 不存在或不可用，跳过初始化导入", cfg.Dir)
		return
	}
	collection := model.Collection(cfg.Collection)

	indexed := make(map[string]bool)
	existing, err := docs.ListDocuments(ctx, collection)
	if err != nil {
		log.Warnf("seedDocuments: 读取已导入文档失败: %v", err)
		return
	}
	for _, d := range existing {
		indexed[d.FileName] = d.Status == model.DocumentIndexed
	}

	walkErr := filepath.Walk(cfg.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || ctx.Err() != nil {
			return nil
		}
		if indexed[info.Name()] {
			log.Infof("seedDocuments: 已存在，跳过: %s", info.Name())
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("seedDocuments: 读取文件失败: %s, err=%v", path, err)
			return nil
		}
		results, err := docs.Upload(ctx, collection, []service.UploadFile{{FileName: info.Name(), Data: data}})
		if err != nil {
			log.Warnf("seedDocuments: 导入失败: %s, err=%v", path, err)
			return nil
		}
		for _, r := range results {
			if r.Error != "" {
				log.Warnf("seedDocuments: 导入失败: %s, err=%s", r.FileName, strings.TrimSpace(r.Error))
				continue
			}
			log.Infof("seedDocuments: 导入完成: %s, 分块数: %d, 异步: %t", r.FileName, r.Chunks, r.Queued)
		}
		return nil
	})
	if walkErr != nil {
		log.Warnf("seedDocuments: 遍历目录发生错误: %v", walkErr)
	}
}
