// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Store         StoreConfig         `mapstructure:"store"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	RAG           RAGConfig           `mapstructure:"rag"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Seed          SeedConfig          `mapstructure:"seed"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时不启用聊天记录缓存。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl_minutes"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Enabled 为 false 时上传后同步建索引。
type KafkaConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	GroupID     string `mapstructure:"group_id"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// TikaConfig 存储 Tika 服务器相关的配置。ServerURL 为空时不使用 Tika 兜底。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// StorageConfig 选择上传文件的对象存储后端。
type StorageConfig struct {
	Backend  string      `mapstructure:"backend"` // local | minio
	LocalDir string      `mapstructure:"local_dir"`
	MinIO    MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// StoreConfig 选择两个文档库的实现。
type StoreConfig struct {
	Backend       string `mapstructure:"backend"` // memory | elasticsearch
	SemanticIndex string `mapstructure:"semantic_index"`
	KeywordIndex  string `mapstructure:"keyword_index"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。APIKey 为空时复用 LLM 的凭证。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey            string              `mapstructure:"api_key"`
	BaseURL           string              `mapstructure:"base_url"`
	Model             string              `mapstructure:"model"`
	RequestsPerSecond float64             `mapstructure:"requests_per_second"`
	TimeoutSeconds    int                 `mapstructure:"timeout_seconds"`
	Generation        LLMGenerationConfig `mapstructure:"generation"`
	Breaker           BreakerConfig       `mapstructure:"breaker"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// BreakerConfig 配置远程调用的熔断器。
type BreakerConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	MinRequests        uint32  `mapstructure:"min_requests"`
	FailureRatio       float64 `mapstructure:"failure_ratio"`
	OpenTimeoutSeconds int     `mapstructure:"open_timeout_seconds"`
}

// RAGConfig 配置分块粒度、检索数量与 map-reduce 并发。
type RAGConfig struct {
	RetrievalChunkWords int `mapstructure:"retrieval_chunk_words"`
	SummaryChunkWords   int `mapstructure:"summary_chunk_words"`
	TopK                int `mapstructure:"top_k"`
	MapWorkers          int `mapstructure:"map_workers"`
	ContextMaxChars     int `mapstructure:"context_max_chars"`
}

// MetricsConfig 配置 Prometheus 指标暴露。
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SeedConfig 配置启动时导入的初始文档目录。Dir 不存在时跳过。
type SeedConfig struct {
	Dir        string `mapstructure:"dir"`
	Collection string `mapstructure:"collection"`
}

// Load 从指定的路径读取 YAML 文件，叠加 RAG_ 前缀的环境变量后解析为 Config。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.mysql.dsn", "root:root@tcp(127.0.0.1:3306)/doc_rag?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.redis.cache_ttl_minutes", 60)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "document-index")
	v.SetDefault("kafka.group_id", "doc-rag-go-indexer")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.minio.bucket_name", "doc-rag")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.semantic_index", "rag_chunks")
	v.SetDefault("store.keyword_index", "bm25_chunks")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.breaker.enabled", true)
	v.SetDefault("llm.breaker.min_requests", 10)
	v.SetDefault("llm.breaker.failure_ratio", 0.6)
	v.SetDefault("llm.breaker.open_timeout_seconds", 30)
	v.SetDefault("rag.retrieval_chunk_words", 350)
	v.SetDefault("rag.summary_chunk_words", 3000)
	v.SetDefault("rag.top_k", 4)
	v.SetDefault("rag.map_workers", 8)
	v.SetDefault("rag.context_max_chars", 12000)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("seed.dir", "initfile")
	v.SetDefault("seed.collection", "bm25")
}
