// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"doc-rag-go/internal/config"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IndexTask) error
}

// AttemptCounter 记录任务失败次数，使重试次数在消费者重启后依然有效。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Producer 发送建索引任务。
type Producer struct {
	writer *kafka.Writer
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Info("[Kafka] 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 发送一个建索引任务，同一文件的任务落在同一分区以保持顺序。
func (p *Producer) Publish(ctx context.Context, task tasks.IndexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Key()),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer 消费建索引任务。
type Consumer struct {
	reader      *kafka.Reader
	processor   TaskProcessor
	attempts    AttemptCounter
	maxAttempts int
	backoff     time.Duration
}

// NewConsumer 创建消费者，attempts 为 nil 时只在进程内计数。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{
		reader:      r,
		processor:   processor,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		backoff:     2 * time.Second,
	}
}

// Run 持续消费直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) error {
	log.Infof("[Kafka] 消费者已启动，正在监听主题 '%s'", c.reader.Config().Topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("[Kafka] 关闭消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.Error("[Kafka] 从 Kafka 读取消息失败", err)
			return err
		}
		c.handle(ctx, c.reader, m)
	}
}

// handle 处理一条消息。失败时按退避重试，达到上限后提交 offset 放弃该任务。
func (c *Consumer) handle(ctx context.Context, commit committer, m kafka.Message) {
	log.Infof("[Kafka] 收到消息: partition %d, offset %d", m.Partition, m.Offset)

	var task tasks.IndexTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("[Kafka] 无法解析消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, commit, m)
		return
	}

	key := "kafka:attempts:" + task.Key()
	local := 0
	for {
		err := c.processor.Process(ctx, task)
		if err == nil {
			log.Infof("[Kafka] 建索引任务处理成功: %s", task.Key())
			if c.attempts != nil {
				_ = c.attempts.Reset(ctx, key)
			}
			break
		}
		log.Errorf("[Kafka] 建索引任务处理失败: %s, Error: %v", task.Key(), err)

		local++
		attempts := int64(local)
		if c.attempts != nil {
			if n, incErr := c.attempts.Incr(ctx, key); incErr == nil {
				attempts = n
			}
		}
		if attempts >= int64(c.maxAttempts) {
			log.Errorf("[Kafka] 建索引任务多次失败(>=%d)，提交 offset 终止重试: %s", c.maxAttempts, task.Key())
			break
		}

		select {
		case <-ctx.Done():
			// 未提交 offset，重启后由 Kafka 重新投递
			return
		case <-time.After(c.backoff):
		}
	}
	c.commit(ctx, commit, m)
}

func (c *Consumer) commit(ctx context.Context, commit committer, m kafka.Message) {
	if err := commit.CommitMessages(ctx, m); err != nil {
		log.Errorf("[Kafka] 提交消息 offset 失败: %v", err)
	}
}
