// Package queue 提供了基于 Kafka 的导入任务投递与消费。
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/pkg/database"
	"campus-tutor-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// IngestTask 代表一个目录重建索引的任务。
type IngestTask struct {
	SourceDir string `json:"source_dir"`
	Recursive bool   `json:"recursive"`
	Requester string `json:"requester"`
}

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task IngestTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceIngestTask 发送一个导入任务到 Kafka。
func ProduceIngestTask(task IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Value: taskBytes,
		},
	)
}

// StartConsumer 启动一个 Kafka 消费者来处理导入任务。
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "campus-tutor-ingest",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var task IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理导入任务: dir=%s, recursive=%v, requester=%s", task.SourceDir, task.Recursive, task.Requester)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("处理导入任务失败: dir=%s, Error: %v", task.SourceDir, err)
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:ingest:attempts:%s", task.SourceDir)
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("导入任务多次失败(>=3)，提交 offset 终止重试: dir=%s", task.SourceDir)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
		} else {
			log.Infof("导入任务处理成功: dir=%s", task.SourceDir)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:ingest:attempts:%s", task.SourceDir)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
