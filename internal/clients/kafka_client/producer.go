package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var (
	producer   *kafka.Producer
	producerMu sync.Mutex
)

func InitKafkaProducer(cfg KafkaConfig) error {
	slog.Info("[KafkaClient] Initializing Kafka Producer...")

	p, err := kafka.NewProducer(cfg.producerConfig())
	if err != nil {
		return fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(context.Background()); err != nil {
		p.Close()
		return fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	producerMu.Lock()
	producer = p
	producerMu.Unlock()
	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return nil
}

func CloseKafkaProducer() {
	producerMu.Lock()
	defer producerMu.Unlock()

	slog.Info("[KafkaClient] Shutting down Kafka producer...")
	if producer != nil {
		if remaining := producer.Flush(FLUSH_TIMEOUT); remaining > 0 {
			slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
				slog.Int("remaining", remaining))
		}
		producer.Close()
		producer = nil
		slog.Info("[KafkaClient] Kafka producer shut down")
	}
}

// PublishToKafka writes v as JSON inside its own producer transaction.
// A transactional producer allows one open transaction at a time, so
// publishes are serialized.
func PublishToKafka(topic, key string, v any) error {
	producerMu.Lock()
	defer producerMu.Unlock()

	if producer == nil {
		return errors.New("[KafkaClient] producer has not been initialized")
	}

	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to marshal message for %s: %w", topic, err)
	}

	if err := producer.BeginTransaction(); err != nil {
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          jsonData,
	}

	for i := 0; i < PUBLISH_TRIES; i++ {
		err = producer.Produce(msg, nil)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	if err != nil {
		if abortErr := producer.AbortTransaction(context.Background()); abortErr != nil {
			return fmt.Errorf("[KafkaClient] failed to abort transaction after produce error: %w", errors.Join(err, abortErr))
		}
		return fmt.Errorf("[KafkaClient] failed to produce to %s: %w", topic, err)
	}

	var commitErr error
	for i := 0; i < PUBLISH_TRIES; i++ {
		commitErr = producer.CommitTransaction(context.Background())
		if commitErr == nil {
			break
		}
		var kafkaErr kafka.Error
		if errors.As(commitErr, &kafkaErr) && kafkaErr.TxnRequiresAbort() {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		if abortErr := producer.AbortTransaction(context.Background()); abortErr != nil {
			commitErr = errors.Join(commitErr, abortErr)
		}
		return fmt.Errorf("[KafkaClient] failed to commit transaction after %d tries: %w", PUBLISH_TRIES, commitErr)
	}

	slog.Info("[KafkaClient] Published message transactionally",
		slog.String("topic", topic),
		slog.String("key", key))

	return nil
}
