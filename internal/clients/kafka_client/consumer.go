package kafka_client

import (
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

func NewConsumer(cfg KafkaConfig) (*kafka.Consumer, error) {
	slog.Info("[KafkaConsumer] Connecting...",
		slog.String("broker", cfg.Broker),
		slog.String("group_id", cfg.GroupID))

	c, err := kafka.NewConsumer(cfg.consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("[KafkaConsumer] Failed to create consumer: %w", err)
	}

	if err := c.SubscribeTopics([]string{cfg.Topic}, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("[KafkaConsumer] Failed to subscribe to %s: %w", cfg.Topic, err)
	}

	slog.Info("[KafkaConsumer] Subscribed", slog.String("topic", cfg.Topic))
	return c, nil
}
