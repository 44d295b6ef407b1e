package consumers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/aspectflow/internal/utils"
)

const (
	READ_ERROR_PAUSE = 2 * time.Second
	HEALTH_PAUSE     = 5 * time.Second
)

// Source yields messages. *kafka_client.KafkaMessageIterator satisfies it.
type Source interface {
	Next() (*kafka.Message, error)
}

// Committer commits a handled message. *kafka_client.KafkaCommitHandler
// satisfies it.
type Committer interface {
	Commit(msg *kafka.Message) error
}

// Publisher matches kafka_client.PublishToKafka.
type Publisher func(topic, key string, v any) error

// readMessages moves blocking reads off the caller's select loop. The
// channel closes once ctx is done.
func readMessages(ctx context.Context, src Source, pause time.Duration) <-chan *kafka.Message {
	out := make(chan *kafka.Message)
	go func() {
		defer close(out)
		for {
			msg, err := src.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				utils.HandleConsumerError(err)
				if !sleep(ctx, pause) {
					return
				}
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func allHealthy(health []*atomic.Bool) bool {
	for _, h := range health {
		if !h.Load() {
			return false
		}
	}
	return true
}
