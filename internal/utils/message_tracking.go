package utils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// MessageTracker remembers which Kafka message carried a buffered value so
// the offset can be committed once the value is persisted.
type MessageTracker struct {
	messages sync.Map
}

func NewMessageTracker() *MessageTracker {
	return &MessageTracker{}
}

func (t *MessageTracker) Track(key string, msg *kafka.Message) {
	t.messages.Store(key, msg)
}

// Release returns and forgets the message tracked under key.
func (t *MessageTracker) Release(key string) (*kafka.Message, bool) {
	msg, ok := t.messages.LoadAndDelete(key)
	if !ok {
		return nil, false
	}
	return msg.(*kafka.Message), true
}
