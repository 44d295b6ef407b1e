package kafka_client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	results []error
	calls   int
}

func (r *scriptedReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	i := r.calls
	r.calls++
	if i < len(r.results) && r.results[i] != nil {
		return nil, r.results[i]
	}
	topic := KAFKA_TOPIC_FEEDBACK_UPLOAD
	return &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic}, Value: []byte("{}")}, nil
}

func newIterator(ctx context.Context, r MessageReader) *KafkaMessageIterator {
	it := NewKafkaMessageIterator(ctx, r)
	it.retryDelay = time.Millisecond
	return it
}

func TestIteratorSkipsPollTimeouts(t *testing.T) {
	timeout := kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	r := &scriptedReader{results: []error{timeout, timeout, timeout, timeout, timeout, timeout, nil}}

	msg, err := newIterator(context.Background(), r).Next()
	require.NoError(t, err)
	assert.NotNil(t, msg)
	assert.Equal(t, 7, r.calls)
}

func TestIteratorRetriesTransientErrors(t *testing.T) {
	r := &scriptedReader{results: []error{errors.New("transient"), errors.New("transient"), nil}}

	msg, err := newIterator(context.Background(), r).Next()
	require.NoError(t, err)
	assert.NotNil(t, msg)
}

func TestIteratorGivesUpAfterRetries(t *testing.T) {
	results := make([]error, MAX_RETRIES)
	for i := range results {
		results[i] = errors.New("broken")
	}
	r := &scriptedReader{results: results}

	_, err := newIterator(context.Background(), r).Next()
	assert.ErrorContains(t, err, "after retries")
	assert.Equal(t, MAX_RETRIES, r.calls)
}

func TestIteratorAbortsWhenBrokersDown(t *testing.T) {
	down := kafka.NewError(kafka.ErrAllBrokersDown, "down", false)
	r := &scriptedReader{results: []error{down}}

	_, err := newIterator(context.Background(), r).Next()
	require.Error(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestIteratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newIterator(ctx, &scriptedReader{}).Next()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIteratorRequiresConsumer(t *testing.T) {
	_, err := NewKafkaMessageIterator(context.Background(), nil).Next()
	assert.Error(t, err)
}

type flakyCommitter struct {
	failures int
	calls    int
}

func (c *flakyCommitter) CommitMessage(*kafka.Message) ([]kafka.TopicPartition, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("coordinator loading")
	}
	return nil, nil
}

func TestCommitRetries(t *testing.T) {
	c := &flakyCommitter{failures: 2}
	h := NewCommitHandler(context.Background(), c)
	h.retryDelay = time.Millisecond

	require.NoError(t, h.Commit(&kafka.Message{}))
	assert.Equal(t, 3, c.calls)
}

func TestCommitGivesUp(t *testing.T) {
	c := &flakyCommitter{failures: MAX_RETRIES}
	h := NewCommitHandler(context.Background(), c)
	h.retryDelay = time.Millisecond

	assert.Error(t, h.Commit(&kafka.Message{}))
	assert.Equal(t, MAX_RETRIES, c.calls)
}

func TestCommitAttemptsOnceAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &flakyCommitter{}

	require.NoError(t, NewCommitHandler(ctx, c).Commit(&kafka.Message{}))
	assert.Equal(t, 1, c.calls)
}

func TestRegistryLookup(t *testing.T) {
	called := false
	RegisterConsumer("test-topic", func(context.Context, *kafka.Consumer) { called = true })
	t.Cleanup(func() { delete(consumerRegistry, "test-topic") })

	fn, err := lookupConsumer("test-topic")
	require.NoError(t, err)
	fn(context.Background(), nil)
	assert.True(t, called)

	_, err = lookupConsumer("missing")
	assert.ErrorContains(t, err, "No consumer found")
}

func TestGetKafkaConfigDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "")
	t.Setenv("KAFKA_CONSUMER_TOPIC", KAFKA_TOPIC_ASPECT_RESULTS)

	cfg := GetKafkaConfig()
	assert.Equal(t, "localhost:29092", cfg.Broker)
	assert.Equal(t, "aspectflow-consumer-group", cfg.GroupID)
	assert.Equal(t, KAFKA_TOPIC_ASPECT_RESULTS, cfg.Topic)

	cm := cfg.consumerConfig()
	assert.Equal(t, false, (*cm)["enable.auto.commit"])
	assert.Equal(t, "read_committed", (*cm)["isolation.level"])
}

func TestPublishWithoutProducer(t *testing.T) {
	assert.ErrorContains(t, PublishToKafka(KAFKA_TOPIC_ASPECT_RESULTS, "k", map[string]int{"a": 1}), "not been initialized")
}
