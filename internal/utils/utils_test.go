package utils

import (
	"sync"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchBufferCapacity(t *testing.T) {
	b := NewBatchBuffer[int](3)
	assert.False(t, b.Add(1))
	assert.False(t, b.Add(2))
	assert.True(t, b.Add(3))
	assert.True(t, b.HasData())

	assert.Equal(t, []int{1, 2, 3}, b.GetAndClear())
	assert.Nil(t, b.GetAndClear())
	assert.False(t, b.HasData())
}

func TestBatchBufferDefaultCapacity(t *testing.T) {
	b := NewBatchBuffer[string](0)
	for i := 0; i < BATCH_SIZE-1; i++ {
		require.False(t, b.Add("x"))
	}
	assert.True(t, b.Add("x"))
}

func TestBatchBufferConcurrentAdds(t *testing.T) {
	b := NewBatchBuffer[int](1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Add(i, i)
		}(i)
	}
	wg.Wait()
	assert.Len(t, b.GetAndClear(), 100)
}

func TestMessageTrackerRelease(t *testing.T) {
	tr := NewMessageTracker()
	msg := &kafka.Message{Key: []byte("b1")}
	tr.Track("run-1", msg)

	got, ok := tr.Release("run-1")
	require.True(t, ok)
	assert.Same(t, msg, got)

	_, ok = tr.Release("run-1")
	assert.False(t, ok)
}

func TestDeserializeFromJSON(t *testing.T) {
	var v struct{ A int }
	require.NoError(t, DeserializeFromJSON([]byte(`{"A":2}`), &v))
	assert.Equal(t, 2, v.A)
	assert.Error(t, DeserializeFromJSON([]byte(`{`), &v))
}
