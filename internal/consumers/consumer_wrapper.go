package consumers

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/aspectflow/internal/clients/kafka_client"
)

// GatedStart is a consumer loop that pauses while any of the given flags is false.
type GatedStart func(ctx context.Context, consumer *kafka.Consumer, health ...*atomic.Bool)

type gate struct {
	name string
	flag *atomic.Bool
}

// ConsumerWrapper binds dependency health flags to a gated consumer loop so it
// can be registered with the kafka_client registry.
type ConsumerWrapper struct {
	start GatedStart
	gates []gate
}

func WrapConsumer(start GatedStart) ConsumerWrapper {
	return ConsumerWrapper{start: start}
}

// WithHealthCheck attaches a named dependency flag. A nil flag is ignored.
func (cw ConsumerWrapper) WithHealthCheck(name string, flag *atomic.Bool) ConsumerWrapper {
	if flag == nil {
		return cw
	}
	gates := make([]gate, len(cw.gates), len(cw.gates)+1)
	copy(gates, cw.gates)
	cw.gates = append(gates, gate{name: name, flag: flag})
	return cw
}

// Gates lists the attached dependency names in attach order.
func (cw ConsumerWrapper) Gates() []string {
	names := make([]string, 0, len(cw.gates))
	for _, g := range cw.gates {
		names = append(names, g.name)
	}
	return names
}

func (cw ConsumerWrapper) Handler() kafka_client.ConsumerFunc {
	flags := make([]*atomic.Bool, 0, len(cw.gates))
	for _, g := range cw.gates {
		flags = append(flags, g.flag)
	}
	names := cw.Gates()

	return func(ctx context.Context, consumer *kafka.Consumer) {
		slog.Info("[Consumer] Starting gated consumer", slog.Any("depends_on", names))
		cw.start(ctx, consumer, flags...)
	}
}
