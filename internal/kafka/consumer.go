package kafka

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kidora-labs/notification/internal/kafka/registry"
	"github.com/kidora-labs/notification/internal/orchestrator"

	// Blank import triggers init() in each handler file,
	// registering all event handlers into the registry.
	_ "github.com/kidora-labs/notification/internal/kafka/handlers"
)

// Consumer wraps the franz-go Kafka client and feeds the orchestrator.
type Consumer struct {
	client *kgo.Client
	orch   *orchestrator.Orchestrator
}

// New creates a Consumer with the given brokers, group ID, and topics.
func New(brokers []string, groupID string, topics []string, orch *orchestrator.Orchestrator) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, orch: orch}, nil
}

// Start begins polling Kafka and processing records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			c.process(ctx, r)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
}

// process dispatches a Kafka record through the handler registry, then runs
// the resulting command on the orchestrator.
func (c *Consumer) process(ctx context.Context, r *kgo.Record) {
	log.Debug().
		Str("topic", r.Topic).
		Str("key", string(r.Key)).
		Msg("processing kafka record")

	// notification-commands doesn't use eventType routing
	cmd := registry.DispatchDirect(r.Topic, r.Value)
	if cmd == nil {
		cmd = registry.Dispatch(r.Topic, r.Value)
	}
	if cmd == nil {
		log.Debug().Str("topic", r.Topic).Msg("no handler matched, skipping")
		return
	}

	switch {
	case cmd.Send != nil:
		if _, err := c.orch.Send(ctx, *cmd.Send); err != nil {
			log.Error().Err(err).
				Str("topic", r.Topic).
				Str("recipient_type", string(cmd.Send.RecipientType)).
				Str("recipient", cmd.Send.RecipientID).
				Msg("failed to send notification from kafka event")
		}
	case cmd.Broadcast != nil:
		if _, err := c.orch.Broadcast(ctx, *cmd.Broadcast); err != nil {
			log.Error().Err(err).
				Str("topic", r.Topic).
				Str("type", string(cmd.Broadcast.Type)).
				Msg("failed to broadcast notification from kafka event")
		}
	}
}
