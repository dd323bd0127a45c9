package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"paynotify/internal/backoff"
)

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// Consumer joins a consumer group and runs one PartitionWorker per assigned
// partition, so a record waiting for redelivery only holds back its own
// partition.
type Consumer interface {
	Consume(ctx context.Context) error
	Running() bool
}

type groupConsumer struct {
	cfg        ConsumerConfig
	supervisor *backoff.Supervisor
	handler    MessageHandler
	logger     *zap.Logger
	running    atomic.Bool
}

func NewConsumer(cfg ConsumerConfig, supervisor *backoff.Supervisor, handler MessageHandler, logger *zap.Logger) Consumer {
	return &groupConsumer{
		cfg:        cfg,
		supervisor: supervisor,
		handler:    handler,
		logger:     logger,
	}
}

func (c *groupConsumer) Running() bool {
	return c.running.Load()
}

// Consume blocks until ctx is done or the group fails.
func (c *groupConsumer) Consume(ctx context.Context) error {
	group, err := kafka.NewConsumerGroup(kafka.ConsumerGroupConfig{
		ID:                c.cfg.GroupID,
		Brokers:           c.cfg.Brokers,
		Topics:            []string{c.cfg.Topic},
		StartOffset:       kafka.FirstOffset,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		RebalanceTimeout:  30 * time.Second,
		Logger:            debugLogger(c.logger),
		ErrorLogger:       errorLogger(c.logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer group %s: %w", c.cfg.GroupID, err)
	}
	defer func() {
		if err := group.Close(); err != nil {
			c.logger.Error("Failed to close consumer group", zap.Error(err))
		}
	}()

	c.running.Store(true)
	defer c.running.Store(false)

	c.logger.Info("Kafka consumer starting",
		zap.String("topic", c.cfg.Topic),
		zap.String("group_id", c.cfg.GroupID),
	)

	for {
		gen, err := group.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrGroupClosed) {
				c.logger.Info("Kafka consumer stopped", zap.String("topic", c.cfg.Topic))
				return nil
			}
			return fmt.Errorf("failed to join consumer group %s: %w", c.cfg.GroupID, err)
		}

		c.logger.Info("Joined consumer group generation",
			zap.Int32("generation_id", gen.ID),
			zap.String("member_id", gen.MemberID),
			zap.Int("partitions", len(gen.Assignments[c.cfg.Topic])),
		)

		for _, assignment := range gen.Assignments[c.cfg.Topic] {
			partition, offset := assignment.ID, assignment.Offset
			gen.Start(func(genCtx context.Context) {
				c.consumePartition(ctx, genCtx, gen, partition, offset)
			})
		}
	}
}

func (c *groupConsumer) consumePartition(ctx, genCtx context.Context, gen *kafka.Generation, partition int, offset int64) {
	workerCtx, cancel := context.WithCancel(genCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	logger := c.logger.With(zap.String("topic", c.cfg.Topic), zap.Int("partition", partition))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       c.cfg.Topic,
		Partition:   partition,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		MaxAttempts: 3,
		Logger:      debugLogger(logger),
		ErrorLogger: errorLogger(logger),
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Error("Failed to close partition reader", zap.Error(err))
		}
	}()

	if err := reader.SetOffset(offset); err != nil {
		logger.Error("Failed to position partition reader", zap.Int64("offset", offset), zap.Error(err))
		return
	}

	commit := func(_ context.Context, msg kafka.Message) error {
		return gen.CommitOffsets(map[string]map[int]int64{
			msg.Topic: {msg.Partition: msg.Offset + 1},
		})
	}

	logger.Info("Partition worker started", zap.Int64("offset", offset))
	NewPartitionWorker(reader, commit, c.supervisor, c.handler, logger).Run(workerCtx)
	logger.Info("Partition worker stopped")
}
