package kafka_infra

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"paynotify/internal/backoff"
)

const (
	commitTimeout   = 5 * time.Second
	fetchErrorPause = time.Second
)

// MessageHandler handles one record. A nil error acknowledges it.
type MessageHandler = backoff.Handler

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

// CommitFunc marks msg as consumed, moving the read position to the record
// after it.
type CommitFunc func(ctx context.Context, msg kafka.Message) error

// PartitionWorker processes the records of a single partition strictly in
// order. A record is committed only after the supervisor has let go of it, so
// the partition does not advance while a record is waiting for redelivery.
type PartitionWorker struct {
	reader     MessageReader
	commit     CommitFunc
	supervisor *backoff.Supervisor
	handler    MessageHandler
	logger     *zap.Logger
}

func NewPartitionWorker(reader MessageReader, commit CommitFunc, supervisor *backoff.Supervisor, handler MessageHandler, logger *zap.Logger) *PartitionWorker {
	return &PartitionWorker{
		reader:     reader,
		commit:     commit,
		supervisor: supervisor,
		handler:    handler,
		logger:     logger,
	}
}

// Run returns when ctx is done, the reader is closed, the consumer group
// generation ends or a record is interrupted during backoff.
func (w *PartitionWorker) Run(ctx context.Context) {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGenerationEnded) {
				return
			}
			w.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if !pause(ctx, fetchErrorPause) {
				return
			}
			continue
		}

		w.logger.Debug("Received Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)

		outcome := w.supervisor.Process(ctx, msg, w.handler)
		if !outcome.Advance() {
			return
		}

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = w.commit(commitCtx, msg)
		cancel()
		if err != nil {
			w.logger.Error("Failed to commit offset for Kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Stringer("outcome", outcome),
				zap.Error(err),
			)
			if errors.Is(err, kafka.ErrGenerationEnded) {
				return
			}
			continue
		}
		w.logger.Debug("Kafka message offset committed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Stringer("outcome", outcome),
		)
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
