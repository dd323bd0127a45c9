package backoff

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultHandlerTimeout = 30 * time.Second

type Outcome int

const (
	// OutcomeSucceeded means the handler accepted the record.
	OutcomeSucceeded Outcome = iota + 1
	// OutcomeAbandoned means retries were exhausted and the record is dropped.
	OutcomeAbandoned
	// OutcomeInterrupted means the worker was stopped while waiting to
	// redeliver; the record stays unacknowledged.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Advance reports whether the read position may move past the record.
func (o Outcome) Advance() bool {
	return o == OutcomeSucceeded || o == OutcomeAbandoned
}

type Handler func(ctx context.Context, msg kafka.Message) error

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Supervisor)

func WithSleep(sleep SleepFunc) Option {
	return func(s *Supervisor) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithHandlerTimeout bounds a single handler call.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) {
		if timeout > 0 {
			s.handlerTimeout = timeout
		}
	}
}

// Supervisor applies a Policy around a handler. Each consumer owns its own
// Supervisor; retry state lives on the stack of Process, so concurrent
// partition workers can share one Supervisor.
type Supervisor struct {
	name           string
	policy         Policy
	logger         *zap.Logger
	sleep          SleepFunc
	handlerTimeout time.Duration
}

func NewSupervisor(name string, policy Policy, logger *zap.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		name:           name,
		policy:         policy,
		logger:         logger,
		sleep:          sleepContext,
		handlerTimeout: defaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) Policy() Policy {
	return s.policy
}

// Process hands msg to handler until it succeeds or the policy is exhausted.
// The wait between attempts blocks the calling worker. Handler calls run on a
// context that ignores cancellation of ctx, so a record is never cut off
// mid-processing; cancellation is only observed while waiting.
func (s *Supervisor) Process(ctx context.Context, msg kafka.Message, handler Handler) Outcome {
	var state *RetryState
	for {
		err := s.invoke(ctx, msg, handler)
		if err == nil {
			if state != nil {
				s.logger.Info("Record processed after redelivery",
					s.recordFields(msg, zap.Int("attempts", state.Attempt+1))...,
				)
			}
			return OutcomeSucceeded
		}

		if state == nil {
			state = &RetryState{}
		}
		state.Attempt++
		state.LastError = err

		if s.policy.Exhausted(state.Attempt) {
			s.logger.Error("Retries exhausted, abandoning record and advancing read position",
				s.recordFields(msg,
					zap.Int("attempts", state.Attempt),
					zap.Int("max_attempts", s.policy.MaxAttempts),
					zap.Error(err),
				)...,
			)
			return OutcomeAbandoned
		}

		state.NextDelay = s.policy.Delay(state.Attempt)
		s.logger.Warn("Error handling record, scheduling redelivery",
			s.recordFields(msg,
				zap.Int("attempt", state.Attempt),
				zap.Duration("delay", state.NextDelay),
				zap.Error(err),
			)...,
		)

		if err := s.sleep(ctx, state.NextDelay); err != nil {
			s.logger.Info("Backoff interrupted, record left unacknowledged",
				s.recordFields(msg, zap.Int("attempt", state.Attempt), zap.Error(err))...,
			)
			return OutcomeInterrupted
		}
	}
}

func (s *Supervisor) invoke(ctx context.Context, msg kafka.Message, handler Handler) (err error) {
	handleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(handleCtx, msg)
}

func (s *Supervisor) recordFields(msg kafka.Message, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("consumer", s.name),
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Binary("key", msg.Key),
	}
	return append(fields, extra...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
