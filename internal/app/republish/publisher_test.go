package republish

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paynotify/internal/codec"
	"paynotify/internal/domain"
	"paynotify/internal/testutil"
)

const testTopic = "enriched-payment-events"

func newTestPublisher(t *testing.T, producer Producer, ledger *testutil.MemoryLedger) (Publisher, *codec.Codec) {
	t.Helper()
	c, err := codec.New(zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewPublisher(producer, c, ledger, testTopic, zaptest.NewLogger(t)), c
}

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 123}, PartitionKey(123))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x01, 0xc8}, PartitionKey(456))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, PartitionKey(-1))
}

func TestPublishWritesKeyedRecord(t *testing.T) {
	producer := testutil.NewRecordingProducer()
	ledger := testutil.NewMemoryLedger()
	p, c := newTestPublisher(t, producer, ledger)
	event := testutil.EnrichedPaymentEvent()

	require.NoError(t, p.Publish(context.Background(), event))

	messages := producer.Messages()
	require.Len(t, messages, 1)
	msg := messages[0]
	assert.Equal(t, testTopic, msg.Topic)
	assert.Equal(t, PartitionKey(event.CustomerID), msg.Key)
	assert.Contains(t, msg.Headers, kafka.Header{Key: HeaderIdempotencyKey, Value: []byte(event.IdempotencyKey)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: HeaderPaymentID, Value: []byte(event.PaymentID)})

	decoded := c.DecodeEnrichedPaymentEvent(msg.Value)
	require.False(t, decoded.Malformed())
	assert.Equal(t, event, decoded.Event)

	record, ok := ledger.Record(event.IdempotencyKey)
	require.True(t, ok)
	assert.Equal(t, event.PaymentID, record.PaymentID)
	assert.Equal(t, event.CustomerID, record.CustomerID)
	assert.Equal(t, testTopic, record.Topic)
	assert.False(t, record.PublishedAt.IsZero())
}

func TestPublishTwiceProducesOneRecord(t *testing.T) {
	producer := testutil.NewRecordingProducer()
	p, _ := newTestPublisher(t, producer, testutil.NewMemoryLedger())
	event := testutil.EnrichedPaymentEvent()

	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Publish(context.Background(), event))

	assert.Len(t, producer.Messages(), 1)
}

func TestPublishFailureIsRetryable(t *testing.T) {
	producer := testutil.NewRecordingProducer()
	producer.Failures = 1
	ledger := testutil.NewMemoryLedger()
	p, _ := newTestPublisher(t, producer, ledger)
	event := testutil.EnrichedPaymentEvent()

	err := p.Publish(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPublishFailed)
	assert.Zero(t, ledger.Len())

	require.NoError(t, p.Publish(context.Background(), event))
	assert.Len(t, producer.Messages(), 1)
}

func TestPublishLedgerLookupFailure(t *testing.T) {
	producer := testutil.NewRecordingProducer()
	ledger := testutil.NewMemoryLedger()
	ledger.LookupErr = errors.New("database is down")
	p, _ := newTestPublisher(t, producer, ledger)

	err := p.Publish(context.Background(), testutil.EnrichedPaymentEvent())

	assert.ErrorIs(t, err, domain.ErrPublishFailed)
	assert.Empty(t, producer.Messages())
}

func TestPublishLedgerRecordFailureKeepsAppend(t *testing.T) {
	producer := testutil.NewRecordingProducer()
	ledger := testutil.NewMemoryLedger()
	ledger.RecordErr = errors.New("database is down")
	p, _ := newTestPublisher(t, producer, ledger)

	err := p.Publish(context.Background(), testutil.EnrichedPaymentEvent())

	assert.NoError(t, err)
	assert.Len(t, producer.Messages(), 1)
}

func TestPublishLifecycleEventsWithoutIdempotencyKey(t *testing.T) {
	producer := testutil.NewRecordingProducer()
	ledger := testutil.NewMemoryLedger()
	p, c := newTestPublisher(t, producer, ledger)

	pending := testutil.EnrichedPaymentEvent()
	pending.IdempotencyKey = ""
	pending.PaymentData.PaymentStatus = domain.PaymentStatusPending
	completed := pending
	completed.PaymentData.PaymentStatus = domain.PaymentStatusCompleted

	require.NoError(t, p.Publish(context.Background(), pending))
	require.NoError(t, p.Publish(context.Background(), completed))
	require.NoError(t, p.Publish(context.Background(), completed))

	messages := producer.Messages()
	require.Len(t, messages, 2)
	first := c.DecodeEnrichedPaymentEvent(messages[0].Value)
	second := c.DecodeEnrichedPaymentEvent(messages[1].Value)
	assert.Equal(t, domain.PaymentStatusPending, first.Event.PaymentData.PaymentStatus)
	assert.Equal(t, domain.PaymentStatusCompleted, second.Event.PaymentData.PaymentStatus)
	assert.Equal(t, 2, ledger.Len())

	_, ok := ledger.Record(pending.PaymentID)
	assert.False(t, ok)
	_, ok = ledger.Record(completed.PublishKey())
	assert.True(t, ok)
}
