package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/encoding/protowire"

	"paynotify/internal/domain"
	"paynotify/internal/testutil"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestPaymentEventRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	events := []domain.PaymentEvent{
		testutil.PaymentEvent(),
		testutil.PaymentEventFor("pay_neg", -1, 0),
		{
			PaymentID: "pay_min",
			PaymentData: domain.PaymentData{
				Amount:        -250,
				PaymentStatus: domain.PaymentStatusRefunded,
				CreatedAt:     time.Date(2024, time.January, 2, 3, 4, 5, 123456789, time.UTC),
			},
		},
		{PaymentID: "pay_no_time", PaymentData: domain.PaymentData{Currency: "EUR"}},
	}

	for _, event := range events {
		t.Run(event.PaymentID, func(t *testing.T) {
			data, err := c.EncodePaymentEvent(event)
			require.NoError(t, err)

			result := c.DecodePaymentEvent(data)
			require.False(t, result.Malformed(), "unexpected malformed result: %v", result.Reason)
			assert.Equal(t, KindDecoded, result.Kind)
			assert.Equal(t, event, result.Event)
		})
	}
}

func TestEnrichedPaymentEventRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	event := testutil.EnrichedPaymentEvent()

	data, err := c.EncodeEnrichedPaymentEvent(event)
	require.NoError(t, err)

	result := c.DecodeEnrichedPaymentEvent(data)
	require.False(t, result.Malformed(), "unexpected malformed result: %v", result.Reason)
	assert.Equal(t, event, result.Event)
	assert.Equal(t, result.Event.CustomerID, result.Event.Customer.ID)
}

func TestEncodeIsDeterministic(t *testing.T) {
	c := newTestCodec(t)
	event := testutil.EnrichedPaymentEvent()

	first, err := c.EncodeEnrichedPaymentEvent(event)
	require.NoError(t, err)
	second, err := c.EncodeEnrichedPaymentEvent(event)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodePaymentEventMalformed(t *testing.T) {
	c := newTestCodec(t)

	enriched, err := c.EncodeEnrichedPaymentEvent(testutil.EnrichedPaymentEvent())
	require.NoError(t, err)

	var wrongWireType []byte
	wrongWireType = protowire.AppendTag(wrongWireType, 1, protowire.VarintType)
	wrongWireType = protowire.AppendVarint(wrongWireType, 42)

	var paymentData []byte
	paymentData = protowire.AppendTag(paymentData, 3, protowire.VarintType)
	paymentData = protowire.AppendVarint(paymentData, 99)
	var undefinedEnum []byte
	undefinedEnum = protowire.AppendTag(undefinedEnum, 1, protowire.BytesType)
	undefinedEnum = protowire.AppendString(undefinedEnum, "pay_1")
	undefinedEnum = protowire.AppendTag(undefinedEnum, 5, protowire.BytesType)
	undefinedEnum = protowire.AppendBytes(undefinedEnum, paymentData)

	var invalidUTF8 []byte
	invalidUTF8 = protowire.AppendTag(invalidUTF8, 1, protowire.BytesType)
	invalidUTF8 = protowire.AppendBytes(invalidUTF8, []byte{0xc3, 0x28})

	var missingData []byte
	missingData = protowire.AppendTag(missingData, 1, protowire.BytesType)
	missingData = protowire.AppendString(missingData, "pay_1")

	cases := map[string][]byte{
		"nil":               nil,
		"empty":             {},
		"truncated varint":  {0xff, 0xff, 0xff},
		"plain text":        []byte("not a protobuf message"),
		"enriched as plain": enriched,
		"wrong wire type":   wrongWireType,
		"undefined enum":    undefinedEnum,
		"invalid utf8":      invalidUTF8,
		"missing data":      missingData,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			var result Result[domain.PaymentEvent]
			require.NotPanics(t, func() { result = c.DecodePaymentEvent(data) })
			assert.True(t, result.Malformed())
			assert.Equal(t, KindMalformed, result.Kind)
			assert.Error(t, result.Reason)
			assert.Equal(t, domain.PaymentEvent{}, result.Event)
		})
	}
}

func TestDecodeEnrichedPaymentEventMalformed(t *testing.T) {
	c := newTestCodec(t)

	plain, err := c.EncodePaymentEvent(testutil.PaymentEvent())
	require.NoError(t, err)

	mismatched := testutil.EnrichedPaymentEvent()
	mismatched.Customer.ID = 999
	mismatchedBytes, err := c.EncodeEnrichedPaymentEvent(mismatched)
	require.NoError(t, err)

	cases := map[string][]byte{
		"missing customer":  plain,
		"customer mismatch": mismatchedBytes,
		"garbage":           {0x0a, 0xff, 0x01},
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			result := c.DecodeEnrichedPaymentEvent(data)
			assert.True(t, result.Malformed())
			assert.Error(t, result.Reason)
		})
	}
}

func TestRenderJSON(t *testing.T) {
	c := newTestCodec(t)

	data, err := c.RenderJSON(testutil.EnrichedPaymentEvent())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"paymentId": "pay_123",
		"idempotencyKey": "pay_123-2025-02-22T10:15:30Z",
		"customerId": "123",
		"merchantId": "456",
		"paymentData": {
			"amount": "10000",
			"currency": "USD",
			"paymentStatus": "PAYMENT_COMPLETED",
			"createdAt": "2025-03-17T23:00:00Z"
		},
		"customer": {
			"id": "123",
			"email": "john.doe@example.com",
			"name": "John Doe"
		}
	}`, string(data))
}

func TestRenderJSONOmitsDefaults(t *testing.T) {
	c := newTestCodec(t)
	event := domain.NewEnrichedPaymentEvent(domain.PaymentEvent{PaymentID: "pay_1"}, domain.Customer{})

	data, err := c.RenderJSON(event)
	require.NoError(t, err)

	assert.JSONEq(t, `{"paymentId":"pay_1","paymentData":{},"customer":{}}`, string(data))
}

func TestRenderJSONIsStable(t *testing.T) {
	c := newTestCodec(t)
	event := testutil.EnrichedPaymentEvent()

	first, err := c.RenderJSON(event)
	require.NoError(t, err)
	second, err := c.RenderJSON(event)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeMalformedLogsRecordPosition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c, err := New(zap.New(core))
	require.NoError(t, err)

	result := c.DecodeEnrichedPaymentEvent([]byte("garbage"),
		zap.String("topic", "enriched-payment-events"),
		zap.Int("partition", 2),
		zap.Int64("offset", 17),
	)

	require.True(t, result.Malformed())
	entries := logs.FilterMessageSnippet("Error deserializing").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "enriched-payment-events", fields["topic"])
	assert.Equal(t, int64(2), fields["partition"])
	assert.Equal(t, int64(17), fields["offset"])
	assert.Equal(t, int64(7), fields["size"])
	assert.Contains(t, fields, "error")
}

func TestRoundTripNormalizesCreatedAtToUTC(t *testing.T) {
	c := newTestCodec(t)
	event := testutil.PaymentEvent()
	zone := time.FixedZone("UTC+2", 2*60*60)
	event.PaymentData.CreatedAt = time.Date(2025, time.March, 18, 1, 0, 0, 500, zone)

	data, err := c.EncodePaymentEvent(event)
	require.NoError(t, err)
	result := c.DecodePaymentEvent(data)
	require.False(t, result.Malformed())

	createdAt := result.Event.PaymentData.CreatedAt
	assert.True(t, createdAt.Equal(event.PaymentData.CreatedAt))
	assert.Equal(t, time.UTC, createdAt.Location())

	event.PaymentData.CreatedAt = event.PaymentData.CreatedAt.UTC()
	assert.Equal(t, event, result.Event)
}
