package kafka

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paynotify/internal/app/webhook"
	"paynotify/internal/codec"
	"paynotify/internal/domain"
	"paynotify/internal/testutil"
)

type renderFailingCodec struct {
	*codec.Codec
}

func (renderFailingCodec) RenderJSON(domain.EnrichedPaymentEvent) ([]byte, error) {
	return nil, errors.New("invalid UTF-8 in string field")
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, int64) (string, error) {
	return "", errors.New("no subscription")
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) Notify(_ context.Context, url string, payload []byte) (domain.DeliveryAttempt, error) {
	n.calls++
	return domain.DeliveryAttempt{Endpoint: url, Payload: payload, Outcome: domain.DeliveryOutcomeDelivered}, nil
}

func encodeEnrichedEvent(t *testing.T, c *codec.Codec, event domain.EnrichedPaymentEvent) kafka.Message {
	t.Helper()
	value, err := c.EncodeEnrichedPaymentEvent(event)
	require.NoError(t, err)
	return kafka.Message{Topic: enrichedEventsTopic, Value: value}
}

func newResolver(t *testing.T, url string) webhook.SubscriptionResolver {
	t.Helper()
	r, err := webhook.NewStaticSubscriptionResolver(url)
	require.NoError(t, err)
	return r
}

func TestEnrichedEventHandlerDeliversCanonicalJSON(t *testing.T) {
	c := newTestCodec(t)
	endpoint := newScriptedEndpoint()
	server := httptest.NewServer(endpoint)
	defer server.Close()

	notifier := webhook.NewRestClient(webhook.NewHTTPClient(time.Second), "api-key", zaptest.NewLogger(t))
	handler := EnrichedPaymentEventMessageHandler(c, newResolver(t, server.URL), notifier, zaptest.NewLogger(t))

	err := handler(context.Background(), encodeEnrichedEvent(t, c, testutil.EnrichedPaymentEvent()))

	require.NoError(t, err)
	bodies := endpoint.Bodies()
	require.Len(t, bodies, 1)
	expected, err := c.RenderJSON(testutil.EnrichedPaymentEvent())
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), bodies[0])
	assert.Equal(t, "api-key", endpoint.LastHeader().Get(webhook.HeaderAPIKey))
}

func TestEnrichedEventHandlerErrorStatusIsRetryable(t *testing.T) {
	c := newTestCodec(t)
	endpoint := newScriptedEndpoint(http.StatusInternalServerError)
	server := httptest.NewServer(endpoint)
	defer server.Close()

	notifier := webhook.NewRestClient(webhook.NewHTTPClient(time.Second), "api-key", zaptest.NewLogger(t))
	handler := EnrichedPaymentEventMessageHandler(c, newResolver(t, server.URL), notifier, zaptest.NewLogger(t))

	err := handler(context.Background(), encodeEnrichedEvent(t, c, testutil.EnrichedPaymentEvent()))

	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	var retryable *webhook.RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, http.StatusInternalServerError, retryable.StatusCode)
}

func TestEnrichedEventHandlerSkipsMalformedRecord(t *testing.T) {
	c := newTestCodec(t)
	notifier := &countingNotifier{}
	handler := EnrichedPaymentEventMessageHandler(c, newResolver(t, "http://localhost:8081/webhook"), notifier, zaptest.NewLogger(t))

	plain := encodePaymentEvent(t, c, testutil.PaymentEvent())
	err := handler(context.Background(), plain)

	assert.NoError(t, err)
	assert.Zero(t, notifier.calls)
}

func TestEnrichedEventHandlerSkipsUnrenderableEvent(t *testing.T) {
	c := newTestCodec(t)
	notifier := &countingNotifier{}
	handler := EnrichedPaymentEventMessageHandler(renderFailingCodec{c}, newResolver(t, "http://localhost:8081/webhook"), notifier, zaptest.NewLogger(t))

	err := handler(context.Background(), encodeEnrichedEvent(t, c, testutil.EnrichedPaymentEvent()))

	assert.NoError(t, err)
	assert.Zero(t, notifier.calls)
}

func TestEnrichedEventHandlerResolveFailureIsRetryable(t *testing.T) {
	c := newTestCodec(t)
	notifier := &countingNotifier{}
	handler := EnrichedPaymentEventMessageHandler(c, failingResolver{}, notifier, zaptest.NewLogger(t))

	err := handler(context.Background(), encodeEnrichedEvent(t, c, testutil.EnrichedPaymentEvent()))

	assert.Error(t, err)
	assert.Zero(t, notifier.calls)
}
