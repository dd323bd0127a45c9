package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"paynotify/internal/domain"
	"paynotify/internal/util"
)

const (
	HeaderAPIKey     = "X-API-Key"
	HeaderDeliveryID = "X-Delivery-Id"

	contentTypeJSON   = "application/json"
	maxErrorBodyBytes = 64 << 10
)

// RetryableError is returned for every delivery that did not end with a 2xx
// response: error statuses carry the response body, transport failures carry
// the underlying error.
type RetryableError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("webhook delivery failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *RetryableError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrDeliveryFailed, e.Err}
	}
	return []error{domain.ErrDeliveryFailed}
}

type Notifier interface {
	Notify(ctx context.Context, subscriptionURL string, payload []byte) (domain.DeliveryAttempt, error)
}

// NewHTTPClient returns a client whose timeout covers the whole exchange and
// that reports redirects as responses instead of following them.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type RestClient struct {
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

func NewRestClient(httpClient *http.Client, apiKey string, logger *zap.Logger) *RestClient {
	return &RestClient{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Notify performs one POST of payload to subscriptionURL.
func (c *RestClient) Notify(ctx context.Context, subscriptionURL string, payload []byte) (domain.DeliveryAttempt, error) {
	attempt := domain.DeliveryAttempt{
		ID:       util.GenerateUUID(),
		Endpoint: subscriptionURL,
		Payload:  payload,
		Outcome:  domain.DeliveryOutcomeRetryable,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, subscriptionURL, bytes.NewReader(payload))
	if err != nil {
		return attempt, &RetryableError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set(HeaderDeliveryID, attempt.ID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Error when calling subscription endpoint",
			zap.String("subscription_url", subscriptionURL),
			zap.String("delivery_id", attempt.ID),
			zap.Bool("timeout", isTimeout(err)),
			zap.Error(err),
		)
		return attempt, &RetryableError{Err: err}
	}
	defer resp.Body.Close()

	attempt.StatusCode = resp.StatusCode
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		attempt.Outcome = domain.DeliveryOutcomeDelivered
		c.logger.Info("Success response from subscription endpoint",
			zap.Int("status_code", resp.StatusCode),
			zap.String("subscription_url", subscriptionURL),
			zap.String("delivery_id", attempt.ID),
		)
		return attempt, nil
	}

	if readErr != nil {
		c.logger.Debug("Failed to read error response body", zap.Error(readErr))
	}
	c.logger.Warn("Error response from subscription endpoint",
		zap.Int("status_code", resp.StatusCode),
		zap.String("error_body", string(body)),
		zap.String("subscription_url", subscriptionURL),
		zap.String("delivery_id", attempt.ID),
	)
	return attempt, &RetryableError{StatusCode: resp.StatusCode, Body: string(body)}
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
