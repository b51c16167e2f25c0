package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/metrics"
)

const (
	webhookTimeout = 10 * time.Second

	// SignatureHeader carries hex(HMAC-SHA256(secret, body)) when a secret is configured.
	SignatureHeader = "X-Kickside-Signature"
	EventHeader     = "X-Kickside-Event"

	eventStatusChanged = "order.status_changed"
	webhookSink        = "webhook"
)

// WebhookConfig configures the outbound status webhook.
type WebhookConfig struct {
	URL    string
	Secret string

	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration

	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// DefaultWebhookConfig returns the production retry and breaker settings for url.
func DefaultWebhookConfig(url, secret string) WebhookConfig {
	return WebhookConfig{
		URL:                     url,
		Secret:                  secret,
		RetryAttempts:           3,
		RetryInitialWait:        500 * time.Millisecond,
		RetryMaxWait:            5 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// WebhookNotifier POSTs each event as JSON. Failed deliveries are retried with
// exponential backoff; a circuit breaker stops hammering a dead endpoint.
type WebhookNotifier struct {
	cfg     WebhookConfig
	client  *http.Client
	retrier retry.Retry[int]
	breaker circuitbreaker.CircuitBreaker[int]
	logger  *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(cfg WebhookConfig, logger *zap.Logger) *WebhookNotifier {
	n := &WebhookNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}

	if cfg.RetryAttempts > 0 {
		n.retrier = retry.New[int](retry.Config{
			MaxAttempts:   cfg.RetryAttempts,
			InitialDelay:  cfg.RetryInitialWait,
			MaxDelay:      cfg.RetryMaxWait,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryableDelivery,
		})
	}

	if cfg.CircuitBreakerThreshold > 0 {
		threshold := cfg.CircuitBreakerThreshold
		n.breaker = circuitbreaker.New[int](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    cfg.CircuitBreakerTimeout,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounded config value
			},
		})
	}

	return n
}

// deliveryError is a non-2xx answer from the subscriber.
type deliveryError struct {
	StatusCode int
}

func (e *deliveryError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.StatusCode)
}

func isRetryableDelivery(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var de *deliveryError
	if errors.As(err, &de) {
		return de.StatusCode == http.StatusTooManyRequests || de.StatusCode >= 500
	}
	// transport errors
	return true
}

func (n *WebhookNotifier) OrderStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	if n.cfg.URL == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	status, err := n.execute(ctx, func(ctx context.Context) (int, error) {
		return n.post(ctx, body)
	})
	if err != nil {
		metrics.NotificationsFailedTotal.WithLabelValues(webhookSink).Inc()
		n.logger.Warn("Webhook: status notification failed",
			zap.String("url", n.cfg.URL),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err))
		return fmt.Errorf("webhook notification failed: %w", err)
	}

	n.logger.Info("Webhook: status notification sent",
		zap.String("url", n.cfg.URL),
		zap.String("order_id", event.OrderID.String()),
		zap.Int("status", status))
	return nil
}

// execute runs op through the breaker and the retrier, whichever are configured.
func (n *WebhookNotifier) execute(ctx context.Context, op func(context.Context) (int, error)) (int, error) {
	withRetry := func(ctx context.Context) (int, error) {
		if n.retrier != nil {
			return n.retrier.Do(ctx, op)
		}
		return op(ctx)
	}
	if n.breaker != nil {
		return n.breaker.Execute(ctx, withRetry)
	}
	return withRetry(ctx)
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventStatusChanged)
	if n.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.cfg.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &deliveryError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// Sign returns hex(HMAC-SHA256(secret, body)) for the signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
