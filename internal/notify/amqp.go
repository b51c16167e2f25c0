package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/metrics"
)

// DefaultExchange is the fanout exchange status events are published to.
const DefaultExchange = "order_status_fanout"

const amqpSink = "amqp"

// publisher is the part of *amqp.Channel the notifier uses
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes persistent JSON status events on a fanout exchange.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex
}

// DialAMQP connects to url and declares the durable fanout exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQPNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (n *AMQPNotifier) OrderStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	n.mu.Lock()
	err = n.ch.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         eventStatusChanged,
		MessageId:    fmt.Sprintf("%s:%d", event.OrderID, event.Version),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	n.mu.Unlock()

	if err != nil {
		metrics.NotificationsFailedTotal.WithLabelValues(amqpSink).Inc()
		n.logger.Warn("AMQP: failed to publish status event",
			zap.String("exchange", n.exchange),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err))
		return fmt.Errorf("amqp publish failed: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *AMQPNotifier) Close() {
	if c, ok := n.ch.(*amqp.Channel); ok && c != nil {
		_ = c.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
