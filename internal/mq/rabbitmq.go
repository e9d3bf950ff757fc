package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher はRabbitMQへのメッセージ配信を行う。
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

var _ Publisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher は接続URLからRabbitMQPublisherを生成する。
func NewRabbitMQPublisher(url string) (*RabbitMQPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
	}, nil
}

// Publish はキューへメッセージを配信する。
// キューは初回配信時に永続キューとして宣言する。
func (r *RabbitMQPublisher) Publish(ctx context.Context, queue string, data []byte) error {
	if strings.TrimSpace(queue) == "" {
		return errors.New("rabbitmq queue is required")
	}

	if err := r.declareQueue(queue); err != nil {
		return err
	}

	return r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         data,
	})
}

// Close はチャネルと接続を閉じる。
func (r *RabbitMQPublisher) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQPublisher) declareQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}
	if _, err := r.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return err
	}
	r.declared[name] = true
	return nil
}
