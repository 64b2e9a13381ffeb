package mq

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
)

// 队列名称
const (
	// PaymentEventsQueue 捕获完成事件，payment-worker 消费后与服务商核对
	PaymentEventsQueue = "payment_events"
	// PaymentReviewQueue 无法自动对账的订单（如孤儿服务商订单），留待人工处理
	PaymentReviewQueue = "payment_review_queue"
)

var (
	conn *amqp.Connection
	once sync.Once
)

// Init 初始化 RabbitMQ 连接
func Init(cfg *config.RabbitMQConfig) *amqp.Connection {
	once.Do(func() {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Fatalf("failed to connect rabbitmq: %v", err)
		}
		conn = c
	})
	return conn
}

// Conn 获取 MQ 连接
func Conn() *amqp.Connection {
	return conn
}

// Publisher 封装队列声明与 JSON 发布
type Publisher struct {
	conn *amqp.Connection
}

// NewPublisher 创建发布器
func NewPublisher(conn *amqp.Connection) *Publisher {
	return &Publisher{conn: conn}
}

// Publish 将消息以 JSON 发布到指定队列（队列按需声明，持久化）
func (p *Publisher) Publish(ctx context.Context, queue string, body interface{}) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
}
