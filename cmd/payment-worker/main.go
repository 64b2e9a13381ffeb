package main

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/order"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/infra/mq"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/infra/redis"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/logging"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/provider/paypal"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/repository/mysql"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/service"
)

// payment-worker 负责支付链路的异步对账：
//   - payment_events：捕获完成后与服务商复核一次，确认两侧状态一致；
//   - payment_review_queue：孤儿服务商订单、提交失败等异常，记录待人工处理。
func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.Init(false)
	defer func() { _ = zap.L().Sync() }()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	redisClient := redis.Init(&cfg.Redis)

	orderRepo := mysql.NewOrderRepository(db)
	providerClient := paypal.New(&cfg.PayPal, redisClient)

	go consume(mqConn, mq.PaymentEventsQueue, func(d amqp.Delivery) {
		handlePaymentEvent(context.Background(), orderRepo, providerClient, d)
	})
	consume(mqConn, mq.PaymentReviewQueue, handleReviewEvent)
}

// consume 声明队列并以手动确认模式消费
func consume(conn *amqp.Connection, queue string, handle func(amqp.Delivery)) {
	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue %s: %v", queue, err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume %s: %v", queue, err)
	}

	zap.L().Info("payment worker consuming", zap.String("queue", queue))
	for d := range msgs {
		handle(d)
	}
}

// handlePaymentEvent 捕获完成事件：读服务商真实状态，与本地比对
func handlePaymentEvent(ctx context.Context, orderRepo order.Repository, provider *paypal.Client, d amqp.Delivery) {
	var ev service.PaymentEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		zap.L().Warn("invalid payment event", zap.Error(err))
		// 消息格式错误，拒绝并丢弃
		_ = d.Nack(false, false)
		return
	}

	o, err := orderRepo.GetByID(ctx, ev.OrderID)
	if err != nil {
		zap.L().Error("order not found for payment event", zap.Int64("order_id", ev.OrderID), zap.Error(err))
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, true)
		return
	}

	res, err := provider.GetOrder(ctx, ev.ProviderOrderRef)
	if err != nil {
		// 服务商暂不可用，重新入队稍后再核
		zap.L().Warn("provider recheck failed", zap.Int64("order_id", ev.OrderID), zap.Error(err))
		service.GetMonitor().RecordProviderError()
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, true)
		return
	}

	if res.Status != paypal.StatusCompleted || o.PaymentStatus != order.PaymentCompleted {
		zap.L().Error("payment state divergence",
			zap.Int64("order_id", o.ID),
			zap.String("local_status", o.PaymentStatus),
			zap.String("provider_status", res.Status))
	} else {
		zap.L().Info("payment reconciled",
			zap.Int64("order_id", o.ID),
			zap.String("capture_ref", ev.CaptureRef))
	}

	service.GetMonitor().RecordWorkerProcessed()
	if err := d.Ack(false); err != nil {
		zap.L().Warn("failed to ack message", zap.Error(err))
	}
}

// handleReviewEvent 异常对账事件：目前记录日志与计数，留待人工处理
func handleReviewEvent(d amqp.Delivery) {
	var ev service.ReviewEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		zap.L().Warn("invalid review event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	zap.L().Warn("payment needs manual review",
		zap.String("provider_order_ref", ev.ProviderOrderRef),
		zap.String("capture_ref", ev.CaptureRef),
		zap.Int64("order_id", ev.OrderID),
		zap.String("reason", ev.Reason))

	service.GetMonitor().RecordWorkerProcessed()
	if err := d.Ack(false); err != nil {
		zap.L().Warn("failed to ack message", zap.Error(err))
	}
}
