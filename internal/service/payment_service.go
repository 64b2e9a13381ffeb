package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/order"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/infra/mq"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/provider/paypal"
)

// ProviderClient 支付服务商客户端（paypal.Client 实现；测试用替身）
type ProviderClient interface {
	CreateOrder(ctx context.Context, amountCents int64, localOrderID string) (*paypal.OrderResult, error)
	GetOrder(ctx context.Context, providerOrderID string) (*paypal.OrderResult, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*paypal.CaptureResult, error)
}

// EventPublisher 支付事件发布接口（mq.Publisher 实现）
type EventPublisher interface {
	Publish(ctx context.Context, queue string, body interface{}) error
}

// CheckoutItem 下单请求里的一项，只携带站点ID；
// 价格与抽成一律以刊例记录为准重新计算，不信任客户端金额。
type CheckoutItem struct {
	WebsiteID int64 `json:"website_id"`
}

// ProviderOrderResult 创建服务商订单的返回：买家批准跳转链接
type ProviderOrderResult struct {
	OrderID          int64  `json:"order_id"`
	ProviderOrderRef string `json:"provider_order_ref"`
	ApproveURL       string `json:"approve_url"`
}

// CaptureOutcome 捕获结果。重复请求返回首次记录的同一结果，
// AlreadyCaptured 标记本次是否被幂等守卫短路。
type CaptureOutcome struct {
	OrderID          int64  `json:"order_id"`
	ProviderOrderRef string `json:"provider_order_ref"`
	CaptureRef       string `json:"capture_ref"`
	PaymentStatus    string `json:"payment_status"`
	AmountCredited   int64  `json:"amount_credited"`
	AlreadyCaptured  bool   `json:"already_captured"`
}

// StatusResult 本地+服务商的组合状态
type StatusResult struct {
	OrderID          int64  `json:"order_id"`
	LocalStatus      string `json:"local_status"`
	PaymentStatus    string `json:"payment_status"`
	ProviderOrderRef string `json:"provider_order_ref,omitempty"`
	ProviderStatus   string `json:"provider_status,omitempty"`
}

// PaymentEvent 捕获完成后发布到 MQ 的事件
type PaymentEvent struct {
	OrderID          int64  `json:"order_id"`
	BuyerID          int64  `json:"buyer_id"`
	ProviderOrderRef string `json:"provider_order_ref"`
	CaptureRef       string `json:"capture_ref"`
	Amount           int64  `json:"amount"`
}

// ReviewEvent 需要人工/异步对账的异常情况
type ReviewEvent struct {
	ProviderOrderRef string `json:"provider_order_ref"`
	CaptureRef       string `json:"capture_ref,omitempty"`
	OrderID          int64  `json:"order_id,omitempty"`
	Reason           string `json:"reason"`
}

// PaymentService 订单支付对账服务。
// 驱动订单走完 created -> provider_pending -> provider_approved -> captured
// 状态机，并保证每个订单至多入账一次：
//   - 同进程的并发重复捕获由按订单的互斥锁串行化；
//   - 跨实例的竞争由 CaptureCommit 的行锁条件更新兜底。
type PaymentService struct {
	orderRepo   order.Repository
	websiteRepo website.Repository
	provider    ProviderClient
	publisher   EventPublisher // 可为 nil（如单测），发布失败只记日志

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // 按订单ID的捕获互斥锁
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	orderRepo order.Repository,
	websiteRepo website.Repository,
	provider ProviderClient,
	publisher EventPublisher,
) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		websiteRepo: websiteRepo,
		provider:    provider,
		publisher:   publisher,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// orderLock 取按订单的互斥锁（不存在则创建）
func (s *PaymentService) orderLock(orderID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[orderID] = l
	}
	return l
}

// CreateOrder 创建本地订单。价格、抽成按刊例逐项快照，总额只在此计算一次。
func (s *PaymentService) CreateOrder(ctx context.Context, buyerID int64, items []CheckoutItem) (*order.Order, error) {
	if buyerID <= 0 {
		return nil, fmt.Errorf("%w: 缺少买家", ErrInvalidInput)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: 购物车为空", ErrInvalidInput)
	}

	o := &order.Order{
		BuyerID:       buyerID,
		Status:        order.StatusCreated,
		PaymentStatus: order.PaymentPending,
	}
	for _, item := range items {
		w, err := s.websiteRepo.GetByID(ctx, item.WebsiteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: 站点 %d 不存在", ErrInvalidInput, item.WebsiteID)
			}
			GetMonitor().RecordDBError()
			return nil, err
		}
		if w.Status != website.StatusApproved {
			return nil, fmt.Errorf("%w: 站点 %d 未通过审核", ErrInvalidInput, w.ID)
		}

		price := w.Price
		if w.Discount > 0 && w.Discount < 100 {
			price = price * int64(100-w.Discount) / 100
		}
		if price <= 0 || w.Commission <= 0 {
			return nil, fmt.Errorf("%w: 站点 %d 价格配置异常", ErrInvalidInput, w.ID)
		}

		o.Items = append(o.Items, order.Item{
			WebsiteID:  w.ID,
			Price:      price,
			Commission: w.Commission,
		})
		o.TotalAmount += price
		o.CommissionTotal += w.Commission
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}
	zap.L().Info("order created",
		zap.Int64("order_id", o.ID),
		zap.Int64("buyer_id", buyerID),
		zap.Int64("total_amount", o.TotalAmount))
	return o, nil
}

// InitiateProviderOrder 在服务商侧开一个托管收银台订单并记录其订单号。
// 服务商调用失败时本地订单保持原状态，可以安全重试；
// 买家丢失批准链接后重新发起会开新的服务商订单并覆盖旧订单号。
func (s *PaymentService) InitiateProviderOrder(ctx context.Context, orderID int64) (*ProviderOrderResult, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case order.StatusCreated, order.StatusProviderPending:
		// 允许发起/重试
	default:
		return nil, fmt.Errorf("%w: 订单状态 %s 不允许发起支付", ErrInvalidInput, o.Status)
	}

	res, err := s.provider.CreateOrder(ctx, o.TotalAmount, strconv.FormatInt(o.ID, 10))
	if err != nil {
		GetMonitor().RecordProviderError()
		return nil, err
	}

	if err := s.orderRepo.MarkProviderPending(ctx, o.ID, res.ID); err != nil {
		GetMonitor().RecordDBError()
		// 服务商订单已存在而本地记录失败：交给对账队列，避免变成孤儿
		s.publishReview(ctx, &ReviewEvent{
			ProviderOrderRef: res.ID,
			OrderID:          o.ID,
			Reason:           "provider order created but local mark failed",
		})
		return nil, err
	}

	zap.L().Info("provider order created",
		zap.Int64("order_id", o.ID),
		zap.String("provider_order_ref", res.ID))
	return &ProviderOrderResult{
		OrderID:          o.ID,
		ProviderOrderRef: res.ID,
		ApproveURL:       res.ApproveURL,
	}, nil
}

// VerifyProviderApproval 查询服务商侧状态。只有 APPROVED 会推动本地进入
// provider_approved；VOIDED 是服务商的明确拒绝，进入失败终态；
// 其余状态不做任何本地变更，可反复调用。
func (s *PaymentService) VerifyProviderApproval(ctx context.Context, orderID int64) (*StatusResult, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ProviderOrderRef == "" {
		return nil, fmt.Errorf("%w: 尚未创建服务商订单", ErrOrderNotApproved)
	}

	res, err := s.provider.GetOrder(ctx, o.ProviderOrderRef)
	if err != nil {
		GetMonitor().RecordProviderError()
		return nil, err
	}

	switch res.Status {
	case paypal.StatusApproved:
		if o.Status == order.StatusProviderPending || o.Status == order.StatusCreated {
			if err := s.orderRepo.MarkApproved(ctx, o.ID); err != nil {
				GetMonitor().RecordDBError()
				return nil, err
			}
			o.Status = order.StatusProviderApproved
		}
	case paypal.StatusCompleted:
		// 服务商已完成而本地未捕获：状态出现分歧，交给对账，
		// 对调用方而言这不是"已批准"，不能当作可继续的成功返回
		if o.ProviderCaptureRef == "" {
			zap.L().Warn("provider order completed but local not captured",
				zap.Int64("order_id", o.ID),
				zap.String("provider_order_ref", o.ProviderOrderRef))
			s.publishReview(ctx, &ReviewEvent{
				ProviderOrderRef: o.ProviderOrderRef,
				OrderID:          o.ID,
				Reason:           "provider completed, local pending",
			})
			return nil, fmt.Errorf("%w: 服务商订单已完成但本地未捕获，待对账", ErrOrderNotApproved)
		}
	case paypal.StatusVoided:
		// 明确拒绝才允许进入失败终态
		if err := s.orderRepo.MarkFailed(ctx, o.ID); err != nil {
			GetMonitor().RecordDBError()
			return nil, err
		}
		return nil, fmt.Errorf("%w: 服务商订单已作废", ErrOrderNotApproved)
	default:
		return nil, fmt.Errorf("%w: 服务商状态 %s", ErrOrderNotApproved, res.Status)
	}

	return &StatusResult{
		OrderID:          o.ID,
		LocalStatus:      o.Status,
		PaymentStatus:    o.PaymentStatus,
		ProviderOrderRef: o.ProviderOrderRef,
		ProviderStatus:   res.Status,
	}, nil
}

// CaptureOrder 捕获资金并给买家入账。
// 幂等：capture ref 已存在时直接返回记录的结果，既不再调服务商也不再入账。
// 这是整条链路最关键的守卫，任何改动都要先看 payment_service_test.go 里的
// 重复/并发捕获用例。
func (s *PaymentService) CaptureOrder(ctx context.Context, orderID int64) (*CaptureOutcome, error) {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	GetMonitor().RecordCaptureRequest()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// 幂等守卫：已捕获的订单返回首次结果
	if o.ProviderCaptureRef != "" {
		GetMonitor().RecordDuplicateCapture()
		return capturedOutcome(o, true), nil
	}

	if o.Status != order.StatusProviderApproved {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrOrderNotApproved, o.Status)
	}

	res, err := s.provider.CaptureOrder(ctx, o.ProviderOrderRef)
	if err != nil {
		// 网络错误/超时结果不确定：订单停在 provider_approved，等客户端重询后重试
		GetMonitor().RecordProviderError()
		zap.L().Warn("provider capture failed",
			zap.Int64("order_id", o.ID),
			zap.String("provider_order_ref", o.ProviderOrderRef),
			zap.Error(err))
		return nil, err
	}

	if err := s.orderRepo.CaptureCommit(ctx, o.ID, res.CaptureID); err != nil {
		if errors.Is(err, order.ErrAlreadyCaptured) {
			// 跨实例的竞争者先提交了，读回其结果
			GetMonitor().RecordDuplicateCapture()
			committed, gerr := s.getOrder(ctx, orderID)
			if gerr != nil {
				return nil, gerr
			}
			return capturedOutcome(committed, true), nil
		}
		GetMonitor().RecordDBError()
		// 服务商已扣款但本地提交失败：必须进对账队列，否则资金与状态脱节
		zap.L().Error("capture commit failed after provider capture",
			zap.Int64("order_id", o.ID),
			zap.String("capture_ref", res.CaptureID),
			zap.Error(err))
		s.publishReview(ctx, &ReviewEvent{
			ProviderOrderRef: o.ProviderOrderRef,
			CaptureRef:       res.CaptureID,
			OrderID:          o.ID,
			Reason:           "provider captured, local commit failed",
		})
		return nil, err
	}

	GetMonitor().RecordCaptureSuccess()
	zap.L().Info("order captured",
		zap.Int64("order_id", o.ID),
		zap.String("capture_ref", res.CaptureID),
		zap.Int64("amount", o.TotalAmount))

	if s.publisher != nil {
		if perr := s.publisher.Publish(ctx, mq.PaymentEventsQueue, &PaymentEvent{
			OrderID:          o.ID,
			BuyerID:          o.BuyerID,
			ProviderOrderRef: o.ProviderOrderRef,
			CaptureRef:       res.CaptureID,
			Amount:           o.TotalAmount,
		}); perr != nil {
			GetMonitor().RecordMQError()
			zap.L().Warn("failed to publish payment event", zap.Error(perr))
		}
	}

	o.ProviderCaptureRef = res.CaptureID
	o.Status = order.StatusCaptured
	o.PaymentStatus = order.PaymentCompleted
	return capturedOutcome(o, false), nil
}

// CaptureByProviderRef 按服务商订单号完成验证+捕获，
// 供支付回跳后的回调路由使用。找不到本地订单（孤儿服务商订单）时
// 发布对账消息并返回 ErrOrderNotFound。
func (s *PaymentService) CaptureByProviderRef(ctx context.Context, providerRef string) (*CaptureOutcome, error) {
	if providerRef == "" {
		return nil, fmt.Errorf("%w: 缺少服务商订单号", ErrInvalidInput)
	}
	o, err := s.orderRepo.GetByProviderRef(ctx, providerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			GetMonitor().RecordOrphanOrder()
			zap.L().Warn("orphan provider order", zap.String("provider_order_ref", providerRef))
			s.publishReview(ctx, &ReviewEvent{
				ProviderOrderRef: providerRef,
				Reason:           "no local order for provider ref",
			})
			return nil, fmt.Errorf("%w: 服务商订单 %s 无本地记录", ErrOrderNotFound, providerRef)
		}
		GetMonitor().RecordDBError()
		return nil, err
	}

	if _, err := s.VerifyProviderApproval(ctx, o.ID); err != nil {
		return nil, err
	}
	return s.CaptureOrder(ctx, o.ID)
}

// CheckStatus 只读的组合状态查询，不做任何本地变更；
// 捕获超时后客户端靠它确认服务商侧的真实结果。
func (s *PaymentService) CheckStatus(ctx context.Context, orderID int64) (*StatusResult, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result := &StatusResult{
		OrderID:          o.ID,
		LocalStatus:      o.Status,
		PaymentStatus:    o.PaymentStatus,
		ProviderOrderRef: o.ProviderOrderRef,
	}
	if o.ProviderOrderRef == "" {
		return result, nil
	}
	res, err := s.provider.GetOrder(ctx, o.ProviderOrderRef)
	if err != nil {
		GetMonitor().RecordProviderError()
		return nil, err
	}
	result.ProviderStatus = res.Status
	return result, nil
}

func (s *PaymentService) getOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: #%d", ErrOrderNotFound, orderID)
		}
		GetMonitor().RecordDBError()
		return nil, err
	}
	return o, nil
}

func (s *PaymentService) publishReview(ctx context.Context, ev *ReviewEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, mq.PaymentReviewQueue, ev); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("failed to publish review event",
			zap.String("provider_order_ref", ev.ProviderOrderRef),
			zap.Error(err))
	}
}

func capturedOutcome(o *order.Order, duplicate bool) *CaptureOutcome {
	return &CaptureOutcome{
		OrderID:          o.ID,
		ProviderOrderRef: o.ProviderOrderRef,
		CaptureRef:       o.ProviderCaptureRef,
		PaymentStatus:    o.PaymentStatus,
		AmountCredited:   o.TotalAmount,
		AlreadyCaptured:  duplicate,
	}
}
