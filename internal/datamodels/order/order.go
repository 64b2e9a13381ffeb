package order

import (
	"context"
	"errors"
	"time"
)

// 订单本地状态机：created -> provider_pending -> provider_approved -> captured
// 失败终态 failed 只在服务商明确拒绝（VOIDED）时进入。
const (
	StatusCreated          = "created"
	StatusProviderPending  = "provider_pending"
	StatusProviderApproved = "provider_approved"
	StatusCaptured         = "captured"
	StatusFailed           = "failed"
)

// 对外的支付状态（与原始订单记录保持一致的三态）
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// ErrAlreadyCaptured 捕获提交时发现 capture ref 已被写入（并发重复捕获）。
// 调用方应重新读取订单并返回已记录的结果，而不是再次入账。
var ErrAlreadyCaptured = errors.New("order already captured")

// Order 订单模型。创建后 Items 与金额不再变化，订单永不删除（留作审计）。
type Order struct {
	ID      int64 `gorm:"primaryKey"`
	BuyerID int64 `gorm:"index;not null"`
	Items   []Item `gorm:"foreignKey:OrderID"`
	// TotalAmount / CommissionTotal 创建时按刊例价计算一次，不随刊例变动
	TotalAmount     int64  `gorm:"not null"` // 分
	CommissionTotal int64  `gorm:"not null"` // 分
	Status          string `gorm:"size:32;index;not null"`
	PaymentStatus   string `gorm:"size:16;index;not null"`
	// ProviderOrderRef 服务商收银台订单号，创建服务商订单成功后写入
	ProviderOrderRef string `gorm:"size:64;index"`
	// ProviderCaptureRef 服务商捕获号，同时也是防重复入账的守卫字段
	ProviderCaptureRef string `gorm:"size:64"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Item 订单行，下单时对刊例价格与抽成做快照
type Item struct {
	ID         int64 `gorm:"primaryKey"`
	OrderID    int64 `gorm:"index;not null"`
	WebsiteID  int64 `gorm:"index;not null"`
	Price      int64 `gorm:"not null"` // 分
	Commission int64 `gorm:"not null"` // 分
	CreatedAt  time.Time
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByProviderRef(ctx context.Context, ref string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)

	// MarkProviderPending 记录服务商订单号并进入 provider_pending
	MarkProviderPending(ctx context.Context, id int64, providerRef string) error
	// MarkApproved 服务商确认买家已批准后进入 provider_approved
	MarkApproved(ctx context.Context, id int64) error
	// MarkFailed 服务商明确拒绝后进入终态 failed
	MarkFailed(ctx context.Context, id int64) error

	// CaptureCommit 捕获提交：在单个事务里锁定订单行，校验 capture ref
	// 仍为空，然后一次性写入捕获号、完成状态并给买家入账。
	// capture ref 已存在时返回 ErrAlreadyCaptured 且不产生任何变更。
	CaptureCommit(ctx context.Context, id int64, captureRef string) error
}
