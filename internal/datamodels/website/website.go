package website

import (
	"context"
	"time"
)

// 审核状态
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Website 站点刊例（可购买的推广位）
type Website struct {
	ID        int64  `gorm:"primaryKey"`
	OwnerID   int64  `gorm:"index;not null"` // 站长用户ID
	MediaName string `gorm:"size:128;not null"`
	WebDomain string `gorm:"size:255;uniqueIndex;not null"`
	MediaType string `gorm:"size:32;index"` // blog / news / magazine 等
	Category  string `gorm:"size:64;index"`
	Language  string `gorm:"size:16;index"`
	// DA / AScore 第三方权重指标，供搜索筛选
	DA     int   `gorm:"index"`
	AScore int   `gorm:"index"`
	Price  int64 `gorm:"not null"` // 分
	// Commission 平台抽成，下单时随价格一起快照进订单
	Commission int64 `gorm:"not null"` // 分
	// Discount 折扣百分比，0 表示无折扣
	Discount  int    `gorm:""`
	Highlight bool   `gorm:""` // 是否在目录页高亮展示
	// SensitiveTopics 逗号分隔的敏感类目（Gambling,CBD,Adult,Trading）
	SensitiveTopics string `gorm:"size:128"`
	GoogleNews      bool   `gorm:""`
	Status          string `gorm:"size:16;index;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SearchFilter 搜索筛选条件，零值字段表示不过滤
type SearchFilter struct {
	Query           string
	MinPrice        int64
	MaxPrice        int64
	DAMin           int
	DAMax           int
	AScoreMin       int
	AScoreMax       int
	MediaType       string
	Categories      []string
	Language        string
	SensitiveTopics []string
	GoogleNews      *bool
}

// Repository 站点仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Website, error)
	Search(ctx context.Context, f *SearchFilter) ([]*Website, error)
	ListByOwner(ctx context.Context, ownerID int64, status string) ([]*Website, error)
	ListByStatus(ctx context.Context, status string) ([]*Website, error)
	Create(ctx context.Context, w *Website) error
	Update(ctx context.Context, w *Website) error
	Delete(ctx context.Context, id int64) error
}
