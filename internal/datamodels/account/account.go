package account

import (
	"context"
	"time"
)

// Account 用户账户余额。
// Balance 只允许支付捕获提交、提现与管理员充值三条路径修改，
// 且都必须走行锁事务，避免丢失更新。
type Account struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"uniqueIndex;not null"`
	Balance   int64     `gorm:"not null"` // 可用余额，单位：分
	Frozen    int64     `gorm:"not null"` // 冻结金额，单位：分
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction 账户交易流水
type Transaction struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"index;not null"`
	Amount    int64     `gorm:"not null"`      // 正数入账，负数出账，单位分
	Type      string    `gorm:"size:32;index"` // sale_credit / withdraw / deposit 等
	Status    string    `gorm:"size:32;index"` // success / failed / pending
	Note      string    `gorm:"size:255"`      // 备注
	CreatedAt time.Time `gorm:"index"`
}

// Repository 账户仓储接口。
// 只提供读路径：余额写入都发生在行锁事务里（捕获入账、提现、充值），
// 由各自的事务代码直接操作，不走这里。
type Repository interface {
	GetByUserID(ctx context.Context, userID int64) (*Account, error)
	// UpsertByUserID 确保账户存在后返回，余额查询的入口
	UpsertByUserID(ctx context.Context, userID int64) (*Account, error)
	ListTransactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error)
}
