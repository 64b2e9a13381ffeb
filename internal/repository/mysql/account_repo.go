package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/account"
)

// accountRepo 账户读路径。余额的写入不在这里：
// 捕获入账在 orderRepo.CaptureCommit，提现/充值在 AccountService 的行锁事务。
type accountRepo struct {
	db *gorm.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) account.Repository {
	return &accountRepo{db: db}
}

func (r *accountRepo) GetByUserID(ctx context.Context, userID int64) (*account.Account, error) {
	var acc account.Account
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpsertByUserID 账户不存在则建一条零余额记录，返回当前账户。
// user_id 唯一索引上的冲突直接忽略，并发安全。
func (r *accountRepo) UpsertByUserID(ctx context.Context, userID int64) (*account.Account, error) {
	acc := account.Account{UserID: userID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&acc).Error; err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

// ListTransactions 按时间倒序的交易流水
func (r *accountRepo) ListTransactions(ctx context.Context, userID int64, limit int) ([]*account.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*account.Transaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
