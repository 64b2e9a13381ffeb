package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/account"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/user"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/repository/mysql"
)

// AccountService 提供账户余额查询、站长提现与管理员充值。
// 余额入账（sale_credit）只发生在订单仓储的 CaptureCommit 里，
// 这里绝不做入账，避免与支付链路产生竞争写。
type AccountService struct {
	db          *gorm.DB
	accountRepo account.Repository
	userRepo    user.Repository
}

// NewAccountService 创建账户服务
func NewAccountService(db *gorm.DB, userRepo user.Repository) *AccountService {
	return &AccountService{
		db:          db,
		accountRepo: mysql.NewAccountRepository(db),
		userRepo:    userRepo,
	}
}

// GetSummary 返回账户余额与冻结金额（账户不存在则创建）
func (s *AccountService) GetSummary(ctx context.Context, userID int64) (*account.Account, error) {
	return s.accountRepo.UpsertByUserID(ctx, userID)
}

// ListTransactions 查询交易流水
func (s *AccountService) ListTransactions(ctx context.Context, userID int64, limit int) ([]*account.Transaction, error) {
	return s.accountRepo.ListTransactions(ctx, userID, limit)
}

// AccountSummary 提供用户+余额信息
type AccountSummary struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Balance int64  `json:"balance"`
	Frozen  int64  `json:"frozen"`
	Updated string `json:"updated_at"`
}

// ListAccounts 获取所有用户的余额信息（确保账户存在，管理端）
func (s *AccountService) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AccountSummary, 0, len(users))
	for _, u := range users {
		acc, err := s.accountRepo.UpsertByUserID(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, AccountSummary{
			UserID:  u.ID,
			Name:    u.Name,
			Email:   u.Email,
			Role:    u.Role,
			Balance: acc.Balance,
			Frozen:  acc.Frozen,
			Updated: acc.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out, nil
}

// Withdraw 站长提现（扣余额、写流水）
func (s *AccountService) Withdraw(ctx context.Context, userID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, errors.New("提现金额需大于 0")
	}
	var acc account.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定账户
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&acc).Error; err != nil {
			return err
		}
		if acc.Balance < amount {
			return fmt.Errorf("余额不足，需 ¥%.2f，当前 ¥%.2f", float64(amount)/100, float64(acc.Balance)/100)
		}
		acc.Balance -= amount
		if err := tx.Save(&acc).Error; err != nil {
			return err
		}
		return tx.Create(&account.Transaction{
			UserID: userID,
			Amount: -amount,
			Type:   "withdraw",
			Status: "success",
			Note:   "站长提现",
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Deposit 管理员手动充值，方便测试与线下打款补账
func (s *AccountService) Deposit(ctx context.Context, userID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, errors.New("充值金额需大于 0")
	}
	var acc account.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				acc = account.Account{UserID: userID}
				if err := tx.Create(&acc).Error; err != nil {
					return err
				}
			} else {
				return err
			}
		}
		acc.Balance += amount
		if err := tx.Save(&acc).Error; err != nil {
			return err
		}
		return tx.Create(&account.Transaction{
			UserID: userID,
			Amount: amount,
			Type:   "deposit",
			Status: "success",
			Note:   "手动充值",
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
