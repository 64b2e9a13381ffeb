package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/account"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByProviderRef(ctx context.Context, ref string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("provider_order_ref = ?", ref).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) MarkProviderPending(ctx context.Context, id int64, providerRef string) error {
	return r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"provider_order_ref": providerRef,
			"status":             order.StatusProviderPending,
		}).Error
}

func (r *orderRepo) MarkApproved(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ?", id).
		Update("status", order.StatusProviderApproved).Error
}

func (r *orderRepo) MarkFailed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         order.StatusFailed,
			"payment_status": order.PaymentFailed,
		}).Error
}

// CaptureCommit 捕获提交（捕获号 + 完成状态 + 买家入账，单事务）。
// 订单行加 FOR UPDATE 锁后再校验 capture ref 是否为空：并发的重复提交
// 只有一个能通过校验，其余返回 order.ErrAlreadyCaptured，不会二次入账。
func (r *orderRepo) CaptureCommit(ctx context.Context, id int64, captureRef string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁定订单行
		var o order.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, id).Error; err != nil {
			return err
		}
		if o.ProviderCaptureRef != "" {
			return order.ErrAlreadyCaptured
		}

		// 2) 写入捕获号与完成状态
		o.ProviderCaptureRef = captureRef
		o.Status = order.StatusCaptured
		o.PaymentStatus = order.PaymentCompleted
		if err := tx.Save(&o).Error; err != nil {
			return err
		}

		// 3) 锁定/创建买家账户并入账
		var acc account.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", o.BuyerID).
			First(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				acc = account.Account{UserID: o.BuyerID}
				if err := tx.Create(&acc).Error; err != nil {
					return err
				}
			} else {
				return err
			}
		}
		acc.Balance += o.TotalAmount
		if err := tx.Save(&acc).Error; err != nil {
			return err
		}

		// 4) 写交易流水
		return tx.Create(&account.Transaction{
			UserID: o.BuyerID,
			Amount: o.TotalAmount,
			Type:   "sale_credit",
			Status: "success",
			Note:   fmt.Sprintf("订单 #%d 捕获入账 (capture %s)", o.ID, captureRef),
		}).Error
	})
}
