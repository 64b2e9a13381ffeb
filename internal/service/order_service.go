package service

import (
	"context"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/order"
)

// OrderService 用于订单查询场景（买家订单列表、后台最新订单）
type OrderService struct {
	repo order.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// ListByBuyer 查询买家的订单
func (s *OrderService) ListByBuyer(ctx context.Context, buyerID int64) ([]*order.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

// ListRecent 查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}
