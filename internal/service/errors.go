package service

import (
	"errors"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/provider/paypal"
)

// 支付流程错误分类。
// 服务商侧失败统一是 *paypal.Error（可重试，绝不自动把订单置为失败终态），
// 其余为本地可判定的错误。
var (
	// ErrInvalidInput 请求参数不合法（空订单项、金额非正等）
	ErrInvalidInput = errors.New("invalid input")
	// ErrOrderNotFound 本地订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotApproved 买家尚未在服务商侧批准，捕获前置条件不满足
	ErrOrderNotApproved = errors.New("order not approved")
)

// IsProviderError 判断是否为服务商调用失败
func IsProviderError(err error) bool {
	var pe *paypal.Error
	return errors.As(err, &pe)
}
