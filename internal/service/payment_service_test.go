package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/order"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/provider/paypal"
)

// ---------------- 测试替身 ----------------

// fakeOrderRepo 内存版订单仓储，CaptureCommit 的条件检查语义与
// mysql 实现保持一致（capture ref 非空即拒绝）。
type fakeOrderRepo struct {
	mu     sync.Mutex
	seq    int64
	orders map[int64]*order.Order

	balances map[int64]int64 // buyerID -> 余额
	credits  map[int64]int   // buyerID -> 入账次数

	failCaptureCommit bool
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[int64]*order.Order),
		balances: make(map[int64]int64),
		credits:  make(map[int64]int),
	}
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	return &c
}

func (r *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	o.ID = r.seq
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetByProviderRef(_ context.Context, ref string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ProviderOrderRef == ref {
			return cloneOrder(o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) ListByBuyer(_ context.Context, buyerID int64) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		if o.BuyerID == buyerID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListRecent(_ context.Context, _ int) ([]*order.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) MarkProviderPending(_ context.Context, id int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.ProviderOrderRef = ref
	o.Status = order.StatusProviderPending
	return nil
}

func (r *fakeOrderRepo) MarkApproved(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = order.StatusProviderApproved
	return nil
}

func (r *fakeOrderRepo) MarkFailed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = order.StatusFailed
	o.PaymentStatus = order.PaymentFailed
	return nil
}

func (r *fakeOrderRepo) CaptureCommit(_ context.Context, id int64, captureRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if o.ProviderCaptureRef != "" {
		return order.ErrAlreadyCaptured
	}
	if r.failCaptureCommit {
		return fmt.Errorf("db down")
	}
	o.ProviderCaptureRef = captureRef
	o.Status = order.StatusCaptured
	o.PaymentStatus = order.PaymentCompleted
	r.balances[o.BuyerID] += o.TotalAmount
	r.credits[o.BuyerID]++
	return nil
}

// fakeWebsiteRepo 只实现支付服务用到的 GetByID
type fakeWebsiteRepo struct {
	websites map[int64]*website.Website
}

func (r *fakeWebsiteRepo) GetByID(_ context.Context, id int64) (*website.Website, error) {
	w, ok := r.websites[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *w
	return &c, nil
}

func (r *fakeWebsiteRepo) Search(_ context.Context, _ *website.SearchFilter) ([]*website.Website, error) {
	return nil, nil
}
func (r *fakeWebsiteRepo) ListByOwner(_ context.Context, _ int64, _ string) ([]*website.Website, error) {
	return nil, nil
}
func (r *fakeWebsiteRepo) ListByStatus(_ context.Context, _ string) ([]*website.Website, error) {
	return nil, nil
}
func (r *fakeWebsiteRepo) Create(_ context.Context, _ *website.Website) error { return nil }
func (r *fakeWebsiteRepo) Update(_ context.Context, _ *website.Website) error { return nil }
func (r *fakeWebsiteRepo) Delete(_ context.Context, _ int64) error            { return nil }

// fakeProvider 可控的服务商替身，统计每个接口的调用次数
type fakeProvider struct {
	mu           sync.Mutex
	status       string // GetOrder 返回的状态
	createCalls  int
	getCalls     int
	captureCalls int
	createErr    error
	captureErr   error
}

func (p *fakeProvider) CreateOrder(_ context.Context, _ int64, localOrderID string) (*paypal.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.createCalls++
	ref := fmt.Sprintf("PP-%s-%d", localOrderID, p.createCalls)
	return &paypal.OrderResult{
		ID:         ref,
		Status:     paypal.StatusCreated,
		ApproveURL: "https://paypal.test/approve/" + ref,
	}, nil
}

func (p *fakeProvider) GetOrder(_ context.Context, providerOrderID string) (*paypal.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++
	return &paypal.OrderResult{ID: providerOrderID, Status: p.status}, nil
}

func (p *fakeProvider) CaptureOrder(_ context.Context, _ string) (*paypal.CaptureResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	p.captureCalls++
	return &paypal.CaptureResult{
		CaptureID: fmt.Sprintf("CAP-%d", p.captureCalls),
		Status:    paypal.StatusCompleted,
	}, nil
}

// fakePublisher 记录发布的事件
type fakePublisher struct {
	mu     sync.Mutex
	events map[string][]interface{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(map[string][]interface{})}
}

func (p *fakePublisher) Publish(_ context.Context, queue string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[queue] = append(p.events[queue], body)
	return nil
}

func (p *fakePublisher) count(queue string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[queue])
}

// ---------------- 构造辅助 ----------------

func newTestService(provider *fakeProvider) (*PaymentService, *fakeOrderRepo, *fakePublisher) {
	orderRepo := newFakeOrderRepo()
	websiteRepo := &fakeWebsiteRepo{websites: map[int64]*website.Website{
		1: {ID: 1, OwnerID: 10, MediaName: "Tech Daily", Price: 10000, Commission: 1000, Status: website.StatusApproved},
		2: {ID: 2, OwnerID: 10, MediaName: "Finanza Oggi", Price: 20000, Commission: 2500, Discount: 10, Status: website.StatusApproved},
		3: {ID: 3, OwnerID: 11, MediaName: "Pending Mag", Price: 5000, Commission: 500, Status: website.StatusPending},
	}}
	pub := newFakePublisher()
	svc := NewPaymentService(orderRepo, websiteRepo, provider, pub)
	return svc, orderRepo, pub
}

// approvedOrder 建好一个已走到 provider_approved 的订单
func approvedOrder(t *testing.T, svc *PaymentService, provider *fakeProvider) *order.Order {
	t.Helper()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)

	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	require.NoError(t, err)

	provider.status = paypal.StatusApproved
	_, err = svc.VerifyProviderApproval(ctx, o.ID)
	require.NoError(t, err)

	o, err = svc.orderRepo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusProviderApproved, o.Status)
	return o
}

// ---------------- 用例 ----------------

func TestCreateOrder_TotalsFromListings(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, _ := newTestService(provider)
	ctx := context.Background()

	// 站点2 有 10% 折扣：20000 -> 18000
	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}, {WebsiteID: 2}})
	require.NoError(t, err)

	assert.Equal(t, int64(28000), o.TotalAmount)
	assert.Equal(t, int64(3500), o.CommissionTotal)
	assert.Equal(t, order.StatusCreated, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(10000), o.Items[0].Price)
	assert.Equal(t, int64(18000), o.Items[1].Price)
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, _ := newTestService(provider)
	ctx := context.Background()

	tests := []struct {
		name    string
		buyerID int64
		items   []CheckoutItem
	}{
		{"空购物车", 7, nil},
		{"站点不存在", 7, []CheckoutItem{{WebsiteID: 99}}},
		{"站点未审核", 7, []CheckoutItem{{WebsiteID: 3}}},
		{"缺少买家", 0, []CheckoutItem{{WebsiteID: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.buyerID, tt.items)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestInitiateProviderOrder(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)

	res, err := svc.InitiateProviderOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ProviderOrderRef)
	assert.Contains(t, res.ApproveURL, res.ProviderOrderRef)

	stored, err := orderRepo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProviderPending, stored.Status)
	assert.Equal(t, res.ProviderOrderRef, stored.ProviderOrderRef)
}

func TestInitiateProviderOrder_ProviderFailureIsRetryable(t *testing.T) {
	provider := &fakeProvider{createErr: &paypal.Error{Op: "create_order", StatusCode: 503, Body: `{"name":"SERVICE_UNAVAILABLE"}`}}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)

	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	require.Error(t, err)
	assert.True(t, IsProviderError(err))

	// 失败后订单保持 created，可以重试
	stored, err := orderRepo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCreated, stored.Status)

	provider.createErr = nil
	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	assert.NoError(t, err)
}

func TestVerifyProviderApproval(t *testing.T) {
	provider := &fakeProvider{status: paypal.StatusCreated}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)
	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	require.NoError(t, err)

	// 买家尚未批准：报 NotApproved 且不动本地状态
	_, err = svc.VerifyProviderApproval(ctx, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotApproved)
	stored, _ := orderRepo.GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusProviderPending, stored.Status)

	// 批准后推进到 provider_approved，重复调用无副作用
	provider.status = paypal.StatusApproved
	res, err := svc.VerifyProviderApproval(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProviderApproved, res.LocalStatus)

	res, err = svc.VerifyProviderApproval(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProviderApproved, res.LocalStatus)
}

// 服务商已完成但本地未捕获：属于状态分歧，不能当成"已批准"返回成功，
// 要报 NotApproved 并把订单交给对账队列
func TestVerifyProviderApproval_CompletedWithoutLocalCapture(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, pub := newTestService(provider)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)
	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	require.NoError(t, err)

	provider.status = paypal.StatusCompleted
	_, err = svc.VerifyProviderApproval(ctx, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotApproved)
	assert.Equal(t, 1, pub.count("payment_review_queue"))

	// 本地状态不动，留给对账处理
	stored, _ := orderRepo.GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusProviderPending, stored.Status)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
}

// 已在本地完成捕获的订单，服务商报 COMPLETED 属于正常一致状态
func TestVerifyProviderApproval_CompletedAfterLocalCapture(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, pub := newTestService(provider)
	ctx := context.Background()

	o := approvedOrder(t, svc, provider)
	_, err := svc.CaptureOrder(ctx, o.ID)
	require.NoError(t, err)

	provider.status = paypal.StatusCompleted
	res, err := svc.VerifyProviderApproval(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCaptured, res.LocalStatus)
	assert.Equal(t, paypal.StatusCompleted, res.ProviderStatus)
	assert.Equal(t, 0, pub.count("payment_review_queue"))
}

func TestVerifyProviderApproval_VoidedIsTerminal(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)
	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	require.NoError(t, err)

	// 服务商明确作废：唯一允许自动进入失败终态的路径
	provider.status = paypal.StatusVoided
	_, err = svc.VerifyProviderApproval(ctx, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotApproved)

	stored, _ := orderRepo.GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusFailed, stored.Status)
	assert.Equal(t, order.PaymentFailed, stored.PaymentStatus)
}

// 规格场景：下单 -> 发起 -> 批准 -> 捕获 -> 重复捕获幂等
func TestCaptureOrder_HappyPathAndIdempotency(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, pub := newTestService(provider)
	ctx := context.Background()

	o := approvedOrder(t, svc, provider)

	res, err := svc.CaptureOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCaptured)
	assert.Equal(t, "CAP-1", res.CaptureRef)
	assert.Equal(t, order.PaymentCompleted, res.PaymentStatus)
	assert.Equal(t, int64(10000), res.AmountCredited)

	stored, _ := orderRepo.GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusCaptured, stored.Status)
	assert.Equal(t, int64(10000), orderRepo.balances[7])
	assert.Equal(t, 1, orderRepo.credits[7])
	assert.Equal(t, 1, pub.count("payment_events"))

	// 重复捕获：同一个 capture ref，不再调服务商、不再入账
	res2, err := svc.CaptureOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, res2.AlreadyCaptured)
	assert.Equal(t, res.CaptureRef, res2.CaptureRef)
	assert.Equal(t, 1, provider.captureCalls)
	assert.Equal(t, 1, orderRepo.credits[7])
	assert.Equal(t, int64(10000), orderRepo.balances[7])
}

func TestCaptureOrder_RequiresApproval(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, 7, []CheckoutItem{{WebsiteID: 1}})
	require.NoError(t, err)
	_, err = svc.InitiateProviderOrder(ctx, o.ID)
	require.NoError(t, err)

	// 未经 verify 直接捕获
	_, err = svc.CaptureOrder(ctx, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotApproved)
	assert.Equal(t, 0, provider.captureCalls)
	assert.Equal(t, int64(0), orderRepo.balances[7])
}

func TestCaptureOrder_NotFound(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, _ := newTestService(provider)

	_, err := svc.CaptureOrder(context.Background(), 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// 规格场景：捕获超时 -> 订单停在 provider_approved，余额不变，
// 随后 checkStatus 反映服务商侧真实状态
func TestCaptureOrder_TimeoutKeepsOrderRetryable(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o := approvedOrder(t, svc, provider)

	provider.captureErr = &paypal.Error{Op: "capture_order", Err: context.DeadlineExceeded}
	_, err := svc.CaptureOrder(ctx, o.ID)
	require.Error(t, err)
	assert.True(t, IsProviderError(err))

	stored, _ := orderRepo.GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusProviderApproved, stored.Status)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
	assert.Equal(t, int64(0), orderRepo.balances[7])

	// 对账查询不改状态，反映服务商真实结果
	provider.status = paypal.StatusApproved
	res, err := svc.CheckStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProviderApproved, res.LocalStatus)
	assert.Equal(t, paypal.StatusApproved, res.ProviderStatus)

	// 超时恢复后重试成功
	provider.captureErr = nil
	res2, err := svc.CaptureOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, res2.AlreadyCaptured)
	assert.Equal(t, int64(10000), orderRepo.balances[7])
}

// 并发重复捕获：恰好一次服务商捕获、恰好一次入账
func TestCaptureOrder_ConcurrentDuplicates(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o := approvedOrder(t, svc, provider)

	const n = 16
	var wg sync.WaitGroup
	results := make([]*CaptureOutcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CaptureOrder(ctx, o.ID)
		}(i)
	}
	wg.Wait()

	duplicates := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "CAP-1", results[i].CaptureRef)
		if results[i].AlreadyCaptured {
			duplicates++
		}
	}
	assert.Equal(t, n-1, duplicates)
	assert.Equal(t, 1, provider.captureCalls)
	assert.Equal(t, 1, orderRepo.credits[7])
	assert.Equal(t, int64(10000), orderRepo.balances[7])
}

// 服务商已扣款但本地提交失败：不入账、进对账队列
func TestCaptureOrder_CommitFailureGoesToReview(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, pub := newTestService(provider)
	ctx := context.Background()

	o := approvedOrder(t, svc, provider)

	orderRepo.failCaptureCommit = true
	_, err := svc.CaptureOrder(ctx, o.ID)
	require.Error(t, err)

	assert.Equal(t, int64(0), orderRepo.balances[7])
	assert.Equal(t, 1, pub.count("payment_review_queue"))

	stored, _ := orderRepo.GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusProviderApproved, stored.Status)
}

func TestCaptureByProviderRef(t *testing.T) {
	provider := &fakeProvider{}
	svc, orderRepo, _ := newTestService(provider)
	ctx := context.Background()

	o := approvedOrder(t, svc, provider)
	stored, _ := orderRepo.GetByID(ctx, o.ID)

	provider.status = paypal.StatusApproved
	res, err := svc.CaptureByProviderRef(ctx, stored.ProviderOrderRef)
	require.NoError(t, err)
	assert.Equal(t, o.ID, res.OrderID)
	assert.Equal(t, 1, orderRepo.credits[7])
}

// 孤儿服务商订单：无本地记录时发布对账消息并报 404
func TestCaptureByProviderRef_Orphan(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, pub := newTestService(provider)

	_, err := svc.CaptureByProviderRef(context.Background(), "PP-UNKNOWN")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	require.Equal(t, 1, pub.count("payment_review_queue"))

	ev, ok := pub.events["payment_review_queue"][0].(*ReviewEvent)
	require.True(t, ok)
	assert.Equal(t, "PP-UNKNOWN", ev.ProviderOrderRef)
}
