package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
)

// PayPal 订单状态（v2 Checkout API）
const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
	StatusVoided    = "VOIDED"
)

const tokenCacheKey = "paypal:access_token"

// Error 服务商调用失败。携带原始响应体用于排障；
// 网络错误与超时同样落在这里，结果不确定，调用方不应据此判定订单失败。
type Error struct {
	Op         string // create_order / get_order / capture_order / oauth
	StatusCode int    // 0 表示请求未得到响应（网络错误/超时）
	Body       string // 服务商原始错误响应
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paypal %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("paypal %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// OrderResult 服务商订单的当前快照
type OrderResult struct {
	ID         string
	Status     string
	ApproveURL string // 仅创建订单时返回
}

// CaptureResult 捕获结果
type CaptureResult struct {
	CaptureID string
	Status    string
}

// Client PayPal v2 Checkout 客户端。
// 显式构造后注入到支付服务，凭证不放在包级全局；所有请求受超时约束。
type Client struct {
	cfg   *config.PayPalConfig
	http  *http.Client
	redis radix.Client // 可为 nil，此时每次调用都重新换取 access token
}

// New 创建客户端，redisClient 用于缓存 OAuth access token
func New(cfg *config.PayPalConfig, redisClient radix.Client) *Client {
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout()},
		redis: redisClient,
	}
}

// CreateOrder 创建托管收银台订单，金额由调用方给定（单位分），
// localOrderID 写入 custom_id 以便对账。返回买家批准链接。
func (c *Client) CreateOrder(ctx context.Context, amountCents int64, localOrderID string) (*OrderResult, error) {
	reqBody := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": c.cfg.Currency,
					"value":         formatAmount(amountCents),
				},
				"custom_id": localOrderID,
			},
		},
		"application_context": map[string]string{
			"return_url": c.cfg.ReturnURL + "/" + localOrderID,
			"cancel_url": c.cfg.CancelURL + "/" + localOrderID,
		},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.doJSON(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", reqBody, &resp); err != nil {
		return nil, err
	}

	result := &OrderResult{ID: resp.ID, Status: resp.Status}
	for _, l := range resp.Links {
		if l.Rel == "approve" {
			result.ApproveURL = l.Href
			break
		}
	}
	if result.ID == "" || result.ApproveURL == "" {
		return nil, &Error{Op: "create_order", Err: fmt.Errorf("malformed response: missing id or approve link")}
	}
	return result, nil
}

// GetOrder 查询服务商订单状态，纯读操作
func (c *Client) GetOrder(ctx context.Context, providerOrderID string) (*OrderResult, error) {
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := "/v2/checkout/orders/" + providerOrderID
	if err := c.doJSON(ctx, "get_order", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &Error{Op: "get_order", Err: fmt.Errorf("malformed response: missing id")}
	}
	return &OrderResult{ID: resp.ID, Status: resp.Status}, nil
}

// CaptureOrder 对已批准的服务商订单执行捕获（实际扣款）
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (*CaptureResult, error) {
	var resp struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + providerOrderID + "/capture"
	if err := c.doJSON(ctx, "capture_order", http.MethodPost, path, map[string]string{}, &resp); err != nil {
		return nil, err
	}
	if len(resp.PurchaseUnits) == 0 || len(resp.PurchaseUnits[0].Payments.Captures) == 0 {
		return nil, &Error{Op: "capture_order", Err: fmt.Errorf("malformed response: missing captures")}
	}
	captured := resp.PurchaseUnits[0].Payments.Captures[0]
	return &CaptureResult{CaptureID: captured.ID, Status: resp.Status}, nil
}

// accessToken 获取 OAuth token，优先命中 Redis 缓存
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.redis != nil {
		var cached string
		if err := c.redis.Do(radix.Cmd(&cached, "GET", tokenCacheKey)); err == nil && cached != "" {
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", &Error{Op: "oauth", Err: err}
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Op: "oauth", Err: err}
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return "", &Error{Op: "oauth", StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return "", &Error{Op: "oauth", Err: fmt.Errorf("malformed token response")}
	}

	if c.redis != nil && tokenResp.ExpiresIn > 120 {
		// 提前一分钟过期，避免用到临界 token
		_ = c.redis.Do(radix.FlatCmd(nil, "SETEX", tokenCacheKey, tokenResp.ExpiresIn-60, tokenResp.AccessToken))
	}
	return tokenResp.AccessToken, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, reqBody, respBody interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	httpResp, err := c.http.Do(req)
	if err != nil {
		// 网络错误或超时：结果不确定，由调用方通过 GetOrder 对账
		return &Error{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return &Error{Op: op, StatusCode: httpResp.StatusCode, Body: string(body)}
	}
	if respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			return &Error{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
		}
	}
	return nil
}

// formatAmount 分转服务商要求的字符串金额，如 12345 -> "123.45"
func formatAmount(cents int64) string {
	return strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
}
