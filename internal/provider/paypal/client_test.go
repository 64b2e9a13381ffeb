package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
)

// newTestServer 模拟 PayPal 沙箱：OAuth + v2 Checkout 三个接口
func newTestServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var tokenRequests int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenRequests, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"test-token","expires_in":3600}`)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
				CustomID string `json:"custom_id"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "EUR", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "123.45", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "42", body.PurchaseUnits[0].CustomID)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{
			"id": "PP-ORDER-1",
			"status": "CREATED",
			"links": [
				{"href": "https://api.sandbox.paypal.test/v2/checkout/orders/PP-ORDER-1", "rel": "self"},
				{"href": "https://www.sandbox.paypal.test/checkoutnow?token=PP-ORDER-1", "rel": "approve"}
			]
		}`)
	})
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"PP-ORDER-1","status":"APPROVED"}`)
	})
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "PP-ORDER-1",
			"status": "COMPLETED",
			"purchase_units": [{"payments": {"captures": [{"id": "CAP-9", "status": "COMPLETED"}]}}]
		}`)
	})
	mux.HandleFunc("/v2/checkout/orders/PP-GONE/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenRequests
}

func newTestClient(srv *httptest.Server) *Client {
	return New(&config.PayPalConfig{
		BaseURL:        srv.URL,
		ClientID:       "client-id",
		Secret:         "client-secret",
		Currency:       "EUR",
		TimeoutSeconds: 5,
		ReturnURL:      "http://localhost:5173/advertiser/payment-success",
		CancelURL:      "http://localhost:5173/advertiser/payment-cancel",
	}, nil)
}

func TestCreateOrder(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	res, err := c.CreateOrder(context.Background(), 12345, "42")
	require.NoError(t, err)
	assert.Equal(t, "PP-ORDER-1", res.ID)
	assert.Equal(t, StatusCreated, res.Status)
	assert.Contains(t, res.ApproveURL, "checkoutnow")
}

func TestGetOrder(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	res, err := c.GetOrder(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
}

func TestCaptureOrder(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	res, err := c.CaptureOrder(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-9", res.CaptureID)
	assert.Equal(t, StatusCompleted, res.Status)
}

// 非 2xx 响应要带上操作名、状态码和原始响应体，方便排障
func TestCaptureOrder_ErrorCarriesBody(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	_, err := c.CaptureOrder(context.Background(), "PP-GONE")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "capture_order", perr.Op)
	assert.Equal(t, http.StatusUnprocessableEntity, perr.StatusCode)
	assert.Contains(t, perr.Body, "ORDER_NOT_APPROVED")
}

func TestAccessToken_BadCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(&config.PayPalConfig{
		BaseURL:        srv.URL,
		ClientID:       "client-id",
		Secret:         "wrong",
		Currency:       "EUR",
		TimeoutSeconds: 5,
	}, nil)

	_, err := c.GetOrder(context.Background(), "PP-ORDER-1")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "oauth", perr.Op)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}

// 无 Redis 缓存时每次请求都重新换 token
func TestAccessToken_NoCacheFetchesEachCall(t *testing.T) {
	srv, tokenRequests := newTestServer(t)
	c := newTestClient(srv)

	_, err := c.GetOrder(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	_, err = c.GetOrder(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(tokenRequests))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "123.45", formatAmount(12345))
	assert.Equal(t, "0.05", formatAmount(5))
	assert.Equal(t, "100.00", formatAmount(10000))
	assert.Equal(t, "0.00", formatAmount(0))
}
