package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"smmshop-go/order"
)

// 典型失败分类。重试策略属于上层（授权门/轮询会话），客户端自身绝不重试。
var (
	ErrUnauthorized = errors.New("gateway: unauthorized")
	ErrForbidden    = errors.New("gateway: forbidden")
	ErrNotFound     = errors.New("gateway: order not found")
)

// APIError 401/403/404 之外的非 2xx 应答，携带上游返回的原文消息。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: status %d", e.StatusCode)
}

// StatusResult /orders/status-by-ref 的应答体。
type StatusResult struct {
	Status        order.Status
	PaymentStatus string
	OrderID       string
}

// TokenSource 返回当前会话凭证。凭证由外部身份模块持有并刷新，
// 这里只在每次请求前读取最新值，从不修改。
type TokenSource func() string

// StatusClient 订单状态查询客户端；HTTPClient 可注入 httptest。
type StatusClient struct {
	BaseURL    string
	Token      TokenSource
	HTTPClient *http.Client
	Limiter    RateLimiter
}

// FetchStatus 对 merchantRef 执行且仅执行一次状态查询。
// 凭证可用时附加 Bearer 头，否则裸调（服务端以 401 应答）。
func (c *StatusClient) FetchStatus(ctx context.Context, merchantRef string) (StatusResult, error) {
	var out StatusResult
	if c == nil || c.HTTPClient == nil {
		return out, fmt.Errorf("http client not set")
	}
	if merchantRef == "" {
		return out, fmt.Errorf("merchant reference is empty")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}

	endpoint := c.BaseURL + "/orders/status-by-ref/" + url.PathEscape(merchantRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, err
	}
	if c.Token != nil {
		if tok := c.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return out, ErrUnauthorized
	case http.StatusForbidden:
		return out, ErrForbidden
	case http.StatusNotFound:
		return out, ErrNotFound
	default:
		return out, &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var raw struct {
		Status        string `json:"status"`
		PaymentStatus string `json:"paymentStatus"`
		OrderID       string `json:"orderId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, fmt.Errorf("decode status response: %w", err)
	}
	out.Status = order.ParseStatus(raw.Status)
	out.PaymentStatus = raw.PaymentStatus
	out.OrderID = raw.OrderID
	return out, nil
}

// readErrorMessage 兼容 {"message":...} 与 {"error":{"message":...}} 两种错误体。
func readErrorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var flat struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Message != "" {
		return flat.Message
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil {
		return nested.Error.Message
	}
	return ""
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
