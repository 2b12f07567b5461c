package reconcile

import (
	"context"
	"errors"
	"time"

	"smmshop-go/gateway"
)

// StatusFetcher 发起一次订单状态查询；由 gateway.StatusClient 实现。
type StatusFetcher interface {
	FetchStatus(ctx context.Context, merchantRef string) (gateway.StatusResult, error)
}

// AuthGate 包装状态查询的授权语义。用户从支付网关跳回页面时，
// 会话凭证的挂载/刷新可能尚未完成，首个 401 因此不可直接判死：
// 等待固定短延迟后重试恰好一次；重试仍是 401 才视为真正的未认证。
// 每个轮询会话最多消耗一次重试机会，之后的 401 原样向上返回。
type AuthGate struct {
	Fetcher    StatusFetcher
	RetryDelay time.Duration
	Clock      Clock

	retryUsed bool
}

// Fetch 执行一次受授权门保护的查询。除 401 重试外，
// 任何其他失败原样透传，不在此层做重试。
func (g *AuthGate) Fetch(ctx context.Context, merchantRef string) (gateway.StatusResult, error) {
	res, err := g.Fetcher.FetchStatus(ctx, merchantRef)
	if err == nil || !errors.Is(err, gateway.ErrUnauthorized) {
		return res, err
	}
	if g.retryUsed {
		return res, err
	}
	g.retryUsed = true

	clock := g.Clock
	if clock == nil {
		clock = SystemClock
	}
	delay := g.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case <-clock.After(delay):
	}
	return g.Fetcher.FetchStatus(ctx, merchantRef)
}

// RetryUsed 返回本会话是否已消耗 401 重试机会。
func (g *AuthGate) RetryUsed() bool {
	return g.retryUsed
}
