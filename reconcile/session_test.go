package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"smmshop-go/gateway"
	"smmshop-go/order"
)

func newTestSession(f StatusFetcher, ref string, opts ...func(*Params)) *Session {
	p := Params{
		MerchantReference: ref,
		Fetcher:           f,
		Clock:             instantClock{},
		Config: Config{
			StartupDelay:   time.Millisecond,
			Interval:       time.Millisecond,
			MaxAttempts:    5,
			AuthRetryDelay: time.Millisecond,
		},
	}
	for _, o := range opts {
		o(&p)
	}
	return NewSession(p)
}

// 场景A：两次等待后完成，恰好三次查询
func TestSessionPendingThenCompleted(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respond(order.StatusPendingPayment),
		respond(order.StatusPendingPayment),
		respond(order.StatusCompleted),
	}}
	s := newTestSession(f, "ABC123")

	out := s.Run(context.Background())
	if out.Display != order.DisplaySuccess {
		t.Fatalf("display = %s, want success", out.Display)
	}
	if f.Calls() != 3 || out.Queries != 3 {
		t.Fatalf("queries = %d/%d, want 3", f.Calls(), out.Queries)
	}
	if out.OrderID != "oid-1" {
		t.Fatalf("orderID = %s", out.OrderID)
	}

	// 终态后不允许再有任何查询（计时器已取消）
	time.Sleep(20 * time.Millisecond)
	if f.Calls() != 3 {
		t.Fatalf("queries after done = %d, want 3", f.Calls())
	}
	if s.State() != StateDone {
		t.Fatalf("state = %s, want DONE", s.State())
	}
}

// 场景B：预算耗尽，恰好 maxAttempts 次查询后收敛为 pending
func TestSessionBudgetExhausted(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respond(order.StatusPendingPayment),
		respond(order.StatusPendingPayment),
		respond(order.StatusPendingPayment),
		respond(order.StatusPendingPayment),
		respond(order.StatusPendingPayment),
	}}
	s := newTestSession(f, "XYZ999")

	out := s.Run(context.Background())
	if out.Display != order.DisplayPending {
		t.Fatalf("display = %s, want pending", out.Display)
	}
	if f.Calls() != 5 {
		t.Fatalf("queries = %d, want exactly 5", f.Calls())
	}

	time.Sleep(20 * time.Millisecond)
	if f.Calls() != 5 {
		t.Fatalf("no 6th query allowed, got %d", f.Calls())
	}
}

// 场景C：首查即失败终态
func TestSessionImmediateFailure(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respond(order.StatusPaymentFailed),
	}}
	s := newTestSession(f, "Q1")

	out := s.Run(context.Background())
	if out.Display != order.DisplayFailed {
		t.Fatalf("display = %s, want failed", out.Display)
	}
	if f.Calls() != 1 {
		t.Fatalf("queries = %d, want 1", f.Calls())
	}
}

// 场景D：缺少商户引用号，零次网络调用直接失败
func TestSessionMissingReference(t *testing.T) {
	f := &scriptedFetcher{}
	s := newTestSession(f, "")

	out := s.Run(context.Background())
	if out.Display != order.DisplayFailed {
		t.Fatalf("display = %s, want failed", out.Display)
	}
	if f.Calls() != 0 {
		t.Fatalf("queries = %d, want 0", f.Calls())
	}
}

// 场景E：连续两个 401，恰好两次网络调用后收敛为 auth_required
func TestSessionAuthRequired(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respondErr(gateway.ErrUnauthorized),
		respondErr(gateway.ErrUnauthorized),
	}}
	s := newTestSession(f, "R7")

	out := s.Run(context.Background())
	if out.Display != order.DisplayAuthRequired {
		t.Fatalf("display = %s, want auth_required", out.Display)
	}
	if f.Calls() != 2 {
		t.Fatalf("network calls = %d, want exactly 2 (one retry)", f.Calls())
	}
}

// 401 后凭证就绪，重试成功
func TestSessionAuthRetryRecovers(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respondErr(gateway.ErrUnauthorized),
		respond(order.StatusProcessing),
	}}
	s := newTestSession(f, "R8")

	out := s.Run(context.Background())
	if out.Display != order.DisplaySuccess {
		t.Fatalf("display = %s, want success", out.Display)
	}
	if f.Calls() != 2 {
		t.Fatalf("network calls = %d, want 2", f.Calls())
	}
}

// 403 不重试，直接 unknown 终态
func TestSessionForbidden(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respondErr(gateway.ErrForbidden),
	}}
	s := newTestSession(f, "F1")

	out := s.Run(context.Background())
	if out.Display != order.DisplayUnknown {
		t.Fatalf("display = %s, want unknown", out.Display)
	}
	if f.Calls() != 1 {
		t.Fatalf("queries = %d, want 1 (fail fast)", f.Calls())
	}
}

// 网络/服务端错误不自动重试，上游消息原样透出
func TestSessionServerErrorFailFast(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respondErr(&gateway.APIError{StatusCode: 503, Message: "upstream maintenance"}),
	}}
	s := newTestSession(f, "S1")

	out := s.Run(context.Background())
	if out.Display != order.DisplayUnknown {
		t.Fatalf("display = %s, want unknown", out.Display)
	}
	if out.Message != "upstream maintenance" {
		t.Fatalf("message = %q, want upstream message verbatim", out.Message)
	}
	if f.Calls() != 1 {
		t.Fatalf("queries = %d, want 1", f.Calls())
	}
}

// 展示状态不变时不重复触发回调
func TestSessionUpdateDeduplication(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respond(order.StatusPendingPayment),
		respond(order.StatusPendingPayment),
		respond(order.StatusCompleted),
	}}

	var mu sync.Mutex
	var updates []order.DisplayStatus
	s := newTestSession(f, "D1", func(p *Params) {
		p.OnUpdate = func(d order.DisplayStatus, msg string) {
			mu.Lock()
			updates = append(updates, d)
			mu.Unlock()
		}
	})

	s.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	want := []order.DisplayStatus{order.DisplayLoading, order.DisplaySuccess}
	if len(updates) != len(want) {
		t.Fatalf("updates = %v, want %v", updates, want)
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Fatalf("updates = %v, want %v", updates, want)
		}
	}
}

// 取消同步停止会话，幂等
func TestSessionCancel(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respond(order.StatusPendingPayment),
	}}
	s := NewSession(Params{
		MerchantReference: "C1",
		Fetcher:           f,
		Config: Config{
			StartupDelay: time.Millisecond,
			Interval:     time.Hour, // 首查后长等待，留出取消窗口
			MaxAttempts:  5,
		},
	})

	s.Start(context.Background())
	// 等首查完成进入 Waiting
	deadline := time.Now().Add(2 * time.Second)
	for f.Calls() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.Calls() != 1 {
		t.Fatalf("first query not issued")
	}

	s.Cancel()
	s.Cancel() // 取消两次是安全的

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
	if f.Calls() != 1 {
		t.Fatalf("queries after cancel = %d, want 1", f.Calls())
	}
	out, ok := s.Outcome()
	if !ok || out.Display != order.DisplayUnknown {
		t.Fatalf("outcome = %+v ok=%v", out, ok)
	}
}

// 会话一次性：重复 Start 无效果
func TestSessionStartIsOneShot(t *testing.T) {
	f := &scriptedFetcher{script: []func() (gateway.StatusResult, error){
		respond(order.StatusCompleted),
	}}
	s := newTestSession(f, "O1")

	out := s.Run(context.Background())
	if out.Display != order.DisplaySuccess {
		t.Fatalf("display = %s", out.Display)
	}

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	if f.Calls() != 1 {
		t.Fatalf("restart must not issue new queries, got %d", f.Calls())
	}
}

// Outcome 在终态前不可用
func TestSessionOutcomeBeforeDone(t *testing.T) {
	f := &scriptedFetcher{}
	s := NewSession(Params{MerchantReference: "P1", Fetcher: f})
	if _, ok := s.Outcome(); ok {
		t.Fatal("outcome should not be available before done")
	}
}
