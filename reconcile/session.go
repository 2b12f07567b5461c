package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"smmshop-go/gateway"
	"smmshop-go/infrastructure/logger"
	"smmshop-go/order"
)

// Config 一次轮询会话的参数。
type Config struct {
	StartupDelay   time.Duration // 首查前的固定延迟，给网关 IPN 回调留出先机
	Interval       time.Duration // 轮询间隔
	MaxAttempts    int           // 轮询次数预算
	AuthRetryDelay time.Duration // 首个 401 重试前的等待
}

// DefaultConfig 返回默认参数。
func DefaultConfig() Config {
	return Config{
		StartupDelay:   1500 * time.Millisecond,
		Interval:       4500 * time.Millisecond,
		MaxAttempts:    5,
		AuthRetryDelay: 2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StartupDelay <= 0 {
		c.StartupDelay = d.StartupDelay
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.AuthRetryDelay <= 0 {
		c.AuthRetryDelay = d.AuthRetryDelay
	}
	return c
}

// Outcome 会话的唯一最终结果。会话把一切失败就地消化，
// 从不向调用方抛错：无论发生什么都收敛为一个展示状态加一条消息。
type Outcome struct {
	Display order.DisplayStatus
	Message string
	Queries int    // 实际发出的轮询查询次数（不含授权门内部重试）
	OrderID string // 上游订单号，仅成功路径可用
}

// Recorder 上报轮询指标；monitor.Monitor 实现。
type Recorder interface {
	RecordSessionStart()
	RecordSessionDone(display string)
	RecordPollAttempt()
	RecordAuthRetry()
	RecordQueryError(kind string)
	ObserveQueryLatency(seconds float64)
}

// UpdateFunc 展示状态变化回调。仅在展示状态与上次不同时调用，
// 避免同一结果重复触发用户侧提示。
type UpdateFunc func(display order.DisplayStatus, message string)

// Params 构造会话所需的依赖；MerchantReference 与 Fetcher 之外均可为空。
type Params struct {
	MerchantReference string
	TrackingID        string // 仅用于日志诊断，正确性不依赖它
	Fetcher           StatusFetcher
	Config            Config
	Clock             Clock
	Logger            *logger.Logger
	Recorder          Recorder
	Notifier          *Notifier
	OnUpdate          UpdateFunc
}

// Session 把授权门、归类器与轮询调度绑定到一个 merchantReference 上。
// 会话是一次性的：进入 DONE 后不可复用，用户重新回到页面必须新建会话。
type Session struct {
	ref        string
	trackingID string
	gate       *AuthGate
	cfg        Config
	clock      Clock
	log        *logger.Logger
	rec        Recorder
	notifier   *Notifier
	onUpdate   UpdateFunc

	mu           sync.Mutex
	state        State
	attemptsUsed int // 已消耗的轮询预算（仅非终态结果累计）
	queries      int // 已发出的查询次数
	lastDisplay  order.DisplayStatus
	outcome      Outcome
	hasOutcome   bool
	started      bool

	cancelOnce sync.Once
	cancelChan chan struct{}
	doneChan   chan struct{}
}

// NewSession 创建轮询会话。
func NewSession(p Params) *Session {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock
	}
	cfg := p.Config.withDefaults()
	return &Session{
		ref:        p.MerchantReference,
		trackingID: p.TrackingID,
		gate: &AuthGate{
			Fetcher:    p.Fetcher,
			RetryDelay: cfg.AuthRetryDelay,
			Clock:      clock,
		},
		cfg:        cfg,
		clock:      clock,
		log:        p.Logger,
		rec:        p.Recorder,
		notifier:   p.Notifier,
		onUpdate:   p.OnUpdate,
		state:      StateIdle,
		cancelChan: make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start 启动会话；重复调用无效果。
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.rec != nil {
		s.rec.RecordSessionStart()
	}
	go s.run(ctx)
}

// Cancel 取消所有未触发的计时器（启动延迟、轮询间隔、401 重试等待）。
// 可重复调用，取消两次是安全的。
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelChan) })
}

// Done 在会话进入终态后关闭。
func (s *Session) Done() <-chan struct{} {
	return s.doneChan
}

// Outcome 返回终态结果；会话尚未结束时第二个返回值为 false。
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.hasOutcome
}

// State 返回当前状态机状态。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run 同步执行到终态，是 Start + 等待 Done 的便捷包装。
func (s *Session) Run(ctx context.Context) Outcome {
	s.Start(ctx)
	select {
	case <-s.doneChan:
	case <-ctx.Done():
		s.Cancel()
		<-s.doneChan
	}
	out, _ := s.Outcome()
	return out
}

// run 是会话的唯一工作协程。查询由计时器链严格串联，
// 任意时刻至多一个在途请求，归类结果因此天然按发出顺序应用。
func (s *Session) run(ctx context.Context) {
	defer close(s.doneChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.cancelChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.ref == "" {
		// 前置条件失败：零次网络调用，直接终态
		s.finish(order.DisplayFailed, "missing merchant reference", "")
		return
	}

	s.logEvent("session_start", map[string]interface{}{
		"tracking_id":  s.trackingID,
		"max_attempts": s.cfg.MaxAttempts,
		"interval_ms":  s.cfg.Interval.Milliseconds(),
	})

	if !s.sleep(ctx, s.cfg.StartupDelay) {
		s.finish(order.DisplayUnknown, "session cancelled", "")
		return
	}

	for {
		if !s.transition(StateQuerying) {
			return
		}

		start := s.clock.Now()
		retriedBefore := s.gate.RetryUsed()
		res, err := s.gate.Fetch(ctx, s.ref)

		s.mu.Lock()
		s.queries++
		attemptsUsed := s.attemptsUsed
		s.mu.Unlock()

		if s.rec != nil {
			s.rec.RecordPollAttempt()
			s.rec.ObserveQueryLatency(s.clock.Now().Sub(start).Seconds())
			if !retriedBefore && s.gate.RetryUsed() {
				s.rec.RecordAuthRetry()
			}
		}

		if err != nil {
			s.finishOnError(ctx, err)
			return
		}

		cls := order.Classify(res.Status, res.PaymentStatus, attemptsUsed, s.cfg.MaxAttempts)
		s.logEvent("status_classified", map[string]interface{}{
			"status":   string(res.Status),
			"display":  string(cls.Display),
			"terminal": cls.Terminal,
			"attempt":  attemptsUsed + 1,
		})

		if cls.Terminal {
			s.finish(cls.Display, cls.Message, res.OrderID)
			return
		}

		s.applyUpdate(cls.Display, cls.Message)
		if !s.transition(StateWaiting) {
			return
		}
		s.mu.Lock()
		s.attemptsUsed++
		s.mu.Unlock()

		if !s.sleep(ctx, s.cfg.Interval) {
			s.finish(order.DisplayUnknown, "session cancelled", "")
			return
		}
	}
}

// finishOnError 把查询失败折算为终态展示状态。
func (s *Session) finishOnError(ctx context.Context, err error) {
	var kind string
	var display order.DisplayStatus
	var msg string

	switch {
	case ctx.Err() != nil:
		kind, display, msg = "cancelled", order.DisplayUnknown, "session cancelled"
	case errors.Is(err, gateway.ErrUnauthorized):
		// 授权门已经消耗过一次重试，这里的 401 是真正的未认证
		kind, display, msg = "unauthorized", order.DisplayAuthRequired, "please log in to view your order"
	case errors.Is(err, gateway.ErrForbidden):
		kind, display, msg = "forbidden", order.DisplayUnknown, "you do not have access to this order"
	case errors.Is(err, gateway.ErrNotFound):
		kind, display, msg = "not_found", order.DisplayUnknown, "order not found, please check your dashboard"
	default:
		kind, display, msg = "network_or_server", order.DisplayUnknown, "could not verify payment status"
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
	}

	if s.rec != nil {
		s.rec.RecordQueryError(kind)
	}
	if s.log != nil {
		s.log.LogError(err, map[string]interface{}{
			"merchant_reference": s.ref,
			"kind":               kind,
		})
	}
	s.finish(display, msg, "")
}

// finish 进入终态。结果只应用一次：会话已经 DONE 时静默丢弃，
// 保证迟到的归类不会覆盖既定结果。
func (s *Session) finish(display order.DisplayStatus, message, orderID string) {
	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return
	}
	s.state = StateDone
	s.outcome = Outcome{
		Display: display,
		Message: message,
		Queries: s.queries,
		OrderID: orderID,
	}
	s.hasOutcome = true
	changed := display != s.lastDisplay
	s.lastDisplay = display
	s.mu.Unlock()

	// 终态必须同步取消所有计时器，幂等
	s.Cancel()

	if changed && s.onUpdate != nil {
		s.onUpdate(display, message)
	}
	if s.rec != nil {
		s.rec.RecordSessionDone(string(display))
	}
	s.logEvent("session_done", map[string]interface{}{
		"display": string(display),
		"queries": s.outcome.Queries,
	})
	if s.notifier != nil &&
		(display == order.DisplayFailed || display == order.DisplayUnknown) {
		s.notifier.NotifyPaymentUnresolved(s.ref, display, message)
	}
}

// applyUpdate 推送非终态展示状态；与上次相同则不重复触发。
func (s *Session) applyUpdate(display order.DisplayStatus, message string) {
	s.mu.Lock()
	if s.state == StateDone || display == s.lastDisplay {
		s.mu.Unlock()
		return
	}
	s.lastDisplay = display
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(display, message)
	}
}

// transition 执行一次状态迁移；会话已 DONE 时返回 false 终止流程。
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDone {
		return false
	}
	if err := ValidateTransition(s.state, to); err != nil {
		// 状态机被破坏属于编程错误，记下并终止会话
		if s.log != nil {
			s.log.Error("session transition rejected: " + err.Error())
		}
		return false
	}
	s.state = to
	return true
}

// sleep 等待 d；被取消时返回 false。
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

func (s *Session) logEvent(event string, fields map[string]interface{}) {
	if s.log == nil {
		return
	}
	s.log.LogSession(event, s.ref, fields)
}
