package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smmshop-go/config"
	"smmshop-go/gateway"
	"smmshop-go/infrastructure/alert"
	"smmshop-go/infrastructure/logger"
	"smmshop-go/monitor"
	"smmshop-go/order"
	"smmshop-go/reconcile"
)

// poller 模拟用户从支付网关跳回后的状态确认：
// 对单个 merchantReference 跑一个完整轮询会话，打印最终结果。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	ref := flag.String("ref", "", "商户引用号（与 -returnURL 二选一）")
	tracking := flag.String("tracking", "", "网关跟踪号，仅用于日志")
	returnURL := flag.String("returnURL", "", "完整跳回 URL，从中提取引用号")
	token := flag.String("token", "", "bearer 凭证，覆盖配置中的 gateway.apiToken")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	merchantRef, trackingID := *ref, *tracking
	if *returnURL != "" {
		merchantRef, trackingID = reconcile.ParseReturnURL(*returnURL)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	apiToken := cfg.Gateway.APIToken
	if *token != "" {
		apiToken = *token
	}

	var limiter gateway.RateLimiter
	if cfg.Gateway.RateLimit > 0 {
		limiter = gateway.NewTokenBucketLimiter(cfg.Gateway.RateLimit, cfg.Gateway.RateBurst)
	}
	client := &gateway.StatusClient{
		BaseURL:    cfg.Gateway.BaseURL,
		Token:      func() string { return apiToken },
		HTTPClient: gateway.NewDefaultHTTPClient(time.Duration(cfg.Gateway.TimeoutMs) * time.Millisecond),
		Limiter:    limiter,
	}

	alertMgr := alert.NewManager([]alert.Channel{alert.NewLogChannel("ops", os.Stderr)}, time.Minute)
	mon := monitor.New(monitor.DefaultConfig())

	session := reconcile.NewSession(reconcile.Params{
		MerchantReference: merchantRef,
		TrackingID:        trackingID,
		Fetcher:           client,
		Config: reconcile.Config{
			StartupDelay:   time.Duration(cfg.Poll.StartupDelayMs) * time.Millisecond,
			Interval:       time.Duration(cfg.Poll.IntervalMs) * time.Millisecond,
			MaxAttempts:    cfg.Poll.MaxAttempts,
			AuthRetryDelay: time.Duration(cfg.Poll.AuthRetryDelayMs) * time.Millisecond,
		},
		Logger:   zlog,
		Recorder: mon,
		Notifier: reconcile.NewNotifier(alert.Client{Manager: alertMgr}),
		OnUpdate: func(display order.DisplayStatus, message string) {
			fmt.Printf("%s  %s\n", display, message)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := session.Run(ctx)
	fmt.Printf("final: %s  %s", out.Display, out.Message)
	if out.OrderID != "" {
		fmt.Printf("  orderId=%s", out.OrderID)
	}
	fmt.Printf("  queries=%d\n", out.Queries)

	if out.Display != order.DisplaySuccess {
		os.Exit(1)
	}
}
