package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"smmshop-go/config"
	"smmshop-go/infrastructure/logger"
	"smmshop-go/monitor"
	"smmshop-go/server"
)

// statusd 是订单状态服务：对轮询端暴露 status-by-ref 查询，
// 对支付网关暴露 IPN 回调入口。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	addr := flag.String("addr", "", "监听地址，覆盖配置中的 server.addr")
	metricsAddr := flag.String("metricsAddr", "", "metrics 监听地址，覆盖配置中的 metrics.addr")
	seedDemo := flag.Bool("seedDemo", false, "启动时登记一笔演示订单并打印引用号")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	mon := monitor.New(monitor.DefaultConfig())
	store := server.NewStore(func(event string, fields map[string]interface{}) {
		zlog.LogPayment(event, fields)
	})
	if *seedDemo {
		o := store.CreateOrder("demo-followers", 100)
		log.Printf("demo order: merchantReference=%s trackingId=%s", o.MerchantReference, o.TrackingID)
	}

	handler := &server.Handler{
		Store:   store,
		Tokens:  cfg.Server.AuthTokens,
		Log:     zlog,
		Monitor: mon,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		zlog.Info("status server listening: " + cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Addr != "" {
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(mon),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			zlog.Info("metrics listening: " + cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		w := config.Watcher{Path: *cfgPath}
		// 鉴权白名单支持热更新：配置变更后新请求按新白名单校验
		err := w.Start(ctx, func(next config.AppConfig) {
			handler.SetTokens(next.Server.AuthTokens)
			zlog.Info("config reloaded")
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		zlog.Warn("sd_notify failed: " + err.Error())
	}

	if err := g.Wait(); err != nil {
		zlog.LogError(err, map[string]interface{}{"component": "statusd"})
		os.Exit(1)
	}
	zlog.Info("statusd exit")
}

func metricsMux(mon *monitor.Monitor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mon.Handler())
	return mux
}
