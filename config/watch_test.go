package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	base := `
env: dev
gateway:
  baseURL: https://api.test
`
	if err := os.WriteFile(path, []byte(base), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	updates := make(chan AppConfig, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w := Watcher{Path: path, Cooldown: 10 * time.Millisecond}
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case updates <- cfg:
			default:
			}
		})
	}()

	// 等 watcher 就绪后改写文件
	time.Sleep(100 * time.Millisecond)
	changed := `
env: staging
gateway:
  baseURL: https://api.test
`
	if err := os.WriteFile(path, []byte(changed), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Env != "staging" {
			t.Fatalf("env = %s, want staging", cfg.Env)
		}
	case <-ctx.Done():
		t.Fatal("no reload callback before timeout")
	}
}

func TestWatcherIgnoresBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	base := `
env: dev
gateway:
  baseURL: https://api.test
`
	if err := os.WriteFile(path, []byte(base), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	updates := make(chan AppConfig, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w := Watcher{Path: path, Cooldown: 10 * time.Millisecond}
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case updates <- cfg:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	// 校验失败的内容不应该触发回调
	if err := os.WriteFile(path, []byte("env: \n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		t.Fatalf("unexpected reload with cfg %+v", cfg)
	case <-ctx.Done():
	}
}
