package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/coinboard/internal/markets"
	httpserver "github.com/wyfcoding/coinboard/internal/markets/interfaces/http"
	"github.com/wyfcoding/coinboard/pkg/config"
	"github.com/wyfcoding/coinboard/pkg/middleware"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/coinboard/config.toml", "config file path")

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, *configPath)
	stop()
	os.Exit(code)
}

// run 启动 Web 服务直到 ctx 结束，返回进程退出码
// 所有失败路径都经由 return 退出，保证 svc.Close 被执行
func run(ctx context.Context, path string) int {
	// 1. 配置
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		return 1
	}
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	// 2. 日志
	if err := markets.InitLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}

	// 3. 存储、缓存、消息与应用服务
	svc, err := markets.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to assemble service", "error", err)
		return 1
	}
	defer svc.Close()

	// 4. 接口层
	handler, err := httpserver.NewHandler(svc.Query, svc.Refresh, httpserver.ViewOptions{
		Title:    "Coinboard",
		Currency: cfg.Scraper.Currency,
		Location: cfg.HTTP.Location(),
	})
	if err != nil {
		slog.Error("failed to init http handler", "error", err)
		return 1
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinCORSMiddleware(cfg.HTTP.AllowOrigins))
	if svc.Metrics != nil {
		r.Use(middleware.GinMetricsMiddleware(svc.Metrics))
		r.GET(cfg.Metrics.Path, gin.WrapH(svc.Metrics.Handler()))
	}
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 5. 启动
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
		return 1
	}
	return 0
}
