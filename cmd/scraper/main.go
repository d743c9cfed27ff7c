// scraper 执行一次刷新后退出，供 cron 等外部调度器使用
// 退出码：succeeded 为 0，其余为 1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wyfcoding/coinboard/internal/markets"
	"github.com/wyfcoding/coinboard/internal/markets/application"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/config"
)

var configPath = flag.String("config", "configs/coinboard/config.toml", "config file path")

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	// 1. 配置
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		return 1
	}
	cfg, err := config.LoadWithDefaults(*configPath)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 组装
	svc, err := markets.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to assemble service", "error", err)
		return 1
	}
	defer svc.Close()

	// 4. 刷新并输出报告
	report := svc.Refresh.Refresh(ctx, domain.TriggerScheduled)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(application.ToRefreshRunDTO(report)); err != nil {
		slog.Error("failed to write report", "error", err)
	}

	if !report.Succeeded() {
		return 1
	}
	return 0
}
