// Package http 行情榜单的 HTTP 接口：页面渲染、手动刷新与只读 JSON 接口
package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/coinboard/internal/markets/application"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/logger"
)

// MarketQuery 读路径，由 application.QueryService 实现
type MarketQuery interface {
	ListMarkets(ctx context.Context) []*application.MarketEntryDTO
	GetMarket(ctx context.Context, symbol string) (*application.MarketEntryDTO, error)
	RecentRuns(ctx context.Context, limit int) ([]*application.RefreshRunDTO, error)
	LatestRun(ctx context.Context) *application.RefreshRunDTO
}

// Refresher 写路径，由 application.RefreshService 实现
type Refresher interface {
	Refresh(ctx context.Context, trigger domain.RefreshTrigger) *domain.RefreshRun
}

// Handler HTTP 处理器
type Handler struct {
	query   MarketQuery
	refresh Refresher
	tmpl    *template.Template
	title   string
}

// NewHandler 创建 HTTP 处理器实例
func NewHandler(query MarketQuery, refresh Refresher, view ViewOptions) (*Handler, error) {
	tmpl, err := NewTemplate(view)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	title := view.Title
	if title == "" {
		title = "Coinboard"
	}
	return &Handler{
		query:   query,
		refresh: refresh,
		tmpl:    tmpl,
		title:   title,
	}, nil
}

// Index 渲染行情榜单
// 读取失败时渲染空表格，不返回错误页
// @Summary 行情榜单页面
// @Tags Markets
// @Produce html
// @Success 200
// @Router / [get]
func (h *Handler) Index(c *gin.Context) {
	ctx := c.Request.Context()

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":   h.title,
		"Markets": h.query.ListMarkets(ctx),
		"LastRun": h.query.LatestRun(ctx),
	})
}

// Update 同步执行一次刷新，无论结果如何都重定向到榜单页
// @Summary 手动刷新
// @Tags Markets
// @Success 302
// @Router /update [get]
func (h *Handler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	run := h.refresh.Refresh(ctx, domain.TriggerManual)
	if !run.Succeeded() {
		logger.Warn(ctx, "Manual refresh did not complete",
			"run_id", run.RunID,
			"status", run.Status,
			"error", run.Error,
		)
	}

	c.Redirect(http.StatusFound, "/")
}

// ListMarkets 获取榜单
// @Summary 获取按市值排序的榜单
// @Tags Markets
// @Success 200 {array} application.MarketEntryDTO
// @Router /api/v1/markets [get]
func (h *Handler) ListMarkets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.query.ListMarkets(c.Request.Context()),
	})
}

// GetMarket 获取单个条目
// @Summary 按代码获取行情条目
// @Tags Markets
// @Param symbol path string true "代码"
// @Success 200 {object} application.MarketEntryDTO
// @Failure 404 {object} map[string]string
// @Router /api/v1/markets/{symbol} [get]
func (h *Handler) GetMarket(c *gin.Context) {
	ctx := c.Request.Context()
	symbol := c.Param("symbol")

	dto, err := h.query.GetMarket(ctx, symbol)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMarketEntryNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrEmptySymbol):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get market entry"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dto})
}

// ListRefreshRuns 获取最近的刷新报告
// @Summary 刷新历史
// @Tags Markets
// @Param limit query int false "条数，默认 20"
// @Success 200 {array} application.RefreshRunDTO
// @Router /api/v1/refresh-runs [get]
func (h *Handler) ListRefreshRuns(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			logger.Warn(ctx, "Invalid request: bad limit", "limit", raw)
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.query.RecentRuns(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list refresh runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// Health 存活检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(h.tmpl)

	router.GET("/", h.Index)
	router.GET("/update", h.Update)
	router.POST("/update", h.Update)
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/markets", h.ListMarkets)
		api.GET("/markets/:symbol", h.GetMarket)
		api.GET("/refresh-runs", h.ListRefreshRuns)
	}
}
