package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshTrigger 刷新触发方式
type RefreshTrigger string

const (
	// TriggerManual 通过 /update 手动触发
	TriggerManual RefreshTrigger = "manual"
	// TriggerScheduled 由外部调度器（cmd/scraper）触发
	TriggerScheduled RefreshTrigger = "scheduled"
)

// RefreshStatus 刷新结果
type RefreshStatus string

const (
	// StatusRunning 执行中
	StatusRunning RefreshStatus = "running"
	// StatusSucceeded 抓取并提交成功
	StatusSucceeded RefreshStatus = "succeeded"
	// StatusFetchEmpty 抓取为空，存储未变更
	StatusFetchEmpty RefreshStatus = "fetch_empty"
	// StatusStoreFailed 写入失败，整批回滚
	StatusStoreFailed RefreshStatus = "store_failed"
)

// RefreshRun 一次写路径执行的结构化报告
type RefreshRun struct {
	RunID      string
	Trigger    RefreshTrigger
	Source     string
	Status     RefreshStatus
	Fetched    int
	Skipped    int
	Inserted   int
	Updated    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRefreshRun 开始一次刷新
func NewRefreshRun(trigger RefreshTrigger, source string, startedAt time.Time) *RefreshRun {
	return &RefreshRun{
		RunID:     uuid.New().String(),
		Trigger:   trigger,
		Source:    source,
		Status:    StatusRunning,
		StartedAt: startedAt,
	}
}

// Finish 记录最终状态，err 可为 nil
func (r *RefreshRun) Finish(status RefreshStatus, err error, finishedAt time.Time) {
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = finishedAt
}

// Succeeded 是否成功
func (r *RefreshRun) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Duration 执行耗时
func (r *RefreshRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RefreshCompletedEvent 刷新完成事件，发布到消息队列
type RefreshCompletedEvent struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Fetched    int       `json:"fetched"`
	Skipped    int       `json:"skipped"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRefreshCompletedEvent 由刷新报告构造事件
func NewRefreshCompletedEvent(r *RefreshRun) *RefreshCompletedEvent {
	return &RefreshCompletedEvent{
		RunID:      r.RunID,
		Trigger:    string(r.Trigger),
		Source:     r.Source,
		Status:     string(r.Status),
		Fetched:    r.Fetched,
		Skipped:    r.Skipped,
		Inserted:   r.Inserted,
		Updated:    r.Updated,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
