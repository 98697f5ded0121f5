package model

import "time"

// 反馈报告的状态流转：pending → reviewed / resolved / dismissed。
const (
	FeedbackStatusPending   = "pending"
	FeedbackStatusReviewed  = "reviewed"
	FeedbackStatusResolved  = "resolved"
	FeedbackStatusDismissed = "dismissed"
)

// FeedbackReport 代表用户对一次对话提交的反馈。
// Excerpt 保存提交时刻的最近 10 轮对话，供管理员回溯。
type FeedbackReport struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Identity    string    `json:"identity"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Excerpt     []Turn    `json:"excerpt"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
}
