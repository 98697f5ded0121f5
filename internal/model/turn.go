// Package model 包含了应用的数据模型定义。
package model

import "time"

// 对话角色，与 Gemini 的角色标签保持一致。
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn 代表对话历史中的一轮发言。
// 所有内部逻辑只消费这个归一化形态；入口处完成归一化。
type Turn struct {
	Role      string    `json:"role"` // "user" 或 "model"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
