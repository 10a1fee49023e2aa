// Package model 包含了应用的数据模型定义。
package model

// Role 标识一条聊天消息的发送方。
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// ChatMessage 代表聊天会话中的单条消息。
// 会话内按时间顺序追加，只有最后一条 ai 消息会在流式输出时被原地更新。
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
