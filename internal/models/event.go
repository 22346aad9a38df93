package models

import "time"

// EventType 事件类型
type EventType string

const (
	EventStatus   EventType = "status"   // 状态变化
	EventRecords  EventType = "records"  // 新增记录
	EventComplete EventType = "complete" // 会话结束
)

// Event 会话事件,推送给命令端(CLI进度条、SSE订阅者)
type Event struct {
	Type      EventType  `json:"type"`
	SessionID string     `json:"sessionId"`
	Time      time.Time  `json:"time"`
	Status    Status     `json:"status"`
	Records   []Record   `json:"records,omitempty"` // 仅本次合并新增的记录
	Reason    StopReason `json:"reason,omitempty"`
}
