package models

import (
	"encoding/json"
	"time"
)

// SessionReport 采集会话报告
type SessionReport struct {
	// 会话信息
	SessionID string `json:"session_id"`
	TargetURL string `json:"target_url"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	StopReason   StopReason `json:"stop_reason"`
	ScrollCount  int        `json:"scroll_count"`
	NewRecords   int        `json:"new_records"`   // 本次会话新增
	TotalRecords int        `json:"total_records"` // 累计

	// 导出文件(可选)
	ExportFile string `json:"export_file,omitempty"`

	// 配置快照
	Settings Settings `json:"settings"`
}

// ToJSON 序列化为JSON
func (r *SessionReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *SessionReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
