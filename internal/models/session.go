package models

import (
	"fmt"
	"time"
)

// SessionState 采集会话状态
type SessionState string

const (
	StateIdle    SessionState = "idle"    // 空闲
	StateRunning SessionState = "running" // 采集中
	StatePaused  SessionState = "paused"  // 已暂停
	StateStopped SessionState = "stopped" // 已停止
)

// Active 会话是否仍在进行(运行或暂停)
func (s SessionState) Active() bool {
	return s == StateRunning || s == StatePaused
}

// StopReason 停止原因
type StopReason string

const (
	StopNone          StopReason = ""
	StopMaxScrolls    StopReason = "max_scrolls"    // 达到最大滚动次数
	StopReachedBottom StopReason = "reached_bottom" // 到达页面底部且无新内容
	StopSmart         StopReason = "smart_stop"     // 连续多轮无新数据
	StopUser          StopReason = "user_stop"      // 用户主动停止
)

// Settings 会话配置,运行期间不可变
type Settings struct {
	ScrollSpeedFactor float64 `json:"scrollSpeedFactor" bson:"scrollSpeedFactor" mapstructure:"scroll_speed_factor"` // 滚动速度系数 (默认:1.0)
	IntervalMs        int     `json:"intervalMs" bson:"intervalMs" mapstructure:"interval_ms"`                        // 滚动间隔(毫秒) (默认:3000)
	MaxScrolls        int     `json:"maxScrolls" bson:"maxScrolls" mapstructure:"max_scrolls"`                        // 最大滚动次数 (默认:100)
	SmartStop         bool    `json:"smartStop" bson:"smartStop" mapstructure:"smart_stop"`                           // 连续无新数据时自动停止

	CollectTitle  bool `json:"collectTitle" bson:"collectTitle" mapstructure:"collect_title"`
	CollectAuthor bool `json:"collectAuthor" bson:"collectAuthor" mapstructure:"collect_author"`
	CollectStats  bool `json:"collectStats" bson:"collectStats" mapstructure:"collect_stats"`
	CollectImages bool `json:"collectImages" bson:"collectImages" mapstructure:"collect_images"`
	CollectTime   bool `json:"collectTime" bson:"collectTime" mapstructure:"collect_time"`
}

// DefaultSettings 默认会话配置
func DefaultSettings() Settings {
	return Settings{
		ScrollSpeedFactor: 1.0,
		IntervalMs:        3000,
		MaxScrolls:        100,
		SmartStop:         true,
		CollectTitle:      true,
		CollectAuthor:     true,
		CollectStats:      true,
		CollectImages:     true,
		CollectTime:       true,
	}
}

// Validate 验证配置
func (s Settings) Validate() error {
	if s.ScrollSpeedFactor <= 0 || s.ScrollSpeedFactor > 5 {
		return fmt.Errorf("滚动速度系数必须在(0, 5]之间,当前值: %.2f", s.ScrollSpeedFactor)
	}
	if s.IntervalMs <= 0 || s.IntervalMs > 10*60*1000 {
		return fmt.Errorf("滚动间隔必须在1-600000毫秒之间,当前值: %d", s.IntervalMs)
	}
	if s.MaxScrolls < 1 || s.MaxScrolls > 100000 {
		return fmt.Errorf("最大滚动次数必须在1-100000之间,当前值: %d", s.MaxScrolls)
	}
	return nil
}

// Interval 滚动间隔
func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// Status 会话状态快照
type Status struct {
	State       SessionState `json:"state"`
	SessionID   string       `json:"sessionId,omitempty"`
	RecordCount int          `json:"recordCount"`
	ScrollCount int          `json:"scrollCount"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	StopReason  StopReason   `json:"stopReason,omitempty"`
}
