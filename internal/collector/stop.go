package collector

import (
	"github.com/RecoveryAshes/XHSCollector/internal/models"
)

// DefaultEmptyRoundLimit 智能停止所需的连续空轮次数
const DefaultEmptyRoundLimit = 3

// RoundOutcome 一轮滚动的结果
type RoundOutcome struct {
	ScrollCount   int  // 含本轮在内已完成的滚动次数
	Accepted      int  // 本轮新增记录数
	ReachedBottom bool // 本轮滚动到底且等待后无新内容
}

// StopEvaluator 停止条件判定
// 判定顺序: 最大滚动次数 → 到底 → 智能停止
type StopEvaluator struct {
	emptyRounds int
	limit       int
}

// NewStopEvaluator 创建判定器
func NewStopEvaluator(limit int) *StopEvaluator {
	if limit <= 0 {
		limit = DefaultEmptyRoundLimit
	}
	return &StopEvaluator{limit: limit}
}

// Evaluate 返回停止原因,不需要停止时返回 models.StopNone
// 连续空轮计数只在开启智能停止时更新
func (e *StopEvaluator) Evaluate(out RoundOutcome, settings models.Settings) models.StopReason {
	if out.ScrollCount >= settings.MaxScrolls {
		return models.StopMaxScrolls
	}
	if out.ReachedBottom {
		return models.StopReachedBottom
	}
	if settings.SmartStop {
		if out.Accepted == 0 {
			e.emptyRounds++
			if e.emptyRounds >= e.limit {
				return models.StopSmart
			}
		} else {
			e.emptyRounds = 0
		}
	}
	return models.StopNone
}

// ShouldStop Evaluate 的布尔形式
func (e *StopEvaluator) ShouldStop(out RoundOutcome, settings models.Settings) bool {
	return e.Evaluate(out, settings) != models.StopNone
}

// EmptyRounds 当前连续空轮数
func (e *StopEvaluator) EmptyRounds() int {
	return e.emptyRounds
}

// Reset 会话开始时清零
func (e *StopEvaluator) Reset() {
	e.emptyRounds = 0
}
