// Package collector 实现无限信息流的采集循环
//
// 一轮采集: 等待间隔 → 模拟人类滚动 → 等待新内容渲染 → 从DOM快照提取记录 →
// 按URL去重合并 → 判定停止条件。Controller 负责 Idle/Running/Paused/Stopped
// 状态机,命令可以从任意goroutine调用。
package collector
