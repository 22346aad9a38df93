package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pressure 资源压力等级
type Pressure string

const (
	PressureNormal   Pressure = "normal"
	PressureWarning  Pressure = "warning"
	PressureCritical Pressure = "critical"
)

// ResourceMonitor 系统资源监控器
// 浏览器长时间无限滚动会持续吃内存,资源紧张时采集循环据此退避
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 系统总内存(字节)
	totalMemory uint64

	mu              sync.RWMutex
	availableMemory uint64
	cpuUsage        float64
	sampledAt       time.Time

	// sampler 采样函数,返回可用内存(字节)和CPU使用率(%)
	sampler func() (uint64, float64, error)

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	WarningMemory    int64 // 可用内存低于此值为warning(字节)
	CriticalMemory   int64 // 可用内存低于此值为critical(字节)
	CPULoadThreshold int   // CPU负载阈值(%), >=200视为禁用
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		WarningMemory:    500 * 1024 * 1024,
		CriticalMemory:   200 * 1024 * 1024,
		CPULoadThreshold: 95,
	}
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64   `json:"totalMemory"`
	AvailableMemory uint64   `json:"availableMemory"`
	CPUUsage        float64  `json:"cpuUsage"`
	Pressure        Pressure `json:"pressure"`
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	var totalMem uint64
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		totalMem = 4 * 1024 * 1024 * 1024
	} else {
		totalMem = vmStat.Total
		log.Info().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))
	}

	return &ResourceMonitor{
		config:          config,
		totalMemory:     totalMem,
		availableMemory: totalMem,
		sampler:         sampleSystem,
	}
}

// sampleSystem 使用gopsutil采样系统可用内存和CPU使用率
func sampleSystem() (uint64, float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, fmt.Errorf("获取内存信息失败: %w", err)
	}
	// 100毫秒采样窗口,避免阻塞过久
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		return vm.Available, 0, nil
	}
	return vm.Available, percentages[0], nil
}

// StartMonitoring 启动后台采样(幂等)
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	rm.Refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.Refresh()
		}
	}
}

// Refresh 立即采样一次
func (rm *ResourceMonitor) Refresh() {
	available, cpuUsage, err := rm.sampler()
	if err != nil {
		log.Warn().Err(err).Msg("资源采样失败")
		return
	}

	rm.mu.Lock()
	rm.availableMemory = available
	rm.cpuUsage = cpuUsage
	rm.sampledAt = time.Now()
	rm.mu.Unlock()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// Pressure 当前压力等级和原因
func (rm *ResourceMonitor) Pressure() (Pressure, string) {
	rm.mu.RLock()
	available := int64(rm.availableMemory)
	cpuUsage := rm.cpuUsage
	rm.mu.RUnlock()

	availableMB := available / (1024 * 1024)
	switch {
	case available < rm.config.CriticalMemory:
		return PressureCritical, fmt.Sprintf("可用内存严重不足(当前%dMB)", availableMB)
	case rm.config.CPULoadThreshold < 200 && cpuUsage > float64(rm.config.CPULoadThreshold):
		return PressureCritical, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
	case available < rm.config.WarningMemory:
		return PressureWarning, fmt.Sprintf("可用内存不足(当前%dMB)", availableMB)
	default:
		return PressureNormal, ""
	}
}

// GetMemoryStatus 获取当前资源状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	pressure, _ := rm.Pressure()

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return MemoryStatus{
		TotalMemory:     rm.totalMemory,
		AvailableMemory: rm.availableMemory,
		CPUUsage:        rm.cpuUsage,
		Pressure:        pressure,
	}
}
