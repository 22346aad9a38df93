package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// ReadinessConfig 新内容检测参数
type ReadinessConfig struct {
	SettleDelay  time.Duration // 滚动后先等待的时间
	PollInterval time.Duration // 轮询间隔,须小于滚动间隔
	Timeout      time.Duration // 默认最长等待
}

// DefaultReadinessConfig 默认参数
func DefaultReadinessConfig() ReadinessConfig {
	return ReadinessConfig{
		SettleDelay:  1000 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
		Timeout:      5000 * time.Millisecond,
	}
}

// Baseline 滚动前的条目数和内容高度
type Baseline struct {
	ItemCount     int
	ContentHeight float64
}

// ReadinessDetector 判断滚动后是否渲染出了新内容
type ReadinessDetector struct {
	page     Page
	selector string
	cfg      ReadinessConfig
}

// NewReadinessDetector 创建检测器,selector用于统计条目数
func NewReadinessDetector(page Page, selector string, cfg ReadinessConfig) *ReadinessDetector {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &ReadinessDetector{page: page, selector: selector, cfg: cfg}
}

// Baseline 记录当前条目数和内容高度
func (d *ReadinessDetector) Baseline(ctx context.Context) (Baseline, error) {
	count, err := d.page.CountMatches(ctx, d.selector)
	if err != nil {
		return Baseline{}, fmt.Errorf("统计条目数失败: %w", err)
	}
	m, err := d.page.Metrics(ctx)
	if err != nil {
		return Baseline{}, fmt.Errorf("读取页面度量失败: %w", err)
	}
	return Baseline{ItemCount: count, ContentHeight: m.ContentHeight}, nil
}

// WaitUntilReady 等待条目数或内容高度超过基线
// 超时返回false而不是错误;只有ctx被取消(暂停/停止)时返回错误
// maxWait<=0 时使用默认超时,等待总时长包含SettleDelay
func (d *ReadinessDetector) WaitUntilReady(ctx context.Context, base Baseline, maxWait time.Duration) (bool, error) {
	if maxWait <= 0 {
		maxWait = d.cfg.Timeout
	}
	deadline := time.Now().Add(maxWait)

	if err := sleepCtx(ctx, min(d.cfg.SettleDelay, maxWait)); err != nil {
		return false, err
	}

	for {
		grown, err := d.grown(ctx, base)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// 单次探测失败按未增长处理
			utils.Debugf("内容检测失败: %v", err)
		} else if grown {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		if err := sleepCtx(ctx, min(d.cfg.PollInterval, remaining)); err != nil {
			return false, err
		}
	}
}

func (d *ReadinessDetector) grown(ctx context.Context, base Baseline) (bool, error) {
	count, err := d.page.CountMatches(ctx, d.selector)
	if err != nil {
		return false, err
	}
	if count > base.ItemCount {
		return true, nil
	}
	m, err := d.page.Metrics(ctx)
	if err != nil {
		return false, err
	}
	return m.ContentHeight > base.ContentHeight, nil
}
