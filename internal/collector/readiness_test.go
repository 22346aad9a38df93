package collector

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastReadinessConfig() ReadinessConfig {
	return ReadinessConfig{
		SettleDelay:  time.Millisecond,
		PollInterval: time.Millisecond,
		Timeout:      30 * time.Millisecond,
	}
}

func TestReadinessBaseline(t *testing.T) {
	page := newFakePage(5, 10)
	d := NewReadinessDetector(page, ContainerSelector(), fastReadinessConfig())

	base, err := d.Baseline(context.Background())
	if err != nil {
		t.Fatalf("Baseline() 出错: %v", err)
	}
	if base.ItemCount != 5 || base.ContentHeight != page.contentHeight {
		t.Errorf("Baseline() = %+v", base)
	}
}

func TestReadinessDetectsGrowth(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *fakePage)
	}{
		{"条目数增加", func(p *fakePage) { p.scrollY = 600 }},
		{"内容高度增加", func(p *fakePage) { p.contentHeight += 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage(5, 10)
			d := NewReadinessDetector(page, ContainerSelector(), fastReadinessConfig())
			base, err := d.Baseline(context.Background())
			if err != nil {
				t.Fatalf("Baseline() 出错: %v", err)
			}

			page.mu.Lock()
			tt.mutate(page)
			page.mu.Unlock()

			ready, err := d.WaitUntilReady(context.Background(), base, time.Second)
			if err != nil || !ready {
				t.Errorf("应检测到新内容, ready=%v err=%v", ready, err)
			}
		})
	}
}

func TestReadinessTimeout(t *testing.T) {
	page := newFakePage(5, 5)
	d := NewReadinessDetector(page, ContainerSelector(), fastReadinessConfig())
	base, _ := d.Baseline(context.Background())

	start := time.Now()
	ready, err := d.WaitUntilReady(context.Background(), base, 0)
	if err != nil {
		t.Fatalf("超时不应返回错误: %v", err)
	}
	if ready {
		t.Error("无新内容时应返回false")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("等待时间过长: %v", elapsed)
	}
}

func TestReadinessSettleBoundedByMaxWait(t *testing.T) {
	page := newFakePage(5, 5)
	cfg := fastReadinessConfig()
	cfg.SettleDelay = 5 * time.Second
	d := NewReadinessDetector(page, ContainerSelector(), cfg)
	base, _ := d.Baseline(context.Background())

	start := time.Now()
	if _, err := d.WaitUntilReady(context.Background(), base, 20*time.Millisecond); err != nil {
		t.Fatalf("WaitUntilReady() 出错: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("总等待应受maxWait约束, 实际 %v", elapsed)
	}
}

func TestReadinessProbeErrorCountsAsNoGrowth(t *testing.T) {
	page := newFakePage(5, 5)
	d := NewReadinessDetector(page, ContainerSelector(), fastReadinessConfig())
	base, _ := d.Baseline(context.Background())

	page.mu.Lock()
	page.metricsErr = errFakeScroll
	page.mu.Unlock()

	ready, err := d.WaitUntilReady(context.Background(), base, 20*time.Millisecond)
	if err != nil || ready {
		t.Errorf("探测失败应按未增长处理, ready=%v err=%v", ready, err)
	}
}

func TestReadinessCancelled(t *testing.T) {
	page := newFakePage(5, 5)
	d := NewReadinessDetector(page, ContainerSelector(), fastReadinessConfig())
	base, _ := d.Baseline(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.WaitUntilReady(ctx, base, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("取消后应返回 context.Canceled, 实际 %v", err)
	}
}
