package collector

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page 被采集的页面
// BrowserSession 是基于go-rod的实现,测试中使用内存假页面
type Page interface {
	// Snapshot 返回当前渲染DOM的快照,候选节点已标注SizeAttr
	Snapshot(ctx context.Context) (*goquery.Document, error)
	// Metrics 返回滚动位置、视口高度和内容高度
	Metrics(ctx context.Context) (PageMetrics, error)
	// ScrollTo 把窗口滚动到纵坐标y
	ScrollTo(ctx context.Context, y float64) error
	// CountMatches 返回匹配选择器的元素数量
	CountMatches(ctx context.Context, selector string) (int, error)
}

// PageMetrics 页面滚动度量
type PageMetrics struct {
	ScrollY        float64 `json:"scrollY"`
	ViewportHeight float64 `json:"viewportHeight"`
	ContentHeight  float64 `json:"contentHeight"`
}

// MaxScrollY 可滚动到的最大纵坐标
func (m PageMetrics) MaxScrollY() float64 {
	if m.ContentHeight <= m.ViewportHeight {
		return 0
	}
	return m.ContentHeight - m.ViewportHeight
}

// AtBottom 视口底边距内容底部不超过threshold
func (m PageMetrics) AtBottom(threshold float64) bool {
	return m.ScrollY+m.ViewportHeight >= m.ContentHeight-threshold
}

// sleepCtx 可被取消的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
