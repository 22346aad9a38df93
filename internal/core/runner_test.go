package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/storage"
)

// staticBrowser 每个URL对应一组固定条目,页面不可滚动
type staticBrowser struct {
	mu      sync.Mutex
	pages   map[string][]string
	current string
	opened  []string
	closed  bool
}

func newStaticBrowser(pages map[string][]string) *staticBrowser {
	return &staticBrowser{pages: pages}
}

func (b *staticBrowser) Open(ctx context.Context, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pages[target]; !ok {
		return fmt.Errorf("页面不存在: %s", target)
	}
	b.current = target
	b.opened = append(b.opened, target)
	return nil
}

func (b *staticBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *staticBrowser) items() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[b.current]
}

func (b *staticBrowser) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var sb strings.Builder
	sb.WriteString(`<html><body><div class="feeds-container">`)
	for _, id := range b.items() {
		fmt.Fprintf(&sb, `<section class="note-item"><a class="cover" href="/explore/%s"></a>`+
			`<div class="footer"><a class="title"><span>标题%s</span></a><a class="author"><span class="name">作者%s</span></a></div></section>`,
			id, id, id)
	}
	sb.WriteString(`</div></body></html>`)
	return goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
}

func (b *staticBrowser) Metrics(ctx context.Context) (collector.PageMetrics, error) {
	return collector.PageMetrics{ScrollY: 0, ViewportHeight: 800, ContentHeight: 800}, nil
}

func (b *staticBrowser) ScrollTo(ctx context.Context, y float64) error {
	return nil
}

func (b *staticBrowser) CountMatches(ctx context.Context, selector string) (int, error) {
	return len(b.items()), nil
}

func testRunnerConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Collect.IntervalMs = 1
	cfg.Timing.SettleMs = 1
	cfg.Timing.PollMs = 1
	cfg.Timing.ReadyTimeoutMs = 10
	cfg.Timing.IntervalJitterMs = 0
	cfg.Timing.ErrorBackoffMs = 1
	cfg.Resource.Enabled = false
	cfg.Storage.Path = filepath.Join(dir, "state.json")
	cfg.Export.Dir = filepath.Join(dir, "export")
	cfg.Output.BaseDir = filepath.Join(dir, "output")
	return cfg
}

func newTestRunner(t *testing.T, cfg *Config, browser Browser) *Runner {
	t.Helper()
	store, err := storage.Open(context.Background(), cfg.Storage)
	if err != nil {
		t.Fatalf("打开存储失败: %v", err)
	}
	r, err := NewRunner(cfg, browser, store)
	if err != nil {
		t.Fatalf("NewRunner() 出错: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

const (
	feedA = "https://www.xiaohongshu.com/explore"
	feedB = "https://www.xiaohongshu.com/search_result?keyword=travel"
)

func TestRunnerCollect(t *testing.T) {
	cfg := testRunnerConfig(t)
	browser := newStaticBrowser(map[string][]string{feedA: {"n1", "n2", "n3"}})
	r := newTestRunner(t, cfg, browser)

	report, err := r.Collect(context.Background(), feedA, CollectOptions{})
	if err != nil {
		t.Fatalf("Collect() 出错: %v", err)
	}

	if report.StopReason != models.StopReachedBottom {
		t.Errorf("StopReason = %q, 期望 %q", report.StopReason, models.StopReachedBottom)
	}
	if report.TotalRecords != 3 || report.NewRecords != 3 {
		t.Errorf("记录数 = %d/%d, 期望 3/3", report.NewRecords, report.TotalRecords)
	}
	if report.TargetURL != feedA {
		t.Errorf("TargetURL = %q", report.TargetURL)
	}
	if report.ExportFile == "" {
		t.Fatal("默认应自动导出")
	}
	if _, err := os.Stat(report.ExportFile); err != nil {
		t.Errorf("导出文件不存在: %v", err)
	}
	if !strings.HasSuffix(report.ExportFile, ".csv") {
		t.Errorf("默认导出格式应为csv: %s", report.ExportFile)
	}

	reports, _ := filepath.Glob(filepath.Join(cfg.Output.BaseDir, "reports", "session_*.json"))
	if len(reports) != 1 {
		t.Errorf("报告文件数 = %d, 期望 1", len(reports))
	}

	if st := r.Controller().Status(); st.State != models.StateStopped {
		t.Errorf("State = %q, 期望 %q", st.State, models.StateStopped)
	}
}

func TestRunnerCollectNoExport(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.Export.Auto = false
	r := newTestRunner(t, cfg, newStaticBrowser(map[string][]string{feedA: {"n1"}}))

	report, err := r.Collect(context.Background(), feedA, CollectOptions{})
	if err != nil {
		t.Fatalf("Collect() 出错: %v", err)
	}
	if report.ExportFile != "" {
		t.Errorf("关闭自动导出后不应生成文件: %s", report.ExportFile)
	}
	if _, err := os.Stat(cfg.Export.Dir); !os.IsNotExist(err) {
		t.Error("导出目录不应被创建")
	}
}

func TestRunnerCollectErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"无效URL", "not-a-url"},
		{"页面打开失败", "https://www.xiaohongshu.com/missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRunnerConfig(t)
			r := newTestRunner(t, cfg, newStaticBrowser(map[string][]string{feedA: {"n1"}}))
			if _, err := r.Collect(context.Background(), tt.target, CollectOptions{}); err == nil {
				t.Error("期望返回错误")
			}
			if st := r.Controller().Status(); st.State != models.StateIdle {
				t.Errorf("失败后状态应保持Idle, 实际 %q", st.State)
			}
		})
	}
}

func TestRunnerResumeFromStore(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.Export.Auto = false

	first := newTestRunner(t, cfg, newStaticBrowser(map[string][]string{feedA: {"n1", "n2"}}))
	if _, err := first.Collect(context.Background(), feedA, CollectOptions{}); err != nil {
		t.Fatalf("第一次采集出错: %v", err)
	}
	first.Close()

	second := newTestRunner(t, cfg, newStaticBrowser(map[string][]string{feedA: {"n2", "n3"}}))
	report, err := second.Collect(context.Background(), feedA, CollectOptions{Resume: true})
	if err != nil {
		t.Fatalf("继续采集出错: %v", err)
	}
	if report.TotalRecords != 3 || report.NewRecords != 1 {
		t.Errorf("记录数 = 新增%d/累计%d, 期望 1/3", report.NewRecords, report.TotalRecords)
	}
}

func TestRunnerExport(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.Export.Auto = false
	r := newTestRunner(t, cfg, newStaticBrowser(map[string][]string{feedA: {"n1", "n2"}}))

	if _, err := r.Export("json"); err == nil {
		t.Error("没有记录时导出应失败")
	}
	if _, err := r.Collect(context.Background(), feedA, CollectOptions{}); err != nil {
		t.Fatalf("Collect() 出错: %v", err)
	}

	tests := []struct {
		format string
		ext    string
		ok     bool
	}{
		{"json", ".json", true},
		{"xlsx", ".xlsx", true},
		{"pdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			res, err := r.Export(tt.format)
			if !tt.ok {
				if err == nil {
					t.Error("期望返回错误")
				}
				return
			}
			if err != nil {
				t.Fatalf("Export() 出错: %v", err)
			}
			if res.Count != 2 || !strings.HasSuffix(res.Path, tt.ext) {
				t.Errorf("导出结果 = %+v", res)
			}
		})
	}
}

func TestRunnerClose(t *testing.T) {
	cfg := testRunnerConfig(t)
	browser := newStaticBrowser(map[string][]string{feedA: {"n1"}})
	r := newTestRunner(t, cfg, browser)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() 出错: %v", err)
	}
	if !browser.closed {
		t.Error("Close() 应关闭浏览器")
	}
}
