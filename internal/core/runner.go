package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/export"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/storage"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// shutdownTimeout 关闭时等待会话落盘的最长时间
const shutdownTimeout = 15 * time.Second

// Browser 采集使用的浏览器标签页
type Browser interface {
	collector.Page
	Open(ctx context.Context, target string) error
	Close() error
}

// Runner 采集运行协调器
// 负责组装浏览器、持久化存储、事件总线、资源监控和会话状态机
type Runner struct {
	cfg *Config

	browser    Browser
	store      storage.Store
	bus        *collector.EventBus
	monitor    *collector.ResourceMonitor
	controller *collector.Controller

	exporter *export.Exporter
	reporter *utils.Reporter

	loginWaited bool
}

// CollectOptions 单次采集选项
type CollectOptions struct {
	// Resume 在已有记录上继续
	Resume bool

	// SkipExport 跳过会话结束后的自动导出,批量采集时只在最后导出一次
	SkipExport bool
}

// Launch 打开存储并启动浏览器
func Launch(ctx context.Context, cfg *Config, headers models.HeaderProvider) (*Runner, error) {
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}

	utils.Infof("🌐 启动浏览器 (headless=%v)", cfg.Browser.Headless)
	browser, err := collector.LaunchBrowser(cfg.Browser, headers)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	r, err := NewRunner(cfg, browser, store)
	if err != nil {
		browser.Close()
		store.Close()
		return nil, err
	}
	return r, nil
}

// NewRunner 用已有的浏览器和存储组装,store为nil时不持久化
func NewRunner(cfg *Config, browser Browser, store storage.Store) (*Runner, error) {
	extractor, err := collector.NewExtractor(cfg.ExtractorConfig())
	if err != nil {
		return nil, fmt.Errorf("创建提取器失败: %w", err)
	}

	r := &Runner{
		cfg:      cfg,
		browser:  browser,
		store:    store,
		bus:      collector.NewEventBus(64),
		exporter: export.NewExporter(cfg.Export.Dir, cfg.Export.Prefix),
		reporter: utils.NewReporter(cfg.Output.BaseDir),
	}

	if cfg.Resource.Enabled {
		interval := time.Duration(cfg.Resource.IntervalSec) * time.Second
		if interval <= 0 {
			interval = 5 * time.Second
		}
		r.monitor = collector.NewResourceMonitor(cfg.ResourceMonitorConfig())
		r.monitor.StartMonitoring(interval)
	}

	var repo collector.Repository
	if store != nil {
		repo = store
	}
	r.controller = collector.NewController(browser, extractor, collector.ControllerOptions{
		Config:     cfg.ControllerConfig(),
		Repository: repo,
		Notifier:   r.bus,
		Monitor:    r.monitor,
	})
	return r, nil
}

// Controller 会话状态机
func (r *Runner) Controller() *collector.Controller {
	return r.controller
}

// Events 会话事件总线
func (r *Runner) Events() *collector.EventBus {
	return r.bus
}

// Exporter 导出器
func (r *Runner) Exporter() *export.Exporter {
	return r.exporter
}

// Open 在标签页中打开目标页面
// 配置了login_wait时,第一次打开后等待手动登录
func (r *Runner) Open(ctx context.Context, target string) error {
	if err := utils.ValidateURL(target); err != nil {
		return fmt.Errorf("目标URL无效: %w", err)
	}

	utils.Infof("📄 打开页面: %s", target)
	if err := r.browser.Open(ctx, target); err != nil {
		return fmt.Errorf("打开页面失败: %w", err)
	}

	if !r.loginWaited && r.cfg.Site.LoginWait > 0 {
		r.loginWaited = true
		utils.Infof("🔑 请在浏览器中完成登录, %d秒后开始采集...", r.cfg.Site.LoginWait)
		select {
		case <-time.After(time.Duration(r.cfg.Site.LoginWait) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Collect 打开目标页面并运行一次完整会话
// 会话自然停止、被Stop或ctx取消后返回会话报告
func (r *Runner) Collect(ctx context.Context, target string, opts CollectOptions) (*models.SessionReport, error) {
	if err := r.Open(ctx, target); err != nil {
		return nil, err
	}

	if err := r.controller.Start(ctx, r.cfg.Collect, collector.StartOptions{Resume: opts.Resume}); err != nil {
		return nil, fmt.Errorf("启动采集失败: %w", err)
	}

	if err := r.controller.Wait(ctx); err != nil {
		utils.Warn("收到中断信号,正在停止采集...")
		if err := r.controller.Stop(); err != nil && !errors.Is(err, collector.ErrNotRunning) {
			utils.Warnf("停止采集失败: %v", err)
		}
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := r.controller.Wait(waitCtx); err != nil {
			utils.Warnf("等待采集循环退出超时: %v", err)
		}
	}

	report := r.controller.Report()
	report.TargetURL = target

	if !opts.SkipExport && r.cfg.Export.Auto && report.TotalRecords > 0 {
		if res, err := r.Export(r.cfg.Export.Format); err != nil {
			utils.Warnf("自动导出失败: %v", err)
		} else {
			report.ExportFile = res.Path
		}
	}

	if path, err := r.reporter.GenerateReport(report); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	} else {
		utils.Debugf("会话报告: %s", path)
	}

	utils.Infof("✅ 采集完成: 新增 %d 条, 累计 %d 条, 滚动 %d 次, 耗时 %.1f秒",
		report.NewRecords, report.TotalRecords, report.ScrollCount, report.Duration)
	return report, nil
}

// Export 导出当前累积记录
func (r *Runner) Export(format string) (*models.ExportResult, error) {
	f, err := models.ParseExportFormat(format)
	if err != nil {
		return nil, err
	}
	return r.exporter.Export(r.controller.Records(), f)
}

// Close 停止进行中的会话并释放浏览器和存储
func (r *Runner) Close() error {
	if r.controller.Status().State.Active() {
		if err := r.controller.Stop(); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			_ = r.controller.Wait(ctx)
			cancel()
		}
	}

	if r.monitor != nil {
		r.monitor.StopMonitoring()
	}

	var errs []error
	if err := r.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("关闭浏览器失败: %w", err))
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭存储失败: %w", err))
		}
	}
	return errors.Join(errs...)
}
