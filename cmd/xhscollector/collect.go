package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/core"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

func runCollect(cmd *cobra.Command, args []string) error {
	// Ctrl+C 停止会话,已采集的数据会落盘并导出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	headerManager, err := core.NewHeaderManager(headersFile, headers)
	if err != nil {
		return fmt.Errorf("创建请求头管理器失败: %w", err)
	}

	if validateConfig {
		return runValidateConfig(headerManager)
	}

	if err := ValidateFlags(appConfig, urlFile); err != nil {
		return err
	}

	var urls []string
	if urlFile != "" {
		urls, err = utils.LoadURLList(urlFile)
		if err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}
		if len(urls) == 0 {
			return fmt.Errorf("URL文件中没有有效的URL: %s", urlFile)
		}
	}

	runner, err := core.Launch(ctx, appConfig, headerManager)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			utils.Warnf("释放资源失败: %v", err)
		}
	}()

	go trackProgress(ctx, runner.Events(), appConfig.Collect.MaxScrolls)
	if interactive {
		go readCommands(ctx, os.Stdin, runner.Controller())
	}

	if len(urls) > 0 {
		batch := core.NewBatchCollector(runner, batchDelay, continueOnError, resume)
		if _, err := batch.CollectBatch(ctx, urls); err != nil {
			return fmt.Errorf("批量采集失败: %w", err)
		}
		utils.Info("✨ 批量采集任务完成!")
		return nil
	}

	report, err := runner.Collect(ctx, appConfig.Site.URL, core.CollectOptions{Resume: resume})
	if err != nil {
		return fmt.Errorf("采集失败: %w", err)
	}

	fmt.Println("\n==================================================")
	fmt.Println("📊 采集统计")
	fmt.Println("==================================================")
	fmt.Printf("🏁 结束原因: %s\n", report.StopReason)
	fmt.Printf("🔄 滚动次数: %d\n", report.ScrollCount)
	fmt.Printf("📥 本次新增: %d\n", report.NewRecords)
	fmt.Printf("📦 累计记录: %d\n", report.TotalRecords)
	if report.ExportFile != "" {
		fmt.Printf("💾 导出文件: %s\n", report.ExportFile)
	}
	fmt.Printf("⏱️  总耗时: %.2f秒\n", report.Duration)
	fmt.Println("==================================================")

	utils.Info("✨ 采集任务完成!")
	return nil
}

// runValidateConfig 验证请求头配置并显示脱敏后的结果
func runValidateConfig(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载请求头配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("请求头验证失败: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的额外请求头 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

// trackProgress 用进度条显示滚动进度
func trackProgress(ctx context.Context, events *collector.EventBus, maxScrolls int) {
	ch, unsubscribe := events.Subscribe()
	defer unsubscribe()

	bar := utils.NewProgressBar(maxScrolls, "🔄 滚动采集")
	defer bar.Finish()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			bar.Describe(fmt.Sprintf("🔄 %s | 累计 %d 条", ev.Status.State, ev.Status.RecordCount))
			_ = bar.Set(ev.Status.ScrollCount)
		}
	}
}

// readCommands 从输入读取会话控制命令
func readCommands(ctx context.Context, in io.Reader, ctrl *collector.Controller) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := applyCommand(ctrl, scanner.Text()); err != nil {
			utils.Warnf("%v", err)
		}
	}
}

// sessionControl 可交互控制的会话
type sessionControl interface {
	Pause() error
	Resume() error
	Stop() error
	Status() models.Status
}

// applyCommand 执行一条交互命令
func applyCommand(ctrl sessionControl, line string) error {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return nil
	case "p", "pause":
		return ctrl.Pause()
	case "r", "resume":
		return ctrl.Resume()
	case "s", "stop", "q":
		return ctrl.Stop()
	case "status":
		st := ctrl.Status()
		utils.Infof("状态: %s, 滚动 %d 次, 累计 %d 条", st.State, st.ScrollCount, st.RecordCount)
		return nil
	default:
		return errors.New("未知命令 (p=暂停, r=继续, s=停止, status=状态)")
	}
}
