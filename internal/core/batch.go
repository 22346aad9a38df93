package core

import (
	"context"
	"time"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// BatchCollector 批量采集器
// 依次采集多个信息流页面,所有页面的记录累积到同一个去重集合
type BatchCollector struct {
	runner        *Runner
	batchDelay    time.Duration
	continueOnErr bool
	resume        bool
}

// BatchResult 单个URL的采集结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Report      *models.SessionReport
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量采集摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	NewRecords    int
	TotalRecords  int
	TotalDuration float64
	ExportFile    string
	Results       []BatchResult
}

// NewBatchCollector 创建批量采集器
// resume为true时第一个URL也在已有记录上继续
func NewBatchCollector(runner *Runner, batchDelay int, continueOnErr bool, resume bool) *BatchCollector {
	return &BatchCollector{
		runner:        runner,
		batchDelay:    time.Duration(batchDelay) * time.Second,
		continueOnErr: continueOnErr,
		resume:        resume,
	}
}

// CollectBatch 批量采集URL列表
func (bc *BatchCollector) CollectBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量采集: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()

	for i, targetURL := range urls {
		if ctx.Err() != nil {
			utils.Warn("批量采集被中断")
			break
		}

		utils.Infof("\n==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		// 第一个URL之后都在累积集合上继续
		result := bc.collectSingleURL(ctx, targetURL, bc.resume || i > 0)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.NewRecords += result.Report.NewRecords
		} else {
			summary.FailCount++
			utils.Errorf("❌ 采集失败: %v", result.Error)

			if !bc.continueOnErr {
				utils.Warn("批量采集中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bc.batchDelay.Seconds())
			select {
			case <-time.After(bc.batchDelay):
			case <-ctx.Done():
			}
		}
	}

	summary.TotalRecords = len(bc.runner.Controller().Records())
	summary.TotalDuration = time.Since(startTime).Seconds()

	cfg := bc.runner.cfg
	if cfg.Export.Auto && summary.TotalRecords > 0 {
		if res, err := bc.runner.Export(cfg.Export.Format); err != nil {
			utils.Warnf("自动导出失败: %v", err)
		} else {
			summary.ExportFile = res.Path
		}
	}

	bc.printSummary(summary)

	return summary, nil
}

// collectSingleURL 采集单个URL
func (bc *BatchCollector) collectSingleURL(ctx context.Context, targetURL string, resume bool) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}

	startTime := time.Now()
	report, err := bc.runner.Collect(ctx, targetURL, CollectOptions{Resume: resume, SkipExport: true})
	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Report = report
	return result
}

// printSummary 打印批量采集摘要
func (bc *BatchCollector) printSummary(summary *BatchSummary) {
	utils.Info("\n==================================================")
	utils.Info("📊 批量采集摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📥 新增记录: %d", summary.NewRecords)
	utils.Infof("📦 累计记录: %d", summary.TotalRecords)
	if summary.ExportFile != "" {
		utils.Infof("💾 导出文件: %s", summary.ExportFile)
	}
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("\n失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
