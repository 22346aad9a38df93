package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/XHSCollector/internal/export"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/storage"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出已保存的累积记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		f := appConfig.Export.Format
		if exportFormat != "" {
			f = exportFormat
		}
		ef, err := models.ParseExportFormat(f)
		if err != nil {
			return err
		}

		store, err := storage.Open(ctx, appConfig.Storage)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		defer store.Close()

		records, err := store.LoadRecords(ctx)
		if err != nil {
			return fmt.Errorf("读取记录失败: %w", err)
		}

		res, err := export.NewExporter(appConfig.Export.Dir, appConfig.Export.Prefix).Export(records, ef)
		if err != nil {
			return fmt.Errorf("导出失败: %w", err)
		}
		utils.Debugf("文件大小: %.1f KB", float64(res.Size)/1024)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "清空已保存的累积记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, err := storage.Open(ctx, appConfig.Storage)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		defer store.Close()

		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("清空记录失败: %w", err)
		}
		utils.Info("🗑️  累积记录已清空")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "导出格式 (csv|json|xlsx)")
}
