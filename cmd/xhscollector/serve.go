package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/XHSCollector/internal/core"
	"github.com/RecoveryAshes/XHSCollector/internal/server"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

var (
	serveAddr    string
	serveAPIKeys []string
	serveOpenURL bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动浏览器并提供HTTP控制接口",
	Long: `启动浏览器后通过HTTP接口控制采集会话:

  GET  /api/v1/health        健康检查
  GET  /api/v1/status        当前状态
  POST /api/v1/start         开始 (可选 url, resume, settings)
  POST /api/v1/pause         暂停
  POST /api/v1/resume        继续
  POST /api/v1/stop          停止
  POST /api/v1/reset         清空累积记录
  GET  /api/v1/records       累积记录 (offset, limit)
  POST /api/v1/export        导出 (format: csv|json|xlsx)
  GET  /api/v1/events        事件流 (SSE)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveAddr != "" {
			appConfig.Server.Addr = serveAddr
		}
		if len(serveAPIKeys) > 0 {
			appConfig.Server.APIKeys = serveAPIKeys
		}

		headerManager, err := core.NewHeaderManager(headersFile, headers)
		if err != nil {
			return fmt.Errorf("创建请求头管理器失败: %w", err)
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

		if serveOpenURL {
			if err := runner.Open(ctx, appConfig.Site.URL); err != nil {
				return err
			}
		}

		if len(appConfig.Server.APIKeys) == 0 {
			utils.Warn("⚠️  未配置API Key,控制接口不鉴权")
		}

		srv := server.New(appConfig.Server, runner.Controller(), server.Options{
			Exporter:  runner.Exporter(),
			Events:    runner.Events(),
			Navigator: runner,
		})
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址 (默认 127.0.0.1:8080)")
	serveCmd.Flags().StringSliceVar(&serveAPIKeys, "api-key", nil, "允许的API Key,可多次指定")
	serveCmd.Flags().BoolVar(&serveOpenURL, "open", true, "启动后打开配置中的site.url")
}
