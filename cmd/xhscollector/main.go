package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/XHSCollector/internal/core"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 请求头参数
	headers        []string // 注入浏览器的额外请求头
	headersFile    string   // 请求头配置文件
	validateConfig bool     // 验证配置文件

	// 采集参数
	targetURL   string
	urlFile     string
	maxScrolls  int
	intervalMs  int
	speed       float64
	noSmartStop bool
	headless    bool
	userDataDir string
	loginWait   int
	resume      bool
	storageKind string
	exportDir   string
	format      string
	noExport    bool
	interactive bool

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

// appConfig 在PersistentPreRunE中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "xhscollector",
	Short: "小红书信息流数据采集工具",
	Long: `XHSCollector - 小红书信息流数据采集工具

在真实浏览器中模拟人工滚动信息流页面,自动提取笔记卡片数据:
  • 拟人化的缓动滚动和随机间隔
  • 等待新内容加载完成后再提取
  • 选择器失效时自动识别笔记卡片
  • 按笔记链接去重,支持断点继续
  • 连续无新数据或到达底部时自动停止
  • 导出 CSV / JSON / Excel
  • HTTP控制接口 (serve 子命令)

示例:
  # 采集发现页,最多滚动50次
  xhscollector -u https://www.xiaohongshu.com/explore --max-scrolls 50

  # 在上次的结果上继续,并导出为Excel
  xhscollector -u https://www.xiaohongshu.com/explore --resume --format xlsx

  # 携带登录态Cookie
  xhscollector -u https://www.xiaohongshu.com/explore -H "Cookie: a1=xxx; web_session=xxx"

  # 启动控制接口
  xhscollector serve --addr 127.0.0.1:8080

  # 验证配置文件
  xhscollector --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		overrides := core.Overrides{
			URL:         targetURL,
			MaxScrolls:  maxScrolls,
			IntervalMs:  intervalMs,
			Speed:       speed,
			NoSmartStop: noSmartStop,
			UserDataDir: userDataDir,
			Storage:     storageKind,
			ExportDir:   exportDir,
			Format:      format,
			NoExport:    noExport,
			LogLevel:    logLevel,
		}
		if cmd.Flags().Changed("headless") {
			overrides.Headless = &headless
		}
		config.MergeCLIFlags(overrides)
		if cmd.Flags().Changed("login-wait") {
			config.Site.LoginWait = loginWait
		}

		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
	RunE: runCollect,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("XHSCollector %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&storageKind, "storage", "", "存储类型 (file|mongo)")
	rootCmd.PersistentFlags().StringVar(&exportDir, "export-dir", "", "导出目录")

	// 请求头参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "注入浏览器的额外请求头,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "请求头配置文件 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 浏览器参数,serve 也会用到
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "无头浏览器模式")
	rootCmd.PersistentFlags().StringVar(&userDataDir, "user-data-dir", "", "浏览器用户数据目录,用于保留登录状态")
	rootCmd.PersistentFlags().IntVar(&loginWait, "login-wait", 0, "打开页面后等待手动登录的秒数")

	// 采集参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "信息流页面URL (默认使用配置中的site.url)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().IntVar(&maxScrolls, "max-scrolls", 0, "最大滚动次数 (1-100000)")
	rootCmd.Flags().IntVar(&intervalMs, "interval", 0, "滚动间隔(毫秒)")
	rootCmd.Flags().Float64Var(&speed, "speed", 0, "滚动速度系数 (0-5]")
	rootCmd.Flags().BoolVar(&noSmartStop, "no-smart-stop", false, "关闭连续无新数据自动停止")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "在上次的累积记录上继续")
	rootCmd.Flags().StringVar(&format, "format", "", "导出格式 (csv|json|xlsx)")
	rootCmd.Flags().BoolVar(&noExport, "no-export", false, "结束后不自动导出")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", true, "从标准输入读取 p(暂停)/r(继续)/s(停止) 命令")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 3, "批量处理URL间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	// 子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
