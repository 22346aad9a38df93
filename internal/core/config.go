package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/server"
	"github.com/RecoveryAshes/XHSCollector/internal/storage"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// Config 应用程序配置
type Config struct {
	Site     SiteConfig              `mapstructure:"site"`
	Browser  collector.BrowserConfig `mapstructure:"browser"`
	Collect  models.Settings         `mapstructure:"collect"`
	Timing   TimingConfig            `mapstructure:"timing"`
	Detect   DetectConfig            `mapstructure:"detect"`
	Storage  storage.Config          `mapstructure:"storage"`
	Export   ExportConfig            `mapstructure:"export"`
	Server   server.Config           `mapstructure:"server"`
	Resource ResourceConfig          `mapstructure:"resource"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Output   OutputConfig            `mapstructure:"output"`
}

// SiteConfig 目标站点
type SiteConfig struct {
	URL        string `mapstructure:"url"`         // 默认采集的信息流页面
	BaseURL    string `mapstructure:"base_url"`    // 解析相对链接的基准
	HostSuffix string `mapstructure:"host_suffix"` // 只接受该域名下的链接
	LoginWait  int    `mapstructure:"login_wait"`  // 打开页面后等待手动登录的秒数
}

// TimingConfig 滚动和等待节奏(毫秒)
type TimingConfig struct {
	SettleMs         int     `mapstructure:"settle_ms"`
	PollMs           int     `mapstructure:"poll_ms"`
	ReadyTimeoutMs   int     `mapstructure:"ready_timeout_ms"`
	IntervalJitterMs int     `mapstructure:"interval_jitter_ms"`
	ErrorBackoffMs   int     `mapstructure:"error_backoff_ms"`
	EmptyRoundLimit  int     `mapstructure:"empty_round_limit"`
	InitialHarvest   bool    `mapstructure:"initial_harvest"`
	ViewportRatio    float64 `mapstructure:"viewport_ratio"`
	MinDistance      float64 `mapstructure:"min_distance"`
	MaxDistance      float64 `mapstructure:"max_distance"`
	MinDurationMs    int     `mapstructure:"min_duration_ms"`
	MaxDurationMs    int     `mapstructure:"max_duration_ms"`
	FrameMs          int     `mapstructure:"frame_ms"`
	BottomThreshold  float64 `mapstructure:"bottom_threshold"`
}

// DetectConfig 智能识别阈值
type DetectConfig struct {
	MinWidth        float64 `mapstructure:"min_width"`
	MinHeight       float64 `mapstructure:"min_height"`
	FrameworkMarker string  `mapstructure:"framework_marker"`
}

// ExportConfig 导出配置
type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
	Format string `mapstructure:"format"` // 会话结束自动导出的格式
	Auto   bool   `mapstructure:"auto"`   // 会话结束后自动导出
}

// ResourceConfig 资源监控配置
type ResourceConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	WarningMB    int  `mapstructure:"warning_mb"`
	CriticalMB   int  `mapstructure:"critical_mb"`
	CPUThreshold int  `mapstructure:"cpu_threshold"`
	IntervalSec  int  `mapstructure:"interval_sec"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"` // 会话报告目录
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".xhscollector"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &config, nil
}

// DefaultConfig 只含默认值的配置
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("site.url", "https://www.xiaohongshu.com/explore")
	v.SetDefault("site.base_url", "https://www.xiaohongshu.com")
	v.SetDefault("site.host_suffix", "xiaohongshu.com")
	v.SetDefault("site.login_wait", 0)

	browser := collector.DefaultBrowserConfig()
	v.SetDefault("browser.headless", browser.Headless)
	v.SetDefault("browser.no_sandbox", browser.NoSandbox)
	v.SetDefault("browser.bin", browser.Bin)
	v.SetDefault("browser.user_data_dir", "data/browser_profile")
	v.SetDefault("browser.stealth", browser.Stealth)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.viewport_width", browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", browser.ViewportHeight)
	v.SetDefault("browser.launch_retries", browser.LaunchRetries)
	v.SetDefault("browser.cookie_domain", browser.CookieDomain)

	settings := models.DefaultSettings()
	v.SetDefault("collect.scroll_speed_factor", settings.ScrollSpeedFactor)
	v.SetDefault("collect.interval_ms", settings.IntervalMs)
	v.SetDefault("collect.max_scrolls", settings.MaxScrolls)
	v.SetDefault("collect.smart_stop", settings.SmartStop)
	v.SetDefault("collect.collect_title", settings.CollectTitle)
	v.SetDefault("collect.collect_author", settings.CollectAuthor)
	v.SetDefault("collect.collect_stats", settings.CollectStats)
	v.SetDefault("collect.collect_images", settings.CollectImages)
	v.SetDefault("collect.collect_time", settings.CollectTime)

	ctrl := collector.DefaultControllerConfig()
	v.SetDefault("timing.settle_ms", ctrl.Readiness.SettleDelay.Milliseconds())
	v.SetDefault("timing.poll_ms", ctrl.Readiness.PollInterval.Milliseconds())
	v.SetDefault("timing.ready_timeout_ms", ctrl.Readiness.Timeout.Milliseconds())
	v.SetDefault("timing.interval_jitter_ms", ctrl.IntervalJitter.Milliseconds())
	v.SetDefault("timing.error_backoff_ms", ctrl.ErrorBackoff.Milliseconds())
	v.SetDefault("timing.empty_round_limit", ctrl.EmptyRoundLimit)
	v.SetDefault("timing.initial_harvest", ctrl.InitialHarvest)
	v.SetDefault("timing.viewport_ratio", ctrl.Scroll.ViewportRatio)
	v.SetDefault("timing.min_distance", ctrl.Scroll.MinDistance)
	v.SetDefault("timing.max_distance", ctrl.Scroll.MaxDistance)
	v.SetDefault("timing.min_duration_ms", ctrl.Scroll.MinDuration.Milliseconds())
	v.SetDefault("timing.max_duration_ms", ctrl.Scroll.MaxDuration.Milliseconds())
	v.SetDefault("timing.frame_ms", ctrl.Scroll.FrameInterval.Milliseconds())
	v.SetDefault("timing.bottom_threshold", ctrl.Scroll.BottomThreshold)

	extract := collector.DefaultExtractorConfig()
	v.SetDefault("detect.min_width", extract.MinWidth)
	v.SetDefault("detect.min_height", extract.MinHeight)
	v.SetDefault("detect.framework_marker", extract.FrameworkMarker)

	store := storage.DefaultConfig()
	v.SetDefault("storage.driver", store.Driver)
	v.SetDefault("storage.path", store.Path)
	v.SetDefault("storage.mongo_uri", store.MongoURI)
	v.SetDefault("storage.database", store.Database)
	v.SetDefault("storage.collection", store.Collection)

	v.SetDefault("export.dir", "output")
	v.SetDefault("export.prefix", "小红书数据")
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.auto", true)

	srv := server.DefaultConfig()
	v.SetDefault("server.addr", srv.Addr)
	v.SetDefault("server.mode", srv.Mode)
	v.SetDefault("server.api_keys", []string{})

	monitor := collector.DefaultResourceMonitorConfig()
	v.SetDefault("resource.enabled", true)
	v.SetDefault("resource.warning_mb", monitor.WarningMemory/(1024*1024))
	v.SetDefault("resource.critical_mb", monitor.CriticalMemory/(1024*1024))
	v.SetDefault("resource.cpu_threshold", monitor.CPULoadThreshold)
	v.SetDefault("resource.interval_sec", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.base_dir", "output")
}

// Validate 检查配置
func (c *Config) Validate() error {
	if err := utils.ValidateURL(c.Site.URL); err != nil {
		return fmt.Errorf("site.url: %w", err)
	}
	if err := c.Collect.Validate(); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if _, err := models.ParseExportFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	if c.Timing.PollMs <= 0 || c.Timing.ReadyTimeoutMs <= 0 {
		return fmt.Errorf("timing: poll_ms 和 ready_timeout_ms 必须大于0")
	}
	if c.Timing.MinDistance <= 0 || c.Timing.MaxDistance < c.Timing.MinDistance {
		return fmt.Errorf("timing: 滚动距离范围无效 [%.0f, %.0f]", c.Timing.MinDistance, c.Timing.MaxDistance)
	}
	if c.Timing.MinDurationMs <= 0 || c.Timing.MaxDurationMs < c.Timing.MinDurationMs {
		return fmt.Errorf("timing: 动画时长范围无效 [%d, %d]", c.Timing.MinDurationMs, c.Timing.MaxDurationMs)
	}
	switch c.Storage.Driver {
	case storage.DriverFile, storage.DriverMongo:
	default:
		return fmt.Errorf("storage.driver: 不支持的存储类型 %q", c.Storage.Driver)
	}
	return nil
}

// ControllerConfig 采集循环参数
func (c *Config) ControllerConfig() collector.ControllerConfig {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	t := c.Timing

	scroll := collector.DefaultScrollConfig()
	scroll.ViewportRatio = t.ViewportRatio
	scroll.MinDistance = t.MinDistance
	scroll.MaxDistance = t.MaxDistance
	scroll.MinDuration = ms(t.MinDurationMs)
	scroll.MaxDuration = ms(t.MaxDurationMs)
	scroll.FrameInterval = ms(t.FrameMs)
	scroll.BottomThreshold = t.BottomThreshold

	return collector.ControllerConfig{
		Scroll: scroll,
		Readiness: collector.ReadinessConfig{
			SettleDelay:  ms(t.SettleMs),
			PollInterval: ms(t.PollMs),
			Timeout:      ms(t.ReadyTimeoutMs),
		},
		IntervalJitter:  ms(t.IntervalJitterMs),
		ErrorBackoff:    ms(t.ErrorBackoffMs),
		EmptyRoundLimit: t.EmptyRoundLimit,
		InitialHarvest:  t.InitialHarvest,
	}
}

// ExtractorConfig 提取器配置
func (c *Config) ExtractorConfig() collector.ExtractorConfig {
	return collector.ExtractorConfig{
		BaseURL:         c.Site.BaseURL,
		HostSuffix:      c.Site.HostSuffix,
		MinWidth:        c.Detect.MinWidth,
		MinHeight:       c.Detect.MinHeight,
		FrameworkMarker: c.Detect.FrameworkMarker,
	}
}

// ResourceMonitorConfig 资源监控配置
func (c *Config) ResourceMonitorConfig() collector.ResourceMonitorConfig {
	return collector.ResourceMonitorConfig{
		WarningMemory:    int64(c.Resource.WarningMB) * 1024 * 1024,
		CriticalMemory:   int64(c.Resource.CriticalMB) * 1024 * 1024,
		CPULoadThreshold: c.Resource.CPUThreshold,
	}
}

// LogConfig 日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// Overrides 命令行参数,零值表示不覆盖
type Overrides struct {
	URL         string
	MaxScrolls  int
	IntervalMs  int
	Speed       float64
	NoSmartStop bool
	Headless    *bool
	UserDataDir string
	Storage     string
	ExportDir   string
	Format      string
	NoExport    bool
	LogLevel    string
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o Overrides) {
	if o.URL != "" {
		c.Site.URL = o.URL
	}
	if o.MaxScrolls > 0 {
		c.Collect.MaxScrolls = o.MaxScrolls
	}
	if o.IntervalMs > 0 {
		c.Collect.IntervalMs = o.IntervalMs
	}
	if o.Speed > 0 {
		c.Collect.ScrollSpeedFactor = o.Speed
	}
	if o.NoSmartStop {
		c.Collect.SmartStop = false
	}
	if o.Headless != nil {
		c.Browser.Headless = *o.Headless
	}
	if o.UserDataDir != "" {
		c.Browser.UserDataDir = o.UserDataDir
	}
	if o.Storage != "" {
		c.Storage.Driver = o.Storage
	}
	if o.ExportDir != "" {
		c.Export.Dir = o.ExportDir
	}
	if o.Format != "" {
		c.Export.Format = o.Format
	}
	if o.NoExport {
		c.Export.Auto = false
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}
