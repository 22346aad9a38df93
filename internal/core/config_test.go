package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Site.URL != "https://www.xiaohongshu.com/explore" {
		t.Errorf("site.url = %q", cfg.Site.URL)
	}
	if cfg.Collect.IntervalMs != 3000 || cfg.Collect.MaxScrolls != 100 || !cfg.Collect.SmartStop {
		t.Errorf("采集默认值错误: %+v", cfg.Collect)
	}
	if cfg.Storage.Driver != storage.DriverFile {
		t.Errorf("storage.driver = %q, 期望 %q", cfg.Storage.Driver, storage.DriverFile)
	}
	if cfg.Browser.UserAgent != DefaultUserAgent {
		t.Errorf("browser.user_agent = %q", cfg.Browser.UserAgent)
	}
	if cfg.Resource.WarningMB != 500 || cfg.Resource.CriticalMB != 200 {
		t.Errorf("资源阈值错误: %+v", cfg.Resource)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("默认配置应通过验证: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `site:
  url: "https://www.xiaohongshu.com/search_result?keyword=test"
collect:
  interval_ms: 1500
  smart_stop: false
  collect_images: false
storage:
  driver: mongo
  mongo_uri: "mongodb://127.0.0.1:27017"
timing:
  ready_timeout_ms: 8000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() 出错: %v", err)
	}

	if cfg.Site.URL != "https://www.xiaohongshu.com/search_result?keyword=test" {
		t.Errorf("site.url = %q", cfg.Site.URL)
	}
	if cfg.Collect.IntervalMs != 1500 {
		t.Errorf("interval_ms = %d, 期望 1500", cfg.Collect.IntervalMs)
	}
	if cfg.Collect.SmartStop || cfg.Collect.CollectImages {
		t.Error("配置文件中的布尔值应覆盖默认值")
	}
	if !cfg.Collect.CollectTitle {
		t.Error("未配置的字段应保留默认值")
	}
	if cfg.Collect.MaxScrolls != 100 {
		t.Errorf("max_scrolls = %d, 期望默认值 100", cfg.Collect.MaxScrolls)
	}
	if cfg.Storage.Driver != storage.DriverMongo {
		t.Errorf("storage.driver = %q", cfg.Storage.Driver)
	}
	if got := cfg.ControllerConfig().Readiness.Timeout; got != 8*time.Second {
		t.Errorf("Readiness.Timeout = %v, 期望 8s", got)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("显式指定的配置文件不存在时应报错")
	}
}

func TestMergeCLIFlags(t *testing.T) {
	headless := false
	cfg := DefaultConfig()
	cfg.MergeCLIFlags(Overrides{
		URL:         "https://www.xiaohongshu.com/user/profile/abc",
		MaxScrolls:  20,
		Speed:       1.5,
		NoSmartStop: true,
		Headless:    &headless,
		Format:      "json",
		NoExport:    true,
	})

	if cfg.Site.URL != "https://www.xiaohongshu.com/user/profile/abc" {
		t.Errorf("site.url = %q", cfg.Site.URL)
	}
	if cfg.Collect.MaxScrolls != 20 || cfg.Collect.ScrollSpeedFactor != 1.5 {
		t.Errorf("采集参数未覆盖: %+v", cfg.Collect)
	}
	if cfg.Collect.SmartStop {
		t.Error("--no-smart-stop 应关闭智能停止")
	}
	if cfg.Browser.Headless {
		t.Error("--headless=false 应生效")
	}
	if cfg.Export.Format != "json" || cfg.Export.Auto {
		t.Errorf("导出参数未覆盖: %+v", cfg.Export)
	}
	if cfg.Collect.IntervalMs != 3000 {
		t.Error("零值参数不应覆盖配置")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"无效URL", func(c *Config) { c.Site.URL = "not a url" }},
		{"速度越界", func(c *Config) { c.Collect.ScrollSpeedFactor = 5.1 }},
		{"速度为零", func(c *Config) { c.Collect.ScrollSpeedFactor = 0 }},
		{"间隔为零", func(c *Config) { c.Collect.IntervalMs = 0 }},
		{"未知导出格式", func(c *Config) { c.Export.Format = "pdf" }},
		{"距离范围颠倒", func(c *Config) { c.Timing.MaxDistance = 50 }},
		{"未知存储", func(c *Config) { c.Storage.Driver = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("期望验证失败")
			}
		})
	}
}

func TestControllerConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.ControllerConfig()
	want := collector.DefaultControllerConfig()

	if got.Scroll != want.Scroll {
		t.Errorf("Scroll = %+v, 期望 %+v", got.Scroll, want.Scroll)
	}
	if got.Readiness != want.Readiness {
		t.Errorf("Readiness = %+v, 期望 %+v", got.Readiness, want.Readiness)
	}
	if got.ErrorBackoff != want.ErrorBackoff || got.EmptyRoundLimit != want.EmptyRoundLimit {
		t.Errorf("ControllerConfig = %+v", got)
	}

	if ext := cfg.ExtractorConfig(); ext != collector.DefaultExtractorConfig() {
		t.Errorf("ExtractorConfig = %+v", ext)
	}
	if mon := cfg.ResourceMonitorConfig(); mon != collector.DefaultResourceMonitorConfig() {
		t.Errorf("ResourceMonitorConfig = %+v", mon)
	}
}
