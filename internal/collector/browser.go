package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

var (
	ErrBrowserCrashed    = errors.New("浏览器崩溃")
	ErrMaxRetriesReached = errors.New("已达最大重试次数")
)

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless"`
	NoSandbox      bool   `mapstructure:"no_sandbox"`
	Bin            string `mapstructure:"bin"`           // 浏览器可执行文件,为空时自动查找或下载
	UserDataDir    string `mapstructure:"user_data_dir"` // 用户数据目录,保留登录状态
	Stealth        bool   `mapstructure:"stealth"`
	UserAgent      string `mapstructure:"user_agent"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	LaunchRetries  int    `mapstructure:"launch_retries"`
	CookieDomain   string `mapstructure:"cookie_domain"` // Cookie头注入的域
}

// DefaultBrowserConfig 默认浏览器配置
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:       false,
		Stealth:        true,
		ViewportWidth:  1366,
		ViewportHeight: 900,
		LaunchRetries:  3,
		CookieDomain:   ".xiaohongshu.com",
	}
}

// BrowserSession 基于go-rod的Page实现
type BrowserSession struct {
	cfg     BrowserConfig
	browser *rod.Browser
	page    *rod.Page
}

// 快照前给智能识别候选节点标注渲染尺寸
const annotateSizeJS = `(sel, attr) => {
	document.querySelectorAll(sel).forEach(el => {
		const r = el.getBoundingClientRect();
		el.setAttribute(attr, Math.round(r.width) + 'x' + Math.round(r.height));
	});
	return true;
}`

const metricsJS = `() => ({
	y: window.pageYOffset || document.documentElement.scrollTop || 0,
	vh: window.innerHeight,
	ch: Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)
})`

// LaunchBrowser 启动浏览器并打开一个标签页,启动失败时按配置重试
func LaunchBrowser(cfg BrowserConfig, headers models.HeaderProvider) (*BrowserSession, error) {
	retries := cfg.LaunchRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		bs, err := launchOnce(cfg, headers)
		if err == nil {
			return bs, nil
		}
		lastErr = err
		if attempt < retries {
			utils.Warnf("浏览器启动失败,准备重启(重试%d/%d): %v", attempt+1, retries, err)
			time.Sleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesReached, lastErr)
}

func launchOnce(cfg BrowserConfig, headers models.HeaderProvider) (bs *BrowserSession, err error) {
	// rod 的 Must* 系列以panic报错
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBrowserCrashed, r)
		}
	}()

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已启动: %s", controlURL)

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	bs = &BrowserSession{cfg: cfg, browser: browser, page: page}
	if err := bs.setup(headers); err != nil {
		_ = browser.Close()
		return nil, err
	}
	return bs, nil
}

func (bs *BrowserSession) setup(provider models.HeaderProvider) error {
	if bs.cfg.ViewportWidth > 0 && bs.cfg.ViewportHeight > 0 {
		err := bs.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             bs.cfg.ViewportWidth,
			Height:            bs.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return fmt.Errorf("设置视口失败: %w", err)
		}
	}

	if bs.cfg.UserAgent != "" {
		if err := bs.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bs.cfg.UserAgent}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	if provider == nil {
		return nil
	}
	headers, err := provider.GetHeaders()
	if err != nil {
		return fmt.Errorf("获取额外请求头失败: %w", err)
	}
	return bs.applyHeaders(headers)
}

// applyHeaders Cookie写入浏览器Cookie库,其余作为额外请求头
func (bs *BrowserSession) applyHeaders(headers http.Header) error {
	dict := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		if strings.EqualFold(name, "Cookie") {
			if err := bs.setCookies(values[0]); err != nil {
				return err
			}
			continue
		}
		dict = append(dict, name, values[0])
	}

	if len(dict) > 0 {
		if _, err := bs.page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("设置额外请求头失败: %w", err)
		}
		utils.Debugf("已注入 %d 个额外请求头", len(dict)/2)
	}
	return nil
}

func (bs *BrowserSession) setCookies(raw string) error {
	cookies := ParseCookieHeader(raw)
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: bs.cfg.CookieDomain,
			Path:   "/",
		})
	}
	if len(params) == 0 {
		return nil
	}
	if err := bs.page.SetCookies(params); err != nil {
		return fmt.Errorf("写入Cookie失败: %w", err)
	}
	utils.Infof("🍪 已写入 %d 个Cookie", len(params))
	return nil
}

// ParseCookieHeader 解析 "a=1; b=2" 形式的Cookie头
func ParseCookieHeader(raw string) []*http.Cookie {
	header := http.Header{}
	header.Add("Cookie", raw)
	req := http.Request{Header: header}
	return req.Cookies()
}

// Open 打开目标页面并等待DOM稳定
func (bs *BrowserSession) Open(ctx context.Context, target string) error {
	p := bs.page.Context(ctx)
	if err := p.Navigate(target); err != nil {
		return fmt.Errorf("打开页面失败 %s: %w", target, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		utils.Debugf("DOM未稳定,使用当前内容继续: %v", err)
	}
	utils.Infof("🌐 已打开页面: %s", target)
	return nil
}

// CurrentURL 当前页面地址
func (bs *BrowserSession) CurrentURL() string {
	info, err := bs.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Snapshot 实现Page
func (bs *BrowserSession) Snapshot(ctx context.Context) (*goquery.Document, error) {
	p := bs.page.Context(ctx)
	if _, err := p.Eval(annotateSizeJS, DetectCandidateSelector(), SizeAttr); err != nil {
		return nil, fmt.Errorf("标注节点尺寸失败: %w", err)
	}
	content, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("读取页面HTML失败: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("解析页面HTML失败: %w", err)
	}
	if u, err := url.Parse(bs.CurrentURL()); err == nil {
		doc.Url = u
	}
	return doc, nil
}

// Metrics 实现Page
func (bs *BrowserSession) Metrics(ctx context.Context) (PageMetrics, error) {
	res, err := bs.page.Context(ctx).Eval(metricsJS)
	if err != nil {
		return PageMetrics{}, err
	}
	return PageMetrics{
		ScrollY:        res.Value.Get("y").Num(),
		ViewportHeight: res.Value.Get("vh").Num(),
		ContentHeight:  res.Value.Get("ch").Num(),
	}, nil
}

// ScrollTo 实现Page
func (bs *BrowserSession) ScrollTo(ctx context.Context, y float64) error {
	_, err := bs.page.Context(ctx).Eval(`(y) => window.scrollTo(0, y)`, y)
	return err
}

// CountMatches 实现Page
func (bs *BrowserSession) CountMatches(ctx context.Context, selector string) (int, error) {
	res, err := bs.page.Context(ctx).Eval(`(sel) => document.querySelectorAll(sel).length`, selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// Close 关闭浏览器
func (bs *BrowserSession) Close() error {
	if bs.browser == nil {
		return nil
	}
	err := bs.browser.Close()
	bs.browser = nil
	utils.Debugf("浏览器已关闭")
	return err
}
