package collector

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// SizeAttr 浏览器快照时写在候选节点上的渲染尺寸,格式 "宽x高"
const SizeAttr = "data-xhs-size"

// maxStatTextLen 统计数字所在元素的最大文本长度,更长的通常是整块容器
const maxStatTextLen = 20

var (
	ErrNoLink        = errors.New("未找到详情链接")
	ErrInvalidRecord = errors.New("记录缺少标题、作者和图片")
	ErrForeignHost   = errors.New("链接不属于目标站点")
	ErrExtractFault  = errors.New("提取过程异常")
)

var (
	likeLabelRe    = regexp.MustCompile(`(?i)(点赞|赞|like)`)
	collectLabelRe = regexp.MustCompile(`(?i)(收藏|collect)`)
	commentLabelRe = regexp.MustCompile(`(?i)(评论|comment)`)

	imageSourceAttrs = []string{"src", "data-src", "data-original", "data-lazy-src"}
)

// ExtractorConfig 提取器配置
type ExtractorConfig struct {
	BaseURL    string // 解析相对链接的基准地址
	HostSuffix string // 详情链接主机名后缀,为空不过滤

	// 智能识别阈值
	MinWidth        float64
	MinHeight       float64
	FrameworkMarker string // 前端框架在节点上留下的属性名前缀,为空不检查
}

// DefaultExtractorConfig 默认提取器配置
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		BaseURL:         "https://www.xiaohongshu.com",
		HostSuffix:      "xiaohongshu.com",
		MinWidth:        100,
		MinHeight:       100,
		FrameworkMarker: "data-v-",
	}
}

// Extractor 从页面快照中提取记录
type Extractor struct {
	cfg  ExtractorConfig
	base *url.URL
	now  func() time.Time
}

// NewExtractor 创建提取器
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("无效的站点基准地址 %q: %v", cfg.BaseURL, err)
	}
	return &Extractor{cfg: cfg, base: base, now: time.Now}, nil
}

// Extract 提取当前快照中所有有效记录,按文档顺序返回
// 单个容器出错只会跳过该容器
func (e *Extractor) Extract(doc *goquery.Document, settings models.Settings) []models.Record {
	containers := e.findContainers(doc.Selection)
	if containers == nil || containers.Length() == 0 {
		return nil
	}

	now := e.now().UnixMilli()
	records := make([]models.Record, 0, containers.Length())
	skipped := 0
	containers.Each(func(i int, s *goquery.Selection) {
		rec, err := e.extractOne(s, settings, now)
		if err != nil {
			skipped++
			if errors.Is(err, ErrExtractFault) {
				utils.Warnf("第%d个条目提取异常,已跳过: %v", i+1, err)
			}
			return
		}
		records = append(records, rec)
	})

	utils.Debugf("本轮提取: 容器%d个, 有效%d条, 跳过%d个", containers.Length(), len(records), skipped)
	return records
}

// findContainers 先按已知模式找容器,全部落空时走智能识别
func (e *Extractor) findContainers(root *goquery.Selection) *goquery.Selection {
	if m, found, ok := containerMatchers.FirstNonEmpty(root); ok {
		utils.Debugf("容器选择器 %s 命中 %d 个", m.Pattern, found.Length())
		return found
	}

	detected := e.detect(root)
	if detected.Length() > 0 {
		utils.Debugf("🔍 智能识别找到 %d 个条目", detected.Length())
	}
	return detected
}

// detect 智能识别: 在通用卡片类节点中筛出像笔记条目的,只保留最内层
func (e *Extractor) detect(root *goquery.Selection) *goquery.Selection {
	accepted := detectCandidates[0].Find(root).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return e.looksLikeItem(s)
	})
	if accepted.Length() < 2 {
		return accepted
	}

	set := make(map[*html.Node]bool, accepted.Length())
	for _, n := range accepted.Nodes {
		set[n] = true
	}
	outer := make(map[*html.Node]bool)
	for _, n := range accepted.Nodes {
		for p := n.Parent; p != nil; p = p.Parent {
			if set[p] {
				outer[p] = true
			}
		}
	}
	return accepted.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !outer[s.Nodes[0]]
	})
}

// looksLikeItem 候选节点必须同时满足: 有详情链接、有图片、有标题或作者、
// 渲染尺寸达到阈值、带前端框架标记
func (e *Extractor) looksLikeItem(s *goquery.Selection) bool {
	if knownItemMatcher.Is(s) {
		return true
	}
	if !detectLinkMatchers.Any(s) || !detectImageMatchers.Any(s) || !detectTextMatchers.Any(s) {
		return false
	}
	w, h, ok := renderedSize(s)
	if !ok || w < e.cfg.MinWidth || h < e.cfg.MinHeight {
		return false
	}
	if e.cfg.FrameworkMarker != "" && !hasAttrPrefix(s.Nodes[0], e.cfg.FrameworkMarker) {
		return false
	}
	return true
}

func (e *Extractor) extractOne(s *goquery.Selection, settings models.Settings, now int64) (rec models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrExtractFault, r)
		}
	}()

	link, ok := linkMatchers.FirstValue(s, func(n *goquery.Selection) string {
		v, _ := NormalizeURL(e.base, n.AttrOr("href", ""))
		return v
	})
	if !ok {
		return rec, ErrNoLink
	}
	if e.cfg.HostSuffix != "" && !e.sameSite(link) {
		return rec, ErrForeignHost
	}
	rec.URL = link
	rec.CollectedAt = now

	if settings.CollectTitle {
		if v, ok := titleMatchers.FirstValue(s, cleanedText); ok {
			rec.Title = &v
		} else if v, ok := titleFallbackMatchers.FirstValue(s, cleanedText); ok {
			rec.Title = &v
		}
	}

	if settings.CollectAuthor {
		if v, ok := authorMatchers.FirstValue(s, cleanedText); ok {
			rec.Author = &v
		}
	}

	if settings.CollectImages {
		if v, ok := imageMatchers.FirstValue(s, e.imageSource); ok {
			rec.ImageURL = &v
		}
	}

	if settings.CollectTime {
		if v, ok := timeMatchers.FirstValue(s, publishTimeText); ok {
			rec.PublishTime = &v
		}
	}

	if settings.CollectStats {
		extractStats(s, &rec)
	}

	if !rec.Valid() {
		return rec, ErrInvalidRecord
	}
	return rec, nil
}

func (e *Extractor) sameSite(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == e.cfg.HostSuffix || strings.HasSuffix(host, "."+e.cfg.HostSuffix)
}

// imageSource 按 src → data-src → data-original → data-lazy-src 取图片地址,跳过内联占位图
func (e *Extractor) imageSource(img *goquery.Selection) string {
	for _, attr := range imageSourceAttrs {
		raw := strings.TrimSpace(img.AttrOr(attr, ""))
		if raw == "" || strings.HasPrefix(raw, "data:") {
			continue
		}
		if v, ok := NormalizeURL(e.base, raw); ok {
			return v
		}
	}
	return ""
}

func cleanedText(s *goquery.Selection) string {
	return CleanText(s.Text())
}

func publishTimeText(s *goquery.Selection) string {
	text := CleanText(s.Text())
	if IsPublishTime(text) {
		return text
	}
	return ""
}

// extractStats 点赞优先取 .like-wrapper .count,其余字段扫描短文本元素,
// 按文字标签或自身/父节点class判断归属,每个字段只赋值一次
func extractStats(s *goquery.Selection, rec *models.Record) {
	if v, ok := likeCountMatchers.FirstValue(s, cleanedText); ok {
		if n, ok := ParseCount(v); ok {
			rec.Likes = &n
		}
	}

	statCandidates[0].Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if rec.Likes != nil && rec.Collects != nil && rec.Comments != nil {
			return false
		}
		text := strings.TrimSpace(el.Text())
		if text == "" || utf8.RuneCountInString(text) > maxStatTextLen {
			return true
		}
		n, ok := ParseCount(text)
		if !ok {
			return true
		}

		class := strings.ToLower(el.AttrOr("class", ""))
		parentClass := strings.ToLower(el.Parent().AttrOr("class", ""))
		hint := func(word string) bool {
			return strings.Contains(class, word) || strings.Contains(parentClass, word)
		}
		// 标题和作者里出现的数字不是统计值
		if hint("title") || hint("author") || hint("name") {
			return true
		}

		switch {
		case rec.Likes == nil && (likeLabelRe.MatchString(text) || hint("like")):
			rec.Likes = &n
		case rec.Collects == nil && (collectLabelRe.MatchString(text) || hint("collect")):
			rec.Collects = &n
		case rec.Comments == nil && (commentLabelRe.MatchString(text) || hint("comment")):
			rec.Comments = &n
		}
		return true
	})
}

// renderedSize 读取快照时标注的渲染尺寸
func renderedSize(s *goquery.Selection) (w, h float64, ok bool) {
	raw, exists := s.Attr(SizeAttr)
	if !exists {
		return 0, 0, false
	}
	ws, hs, found := strings.Cut(raw, "x")
	if !found {
		return 0, 0, false
	}
	w, errW := strconv.ParseFloat(strings.TrimSpace(ws), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(hs), 64)
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return w, h, true
}

func hasAttrPrefix(n *html.Node, prefix string) bool {
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, prefix) {
			return true
		}
	}
	return false
}
