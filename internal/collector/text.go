package collector

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxTextLength 文本字段最大长度(字符)
const MaxTextLength = 200

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	countRe      = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*([万千wWkK])?`)

	publishTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`),
		regexp.MustCompile(`^\d{1,2}-\d{1,2}$`),
		regexp.MustCompile(`^\d{1,2}月\d{1,2}日$`),
		regexp.MustCompile(`^\d+\s*(秒|分钟|分|小时|时|天|周|个月|年)前$`),
		regexp.MustCompile(`^(昨天|今天|前天)(\s*\d{1,2}:\d{2})?$`),
		regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`),
	}
)

// CleanText 去除首尾空白,合并连续空白,并截断到MaxTextLength个字符
func CleanText(s string) string {
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	if utf8.RuneCountInString(s) > MaxTextLength {
		s = string([]rune(s)[:MaxTextLength])
	}
	return s
}

// ParseCount 从文本中解析计数,支持 "1.2万" "3千" "1.5w" "2k"
// 没有数字或数值超出int64范围时返回false
func ParseCount(text string) (int64, bool) {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "万", "w", "W":
		n *= 10000
	case "千", "k", "K":
		n *= 1000
	}
	if n < 0 || n >= math.MaxInt64 {
		return 0, false
	}
	return int64(math.Floor(n)), true
}

// IsPublishTime 文本是否是可识别的发布时间格式
func IsPublishTime(text string) bool {
	for _, re := range publishTimePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// NormalizeURL 将相对地址解析为绝对地址,去掉片段
func NormalizeURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Scheme = strings.ToLower(abs.Scheme)
	abs.Host = strings.ToLower(abs.Host)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
