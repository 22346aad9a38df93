package collector

import (
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{"纯数字", "328", 328, true},
		{"万单位", "1.2万", 12000, true},
		{"千单位", "3千", 3000, true},
		{"小数万向下取整", "1.23456万", 12345, true},
		{"w单位", "1.5w", 15000, true},
		{"k单位", "2k", 2000, true},
		{"带标签", "点赞 56", 56, true},
		{"无数字", "赞", 0, false},
		{"空字符串", "", 0, false},
		{"小于一万", "0.29万", 2900, true},
		{"超出范围", "99999999999999999999", 0, false},
		{"万单位超出范围", "9999999999999999万", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCount(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseCount(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsPublishTime(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"2024-03-15", true},
		{"03-15", true},
		{"3月15日", true},
		{"5分钟前", true},
		{"2小时前", true},
		{"3天前", true},
		{"昨天 12:30", true},
		{"今天", true},
		{"2024/3/15", true},
		{"编辑于", false},
		{"上海", false},
		{"1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsPublishTime(tt.input); got != tt.want {
				t.Errorf("IsPublishTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  周末\n\t 咖啡   探店 "); got != "周末 咖啡 探店" {
		t.Errorf("CleanText() = %q", got)
	}

	long := strings.Repeat("字", MaxTextLength+50)
	if got := CleanText(long); utf8.RuneCountInString(got) != MaxTextLength {
		t.Errorf("截断后长度 = %d, want %d", utf8.RuneCountInString(got), MaxTextLength)
	}
}

func TestNormalizeURL(t *testing.T) {
	base, _ := url.Parse("https://www.xiaohongshu.com")

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"相对路径", "/explore/abc", "https://www.xiaohongshu.com/explore/abc", true},
		{"保留查询参数", "/search_result/abc?xsec_token=t1", "https://www.xiaohongshu.com/search_result/abc?xsec_token=t1", true},
		{"去掉片段", "https://WWW.XiaoHongShu.com/explore/abc#comments", "https://www.xiaohongshu.com/explore/abc", true},
		{"协议相对地址", "//sns-img.xhscdn.com/1.jpg", "https://sns-img.xhscdn.com/1.jpg", true},
		{"javascript伪链接", "javascript:void(0)", "", false},
		{"data地址", "data:image/png;base64,xx", "", false},
		{"空字符串", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeURL(base, tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeURL(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
