package collector

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Matcher 编译后的选择器,保留原始模式便于日志
type Matcher struct {
	Pattern string
	sel     cascadia.Selector
}

// MatcherList 按优先级排列的选择器列表,先命中者胜出
type MatcherList []Matcher

// MustCompileList 编译选择器列表,模式非法时panic(仅用于包级常量)
func MustCompileList(patterns ...string) MatcherList {
	list := make(MatcherList, 0, len(patterns))
	for _, p := range patterns {
		list = append(list, Matcher{Pattern: p, sel: cascadia.MustCompile(p)})
	}
	return list
}

// CompileList 编译选择器列表
func CompileList(patterns ...string) (MatcherList, error) {
	list := make(MatcherList, 0, len(patterns))
	for _, p := range patterns {
		sel, err := cascadia.Compile(p)
		if err != nil {
			return nil, err
		}
		list = append(list, Matcher{Pattern: p, sel: sel})
	}
	return list, nil
}

// Find 在scope的后代中查找匹配节点
func (m Matcher) Find(scope *goquery.Selection) *goquery.Selection {
	return scope.FindMatcher(m.sel)
}

// Is scope本身是否匹配
func (m Matcher) Is(scope *goquery.Selection) bool {
	return scope.IsMatcher(m.sel)
}

// FirstValue 依次尝试每个选择器,对每个选择器的首个命中节点调用read,
// 返回第一个非空结果
func (l MatcherList) FirstValue(scope *goquery.Selection, read func(*goquery.Selection) string) (string, bool) {
	for _, m := range l {
		node := m.Find(scope).First()
		if node.Length() == 0 {
			continue
		}
		if v := read(node); v != "" {
			return v, true
		}
	}
	return "", false
}

// FirstNonEmpty 返回第一个有命中的选择器及其全部命中节点
func (l MatcherList) FirstNonEmpty(scope *goquery.Selection) (Matcher, *goquery.Selection, bool) {
	for _, m := range l {
		found := m.Find(scope)
		if found.Length() > 0 {
			return m, found, true
		}
	}
	return Matcher{}, nil, false
}

// Any 任一选择器在scope后代中有命中
func (l MatcherList) Any(scope *goquery.Selection) bool {
	for _, m := range l {
		if m.Find(scope).Length() > 0 {
			return true
		}
	}
	return false
}

// Patterns 原始模式列表
func (l MatcherList) Patterns() []string {
	out := make([]string, 0, len(l))
	for _, m := range l {
		out = append(out, m.Pattern)
	}
	return out
}
