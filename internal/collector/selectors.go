package collector

import "strings"

// 各字段的候选选择器,按站点改版历史从新到旧排列
var (
	containerMatchers = MustCompileList(
		`section.note-item`,
		`section[class*="note-item"]`,
		`[data-testid="note-item"]`,
		`.note-item`,
		`.feeds-page .note-item`,
		`.search-page .note-item`,
		`.explore-feed .note-item`,
		`section[class*="note"]`,
		`article[class*="note"]`,
		`.card[class*="note"]`,
	)

	titleMatchers = MustCompileList(
		`.footer .title span`,
		`.footer .title`,
		`.title span`,
		`.title`,
		`.note-title`,
		`[class*="title"]`,
		`a[href*="/explore/"] span`,
		`.content .title`,
		`h3`,
		`h4`,
		`.text-content`,
	)

	authorMatchers = MustCompileList(
		`.author .name span`,
		`.author-wrapper .author .name`,
		`.author .name`,
		`.author-wrapper .name`,
		`.author`,
		`.user-name`,
		`[class*="author"]`,
		`[class*="user"]`,
		`.avatar-wrapper + span`,
		`.user-info .name`,
		`.creator-name`,
	)

	imageMatchers = MustCompileList(
		`.cover img`,
		`a.cover img`,
		`img`,
		`.image img`,
		`.thumbnail img`,
		`.media img`,
	)

	linkMatchers = MustCompileList(
		`a.cover[href*="/search_result/"]`,
		`a[href*="/search_result/"]`,
		`a.cover[href*="/explore/"]`,
		`a[href*="/explore/"]`,
		`a[href*="/discovery/"]`,
		`a[href*="/note/"]`,
		`.note-link`,
	)

	timeMatchers = MustCompileList(
		`.time span`,
		`.time`,
		`.publish-time`,
		`.date`,
		`[class*="time"]`,
		`[class*="date"]`,
	)

	// 标题兜底: 详情链接自身的文字
	titleFallbackMatchers = MustCompileList(`a[href*="/explore/"]`)

	likeCountMatchers = MustCompileList(`.like-wrapper .count`)
	statCandidates    = MustCompileList(`span, div, p`)

	// 智能识别
	detectCandidates = MustCompileList(
		`section, article, div[class*="item"], div[class*="card"], div[class*="note"]`,
	)
	knownItemMatcher    = MustCompileList(`section.note-item`)[0]
	detectLinkMatchers  = MustCompileList(`a[href*="/explore/"], a[href*="/note/"], a.cover`)
	detectImageMatchers = MustCompileList(`img`)
	detectTextMatchers  = MustCompileList(`.title, .footer .title`, `.author, .name`)
)

// ContainerSelector 所有容器模式的并集,用于在页面中统计条目数
func ContainerSelector() string {
	return strings.Join(containerMatchers.Patterns(), ", ")
}

// DetectCandidateSelector 智能识别候选节点选择器,供浏览器标注尺寸
func DetectCandidateSelector() string {
	return detectCandidates[0].Pattern
}
