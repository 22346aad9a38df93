package models

import (
	"time"
)

// Record 从信息流中采集到的一条笔记元数据
// URL 是唯一标识,其余字段均为可选,缺失时为nil
type Record struct {
	URL         string  `json:"url" bson:"url"`
	Title       *string `json:"title,omitempty" bson:"title,omitempty"`
	Author      *string `json:"author,omitempty" bson:"author,omitempty"`
	Likes       *int64  `json:"likes,omitempty" bson:"likes,omitempty"`
	Collects    *int64  `json:"collects,omitempty" bson:"collects,omitempty"`
	Comments    *int64  `json:"comments,omitempty" bson:"comments,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	PublishTime *string `json:"publishTime,omitempty" bson:"publishTime,omitempty"`
	CollectedAt int64   `json:"collectedAt" bson:"collectedAt"` // Unix毫秒
}

// Valid 判断记录是否"看起来像"一条笔记
// 必须有URL,且标题/作者/图片至少其一
func (r Record) Valid() bool {
	if r.URL == "" {
		return false
	}
	return r.Title != nil || r.Author != nil || r.ImageURL != nil
}

// CollectedTime 返回采集时间
func (r Record) CollectedTime() time.Time {
	return time.UnixMilli(r.CollectedAt)
}

// StringValue 解引用可选字符串,nil返回空串
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// String 返回字符串指针
func String(s string) *string {
	return &s
}

// Int64 返回int64指针
func Int64(n int64) *int64 {
	return &n
}
