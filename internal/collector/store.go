package collector

import (
	"github.com/RecoveryAshes/XHSCollector/internal/models"
)

// RecordStore 按URL去重的累积记录集,保持插入顺序
// 会话内只追加,清空只能通过Reset
// 不是并发安全的,由Controller加锁保护
type RecordStore struct {
	records []models.Record
	seen    map[string]struct{}
}

// NewRecordStore 创建记录集,initial中重复的URL只保留第一条
func NewRecordStore(initial []models.Record) *RecordStore {
	s := &RecordStore{
		records: make([]models.Record, 0, len(initial)),
		seen:    make(map[string]struct{}, len(initial)),
	}
	s.Merge(initial)
	return s
}

// Merge 按顺序追加未见过的记录,返回接受的条数
// 批次内的重复同样只保留第一条
func (s *RecordStore) Merge(records []models.Record) int {
	accepted := 0
	for _, r := range records {
		if r.URL == "" {
			continue
		}
		if _, dup := s.seen[r.URL]; dup {
			continue
		}
		s.seen[r.URL] = struct{}{}
		s.records = append(s.records, r)
		accepted++
	}
	return accepted
}

// Len 记录数
func (s *RecordStore) Len() int {
	return len(s.records)
}

// Contains 是否已有该URL
func (s *RecordStore) Contains(url string) bool {
	_, ok := s.seen[url]
	return ok
}

// Records 返回全部记录的副本
func (s *RecordStore) Records() []models.Record {
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Since 返回从第n条开始的记录副本
func (s *RecordStore) Since(n int) []models.Record {
	if n < 0 {
		n = 0
	}
	if n >= len(s.records) {
		return nil
	}
	out := make([]models.Record, len(s.records)-n)
	copy(out, s.records[n:])
	return out
}

// Reset 清空
func (s *RecordStore) Reset() {
	s.records = s.records[:0]
	s.seen = make(map[string]struct{})
}
