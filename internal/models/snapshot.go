package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotVersion 快照格式版本
const SnapshotVersion = "1.0"

// Snapshot 持久化的采集状态
type Snapshot struct {
	Version   string    `json:"version"`
	Records   []Record  `json:"records"`
	Settings  *Settings `json:"settings,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToJSON 序列化为JSON
func (s *Snapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON 从JSON反序列化
func (s *Snapshot) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}

// SaveToFile 保存到文件
// 先写临时文件再重命名,避免中断时留下半截文件
func (s *Snapshot) SaveToFile(path string) error {
	if s.Version == "" {
		s.Version = SnapshotVersion
	}
	s.UpdatedAt = time.Now()

	data, err := s.ToJSON()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建快照目录失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入临时快照失败: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSnapshotFromFile 从文件加载
func LoadSnapshotFromFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := s.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}

	return &s, nil
}
