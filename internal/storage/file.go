package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// FileStore 把记录和配置保存在同一个JSON快照文件里
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore 创建文件存储,文件在第一次写入时创建
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultConfig().Path
	}
	return &FileStore{path: path}
}

// Path 快照文件路径
func (s *FileStore) Path() string {
	return s.path
}

// load 读取快照,文件不存在时返回空快照
func (s *FileStore) load() (*models.Snapshot, error) {
	snap, err := models.LoadSnapshotFromFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &models.Snapshot{Version: models.SnapshotVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取快照 %s 失败: %w", s.path, err)
	}
	return snap, nil
}

func (s *FileStore) update(fn func(snap *models.Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}
	fn(snap)
	if err := snap.SaveToFile(s.path); err != nil {
		return fmt.Errorf("保存快照 %s 失败: %w", s.path, err)
	}
	return nil
}

// SaveRecords 覆盖保存全部记录
func (s *FileStore) SaveRecords(ctx context.Context, records []models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []models.Record{}
	}
	return s.update(func(snap *models.Snapshot) {
		snap.Records = records
	})
}

// LoadRecords 读取全部记录
func (s *FileStore) LoadRecords(ctx context.Context) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(snap.Records) > 0 {
		utils.Infof("📂 从 %s 恢复 %d 条记录", s.path, len(snap.Records))
	}
	return snap.Records, nil
}

// SaveSettings 保存会话配置
func (s *FileStore) SaveSettings(ctx context.Context, settings models.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(snap *models.Snapshot) {
		snap.Settings = &settings
	})
}

// LoadSettings 读取会话配置,从未保存过时返回nil
func (s *FileStore) LoadSettings(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	return snap.Settings, nil
}

// Clear 清空记录,保留会话配置
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		// 快照损坏时直接删除
		utils.Warnf("快照无法解析,将被删除: %v", err)
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("删除快照失败: %w", rmErr)
		}
		return nil
	}
	snap.Records = []models.Record{}
	return snap.SaveToFile(s.path)
}

// Close 文件存储无需释放资源
func (s *FileStore) Close() error {
	return nil
}
