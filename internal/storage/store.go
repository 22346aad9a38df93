// Package storage 累积记录和会话配置的持久化
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
)

const (
	DriverFile  = "file"
	DriverMongo = "mongo"
)

// Config 存储配置
type Config struct {
	Driver     string `mapstructure:"driver"`      // file 或 mongo
	Path       string `mapstructure:"path"`        // file: 快照文件路径
	MongoURI   string `mapstructure:"mongo_uri"`   // mongo: 连接串
	Database   string `mapstructure:"database"`    // mongo: 数据库名
	Collection string `mapstructure:"collection"` // mongo: 记录集合名
}

// DefaultConfig 默认使用本地JSON快照
func DefaultConfig() Config {
	return Config{
		Driver:     DriverFile,
		Path:       "data/collector_state.json",
		MongoURI:   "mongodb://localhost:27017",
		Database:   "xhs_collector",
		Collection: "records",
	}
}

// Store 可关闭的Repository
type Store interface {
	collector.Repository
	Close() error
}

// Open 按driver打开存储
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverFile:
		return NewFileStore(cfg.Path), nil
	case DriverMongo:
		return NewMongoStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s (可选 file, mongo)", cfg.Driver)
	}
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MongoStore)(nil)
)
