// Package server 采集会话的HTTP控制接口
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// Commander 会话命令,由collector.Controller实现
type Commander interface {
	Start(ctx context.Context, settings models.Settings, opts collector.StartOptions) error
	Pause() error
	Resume() error
	Stop() error
	Reset(ctx context.Context) error
	Status() models.Status
	Records() []models.Record
	SavedSettings(ctx context.Context) (models.Settings, bool)
}

// Exporter 导出累积记录
type Exporter interface {
	Export(records []models.Record, format models.ExportFormat) (*models.ExportResult, error)
}

// EventSource 会话事件订阅
type EventSource interface {
	Subscribe() (<-chan models.Event, func())
}

// Navigator 开始采集前打开目标页面,可选
type Navigator interface {
	Open(ctx context.Context, target string) error
}

// Config 服务配置
type Config struct {
	Addr    string   `mapstructure:"addr"`
	Mode    string   `mapstructure:"mode"`     // gin模式: debug, release, test
	APIKeys []string `mapstructure:"api_keys"` // 为空时不鉴权
}

// DefaultConfig 默认只监听本机
func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:8080", Mode: gin.ReleaseMode}
}

// Server HTTP控制服务
type Server struct {
	cfg       Config
	cmd       Commander
	exporter  Exporter
	events    EventSource
	navigator Navigator
	startTime time.Time
}

// Options 可选依赖
type Options struct {
	Exporter  Exporter
	Events    EventSource
	Navigator Navigator
}

// New 创建服务
func New(cfg Config, cmd Commander, opts Options) *Server {
	return &Server{
		cfg:       cfg,
		cmd:       cmd,
		exporter:  opts.Exporter,
		events:    opts.Events,
		navigator: opts.Navigator,
		startTime: time.Now(),
	}
}

// Router 路由
//
//	全局:  Recovery → 访问日志
//	API:   鉴权(配置了密钥时)
//
// 健康检查不需要鉴权
func (s *Server) Router() *gin.Engine {
	if s.cfg.Mode != "" {
		gin.SetMode(s.cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.health)

	api := v1.Group("")
	api.Use(auth(s.cfg.APIKeys))
	api.GET("/status", s.status)
	api.POST("/start", s.start)
	api.POST("/pause", s.command(s.cmd.Pause))
	api.POST("/resume", s.command(s.cmd.Resume))
	api.POST("/stop", s.command(s.cmd.Stop))
	api.POST("/reset", s.reset)
	api.GET("/records", s.records)
	api.POST("/export", s.export)
	api.GET("/events", s.stream)

	return r
}

// Run 监听直到ctx取消,然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("🌐 控制接口已启动: http://%s/api/v1", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("控制接口启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	utils.Infof("正在关闭控制接口...")
	return srv.Shutdown(shutdownCtx)
}
