package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// startRequest POST /start 请求体,全部字段可选
// settings只需给出要覆盖的字段,其余取上次保存的配置或默认值
type startRequest struct {
	URL      string          `json:"url"`
	Resume   bool            `json:"resume"`
	Settings json.RawMessage `json:"settings"`
}

type exportRequest struct {
	Format string `json:"format"`
}

type recordsResponse struct {
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Records []models.Record `json:"records"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	State  string `json:"state"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status: "healthy",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
		State:  string(s.cmd.Status().State),
	})
}

func (s *Server) status(c *gin.Context) {
	ok(c, s.cmd.Status())
}

func (s *Server) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, fmt.Errorf("请求格式错误: %w", err))
		return
	}

	settings, found := s.cmd.SavedSettings(c.Request.Context())
	if !found {
		settings = models.DefaultSettings()
	}
	if len(req.Settings) > 0 && string(req.Settings) != "null" {
		if err := json.Unmarshal(req.Settings, &settings); err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("采集配置格式错误: %w", err))
			return
		}
	}

	if req.URL != "" {
		if err := utils.ValidateURL(req.URL); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		if s.navigator == nil {
			fail(c, http.StatusBadRequest, errors.New("当前模式不支持切换页面"))
			return
		}
		if st := s.cmd.Status(); st.State.Active() {
			fail(c, http.StatusConflict, collector.ErrAlreadyRunning)
			return
		}
		if err := s.navigator.Open(c.Request.Context(), req.URL); err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
	}

	if err := s.cmd.Start(c.Request.Context(), settings, collector.StartOptions{Resume: req.Resume}); err != nil {
		fail(c, statusCode(err), err)
		return
	}
	ok(c, s.cmd.Status())
}

// command 无参数命令的通用处理
func (s *Server) command(fn func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(); err != nil {
			fail(c, statusCode(err), err)
			return
		}
		ok(c, s.cmd.Status())
	}
}

func (s *Server) reset(c *gin.Context) {
	if err := s.cmd.Reset(c.Request.Context()); err != nil {
		fail(c, statusCode(err), err)
		return
	}
	ok(c, s.cmd.Status())
}

func (s *Server) records(c *gin.Context) {
	all := s.cmd.Records()
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if offset < 0 {
		offset = 0
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	ok(c, recordsResponse{Total: len(all), Offset: offset, Records: all[offset:end]})
}

func (s *Server) export(c *gin.Context) {
	if s.exporter == nil {
		fail(c, http.StatusNotImplemented, errors.New("未配置导出"))
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, fmt.Errorf("请求格式错误: %w", err))
		return
	}
	if req.Format == "" {
		req.Format = string(models.FormatCSV)
	}
	format, err := models.ParseExportFormat(req.Format)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.exporter.Export(s.cmd.Records(), format)
	if err != nil {
		fail(c, statusCode(err), err)
		return
	}
	ok(c, result)
}

// stream 以SSE推送会话事件,连接建立后先推送一次当前状态
func (s *Server) stream(c *gin.Context) {
	if s.events == nil {
		fail(c, http.StatusNotImplemented, errors.New("未启用事件推送"))
		return
	}
	events, cancel := s.events.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(string(models.EventStatus), models.Event{
		Type:   models.EventStatus,
		Time:   time.Now(),
		Status: s.cmd.Status(),
	})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}
