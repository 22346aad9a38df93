package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/export"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
)

// fakeCommander 只记录调用的假控制器
type fakeCommander struct {
	mu       sync.Mutex
	state    models.SessionState
	started  *models.Settings
	resume   bool
	saved    *models.Settings
	records  []models.Record
	startErr error
	resetErr error
}

func (f *fakeCommander) Start(ctx context.Context, s models.Settings, opts collector.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if f.state.Active() {
		return collector.ErrAlreadyRunning
	}
	f.state = models.StateRunning
	f.started = &s
	f.resume = opts.Resume
	return nil
}

func (f *fakeCommander) transition(from, to models.SessionState, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != from {
		return err
	}
	f.state = to
	return nil
}

func (f *fakeCommander) Pause() error {
	return f.transition(models.StateRunning, models.StatePaused, collector.ErrNotRunning)
}

func (f *fakeCommander) Resume() error {
	return f.transition(models.StatePaused, models.StateRunning, collector.ErrNotPaused)
}

func (f *fakeCommander) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.Active() {
		return collector.ErrNotRunning
	}
	f.state = models.StateStopped
	return nil
}

func (f *fakeCommander) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Active() {
		return collector.ErrSessionActive
	}
	f.records = nil
	return f.resetErr
}

func (f *fakeCommander) Status() models.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	if state == "" {
		state = models.StateIdle
	}
	return models.Status{State: state, RecordCount: len(f.records)}
}

func (f *fakeCommander) Records() []models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Record(nil), f.records...)
}

func (f *fakeCommander) SavedSettings(ctx context.Context) (models.Settings, bool) {
	if f.saved == nil {
		return models.Settings{}, false
	}
	return *f.saved, true
}

type fakeExporter struct {
	format models.ExportFormat
}

func (e *fakeExporter) Export(records []models.Record, format models.ExportFormat) (*models.ExportResult, error) {
	if len(records) == 0 {
		return nil, export.ErrNoRecords
	}
	e.format = format
	return &models.ExportResult{Filename: "out." + format.Extension(), Format: format, Count: len(records)}, nil
}

type fakeNavigator struct {
	opened string
}

func (n *fakeNavigator) Open(ctx context.Context, target string) error {
	n.opened = target
	return nil
}

func newTestServer(cmd *fakeCommander, cfg Config, opts Options) *gin.Engine {
	cfg.Mode = gin.TestMode
	return New(cfg, cmd, opts).Router()
}

func do(r http.Handler, method, path, body string, header ...string) (*httptest.ResponseRecorder, Response) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHealth(t *testing.T) {
	r := newTestServer(&fakeCommander{}, Config{APIKeys: []string{"secret"}}, Options{})
	w, _ := do(r, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("健康检查不需要鉴权, 状态码 = %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	r := newTestServer(&fakeCommander{}, Config{APIKeys: []string{"secret"}}, Options{})

	tests := []struct {
		name   string
		header []string
		want   int
	}{
		{"缺少密钥", nil, http.StatusUnauthorized},
		{"错误密钥", []string{"X-API-Key", "wrong"}, http.StatusUnauthorized},
		{"X-API-Key", []string{"X-API-Key", "secret"}, http.StatusOK},
		{"Bearer", []string{"Authorization", "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(r, http.MethodGet, "/api/v1/status", "", tt.header...)
			if w.Code != tt.want {
				t.Errorf("状态码 = %d, 期望 %d", w.Code, tt.want)
			}
		})
	}
}

func TestLifecycleCommands(t *testing.T) {
	cmd := &fakeCommander{}
	r := newTestServer(cmd, Config{}, Options{})

	steps := []struct {
		name  string
		path  string
		code  int
		state models.SessionState
	}{
		{"空闲时暂停", "/api/v1/pause", http.StatusConflict, models.StateIdle},
		{"开始", "/api/v1/start", http.StatusOK, models.StateRunning},
		{"重复开始", "/api/v1/start", http.StatusConflict, models.StateRunning},
		{"运行中重置", "/api/v1/reset", http.StatusConflict, models.StateRunning},
		{"暂停", "/api/v1/pause", http.StatusOK, models.StatePaused},
		{"恢复", "/api/v1/resume", http.StatusOK, models.StateRunning},
		{"运行中恢复", "/api/v1/resume", http.StatusConflict, models.StateRunning},
		{"停止", "/api/v1/stop", http.StatusOK, models.StateStopped},
		{"再次停止", "/api/v1/stop", http.StatusConflict, models.StateStopped},
		{"重置", "/api/v1/reset", http.StatusOK, models.StateStopped},
	}
	for _, step := range steps {
		w, resp := do(r, http.MethodPost, step.path, "")
		if w.Code != step.code {
			t.Errorf("%s: 状态码 = %d, 期望 %d (%s)", step.name, w.Code, step.code, resp.Error)
		}
		if resp.Success != (step.code == http.StatusOK) {
			t.Errorf("%s: success = %v", step.name, resp.Success)
		}
		if got := cmd.Status().State; got != step.state {
			t.Errorf("%s: 状态 = %s, 期望 %s", step.name, got, step.state)
		}
	}
}

func TestStartSettingsMerge(t *testing.T) {
	saved := models.DefaultSettings()
	saved.MaxScrolls = 50
	saved.IntervalMs = 2000

	tests := []struct {
		name       string
		saved      *models.Settings
		body       string
		wantMax    int
		wantIntv   int
		wantResume bool
	}{
		{"无请求体用默认配置", nil, "", 100, 3000, false},
		{"使用已保存配置", &saved, `{}`, 50, 2000, false},
		{"部分覆盖已保存配置", &saved, `{"settings":{"maxScrolls":7},"resume":true}`, 7, 2000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &fakeCommander{saved: tt.saved}
			r := newTestServer(cmd, Config{}, Options{})
			w, resp := do(r, http.MethodPost, "/api/v1/start", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("状态码 = %d: %s", w.Code, resp.Error)
			}
			if cmd.started.MaxScrolls != tt.wantMax || cmd.started.IntervalMs != tt.wantIntv {
				t.Errorf("实际配置 = %+v", cmd.started)
			}
			if cmd.resume != tt.wantResume {
				t.Errorf("resume = %v, 期望 %v", cmd.resume, tt.wantResume)
			}
		})
	}
}

func TestStartErrors(t *testing.T) {
	cmd := &fakeCommander{startErr: collector.ErrInvalidSettings}
	r := newTestServer(cmd, Config{}, Options{})

	if w, _ := do(r, http.MethodPost, "/api/v1/start", `{"settings":`); w.Code != http.StatusBadRequest {
		t.Errorf("非法JSON应返回400, 实际 %d", w.Code)
	}
	if w, _ := do(r, http.MethodPost, "/api/v1/start", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("无效配置应返回400, 实际 %d", w.Code)
	}
	if w, _ := do(r, http.MethodPost, "/api/v1/start", `{"url":"https://www.xiaohongshu.com/explore"}`); w.Code != http.StatusBadRequest {
		t.Errorf("没有Navigator时指定URL应返回400, 实际 %d", w.Code)
	}
}

func TestStartWithURL(t *testing.T) {
	cmd := &fakeCommander{}
	nav := &fakeNavigator{}
	r := newTestServer(cmd, Config{}, Options{Navigator: nav})

	if w, _ := do(r, http.MethodPost, "/api/v1/start", `{"url":"ftp://bad"}`); w.Code != http.StatusBadRequest {
		t.Errorf("非法URL应返回400, 实际 %d", w.Code)
	}
	w, resp := do(r, http.MethodPost, "/api/v1/start", `{"url":"https://www.xiaohongshu.com/search_result?keyword=咖啡"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 = %d: %s", w.Code, resp.Error)
	}
	if !strings.HasPrefix(nav.opened, "https://www.xiaohongshu.com/search_result") {
		t.Errorf("应先打开目标页面, 实际 %q", nav.opened)
	}
}

func TestRecordsPaging(t *testing.T) {
	cmd := &fakeCommander{}
	for _, u := range []string{"a", "b", "c", "d"} {
		cmd.records = append(cmd.records, models.Record{URL: "https://www.xiaohongshu.com/explore/" + u})
	}
	r := newTestServer(cmd, Config{}, Options{})

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"?limit=2", 2},
		{"?offset=3&limit=5", 1},
		{"?offset=10", 0},
		{"?offset=-1&limit=abc", 4},
		{"?offset=1&limit=9223372036854775807", 3},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records"+tt.query, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("records%s: 状态码 %d", tt.query, w.Code)
		}

		var resp struct {
			Success bool            `json:"success"`
			Data    recordsResponse `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("解析响应失败: %v", err)
		}
		if resp.Data.Total != 4 || len(resp.Data.Records) != tt.want {
			t.Errorf("records%s: total=%d, 返回 %d 条, 期望 %d", tt.query, resp.Data.Total, len(resp.Data.Records), tt.want)
		}
	}
}

func TestExportEndpoint(t *testing.T) {
	cmd := &fakeCommander{}
	exp := &fakeExporter{}
	r := newTestServer(cmd, Config{}, Options{Exporter: exp})

	if w, _ := do(r, http.MethodPost, "/api/v1/export", `{"format":"csv"}`); w.Code != http.StatusBadRequest {
		t.Errorf("没有数据时应返回400, 实际 %d", w.Code)
	}

	cmd.records = []models.Record{{URL: "https://www.xiaohongshu.com/explore/a"}}
	if w, _ := do(r, http.MethodPost, "/api/v1/export", `{"format":"pdf"}`); w.Code != http.StatusBadRequest {
		t.Errorf("未知格式应返回400, 实际 %d", w.Code)
	}
	w, resp := do(r, http.MethodPost, "/api/v1/export", `{"format":"excel"}`)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("导出失败: %d %s", w.Code, resp.Error)
	}
	if exp.format != models.FormatXLSX {
		t.Errorf("excel应映射为xlsx, 实际 %s", exp.format)
	}
	if w, _ := do(r, http.MethodPost, "/api/v1/export", ""); w.Code != http.StatusOK || exp.format != models.FormatCSV {
		t.Errorf("默认应导出CSV, 状态码 %d 格式 %s", w.Code, exp.format)
	}
}

func TestEventStream(t *testing.T) {
	bus := collector.NewEventBus(8)
	cmd := &fakeCommander{}
	srv := httptest.NewServer(newTestServer(cmd, Config{}, Options{Events: bus}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("连接事件流失败: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	expectEvent := func(name string) {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case line, open := <-lines:
				if !open {
					t.Fatalf("事件流提前结束, 未收到 %s", name)
				}
				if line == "event:"+name {
					return
				}
			case <-timeout:
				t.Fatalf("等待事件 %s 超时", name)
			}
		}
	}

	expectEvent("status")

	deadline := time.Now().Add(5 * time.Second)
	for bus.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	bus.Notify(models.Event{Type: models.EventComplete, Reason: models.StopUser})
	expectEvent("complete")

	cancel()
	deadline = time.Now().Add(5 * time.Second)
	for bus.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bus.Subscribers() != 0 {
		t.Error("客户端断开后应取消订阅")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{collector.ErrAlreadyRunning, http.StatusConflict},
		{collector.ErrSessionActive, http.StatusConflict},
		{collector.ErrInvalidSettings, http.StatusBadRequest},
		{export.ErrNoRecords, http.StatusBadRequest},
		{errors.New("其他"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusCode(tt.err); got != tt.want {
			t.Errorf("statusCode(%v) = %d, 期望 %d", tt.err, got, tt.want)
		}
	}
}
