package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

var (
	ErrAlreadyRunning  = errors.New("采集已在进行中")
	ErrNotRunning      = errors.New("当前没有进行中的采集")
	ErrNotPaused       = errors.New("采集未处于暂停状态")
	ErrSessionActive   = errors.New("采集进行中,请先停止")
	ErrInvalidSettings = errors.New("无效的采集配置")
)

// persistTimeout 单次持久化的超时时间
const persistTimeout = 10 * time.Second

// Repository 累积记录和会话配置的持久化
type Repository interface {
	SaveRecords(ctx context.Context, records []models.Record) error
	LoadRecords(ctx context.Context) ([]models.Record, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
	LoadSettings(ctx context.Context) (*models.Settings, error)
	Clear(ctx context.Context) error
}

// ControllerConfig 采集循环参数
type ControllerConfig struct {
	Scroll          ScrollConfig
	Readiness       ReadinessConfig
	IntervalJitter  time.Duration // 滚动间隔上叠加的随机抖动上限
	ErrorBackoff    time.Duration // 滚动失败后的等待时间
	EmptyRoundLimit int           // 智能停止的连续空轮数
	InitialHarvest  bool          // 开始时先采集已渲染的内容
}

// DefaultControllerConfig 默认参数
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Scroll:          DefaultScrollConfig(),
		Readiness:       DefaultReadinessConfig(),
		IntervalJitter:  1000 * time.Millisecond,
		ErrorBackoff:    5000 * time.Millisecond,
		EmptyRoundLimit: DefaultEmptyRoundLimit,
		InitialHarvest:  true,
	}
}

// ControllerOptions 可选依赖
type ControllerOptions struct {
	Config     ControllerConfig
	Repository Repository       // nil 不持久化
	Notifier   Notifier         // nil 不推送事件
	Monitor    *ResourceMonitor // nil 不做资源退避
	Rand       *rand.Rand       // nil 使用随机种子
}

// StartOptions 启动选项
type StartOptions struct {
	// Resume 在已有的累积记录上继续;内存中为空时从持久化存储恢复
	Resume bool
}

// Controller 采集会话状态机
//
//	Idle → Running ⇄ Paused → Stopped → (Start) Running
//
// 所有命令方法都是并发安全的,采集循环在独立goroutine中运行
type Controller struct {
	page      Page
	extractor *Extractor
	scroller  *Scroller
	detector  *ReadinessDetector
	repo      Repository
	notifier  Notifier
	monitor   *ResourceMonitor
	cfg       ControllerConfig
	rng       *rand.Rand // 与scroller共用,只在采集循环goroutine中使用

	mu    sync.Mutex
	state models.SessionState
	sess  *session
	store *RecordStore
}

type session struct {
	id        string
	settings  models.Settings
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	stoppedAt time.Time

	// 以下字段受Controller.mu保护
	roundCancel context.CancelFunc
	resumeCh    chan struct{}
	scrollCount int
	startCount  int
	stopReason  models.StopReason
	stopper     *StopEvaluator
}

func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// harvest 一次提取的结果,等待在锁内提交
type harvest struct {
	records       []models.Record
	scrolled      bool
	evaluate      bool
	reachedBottom bool
}

// NewController 创建控制器
func NewController(page Page, extractor *Extractor, opts ControllerOptions) *Controller {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	cfg := opts.Config
	return &Controller{
		page:      page,
		extractor: extractor,
		scroller:  NewScroller(page, cfg.Scroll, rng),
		detector:  NewReadinessDetector(page, ContainerSelector(), cfg.Readiness),
		repo:      opts.Repository,
		notifier:  opts.Notifier,
		monitor:   opts.Monitor,
		cfg:       cfg,
		rng:       rng,
		state:     models.StateIdle,
		store:     NewRecordStore(nil),
	}
}

// Start 开始新会话
// 会话进行中(运行或暂停)时返回ErrAlreadyRunning,状态不变
func (c *Controller) Start(ctx context.Context, settings models.Settings, opts StartOptions) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	needLoad := opts.Resume && c.store.Len() == 0 && c.repo != nil
	c.mu.Unlock()

	var prior []models.Record
	if needLoad {
		loaded, err := c.repo.LoadRecords(ctx)
		if err != nil {
			return fmt.Errorf("恢复历史记录失败: %w", err)
		}
		prior = loaded
	}

	if err := c.lockIdle(ctx); err != nil {
		return err
	}
	switch {
	case !opts.Resume:
		c.store = NewRecordStore(nil)
	case len(prior) > 0:
		c.store = NewRecordStore(prior)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:         models.NewSessionID(),
		settings:   settings,
		ctx:        sessCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
		startedAt:  time.Now(),
		startCount: c.store.Len(),
		stopper:    NewStopEvaluator(c.cfg.EmptyRoundLimit),
	}
	c.sess = sess
	c.state = models.StateRunning
	status := c.statusLocked()
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.SaveSettings(ctx, settings); err != nil {
			utils.Warnf("保存采集配置失败: %v", err)
		}
	}

	utils.Infof("🚀 开始采集 (会话 %s, 已有 %d 条记录, 间隔 %dms, 最多滚动 %d 次)",
		sess.id, sess.startCount, settings.IntervalMs, settings.MaxScrolls)
	c.publish(models.Event{Type: models.EventStatus, SessionID: sess.id, Status: status})

	go c.run(sess)
	return nil
}

// lockIdle 等上一个会话的循环完全退出后加锁返回,保证同一时间只有一个循环在操作页面
// 上一个会话的ctx已取消,等待是有界的
func (c *Controller) lockIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state.Active() {
			c.mu.Unlock()
			return ErrAlreadyRunning
		}
		prev := c.sess
		if prev == nil || prev.finished() {
			return nil
		}
		c.mu.Unlock()

		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pause 暂停,正在进行的等待、滚动动画和内容检测会被立即打断
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != models.StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	sess := c.sess
	c.state = models.StatePaused
	sess.resumeCh = make(chan struct{})
	if sess.roundCancel != nil {
		sess.roundCancel()
	}
	status := c.statusLocked()
	c.mu.Unlock()

	utils.Infof("⏸️  采集已暂停 (已滚动 %d 次)", status.ScrollCount)
	c.publish(models.Event{Type: models.EventStatus, SessionID: sess.id, Status: status})
	return nil
}

// Resume 从暂停恢复,下一轮重新计时
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != models.StatePaused {
		c.mu.Unlock()
		return ErrNotPaused
	}
	sess := c.sess
	c.state = models.StateRunning
	close(sess.resumeCh)
	status := c.statusLocked()
	c.mu.Unlock()

	utils.Infof("▶️  采集已恢复")
	c.publish(models.Event{Type: models.EventStatus, SessionID: sess.id, Status: status})
	return nil
}

// Stop 停止当前会话并持久化最终结果
func (c *Controller) Stop() error {
	c.mu.Lock()
	sess := c.sess
	active := c.state.Active()
	c.mu.Unlock()

	if !active || sess == nil {
		return ErrNotRunning
	}
	if !c.stopSession(sess, models.StopUser) {
		return ErrNotRunning
	}
	return nil
}

// Reset 清空累积记录(包括持久化存储),会话进行中时不允许
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.store.Reset()
	status := c.statusLocked()
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.Clear(ctx); err != nil {
			return fmt.Errorf("清空持久化数据失败: %w", err)
		}
	}

	utils.Infof("🗑️  累积记录已清空")
	c.publish(models.Event{Type: models.EventStatus, SessionID: status.SessionID, Status: status})
	return nil
}

// Status 当前状态
func (c *Controller) Status() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Records 累积记录副本
func (c *Controller) Records() []models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Records()
}

// SavedSettings 上次保存的会话配置
func (c *Controller) SavedSettings(ctx context.Context) (models.Settings, bool) {
	if c.repo == nil {
		return models.Settings{}, false
	}
	s, err := c.repo.LoadSettings(ctx)
	if err != nil {
		utils.Warnf("读取已保存的配置失败: %v", err)
		return models.Settings{}, false
	}
	if s == nil {
		return models.Settings{}, false
	}
	return *s, true
}

// Wait 等待当前会话的采集循环退出
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report 最近一次会话的报告,从未开始过时返回nil
func (c *Controller) Report() *models.SessionReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return nil
	}
	end := sess.stoppedAt
	if end.IsZero() {
		end = time.Now()
	}
	return &models.SessionReport{
		SessionID:    sess.id,
		StartTime:    sess.startedAt,
		EndTime:      end,
		Duration:     end.Sub(sess.startedAt).Seconds(),
		StopReason:   sess.stopReason,
		ScrollCount:  sess.scrollCount,
		NewRecords:   c.store.Len() - sess.startCount,
		TotalRecords: c.store.Len(),
		Settings:     sess.settings,
	}
}

func (c *Controller) statusLocked() models.Status {
	st := models.Status{
		State:       c.state,
		RecordCount: c.store.Len(),
	}
	if sess := c.sess; sess != nil {
		started := sess.startedAt
		st.SessionID = sess.id
		st.ScrollCount = sess.scrollCount
		st.StartedAt = &started
		st.StopReason = sess.stopReason
	}
	return st
}

// run 会话循环: 初次采集 → [等待 → 滚动 → 等待新内容 → 提取 → 合并 → 判定停止]
func (c *Controller) run(sess *session) {
	defer close(sess.done)

	if c.cfg.InitialHarvest {
		c.initialHarvest(sess)
	}

	delay := c.nextDelay(sess.settings)
	for {
		roundCtx, release, ok := c.awaitRunning(sess)
		if !ok {
			return
		}
		next, reason := c.round(roundCtx, sess, delay)
		release()

		if reason != models.StopNone {
			c.stopSession(sess, reason)
			return
		}
		delay = next
	}
}

// awaitRunning 暂停时阻塞,恢复后为本轮创建可被Pause打断的ctx
// 会话已结束或被替换时返回false
func (c *Controller) awaitRunning(sess *session) (context.Context, func(), bool) {
	c.mu.Lock()
	for {
		if c.sess != sess || sess.ctx.Err() != nil {
			c.mu.Unlock()
			return nil, nil, false
		}
		if c.state == models.StateRunning {
			break
		}
		resumeCh := sess.resumeCh
		c.mu.Unlock()

		select {
		case <-resumeCh:
		case <-sess.ctx.Done():
		}
		c.mu.Lock()
	}

	roundCtx, cancel := context.WithCancel(sess.ctx)
	sess.roundCancel = cancel
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		sess.roundCancel = nil
		c.mu.Unlock()
		cancel()
	}
	return roundCtx, release, true
}

// round 执行一轮,返回下一轮前的等待时间和停止原因
// 本轮被暂停或停止打断时结果直接丢弃
func (c *Controller) round(ctx context.Context, sess *session, delay time.Duration) (time.Duration, models.StopReason) {
	if err := sleepCtx(ctx, delay); err != nil {
		return c.nextDelay(sess.settings), models.StopNone
	}

	if c.monitor != nil {
		if p, why := c.monitor.Pressure(); p == PressureCritical {
			utils.Warnf("⚠️  %s, %v后重试", why, c.cfg.ErrorBackoff)
			return c.cfg.ErrorBackoff, models.StopNone
		}
	}

	h, err := c.scrollAndHarvest(ctx, sess)
	if ctx.Err() != nil {
		return c.nextDelay(sess.settings), models.StopNone
	}
	if err != nil {
		utils.Warnf("❌ 滚动失败,按无新数据处理, %v后重试: %v", c.cfg.ErrorBackoff, err)
		reason, _ := c.commit(sess, harvest{evaluate: true})
		return c.cfg.ErrorBackoff, reason
	}

	reason, _ := c.commit(sess, h)
	return c.nextDelay(sess.settings), reason
}

func (c *Controller) scrollAndHarvest(ctx context.Context, sess *session) (harvest, error) {
	base, err := c.detector.Baseline(ctx)
	if err != nil {
		return harvest{}, err
	}

	res, err := c.scroller.Scroll(ctx, sess.settings.ScrollSpeedFactor)
	if err != nil {
		return harvest{}, err
	}
	utils.Debugf("滚动 %.0f → %.0f 像素", res.From, res.Position)

	ready, err := c.detector.WaitUntilReady(ctx, base, c.cfg.Readiness.Timeout)
	if err != nil {
		return harvest{}, err
	}

	doc, err := c.page.Snapshot(ctx)
	if err != nil {
		return harvest{}, fmt.Errorf("获取页面快照失败: %w", err)
	}

	return harvest{
		records:       c.extractor.Extract(doc, sess.settings),
		scrolled:      true,
		evaluate:      true,
		reachedBottom: res.ReachedBottom && !ready,
	}, nil
}

// initialHarvest 滚动前先采集页面上已渲染的内容,不计入滚动次数
func (c *Controller) initialHarvest(sess *session) {
	doc, err := c.page.Snapshot(sess.ctx)
	if err != nil {
		if sess.ctx.Err() == nil {
			utils.Warnf("初始采集失败: %v", err)
		}
		return
	}
	c.commit(sess, harvest{records: c.extractor.Extract(doc, sess.settings)})
}

// commit 在锁内合并本轮结果并判定停止;会话已暂停、停止或被替换时丢弃
func (c *Controller) commit(sess *session, h harvest) (models.StopReason, bool) {
	c.mu.Lock()
	if c.sess != sess || c.state != models.StateRunning {
		c.mu.Unlock()
		return models.StopNone, false
	}

	before := c.store.Len()
	accepted := c.store.Merge(h.records)
	if h.scrolled {
		sess.scrollCount++
	}

	reason := models.StopNone
	if h.evaluate {
		reason = sess.stopper.Evaluate(RoundOutcome{
			ScrollCount:   sess.scrollCount,
			Accepted:      accepted,
			ReachedBottom: h.reachedBottom,
		}, sess.settings)
	}

	var fresh, all []models.Record
	if accepted > 0 {
		fresh = c.store.Since(before)
		all = c.store.Records()
	}
	status := c.statusLocked()
	emptyRounds := sess.stopper.EmptyRounds()
	c.mu.Unlock()

	if accepted > 0 {
		utils.Infof("📥 第%d轮: 提取 %d 条, 新增 %d 条, 累计 %d 条",
			status.ScrollCount, len(h.records), accepted, status.RecordCount)
		c.persist(all)
		c.publish(models.Event{Type: models.EventRecords, SessionID: sess.id, Status: status, Records: fresh})
	} else if h.evaluate {
		utils.Infof("第%d轮: 无新数据 (连续 %d 轮)", status.ScrollCount, emptyRounds)
		c.publish(models.Event{Type: models.EventStatus, SessionID: sess.id, Status: status})
	}
	return reason, true
}

// stopSession 结束会话,持久化并发出完成事件;会话已结束时返回false
func (c *Controller) stopSession(sess *session, reason models.StopReason) bool {
	c.mu.Lock()
	if c.sess != sess || !c.state.Active() {
		c.mu.Unlock()
		return false
	}
	c.state = models.StateStopped
	sess.stopReason = reason
	sess.stoppedAt = time.Now()
	sess.cancel()
	records := c.store.Records()
	status := c.statusLocked()
	c.mu.Unlock()

	c.persist(records)
	utils.Infof("🏁 采集结束: %s, 共滚动 %d 次, 累计 %d 条", describeStop(reason), status.ScrollCount, status.RecordCount)
	c.publish(models.Event{Type: models.EventStatus, SessionID: sess.id, Status: status})
	c.publish(models.Event{Type: models.EventComplete, SessionID: sess.id, Status: status, Reason: reason})
	return true
}

func (c *Controller) persist(records []models.Record) {
	if c.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.repo.SaveRecords(ctx, records); err != nil {
		utils.Errorf("保存采集结果失败: %v", err)
	}
}

func (c *Controller) publish(ev models.Event) {
	if c.notifier == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.notifier.Notify(ev)
}

// nextDelay 滚动间隔加随机抖动
func (c *Controller) nextDelay(settings models.Settings) time.Duration {
	d := settings.Interval()
	if c.cfg.IntervalJitter > 0 {
		d += time.Duration(c.rng.Int64N(int64(c.cfg.IntervalJitter)))
	}
	return d
}

func describeStop(reason models.StopReason) string {
	switch reason {
	case models.StopMaxScrolls:
		return "达到最大滚动次数"
	case models.StopReachedBottom:
		return "已到达页面底部"
	case models.StopSmart:
		return "连续多轮无新数据,智能停止"
	case models.StopUser:
		return "用户停止"
	default:
		return string(reason)
	}
}
