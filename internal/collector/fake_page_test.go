package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
)

// fakePage 内存中的无限信息流
// 已加载条目数 = min(total, initial + ScrollY/itemStep),滚得越深出现的条目越多
type fakePage struct {
	mu sync.Mutex

	scrollY       float64
	viewport      float64
	contentHeight float64
	initial       int
	total         int
	itemStep      float64

	metricsErr  error
	scrollCalls int
	scrolled    chan struct{} // 每次ScrollTo后非阻塞通知

	holdFirstScroll bool // 第一次ScrollTo阻塞到ctx取消
	held            bool

	inCall    int // 正在进行的页面调用数
	maxInCall int
}

// enter 记录页面调用的并发度
func (p *fakePage) enter() func() {
	p.mu.Lock()
	p.inCall++
	if p.inCall > p.maxInCall {
		p.maxInCall = p.inCall
	}
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.inCall--
		p.mu.Unlock()
	}
}

func (p *fakePage) maxConcurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInCall
}

func newFakePage(initial, total int) *fakePage {
	return &fakePage{
		viewport:      800,
		contentHeight: 100000,
		initial:       initial,
		total:         total,
		itemStep:      200,
		scrolled:      make(chan struct{}, 1024),
	}
}

func (p *fakePage) loadedLocked() int {
	n := p.initial + int(p.scrollY/p.itemStep)
	if n > p.total {
		n = p.total
	}
	return n
}

func (p *fakePage) Snapshot(ctx context.Context) (*goquery.Document, error) {
	defer p.enter()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	n := p.loadedLocked()
	p.mu.Unlock()

	var b strings.Builder
	b.WriteString(`<html><body><div class="feeds-container">`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<section class="note-item"><a class="cover" href="/explore/note%03d"><img src="https://sns-img.xhscdn.com/%03d.jpg"></a>`+
			`<div class="footer"><a class="title"><span>笔记%d</span></a><a class="author"><span class="name">作者%d</span></a></div></section>`,
			i, i, i, i)
	}
	b.WriteString(`</div></body></html>`)
	return goquery.NewDocumentFromReader(strings.NewReader(b.String()))
}

func (p *fakePage) Metrics(ctx context.Context) (PageMetrics, error) {
	defer p.enter()()
	if err := ctx.Err(); err != nil {
		return PageMetrics{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.metricsErr != nil {
		return PageMetrics{}, p.metricsErr
	}
	return PageMetrics{ScrollY: p.scrollY, ViewportHeight: p.viewport, ContentHeight: p.contentHeight}, nil
}

func (p *fakePage) ScrollTo(ctx context.Context, y float64) error {
	defer p.enter()()
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.holdFirstScroll && !p.held {
		p.held = true
		p.mu.Unlock()
		select {
		case p.scrolled <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
	p.scrollY = y
	p.scrollCalls++
	p.mu.Unlock()
	select {
	case p.scrolled <- struct{}{}:
	default:
	}
	return nil
}

func (p *fakePage) CountMatches(ctx context.Context, selector string) (int, error) {
	defer p.enter()()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadedLocked(), nil
}

func (p *fakePage) position() (float64, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY, p.scrollCalls
}

// memRepo 内存持久化
type memRepo struct {
	mu       sync.Mutex
	records  []models.Record
	settings *models.Settings
	saves    int
	loadErr  error
}

func (r *memRepo) SaveRecords(ctx context.Context, records []models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append([]models.Record(nil), records...)
	r.saves++
	return nil
}

func (r *memRepo) LoadRecords(ctx context.Context) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return append([]models.Record(nil), r.records...), nil
}

func (r *memRepo) SaveSettings(ctx context.Context, s models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = &s
	return nil
}

func (r *memRepo) LoadSettings(ctx context.Context) (*models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings, nil
}

func (r *memRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	return nil
}

func (r *memRepo) snapshot() []models.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Record(nil), r.records...)
}

var errFakeScroll = errors.New("模拟页面崩溃")
