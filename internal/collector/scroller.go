package collector

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ScrollConfig 滚动参数
type ScrollConfig struct {
	ViewportRatio   float64       // 基础距离占视口高度的比例
	MinDistance     float64       // 单次最小滚动距离(像素)
	MaxDistance     float64       // 单次最大滚动距离(像素)
	DistanceJitter  float64       // 距离随机幅度, 0.3 即 [0.7, 1.3)
	MinDuration     time.Duration // 动画基础时长
	MaxDuration     time.Duration // 距离达到1000像素时的动画时长
	DurationJitter  float64       // 时长随机幅度, 0.2 即 [0.8, 1.2)
	FrameInterval   time.Duration // 动画帧间隔
	BottomThreshold float64       // 距底部多少像素视为到底
}

// DefaultScrollConfig 默认滚动参数
func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{
		ViewportRatio:   0.6,
		MinDistance:     200,
		MaxDistance:     800,
		DistanceJitter:  0.3,
		MinDuration:     800 * time.Millisecond,
		MaxDuration:     2000 * time.Millisecond,
		DurationJitter:  0.2,
		FrameInterval:   16 * time.Millisecond,
		BottomThreshold: 100,
	}
}

// ScrollResult 一次滚动的结果
type ScrollResult struct {
	From          float64 // 起始位置
	Target        float64 // 目标位置(已按页面底部截断)
	Position      float64 // 实际停下的位置,被打断时小于Target
	ReachedBottom bool
}

// Distance 实际滚动的距离
func (r ScrollResult) Distance() float64 {
	return r.Position - r.From
}

// Scroller 模拟人类滚动: 随机距离、随机时长、缓入缓出
// 只在会话循环goroutine中使用,不是并发安全的
type Scroller struct {
	page Page
	cfg  ScrollConfig
	rng  *rand.Rand
}

// NewScroller 创建滚动器,rng为nil时使用随机种子
func NewScroller(page Page, cfg ScrollConfig, rng *rand.Rand) *Scroller {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	return &Scroller{page: page, cfg: cfg, rng: rng}
}

// Distance 视口高度×比例×速度系数×随机因子,截断到[MinDistance, MaxDistance]后取整
func (s *Scroller) Distance(viewport, speedFactor float64) float64 {
	base := viewport * s.cfg.ViewportRatio * speedFactor
	d := base * s.uniform(1-s.cfg.DistanceJitter, 1+s.cfg.DistanceJitter)
	d = math.Max(s.cfg.MinDistance, math.Min(s.cfg.MaxDistance, d))
	return math.Floor(d)
}

// Duration 距离越长动画越久,1000像素封顶,再乘随机因子
func (s *Scroller) Duration(distance float64) time.Duration {
	ratio := math.Min(math.Max(distance, 0)/1000, 1)
	span := float64(s.cfg.MaxDuration - s.cfg.MinDuration)
	base := float64(s.cfg.MinDuration) + span*ratio
	return time.Duration(base * s.uniform(1-s.cfg.DurationJitter, 1+s.cfg.DurationJitter))
}

// Scroll 读取当前度量后向下滚动一段随机距离
func (s *Scroller) Scroll(ctx context.Context, speedFactor float64) (ScrollResult, error) {
	m, err := s.page.Metrics(ctx)
	if err != nil {
		return ScrollResult{}, fmt.Errorf("读取页面度量失败: %w", err)
	}
	return s.ScrollBy(ctx, m, s.Distance(m.ViewportHeight, speedFactor))
}

// ScrollBy 从m描述的位置向下动画滚动distance像素
// ctx取消时立即停在当前位置并返回ctx.Err()
func (s *Scroller) ScrollBy(ctx context.Context, m PageMetrics, distance float64) (ScrollResult, error) {
	start := m.ScrollY
	target := math.Min(start+distance, m.MaxScrollY())
	res := ScrollResult{From: start, Target: target, Position: start}

	if target <= start {
		res.ReachedBottom = true
		return res, nil
	}

	total := s.Duration(target - start)
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()
	begin := time.Now()

	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}

		progress := 1.0
		if total > 0 {
			progress = math.Min(float64(time.Since(begin))/float64(total), 1)
		}
		y := start + (target-start)*EaseInOutCubic(progress)
		if err := s.page.ScrollTo(ctx, y); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("滚动到 %.0f 失败: %w", y, err)
		}
		res.Position = y
		if progress >= 1 {
			break
		}
	}

	res.ReachedBottom = res.Position+m.ViewportHeight >= m.ContentHeight-s.cfg.BottomThreshold
	return res, nil
}

// uniform [lo, hi) 均匀分布
func (s *Scroller) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// EaseInOutCubic 三次缓入缓出曲线
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
