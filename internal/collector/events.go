package collector

import (
	"sync"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// Notifier 接收会话事件
type Notifier interface {
	Notify(ev models.Event)
}

// NotifierFunc 函数适配器
type NotifierFunc func(ev models.Event)

// Notify 实现Notifier
func (f NotifierFunc) Notify(ev models.Event) {
	f(ev)
}

// EventBus 事件广播,订阅者各自有缓冲通道
// 订阅者消费过慢时丢弃事件,不阻塞采集循环
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Event
	nextID int
	buffer int
}

// NewEventBus 创建事件总线
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{subs: make(map[int]chan models.Event), buffer: buffer}
}

// Subscribe 订阅事件,返回事件通道和取消函数
func (b *EventBus) Subscribe() (<-chan models.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Notify 广播事件
func (b *EventBus) Notify(ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			utils.Debugf("订阅者%d处理过慢,丢弃事件 %s", id, ev.Type)
		}
	}
}

// Subscribers 当前订阅者数量
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
