// Package feed реализует внутрипроцессную ленту изменений таблиц хранилища.
// Репозитории публикуют события после успешной записи, подписчики (чаты,
// websocket-рассылка) получают их через ограниченные очереди.
package feed

import (
	"sync"

	"github.com/ignatzorin/influmarket-backend/internal/logger"
)

// Op — тип операции над строкой таблицы.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	// OpAll подписывает на все операции таблицы.
	OpAll Op = "*"
)

// Имена логических таблиц ленты.
const (
	TableOrders   = "orders"
	TableMessages = "messages"
	TableProfiles = "profiles"
)

// Event — одно изменение строки, доставляемое подписчикам.
type Event struct {
	Table   string
	Op      Op
	Payload interface{}
}

// Subscription — очередь событий одного подписчика.
// Очередь ограничена: при переполнении подписка закрывается, подписчик
// обязан переподписаться и добрать пропущенное из хранилища.
type Subscription struct {
	table string
	op    Op

	mu     sync.Mutex
	events chan Event
	closed bool
}

// Events возвращает канал событий подписки.
// Канал закрывается при Close или при переполнении очереди.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close закрывает подписку.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// matches проверяет, интересно ли подписке событие.
func (s *Subscription) matches(evt Event) bool {
	if s.table != "" && s.table != evt.Table {
		return false
	}
	return s.op == OpAll || s.op == evt.Op
}

// deliver кладёт событие в очередь подписчика без блокировки.
// Возвращает false, если очередь переполнена и подписка была закрыта.
func (s *Subscription) deliver(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.events <- evt:
		return true
	default:
		// Медленный подписчик: закрываем очередь вместо неограниченного роста,
		// подписчик увидит закрытие канала и сделает Resubscribe с добором.
		s.closed = true
		close(s.events)
		return false
	}
}

// Feed — точка публикации и подписки на изменения.
type Feed struct {
	mu         sync.RWMutex
	subs       map[*Subscription]struct{}
	bufferSize int
}

// New создаёт ленту с указанной ёмкостью очереди на подписчика.
func New(bufferSize int) *Feed {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Feed{
		subs:       make(map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe создаёт подписку на таблицу и операцию.
// Пустая таблица означает все таблицы, OpAll — все операции.
func (f *Feed) Subscribe(table string, op Op) *Subscription {
	sub := &Subscription{
		table:  table,
		op:     op,
		events: make(chan Event, f.bufferSize),
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub
}

// Unsubscribe удаляет и закрывает подписку.
func (f *Feed) Unsubscribe(sub *Subscription) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
	sub.Close()
}

// Publish рассылает событие всем подходящим подписчикам.
// Публикация не блокируется на медленных подписчиках.
func (f *Feed) Publish(evt Event) {
	f.mu.RLock()
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		if sub.matches(evt) {
			subs = append(subs, sub)
		}
	}
	f.mu.RUnlock()

	var overflowed []*Subscription
	for _, sub := range subs {
		if !sub.deliver(evt) {
			overflowed = append(overflowed, sub)
		}
	}

	if len(overflowed) > 0 {
		f.mu.Lock()
		for _, sub := range overflowed {
			delete(f.subs, sub)
		}
		f.mu.Unlock()

		if logger.Log != nil {
			logger.WithComponent("feed").Warnf(
				"feed: отключено %d медленных подписчиков (таблица %s)", len(overflowed), evt.Table)
		}
	}
}
