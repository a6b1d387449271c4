// Package chat поддерживает согласованные локальные реплики чатов заказов.
// Каждый активный пользователь получает синхронизатор: он держит снимок
// сообщений по всем заказам пользователя, принимает события ленты изменений
// и при обрыве подписки добирает пропущенное из хранилища.
package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/goroutine"
	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/models"
)

// MessageStore — срез репозитория сообщений, нужный синхронизатору.
type MessageStore interface {
	ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Message, error)
	ListForOrderSince(ctx context.Context, orderID uuid.UUID, since time.Time) ([]models.Message, error)
}

// OrderStore — срез репозитория заказов, нужный синхронизатору.
type OrderStore interface {
	ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

// Synchronizer держит реплику сообщений одного пользователя.
// Снимки отдаются копиями, поэтому читатели не блокируют приём событий.
type Synchronizer struct {
	actorID  uuid.UUID
	messages MessageStore
	orders   OrderStore
	changes  *feed.Feed

	mu       sync.RWMutex
	snapshot []models.Message
	seen     map[uuid.UUID]struct{}
	tracked  map[uuid.UUID]struct{}
	lastSeen map[uuid.UUID]time.Time
	sub      *feed.Subscription

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSynchronizer создаёт синхронизатор для пользователя.
func NewSynchronizer(actorID uuid.UUID, messages MessageStore, orders OrderStore, changes *feed.Feed) *Synchronizer {
	return &Synchronizer{
		actorID:  actorID,
		messages: messages,
		orders:   orders,
		changes:  changes,
		seen:     make(map[uuid.UUID]struct{}),
		tracked:  make(map[uuid.UUID]struct{}),
		lastSeen: make(map[uuid.UUID]time.Time),
		closed:   make(chan struct{}),
	}
}

// Start загружает начальный снимок, подписывается на ленту изменений
// и запускает цикл приёма событий.
func (s *Synchronizer) Start(ctx context.Context) error {
	orders, err := s.orders.ListForActor(ctx, s.actorID)
	if err != nil {
		return fmt.Errorf("chat: загрузка заказов пользователя: %w", err)
	}
	history, err := s.messages.ListForActor(ctx, s.actorID)
	if err != nil {
		return fmt.Errorf("chat: загрузка истории сообщений: %w", err)
	}

	s.mu.Lock()
	for _, order := range orders {
		s.tracked[order.ID] = struct{}{}
	}
	for _, msg := range history {
		s.ingestLocked(msg)
	}
	s.sub = s.changes.Subscribe("", feed.OpInsert)
	sub := s.sub
	s.mu.Unlock()

	goroutine.SafeGo(func() {
		s.run(sub)
	})

	return nil
}

// run читает события подписки до её закрытия.
// Закрытие канала без Close означает переполнение очереди: подписчик
// обязан переподписаться и добрать пропущенное из хранилища.
func (s *Synchronizer) run(sub *feed.Subscription) {
	for evt := range sub.Events() {
		s.dispatch(evt)
	}

	select {
	case <-s.closed:
		return
	default:
	}

	logger.WithComponent("chat").WithField("actor_id", s.actorID).
		Warn("chat: подписка оборвана, переподписка с добором")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Resubscribe(ctx); err != nil {
		logger.WithComponent("chat").WithField("actor_id", s.actorID).
			WithError(err).Error("chat: переподписка не удалась")
	}
}

// dispatch обрабатывает одно событие ленты.
func (s *Synchronizer) dispatch(evt feed.Event) {
	switch evt.Table {
	case feed.TableOrders:
		order, ok := evt.Payload.(models.Order)
		if !ok {
			return
		}
		if order.IsParticipant(s.actorID) {
			s.TrackOrder(order.ID)
		}
	case feed.TableMessages:
		msg, ok := evt.Payload.(models.Message)
		if !ok {
			return
		}
		s.Ingest(msg)
	}
}

// TrackOrder добавляет заказ в число отслеживаемых.
func (s *Synchronizer) TrackOrder(orderID uuid.UUID) {
	s.mu.Lock()
	s.tracked[orderID] = struct{}{}
	s.mu.Unlock()
}

// Ingest вливает сообщение в реплику.
// Сообщения чужих заказов отбрасываются, повторы подавляются по id,
// поэтому подтверждение отправки и событие ленты не дают дубликата.
func (s *Synchronizer) Ingest(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(msg)
}

func (s *Synchronizer) ingestLocked(msg models.Message) bool {
	if _, ok := s.tracked[msg.OrderID]; !ok {
		return false
	}
	if _, ok := s.seen[msg.ID]; ok {
		return false
	}
	s.seen[msg.ID] = struct{}{}

	// Копирование при записи: выданные ранее снимки остаются неизменными.
	next := make([]models.Message, len(s.snapshot), len(s.snapshot)+1)
	copy(next, s.snapshot)
	next = append(next, msg)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].CreatedAt.Equal(next[j].CreatedAt) {
			return next[i].ID.String() < next[j].ID.String()
		}
		return next[i].CreatedAt.Before(next[j].CreatedAt)
	})
	s.snapshot = next

	if msg.CreatedAt.After(s.lastSeen[msg.OrderID]) {
		s.lastSeen[msg.OrderID] = msg.CreatedAt
	}
	return true
}

// Messages возвращает снимок всех сообщений пользователя.
func (s *Synchronizer) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// MessagesForOrder возвращает снимок сообщений одного заказа.
func (s *Synchronizer) MessagesForOrder(orderID uuid.UUID) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, 0)
	for _, msg := range s.snapshot {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out
}

// Resubscribe создаёт новую подписку и добирает сообщения, появившиеся
// после последнего увиденного по каждому отслеживаемому заказу.
func (s *Synchronizer) Resubscribe(ctx context.Context) error {
	orders, err := s.orders.ListForActor(ctx, s.actorID)
	if err != nil {
		return fmt.Errorf("chat: обновление списка заказов: %w", err)
	}

	s.mu.Lock()
	for _, order := range orders {
		s.tracked[order.ID] = struct{}{}
	}
	s.sub = s.changes.Subscribe("", feed.OpInsert)
	sub := s.sub
	trackedIDs := make([]uuid.UUID, 0, len(s.tracked))
	for id := range s.tracked {
		trackedIDs = append(trackedIDs, id)
	}
	s.mu.Unlock()

	// Подписка уже активна, добор идёт следом: событие, пришедшее в обоих
	// путях, схлопнется дедупликацией по id.
	for _, orderID := range trackedIDs {
		s.mu.RLock()
		since := s.lastSeen[orderID]
		s.mu.RUnlock()

		missed, err := s.messages.ListForOrderSince(ctx, orderID, since)
		if err != nil {
			s.changes.Unsubscribe(sub)
			return fmt.Errorf("chat: добор сообщений заказа %s: %w", orderID, err)
		}
		for _, msg := range missed {
			s.Ingest(msg)
		}
	}

	goroutine.SafeGo(func() {
		s.run(sub)
	})

	return nil
}

// Close останавливает синхронизатор.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		sub := s.sub
		s.mu.Unlock()
		if sub != nil {
			s.changes.Unsubscribe(sub)
		}
	})
}

// Manager держит по синхронизатору на активного пользователя.
type Manager struct {
	messages MessageStore
	orders   OrderStore
	changes  *feed.Feed

	mu   sync.Mutex
	byID map[uuid.UUID]*Synchronizer
}

// NewManager создаёт менеджер синхронизаторов.
func NewManager(messages MessageStore, orders OrderStore, changes *feed.Feed) *Manager {
	return &Manager{
		messages: messages,
		orders:   orders,
		changes:  changes,
		byID:     make(map[uuid.UUID]*Synchronizer),
	}
}

// Get возвращает синхронизатор пользователя, создавая и запуская его
// при первом обращении.
func (m *Manager) Get(ctx context.Context, actorID uuid.UUID) (*Synchronizer, error) {
	m.mu.Lock()
	if existing, ok := m.byID[actorID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	candidate := NewSynchronizer(actorID, m.messages, m.orders, m.changes)
	if err := candidate.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byID[actorID]; ok {
		// Параллельный Get успел первым.
		candidate.Close()
		return existing, nil
	}
	m.byID[actorID] = candidate
	return candidate, nil
}

// Release останавливает и удаляет синхронизатор пользователя.
func (m *Manager) Release(actorID uuid.UUID) {
	m.mu.Lock()
	s, ok := m.byID[actorID]
	if ok {
		delete(m.byID, actorID)
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll останавливает все синхронизаторы.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Synchronizer, 0, len(m.byID))
	for _, s := range m.byID {
		all = append(all, s)
	}
	m.byID = make(map[uuid.UUID]*Synchronizer)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
