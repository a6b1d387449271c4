package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/models"
)

// fakeChatStore реализует MessageStore и OrderStore поверх срезов в памяти.
type fakeChatStore struct {
	mu       sync.Mutex
	orders   []models.Order
	messages []models.Message
}

func (f *fakeChatStore) addOrder(business, influencer uuid.UUID) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := models.Order{
		ID:           uuid.New(),
		BusinessID:   business,
		InfluencerID: influencer,
		Status:       models.OrderStatusPending,
	}
	f.orders = append(f.orders, order)
	return order
}

func (f *fakeChatStore) addMessage(orderID uuid.UUID, at time.Time, content string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := models.Message{
		ID:         uuid.New(),
		OrderID:    orderID,
		AuthorType: models.AuthorTypeSystem,
		Content:    content,
		CreatedAt:  at,
	}
	f.messages = append(f.messages, msg)
	return msg
}

func (f *fakeChatStore) ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, order := range f.orders {
		if order.IsParticipant(userID) {
			out = append(out, order)
		}
	}
	return out, nil
}

// messageReader оборачивает fakeChatStore как MessageStore: у заказов и
// сообщений совпадает сигнатура ListForActor, поэтому нужен отдельный тип.
type messageReader struct {
	store *fakeChatStore
}

func (r *messageReader) ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	orders, _ := r.store.ListForActor(ctx, userID)
	mine := make(map[uuid.UUID]struct{}, len(orders))
	for _, order := range orders {
		mine[order.ID] = struct{}{}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Message
	for _, msg := range r.store.messages {
		if _, ok := mine[msg.OrderID]; ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *messageReader) ListForOrderSince(ctx context.Context, orderID uuid.UUID, since time.Time) ([]models.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Message
	for _, msg := range r.store.messages {
		if msg.OrderID == orderID && !msg.CreatedAt.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("не дождались: %s", what)
}

type chatFixture struct {
	store   *fakeChatStore
	reader  *messageReader
	changes *feed.Feed
	actorID uuid.UUID
	peerID  uuid.UUID
}

func newChatFixture() *chatFixture {
	store := &fakeChatStore{}
	return &chatFixture{
		store:   store,
		reader:  &messageReader{store: store},
		changes: feed.New(16),
		actorID: uuid.New(),
		peerID:  uuid.New(),
	}
}

func (f *chatFixture) newSynchronizer(t *testing.T) *Synchronizer {
	t.Helper()
	s := NewSynchronizer(f.actorID, f.reader, f.store, f.changes)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("запуск синхронизатора вернул ошибку: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSynchronizer_InitialSnapshot(t *testing.T) {
	f := newChatFixture()
	order := f.store.addOrder(f.peerID, f.actorID)
	base := time.Now().Add(-time.Minute)

	// История записана не по порядку: снимок обязан быть отсортирован.
	second := f.store.addMessage(order.ID, base.Add(2*time.Second), "второе")
	first := f.store.addMessage(order.ID, base.Add(time.Second), "первое")

	s := f.newSynchronizer(t)

	snapshot := s.Messages()
	if len(snapshot) != 2 {
		t.Fatalf("в снимке должно быть 2 сообщения, получили %d", len(snapshot))
	}
	if snapshot[0].ID != first.ID || snapshot[1].ID != second.ID {
		t.Fatalf("снимок не отсортирован по времени создания")
	}
}

func TestSynchronizer_LiveIngestAndParticipantFilter(t *testing.T) {
	f := newChatFixture()
	mine := f.store.addOrder(f.peerID, f.actorID)
	foreign := models.Order{ID: uuid.New(), BusinessID: uuid.New(), InfluencerID: uuid.New()}

	s := f.newSynchronizer(t)

	now := time.Now()
	msg := models.Message{ID: uuid.New(), OrderID: mine.ID, Content: "привет", CreatedAt: now}
	other := models.Message{ID: uuid.New(), OrderID: foreign.ID, Content: "чужое", CreatedAt: now}

	f.changes.Publish(feed.Event{Table: feed.TableMessages, Op: feed.OpInsert, Payload: other})
	f.changes.Publish(feed.Event{Table: feed.TableMessages, Op: feed.OpInsert, Payload: msg})

	waitFor(t, func() bool { return len(s.Messages()) == 1 }, "доставка сообщения из ленты")
	if got := s.Messages(); got[0].ID != msg.ID {
		t.Fatalf("в реплику попало не то сообщение: %+v", got[0])
	}
	if got := s.MessagesForOrder(foreign.ID); len(got) != 0 {
		t.Fatalf("сообщения чужих заказов должны отбрасываться")
	}
}

func TestSynchronizer_TracksNewOrderFromFeed(t *testing.T) {
	f := newChatFixture()
	s := f.newSynchronizer(t)

	// Новый заказ с участием пользователя приходит событием ленты,
	// после чего его сообщения начинают приниматься.
	order := models.Order{ID: uuid.New(), BusinessID: f.peerID, InfluencerID: f.actorID}
	f.changes.Publish(feed.Event{Table: feed.TableOrders, Op: feed.OpInsert, Payload: order})

	msg := models.Message{ID: uuid.New(), OrderID: order.ID, Content: "старт", CreatedAt: time.Now()}
	f.changes.Publish(feed.Event{Table: feed.TableMessages, Op: feed.OpInsert, Payload: msg})

	waitFor(t, func() bool { return len(s.MessagesForOrder(order.ID)) == 1 }, "отслеживание нового заказа")
}

func TestSynchronizer_DedupByID(t *testing.T) {
	f := newChatFixture()
	order := f.store.addOrder(f.peerID, f.actorID)
	s := f.newSynchronizer(t)

	msg := models.Message{ID: uuid.New(), OrderID: order.ID, Content: "раз", CreatedAt: time.Now()}

	// Подтверждение отправки и событие ленты несут одно и то же сообщение.
	if !s.Ingest(msg) {
		t.Fatalf("первое вливание должно пройти")
	}
	if s.Ingest(msg) {
		t.Fatalf("повтор должен подавляться по id")
	}
	if len(s.Messages()) != 1 {
		t.Fatalf("дубликат попал в снимок")
	}
}

func TestSynchronizer_SnapshotCopyOnWrite(t *testing.T) {
	f := newChatFixture()
	order := f.store.addOrder(f.peerID, f.actorID)
	s := f.newSynchronizer(t)

	s.Ingest(models.Message{ID: uuid.New(), OrderID: order.ID, Content: "раз", CreatedAt: time.Now()})
	before := s.Messages()

	s.Ingest(models.Message{ID: uuid.New(), OrderID: order.ID, Content: "два", CreatedAt: time.Now()})

	if len(before) != 1 {
		t.Fatalf("выданный снимок изменился после новой записи")
	}
	if len(s.Messages()) != 2 {
		t.Fatalf("новый снимок должен содержать оба сообщения")
	}
}

func TestSynchronizer_ResubscribeBackfill(t *testing.T) {
	f := newChatFixture()
	order := f.store.addOrder(f.peerID, f.actorID)
	base := time.Now().Add(-time.Minute)
	f.store.addMessage(order.ID, base, "до обрыва")

	s := f.newSynchronizer(t)
	waitFor(t, func() bool { return len(s.Messages()) == 1 }, "начальный снимок")

	// Пока подписка оборвана, в хранилище появились новые сообщения.
	f.store.addMessage(order.ID, base.Add(time.Second), "пропущенное")
	f.store.addMessage(order.ID, base.Add(2*time.Second), "ещё одно")

	if err := s.Resubscribe(context.Background()); err != nil {
		t.Fatalf("переподписка вернула ошибку: %v", err)
	}

	if got := len(s.MessagesForOrder(order.ID)); got != 3 {
		t.Fatalf("добор должен вернуть пропущенное, в реплике %d сообщений", got)
	}

	// Живые события после переподписки продолжают приходить.
	live := models.Message{ID: uuid.New(), OrderID: order.ID, Content: "живое", CreatedAt: time.Now()}
	f.changes.Publish(feed.Event{Table: feed.TableMessages, Op: feed.OpInsert, Payload: live})
	waitFor(t, func() bool { return len(s.Messages()) == 4 }, "доставка после переподписки")
}

func TestSynchronizer_BackfillSameTimestamp(t *testing.T) {
	f := newChatFixture()
	order := f.store.addOrder(f.peerID, f.actorID)
	at := time.Now().Add(-time.Minute).Truncate(time.Second)
	f.store.addMessage(order.ID, at, "известное")

	s := f.newSynchronizer(t)
	waitFor(t, func() bool { return len(s.Messages()) == 1 }, "начальный снимок")

	// Сообщение с тем же created_at, что и последнее известное:
	// добор обязан его вернуть, дубликат отсечётся по id.
	f.store.addMessage(order.ID, at, "одновременное")

	if err := s.Resubscribe(context.Background()); err != nil {
		t.Fatalf("переподписка вернула ошибку: %v", err)
	}

	if got := len(s.MessagesForOrder(order.ID)); got != 2 {
		t.Fatalf("сообщение с совпадающим временем потеряно, в реплике %d", got)
	}
}

func TestManager_GetReusesSynchronizer(t *testing.T) {
	f := newChatFixture()
	f.store.addOrder(f.peerID, f.actorID)

	m := NewManager(f.reader, f.store, f.changes)
	t.Cleanup(m.CloseAll)

	ctx := context.Background()
	first, err := m.Get(ctx, f.actorID)
	if err != nil {
		t.Fatalf("создание синхронизатора вернуло ошибку: %v", err)
	}
	second, err := m.Get(ctx, f.actorID)
	if err != nil {
		t.Fatalf("повторное получение вернуло ошибку: %v", err)
	}
	if first != second {
		t.Fatalf("менеджер должен переиспользовать синхронизатор пользователя")
	}

	m.Release(f.actorID)
	third, err := m.Get(ctx, f.actorID)
	if err != nil {
		t.Fatalf("получение после Release вернуло ошибку: %v", err)
	}
	if third == first {
		t.Fatalf("после Release должен создаваться новый синхронизатор")
	}
}
