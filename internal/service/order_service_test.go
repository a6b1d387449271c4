package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
)

// mockOrderRepository реализует OrderRepository для тестов.
type mockOrderRepository struct {
	orders map[uuid.UUID]*models.Order

	// conflictOnce имитирует конкурирующий переход: первый вызов
	// UpdateStatusCAS завершается конфликтом.
	conflictOnce bool
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*models.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if order, ok := m.orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.IsParticipant(userID) {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) UpdateStatusCAS(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string, deliveryURL *string) (*models.Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if m.conflictOnce {
		m.conflictOnce = false
		return nil, repository.ErrOrderConflict
	}
	if order.Status != fromStatus {
		return nil, repository.ErrOrderConflict
	}
	order.Status = toStatus
	if deliveryURL != nil {
		order.DeliveryURL = deliveryURL
	}
	order.UpdatedAt = time.Now()
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepository) GetStats(ctx context.Context, userID uuid.UUID) (*models.OrderStats, error) {
	stats := &models.OrderStats{}
	for _, order := range m.orders {
		if !order.IsParticipant(userID) {
			continue
		}
		stats.TotalOrders++
		switch order.Status {
		case models.OrderStatusCompleted:
			stats.CompletedOrders++
			if order.InfluencerID == userID {
				stats.TotalEarned += order.Amount
			} else {
				stats.TotalSpent += order.Amount
			}
		case models.OrderStatusPending, models.OrderStatusInProgress, models.OrderStatusDelivered:
			stats.ActiveOrders++
		}
	}
	return stats, nil
}

// mockOrderMessages реализует OrderMessageRepository для тестов.
type mockOrderMessages struct {
	messages []models.Message
	failAdd  bool
}

func (m *mockOrderMessages) Add(ctx context.Context, msg *models.Message) error {
	if m.failAdd {
		return errors.New("запись недоступна")
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockOrderMessages) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockOrderMessages) systemCount() int {
	n := 0
	for _, msg := range m.messages {
		if msg.IsSystem() {
			n++
		}
	}
	return n
}

// mockProfileReader реализует OrderProfileReader для тестов.
type mockProfileReader struct {
	profiles map[uuid.UUID]*models.ProfileRow
}

func (m *mockProfileReader) GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileRow, error) {
	if row, ok := m.profiles[userID]; ok {
		return row, nil
	}
	return nil, repository.ErrProfileNotFound
}

type orderFixture struct {
	svc        *OrderService
	orders     *mockOrderRepository
	messages   *mockOrderMessages
	business   *models.Actor
	influencer *models.Actor
	admin      *models.Actor
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	influencerID := uuid.New()
	profile, err := json.Marshal(models.InfluencerProfile{
		Niche:     "красота",
		Followers: 12000,
		Services: []models.ServiceOffer{
			{Type: models.ServiceTypeStory, Price: 150},
			{Type: models.ServiceTypeReels, Price: 900},
		},
	})
	if err != nil {
		t.Fatalf("сериализация профиля: %v", err)
	}

	profiles := &mockProfileReader{profiles: map[uuid.UUID]*models.ProfileRow{
		influencerID: {
			UserID:            influencerID,
			FullName:          "Maria Silva",
			Email:             "maria@example.com",
			Role:              models.RoleInfluencer,
			Status:            models.ActorStatusActive,
			InfluencerProfile: profile,
		},
	}}

	orders := newMockOrderRepository()
	messages := &mockOrderMessages{}

	return &orderFixture{
		svc:      NewOrderService(orders, messages, profiles, "R$"),
		orders:   orders,
		messages: messages,
		business: &models.Actor{
			ID:       uuid.New(),
			FullName: "Loja Bella",
			Role:     models.RoleBusiness,
			Status:   models.ActorStatusActive,
		},
		influencer: &models.Actor{
			ID:       influencerID,
			FullName: "Maria Silva",
			Role:     models.RoleInfluencer,
			Status:   models.ActorStatusActive,
		},
		admin: &models.Actor{
			ID:     uuid.New(),
			Role:   models.RoleAdmin,
			Status: models.ActorStatusActive,
		},
	}
}

func (f *orderFixture) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), f.business, CreateOrderInput{
		InfluencerID: f.influencer.ID,
		ServiceType:  models.ServiceTypeStory,
		Briefing:     "Расскажите о нашей новой коллекции в сторис.",
	})
	if err != nil {
		t.Fatalf("создание заказа вернуло ошибку: %v", err)
	}
	return order
}

func TestOrderService_CreateOrder(t *testing.T) {
	f := newOrderFixture(t)

	order := f.createOrder(t)

	if order.Status != models.OrderStatusPending {
		t.Fatalf("новый заказ должен быть pending, получили %s", order.Status)
	}
	if order.Amount != 150 {
		t.Fatalf("сумма должна браться из прайса инфлюенсера, получили %.2f", order.Amount)
	}
	if f.messages.systemCount() != 1 {
		t.Fatalf("при создании заказа должно появиться системное сообщение")
	}
}

func TestOrderService_CreateOrderOnlyBusiness(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), f.influencer, CreateOrderInput{
		InfluencerID: f.influencer.ID,
		ServiceType:  models.ServiceTypeStory,
		Briefing:     "Нельзя заказать у самого себя.",
	})
	if !apperror.Is(err, apperror.ErrCodeForbidden) {
		t.Fatalf("создавать заказы может только бизнес, получили %v", err)
	}
}

func TestOrderService_CreateOrderUnknownService(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), f.business, CreateOrderInput{
		InfluencerID: f.influencer.ID,
		ServiceType:  models.ServiceTypeFeed, // нет в прайсе
		Briefing:     "Пост в ленте про нашу новинку.",
	})
	if !apperror.IsValidation(err) {
		t.Fatalf("услуга вне прайса должна отклоняться, получили %v", err)
	}
}

func TestOrderService_HappyPathTransitions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	steps := []struct {
		actor    *models.Actor
		toStatus string
		url      string
	}{
		{f.influencer, models.OrderStatusInProgress, ""},
		{f.influencer, models.OrderStatusDelivered, "https://instagram.com/p/abc123"},
		{f.business, models.OrderStatusCompleted, ""},
	}

	for _, step := range steps {
		updated, err := f.svc.UpdateStatus(ctx, step.actor, UpdateStatusInput{
			OrderID:     order.ID,
			ToStatus:    step.toStatus,
			DeliveryURL: step.url,
		})
		if err != nil {
			t.Fatalf("переход в %s вернул ошибку: %v", step.toStatus, err)
		}
		if updated.Status != step.toStatus {
			t.Fatalf("ожидался статус %s, получили %s", step.toStatus, updated.Status)
		}
	}

	// Создание + три перехода = четыре системных сообщения.
	if got := f.messages.systemCount(); got != 4 {
		t.Fatalf("ожидалось 4 системных сообщения, получили %d", got)
	}
}

func TestOrderService_InvalidTransition(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)

	_, err := f.svc.UpdateStatus(context.Background(), f.business, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusCompleted,
	})
	if !apperror.IsInvalidTransition(err) {
		t.Fatalf("pending -> completed должен отклоняться, получили %v", err)
	}
}

func TestOrderService_TransitionAuthority(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	// Бизнес не может принять заказ за инфлюенсера.
	_, err := f.svc.UpdateStatus(ctx, f.business, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusInProgress,
	})
	if !apperror.Is(err, apperror.ErrCodeForbidden) {
		t.Fatalf("переход в in_progress бизнесом должен отклоняться, получили %v", err)
	}

	// Посторонний пользователь не видит заказ.
	stranger := &models.Actor{ID: uuid.New(), Role: models.RoleBusiness}
	_, err = f.svc.UpdateStatus(ctx, stranger, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusCancelled,
	})
	if !apperror.Is(err, apperror.ErrCodeForbidden) {
		t.Fatalf("посторонний не должен менять заказ, получили %v", err)
	}

	// Администратор может выполнить любой допустимый переход.
	if _, err := f.svc.UpdateStatus(ctx, f.admin, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusCancelled,
	}); err != nil {
		t.Fatalf("отмена администратором вернула ошибку: %v", err)
	}
}

func TestOrderService_DeliveredRequiresURL(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	if _, err := f.svc.UpdateStatus(ctx, f.influencer, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusInProgress,
	}); err != nil {
		t.Fatalf("принятие заказа вернуло ошибку: %v", err)
	}

	_, err := f.svc.UpdateStatus(ctx, f.influencer, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusDelivered,
		// Без ссылки на публикацию.
	})
	if !apperror.IsValidation(err) {
		t.Fatalf("сдача без ссылки должна отклоняться, получили %v", err)
	}

	_, err = f.svc.UpdateStatus(ctx, f.influencer, UpdateStatusInput{
		OrderID:     order.ID,
		ToStatus:    models.OrderStatusDelivered,
		DeliveryURL: "not-a-url",
	})
	if !apperror.IsValidation(err) {
		t.Fatalf("невалидная ссылка должна отклоняться, получили %v", err)
	}
}

func TestOrderService_ConcurrentTransitionConflict(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	// Конкурирующий переход успел изменить статус между чтением и записью:
	// compare-and-swap проигрывает и возвращает конфликт, а не перезаписывает.
	f.orders.conflictOnce = true

	_, err := f.svc.UpdateStatus(ctx, f.influencer, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusInProgress,
	})
	if !apperror.IsInvalidTransition(err) {
		t.Fatalf("проигравший CAS должен получить конфликт, получили %v", err)
	}
	if f.orders.orders[order.ID].Status != models.OrderStatusPending {
		t.Fatalf("проигравший переход не должен менять статус")
	}

	// Повторная попытка после обновления данных проходит.
	if _, err := f.svc.UpdateStatus(ctx, f.influencer, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusInProgress,
	}); err != nil {
		t.Fatalf("повторный переход вернул ошибку: %v", err)
	}
}

func TestOrderService_SystemMessageFailureDoesNotRollback(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	// Статусная запись и системное сообщение независимы: сбой второй
	// не откатывает первую.
	f.messages.failAdd = true

	updated, err := f.svc.UpdateStatus(ctx, f.influencer, UpdateStatusInput{
		OrderID:  order.ID,
		ToStatus: models.OrderStatusInProgress,
	})
	if err != nil {
		t.Fatalf("переход вернул ошибку: %v", err)
	}
	if updated.Status != models.OrderStatusInProgress {
		t.Fatalf("статус должен быть применён несмотря на сбой сообщения")
	}
}

func TestOrderService_SendMessage(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	msg, err := f.svc.SendMessage(ctx, f.business, order.ID, "Добрый день! Когда сможете начать?")
	if err != nil {
		t.Fatalf("отправка сообщения вернула ошибку: %v", err)
	}
	if msg.AuthorID == nil || *msg.AuthorID != f.business.ID {
		t.Fatalf("автор сообщения должен быть установлен")
	}
	if msg.IsSystem() {
		t.Fatalf("пользовательское сообщение не должно быть системным")
	}

	if _, err := f.svc.SendMessage(ctx, f.business, order.ID, "   "); !apperror.IsValidation(err) {
		t.Fatalf("пустое сообщение должно отклоняться, получили %v", err)
	}

	stranger := &models.Actor{ID: uuid.New(), Role: models.RoleBusiness}
	if _, err := f.svc.SendMessage(ctx, stranger, order.ID, "Привет"); !apperror.Is(err, apperror.ErrCodeForbidden) {
		t.Fatalf("посторонний не должен писать в чат заказа, получили %v", err)
	}
}

func TestOrderService_StatsDerived(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	steps := []struct {
		actor    *models.Actor
		toStatus string
		url      string
	}{
		{f.influencer, models.OrderStatusInProgress, ""},
		{f.influencer, models.OrderStatusDelivered, "https://instagram.com/p/abc123"},
		{f.business, models.OrderStatusCompleted, ""},
	}
	for _, step := range steps {
		if _, err := f.svc.UpdateStatus(ctx, step.actor, UpdateStatusInput{
			OrderID:     order.ID,
			ToStatus:    step.toStatus,
			DeliveryURL: step.url,
		}); err != nil {
			t.Fatalf("переход в %s вернул ошибку: %v", step.toStatus, err)
		}
	}

	earned, err := f.svc.GetStats(ctx, f.influencer.ID)
	if err != nil {
		t.Fatalf("статистика вернула ошибку: %v", err)
	}
	if earned.TotalEarned != order.Amount {
		t.Fatalf("заработок должен считаться из завершённых заказов, получили %.2f", earned.TotalEarned)
	}

	spent, err := f.svc.GetStats(ctx, f.business.ID)
	if err != nil {
		t.Fatalf("статистика вернула ошибку: %v", err)
	}
	if spent.TotalSpent != order.Amount {
		t.Fatalf("траты должны считаться из завершённых заказов, получили %.2f", spent.TotalSpent)
	}
}
