package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
	"github.com/ignatzorin/influmarket-backend/internal/validation"
)

// OrderRepository описывает зависимости OrderService от слоя хранилища.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	UpdateStatusCAS(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string, deliveryURL *string) (*models.Order, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*models.OrderStats, error)
}

// OrderMessageRepository — минимальный срез репозитория сообщений,
// нужный машине статусов для системных сообщений.
type OrderMessageRepository interface {
	Add(ctx context.Context, msg *models.Message) error
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Message, error)
}

// OrderProfileReader отдаёт профили для проверок роли и каталога услуг.
type OrderProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileRow, error)
}

// OrderService реализует машину статусов заказа: создание, переходы
// и сопровождающие системные сообщения в чате заказа.
type OrderService struct {
	orders   OrderRepository
	messages OrderMessageRepository
	profiles OrderProfileReader
	currency string
}

// CreateOrderInput — данные создания заказа бизнесом.
type CreateOrderInput struct {
	InfluencerID uuid.UUID
	ServiceType  string
	Briefing     string
}

// NewOrderService создаёт сервис заказов.
// currency — символ валюты для текстов системных сообщений.
func NewOrderService(orders OrderRepository, messages OrderMessageRepository, profiles OrderProfileReader, currency string) *OrderService {
	return &OrderService{
		orders:   orders,
		messages: messages,
		profiles: profiles,
		currency: currency,
	}
}

// CreateOrder создаёт заказ со статусом pending.
// Цена берётся из прайса инфлюенсера на выбранный тип услуги.
func (s *OrderService) CreateOrder(ctx context.Context, actor *models.Actor, in CreateOrderInput) (*models.Order, error) {
	if actor.Role != models.RoleBusiness {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заказы может только бизнес-аккаунт")
	}
	if _, ok := models.ValidServiceTypes[in.ServiceType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип услуги")
	}
	if err := validation.ValidateBriefing(in.Briefing); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.InfluencerID == actor.ID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя оформить заказ самому себе")
	}

	influencerRow, err := s.profiles.GetProfile(ctx, in.InfluencerID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperror.ErrActorNotFound
		}
		return nil, fmt.Errorf("order service: загрузка профиля инфлюенсера: %w", err)
	}
	if influencerRow.Role != models.RoleInfluencer {
		return nil, apperror.New(apperror.ErrCodeValidation, "получатель заказа не является инфлюенсером")
	}
	if influencerRow.Status == models.ActorStatusSuspended {
		return nil, apperror.New(apperror.ErrCodeValidation, "аккаунт инфлюенсера заблокирован")
	}

	influencer, err := ProjectActor(influencerRow)
	if err != nil {
		return nil, err
	}
	if influencer.InfluencerProfile == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "инфлюенсер не заполнил прайс на услуги")
	}
	offer, ok := influencer.InfluencerProfile.OfferFor(in.ServiceType)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "инфлюенсер не предлагает выбранную услугу")
	}
	if err := validation.ValidateAmount(offer.Price); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	order := &models.Order{
		BusinessID:   actor.ID,
		InfluencerID: in.InfluencerID,
		ServiceType:  in.ServiceType,
		Amount:       offer.Price,
		Briefing:     in.Briefing,
		Status:       models.OrderStatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.postSystemMessage(ctx, order.ID, fmt.Sprintf(
		"Заказ создан. Сумма: %s %.2f. Ожидает подтверждения инфлюенсером.",
		s.currency, order.Amount,
	))

	return order, nil
}

// UpdateStatusInput — запрос перехода статуса.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	ToStatus    string
	DeliveryURL string
}

// UpdateStatus выполняет переход статуса заказа.
// Переход защищён compare-and-swap по исходному статусу: параллельный
// конкурирующий переход завершится ошибкой конфликта, а не перезапишет его.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *models.Actor, in UpdateStatusInput) (*models.Order, error) {
	if _, ok := models.ValidOrderStatuses[in.ToStatus]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}

	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order service: загрузка заказа: %w", err)
	}

	if !order.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ к заказу запрещен")
	}

	if !models.CanTransitionOrder(order.Status, in.ToStatus) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, fmt.Sprintf(
			"переход %s -> %s невозможен", order.Status, in.ToStatus,
		))
	}
	if err := s.checkTransitionAuthority(actor, order, in.ToStatus); err != nil {
		return nil, err
	}

	var deliveryURL *string
	if in.ToStatus == models.OrderStatusDelivered {
		if err := validation.ValidateURL(in.DeliveryURL); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		deliveryURL = &in.DeliveryURL
	}

	updated, err := s.orders.UpdateStatusCAS(ctx, order.ID, order.Status, in.ToStatus, deliveryURL)
	if err != nil {
		if errors.Is(err, repository.ErrOrderConflict) {
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "заказ уже изменён, обновите данные")
		}
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order service: переход статуса: %w", err)
	}

	// Системное сообщение — независимая вторая запись: её сбой не должен
	// откатывать уже применённый переход статуса.
	s.postSystemMessage(ctx, updated.ID, s.transitionMessage(updated, actor))

	return updated, nil
}

// SendMessage добавляет пользовательское сообщение в чат заказа.
func (s *OrderService) SendMessage(ctx context.Context, actor *models.Actor, orderID uuid.UUID, content string) (*models.Message, error) {
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order service: загрузка заказа: %w", err)
	}
	if !order.IsParticipant(actor.ID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ к чату заказа запрещен")
	}

	authorID := actor.ID
	msg := &models.Message{
		OrderID:    order.ID,
		AuthorID:   &authorID,
		AuthorType: actor.Role,
		Content:    content,
	}
	if err := s.messages.Add(ctx, msg); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeRemoteWrite, "не удалось отправить сообщение")
	}
	return msg, nil
}

// GetOrder возвращает заказ, доступный участнику или администратору.
func (s *OrderService) GetOrder(ctx context.Context, actor *models.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order service: загрузка заказа: %w", err)
	}
	if !order.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ к заказу запрещен")
	}
	return order, nil
}

// ListMyOrders возвращает заказы, где пользователь — участник.
func (s *OrderService) ListMyOrders(ctx context.Context, actorID uuid.UUID) ([]models.Order, error) {
	return s.orders.ListForActor(ctx, actorID)
}

// ListOrderMessages возвращает историю чата заказа.
func (s *OrderService) ListOrderMessages(ctx context.Context, actor *models.Actor, orderID uuid.UUID) ([]models.Message, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.messages.ListForOrder(ctx, orderID)
}

// GetStats возвращает производные показатели по заказам пользователя.
// Заработок и траты всегда считаются из завершённых заказов, а не хранятся.
func (s *OrderService) GetStats(ctx context.Context, actorID uuid.UUID) (*models.OrderStats, error) {
	return s.orders.GetStats(ctx, actorID)
}

// checkTransitionAuthority проверяет, что инициатор вправе выполнить переход.
func (s *OrderService) checkTransitionAuthority(actor *models.Actor, order *models.Order, toStatus string) error {
	if actor.IsAdmin() {
		return nil
	}

	switch toStatus {
	case models.OrderStatusInProgress, models.OrderStatusRejected, models.OrderStatusDelivered:
		if actor.ID != order.InfluencerID {
			return apperror.New(apperror.ErrCodeForbidden, "этот переход доступен только инфлюенсеру")
		}
	case models.OrderStatusCancelled:
		// Отменить незавершённый заказ может любой участник.
	case models.OrderStatusCompleted:
		if actor.ID != order.BusinessID {
			return apperror.New(apperror.ErrCodeForbidden, "подтвердить выполнение может только заказчик")
		}
	default:
		return apperror.New(apperror.ErrCodeForbidden, "переход недоступен")
	}
	return nil
}

// transitionMessage формирует текст системного сообщения о переходе.
func (s *OrderService) transitionMessage(order *models.Order, actor *models.Actor) string {
	switch order.Status {
	case models.OrderStatusInProgress:
		return "Инфлюенсер принял заказ. Работа началась."
	case models.OrderStatusRejected:
		return "Инфлюенсер отклонил заказ."
	case models.OrderStatusDelivered:
		url := ""
		if order.DeliveryURL != nil {
			url = *order.DeliveryURL
		}
		return fmt.Sprintf("Работа сдана на проверку: %s", url)
	case models.OrderStatusCompleted:
		return fmt.Sprintf("Заказ завершён. Сумма %s %.2f зачислена инфлюенсеру.", s.currency, order.Amount)
	case models.OrderStatusCancelled:
		return fmt.Sprintf("Заказ отменён (%s).", actor.FullName)
	default:
		return fmt.Sprintf("Статус заказа изменён: %s.", order.Status)
	}
}

// postSystemMessage пишет системное сообщение в чат заказа.
// Сбой записи логируется и не влияет на основную операцию.
func (s *OrderService) postSystemMessage(ctx context.Context, orderID uuid.UUID, content string) {
	msg := &models.Message{
		OrderID:    orderID,
		AuthorID:   nil,
		AuthorType: models.AuthorTypeSystem,
		Content:    content,
	}
	if err := s.messages.Add(ctx, msg); err != nil {
		logger.WithComponent("orders").WithFields(map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		}).Error("order service: не удалось записать системное сообщение")
	}
}
