package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/goroutine"
	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/models"
)

// Имена событий, отдаваемых клиентам.
const (
	EventMessageNew     = "message:new"
	EventOrderCreated   = "order:created"
	EventOrderUpdated   = "order:updated"
	EventProfileUpdated = "profile:updated"
)

// OrderResolver отдаёт заказ для определения получателей события.
type OrderResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// FeedBridge транслирует события ленты изменений в адресные
// WebSocket-события участникам.
type FeedBridge struct {
	hub     *Hub
	changes *feed.Feed
	orders  OrderResolver
}

// NewFeedBridge создаёт мост между лентой изменений и хабом.
func NewFeedBridge(hub *Hub, changes *feed.Feed, orders OrderResolver) *FeedBridge {
	return &FeedBridge{hub: hub, changes: changes, orders: orders}
}

// Run подписывается на ленту и транслирует события до отмены контекста.
// При обрыве подписки (переполнение очереди) мост переподписывается:
// доставка через WebSocket best-effort, клиенты сверяются через REST.
func (b *FeedBridge) Run(ctx context.Context) {
	for {
		sub := b.changes.Subscribe("", feed.OpAll)

		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
			<-ctx.Done()
			b.changes.Unsubscribe(sub)
		})

		for evt := range sub.Events() {
			b.dispatch(ctx, evt)
		}

		select {
		case <-ctx.Done():
			return
		default:
			logger.WithComponent("ws").Warn("ws: подписка на ленту оборвана, переподписка")
		}
	}
}

func (b *FeedBridge) dispatch(ctx context.Context, evt feed.Event) {
	switch evt.Table {
	case feed.TableMessages:
		msg, ok := evt.Payload.(models.Message)
		if !ok {
			return
		}
		b.notifyMessage(ctx, msg)
	case feed.TableOrders:
		order, ok := evt.Payload.(models.Order)
		if !ok {
			return
		}
		event := EventOrderUpdated
		if evt.Op == feed.OpInsert {
			event = EventOrderCreated
		}
		b.broadcast(order.BusinessID, event, order)
		b.broadcast(order.InfluencerID, event, order)
	case feed.TableProfiles:
		row, ok := evt.Payload.(models.ProfileRow)
		if !ok || evt.Op != feed.OpUpdate {
			return
		}
		b.broadcast(row.UserID, EventProfileUpdated, map[string]any{
			"userId": row.UserID,
			"status": row.Status,
		})
	}
}

// notifyMessage доставляет сообщение участникам заказа, кроме автора.
func (b *FeedBridge) notifyMessage(ctx context.Context, msg models.Message) {
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	order, err := b.orders.GetByID(lookupCtx, msg.OrderID)
	if err != nil {
		logger.WithComponent("ws").WithField("order_id", msg.OrderID).
			WithError(err).Warn("ws: не удалось определить получателей сообщения")
		return
	}

	for _, userID := range []uuid.UUID{order.BusinessID, order.InfluencerID} {
		if msg.AuthorID != nil && *msg.AuthorID == userID {
			continue
		}
		b.broadcast(userID, EventMessageNew, msg)
	}
}

func (b *FeedBridge) broadcast(userID uuid.UUID, event string, data any) {
	if err := b.hub.BroadcastToUser(userID, event, data); err != nil {
		logger.WithComponent("ws").WithError(err).Warn("ws: рассылка события не удалась")
	}
}
