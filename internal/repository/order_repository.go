package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/repository/common"
)

// ErrOrderNotFound возвращается, когда заказ не найден.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderConflict возвращается, когда статус заказа изменился между чтением
// и записью: compare-and-swap по исходному статусу не нашёл строку.
var ErrOrderConflict = errors.New("order status conflict")

// OrderRepository отвечает за работу с таблицей orders.
type OrderRepository struct {
	db   *sqlx.DB
	feed *feed.Feed
}

// NewOrderRepository создаёт экземпляр репозитория.
func NewOrderRepository(db *sqlx.DB, changeFeed *feed.Feed) *OrderRepository {
	return &OrderRepository{db: db, feed: changeFeed}
}

// Create сохраняет новый заказ.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (business_id, influencer_id, service_type, amount, briefing, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	if err := r.db.QueryRowxContext(
		ctx, query,
		order.BusinessID, order.InfluencerID, order.ServiceType, order.Amount, order.Briefing, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("order repository: create: %w", err)
	}

	r.publish(feed.OpInsert, order)

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", id, ErrOrderNotFound)
}

// ListForActor возвращает все заказы, где пользователь является стороной.
func (r *OrderRepository) ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	query := `
		SELECT * FROM orders
		WHERE business_id = $1 OR influencer_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("order repository: list for actor: %w", err)
	}
	return orders, nil
}

// UpdateStatusCAS меняет статус заказа compare-and-swap'ом по исходному статусу.
// deliveryURL записывается только при переходе в delivered и затем не очищается.
func (r *OrderRepository) UpdateStatusCAS(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string, deliveryURL *string) (*models.Order, error) {
	var (
		order models.Order
		err   error
	)

	if deliveryURL != nil {
		query := `
			UPDATE orders
			SET status = $1, delivery_url = $2, updated_at = NOW()
			WHERE id = $3 AND status = $4
			RETURNING *
		`
		err = r.db.GetContext(ctx, &order, query, toStatus, *deliveryURL, orderID, fromStatus)
	} else {
		query := `
			UPDATE orders
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
			RETURNING *
		`
		err = r.db.GetContext(ctx, &order, query, toStatus, orderID, fromStatus)
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Либо заказа нет, либо его статус уже сменил другой участник.
			if _, getErr := r.GetByID(ctx, orderID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrOrderConflict
		}
		return nil, fmt.Errorf("order repository: update status: %w", err)
	}

	r.publish(feed.OpUpdate, &order)

	return &order, nil
}

// GetStats возвращает агрегированную статистику по заказам пользователя.
// total_earned — сумма завершённых заказов, где пользователь был исполнителем,
// total_spent — где заказчиком. Заработок нигде не хранится, только выводится.
func (r *OrderRepository) GetStats(ctx context.Context, userID uuid.UUID) (*models.OrderStats, error) {
	var stats models.OrderStats
	query := `
		SELECT
			COUNT(*) AS total_orders,
			COUNT(*) FILTER (WHERE status IN ('pending', 'in_progress', 'delivered')) AS active_orders,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_orders,
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND influencer_id = $1), 0) AS total_earned,
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND business_id = $1), 0) AS total_spent
		FROM orders
		WHERE business_id = $1 OR influencer_id = $1
	`
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("order repository: stats: %w", err)
	}
	return &stats, nil
}

func (r *OrderRepository) publish(op feed.Op, order *models.Order) {
	if r.feed == nil {
		return
	}
	r.feed.Publish(feed.Event{Table: feed.TableOrders, Op: op, Payload: *order})
}
