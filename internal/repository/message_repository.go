package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/repository/common"
)

// ErrMessageNotFound возвращается, когда сообщение не найдено.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepository отвечает за работу с таблицей messages.
// Таблица append-only: сообщения не редактируются и не удаляются.
type MessageRepository struct {
	db   *sqlx.DB
	feed *feed.Feed
}

// NewMessageRepository создаёт экземпляр репозитория.
func NewMessageRepository(db *sqlx.DB, changeFeed *feed.Feed) *MessageRepository {
	return &MessageRepository{db: db, feed: changeFeed}
}

// Add сохраняет сообщение и возвращает серверные id и created_at.
func (r *MessageRepository) Add(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (order_id, author_id, author_type, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		msg.OrderID, msg.AuthorID, msg.AuthorType, msg.Content,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("message repository: add: %w", err)
	}

	if r.feed != nil {
		r.feed.Publish(feed.Event{Table: feed.TableMessages, Op: feed.OpInsert, Payload: *msg})
	}

	return nil
}

// GetByID возвращает сообщение по идентификатору.
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return common.GetByID[models.Message](ctx, r.db, "messages", id, ErrMessageNotFound)
}

// ListForOrder возвращает сообщения заказа в порядке создания.
func (r *MessageRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	query := `
		SELECT * FROM messages
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &messages, query, orderID); err != nil {
		return nil, fmt.Errorf("message repository: list for order: %w", err)
	}
	return messages, nil
}

// ListForOrderSince возвращает сообщения заказа начиная с указанного времени.
// Используется для добора после обрыва подписки на ленту изменений.
// Граница включается: сообщение с тем же created_at, но другим id,
// иначе терялось бы, а дубликаты реплика отсекает по id сама.
func (r *MessageRepository) ListForOrderSince(ctx context.Context, orderID uuid.UUID, since time.Time) ([]models.Message, error) {
	var messages []models.Message
	query := `
		SELECT * FROM messages
		WHERE order_id = $1 AND created_at >= $2
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &messages, query, orderID, since); err != nil {
		return nil, fmt.Errorf("message repository: list for order since: %w", err)
	}
	return messages, nil
}

// ListForActor возвращает все сообщения по заказам, в которых пользователь
// является стороной, в порядке создания.
func (r *MessageRepository) ListForActor(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	query := `
		SELECT m.* FROM messages m
		JOIN orders o ON o.id = m.order_id
		WHERE o.business_id = $1 OR o.influencer_id = $1
		ORDER BY m.created_at, m.id
	`
	if err := r.db.SelectContext(ctx, &messages, query, userID); err != nil {
		return nil, fmt.Errorf("message repository: list for actor: %w", err)
	}
	return messages, nil
}
